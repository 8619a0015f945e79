package middleware

import (
	"github.com/gin-gonic/gin"

	"saasboard/api/internal/apperrors"
	"saasboard/api/internal/authz"
	"saasboard/api/internal/models"
)

// RequireAuth denies anonymous requests.
func RequireAuth() gin.HandlerFunc {
	return gate(nil, nil)
}

// RequireRoles denies callers whose role set does not intersect the
// requirement (superadmin passes any requirement that includes admin).
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return gate(roles, nil)
}

// RequirePlans denies callers whose plan is outside the allowed set. The
// denial body carries the current and allowed plans so clients can render
// an upgrade prompt.
func RequirePlans(plans ...models.Plan) gin.HandlerFunc {
	return gate(nil, plans)
}

func gate(roles []models.Role, plans []models.Plan) gin.HandlerFunc {
	return func(c *gin.Context) {
		var userPtr *models.User
		if user, ok := CurrentUser(c); ok {
			userPtr = &user
		}

		decision := authz.Decide(userPtr, roles, plans)
		switch decision.Verdict {
		case authz.VerdictAllow:
			c.Next()
		case authz.VerdictUnauthenticated:
			apperrors.Respond(c, apperrors.New(apperrors.KindUnauthenticated, "authentication required"))
		case authz.VerdictInsufficientRole:
			apperrors.Respond(c, apperrors.New(apperrors.KindInsufficientRole, "insufficient permissions"))
		case authz.VerdictPlanUpgradeRequired:
			apperrors.Respond(c, apperrors.
				New(apperrors.KindPlanUpgradeRequired, "plan upgrade required").
				With("currentPlan", decision.CurrentPlan).
				With("allowedPlans", decision.AllowedPlans))
		}
	}
}
