// Package authz holds the access policy gate: a pure decision over the
// resolved user and a route's declared role/plan requirements. Both the
// HTTP middleware and the route guard derive their verdicts from Decide
// so the two can never disagree.
package authz

import (
	"saasboard/api/internal/models"
)

type Verdict int

const (
	VerdictAllow Verdict = iota
	VerdictUnauthenticated
	VerdictInsufficientRole
	VerdictPlanUpgradeRequired
)

func (v Verdict) String() string {
	switch v {
	case VerdictAllow:
		return "allow"
	case VerdictUnauthenticated:
		return "unauthenticated"
	case VerdictInsufficientRole:
		return "insufficient_role"
	case VerdictPlanUpgradeRequired:
		return "plan_upgrade_required"
	}
	return "unknown"
}

type Decision struct {
	Verdict Verdict

	// Populated on VerdictPlanUpgradeRequired so callers can render an
	// upgrade prompt.
	CurrentPlan  models.Plan
	AllowedPlans []models.Plan
}

func (d Decision) Allowed() bool {
	return d.Verdict == VerdictAllow
}

// Decide evaluates the gate. An empty requirement set is satisfied by any
// authenticated user. Role check precedes the plan check, so a caller
// failing both is reported as insufficient_role.
func Decide(user *models.User, requiredRoles []models.Role, requiredPlans []models.Plan) Decision {
	if user == nil {
		return Decision{Verdict: VerdictUnauthenticated}
	}

	if len(requiredRoles) > 0 && !satisfiesRoles(user, requiredRoles) {
		return Decision{Verdict: VerdictInsufficientRole}
	}

	if len(requiredPlans) > 0 && !planMember(user.Plan, requiredPlans) {
		return Decision{
			Verdict:      VerdictPlanUpgradeRequired,
			CurrentPlan:  user.Plan,
			AllowedPlans: requiredPlans,
		}
	}

	return Decision{Verdict: VerdictAllow}
}

// satisfiesRoles grants on any intersection between the user's role set
// and the requirement. Superadmin additionally satisfies any requirement
// that includes admin; it does not stand in for the plan-tier role names,
// those are gated by plan.
func satisfiesRoles(user *models.User, required []models.Role) bool {
	for _, role := range required {
		if user.HasRole(role) {
			return true
		}
		if role == models.RoleAdmin && user.HasRole(models.RoleSuperAdmin) {
			return true
		}
	}
	return false
}

func planMember(plan models.Plan, allowed []models.Plan) bool {
	for _, p := range allowed {
		if plan == p {
			return true
		}
	}
	return false
}
