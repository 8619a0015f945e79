package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"saasboard/api/internal/apperrors"
	"saasboard/api/internal/models"
	"saasboard/api/internal/repository"
)

func (h HandlerSet) AdminListUsers(c *gin.Context) {
	limit := 50
	offset := 0

	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	if page := c.Query("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 1 {
			offset = (v - 1) * limit
		}
	}

	users, err := h.users.List(c.Request.Context(), limit, offset)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	items := make([]userResponse, 0, len(users))
	for _, user := range users {
		items = append(items, toUserResponse(user))
	}
	c.JSON(http.StatusOK, gin.H{"users": items})
}

func (h HandlerSet) AdminGetUser(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		apperrors.Respond(c, apperrors.New(apperrors.KindValidation, "invalid user id"))
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

type adminUpdateUserRequest struct {
	Roles    []models.Role      `json:"roles"`
	Plan     *models.Plan       `json:"plan"`
	Status   *models.UserStatus `json:"status"`
	Metadata map[string]any     `json:"metadata"`
}

func (h HandlerSet) AdminUpdateUser(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		apperrors.Respond(c, apperrors.New(apperrors.KindValidation, "invalid user id"))
		return
	}

	var req adminUpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, apperrors.Wrap(apperrors.KindValidation, "invalid user payload", err))
		return
	}

	if req.Roles != nil {
		if len(req.Roles) == 0 {
			apperrors.Respond(c, apperrors.New(apperrors.KindValidation, "role set must not be empty"))
			return
		}
		for _, role := range req.Roles {
			if !models.ValidRole(role) {
				apperrors.Respond(c, apperrors.New(apperrors.KindValidation, "unknown role").With("role", role))
				return
			}
		}
	}
	if req.Plan != nil && !models.ValidPlan(*req.Plan) {
		apperrors.Respond(c, apperrors.New(apperrors.KindValidation, "unknown plan").With("plan", *req.Plan))
		return
	}
	if req.Status != nil && !models.ValidUserStatus(*req.Status) {
		apperrors.Respond(c, apperrors.New(apperrors.KindValidation, "unknown status").With("status", *req.Status))
		return
	}

	user, err := h.users.AdminUpdate(c.Request.Context(), id, repository.AdminUserUpdate{
		Roles:    req.Roles,
		Plan:     req.Plan,
		Status:   req.Status,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.respondUserError(c, err)
		return
	}

	if h.provision != nil && user.ExternalID != nil {
		h.provision.Invalidate(c.Request.Context(), *user.ExternalID)
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

func (h HandlerSet) AdminDeleteUser(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		apperrors.Respond(c, apperrors.New(apperrors.KindValidation, "invalid user id"))
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondUserError(c, err)
		return
	}

	// Projects and integrations cascade with the row.
	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		h.respondUserError(c, err)
		return
	}

	if h.provision != nil && user.ExternalID != nil {
		h.provision.Invalidate(c.Request.Context(), *user.ExternalID)
	}

	c.Status(http.StatusNoContent)
}

func (h HandlerSet) respondUserError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrUserNotFound) {
		apperrors.Respond(c, apperrors.New(apperrors.KindNotFound, "user not found"))
		return
	}
	apperrors.Respond(c, err)
}
