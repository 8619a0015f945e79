package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"saasboard/api/internal/apperrors"
	"saasboard/api/internal/middleware"
	"saasboard/api/internal/models"
	"saasboard/api/internal/repository"
)

type integrationResponse struct {
	ID         int64                    `json:"id"`
	UserID     int64                    `json:"userId"`
	Type       string                   `json:"type"`
	Name       string                   `json:"name"`
	Config     map[string]any           `json:"config"`
	Status     models.IntegrationStatus `json:"status"`
	LastSynced *time.Time               `json:"lastSynced,omitempty"`
	CreatedAt  time.Time                `json:"createdAt"`
	UpdatedAt  time.Time                `json:"updatedAt"`
}

func toIntegrationResponse(integration models.Integration) integrationResponse {
	return integrationResponse{
		ID:         integration.ID,
		UserID:     integration.UserID,
		Type:       integration.Type,
		Name:       integration.Name,
		Config:     integration.Config,
		Status:     integration.Status,
		LastSynced: integration.LastSynced,
		CreatedAt:  integration.CreatedAt,
		UpdatedAt:  integration.UpdatedAt,
	}
}

func (h HandlerSet) ListIntegrations(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	integrations, err := h.integrations.ListByUser(c.Request.Context(), user.ID)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	items := make([]integrationResponse, 0, len(integrations))
	for _, integration := range integrations {
		items = append(items, toIntegrationResponse(integration))
	}
	c.JSON(http.StatusOK, gin.H{"integrations": items})
}

type createIntegrationRequest struct {
	Type   string                    `json:"type" binding:"required"`
	Name   string                    `json:"name" binding:"required"`
	Config map[string]any            `json:"config"`
	Status *models.IntegrationStatus `json:"status"`
}

func (h HandlerSet) CreateIntegration(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req createIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, apperrors.Wrap(apperrors.KindValidation, "invalid integration payload", err))
		return
	}

	status := models.IntegrationStatusPending
	if req.Status != nil {
		if !models.ValidIntegrationStatus(*req.Status) {
			apperrors.Respond(c, apperrors.New(apperrors.KindValidation, "unknown integration status"))
			return
		}
		status = *req.Status
	}

	integration, err := h.integrations.Create(c.Request.Context(), models.Integration{
		UserID: user.ID,
		Type:   req.Type,
		Name:   req.Name,
		Config: req.Config,
		Status: status,
	})
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, toIntegrationResponse(integration))
}

func (h HandlerSet) GetIntegration(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	id, err := pathID(c)
	if err != nil {
		apperrors.Respond(c, apperrors.New(apperrors.KindValidation, "invalid integration id"))
		return
	}

	integration, err := h.integrations.GetForUser(c.Request.Context(), id, user.ID)
	if err != nil {
		h.respondIntegrationError(c, err)
		return
	}
	c.JSON(http.StatusOK, toIntegrationResponse(integration))
}

type updateIntegrationRequest struct {
	Name       *string                   `json:"name"`
	Config     map[string]any            `json:"config"`
	Status     *models.IntegrationStatus `json:"status"`
	LastSynced *time.Time                `json:"lastSynced"`
}

func (h HandlerSet) UpdateIntegration(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	id, err := pathID(c)
	if err != nil {
		apperrors.Respond(c, apperrors.New(apperrors.KindValidation, "invalid integration id"))
		return
	}

	var req updateIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, apperrors.Wrap(apperrors.KindValidation, "invalid integration payload", err))
		return
	}
	if req.Status != nil && !models.ValidIntegrationStatus(*req.Status) {
		apperrors.Respond(c, apperrors.New(apperrors.KindValidation, "unknown integration status"))
		return
	}

	integration, err := h.integrations.UpdateForUser(c.Request.Context(), id, user.ID, repository.IntegrationPatch{
		Name:       req.Name,
		Config:     req.Config,
		Status:     req.Status,
		LastSynced: req.LastSynced,
	})
	if err != nil {
		h.respondIntegrationError(c, err)
		return
	}
	c.JSON(http.StatusOK, toIntegrationResponse(integration))
}

func (h HandlerSet) DeleteIntegration(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	id, err := pathID(c)
	if err != nil {
		apperrors.Respond(c, apperrors.New(apperrors.KindValidation, "invalid integration id"))
		return
	}

	if err := h.integrations.DeleteForUser(c.Request.Context(), id, user.ID); err != nil {
		h.respondIntegrationError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) respondIntegrationError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrIntegrationNotFound) {
		apperrors.Respond(c, apperrors.New(apperrors.KindNotFound, "integration not found"))
		return
	}
	apperrors.Respond(c, err)
}
