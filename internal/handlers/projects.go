package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"saasboard/api/internal/apperrors"
	"saasboard/api/internal/middleware"
	"saasboard/api/internal/models"
	"saasboard/api/internal/repository"
)

type projectResponse struct {
	ID          int64                `json:"id"`
	UserID      int64                `json:"userId"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Status      models.ProjectStatus `json:"status"`
	Metadata    map[string]any       `json:"metadata"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

func toProjectResponse(project models.Project) projectResponse {
	return projectResponse{
		ID:          project.ID,
		UserID:      project.UserID,
		Name:        project.Name,
		Description: project.Description,
		Status:      project.Status,
		Metadata:    project.Metadata,
		CreatedAt:   project.CreatedAt,
		UpdatedAt:   project.UpdatedAt,
	}
}

func pathID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

func (h HandlerSet) ListProjects(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	projects, err := h.projects.ListByUser(c.Request.Context(), user.ID)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	items := make([]projectResponse, 0, len(projects))
	for _, project := range projects {
		items = append(items, toProjectResponse(project))
	}
	c.JSON(http.StatusOK, gin.H{"projects": items})
}

type createProjectRequest struct {
	Name        string                `json:"name" binding:"required"`
	Description string                `json:"description"`
	Status      *models.ProjectStatus `json:"status"`
	Metadata    map[string]any        `json:"metadata"`
}

func (h HandlerSet) CreateProject(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, apperrors.Wrap(apperrors.KindValidation, "invalid project payload", err))
		return
	}

	status := models.ProjectStatusActive
	if req.Status != nil {
		if !models.ValidProjectStatus(*req.Status) {
			apperrors.Respond(c, apperrors.New(apperrors.KindValidation, "unknown project status"))
			return
		}
		status = *req.Status
	}

	// Ownership is always the caller's, regardless of anything in the
	// payload.
	project, err := h.projects.Create(c.Request.Context(), models.Project{
		UserID:      user.ID,
		Name:        req.Name,
		Description: req.Description,
		Status:      status,
		Metadata:    req.Metadata,
	})
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, toProjectResponse(project))
}

func (h HandlerSet) GetProject(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	id, err := pathID(c)
	if err != nil {
		apperrors.Respond(c, apperrors.New(apperrors.KindValidation, "invalid project id"))
		return
	}

	project, err := h.projects.GetForUser(c.Request.Context(), id, user.ID)
	if err != nil {
		h.respondProjectError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProjectResponse(project))
}

type updateProjectRequest struct {
	Name        *string               `json:"name"`
	Description *string               `json:"description"`
	Status      *models.ProjectStatus `json:"status"`
	Metadata    map[string]any        `json:"metadata"`
}

func (h HandlerSet) UpdateProject(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	id, err := pathID(c)
	if err != nil {
		apperrors.Respond(c, apperrors.New(apperrors.KindValidation, "invalid project id"))
		return
	}

	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, apperrors.Wrap(apperrors.KindValidation, "invalid project payload", err))
		return
	}
	if req.Status != nil && !models.ValidProjectStatus(*req.Status) {
		apperrors.Respond(c, apperrors.New(apperrors.KindValidation, "unknown project status"))
		return
	}

	project, err := h.projects.UpdateForUser(c.Request.Context(), id, user.ID, repository.ProjectPatch{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		Metadata:    req.Metadata,
	})
	if err != nil {
		h.respondProjectError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProjectResponse(project))
}

func (h HandlerSet) DeleteProject(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	id, err := pathID(c)
	if err != nil {
		apperrors.Respond(c, apperrors.New(apperrors.KindValidation, "invalid project id"))
		return
	}

	if err := h.projects.DeleteForUser(c.Request.Context(), id, user.ID); err != nil {
		h.respondProjectError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Ownership mismatches surface as not_found: lookups are owner-scoped,
// so another user's project id is indistinguishable from a missing one.
func (h HandlerSet) respondProjectError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrProjectNotFound) {
		apperrors.Respond(c, apperrors.New(apperrors.KindNotFound, "project not found"))
		return
	}
	apperrors.Respond(c, err)
}
