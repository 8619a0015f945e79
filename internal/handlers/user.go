package handlers

import (
	"errors"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"saasboard/api/internal/apperrors"
	"saasboard/api/internal/ids"
	"saasboard/api/internal/middleware"
	"saasboard/api/internal/repository"
)

func (h HandlerSet) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apperrors.Respond(c, apperrors.New(apperrors.KindUnauthenticated, "authentication required"))
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

type updateProfileRequest struct {
	DisplayName *string        `json:"displayName"`
	AvatarURL   *string        `json:"avatarUrl"`
	Metadata    map[string]any `json:"metadata"`
}

// UpdateProfile applies self-service edits. Roles, plan, and status are
// admin-only and ignored even if supplied.
func (h HandlerSet) UpdateProfile(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apperrors.Respond(c, apperrors.New(apperrors.KindUnauthenticated, "authentication required"))
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, apperrors.Wrap(apperrors.KindValidation, "invalid profile payload", err))
		return
	}

	updated, err := h.users.UpdateProfile(c.Request.Context(), user.ID, req.DisplayName, req.AvatarURL, req.Metadata)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			apperrors.Respond(c, apperrors.New(apperrors.KindNotFound, "user not found"))
			return
		}
		apperrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(updated))
}

var allowedAvatarTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

func (h HandlerSet) UploadAvatar(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apperrors.Respond(c, apperrors.New(apperrors.KindUnauthenticated, "authentication required"))
		return
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		apperrors.Respond(c, apperrors.Wrap(apperrors.KindValidation, "avatar file is required", err))
		return
	}
	if fileHeader.Size > h.cfg.AvatarMaxBytes {
		apperrors.Respond(c, apperrors.New(apperrors.KindValidation, "avatar exceeds the size limit"))
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	ext, ok := allowedAvatarTypes[contentType]
	if !ok {
		apperrors.Respond(c, apperrors.New(apperrors.KindValidation, "unsupported avatar type"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	defer file.Close()

	key := path.Join("avatars", ids.New()+ext)
	url, err := h.avatars.PutAvatar(c.Request.Context(), key, file, fileHeader.Size, contentType)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	if err := h.users.SetAvatarURL(c.Request.Context(), user.ID, url); err != nil {
		apperrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"avatarUrl": url})
}
