package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"saasboard/api/internal/apperrors"
	"saasboard/api/internal/middleware"
	"saasboard/api/internal/models"
	"saasboard/api/internal/service"
)

type userResponse struct {
	ID          int64             `json:"id"`
	Email       string            `json:"email"`
	DisplayName string            `json:"displayName"`
	AvatarURL   *string           `json:"avatarUrl,omitempty"`
	Roles       []models.Role     `json:"roles"`
	Plan        models.Plan       `json:"plan"`
	Status      models.UserStatus `json:"status"`
	Metadata    map[string]any    `json:"metadata"`
	LastLogin   *time.Time        `json:"lastLogin,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

func toUserResponse(user models.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
		Roles:       user.Roles,
		Plan:        user.Plan,
		Status:      user.Status,
		Metadata:    user.Metadata,
		LastLogin:   user.LastLogin,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

type registerRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	DisplayName  string `json:"displayName" binding:"required"`
	CaptchaToken string `json:"captchaToken"`
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, apperrors.Wrap(apperrors.KindValidation, "invalid registration payload", err))
		return
	}

	result, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		DisplayName:  req.DisplayName,
		CaptchaToken: req.CaptchaToken,
		IPAddress:    c.ClientIP(),
		UserAgent:    c.GetHeader("User-Agent"),
	})
	if err != nil {
		h.respondAuthError(c, err)
		return
	}

	h.setSessionCookie(c, result.Token)
	c.JSON(http.StatusCreated, gin.H{
		"token": result.Token,
		"user":  toUserResponse(result.User),
	})
}

type loginRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required"`
	CaptchaToken string `json:"captchaToken"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, apperrors.Wrap(apperrors.KindValidation, "invalid login payload", err))
		return
	}

	result, err := h.authService.Login(c.Request.Context(), service.LoginInput{
		Email:        req.Email,
		Password:     req.Password,
		CaptchaToken: req.CaptchaToken,
		IPAddress:    c.ClientIP(),
		UserAgent:    c.GetHeader("User-Agent"),
	})
	if err != nil {
		h.respondAuthError(c, err)
		return
	}

	h.setSessionCookie(c, result.Token)
	c.JSON(http.StatusOK, gin.H{
		"token": result.Token,
		"user":  toUserResponse(result.User),
	})
}

func (h HandlerSet) Logout(c *gin.Context) {
	if sessionID := middleware.CurrentSessionID(c); sessionID != "" {
		if err := h.authService.Logout(c.Request.Context(), sessionID); err != nil {
			apperrors.Respond(c, err)
			return
		}
	}

	h.clearSessionCookie(c)
	c.Status(http.StatusNoContent)
}

type verifyCaptchaRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h HandlerSet) VerifyCaptcha(c *gin.Context) {
	var req verifyCaptchaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, apperrors.Wrap(apperrors.KindValidation, "token is required", err))
		return
	}

	ok, err := h.captcha.Verify(c.Request.Context(), req.Token, c.ClientIP())
	if err != nil {
		h.log.Warn().Err(err).Msg("captcha verification error")
		ok = false
	}
	c.JSON(http.StatusOK, gin.H{"success": ok})
}

func (h HandlerSet) respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		apperrors.Respond(c, apperrors.New(apperrors.KindConflict, "email already registered"))
	case errors.Is(err, service.ErrCaptchaFailed):
		apperrors.Respond(c, apperrors.New(apperrors.KindValidation, "security check failed, please try again"))
	case errors.Is(err, service.ErrInvalidCredentials):
		apperrors.Respond(c, apperrors.New(apperrors.KindUnauthenticated, "invalid email or password"))
	case errors.Is(err, service.ErrUserSuspended):
		apperrors.Respond(c, apperrors.New(apperrors.KindForbidden, "account is suspended"))
	case errors.Is(err, service.ErrTooManyAttempts):
		apperrors.Respond(c, apperrors.New(apperrors.KindTooManyRequests, "too many login attempts"))
	default:
		apperrors.Respond(c, err)
	}
}

func (h HandlerSet) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		h.cfg.Security.CookieName,
		token,
		int(h.cfg.Security.SessionTTL.Seconds()),
		"/",
		"",
		h.cfg.Security.CookieSecure,
		true,
	)
}

func (h HandlerSet) clearSessionCookie(c *gin.Context) {
	c.SetCookie(h.cfg.Security.CookieName, "", -1, "/", "", h.cfg.Security.CookieSecure, true)
}
