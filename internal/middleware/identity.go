package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"saasboard/api/internal/apperrors"
	"saasboard/api/internal/config"
	"saasboard/api/internal/identity"
	"saasboard/api/internal/models"
	"saasboard/api/internal/repository"
	"saasboard/api/internal/security"
	"saasboard/api/internal/service"
)

const (
	ctxUserKey    = "current_user"
	ctxSessionKey = "session_id"
)

type SessionSource interface {
	GetByID(ctx context.Context, id string) (models.Session, error)
	Touch(ctx context.Context, id, ip, userAgent string) error
}

type UserSource interface {
	GetByID(ctx context.Context, id int64) (models.User, error)
}

type Provisioner interface {
	Resolve(ctx context.Context, claims identity.Claims) (models.User, error)
}

// SetCurrentUser attaches a resolved user to the context, for handlers
// that establish identity themselves (login, register).
func SetCurrentUser(c *gin.Context, user models.User) {
	c.Set(ctxUserKey, user)
}

// CurrentUser returns the user the identity resolver attached, if any.
func CurrentUser(c *gin.Context) (models.User, bool) {
	val, ok := c.Get(ctxUserKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := val.(models.User)
	return user, ok
}

// CurrentSessionID returns the local session id when the request was
// authenticated by a session token; empty for provider-token requests.
func CurrentSessionID(c *gin.Context) string {
	return c.GetString(ctxSessionKey)
}

// Identity resolves the caller to a directory record and attaches it to
// the request context. Proof of identity is a bearer token or the session
// cookie. Missing or invalid proof leaves the request anonymous; the
// access gates decide whether anonymous may proceed. Only directory
// failures abort here.
func Identity(
	cfg *config.AppConfig,
	verifier identity.Verifier,
	provisioner Provisioner,
	sessions SessionSource,
	users UserSource,
	log zerolog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			if cookie, err := c.Cookie(cfg.Security.CookieName); err == nil {
				token = cookie
			}
		}
		if token == "" {
			c.Next()
			return
		}

		// Local session tokens are signed with our own secret; anything
		// else is handed to the identity provider verifier.
		if claims, err := security.ParseAccessToken(token, cfg.Security.JWTSecret); err == nil {
			resolveLocal(c, claims, token, sessions, users, log)
			return
		}

		if verifier == nil {
			c.Next()
			return
		}
		resolveProvider(c, cfg, verifier, provisioner, token, log)
	}
}

func resolveLocal(
	c *gin.Context,
	claims *security.AccessClaims,
	token string,
	sessions SessionSource,
	users UserSource,
	log zerolog.Logger,
) {
	ctx := c.Request.Context()

	session, err := sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			// Revoked or expired-and-purged session: anonymous.
			c.Next()
			return
		}
		apperrors.Respond(c, err)
		return
	}

	if string(session.TokenHash) != string(security.HashSessionToken(token)) ||
		session.UserID != claims.UserID ||
		session.ExpiresAt.Before(time.Now()) {
		c.Next()
		return
	}

	user, err := users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.Next()
			return
		}
		apperrors.Respond(c, err)
		return
	}

	if user.Status != models.UserStatusActive {
		apperrors.Respond(c, apperrors.New(apperrors.KindForbidden, "account is not active"))
		return
	}

	if err := sessions.Touch(ctx, session.ID, c.ClientIP(), c.GetHeader("User-Agent")); err != nil {
		log.Warn().Err(err).Str("session_id", session.ID).Msg("session touch failed")
	}

	c.Set(ctxUserKey, user)
	c.Set(ctxSessionKey, session.ID)
	c.Next()
}

func resolveProvider(
	c *gin.Context,
	cfg *config.AppConfig,
	verifier identity.Verifier,
	provisioner Provisioner,
	token string,
	log zerolog.Logger,
) {
	verifyCtx, cancel := context.WithTimeout(c.Request.Context(), cfg.Identity.VerifyTimeout)
	defer cancel()

	claims, err := verifier.Verify(verifyCtx, token)
	if err != nil {
		// Expired, wrong audience, timed out: public routes keep
		// working, so this is anonymous rather than an error.
		log.Debug().Err(err).Msg("provider token rejected")
		c.Next()
		return
	}

	user, err := provisioner.Resolve(c.Request.Context(), *claims)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingEmailClaim):
			apperrors.Respond(c, apperrors.New(apperrors.KindMissingEmailClaim, "identity provider did not supply an email"))
		case errors.Is(err, service.ErrIdentityConflict):
			apperrors.Respond(c, apperrors.New(apperrors.KindConflict, "identity conflicts with an existing account"))
		default:
			apperrors.Respond(c, err)
		}
		return
	}

	if user.Status != models.UserStatusActive {
		apperrors.Respond(c, apperrors.New(apperrors.KindForbidden, "account is not active"))
		return
	}

	c.Set(ctxUserKey, user)
	c.Next()
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}
