package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"saasboard/api/internal/captcha"
	"saasboard/api/internal/config"
	"saasboard/api/internal/ids"
	"saasboard/api/internal/models"
	"saasboard/api/internal/repository"
	"saasboard/api/internal/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserSuspended      = errors.New("user suspended")
	ErrEmailTaken         = errors.New("email already registered")
	ErrCaptchaFailed      = errors.New("security check failed")
	ErrTooManyAttempts    = errors.New("too many login attempts")
)

// CredentialStore is the directory surface the local credential flow
// needs.
type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (models.User, error)
	Create(ctx context.Context, user models.User) (models.User, error)
}

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	DeleteByID(ctx context.Context, id string) error
	CountByUser(ctx context.Context, userID int64) (int, error)
	DeleteOldestSessions(ctx context.Context, userID int64, keepLatest int) error
}

type AuthService struct {
	users    CredentialStore
	sessions SessionStore
	cache    *redis.Client
	captcha  *captcha.Verifier
	cfg      *config.AppConfig
	log      zerolog.Logger
}

func NewAuthService(
	users CredentialStore,
	sessions SessionStore,
	cache *redis.Client,
	captchaVerifier *captcha.Verifier,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		cache:    cache,
		captcha:  captchaVerifier,
		cfg:      cfg,
		log:      log,
	}
}

type RegisterInput struct {
	Email        string
	Password     string
	DisplayName  string
	CaptchaToken string
	IPAddress    string
	UserAgent    string
}

type AuthResult struct {
	Token     string
	SessionID string
	User      models.User
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if input.Email == "" || input.Password == "" {
		return AuthResult{}, fmt.Errorf("email and password required")
	}

	if err := s.checkCaptcha(ctx, input.CaptchaToken, input.IPAddress); err != nil {
		return AuthResult{}, err
	}

	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return AuthResult{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return AuthResult{}, err
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, err
	}

	user, err := s.users.Create(ctx, models.User{
		Email:        input.Email,
		DisplayName:  input.DisplayName,
		PasswordHash: passwordHash,
		Roles:        []models.Role{models.RoleFree},
		Plan:         models.PlanFree,
		Status:       models.UserStatusActive,
		Metadata:     map[string]any{},
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return AuthResult{}, ErrEmailTaken
		}
		return AuthResult{}, err
	}

	return s.openSession(ctx, user, input.IPAddress, input.UserAgent)
}

type LoginInput struct {
	Email        string
	Password     string
	CaptchaToken string
	IPAddress    string
	UserAgent    string
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))

	if err := s.checkCaptcha(ctx, input.CaptchaToken, input.IPAddress); err != nil {
		return AuthResult{}, err
	}
	if err := s.checkThrottle(ctx, input.Email); err != nil {
		return AuthResult{}, err
	}

	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	if user.Status != models.UserStatusActive {
		return AuthResult{}, ErrUserSuspended
	}

	// Accounts provisioned through an identity provider have no local
	// password.
	if len(user.PasswordHash) == 0 {
		return AuthResult{}, ErrInvalidCredentials
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil || !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	s.resetThrottle(ctx, input.Email)
	return s.openSession(ctx, user, input.IPAddress, input.UserAgent)
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.DeleteByID(ctx, sessionID)
}

func (s *AuthService) openSession(ctx context.Context, user models.User, ipAddress, userAgent string) (AuthResult, error) {
	sessionID := ids.New()

	token, err := security.GenerateAccessToken(s.cfg.Security.JWTSecret, user.ID, sessionID, s.cfg.Security.SessionTTL)
	if err != nil {
		return AuthResult{}, err
	}

	session := models.Session{
		ID:        sessionID,
		UserID:    user.ID,
		TokenHash: security.HashSessionToken(token),
		IPAddress: ipAddress,
		UserAgent: userAgent,
		ExpiresAt: time.Now().Add(s.cfg.Security.SessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return AuthResult{}, err
	}

	if err := s.enforceSessionLimit(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("enforce session limit failed")
	}

	return AuthResult{
		Token:     token,
		SessionID: sessionID,
		User:      user,
	}, nil
}

func (s *AuthService) enforceSessionLimit(ctx context.Context, userID int64) error {
	count, err := s.sessions.CountByUser(ctx, userID)
	if err != nil {
		return err
	}
	if count <= s.cfg.Security.MaxSessions {
		return nil
	}
	return s.sessions.DeleteOldestSessions(ctx, userID, s.cfg.Security.MaxSessions)
}

func (s *AuthService) checkCaptcha(ctx context.Context, token, remoteIP string) error {
	if s.captcha == nil || !s.captcha.Enabled() || token == "" {
		return nil
	}
	ok, err := s.captcha.Verify(ctx, token, remoteIP)
	if err != nil {
		s.log.Warn().Err(err).Msg("captcha verification error")
		return ErrCaptchaFailed
	}
	if !ok {
		return ErrCaptchaFailed
	}
	return nil
}

func throttleKey(email string) string {
	return "login_attempts:" + email
}

func (s *AuthService) checkThrottle(ctx context.Context, email string) error {
	if s.cache == nil {
		return nil
	}

	key := throttleKey(email)
	attempts, err := s.cache.Incr(ctx, key).Result()
	if err != nil {
		s.log.Warn().Err(err).Msg("login throttle unavailable")
		return nil
	}
	if attempts == 1 {
		s.cache.Expire(ctx, key, s.cfg.Throttle.LoginWindow)
	}
	if attempts > int64(s.cfg.Throttle.LoginMaxAttempts) {
		return ErrTooManyAttempts
	}
	return nil
}

func (s *AuthService) resetThrottle(ctx context.Context, email string) {
	if s.cache == nil {
		return
	}
	s.cache.Del(ctx, throttleKey(email))
}
