package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"saasboard/api/internal/identity"
	"saasboard/api/internal/models"
	"saasboard/api/internal/repository"
)

var (
	ErrMissingEmailClaim = errors.New("identity provider did not supply an email claim")
	ErrIdentityConflict  = errors.New("identity conflicts with an existing account")
)

// Directory is the user-directory surface provisioning needs.
type Directory interface {
	GetByID(ctx context.Context, id int64) (models.User, error)
	GetByExternalID(ctx context.Context, externalID string) (models.User, error)
	Create(ctx context.Context, user models.User) (models.User, error)
	TouchLastLogin(ctx context.Context, id int64) error
}

// ProvisionService maps a verified external identity to an internal user
// record, creating one on first sight.
type ProvisionService struct {
	users    Directory
	cache    *redis.Client
	cacheTTL time.Duration
	log      zerolog.Logger
}

func NewProvisionService(users Directory, cache *redis.Client, cacheTTL time.Duration, log zerolog.Logger) *ProvisionService {
	return &ProvisionService{
		users:    users,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

func identityCacheKey(externalID string) string {
	return "identity:" + externalID
}

// Resolve returns the directory record for a verified identity,
// provisioning a default account on first login. Two concurrent first
// logins cannot produce two rows: the insert races on the external_id
// uniqueness constraint and the loser re-reads the winner's row.
//
// The cache only stores the external-id to internal-id mapping, never
// roles or plan, so administrative updates are visible on the very next
// resolution.
func (s *ProvisionService) Resolve(ctx context.Context, claims identity.Claims) (models.User, error) {
	if claims.Subject == "" {
		return models.User{}, fmt.Errorf("identity claims missing subject")
	}
	if claims.Email == "" {
		return models.User{}, ErrMissingEmailClaim
	}

	if user, ok := s.resolveCached(ctx, claims.Subject); ok {
		if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
			return models.User{}, fmt.Errorf("touch last login: %w", err)
		}
		return user, nil
	}

	user, err := s.users.GetByExternalID(ctx, claims.Subject)
	switch {
	case err == nil:
		if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
			return models.User{}, fmt.Errorf("touch last login: %w", err)
		}
	case errors.Is(err, repository.ErrUserNotFound):
		user, err = s.provision(ctx, claims)
		if err != nil {
			return models.User{}, err
		}
	default:
		return models.User{}, fmt.Errorf("directory lookup: %w", err)
	}

	s.cacheIdentity(ctx, claims.Subject, user.ID)
	return user, nil
}

func (s *ProvisionService) provision(ctx context.Context, claims identity.Claims) (models.User, error) {
	externalID := claims.Subject
	newUser := models.User{
		ExternalID:  &externalID,
		Email:       claims.Email,
		DisplayName: claims.Name,
		Roles:       []models.Role{models.RoleFree},
		Plan:        models.PlanFree,
		Status:      models.UserStatusActive,
		Metadata:    map[string]any{},
	}
	if claims.Picture != "" {
		picture := claims.Picture
		newUser.AvatarURL = &picture
	}

	created, err := s.users.Create(ctx, newUser)
	if err == nil {
		s.log.Info().Int64("user_id", created.ID).Str("external_id", externalID).Msg("provisioned user on first login")
		return created, nil
	}
	if !errors.Is(err, repository.ErrDuplicateUser) {
		return models.User{}, fmt.Errorf("provision user: %w", err)
	}

	// Lost a first-login race, or the email is already registered with
	// local credentials. The former resolves to the winner's row; the
	// latter is a genuine conflict.
	existing, err := s.users.GetByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrIdentityConflict
		}
		return models.User{}, fmt.Errorf("re-read after conflict: %w", err)
	}
	return existing, nil
}

func (s *ProvisionService) resolveCached(ctx context.Context, externalID string) (models.User, bool) {
	if s.cache == nil {
		return models.User{}, false
	}

	raw, err := s.cache.Get(ctx, identityCacheKey(externalID)).Result()
	if err != nil {
		return models.User{}, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return models.User{}, false
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		// Stale mapping, likely a deleted user. Drop it and take the
		// full path, which may re-provision.
		s.cache.Del(ctx, identityCacheKey(externalID))
		return models.User{}, false
	}
	return user, true
}

func (s *ProvisionService) cacheIdentity(ctx context.Context, externalID string, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, identityCacheKey(externalID), strconv.FormatInt(userID, 10), s.cacheTTL).Err(); err != nil {
		s.log.Warn().Err(err).Msg("identity cache write failed")
	}
}

// Invalidate drops the cached mapping for an external identity, used
// after administrative deletes.
func (s *ProvisionService) Invalidate(ctx context.Context, externalID string) {
	if s.cache == nil || externalID == "" {
		return
	}
	s.cache.Del(ctx, identityCacheKey(externalID))
}
