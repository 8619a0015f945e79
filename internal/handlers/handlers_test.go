package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"saasboard/api/internal/captcha"
	"saasboard/api/internal/config"
	"saasboard/api/internal/ids"
	"saasboard/api/internal/models"
	"saasboard/api/internal/repository"
	"saasboard/api/internal/security"
	"saasboard/api/internal/service"
)

type fakeUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{nextID: 1, users: map[int64]models.User{}}
}

func (s *fakeUserStore) GetByID(_ context.Context, id int64) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (s *fakeUserStore) Create(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return models.User{}, repository.ErrDuplicateUser
		}
	}
	user.ID = s.nextID
	s.nextID++
	s.users[user.ID] = user
	return user, nil
}

func (s *fakeUserStore) List(_ context.Context, limit, offset int) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []models.User
	for id := int64(1); id < s.nextID; id++ {
		if user, ok := s.users[id]; ok {
			all = append(all, user)
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *fakeUserStore) UpdateProfile(_ context.Context, id int64, displayName, avatarURL *string, metadata map[string]any) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	if displayName != nil {
		user.DisplayName = *displayName
	}
	if avatarURL != nil {
		user.AvatarURL = avatarURL
	}
	if metadata != nil {
		user.Metadata = metadata
	}
	s.users[id] = user
	return user, nil
}

func (s *fakeUserStore) AdminUpdate(_ context.Context, id int64, update repository.AdminUserUpdate) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	if update.Roles != nil {
		user.Roles = update.Roles
	}
	if update.Plan != nil {
		user.Plan = *update.Plan
	}
	if update.Status != nil {
		user.Status = *update.Status
	}
	if update.Metadata != nil {
		user.Metadata = update.Metadata
	}
	s.users[id] = user
	return user, nil
}

func (s *fakeUserStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *fakeUserStore) SetAvatarURL(_ context.Context, id int64, avatarURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.AvatarURL = &avatarURL
	s.users[id] = user
	return nil
}

func (s *fakeUserStore) put(user models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = s.nextID
	s.nextID++
	s.users[user.ID] = user
	return user
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]models.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]models.Session{}}
}

func (s *fakeSessionRepo) GetByID(_ context.Context, id string) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return models.Session{}, repository.ErrSessionNotFound
	}
	return session, nil
}

func (s *fakeSessionRepo) Touch(_ context.Context, id, ip, userAgent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return repository.ErrSessionNotFound
	}
	session.LastSeenAt = time.Now()
	session.IPAddress = ip
	session.UserAgent = userAgent
	s.sessions[id] = session
	return nil
}

func (s *fakeSessionRepo) Create(_ context.Context, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *fakeSessionRepo) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *fakeSessionRepo) CountByUser(_ context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, session := range s.sessions {
		if session.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (s *fakeSessionRepo) DeleteOldestSessions(_ context.Context, userID int64, keepLatest int) error {
	return nil
}

type fakeProjectStore struct {
	mu       sync.Mutex
	nextID   int64
	projects map[int64]models.Project
}

func newFakeProjectStore() *fakeProjectStore {
	return &fakeProjectStore{nextID: 1, projects: map[int64]models.Project{}}
}

func (s *fakeProjectStore) Create(_ context.Context, project models.Project) (models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	project.ID = s.nextID
	s.nextID++
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	s.projects[project.ID] = project
	return project, nil
}

func (s *fakeProjectStore) GetForUser(_ context.Context, id, userID int64) (models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok := s.projects[id]
	if !ok || project.UserID != userID {
		return models.Project{}, repository.ErrProjectNotFound
	}
	return project, nil
}

func (s *fakeProjectStore) ListByUser(_ context.Context, userID int64) ([]models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var owned []models.Project
	for id := int64(1); id < s.nextID; id++ {
		if project, ok := s.projects[id]; ok && project.UserID == userID {
			owned = append(owned, project)
		}
	}
	return owned, nil
}

func (s *fakeProjectStore) UpdateForUser(_ context.Context, id, userID int64, patch repository.ProjectPatch) (models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok := s.projects[id]
	if !ok || project.UserID != userID {
		return models.Project{}, repository.ErrProjectNotFound
	}
	if patch.Name != nil {
		project.Name = *patch.Name
	}
	if patch.Description != nil {
		project.Description = *patch.Description
	}
	if patch.Status != nil {
		project.Status = *patch.Status
	}
	if patch.Metadata != nil {
		project.Metadata = patch.Metadata
	}
	project.UpdatedAt = time.Now()
	s.projects[id] = project
	return project, nil
}

func (s *fakeProjectStore) DeleteForUser(_ context.Context, id, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok := s.projects[id]
	if !ok || project.UserID != userID {
		return repository.ErrProjectNotFound
	}
	delete(s.projects, id)
	return nil
}

type fakeIntegrationStore struct {
	mu           sync.Mutex
	nextID       int64
	integrations map[int64]models.Integration
}

func newFakeIntegrationStore() *fakeIntegrationStore {
	return &fakeIntegrationStore{nextID: 1, integrations: map[int64]models.Integration{}}
}

func (s *fakeIntegrationStore) Create(_ context.Context, integration models.Integration) (models.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	integration.ID = s.nextID
	s.nextID++
	now := time.Now()
	integration.CreatedAt = now
	integration.UpdatedAt = now
	s.integrations[integration.ID] = integration
	return integration, nil
}

func (s *fakeIntegrationStore) GetForUser(_ context.Context, id, userID int64) (models.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	integration, ok := s.integrations[id]
	if !ok || integration.UserID != userID {
		return models.Integration{}, repository.ErrIntegrationNotFound
	}
	return integration, nil
}

func (s *fakeIntegrationStore) ListByUser(_ context.Context, userID int64) ([]models.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var owned []models.Integration
	for id := int64(1); id < s.nextID; id++ {
		if integration, ok := s.integrations[id]; ok && integration.UserID == userID {
			owned = append(owned, integration)
		}
	}
	return owned, nil
}

func (s *fakeIntegrationStore) UpdateForUser(_ context.Context, id, userID int64, patch repository.IntegrationPatch) (models.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	integration, ok := s.integrations[id]
	if !ok || integration.UserID != userID {
		return models.Integration{}, repository.ErrIntegrationNotFound
	}
	if patch.Name != nil {
		integration.Name = *patch.Name
	}
	if patch.Config != nil {
		integration.Config = patch.Config
	}
	if patch.Status != nil {
		integration.Status = *patch.Status
	}
	if patch.LastSynced != nil {
		integration.LastSynced = patch.LastSynced
	}
	integration.UpdatedAt = time.Now()
	s.integrations[id] = integration
	return integration, nil
}

func (s *fakeIntegrationStore) DeleteForUser(_ context.Context, id, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	integration, ok := s.integrations[id]
	if !ok || integration.UserID != userID {
		return repository.ErrIntegrationNotFound
	}
	delete(s.integrations, id)
	return nil
}

type fakeAvatarStore struct {
	lastKey  string
	lastSize int64
}

func (s *fakeAvatarStore) PutAvatar(_ context.Context, key string, reader io.Reader, size int64, _ string) (string, error) {
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return "", err
	}
	s.lastKey = key
	s.lastSize = size
	return "https://cdn.test/" + key, nil
}

type fixtures struct {
	engine       *gin.Engine
	cfg          *config.AppConfig
	users        *fakeUserStore
	sessions     *fakeSessionRepo
	projects     *fakeProjectStore
	integrations *fakeIntegrationStore
	avatars      *fakeAvatarStore
}

func newFixtures(t *testing.T) *fixtures {
	t.Helper()

	cfg := &config.AppConfig{}
	cfg.Environment = "test"
	cfg.Security.JWTSecret = "test-secret"
	cfg.Security.SessionTTL = time.Hour
	cfg.Security.MaxSessions = 5
	cfg.Security.CookieName = "saasboard_session"
	cfg.Identity.VerifyTimeout = time.Second
	cfg.AvatarMaxBytes = 1 << 20

	users := newFakeUserStore()
	sessions := newFakeSessionRepo()
	projects := newFakeProjectStore()
	integrations := newFakeIntegrationStore()
	avatars := &fakeAvatarStore{}

	log := zerolog.Nop()
	h := HandlerSet{
		log:          log,
		cfg:          cfg,
		authService:  service.NewAuthService(users, sessions, nil, nil, cfg, log),
		users:        users,
		projects:     projects,
		integrations: integrations,
		sessions:     sessions,
		avatars:      avatars,
		captcha:      captcha.New("", "", &http.Client{}, true, log),
	}

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	h.Routes(engine.Group("/api"))

	return &fixtures{
		engine:       engine,
		cfg:          cfg,
		users:        users,
		sessions:     sessions,
		projects:     projects,
		integrations: integrations,
		avatars:      avatars,
	}
}

func (f *fixtures) seedUser(t *testing.T, roles []models.Role, plan models.Plan) models.User {
	t.Helper()
	return f.users.put(models.User{
		Email:    "user-" + ids.New() + "@example.com",
		Roles:    roles,
		Plan:     plan,
		Status:   models.UserStatusActive,
		Metadata: map[string]any{},
	})
}

// bearerFor opens a session for the user and returns a valid header value,
// so requests travel the same resolution path production traffic does.
func (f *fixtures) bearerFor(t *testing.T, user models.User) string {
	t.Helper()
	sessionID := ids.New()
	token, err := security.GenerateAccessToken(f.cfg.Security.JWTSecret, user.ID, sessionID, f.cfg.Security.SessionTTL)
	require.NoError(t, err)
	require.NoError(t, f.sessions.Create(context.Background(), models.Session{
		ID:        sessionID,
		UserID:    user.ID,
		TokenHash: security.HashSessionToken(token),
		ExpiresAt: time.Now().Add(f.cfg.Security.SessionTTL),
	}))
	return "Bearer " + token
}

func (f *fixtures) do(t *testing.T, method, target, bearer string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}
