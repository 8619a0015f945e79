package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"saasboard/api/internal/captcha"
	"saasboard/api/internal/config"
	"saasboard/api/internal/identity"
	"saasboard/api/internal/middleware"
	"saasboard/api/internal/models"
	"saasboard/api/internal/repository"
	"saasboard/api/internal/service"
	"saasboard/api/internal/storage"
)

type UserStore interface {
	GetByID(ctx context.Context, id int64) (models.User, error)
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	UpdateProfile(ctx context.Context, id int64, displayName, avatarURL *string, metadata map[string]any) (models.User, error)
	AdminUpdate(ctx context.Context, id int64, update repository.AdminUserUpdate) (models.User, error)
	Delete(ctx context.Context, id int64) error
	SetAvatarURL(ctx context.Context, id int64, avatarURL string) error
}

type ProjectStore interface {
	Create(ctx context.Context, project models.Project) (models.Project, error)
	GetForUser(ctx context.Context, id, userID int64) (models.Project, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Project, error)
	UpdateForUser(ctx context.Context, id, userID int64, patch repository.ProjectPatch) (models.Project, error)
	DeleteForUser(ctx context.Context, id, userID int64) error
}

type IntegrationStore interface {
	Create(ctx context.Context, integration models.Integration) (models.Integration, error)
	GetForUser(ctx context.Context, id, userID int64) (models.Integration, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Integration, error)
	UpdateForUser(ctx context.Context, id, userID int64, patch repository.IntegrationPatch) (models.Integration, error)
	DeleteForUser(ctx context.Context, id, userID int64) error
}

type AvatarStore interface {
	PutAvatar(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
}

type HandlerSet struct {
	log          zerolog.Logger
	cfg          *config.AppConfig
	verifier     identity.Verifier
	authService  *service.AuthService
	provision    *service.ProvisionService
	users        UserStore
	projects     ProjectStore
	integrations IntegrationStore
	sessions     middleware.SessionSource
	avatars      AvatarStore
	captcha      *captcha.Verifier
	db           *pgxpool.Pool
	cache        *redis.Client
}

func NewHandlerSet(
	log zerolog.Logger,
	db *pgxpool.Pool,
	cache *redis.Client,
	avatars *storage.ObjectStore,
	cfg *config.AppConfig,
	verifier identity.Verifier,
) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	integrationRepo := repository.NewIntegrationRepository(db)

	captchaVerifier := captcha.New(
		cfg.Captcha.Endpoint,
		cfg.Captcha.Secret,
		&http.Client{Timeout: cfg.Captcha.Timeout},
		cfg.Captcha.AllowTestTokens || cfg.Environment != "production",
		log,
	)

	auth := service.NewAuthService(userRepo, sessionRepo, cache, captchaVerifier, cfg, log)
	provision := service.NewProvisionService(userRepo, cache, cfg.Identity.CacheTTL, log)

	return HandlerSet{
		log:          log,
		cfg:          cfg,
		verifier:     verifier,
		authService:  auth,
		provision:    provision,
		users:        userRepo,
		projects:     projectRepo,
		integrations: integrationRepo,
		sessions:     sessionRepo,
		avatars:      avatars,
		captcha:      captchaVerifier,
		db:           db,
		cache:        cache,
	}
}

func (h HandlerSet) Routes(api *gin.RouterGroup) {
	// The identity resolver runs on every route and never aborts for
	// missing or invalid credentials; the gates below decide.
	api.Use(middleware.Identity(h.cfg, h.verifier, h.provision, h.sessions, h.users, h.log))

	api.GET("/health", h.Health)
	api.POST("/verify-captcha", h.VerifyCaptcha)

	auth := api.Group("/auth")
	auth.POST("/register", h.RegisterUser)
	auth.POST("/login", h.Login)
	auth.POST("/logout", h.Logout)

	user := api.Group("/user", middleware.RequireAuth())
	user.GET("", h.Me)
	user.PATCH("", h.UpdateProfile)
	user.PUT("/avatar", h.UploadAvatar)

	paidCreate := middleware.RequirePlans(models.PlanBasic, models.PlanPremium, models.PlanEnterprise)

	projects := api.Group("/projects", middleware.RequireAuth())
	projects.GET("", h.ListProjects)
	projects.POST("", paidCreate, h.CreateProject)
	projects.GET("/:id", h.GetProject)
	projects.PATCH("/:id", h.UpdateProject)
	projects.DELETE("/:id", h.DeleteProject)

	integrations := api.Group("/integrations", middleware.RequireAuth())
	integrations.GET("", h.ListIntegrations)
	integrations.POST("", paidCreate, h.CreateIntegration)
	integrations.GET("/:id", h.GetIntegration)
	integrations.PATCH("/:id", h.UpdateIntegration)
	integrations.DELETE("/:id", h.DeleteIntegration)

	admin := api.Group("/admin", middleware.RequireAuth(), middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/users", h.AdminListUsers)
	admin.GET("/users/:id", h.AdminGetUser)
	admin.PATCH("/users/:id", h.AdminUpdateUser)
	admin.DELETE("/users/:id", h.AdminDeleteUser)
}
