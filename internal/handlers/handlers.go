package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"eventhub/internal/apperr"
	"eventhub/internal/config"
	"eventhub/internal/middleware"
	"eventhub/internal/models"
	"eventhub/internal/service"
)

type Authenticator interface {
	Register(ctx context.Context, input service.RegisterInput) (models.Account, error)
	Login(ctx context.Context, role models.Role, email string, password string) (service.LoginResult, error)
}

type EventManager interface {
	Create(ctx context.Context, admin models.Account, input service.CreateEventInput) (models.Event, error)
	Query(ctx context.Context, filter service.EventFilter) ([]models.Event, error)
	ListByCreator(ctx context.Context, email string) ([]models.Event, error)
	GenerateDescription(ctx context.Context, details service.EventDetails) (string, error)
}

type ImageLinker interface {
	URL(ref string) string
}

// HealthCheck is one dependency checked by /healthz.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type Deps struct {
	Auth     Authenticator
	Events   EventManager
	Tokens   middleware.TokenVerifier
	Accounts middleware.AccountFinder
	Limiter  *redis.Client
	Images   ImageLinker
	Checks   []HealthCheck
}

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	auth     Authenticator
	events   EventManager
	tokens   middleware.TokenVerifier
	accounts middleware.AccountFinder
	limiter  *redis.Client
	images   ImageLinker
	checks   []HealthCheck
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, deps Deps) HandlerSet {
	return HandlerSet{
		log:      log,
		cfg:      cfg,
		auth:     deps.Auth,
		events:   deps.Events,
		tokens:   deps.Tokens,
		accounts: deps.Accounts,
		limiter:  deps.Limiter,
		images:   deps.Images,
		checks:   deps.Checks,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	authenticate := middleware.Auth(h.tokens, h.accounts, h.log)

	admin := router.Group("/admin")
	{
		admin.POST("/register", h.AdminRegister)
		admin.POST("/login", h.loginThrottle(models.RoleAdmin), h.AdminLogin)

		protected := admin.Group("")
		protected.Use(authenticate, middleware.RequireRole(models.RoleAdmin))
		protected.POST("/events", h.CreateEvent)
		protected.GET("/dashboard", h.AdminDashboard)
		protected.POST("/generate-description", h.GenerateDescription)
	}

	user := router.Group("/user")
	{
		user.POST("/signup", h.UserSignup)
		user.POST("/login", h.loginThrottle(models.RoleUser), h.UserLogin)

		protected := user.Group("")
		protected.Use(authenticate, middleware.RequireRole(models.RoleUser))
		protected.GET("/dashboard", h.UserDashboard)
	}
}

// RegisterFallbacks answers unknown paths with 404 and known paths with the
// wrong method with 405. The engine must have HandleMethodNotAllowed set.
func (h HandlerSet) RegisterFallbacks(engine *gin.Engine) {
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Invalid request method"})
	})
}

func (h HandlerSet) loginThrottle(role models.Role) gin.HandlerFunc {
	return middleware.LoginThrottle(h.limiter, role, h.cfg.Security.LoginAttempts, h.cfg.Security.LoginWindow, h.log)
}

// respondError writes {"error": msg} with the status of err's kind. Internal
// errors are logged and never echoed.
func (h HandlerSet) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().
			Err(err).
			Str("path", c.FullPath()).
			Str("request_id", middleware.RequestIDFrom(c)).
			Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": apperr.Message(err)})
}
