package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/jobboard-api/internal/config"
	"github.com/jwalitptl/jobboard-api/internal/handler/application"
	"github.com/jwalitptl/jobboard-api/internal/handler/health"
	"github.com/jwalitptl/jobboard-api/internal/handler/notification"
	"github.com/jwalitptl/jobboard-api/internal/handler/prometheus"
	"github.com/jwalitptl/jobboard-api/internal/handler/realtime"
	"github.com/jwalitptl/jobboard-api/internal/middleware"
)

type Config struct {
	RequestTimeout time.Duration
	RateLimit      config.RateLimitConfig
	CORS           config.CORSConfig
}

// ConfigFrom picks the router settings out of the service configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		RequestTimeout: cfg.Server.RequestTimeout,
		RateLimit:      cfg.RateLimit,
		CORS:           cfg.CORS,
	}
}

type Handlers struct {
	Health        *health.Handler
	Metrics       *prometheus.Handler
	Applications  *application.Handler
	Notifications *notification.Handler
	Realtime      *realtime.Handler
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	config   Config
}

func NewRouter(cfg Config, auth *middleware.AuthMiddleware, handlers Handlers, logger zerolog.Logger) *Router {
	engine := gin.New()

	engine.Use(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
	)
	if handlers.Metrics != nil {
		engine.Use(handlers.Metrics.Middleware())
	}
	engine.Use(
		middleware.ErrorHandler(logger),
		middleware.CORS(cfg.CORS),
	)
	if cfg.RateLimit.Enabled {
		engine.Use(middleware.NewRateLimiter(cfg.RateLimit).RateLimit())
	}

	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
		config:   cfg,
	}
	r.setup()
	return r
}

func (r *Router) setup() {
	api := r.engine.Group("/api/v1")

	// The live channel outlives any request timeout.
	if r.handlers.Realtime != nil {
		r.handlers.Realtime.RegisterRoutes(api)
	}

	timed := api.Group("")
	timed.Use(middleware.Timeout(r.config.RequestTimeout))

	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(timed)
	}

	protected := timed.Group("")
	protected.Use(r.auth.Authenticate())
	if r.handlers.Applications != nil {
		r.handlers.Applications.RegisterRoutes(protected, r.auth)
	}
	if r.handlers.Notifications != nil {
		r.handlers.Notifications.RegisterRoutes(protected, r.auth)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
