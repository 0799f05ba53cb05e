package http

import (
	"context"
	"log/slog"
	nethttp "net/http"

	"github.com/geocoder89/contextbridge/internal/config"
	"github.com/geocoder89/contextbridge/internal/domain/connector"
	"github.com/geocoder89/contextbridge/internal/domain/contexts"
	"github.com/geocoder89/contextbridge/internal/domain/user"
	"github.com/geocoder89/contextbridge/internal/http/handlers"
	"github.com/geocoder89/contextbridge/internal/http/middlewares"
	"github.com/geocoder89/contextbridge/internal/identity"
	"github.com/geocoder89/contextbridge/internal/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type UsersStore interface {
	handlers.UsersStore
	identity.UserStore
}

type ContextsStore interface {
	handlers.ContextsStore
	GetMany(ctx context.Context, ids []string) ([]contexts.Context, error)
}

type ConnectorsStore interface {
	handlers.ConnectorsStore
	GetMany(ctx context.Context, ids []string) ([]connector.Connector, error)
}

// Deps is everything the router wires into handlers. Optional fields may be nil.
type Deps struct {
	Log *slog.Logger
	Cfg config.Config

	Users          UsersStore
	Contexts       ContextsStore
	DataConnectors ConnectorsStore
	LLMConnectors  ConnectorsStore

	Identity interface {
		handlers.Authenticator
		VerifyToken(ctx context.Context, token string) (user.User, error)
	}
	Query handlers.Asker

	// Limiter guards /api/register and /api/login; in-memory when nil.
	Limiter middlewares.Limiter
	// Prom records HTTP metrics when set.
	Prom           *observability.Prom
	MetricsHandler nethttp.Handler
	ReadyChecks    map[string]handlers.Pinger
}

func NewRouter(d Deps) *gin.Engine {
	if d.Cfg.Env != "dev" && gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	// middleware
	r.Use(middlewares.Recovery(d.Log))
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware("contextbridge"))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.ErrorHandler(d.Log))
	r.Use(middlewares.SecurityHeaders(d.Cfg.Env == "prod"))
	r.Use(middlewares.CORSMiddleware(d.Cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(d.Cfg.MaxBodyBytes))

	r.NoRoute(func(ctx *gin.Context) {
		handlers.RespondNotFound(ctx, "Route not found")
	})
	r.NoMethod(func(ctx *gin.Context) {
		handlers.RespondError(ctx, nethttp.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", nil)
	})

	// operational
	health := handlers.NewHealthHandler(d.ReadyChecks)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	if d.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(d.MetricsHandler))
	}
	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	limiter := d.Limiter
	if limiter == nil {
		limiter = middlewares.NewMemoryLimiter(d.Cfg.RateLimitRequests, d.Cfg.RateLimitWindow())
	}

	authMW := middlewares.NewAuthMiddleware(d.Identity, d.Cfg.CookieName)
	authHandler := handlers.NewAuthHandler(d.Identity, d.Cfg)
	usersHandler := handlers.NewUsersHandler(d.Users, d.Contexts, d.Identity)
	contextsHandler := handlers.NewContextsHandler(d.Contexts, d.DataConnectors)
	dataHandler := handlers.NewConnectorsHandler(d.DataConnectors, connector.KindData)
	llmHandler := handlers.NewConnectorsHandler(d.LLMConnectors, connector.KindLLM)
	queryHandler := handlers.NewQueryHandler(d.Query)

	api := r.Group("/api")
	api.Use(middlewares.RequireJSON())

	// auth
	api.POST("/register", middlewares.RateLimit(limiter, "register", middlewares.KeyByIP, d.Log), authHandler.Register)
	api.POST("/login", middlewares.RateLimit(limiter, "login", middlewares.KeyByIP, d.Log), authHandler.Login)
	api.GET("/user", authMW.SessionAuth(), authHandler.CurrentUser)
	api.GET("/logout", authHandler.Logout)

	protected := api.Group("")
	if d.Cfg.RequireAuth {
		protected.Use(authMW.RequireAuth())
	} else {
		protected.Use(authMW.OptionalAuth())
	}

	// users
	protected.GET("/users", usersHandler.ListUsers)
	protected.POST("/users", usersHandler.CreateUser)
	protected.GET("/users/:id", usersHandler.GetUserByID)
	protected.PATCH("/users/:id", usersHandler.UpdateUser)
	protected.PUT("/users/:id", usersHandler.UpdateUser)
	protected.DELETE("/users/:id", usersHandler.DeleteUser)

	// contexts
	protected.POST("/context", contextsHandler.CreateContext)
	protected.GET("/context", contextsHandler.ListContexts)
	protected.GET("/context/:id", contextsHandler.GetContextByID)
	protected.PATCH("/context/:id", contextsHandler.UpdateContext)
	protected.DELETE("/context/:id", contextsHandler.DeleteContext)

	// connectors
	for path, h := range map[string]*handlers.ConnectorsHandler{
		"/dataconnector": dataHandler,
		"/llmconnector":  llmHandler,
	} {
		protected.POST(path, h.Create)
		protected.GET(path, h.List)
		protected.GET(path+"/:id", h.GetByID)
		protected.PATCH(path+"/:id", h.Update)
		protected.DELETE(path+"/:id", h.Delete)
	}

	// query proxy
	protected.POST("/query", middlewares.RateLimit(limiter, "query", middlewares.KeyByUserOrIP, d.Log), queryHandler.Ask)
	protected.GET("/traces", queryHandler.Traces)

	return r
}
