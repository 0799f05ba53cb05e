package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/contextbridge/internal/auth"
	"github.com/geocoder89/contextbridge/internal/cache"
	"github.com/geocoder89/contextbridge/internal/config"
	"github.com/geocoder89/contextbridge/internal/db"
	"github.com/geocoder89/contextbridge/internal/gateway"
	httpx "github.com/geocoder89/contextbridge/internal/http"
	"github.com/geocoder89/contextbridge/internal/http/handlers"
	"github.com/geocoder89/contextbridge/internal/http/middlewares"
	"github.com/geocoder89/contextbridge/internal/identity"
	"github.com/geocoder89/contextbridge/internal/observability"
	"github.com/geocoder89/contextbridge/internal/profile"
	"github.com/geocoder89/contextbridge/internal/query"
	"github.com/geocoder89/contextbridge/internal/redisclient"
	"github.com/geocoder89/contextbridge/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName: "contextbridge-api",
		Env:         cfg.Env,
		Endpoint:    cfg.OTELEndpoint,
		SampleRatio: cfg.OTELSampleRatio,
	})
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	stores, err := store.Open(ctx, cfg, prom, log)
	if err != nil {
		log.Error("store init failed", "err", err)
		os.Exit(1)
	}
	defer stores.Close()

	created, err := db.EnsureAdminUser(ctx, stores.Users, cfg)
	if err != nil {
		log.Error("admin seed failed", "err", err)
		os.Exit(1)
	}
	if created {
		log.Info("admin user created", "email", cfg.AdminEmail)
	}

	readyChecks := map[string]handlers.Pinger{}
	if stores.Ping != nil {
		readyChecks["db"] = stores.Ping
	}

	var limiter middlewares.Limiter
	if cfg.RedisAddr != "" {
		rdb := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		limiter = redisclient.NewLimiter(rdb, "contextbridge:ratelimit", cfg.RateLimitRequests, cfg.RateLimitWindow())
		readyChecks["redis"] = rdb
	} else {
		limiter = middlewares.NewMemoryLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow())
	}

	tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL())
	ident := identity.NewService(stores.Users, stores.Contexts, tokens, cfg.BcryptCost)

	// the breaker owns the per-call timeout, the client only bounds dialing
	modelClient := gateway.NewClient(cfg.ModelURL, &http.Client{})
	gw := gateway.NewProtected(modelClient, gateway.ProtectedConfig{
		Timeout:          cfg.ModelTimeout(),
		FailureThreshold: cfg.ModelBreakerFailures,
		Cooldown:         cfg.ModelBreakerCooldown(),
		HalfOpenMaxCalls: 1,
	}, prom)

	resolver := profile.NewResolver(stores.Users, stores.Contexts, stores.DataConnectors)
	querySvc := query.NewService(resolver, gw, cache.New[json.RawMessage](cfg.TracesCacheTTL()), log)

	// set up routers with the deps
	router := httpx.NewRouter(httpx.Deps{
		Log:            log,
		Cfg:            cfg,
		Users:          stores.Users,
		Contexts:       stores.Contexts,
		DataConnectors: stores.DataConnectors,
		LLMConnectors:  stores.LLMConnectors,
		Identity:       ident,
		Query:          querySvc,
		Limiter:        limiter,
		Prom:           prom,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadyChecks:    readyChecks,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// room for a slow model answer
		WriteTimeout: cfg.ModelTimeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	select {
	case <-ctx.Done():
		log.Info("server shutting down")
	case err := <-serverErr:
		log.Error("server failed", "err", err)
	}

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		sctx, cancel := config.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(sctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
		if err := shutdownTracer(sctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
