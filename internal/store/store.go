// Package store opens the repositories for the configured driver.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geocoder89/contextbridge/internal/config"
	"github.com/geocoder89/contextbridge/internal/db"
	"github.com/geocoder89/contextbridge/internal/domain/connector"
	httpx "github.com/geocoder89/contextbridge/internal/http"
	"github.com/geocoder89/contextbridge/internal/http/handlers"
	"github.com/geocoder89/contextbridge/internal/observability"
	"github.com/geocoder89/contextbridge/internal/repo/memory"
	"github.com/geocoder89/contextbridge/internal/repo/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Stores struct {
	Users          httpx.UsersStore
	Contexts       httpx.ContextsStore
	DataConnectors httpx.ConnectorsStore
	LLMConnectors  httpx.ConnectorsStore

	// Pool is nil for the memory driver.
	Pool *pgxpool.Pool
	// Ping is set when the driver has something to ping.
	Ping handlers.Pinger
}

func (s *Stores) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// Open connects the configured driver. With postgres and AutoMigrate set the
// schema is brought up to date first.
func Open(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (*Stores, error) {
	switch cfg.StoreDriver {
	case DriverMemory:
		log.Warn("using in-memory store, data is lost on restart")
		return &Stores{
			Users:          memory.NewUsersRepo(),
			Contexts:       memory.NewContextsRepo(),
			DataConnectors: memory.NewConnectorsRepo(connector.KindData),
			LLMConnectors:  memory.NewConnectorsRepo(connector.KindLLM),
		}, nil

	case DriverPostgres, "":
		pool, err := db.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}

		if cfg.AutoMigrate {
			if err := db.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			log.Info("migrations applied")
		}

		users := postgres.NewUsersRepo(pool, prom)
		return &Stores{
			Users:          users,
			Contexts:       postgres.NewContextsRepo(pool, prom),
			DataConnectors: postgres.NewConnectorsRepo(pool, connector.KindData, prom),
			LLMConnectors:  postgres.NewConnectorsRepo(pool, connector.KindLLM, prom),
			Pool:           pool,
			Ping:           users,
		}, nil

	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
