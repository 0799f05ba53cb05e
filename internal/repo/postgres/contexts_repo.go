package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/contextbridge/internal/domain/contexts"
	"github.com/geocoder89/contextbridge/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const contextColumns = `id, name, data_connectors, created_at, updated_at`

type ContextsRepo struct {
	pool *pgxpool.Pool
	observer
}

func NewContextsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ContextsRepo {
	return &ContextsRepo{pool: pool, observer: observer{prom: prom}}
}

func scanContext(row pgx.Row) (contexts.Context, error) {
	var c contexts.Context
	err := row.Scan(&c.ID, &c.Name, &c.DataConnectors, &c.CreatedAt, &c.UpdatedAt)
	c.DataConnectors = nonNilStrings(c.DataConnectors)
	return c, err
}

func (r *ContextsRepo) Create(ctx context.Context, req contexts.CreateRequest) (contexts.Context, error) {
	c := contexts.NewFromCreateRequest(req)

	err := r.observe("contexts.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO contexts (id, name, data_connectors, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			c.ID, c.Name, c.DataConnectors, c.CreatedAt, c.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return contexts.Context{}, err
	}
	return c, nil
}

func (r *ContextsRepo) GetByID(ctx context.Context, id string) (contexts.Context, error) {
	var c contexts.Context

	err := r.observe("contexts.get_by_id", func() error {
		var err error
		c, err = scanContext(r.pool.QueryRow(ctx, `SELECT `+contextColumns+` FROM contexts WHERE id = $1`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return contexts.Context{}, contexts.ErrNotFound
		}
		return contexts.Context{}, err
	}
	return c, nil
}

// GetMany fetches all existing contexts among ids in one round trip. Order is
// unspecified and missing ids are skipped.
func (r *ContextsRepo) GetMany(ctx context.Context, ids []string) ([]contexts.Context, error) {
	out := make([]contexts.Context, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	err := r.observe("contexts.get_many", func() error {
		rows, err := r.pool.Query(ctx, `SELECT `+contextColumns+` FROM contexts WHERE id = ANY($1)`, ids)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			c, err := scanContext(rows)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ContextsRepo) List(ctx context.Context) ([]contexts.Context, error) {
	out := make([]contexts.Context, 0)

	err := r.observe("contexts.list", func() error {
		rows, err := r.pool.Query(ctx, `SELECT `+contextColumns+` FROM contexts ORDER BY created_at ASC, id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			c, err := scanContext(rows)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ContextsRepo) Update(ctx context.Context, id string, req contexts.UpdateRequest) (contexts.Context, error) {
	if req.IsEmpty() {
		return r.GetByID(ctx, id)
	}

	var ids []string
	if req.DataConnectors != nil {
		ids = nonNilStrings(*req.DataConnectors)
	}

	var c contexts.Context
	err := r.observe("contexts.update", func() error {
		var err error
		c, err = scanContext(r.pool.QueryRow(ctx,
			`UPDATE contexts
			 SET name = COALESCE($2, name),
			     data_connectors = COALESCE($3, data_connectors),
			     updated_at = $4
			 WHERE id = $1
			 RETURNING `+contextColumns,
			id, req.Name, ids, time.Now().UTC(),
		))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return contexts.Context{}, contexts.ErrNotFound
		}
		return contexts.Context{}, err
	}
	return c, nil
}

func (r *ContextsRepo) Delete(ctx context.Context, id string) error {
	return r.observe("contexts.delete", func() error {
		_, err := r.pool.Exec(ctx, `DELETE FROM contexts WHERE id = $1`, id)
		return err
	})
}
