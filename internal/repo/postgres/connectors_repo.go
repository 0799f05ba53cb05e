package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/contextbridge/internal/domain/connector"
	"github.com/geocoder89/contextbridge/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const connectorColumns = `id, name, type, config, created_at, updated_at`

// ConnectorsRepo serves either the data_connectors or the llm_connectors
// table; both share one schema.
type ConnectorsRepo struct {
	pool  *pgxpool.Pool
	kind  connector.Kind
	table string
	observer
}

func NewConnectorsRepo(pool *pgxpool.Pool, kind connector.Kind, prom *observability.Prom) *ConnectorsRepo {
	table := "data_connectors"
	if kind == connector.KindLLM {
		table = "llm_connectors"
	}
	return &ConnectorsRepo{pool: pool, kind: kind, table: table, observer: observer{prom: prom}}
}

func (r *ConnectorsRepo) Kind() connector.Kind {
	return r.kind
}

func (r *ConnectorsRepo) op(name string) string {
	return r.table + "." + name
}

func scanConnector(row pgx.Row) (connector.Connector, error) {
	var c connector.Connector
	err := row.Scan(&c.ID, &c.Name, &c.Type, &c.Config, &c.CreatedAt, &c.UpdatedAt)
	if c.Config == nil {
		c.Config = map[string]any{}
	}
	return c, err
}

func (r *ConnectorsRepo) Create(ctx context.Context, req connector.CreateRequest) (connector.Connector, error) {
	c := connector.NewFromCreateRequest(req)

	err := r.observe(r.op("create"), func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO `+r.table+` (id, name, type, config, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ID, c.Name, c.Type, c.Config, c.CreatedAt, c.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return connector.Connector{}, err
	}
	return c, nil
}

func (r *ConnectorsRepo) GetByID(ctx context.Context, id string) (connector.Connector, error) {
	var c connector.Connector

	err := r.observe(r.op("get_by_id"), func() error {
		var err error
		c, err = scanConnector(r.pool.QueryRow(ctx, `SELECT `+connectorColumns+` FROM `+r.table+` WHERE id = $1`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return connector.Connector{}, connector.ErrNotFound
		}
		return connector.Connector{}, err
	}
	return c, nil
}

func (r *ConnectorsRepo) GetMany(ctx context.Context, ids []string) ([]connector.Connector, error) {
	out := make([]connector.Connector, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	err := r.observe(r.op("get_many"), func() error {
		rows, err := r.pool.Query(ctx, `SELECT `+connectorColumns+` FROM `+r.table+` WHERE id = ANY($1)`, ids)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			c, err := scanConnector(rows)
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

func (r *ConnectorsRepo) List(ctx context.Context) ([]connector.Connector, error) {
	out := make([]connector.Connector, 0)

	err := r.observe(r.op("list"), func() error {
		rows, err := r.pool.Query(ctx, `SELECT `+connectorColumns+` FROM `+r.table+` ORDER BY created_at ASC, id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			c, err := scanConnector(rows)
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

func (r *ConnectorsRepo) Update(ctx context.Context, id string, req connector.UpdateRequest) (connector.Connector, error) {
	if req.IsEmpty() {
		return r.GetByID(ctx, id)
	}

	var c connector.Connector
	err := r.observe(r.op("update"), func() error {
		var err error
		c, err = scanConnector(r.pool.QueryRow(ctx,
			`UPDATE `+r.table+`
			 SET name = COALESCE($2, name),
			     type = COALESCE($3, type),
			     config = COALESCE($4, config),
			     updated_at = $5
			 WHERE id = $1
			 RETURNING `+connectorColumns,
			id, req.Name, req.Type, req.Config, time.Now().UTC(),
		))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return connector.Connector{}, connector.ErrNotFound
		}
		return connector.Connector{}, err
	}
	return c, nil
}

func (r *ConnectorsRepo) Delete(ctx context.Context, id string) error {
	return r.observe(r.op("delete"), func() error {
		_, err := r.pool.Exec(ctx, `DELETE FROM `+r.table+` WHERE id = $1`, id)
		return err
	})
}
