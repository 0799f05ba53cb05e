package observability

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgErrorClasses names the SQLSTATEs the store layer can hit. Others are
// reported as "pg_<code>".
var pgErrorClasses = map[string]string{
	"23505": "unique_violation",
	"23502": "not_null_violation",
	"22P02": "invalid_text",
	"53300": "too_many_connections",
	"57014": "query_canceled",
}

// ObserveDB runs fn as the logical store operation op and records its
// latency. pgx.ErrNoRows counts as status "not_found" rather than an error.
func (p *Prom) ObserveDB(op string, fn func() error) error {
	start := time.Now()
	err := fn()

	status := dbStatus(err)
	if status == "error" {
		p.DbErrorsTotal.WithLabelValues(op, classifyDBErr(err)).Inc()
	}
	p.DbQueryDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	return err
}

func dbStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, pgx.ErrNoRows):
		return "not_found"
	}
	return "error"
}

func classifyDBErr(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if class, known := pgErrorClasses[pgErr.Code]; known {
			return class
		}
		return "pg_" + pgErr.Code
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}

	// driver dial and I/O errors are not typed
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") {
		return "timeout"
	}
	if strings.Contains(msg, "connection") || strings.Contains(msg, "connect:") {
		return "connection"
	}
	return "unknown"
}
