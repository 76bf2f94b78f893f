package sink

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iotwatch/iotwatch/pkg/pg"
	"github.com/iotwatch/iotwatch/pkg/telemetry"
)

const defaultAlertsTable = "alerts"

// Postgres stores alerts in a table. Re-persisting an alert with the same id
// is a no-op.
type Postgres struct {
	db    *sql.DB
	table string
}

// PostgresOption configures the Postgres sink.
type PostgresOption func(*Postgres)

// WithTable overrides the default table name.
func WithTable(table string) PostgresOption {
	return func(p *Postgres) {
		if table != "" {
			p.table = table
		}
	}
}

// NewPostgres creates a sink writing to db.
func NewPostgres(db *sql.DB, opts ...PostgresOption) *Postgres {
	p := &Postgres{db: db, table: defaultAlertsTable}
	for _, o := range opts {
		o(p)
	}
	return p
}

// EnsureSchema creates the alerts table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if p == nil || p.db == nil {
		return ErrSinkUnavailable
	}
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id         TEXT PRIMARY KEY,
	device_id  BIGINT NOT NULL,
	rule       TEXT NOT NULL,
	kind       TEXT NOT NULL,
	value      DOUBLE PRECISION NOT NULL,
	ts         DOUBLE PRECISION NOT NULL,
	fired_at   TIMESTAMPTZ NOT NULL
)`, pg.Ident(p.table))
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("sink postgres: create table %s: %w", p.table, err)
	}
	return nil
}

// Persist inserts a.
func (p *Postgres) Persist(ctx context.Context, a telemetry.Alert) error {
	if p == nil || p.db == nil {
		return ErrSinkUnavailable
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, device_id, rule, kind, value, ts, fired_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING`, pg.Ident(p.table))

	if _, err := p.db.ExecContext(ctx, query,
		a.ID,
		a.DeviceID,
		a.Rule,
		string(a.Kind),
		a.Value,
		a.Timestamp,
		a.FiredAt,
	); err != nil {
		return fmt.Errorf("sink postgres: insert alert %s: %w", a.ID, err)
	}
	return nil
}

// Recent returns up to limit alerts, newest first, optionally filtered to
// one device.
func (p *Postgres) Recent(ctx context.Context, limit int, deviceID *int64) ([]telemetry.Alert, error) {
	if p == nil || p.db == nil {
		return nil, ErrSinkUnavailable
	}
	where, args := "", []any{limit}
	if deviceID != nil {
		where, args = "WHERE device_id = $2", append(args, *deviceID)
	}
	query := fmt.Sprintf(`
SELECT id, device_id, rule, kind, value, ts, fired_at
FROM %s
%s
ORDER BY fired_at DESC
LIMIT $1`, pg.Ident(p.table), where)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sink postgres: query: %w", err)
	}
	defer rows.Close()

	out := make([]telemetry.Alert, 0, limit)
	for rows.Next() {
		var (
			a    telemetry.Alert
			kind string
		)
		if err := rows.Scan(&a.ID, &a.DeviceID, &a.Rule, &kind, &a.Value, &a.Timestamp, &a.FiredAt); err != nil {
			return nil, fmt.Errorf("sink postgres: scan: %w", err)
		}
		a.Kind = telemetry.Kind(kind)
		out = append(out, a)
	}
	return out, rows.Err()
}
