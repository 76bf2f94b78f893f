package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iotwatch/iotwatch/pkg/pg"
	"github.com/iotwatch/iotwatch/pkg/telemetry"
)

// ErrUnavailable is returned when the archive has no database.
var ErrUnavailable = errors.New("archive: unavailable")

// Archive writes raw messages to a Postgres table.
type Archive struct {
	db    *sql.DB
	table string
}

// New returns an Archive writing to table through db.
func New(db *sql.DB, table string) *Archive {
	return &Archive{db: db, table: table}
}

// EnsureSchema creates the messages table and its device index if missing.
func (a *Archive) EnsureSchema(ctx context.Context) error {
	if a.db == nil {
		return ErrUnavailable
	}
	t := pg.Ident(a.table)
	idx := pg.Ident(a.table + "_device_idx")
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + t + ` (
			id          BIGSERIAL PRIMARY KEY,
			device_id   BIGINT NOT NULL,
			field_a     DOUBLE PRECISION NOT NULL,
			ts          DOUBLE PRECISION NOT NULL,
			body        JSONB NOT NULL,
			received_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ` + idx + ` ON ` + t + ` (device_id, received_at)`,
	}
	for _, s := range stmts {
		if _, err := a.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("archive: ensure schema: %w", err)
		}
	}
	return nil
}

// Store inserts one message. body is stored as received.
func (a *Archive) Store(ctx context.Context, ev telemetry.Event, body []byte, received time.Time) error {
	if a.db == nil {
		return ErrUnavailable
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO `+pg.Ident(a.table)+` (device_id, field_a, ts, body, received_at) VALUES ($1, $2, $3, $4, $5)`,
		ev.DeviceID, ev.FieldA, ev.Timestamp, string(body), received.UTC(),
	)
	if err != nil {
		return fmt.Errorf("archive: insert: %w", err)
	}
	return nil
}

// Count returns the number of archived messages for deviceID.
func (a *Archive) Count(ctx context.Context, deviceID int64) (int64, error) {
	if a.db == nil {
		return 0, ErrUnavailable
	}
	var n int64
	err := a.db.QueryRowContext(ctx,
		`SELECT count(*) FROM `+pg.Ident(a.table)+` WHERE device_id = $1`, deviceID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("archive: count: %w", err)
	}
	return n, nil
}
