// Package pg opens Postgres connections through database/sql with the pgx
// driver. Both the engine's alert sink and the ingest archive use it.
package pg
