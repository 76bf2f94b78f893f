// Package sink holds the alert sinks: where alerts go after a rule fires.
//
//   - Postgres stores alerts in a table (database/sql with the pgx driver).
//   - Webhook posts a notification to Slack, Teams or a generic HTTP endpoint.
//   - History keeps the most recent alerts in memory for the REST API.
//   - Func adapts a plain function, e.g. the live websocket broadcast.
//   - Multi fans one alert out to several sinks.
//
// Every sink persists synchronously and bounds its work by the context passed
// to Persist. Failures are returned, never retried.
package sink
