// Package archive keeps every accepted telemetry message in a Postgres
// table so raw readings can be replayed or audited independently of the
// rule engine.
package archive
