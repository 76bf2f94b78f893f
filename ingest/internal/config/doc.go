// Package config loads and validates the ingest service configuration.
//
// The ingest service reads the `ingest:` section of the shared config file.
// Missing fields are filled with defaults before validation. Secrets are
// never stored in the file; `*_env` keys name the environment variables that
// hold them.
package config
