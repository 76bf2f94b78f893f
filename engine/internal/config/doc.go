// Package config loads the rule engine configuration from the `engine:`
// section of a YAML file.
//
// Config fields:
//   - HTTPPort        REST API, /metrics and /ws/alerts port (default 8080)
//   - LogLevel        debug | info | warn | error (default info)
//   - Transport       NATS URL, stream, subject and durable consumer
//   - Consumer        fetch failure budget and sink timeout
//   - Window.Size     events kept per device (default 10)
//   - Window.MaxDevices  optional LRU bound on tracked devices (0 = none)
//   - Rules           ordered rule list; defaults to the reference rules
//   - Sinks           Postgres table, webhooks, in-memory history length
//   - Auth            API key protection for the REST API
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, ...) reloads on change; the engine applies only LogLevel
// from a reload, everything else is read once at startup.
package config
