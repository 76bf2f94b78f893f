// Package ws implements the live alert stream of the rule engine.
//
// Hub manages a set of connected WebSocket clients. Every alert handed to
// Hub.Persist is pushed to all of them immediately, and Hub.Run sends a
// periodic stats message so idle dashboards can tell the engine is alive.
//
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket and first sends the
// most recent alerts, newest first.
//
// Message formats sent to clients:
//
//	{"event": "recent", "data": [ /* alerts, same schema as GET /api/v1/alerts */ ]}
//	{"event": "alert",  "data": { /* one alert */ }}
//	{"event": "stats",  "data": { /* same schema as GET /api/v1/health */ }}
//
// A client whose send buffer is full is disconnected rather than slowing the
// consumer down. The upgrader accepts all origins; apply CORS restrictions at
// the reverse proxy. The endpoint is mounted at /ws/alerts.
package ws
