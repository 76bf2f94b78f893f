// Package auth provides API key middleware for the HTTP surfaces of the
// engine and the ingest service.
//
// APIKey(mode, header, key) wraps an http.Handler. When mode != "apikey" or
// key == "", every request passes through, which is handy for local
// development. Otherwise a request whose header value does not match key is
// answered with 401 and a JSON error body.
package auth
