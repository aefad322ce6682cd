// Package middleware holds the HTTP middleware chain: request and trace IDs,
// access logging, panic recovery, CORS, Prometheus instrumentation, per
// client rate limiting, request-scoped database sessions and bearer token
// authentication.
package middleware
