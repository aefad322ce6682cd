// Package api wires the HTTP surface: the chi router, its middleware chain
// and the handlers for authentication, users, items, health and metrics.
package api
