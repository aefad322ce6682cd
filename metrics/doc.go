// Package metrics collects Prometheus metrics for the HTTP surface, the
// authentication flow and the database pool, and exposes them for scraping.
package metrics
