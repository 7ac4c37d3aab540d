// Package server implements the monitoring HTTP API: health, aggregated
// statistics, sanitized configuration, the live session report, a
// conversation reset trigger, and Prometheus metrics.
package server
