// Package api defines the wire-format types of the HTTP API and converters
// from internal models. Keys use snake_case. Timestamps are RFC3339 with
// milliseconds in UTC.
package api
