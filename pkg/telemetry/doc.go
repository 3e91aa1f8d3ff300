// Package telemetry groups the observability subpackages for Mercator
// Saturn.
//
// The subpackages are:
//
//   - logging: structured logging built on log/slog, configured from the
//     telemetry.logging configuration section, with context helpers for
//     propagating request identity into log entries.
//
//   - metrics: the Prometheus registry shared by the decision pipeline
//     and the constraint enforcer, with an HTTP handler for scraping.
//
// Components receive their logger and registry by injection; nothing in
// this module reads global telemetry state.
package telemetry
