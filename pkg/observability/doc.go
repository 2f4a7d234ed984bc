// Package observability provides structured logging, Prometheus metrics and
// health probes for the authorization and audit core.
//
// The logger is a thin wrapper over log/slog emitting JSON. Metrics cover the
// permission path (decisions, cache behaviour, degraded mode), the quota
// counters and the audit recorder pipeline. The health checker probes the
// role store (postgres) and the permission cache (redis); the cache probe is
// also what the evaluator's degraded-mode fallback keys off.
package observability
