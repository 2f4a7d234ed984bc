// Package storage owns the durable connections used by the authorization
// core: the PostgreSQL pool backing the role registry and audit store, and
// the Redis client backing the permission cache and quota counters.
//
// Clients are constructed explicitly and passed to the components that use
// them. There is no package-level singleton: main owns the lifecycle and
// closes both on shutdown.
package storage
