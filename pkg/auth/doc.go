// Package auth resolves the acting principal for a request.
//
// An Actor is ephemeral: it is reconstructed per request from a verified
// session token and never persisted. The two kinds are tenant-scoped
// employees (carrying a role reference) and platform-level administrators
// (tenant-unscoped, carrying their own capability set). Downstream code
// branches on the Kind tag, never on a loosely typed discriminant string.
package auth
