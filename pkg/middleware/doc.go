// Package middleware provides the HTTP edge chain: request identity,
// structured request logging, and session authentication. Authorization
// decisions live in pkg/rbac; this package only establishes who is calling.
package middleware
