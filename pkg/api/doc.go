// Package api exposes the HTTP surface of the authorization core: role
// administration within a tenant and read access to the audit trail. Every
// route is gated by the rbac guard; the handlers themselves assume an
// authorized actor.
package api
