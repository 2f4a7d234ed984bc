package auth

import (
	"context"
	"errors"

	"github.com/pradumya004/Getmax-wfm-sub009/pkg/contextkeys"
)

// ErrAuthentication indicates an invalid or expired session. Always fatal to
// the request; never retried.
var ErrAuthentication = errors.New("authentication failed")

// ActorKind discriminates the Actor variant
type ActorKind string

const (
	ActorKindEmployee      ActorKind = "employee"
	ActorKindPlatformAdmin ActorKind = "platform_admin"
)

// Capabilities are the coarse boolean overrides carried by a role (for
// employees) or by a platform admin directly. They gate sensitive actions
// beyond the resource/action matrix.
type Capabilities struct {
	CanViewAllCompanies   bool `json:"canViewAllCompanies"`
	CanManageAllEmployees bool `json:"canManageAllEmployees"`
	CanConfigureSOWs      bool `json:"canConfigureSOWs"`
	CanViewFinancials     bool `json:"canViewFinancials"`
	CanExportData         bool `json:"canExportData"`
	CanApproveWork        bool `json:"canApproveWork"`
}

// Actor is the resolved identity performing an action. The populated fields
// depend on Kind:
//
//   - ActorKindEmployee: EmployeeID, TenantID and RoleID are set.
//   - ActorKindPlatformAdmin: AdminID and Capabilities are set; the actor has
//     no tenant and bypasses the tenant role matrix.
type Actor struct {
	Kind ActorKind

	// Employee fields
	EmployeeID string
	TenantID   string
	RoleID     string

	// Platform admin fields
	AdminID      string
	Capabilities Capabilities
}

// NewEmployeeActor constructs a tenant-scoped employee actor
func NewEmployeeActor(employeeID, tenantID, roleID string) *Actor {
	return &Actor{
		Kind:       ActorKindEmployee,
		EmployeeID: employeeID,
		TenantID:   tenantID,
		RoleID:     roleID,
	}
}

// NewPlatformAdminActor constructs a tenant-unscoped platform administrator
func NewPlatformAdminActor(adminID string, caps Capabilities) *Actor {
	return &Actor{
		Kind:         ActorKindPlatformAdmin,
		AdminID:      adminID,
		Capabilities: caps,
	}
}

// ID returns the identifier of the underlying principal
func (a *Actor) ID() string {
	if a.Kind == ActorKindPlatformAdmin {
		return a.AdminID
	}
	return a.EmployeeID
}

// IsPlatformAdmin reports whether the actor is a platform administrator
func (a *Actor) IsPlatformAdmin() bool {
	return a.Kind == ActorKindPlatformAdmin
}

// FromContext retrieves the resolved actor from the request context
func FromContext(ctx context.Context) (*Actor, bool) {
	actor, ok := ctx.Value(contextkeys.ActorKey).(*Actor)
	return actor, ok
}

// WithActor stores the resolved actor in the context
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return contextkeys.WithActor(ctx, actor)
}
