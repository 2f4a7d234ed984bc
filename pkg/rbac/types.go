package rbac

import (
	"sort"
	"time"

	"github.com/pradumya004/Getmax-wfm-sub009/pkg/auth"
)

// Resource represents a resource type in the system
type Resource string

const (
	ResourceCompany    Resource = "company"
	ResourceEmployee   Resource = "employee"
	ResourceClient     Resource = "client"
	ResourceClaimTask  Resource = "claimtask"
	ResourceSOW        Resource = "sow"
	ResourcePatient    Resource = "patient"
	ResourcePayer      Resource = "payer"
	ResourceDepartment Resource = "department"
	ResourceRole       Resource = "role"
	ResourceReport     Resource = "report"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionCreate  Action = "create"
	ActionView    Action = "view"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionManage  Action = "manage"
	ActionApprove Action = "approve"
	ActionExport  Action = "export"
	ActionClaim   Action = "claim"
)

// knownResources and knownActions close the enumerations; a role spec
// referencing anything outside them is rejected at write time.
var knownResources = map[Resource]struct{}{
	ResourceCompany:    {},
	ResourceEmployee:   {},
	ResourceClient:     {},
	ResourceClaimTask:  {},
	ResourceSOW:        {},
	ResourcePatient:    {},
	ResourcePayer:      {},
	ResourceDepartment: {},
	ResourceRole:       {},
	ResourceReport:     {},
}

var knownActions = map[Action]struct{}{
	ActionCreate:  {},
	ActionView:    {},
	ActionUpdate:  {},
	ActionDelete:  {},
	ActionManage:  {},
	ActionApprove: {},
	ActionExport:  {},
	ActionClaim:   {},
}

// KnownResource reports whether r is part of the closed resource enumeration
func KnownResource(r Resource) bool {
	_, ok := knownResources[r]
	return ok
}

// KnownAction reports whether a is part of the closed action enumeration
func KnownAction(a Action) bool {
	_, ok := knownActions[a]
	return ok
}

// Matrix maps resources to the set of actions a role may perform on them
type Matrix map[Resource][]Action

// Grants reports whether the matrix explicitly grants action on resource
func (m Matrix) Grants(resource Resource, action Action) bool {
	for _, a := range m[resource] {
		if a == action {
			return true
		}
	}
	return false
}

// normalized returns a copy with deduplicated, sorted action lists so that
// equal matrices serialize byte-identically.
func (m Matrix) normalized() Matrix {
	out := make(Matrix, len(m))
	for resource, actions := range m {
		seen := make(map[Action]struct{}, len(actions))
		list := make([]Action, 0, len(actions))
		for _, a := range actions {
			if _, dup := seen[a]; dup {
				continue
			}
			seen[a] = struct{}{}
			list = append(list, a)
		}
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		out[resource] = list
	}
	return out
}

// Role is a named, versioned permission matrix owned by one tenant
type Role struct {
	ID              string            `json:"roleId"`
	TenantID        string            `json:"tenantId"`
	Name            string            `json:"roleName"`
	Level           int               `json:"roleLevel"`
	Permissions     Matrix            `json:"permissions"`
	Capabilities    auth.Capabilities `json:"capabilities"`
	MaxClaimsPerDay int               `json:"maxClaimsPerDay"`
	IsActive        bool              `json:"isActive"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// Version is the role's cache-invalidation marker. It is derived from
// UpdatedAt, which UpsertRole bumps on every mutation.
func (r *Role) Version() int64 {
	return r.UpdatedAt.UnixNano()
}

// RoleSpec is the write shape accepted by the registry
type RoleSpec struct {
	ID              string            `json:"roleId,omitempty"`
	Name            string            `json:"roleName"`
	Level           int               `json:"roleLevel"`
	Permissions     Matrix            `json:"permissions"`
	Capabilities    auth.Capabilities `json:"capabilities"`
	MaxClaimsPerDay int               `json:"maxClaimsPerDay"`
	IsActive        bool              `json:"isActive"`
}

// PermissionSet is the flattened, disposable view of a role served by the
// permission cache. It is never authoritative; it is always reconstructible
// from the registry.
type PermissionSet struct {
	TenantID        string            `json:"tenantId"`
	RoleID          string            `json:"roleId"`
	RoleName        string            `json:"roleName"`
	Level           int               `json:"roleLevel"`
	Grants          Matrix            `json:"grants"`
	Capabilities    auth.Capabilities `json:"capabilities"`
	MaxClaimsPerDay int               `json:"maxClaimsPerDay"`
	IsActive        bool              `json:"isActive"`
	Version         int64             `json:"version"`
}

// NewPermissionSet flattens a role into its cacheable view
func NewPermissionSet(role *Role) PermissionSet {
	return PermissionSet{
		TenantID:        role.TenantID,
		RoleID:          role.ID,
		RoleName:        role.Name,
		Level:           role.Level,
		Grants:          role.Permissions.normalized(),
		Capabilities:    role.Capabilities,
		MaxClaimsPerDay: role.MaxClaimsPerDay,
		IsActive:        role.IsActive,
		Version:         role.Version(),
	}
}

// Allows reports whether the set's matrix grants action on resource
func (s *PermissionSet) Allows(resource Resource, action Action) bool {
	return s.Grants.Grants(resource, action)
}

// BuiltInRoleSpecs returns the seed roles provisioned for a new tenant
func BuiltInRoleSpecs() []RoleSpec {
	return []RoleSpec{
		{
			Name:  "Tenant Admin",
			Level: 10,
			Permissions: Matrix{
				ResourceCompany:    {ActionView, ActionUpdate},
				ResourceEmployee:   {ActionCreate, ActionView, ActionUpdate, ActionDelete, ActionManage},
				ResourceClient:     {ActionCreate, ActionView, ActionUpdate, ActionDelete},
				ResourceClaimTask:  {ActionCreate, ActionView, ActionUpdate, ActionDelete, ActionManage, ActionApprove, ActionExport, ActionClaim},
				ResourceSOW:        {ActionCreate, ActionView, ActionUpdate, ActionDelete, ActionManage},
				ResourcePatient:    {ActionCreate, ActionView, ActionUpdate, ActionDelete},
				ResourcePayer:      {ActionCreate, ActionView, ActionUpdate, ActionDelete},
				ResourceDepartment: {ActionCreate, ActionView, ActionUpdate, ActionDelete},
				ResourceRole:       {ActionCreate, ActionView, ActionUpdate, ActionDelete, ActionManage},
				ResourceReport:     {ActionView, ActionExport},
			},
			Capabilities: auth.Capabilities{
				CanManageAllEmployees: true,
				CanConfigureSOWs:      true,
				CanViewFinancials:     true,
				CanExportData:         true,
				CanApproveWork:        true,
			},
			IsActive: true,
		},
		{
			Name:  "Claims Manager",
			Level: 5,
			Permissions: Matrix{
				ResourceEmployee:  {ActionView},
				ResourceClient:    {ActionView},
				ResourceClaimTask: {ActionCreate, ActionView, ActionUpdate, ActionManage, ActionApprove, ActionClaim},
				ResourceSOW:       {ActionView},
				ResourcePatient:   {ActionView, ActionUpdate},
				ResourcePayer:     {ActionView},
				ResourceReport:    {ActionView},
			},
			Capabilities: auth.Capabilities{
				CanApproveWork:    true,
				CanViewFinancials: true,
			},
			IsActive: true,
		},
		{
			Name:  "Claims Processor",
			Level: 2,
			Permissions: Matrix{
				ResourceClaimTask: {ActionView, ActionUpdate, ActionClaim},
				ResourcePatient:   {ActionView},
				ResourcePayer:     {ActionView},
				ResourceSOW:       {ActionView},
			},
			MaxClaimsPerDay: 50,
			IsActive:        true,
		},
		{
			Name:  "QA Auditor",
			Level: 4,
			Permissions: Matrix{
				ResourceClaimTask: {ActionView, ActionApprove},
				ResourceEmployee:  {ActionView},
				ResourcePatient:   {ActionView},
				ResourceReport:    {ActionView},
			},
			Capabilities: auth.Capabilities{
				CanApproveWork:    true,
				CanViewFinancials: true,
			},
			IsActive: true,
		},
		{
			Name:  "Viewer",
			Level: 1,
			Permissions: Matrix{
				ResourceClaimTask: {ActionView},
				ResourceClient:    {ActionView},
				ResourceSOW:       {ActionView},
			},
			IsActive: true,
		},
	}
}
