package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pradumya004/Getmax-wfm-sub009/pkg/auth"
)

// Registry owns role definitions and their persistence. Role names are
// unique within the owning tenant; two tenants can both have a "Manager".
type Registry struct {
	db *sql.DB

	// OnRoleChanged is invoked after every successful mutation with the
	// tenant and role id. The permission cache registers its Invalidate
	// here so a mutation is visible on the next resolve.
	OnRoleChanged func(ctx context.Context, tenantID, roleID string)
}

// NewRegistry creates a role registry backed by db
func NewRegistry(db *sql.DB) *Registry {
	return &Registry{db: db}
}

// EnsureSchema creates the roles table if it doesn't exist
func (r *Registry) EnsureSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS roles (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		level INTEGER NOT NULL DEFAULT 0,
		permissions JSONB NOT NULL,
		capabilities JSONB NOT NULL,
		max_claims_per_day INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
		CONSTRAINT roles_tenant_name_unique UNIQUE (tenant_id, name)
	);

	CREATE INDEX IF NOT EXISTS idx_roles_tenant ON roles(tenant_id);
	`

	_, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to ensure roles table: %w", err)
	}
	return nil
}

const roleColumns = `id, tenant_id, name, level, permissions, capabilities, max_claims_per_day, is_active, created_at, updated_at`

// GetRole returns the role identified by roleID within tenantID
func (r *Registry) GetRole(ctx context.Context, tenantID, roleID string) (*Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE tenant_id = $1 AND id = $2`

	role, err := scanRole(r.db.QueryRowContext(ctx, query, tenantID, roleID))
	if err == sql.ErrNoRows {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// ListRoles returns all roles of a tenant ordered by level descending
func (r *Registry) ListRoles(ctx context.Context, tenantID string) ([]*Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE tenant_id = $1 ORDER BY level DESC, name ASC`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// UpsertRole validates spec and creates or updates the role, bumping its
// version marker. The bumped updated_at is the cache-invalidation signal.
func (r *Registry) UpsertRole(ctx context.Context, tenantID string, spec RoleSpec) (*Role, error) {
	if err := r.validateSpec(ctx, tenantID, &spec); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	role := &Role{
		ID:              spec.ID,
		TenantID:        tenantID,
		Name:            spec.Name,
		Level:           spec.Level,
		Permissions:     spec.Permissions.normalized(),
		Capabilities:    spec.Capabilities,
		MaxClaimsPerDay: spec.MaxClaimsPerDay,
		IsActive:        spec.IsActive,
		UpdatedAt:       now,
	}

	permissionsJSON, err := json.Marshal(role.Permissions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal permissions: %w", err)
	}
	capabilitiesJSON, err := json.Marshal(role.Capabilities)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal capabilities: %w", err)
	}

	if role.ID == "" {
		role.ID = uuid.NewString()
		role.CreatedAt = now

		query := `
			INSERT INTO roles (id, tenant_id, name, level, permissions, capabilities, max_claims_per_day, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		_, err = r.db.ExecContext(ctx, query,
			role.ID, role.TenantID, role.Name, role.Level,
			string(permissionsJSON), string(capabilitiesJSON),
			role.MaxClaimsPerDay, role.IsActive, role.CreatedAt, role.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert role: %w", err)
		}
	} else {
		query := `
			UPDATE roles
			SET name = $3, level = $4, permissions = $5, capabilities = $6,
			    max_claims_per_day = $7, is_active = $8, updated_at = $9
			WHERE tenant_id = $1 AND id = $2
			RETURNING created_at
		`
		err = r.db.QueryRowContext(ctx, query,
			tenantID, role.ID, role.Name, role.Level,
			string(permissionsJSON), string(capabilitiesJSON),
			role.MaxClaimsPerDay, role.IsActive, role.UpdatedAt,
		).Scan(&role.CreatedAt)
		if err == sql.ErrNoRows {
			return nil, ErrRoleNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update role: %w", err)
		}
	}

	r.notifyChanged(ctx, tenantID, role.ID)
	return role, nil
}

// DeactivateRole marks the role inactive without deleting it or its audit
// history. Entities referencing it keep functioning read-only until
// reassigned.
func (r *Registry) DeactivateRole(ctx context.Context, tenantID, roleID string) error {
	query := `
		UPDATE roles SET is_active = FALSE, updated_at = $3
		WHERE tenant_id = $1 AND id = $2
	`
	result, err := r.db.ExecContext(ctx, query, tenantID, roleID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to deactivate role: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to deactivate role: %w", err)
	}
	if affected == 0 {
		return ErrRoleNotFound
	}

	r.notifyChanged(ctx, tenantID, roleID)
	return nil
}

// SeedBuiltInRoles provisions the built-in role set for a tenant, skipping
// names that already exist.
func (r *Registry) SeedBuiltInRoles(ctx context.Context, tenantID string) error {
	existing, err := r.ListRoles(ctx, tenantID)
	if err != nil {
		return err
	}
	names := make(map[string]struct{}, len(existing))
	for _, role := range existing {
		names[role.Name] = struct{}{}
	}

	for _, spec := range BuiltInRoleSpecs() {
		if _, ok := names[spec.Name]; ok {
			continue
		}
		if _, err := r.UpsertRole(ctx, tenantID, spec); err != nil {
			return fmt.Errorf("failed to seed role %q: %w", spec.Name, err)
		}
	}
	return nil
}

// validateSpec enforces the role-write invariants
func (r *Registry) validateSpec(ctx context.Context, tenantID string, spec *RoleSpec) error {
	var violations []string

	if tenantID == "" {
		violations = append(violations, "tenant id is required")
	}
	if spec.Name == "" {
		violations = append(violations, "role name must be non-empty")
	}
	if spec.Level < 0 {
		violations = append(violations, "level must be a non-negative integer")
	}
	if spec.MaxClaimsPerDay < 0 {
		violations = append(violations, "maxClaimsPerDay must be non-negative")
	}
	for resource, actions := range spec.Permissions {
		if !KnownResource(resource) {
			violations = append(violations, fmt.Sprintf("unknown resource %q", resource))
		}
		for _, action := range actions {
			if !KnownAction(action) {
				violations = append(violations, fmt.Sprintf("unknown action %q on resource %q", action, resource))
			}
		}
	}

	// Name uniqueness is per tenant: the legacy global constraint blocked
	// two tenants from both naming a role "Manager".
	if spec.Name != "" && tenantID != "" {
		var existingID string
		query := `SELECT id FROM roles WHERE tenant_id = $1 AND lower(name) = lower($2)`
		err := r.db.QueryRowContext(ctx, query, tenantID, spec.Name).Scan(&existingID)
		switch {
		case err == sql.ErrNoRows:
			// name is free
		case err != nil:
			return fmt.Errorf("failed to check role name uniqueness: %w", err)
		case existingID != spec.ID:
			violations = append(violations, fmt.Sprintf("role name %q already exists in tenant", spec.Name))
		}
	}

	if len(violations) > 0 {
		return &InvalidRoleSpecError{Violations: violations}
	}
	return nil
}

func (r *Registry) notifyChanged(ctx context.Context, tenantID, roleID string) {
	if r.OnRoleChanged != nil {
		r.OnRoleChanged(ctx, tenantID, roleID)
	}
}

// scanRole scans a role from a database row
func scanRole(scanner interface {
	Scan(dest ...interface{}) error
}) (*Role, error) {
	var role Role
	var permissionsJSON, capabilitiesJSON string

	err := scanner.Scan(
		&role.ID,
		&role.TenantID,
		&role.Name,
		&role.Level,
		&permissionsJSON,
		&capabilitiesJSON,
		&role.MaxClaimsPerDay,
		&role.IsActive,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	role.Permissions = Matrix{}
	if permissionsJSON != "" {
		if err := json.Unmarshal([]byte(permissionsJSON), &role.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}
	role.Capabilities = auth.Capabilities{}
	if capabilitiesJSON != "" {
		if err := json.Unmarshal([]byte(capabilitiesJSON), &role.Capabilities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal capabilities: %w", err)
		}
	}

	return &role, nil
}
