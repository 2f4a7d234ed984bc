package rbac

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nameCheckQuery = `SELECT id FROM roles WHERE tenant_id = $1 AND lower(name) = lower($2)`

func newRegistry(t *testing.T) (*Registry, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRegistry(db), mock
}

func TestUpsertRole_RejectsInvalidSpec(t *testing.T) {
	registry, _ := newRegistry(t)

	// Violations are collected, not returned one at a time
	_, err := registry.UpsertRole(context.Background(), "tenant-1", RoleSpec{
		Name:            "",
		Level:           -1,
		MaxClaimsPerDay: -5,
	})
	require.Error(t, err)
	assert.True(t, IsInvalidRoleSpec(err))
	assert.Contains(t, err.Error(), "role name must be non-empty")
	assert.Contains(t, err.Error(), "level must be a non-negative integer")
	assert.Contains(t, err.Error(), "maxClaimsPerDay must be non-negative")
}

func TestUpsertRole_RejectsUnknownResourceAndAction(t *testing.T) {
	registry, mock := newRegistry(t)

	mock.ExpectQuery(regexp.QuoteMeta(nameCheckQuery)).
		WithArgs("tenant-1", "Broken").
		WillReturnError(sql.ErrNoRows)

	_, err := registry.UpsertRole(context.Background(), "tenant-1", RoleSpec{
		Name: "Broken",
		Permissions: Matrix{
			"spaceship":       {ActionView},
			ResourceClaimTask: {"teleport"},
		},
	})
	require.Error(t, err)
	assert.True(t, IsInvalidRoleSpec(err))
	assert.Contains(t, err.Error(), `unknown resource "spaceship"`)
	assert.Contains(t, err.Error(), `unknown action "teleport"`)
}

func TestUpsertRole_RejectsDuplicateNameInTenant(t *testing.T) {
	registry, mock := newRegistry(t)

	mock.ExpectQuery(regexp.QuoteMeta(nameCheckQuery)).
		WithArgs("tenant-1", "Manager").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("role-other"))

	_, err := registry.UpsertRole(context.Background(), "tenant-1", RoleSpec{Name: "Manager"})
	require.Error(t, err)
	assert.True(t, IsInvalidRoleSpec(err))
	assert.Contains(t, err.Error(), `role name "Manager" already exists in tenant`)
}

func TestUpsertRole_UpdateKeepsOwnName(t *testing.T) {
	registry, mock := newRegistry(t)

	// The uniqueness check must not trip on the role's own row
	mock.ExpectQuery(regexp.QuoteMeta(nameCheckQuery)).
		WithArgs("tenant-1", "Manager").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("role-1"))
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE roles`)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now().UTC()))

	role, err := registry.UpsertRole(context.Background(), "tenant-1", RoleSpec{
		ID:       "role-1",
		Name:     "Manager",
		IsActive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "role-1", role.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRole_InsertNotifiesChange(t *testing.T) {
	registry, mock := newRegistry(t)

	var notifiedTenant, notifiedRole string
	registry.OnRoleChanged = func(ctx context.Context, tenantID, roleID string) {
		notifiedTenant, notifiedRole = tenantID, roleID
	}

	mock.ExpectQuery(regexp.QuoteMeta(nameCheckQuery)).
		WithArgs("tenant-1", "New Role").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO roles`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	role, err := registry.UpsertRole(context.Background(), "tenant-1", RoleSpec{
		Name:     "New Role",
		IsActive: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, role.ID)
	assert.Equal(t, "tenant-1", notifiedTenant)
	assert.Equal(t, role.ID, notifiedRole)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRole_NotFound(t *testing.T) {
	registry, mock := newRegistry(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+roleColumns+` FROM roles WHERE tenant_id = $1 AND id = $2`)).
		WithArgs("tenant-1", "role-missing").
		WillReturnError(sql.ErrNoRows)

	_, err := registry.GetRole(context.Background(), "tenant-1", "role-missing")
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

func TestDeactivateRole(t *testing.T) {
	registry, mock := newRegistry(t)

	var notified bool
	registry.OnRoleChanged = func(ctx context.Context, tenantID, roleID string) { notified = true }

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE roles SET is_active = FALSE`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, registry.DeactivateRole(context.Background(), "tenant-1", "role-1"))
	assert.True(t, notified)
}

func TestDeactivateRole_NotFound(t *testing.T) {
	registry, mock := newRegistry(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE roles SET is_active = FALSE`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := registry.DeactivateRole(context.Background(), "tenant-1", "role-missing")
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

func TestBuiltInRoleSpecs_Valid(t *testing.T) {
	for _, spec := range BuiltInRoleSpecs() {
		assert.NotEmpty(t, spec.Name)
		assert.True(t, spec.IsActive)
		for resource, actions := range spec.Permissions {
			assert.True(t, KnownResource(resource), "resource %q", resource)
			for _, action := range actions {
				assert.True(t, KnownAction(action), "action %q", action)
			}
		}
	}
}
