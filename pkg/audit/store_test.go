package audit

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pradumya004/Getmax-wfm-sub009/pkg/auth"
)

func newStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := NewStore(db)
	require.NoError(t, err)
	return store, mock
}

func TestStoreInsert(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := NewEntry(auth.NewEmployeeActor("emp-1", "tenant-1", "role-1"),
		EntityClaimTask, "claim-1", ActionUpdate).
		WithSnapshots(map[string]interface{}{"status": "open"}, map[string]interface{}{"status": "closed"}).
		WithRequest("/claims/claim-1", "PUT", "10.0.0.1", "test-agent")

	require.NoError(t, store.Insert(context.Background(), entry))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSearch_TenantAndTime(t *testing.T) {
	store, mock := newStore(t)
	now := time.Now().UTC()
	from := now.Add(-time.Hour)

	cols := []string{
		"log_id", "tenant_id", "actor_id", "actor_kind",
		"entity_type", "entity_id", "action",
		"before", "after",
		"endpoint", "method", "client_ip", "user_agent",
		"success", "error_message", "created_at",
	}
	rows := sqlmock.NewRows(cols).
		AddRow("log-2", "tenant-1", "emp-1", "employee",
			"ClaimTask", "claim-2", "UPDATE",
			[]byte(`{"status":"open"}`), []byte(`{"status":"closed"}`),
			"/claims/claim-2", "PUT", "10.0.0.1", "agent",
			true, nil, now).
		AddRow("log-1", "tenant-1", "emp-1", "employee",
			"ClaimTask", "claim-1", "CREATE",
			nil, []byte(`{"status":"open"}`),
			"/claims", "POST", "10.0.0.1", "agent",
			true, nil, now.Add(-time.Minute))

	mock.ExpectQuery("SELECT(.+)FROM audit_logs").
		WithArgs("tenant-1", from, 50).
		WillReturnRows(rows)

	entries, err := store.Search(context.Background(), SearchFilter{
		TenantID: "tenant-1",
		From:     &from,
		Limit:    50,
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "log-2", entries[0].LogID)
	assert.Equal(t, "closed", entries[0].After["status"])
	assert.Nil(t, entries[1].Before)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSearch_ActorAndAction(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectQuery("SELECT(.+)FROM audit_logs").
		WithArgs("emp-1", "DELETE").
		WillReturnRows(sqlmock.NewRows([]string{
			"log_id", "tenant_id", "actor_id", "actor_kind",
			"entity_type", "entity_id", "action",
			"before", "after",
			"endpoint", "method", "client_ip", "user_agent",
			"success", "error_message", "created_at",
		}))

	entries, err := store.Search(context.Background(), SearchFilter{
		ActorID: "emp-1",
		Action:  ActionDelete,
	})
	require.NoError(t, err)
	assert.Empty(t, entries)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetStats(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_logs`).
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))
	mock.ExpectQuery(`SELECT action, COUNT\(\*\) FROM audit_logs`).
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"action", "count"}).
			AddRow("CREATE", 10).
			AddRow("UPDATE", 30).
			AddRow("DELETE", 2))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_logs(.+)success = FALSE`).
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`SELECT COUNT\(DISTINCT actor_id\) FROM audit_logs`).
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	stats, err := store.GetStats(context.Background(), "tenant-1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), stats.TotalEntries)
	assert.Equal(t, int64(30), stats.ByAction[ActionUpdate])
	assert.Equal(t, int64(3), stats.FailedEntries)
	assert.Equal(t, int64(7), stats.UniqueActors)
	require.NoError(t, mock.ExpectationsWereMet())
}
