package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Sink is the persistence target the Recorder drains into
type Sink interface {
	Insert(ctx context.Context, entry *Entry) error
}

// Store persists audit entries in PostgreSQL. Append-only: the only
// statements this type issues are INSERT and SELECT.
type Store struct {
	db *sql.DB
}

// NewStore creates a store and ensures the audit_logs table exists
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	store := &Store{db: db}
	if err := store.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_logs table: %w", err)
	}
	return store, nil
}

// ensureTable creates the audit_logs table if it doesn't exist
func (s *Store) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_logs (
		log_id TEXT PRIMARY KEY,
		tenant_id TEXT,
		actor_id TEXT NOT NULL,
		actor_kind VARCHAR(20) NOT NULL,
		entity_type VARCHAR(50) NOT NULL,
		entity_id TEXT NOT NULL,
		action VARCHAR(10) NOT NULL,
		before JSONB,
		after JSONB,
		endpoint TEXT,
		method VARCHAR(10),
		client_ip VARCHAR(45),
		user_agent TEXT,
		success BOOLEAN NOT NULL,
		error_message TEXT,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	-- Indexes for the two supported query shapes
	CREATE INDEX IF NOT EXISTS idx_audit_logs_tenant_time ON audit_logs(tenant_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_actor_action_time ON audit_logs(actor_id, action, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_entity ON audit_logs(entity_type, entity_id);
	`

	_, err := s.db.Exec(query)
	return err
}

// Insert appends an entry. There is no corresponding update or delete.
func (s *Store) Insert(ctx context.Context, entry *Entry) error {
	entry.normalize()

	var beforeJSON, afterJSON []byte
	var err error

	if entry.Before != nil {
		beforeJSON, err = json.Marshal(entry.Before)
		if err != nil {
			return fmt.Errorf("failed to marshal before snapshot: %w", err)
		}
	}
	if entry.After != nil {
		afterJSON, err = json.Marshal(entry.After)
		if err != nil {
			return fmt.Errorf("failed to marshal after snapshot: %w", err)
		}
	}

	query := `
		INSERT INTO audit_logs (
			log_id, tenant_id, actor_id, actor_kind,
			entity_type, entity_id, action,
			before, after,
			endpoint, method, client_ip, user_agent,
			success, error_message, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9,
			$10, $11, $12, $13,
			$14, $15, $16
		)
	`

	_, err = s.db.ExecContext(ctx, query,
		entry.LogID, nullable(entry.TenantID), entry.ActorID, entry.ActorKind,
		entry.EntityType, entry.EntityID, entry.Action,
		nullableBytes(beforeJSON), nullableBytes(afterJSON),
		nullable(entry.Endpoint), nullable(entry.Method), nullable(entry.ClientIP), nullable(entry.UserAgent),
		entry.Success, nullable(entry.ErrorMessage), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// Search returns entries matching filter, newest first
func (s *Store) Search(ctx context.Context, filter SearchFilter) ([]*Entry, error) {
	query := `
		SELECT
			log_id, tenant_id, actor_id, actor_kind,
			entity_type, entity_id, action,
			before, after,
			endpoint, method, client_ip, user_agent,
			success, error_message, created_at
		FROM audit_logs
		WHERE 1=1
	`

	args := []interface{}{}
	argCount := 1

	if filter.TenantID != "" {
		query += fmt.Sprintf(" AND tenant_id = $%d", argCount)
		args = append(args, filter.TenantID)
		argCount++
	}
	if filter.ActorID != "" {
		query += fmt.Sprintf(" AND actor_id = $%d", argCount)
		args = append(args, filter.ActorID)
		argCount++
	}
	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argCount)
		args = append(args, string(filter.Action))
		argCount++
	}
	if filter.EntityType != "" {
		query += fmt.Sprintf(" AND entity_type = $%d", argCount)
		args = append(args, string(filter.EntityType))
		argCount++
	}
	if filter.EntityID != "" {
		query += fmt.Sprintf(" AND entity_id = $%d", argCount)
		args = append(args, filter.EntityID)
		argCount++
	}
	if filter.From != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argCount)
		args = append(args, *filter.From)
		argCount++
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argCount)
		args = append(args, *filter.To)
		argCount++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
		argCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit logs: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit logs: %w", err)
	}

	return entries, nil
}

// GetStats summarizes a tenant's entries over a time range
func (s *Store) GetStats(ctx context.Context, tenantID string, from, to *time.Time) (*Stats, error) {
	stats := &Stats{
		ByAction: make(map[Action]int64),
	}

	whereClause := "WHERE tenant_id = $1"
	args := []interface{}{tenantID}
	argCount := 2

	if from != nil {
		whereClause += fmt.Sprintf(" AND created_at >= $%d", argCount)
		args = append(args, *from)
		argCount++
	}
	if to != nil {
		whereClause += fmt.Sprintf(" AND created_at <= $%d", argCount)
		args = append(args, *to)
	}

	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM audit_logs %s", whereClause), args...,
	).Scan(&stats.TotalEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to get total entries: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT action, COUNT(*) FROM audit_logs %s GROUP BY action", whereClause), args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries by action: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var action Action
		var count int64
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		stats.ByAction[action] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM audit_logs %s AND success = FALSE", whereClause), args...,
	).Scan(&stats.FailedEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed entries: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(DISTINCT actor_id) FROM audit_logs %s", whereClause), args...,
	).Scan(&stats.UniqueActors)
	if err != nil {
		return nil, fmt.Errorf("failed to get unique actors: %w", err)
	}

	return stats, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

// scanEntry scans an entry from a database row
func scanEntry(scanner interface {
	Scan(dest ...interface{}) error
}) (*Entry, error) {
	var entry Entry
	var tenantID, endpoint, method, clientIP, userAgent, errorMessage sql.NullString
	var beforeJSON, afterJSON []byte

	err := scanner.Scan(
		&entry.LogID, &tenantID, &entry.ActorID, &entry.ActorKind,
		&entry.EntityType, &entry.EntityID, &entry.Action,
		&beforeJSON, &afterJSON,
		&endpoint, &method, &clientIP, &userAgent,
		&entry.Success, &errorMessage, &entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.TenantID = tenantID.String
	entry.Endpoint = endpoint.String
	entry.Method = method.String
	entry.ClientIP = clientIP.String
	entry.UserAgent = userAgent.String
	entry.ErrorMessage = errorMessage.String

	if len(beforeJSON) > 0 {
		if err := json.Unmarshal(beforeJSON, &entry.Before); err != nil {
			return nil, fmt.Errorf("failed to unmarshal before snapshot: %w", err)
		}
	}
	if len(afterJSON) > 0 {
		if err := json.Unmarshal(afterJSON, &entry.After); err != nil {
			return nil, fmt.Errorf("failed to unmarshal after snapshot: %w", err)
		}
	}

	return &entry, nil
}
