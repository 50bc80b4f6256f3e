package audit

import (
	"context"
	"database/sql"
	"fmt"

	id "primegate/pkg/domain"
	"primegate/internal/records"

	"github.com/google/uuid"
)

// PostgresStore is the durable audit store. The table carries no updated_at
// and the store issues no UPDATE or DELETE; append-only is enforced by the
// surface, not by convention.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the audit table when it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_entries (
			id                      UUID PRIMARY KEY,
			actor_principal_id      TEXT NOT NULL,
			target_principal_id     TEXT NOT NULL,
			previous_role           TEXT NOT NULL,
			new_role                TEXT NOT NULL,
			previous_approval_state TEXT NOT NULL,
			new_approval_state      TEXT NOT NULL,
			timestamp               TIMESTAMPTZ NOT NULL,
			request_id              TEXT NOT NULL DEFAULT ''
		)`)
	return err
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (
			id, actor_principal_id, target_principal_id,
			previous_role, new_role, previous_approval_state, new_approval_state,
			timestamp, request_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(entry.ID),
		entry.ActorPrincipalID.String(),
		entry.TargetPrincipalID.String(),
		string(entry.PreviousRole),
		string(entry.NewRole),
		string(entry.PreviousApprovalState),
		string(entry.NewApprovalState),
		entry.Timestamp,
		entry.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT id, actor_principal_id, target_principal_id,
		       previous_role, new_role, previous_approval_state, new_approval_state,
		       timestamp, request_id
		FROM audit_entries
		WHERE ($1 = '' OR target_principal_id = $1)
		  AND ($2 = '' OR actor_principal_id = $2)
		  AND ($3::timestamptz IS NULL OR timestamp >= $3)
		  AND ($4::timestamptz IS NULL OR timestamp <= $4)
		ORDER BY timestamp ASC`

	var since, until any
	if !filter.Since.IsZero() {
		since = filter.Since
	}
	if !filter.Until.IsZero() {
		until = filter.Until
	}

	rows, err := s.db.QueryContext(ctx, query,
		filter.TargetPrincipalID.String(),
		filter.ActorPrincipalID.String(),
		since,
		until,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var entryID uuid.UUID
		var actor, target string
		var prevRole, newRole, prevState, newState string
		if err := rows.Scan(&entryID, &actor, &target,
			&prevRole, &newRole, &prevState, &newState,
			&entry.Timestamp, &entry.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.ID = id.EntryID(entryID)
		entry.ActorPrincipalID = id.PrincipalID(actor)
		entry.TargetPrincipalID = id.PrincipalID(target)
		entry.PreviousRole = records.Role(prevRole)
		entry.NewRole = records.Role(newRole)
		entry.PreviousApprovalState = records.ApprovalState(prevState)
		entry.NewApprovalState = records.ApprovalState(newState)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
