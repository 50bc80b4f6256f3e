package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/lib/pq"

	id "primegate/pkg/domain"
	"primegate/pkg/platform/sentinel"
)

// PostgresStore is the durable implementation of Store. The table name comes
// from configuration (the records collection namespace) and is validated to a
// bare identifier before being interpolated.
type PostgresStore struct {
	db    *sql.DB
	table string
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func NewPostgresStore(db *sql.DB, table string) (*PostgresStore, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid records table name %q", table)
	}
	return &PostgresStore{db: db, table: table}, nil
}

// Migrate creates the records table when it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			principal_id     TEXT PRIMARY KEY,
			email            TEXT NOT NULL UNIQUE,
			role             TEXT NOT NULL,
			approval_state   TEXT NOT NULL,
			created_at       TIMESTAMPTZ NOT NULL,
			last_modified_at TIMESTAMPTZ NOT NULL,
			version          BIGINT NOT NULL
		)`, s.table)
	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, principalID id.PrincipalID) (UserRecord, int64, error) {
	query := fmt.Sprintf(`
		SELECT principal_id, email, role, approval_state, created_at, last_modified_at, version
		FROM %s WHERE principal_id = $1`, s.table)
	return s.scanOne(s.db.QueryRowContext(ctx, query, principalID.String()))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (UserRecord, int64, error) {
	query := fmt.Sprintf(`
		SELECT principal_id, email, role, approval_state, created_at, last_modified_at, version
		FROM %s WHERE email = $1`, s.table)
	return s.scanOne(s.db.QueryRowContext(ctx, query, email))
}

func (s *PostgresStore) Create(ctx context.Context, record UserRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (principal_id, email, role, approval_state, created_at, last_modified_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, 1)`, s.table)
	_, err := s.db.ExecContext(ctx, query,
		record.PrincipalID.String(),
		record.Email,
		string(record.Role),
		string(record.ApprovalState),
		record.CreatedAt,
		record.LastModifiedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("insert user record: %w", err)
	}
	return nil
}

func (s *PostgresStore) PutIfVersion(ctx context.Context, record UserRecord, expectedVersion int64) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET email = $2, role = $3, approval_state = $4, last_modified_at = $5, version = version + 1
		WHERE principal_id = $1 AND version = $6
		RETURNING version`, s.table)

	var newVersion int64
	err := s.db.QueryRowContext(ctx, query,
		record.PrincipalID.String(),
		record.Email,
		string(record.Role),
		string(record.ApprovalState),
		record.LastModifiedAt,
		expectedVersion,
	).Scan(&newVersion)
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish a missing record from a lost race.
		var exists bool
		existsQuery := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE principal_id = $1)`, s.table)
		if checkErr := s.db.QueryRowContext(ctx, existsQuery, record.PrincipalID.String()).Scan(&exists); checkErr != nil {
			return 0, fmt.Errorf("check record existence: %w", checkErr)
		}
		if !exists {
			return 0, sentinel.ErrNotFound
		}
		return 0, sentinel.ErrVersionConflict
	}
	if err != nil {
		return 0, fmt.Errorf("conditional update: %w", err)
	}
	return newVersion, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]UserRecord, error) {
	query := fmt.Sprintf(`
		SELECT principal_id, email, role, approval_state, created_at, last_modified_at, version
		FROM %s ORDER BY created_at ASC, principal_id ASC`, s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list user records: %w", err)
	}
	defer rows.Close()

	var out []UserRecord
	for rows.Next() {
		var (
			record      UserRecord
			principalID string
			role        string
			state       string
			version     int64
		)
		if err := rows.Scan(&principalID, &record.Email, &role, &state,
			&record.CreatedAt, &record.LastModifiedAt, &version); err != nil {
			return nil, fmt.Errorf("scan user record: %w", err)
		}
		record.PrincipalID = id.PrincipalID(principalID)
		record.Role = Role(role)
		record.ApprovalState = ApprovalState(state)
		out = append(out, record)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountApprovedManagers(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE role = $1 AND approval_state = $2`, s.table)
	var count int
	if err := s.db.QueryRowContext(ctx, query, string(RoleManager), string(StateApproved)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count approved managers: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) scanOne(row *sql.Row) (UserRecord, int64, error) {
	var (
		record      UserRecord
		principalID string
		role        string
		state       string
		version     int64
	)
	err := row.Scan(&principalID, &record.Email, &role, &state, &record.CreatedAt, &record.LastModifiedAt, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRecord{}, 0, sentinel.ErrNotFound
	}
	if err != nil {
		return UserRecord{}, 0, fmt.Errorf("scan user record: %w", err)
	}
	record.PrincipalID = id.PrincipalID(principalID)
	// Enum validation happens at the read site (engine); the store hands back
	// whatever the row holds so corruption is reported, not masked.
	record.Role = Role(role)
	record.ApprovalState = ApprovalState(state)
	return record, version, nil
}
