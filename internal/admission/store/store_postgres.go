package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"civicflow/internal/admission/models"
	id "civicflow/pkg/domain"
	"civicflow/pkg/platform/sentinel"
	txcontext "civicflow/pkg/platform/tx"
)

// PostgresRequests persists role requests. Decide is a conditional UPDATE on
// status = pending, so two reviewers racing on the same request produce one
// decision. InTx stretches one transaction around a decision and the audit
// append that records it.
type PostgresRequests struct {
	db *sql.DB
}

func NewPostgresRequests(db *sql.DB) *PostgresRequests {
	return &PostgresRequests{db: db}
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresRequests) execer(ctx context.Context) dbtx {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// InTx opens one transaction, stashes it in the context for every store that
// joins via pkg/platform/tx, and commits when fn returns nil. An error from fn
// rolls everything back. Nested calls reuse the outer transaction.
func (s *PostgresRequests) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresRequests) Create(ctx context.Context, request *models.RoleRequest) error {
	query := `
		INSERT INTO role_requests
			(id, user_id, user_email, role, organization_id, justification, status, reason, created_at, decided_at, decided_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(request.ID),
		uuid.UUID(request.UserID),
		request.UserEmail,
		string(request.Role),
		uuid.UUID(request.OrganizationID),
		request.Justification,
		string(request.Status),
		request.Reason,
		request.CreatedAt,
		nullTime(request.DecidedAt),
		request.DecidedBy,
	)
	if err != nil {
		return fmt.Errorf("insert role request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert role request: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *PostgresRequests) Get(ctx context.Context, requestID id.RequestID) (*models.RoleRequest, error) {
	row := s.execer(ctx).QueryRowContext(ctx, selectRequest+` WHERE id = $1`, uuid.UUID(requestID))
	request, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return request, err
}

func (s *PostgresRequests) ListByStatus(ctx context.Context, status models.RequestStatus) ([]*models.RoleRequest, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, selectRequest+` WHERE status = $1 ORDER BY created_at`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list role requests: %w", err)
	}
	defer rows.Close()

	var out []*models.RoleRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role requests: %w", err)
	}
	return out, nil
}

func (s *PostgresRequests) Decide(ctx context.Context, requestID id.RequestID, status models.RequestStatus, decidedBy, reason string, decidedAt time.Time) (*models.RoleRequest, error) {
	query := `
		UPDATE role_requests
		SET status = $1, decided_by = $2, reason = $3, decided_at = $4
		WHERE id = $5 AND status = $6
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		string(status),
		decidedBy,
		reason,
		decidedAt,
		uuid.UUID(requestID),
		string(models.StatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("decide role request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("decide role request: %w", err)
	}
	if affected == 0 {
		// Distinguish missing request from already-decided.
		if _, err := s.Get(ctx, requestID); err != nil {
			return nil, err
		}
		return nil, sentinel.ErrInvalidState
	}
	return s.Get(ctx, requestID)
}

const selectRequest = `
	SELECT id, user_id, user_email, role, organization_id, justification, status, reason, created_at, decided_at, decided_by
	FROM role_requests
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.RoleRequest, error) {
	var (
		request   models.RoleRequest
		requestID uuid.UUID
		userID    uuid.UUID
		orgID     uuid.UUID
		role      string
		status    string
		decidedAt sql.NullTime
	)
	err := row.Scan(
		&requestID,
		&userID,
		&request.UserEmail,
		&role,
		&orgID,
		&request.Justification,
		&status,
		&request.Reason,
		&request.CreatedAt,
		&decidedAt,
		&request.DecidedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan role request: %w", err)
	}
	request.ID = id.RequestID(requestID)
	request.UserID = id.UserID(userID)
	request.OrganizationID = id.OrganizationID(orgID)
	request.Role = id.Role(role)
	request.Status = models.RequestStatus(status)
	if decidedAt.Valid {
		at := decidedAt.Time
		request.DecidedAt = &at
	}
	return &request, nil
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}

// PostgresAllowLists reads organization allow-lists maintained by the
// surrounding platform.
type PostgresAllowLists struct {
	db *sql.DB
}

func NewPostgresAllowLists(db *sql.DB) *PostgresAllowLists {
	return &PostgresAllowLists{db: db}
}

func (s *PostgresAllowLists) DomainsFor(ctx context.Context, orgID id.OrganizationID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT domain FROM organization_allowed_domains WHERE organization_id = $1 ORDER BY domain`,
		uuid.UUID(orgID),
	)
	if err != nil {
		return nil, fmt.Errorf("list allowed domains: %w", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, fmt.Errorf("scan allowed domain: %w", err)
		}
		domains = append(domains, domain)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate allowed domains: %w", err)
	}
	return domains, nil
}
