package dsr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL request repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const requestColumns = `
	id, request_type, status, requester_email, user_id, regulation, details,
	verification_token, submitted_at, sla_days, sla_deadline,
	verified_at, completed_at, processed_by, admin_notes,
	ip_hash, user_agent_hash
`

// Create persists a new request.
func (r *PostgresRepository) Create(ctx context.Context, req *Request) error {
	query := `
		INSERT INTO dsr_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.pool.Exec(ctx, query,
		req.ID,
		req.Type,
		req.Status,
		req.RequesterEmail,
		req.UserID,
		req.Regulation,
		req.Details,
		req.VerificationToken,
		req.SubmittedAt,
		req.SLADays,
		req.SLADeadline,
		req.VerifiedAt,
		req.CompletedAt,
		req.ProcessedBy,
		req.AdminNotes,
		req.IPHash,
		req.UserAgentHash,
	)
	return err
}

// Get retrieves a request by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Request, error) {
	query := `SELECT ` + requestColumns + ` FROM dsr_requests WHERE id = $1`
	return r.scanRequest(r.pool.QueryRow(ctx, query, id))
}

// GetByVerificationToken retrieves a pending request by verification token.
// The status predicate enforces the single-use scope at the store layer.
func (r *PostgresRepository) GetByVerificationToken(ctx context.Context, token string) (*Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM dsr_requests
		WHERE verification_token = $1 AND status = $2
	`
	return r.scanRequest(r.pool.QueryRow(ctx, query, token, StatusPendingVerification))
}

// Update persists all mutable fields of an existing request.
func (r *PostgresRepository) Update(ctx context.Context, req *Request) error {
	query := `
		UPDATE dsr_requests
		SET status = $2, verified_at = $3, completed_at = $4,
		    processed_by = $5, admin_notes = $6
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		req.ID,
		req.Status,
		req.VerifiedAt,
		req.CompletedAt,
		req.ProcessedBy,
		req.AdminNotes,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// UpdateStatusIf atomically moves a request from expected to next using a
// conditional update, preserving the transition-legality invariant under
// concurrent workers. A non-nil completedAt lands in the same statement.
func (r *PostgresRepository) UpdateStatusIf(ctx context.Context, id string, expected, next Status, completedAt *time.Time) (*Request, error) {
	query := `
		UPDATE dsr_requests
		SET status = $3, completed_at = COALESCE($4, completed_at)
		WHERE id = $1 AND status = $2
		RETURNING ` + requestColumns

	return r.scanRequest(r.pool.QueryRow(ctx, query, id, expected, next, completedAt))
}

// List retrieves requests matching the filters, newest first.
func (r *PostgresRepository) List(ctx context.Context, filters ListFilters, limit, offset int) ([]*Request, error) {
	if limit <= 0 {
		limit = 50
	}

	var conditions []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Status != nil {
		conditions = append(conditions, "status = "+arg(*filters.Status))
	}
	if filters.Type != nil {
		conditions = append(conditions, "request_type = "+arg(*filters.Type))
	}
	if filters.Regulation != nil {
		conditions = append(conditions, "regulation = "+arg(*filters.Regulation))
	}
	if filters.OverdueOnly {
		conditions = append(conditions, "sla_deadline < now()")
	}

	query := `SELECT ` + requestColumns + ` FROM dsr_requests`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY submitted_at DESC LIMIT " + arg(limit) + " OFFSET " + arg(offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*Request
	for rows.Next() {
		req, err := r.scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// StatsBy counts requests grouped by status, type, or regulation.
func (r *PostgresRepository) StatsBy(ctx context.Context, column string) (map[string]int, error) {
	// Column names cannot be parameterized; restrict to the known set.
	var col string
	switch column {
	case "status":
		col = "status"
	case "type":
		col = "request_type"
	case "regulation":
		col = "regulation"
	default:
		return nil, errors.New("unsupported stats column: " + column)
	}

	rows, err := r.pool.Query(ctx, "SELECT "+col+", COUNT(*) FROM dsr_requests GROUP BY "+col)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		stats[key] = count
	}
	return stats, rows.Err()
}

// ScrubPII blanks the PII-bearing fields while retaining the record.
func (r *PostgresRepository) ScrubPII(ctx context.Context, id string) error {
	query := `
		UPDATE dsr_requests
		SET requester_email = '', user_id = NULL, details = '',
		    admin_notes = '', ip_hash = '', user_agent_hash = ''
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// scanRequest scans a request from a query result row.
func (r *PostgresRepository) scanRequest(row pgx.Row) (*Request, error) {
	var req Request

	err := row.Scan(
		&req.ID,
		&req.Type,
		&req.Status,
		&req.RequesterEmail,
		&req.UserID,
		&req.Regulation,
		&req.Details,
		&req.VerificationToken,
		&req.SubmittedAt,
		&req.SLADays,
		&req.SLADeadline,
		&req.VerifiedAt,
		&req.CompletedAt,
		&req.ProcessedBy,
		&req.AdminNotes,
		&req.IPHash,
		&req.UserAgentHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
