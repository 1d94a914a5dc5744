package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL audit repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Append stores a new entry and returns its ID.
func (r *PostgresRepository) Append(ctx context.Context, entry *Entry) (string, error) {
	query := `
		INSERT INTO dsr_audit_log
			(id, request_id, action, actor_id, note, metadata, ip_hash, user_agent_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id string
	err := r.pool.QueryRow(ctx, query,
		entry.ID,
		entry.RequestID,
		entry.Action,
		entry.ActorID,
		entry.Note,
		entry.Metadata,
		entry.IPHash,
		entry.UserAgentHash,
		entry.CreatedAt,
	).Scan(&id)
	return id, err
}

// Query retrieves entries matching the filters, oldest first, along with the
// total match count before limit/offset.
func (r *PostgresRepository) Query(ctx context.Context, filters Filters) ([]*Entry, int, error) {
	var conditions []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.RequestID != "" {
		conditions = append(conditions, "request_id = "+arg(filters.RequestID))
	}
	if filters.Action != "" {
		conditions = append(conditions, "action = "+arg(filters.Action))
	}
	if filters.ActorID != "" {
		conditions = append(conditions, "actor_id = "+arg(filters.ActorID))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM dsr_audit_log"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, request_id, action, actor_id, note, metadata, ip_hash, user_agent_hash, created_at
		FROM dsr_audit_log` + where + `
		ORDER BY created_at ASC
		LIMIT ` + arg(limit) + ` OFFSET ` + arg(filters.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID,
			&e.RequestID,
			&e.Action,
			&e.ActorID,
			&e.Note,
			&e.Metadata,
			&e.IPHash,
			&e.UserAgentHash,
			&e.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		entries = append(entries, &e)
	}
	return entries, total, rows.Err()
}

// DeleteByRequest removes every entry for a request and returns the count.
func (r *PostgresRepository) DeleteByRequest(ctx context.Context, requestID string) (int, error) {
	tag, err := r.pool.Exec(ctx, "DELETE FROM dsr_audit_log WHERE request_id = $1", requestID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
