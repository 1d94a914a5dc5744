package userdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a new PostgreSQL-backed repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const accountColumns = `id, email, display_name, locale, anonymized, created_at, updated_at`

func (r *PostgresRepository) FindAccount(ctx context.Context, userID, email string) (*Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE id = $1`, accountColumns)
	arg := userID
	if userID == "" {
		query = fmt.Sprintf(`SELECT %s FROM accounts WHERE lower(email) = lower($1)`, accountColumns)
		arg = email
	}

	var a Account
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&a.ID, &a.Email, &a.DisplayName, &a.Locale, &a.Anonymized, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("finding account: %w", err)
	}
	return &a, nil
}

func (r *PostgresRepository) AnonymizeAccount(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET email = 'anonymized+' || id || '@invalid',
		    display_name = 'Deleted User',
		    locale = '',
		    anonymized = TRUE,
		    updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("anonymizing account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *PostgresRepository) ListCommentsByAuthor(ctx context.Context, authorID string) ([]Comment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, author_id, body, redacted, created_at
		FROM comments
		WHERE author_id = $1
		ORDER BY created_at`, authorID)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.AuthorID, &c.Body, &c.Redacted, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) RedactCommentsByAuthor(ctx context.Context, authorID string) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE comments
		SET body = '', redacted = TRUE
		WHERE author_id = $1 AND redacted = FALSE`, authorID)
	if err != nil {
		return 0, fmt.Errorf("redacting comments: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PostgresRepository) ListConsentsByUser(ctx context.Context, userID string) ([]ConsentRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, purpose, granted, recorded_at
		FROM consent_records
		WHERE user_id = $1
		ORDER BY recorded_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing consent records: %w", err)
	}
	defer rows.Close()

	var out []ConsentRecord
	for rows.Next() {
		var c ConsentRecord
		if err := rows.Scan(&c.ID, &c.UserID, &c.Purpose, &c.Granted, &c.RecordedAt); err != nil {
			return nil, fmt.Errorf("scanning consent record: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) DeleteConsentsByUser(ctx context.Context, userID string) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM consent_records WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("deleting consent records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
