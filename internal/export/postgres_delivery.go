package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDeliveryRepository is a PostgreSQL DeliveryRepository. The api and
// worker processes share it: the worker seals packages, the api serves the
// downloads.
type PostgresDeliveryRepository struct {
	pool *pgxpool.Pool
}

var _ DeliveryRepository = (*PostgresDeliveryRepository)(nil)

// NewPostgresDeliveryRepository creates a new PostgreSQL-backed repository.
func NewPostgresDeliveryRepository(pool *pgxpool.Pool) *PostgresDeliveryRepository {
	return &PostgresDeliveryRepository{pool: pool}
}

func (r *PostgresDeliveryRepository) Put(ctx context.Context, d *Delivery) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO dsr_deliveries (request_id, token, file_path, digest, size_bytes, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (request_id) DO UPDATE SET
			token = EXCLUDED.token,
			file_path = EXCLUDED.file_path,
			digest = EXCLUDED.digest,
			size_bytes = EXCLUDED.size_bytes,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`,
		d.RequestID, d.Token, d.FilePath, d.Digest, d.SizeBytes, d.CreatedAt, d.ExpiresAt)
	if err != nil {
		return fmt.Errorf("storing delivery: %w", err)
	}
	return nil
}

func (r *PostgresDeliveryRepository) Get(ctx context.Context, requestID string) (*Delivery, error) {
	var d Delivery
	err := r.pool.QueryRow(ctx, `
		SELECT request_id, token, file_path, digest, size_bytes, created_at, expires_at
		FROM dsr_deliveries
		WHERE request_id = $1`, requestID).Scan(
		&d.RequestID, &d.Token, &d.FilePath, &d.Digest, &d.SizeBytes, &d.CreatedAt, &d.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("fetching delivery: %w", err)
	}
	return &d, nil
}

func (r *PostgresDeliveryRepository) Delete(ctx context.Context, requestID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM dsr_deliveries WHERE request_id = $1`, requestID)
	if err != nil {
		return fmt.Errorf("deleting delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}

func (r *PostgresDeliveryRepository) ListExpired(ctx context.Context, now time.Time) ([]*Delivery, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT request_id, token, file_path, digest, size_bytes, created_at, expires_at
		FROM dsr_deliveries
		WHERE expires_at < $1`, now)
	if err != nil {
		return nil, fmt.Errorf("listing expired deliveries: %w", err)
	}
	defer rows.Close()

	var out []*Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.RequestID, &d.Token, &d.FilePath, &d.Digest, &d.SizeBytes, &d.CreatedAt, &d.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scanning delivery: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}
