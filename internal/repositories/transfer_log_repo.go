package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaultik/capsulechain/internal/models"
)

// PostgresTransferLogRepository is the append-only log of committed transfer
// legs. It backs saga resume: a capsule leg with no matching asset leg marks
// a combined transfer that still owes its asset move.
type PostgresTransferLogRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresTransferLogRepository(pool *pgxpool.Pool) *PostgresTransferLogRepository {
	return &PostgresTransferLogRepository{pool: pool}
}

func (r *PostgresTransferLogRepository) Append(ctx context.Context, record *models.TransferRecord) error {
	query := `INSERT INTO transfer_records (id, capsule_addr, from_owner, to_owner, mint, leg, signature)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		record.ID,
		record.CapsuleAddr,
		record.FromOwner,
		record.ToOwner,
		record.Mint,
		record.Leg,
		record.Signature,
	).Scan(&record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append transfer record: %w", err)
	}
	return nil
}

func (r *PostgresTransferLogRepository) ListByCapsule(ctx context.Context, capsuleAddr string) ([]*models.TransferRecord, error) {
	query := `SELECT id, capsule_addr, from_owner, to_owner, mint, leg, signature, created_at
	          FROM transfer_records
	          WHERE capsule_addr = $1
	          ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, capsuleAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer records: %w", err)
	}
	defer rows.Close()

	var records []*models.TransferRecord
	for rows.Next() {
		var record models.TransferRecord
		err := rows.Scan(
			&record.ID,
			&record.CapsuleAddr,
			&record.FromOwner,
			&record.ToOwner,
			&record.Mint,
			&record.Leg,
			&record.Signature,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer record: %w", err)
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transfer records: %w", err)
	}
	return records, nil
}
