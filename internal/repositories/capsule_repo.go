package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaultik/capsulechain/internal/fault"
	"github.com/vaultik/capsulechain/internal/ledger"
	"github.com/vaultik/capsulechain/internal/models"
)

const capsuleColumns = `address, id, creator, owner, title, content, encrypted_url,
	          unlock_date, is_unlocked, mint, mint_creator, bump, version,
	          created_at, updated_at, transferred_at`

type PostgresCapsuleRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresCapsuleRepository(pool *pgxpool.Pool) *PostgresCapsuleRepository {
	return &PostgresCapsuleRepository{pool: pool}
}

// Create allocates the capsule's sequence id from the config counter and
// inserts the record in one transaction. The counter row update takes a row
// lock, so concurrent creates serialize and every capsule gets a unique id
// equal to the pre-increment counter value.
func (r *PostgresCapsuleRepository) Create(ctx context.Context, capsule *models.Capsule) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin create transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var total uint64
	err = tx.QueryRow(ctx,
		`UPDATE ledger_config SET total_capsules = total_capsules + 1, updated_at = NOW()
		 WHERE address = $1
		 RETURNING total_capsules`,
		ledger.ConfigAddress(),
	).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return fault.ErrConfigNotInitialized
	}
	if err != nil {
		return fmt.Errorf("failed to increment capsule counter: %w", err)
	}

	capsule.ID = total - 1
	capsule.Address, capsule.Bump = ledger.DeriveCapsuleAddress(capsule.Creator, capsule.ID)

	query := `INSERT INTO capsules (address, id, creator, owner, title, content, encrypted_url,
	              unlock_date, is_unlocked, mint, mint_creator, bump, version)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, NULL, NULL, $9, 1)
	          RETURNING version, created_at, updated_at`

	err = tx.QueryRow(ctx, query,
		capsule.Address,
		capsule.ID,
		capsule.Creator,
		capsule.Owner,
		capsule.Title,
		capsule.Content,
		capsule.EncryptedURL,
		capsule.UnlockDate,
		capsule.Bump,
	).Scan(&capsule.Version, &capsule.CreatedAt, &capsule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert capsule: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit capsule create: %w", err)
	}
	return nil
}

func (r *PostgresCapsuleRepository) GetByAddress(ctx context.Context, address string) (*models.Capsule, error) {
	query := `SELECT ` + capsuleColumns + ` FROM capsules WHERE address = $1`

	capsule, err := scanCapsule(r.pool.QueryRow(ctx, query, address))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.ErrCapsuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get capsule: %w", err)
	}
	return capsule, nil
}

func (r *PostgresCapsuleRepository) ListByOwner(ctx context.Context, owner string) ([]*models.Capsule, error) {
	query := `SELECT ` + capsuleColumns + ` FROM capsules WHERE owner = $1 ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query capsules: %w", err)
	}
	defer rows.Close()

	var capsules []*models.Capsule
	for rows.Next() {
		capsule, err := scanCapsule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan capsule: %w", err)
		}
		capsules = append(capsules, capsule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating capsules: %w", err)
	}
	return capsules, nil
}

// UpdateGuarded persists the in-memory capsule state with optimistic locking.
// The WHERE clause includes the version the caller read; if another writer
// committed in between, no row matches and the caller gets ErrStaleCapsule.
func (r *PostgresCapsuleRepository) UpdateGuarded(ctx context.Context, capsule *models.Capsule) error {
	query := `UPDATE capsules
	          SET owner = $1,
	              content = $2,
	              encrypted_url = $3,
	              unlock_date = $4,
	              is_unlocked = $5,
	              mint = $6,
	              mint_creator = $7,
	              transferred_at = $8,
	              version = version + 1,
	              updated_at = NOW()
	          WHERE address = $9 AND version = $10
	          RETURNING version, updated_at`

	err := r.pool.QueryRow(ctx, query,
		capsule.Owner,
		capsule.Content,
		capsule.EncryptedURL,
		capsule.UnlockDate,
		capsule.IsUnlocked,
		capsule.Mint,
		capsule.MintCreator,
		capsule.TransferredAt,
		capsule.Address,
		capsule.Version,
	).Scan(&capsule.Version, &capsule.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		// No rows updated = version mismatch = a concurrent writer won
		return fault.ErrStaleCapsule
	}
	if err != nil {
		return fmt.Errorf("failed to update capsule: %w", err)
	}
	return nil
}

func (r *PostgresCapsuleRepository) DeleteGuarded(ctx context.Context, capsule *models.Capsule) error {
	query := `DELETE FROM capsules WHERE address = $1 AND version = $2`

	result, err := r.pool.Exec(ctx, query, capsule.Address, capsule.Version)
	if err != nil {
		return fmt.Errorf("failed to delete capsule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fault.ErrStaleCapsule
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCapsule(row rowScanner) (*models.Capsule, error) {
	var capsule models.Capsule
	err := row.Scan(
		&capsule.Address,
		&capsule.ID,
		&capsule.Creator,
		&capsule.Owner,
		&capsule.Title,
		&capsule.Content,
		&capsule.EncryptedURL,
		&capsule.UnlockDate,
		&capsule.IsUnlocked,
		&capsule.Mint,
		&capsule.MintCreator,
		&capsule.Bump,
		&capsule.Version,
		&capsule.CreatedAt,
		&capsule.UpdatedAt,
		&capsule.TransferredAt,
	)
	if err != nil {
		return nil, err
	}
	return &capsule, nil
}
