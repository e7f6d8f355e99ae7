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

type PostgresConfigRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresConfigRepository(pool *pgxpool.Pool) *PostgresConfigRepository {
	return &PostgresConfigRepository{pool: pool}
}

// Initialize creates the config singleton at its fixed address. The primary
// key makes the one-time guard authoritative: a second initialization inserts
// nothing and fails with ErrAlreadyInitialized.
func (r *PostgresConfigRepository) Initialize(ctx context.Context, authority string) (*models.LedgerConfig, error) {
	query := `INSERT INTO ledger_config (address, authority, total_capsules, version)
	          VALUES ($1, $2, 0, 1)
	          ON CONFLICT (address) DO NOTHING
	          RETURNING authority, total_capsules, version, created_at, updated_at`

	var config models.LedgerConfig
	err := r.pool.QueryRow(ctx, query, ledger.ConfigAddress(), authority).Scan(
		&config.Authority,
		&config.TotalCapsules,
		&config.Version,
		&config.CreatedAt,
		&config.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.ErrAlreadyInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}
	return &config, nil
}

func (r *PostgresConfigRepository) Get(ctx context.Context) (*models.LedgerConfig, error) {
	query := `SELECT authority, total_capsules, version, created_at, updated_at
	          FROM ledger_config WHERE address = $1`

	var config models.LedgerConfig
	err := r.pool.QueryRow(ctx, query, ledger.ConfigAddress()).Scan(
		&config.Authority,
		&config.TotalCapsules,
		&config.Version,
		&config.CreatedAt,
		&config.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.ErrConfigNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}
	return &config, nil
}
