package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	MaxConns        = 10
	MinConns        = 2
	MaxConnLifetime = 10 * time.Minute
	MaxConnIdleTime = 5 * time.Minute
)

func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing postgres config: %w", err)
	}

	// Configure the pool
	config.MaxConns = MaxConns
	config.MinConns = MinConns
	config.MaxConnLifetime = MaxConnLifetime
	config.MaxConnIdleTime = MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error creating postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging postgres pool: %w", err)
	}

	return pool, nil
}

// schema is the full table layout. EnsureSchema is idempotent so the server
// can bootstrap an empty database at startup.
const schema = `
CREATE TABLE IF NOT EXISTS ledger_config (
    address        TEXT PRIMARY KEY,
    authority      TEXT NOT NULL,
    total_capsules BIGINT NOT NULL DEFAULT 0,
    version        SMALLINT NOT NULL DEFAULT 1,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS capsules (
    address        TEXT PRIMARY KEY,
    id             BIGINT NOT NULL,
    creator        TEXT NOT NULL,
    owner          TEXT NOT NULL,
    title          TEXT NOT NULL,
    content        TEXT NOT NULL,
    encrypted_url  TEXT,
    unlock_date    TIMESTAMPTZ NOT NULL,
    is_unlocked    BOOLEAN NOT NULL DEFAULT FALSE,
    mint           TEXT,
    mint_creator   TEXT,
    bump           SMALLINT NOT NULL,
    version        BIGINT NOT NULL DEFAULT 1,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    transferred_at TIMESTAMPTZ,
    UNIQUE (creator, id)
);

CREATE INDEX IF NOT EXISTS idx_capsules_owner ON capsules (owner);

CREATE TABLE IF NOT EXISTS transfer_records (
    id           TEXT PRIMARY KEY,
    capsule_addr TEXT NOT NULL,
    from_owner   TEXT NOT NULL,
    to_owner     TEXT NOT NULL,
    mint         TEXT,
    leg          TEXT NOT NULL,
    signature    TEXT NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_transfer_records_capsule ON transfer_records (capsule_addr, created_at);
`

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("error creating schema: %w", err)
	}
	return nil
}
