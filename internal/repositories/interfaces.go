package repositories

import (
	"context"

	"github.com/vaultik/capsulechain/internal/models"
)

type ConfigRepository interface {
	// Initialize creates the singleton config record. Calling it a second
	// time fails; the record is never destroyed afterwards.
	Initialize(ctx context.Context, authority string) (*models.LedgerConfig, error)
	Get(ctx context.Context) (*models.LedgerConfig, error)
}

type CapsuleRepository interface {
	// Create allocates the next sequence id from the config counter and
	// inserts the capsule in the same transaction, so the counter and the
	// record can never drift apart.
	Create(ctx context.Context, capsule *models.Capsule) error
	GetByAddress(ctx context.Context, address string) (*models.Capsule, error)
	ListByOwner(ctx context.Context, owner string) ([]*models.Capsule, error)
	// UpdateGuarded persists a mutated capsule only if the stored version
	// still matches capsule.Version. The loser of a concurrent write race
	// gets ErrStaleCapsule, which callers must treat as retryable.
	UpdateGuarded(ctx context.Context, capsule *models.Capsule) error
	// DeleteGuarded removes the record under the same version guard.
	DeleteGuarded(ctx context.Context, capsule *models.Capsule) error
}

type TransferLogRepository interface {
	Append(ctx context.Context, record *models.TransferRecord) error
	ListByCapsule(ctx context.Context, capsuleAddr string) ([]*models.TransferRecord, error)
}
