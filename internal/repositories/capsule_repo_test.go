package repositories

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultik/capsulechain/internal/database"
	"github.com/vaultik/capsulechain/internal/fault"
	"github.com/vaultik/capsulechain/internal/models"
)

// TestConfigRepository_InitializeOnce tests that the config singleton can only
// be created once
func TestConfigRepository_InitializeOnce(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresConfigRepository(pool)
	ctx := context.Background()

	defer cleanupTestLedger(t, ctx, pool)

	authority := randomAddress()

	// ACT: Initialize, then try again
	config, err := repo.Initialize(ctx, authority)

	// ASSERT: First call succeeds with a zeroed counter
	require.NoError(t, err)
	assert.Equal(t, authority, config.Authority)
	assert.Equal(t, uint64(0), config.TotalCapsules)

	// Second call must fail regardless of the authority offered
	_, err = repo.Initialize(ctx, randomAddress())
	assert.ErrorIs(t, err, fault.ErrAlreadyInitialized)

	// Get returns the original authority
	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, authority, got.Authority)
}

// TestCapsuleRepository_Create_RequiresConfig tests that capsules cannot be
// created before the ledger config exists
func TestCapsuleRepository_Create_RequiresConfig(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresCapsuleRepository(pool)
	ctx := context.Background()

	defer cleanupTestLedger(t, ctx, pool)

	err := repo.Create(ctx, testCapsule(randomAddress()))
	assert.ErrorIs(t, err, fault.ErrConfigNotInitialized)
}

// TestCapsuleRepository_Create_AssignsSequentialIDs tests that the counter
// hands out ids in order and derives a distinct address per capsule
func TestCapsuleRepository_Create_AssignsSequentialIDs(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresCapsuleRepository(pool)
	ctx := context.Background()

	defer cleanupTestLedger(t, ctx, pool)
	initTestConfig(t, ctx, pool)

	creator := randomAddress()

	// ACT: Create two capsules for the same creator
	first := testCapsule(creator)
	require.NoError(t, repo.Create(ctx, first))

	second := testCapsule(creator)
	require.NoError(t, repo.Create(ctx, second))

	// ASSERT: ids are sequential, addresses differ, versions start at 1
	assert.Equal(t, uint64(0), first.ID)
	assert.Equal(t, uint64(1), second.ID)
	assert.NotEqual(t, first.Address, second.Address)
	assert.Equal(t, int64(1), first.Version)

	// Counter reflects both creates
	config, err := NewPostgresConfigRepository(pool).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), config.TotalCapsules)
}

// TestCapsuleRepository_GetByAddress tests the round trip and the not-found case
func TestCapsuleRepository_GetByAddress(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresCapsuleRepository(pool)
	ctx := context.Background()

	defer cleanupTestLedger(t, ctx, pool)
	initTestConfig(t, ctx, pool)

	capsule := testCapsule(randomAddress())
	require.NoError(t, repo.Create(ctx, capsule))

	// ACT: Fetch it back
	got, err := repo.GetByAddress(ctx, capsule.Address)

	// ASSERT: Stored fields survive the round trip
	require.NoError(t, err)
	assert.Equal(t, capsule.Creator, got.Creator)
	assert.Equal(t, capsule.Title, got.Title)
	assert.False(t, got.IsUnlocked)
	assert.Nil(t, got.Mint)

	_, err = repo.GetByAddress(ctx, randomAddress())
	assert.ErrorIs(t, err, fault.ErrCapsuleNotFound)
}

// TestCapsuleRepository_UpdateGuarded_VersionConflict tests that a writer
// holding a stale version loses
func TestCapsuleRepository_UpdateGuarded_VersionConflict(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresCapsuleRepository(pool)
	ctx := context.Background()

	defer cleanupTestLedger(t, ctx, pool)
	initTestConfig(t, ctx, pool)

	capsule := testCapsule(randomAddress())
	require.NoError(t, repo.Create(ctx, capsule))

	// ARRANGE: Two readers load the same version
	stale, err := repo.GetByAddress(ctx, capsule.Address)
	require.NoError(t, err)

	// ACT: First writer commits, bumping the version
	capsule.Content = "first writer"
	require.NoError(t, repo.UpdateGuarded(ctx, capsule))
	assert.Equal(t, int64(2), capsule.Version)

	// ASSERT: Second writer's guard no longer matches
	stale.Content = "second writer"
	err = repo.UpdateGuarded(ctx, stale)
	assert.ErrorIs(t, err, fault.ErrStaleCapsule)

	got, err := repo.GetByAddress(ctx, capsule.Address)
	require.NoError(t, err)
	assert.Equal(t, "first writer", got.Content)
}

// TestCapsuleRepository_DeleteGuarded tests guarded deletion
func TestCapsuleRepository_DeleteGuarded(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresCapsuleRepository(pool)
	ctx := context.Background()

	defer cleanupTestLedger(t, ctx, pool)
	initTestConfig(t, ctx, pool)

	capsule := testCapsule(randomAddress())
	require.NoError(t, repo.Create(ctx, capsule))

	// ACT: Delete with a stale version first, then the current one
	stale := *capsule
	stale.Version = capsule.Version + 1
	err := repo.DeleteGuarded(ctx, &stale)
	assert.ErrorIs(t, err, fault.ErrStaleCapsule)

	require.NoError(t, repo.DeleteGuarded(ctx, capsule))

	_, err = repo.GetByAddress(ctx, capsule.Address)
	assert.ErrorIs(t, err, fault.ErrCapsuleNotFound)
}

// TestCapsuleRepository_ListByOwner tests owner scoping and id ordering
func TestCapsuleRepository_ListByOwner(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresCapsuleRepository(pool)
	ctx := context.Background()

	defer cleanupTestLedger(t, ctx, pool)
	initTestConfig(t, ctx, pool)

	owner := randomAddress()
	other := randomAddress()

	for i := 0; i < 2; i++ {
		require.NoError(t, repo.Create(ctx, testCapsule(owner)))
	}
	require.NoError(t, repo.Create(ctx, testCapsule(other)))

	capsules, err := repo.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, capsules, 2)
	assert.Less(t, capsules[0].ID, capsules[1].ID)
	assert.Equal(t, owner, capsules[0].Owner)
}

// Helper functions for test setup

// getTestPool connects to the test database named by TEST_DATABASE_URL and
// makes sure the schema exists. Tests are skipped when no URL is set.
func getTestPool(t *testing.T) *pgxpool.Pool {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}

	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err, "Failed to connect to test database")

	err = database.EnsureSchema(context.Background(), pool)
	require.NoError(t, err, "Failed to ensure schema")
	return pool
}

// initTestConfig seeds the ledger config so capsule creates can allocate ids
func initTestConfig(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	_, err := NewPostgresConfigRepository(pool).Initialize(ctx, randomAddress())
	require.NoError(t, err, "Failed to initialize test config")
}

// cleanupTestLedger removes all ledger state (config, capsules, transfer log)
func cleanupTestLedger(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	_, err := pool.Exec(ctx, "TRUNCATE capsules, transfer_records, ledger_config")
	if err != nil {
		t.Logf("Warning: failed to cleanup test data: %v", err)
	}
	pool.Close()
}

// randomAddress returns a fresh base58 32-byte address
func randomAddress() string {
	raw := make([]byte, 0, 32)
	first := uuid.New()
	second := uuid.New()
	raw = append(raw, first[:]...)
	raw = append(raw, second[:]...)
	return base58.Encode(raw)
}

// testCapsule builds a minimal locked capsule owned by its creator
func testCapsule(creator string) *models.Capsule {
	return &models.Capsule{
		Creator:    creator,
		Owner:      creator,
		Title:      "Test Capsule",
		Content:    "sealed until the date passes",
		UnlockDate: time.Now().Add(24 * time.Hour).UTC(),
	}
}
