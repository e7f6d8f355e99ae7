package services

import (
	"context"
	"time"

	"github.com/mr-tron/base58"

	"github.com/vaultik/capsulechain/internal/fault"
	"github.com/vaultik/capsulechain/internal/ledger"
	"github.com/vaultik/capsulechain/internal/merkle"
	"github.com/vaultik/capsulechain/internal/models"
)

// memStore is an in-memory stand-in for the ledger-backed repositories. It
// reproduces the version-guard semantics of the real store: readers get
// snapshots, and a guarded write only lands if nobody committed in between.
type memStore struct {
	config   *models.LedgerConfig
	capsules map[string]*models.Capsule
	records  []*models.TransferRecord
}

func newMemStore() *memStore {
	return &memStore{capsules: make(map[string]*models.Capsule)}
}

func (m *memStore) Initialize(ctx context.Context, authority string) (*models.LedgerConfig, error) {
	if m.config != nil {
		return nil, fault.ErrAlreadyInitialized
	}
	now := time.Now()
	m.config = &models.LedgerConfig{
		Authority: authority,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	cfg := *m.config
	return &cfg, nil
}

func (m *memStore) Get(ctx context.Context) (*models.LedgerConfig, error) {
	if m.config == nil {
		return nil, fault.ErrConfigNotInitialized
	}
	cfg := *m.config
	return &cfg, nil
}

func (m *memStore) Create(ctx context.Context, capsule *models.Capsule) error {
	if m.config == nil {
		return fault.ErrConfigNotInitialized
	}
	capsule.ID = m.config.TotalCapsules
	m.config.TotalCapsules++
	capsule.Address, capsule.Bump = ledger.DeriveCapsuleAddress(capsule.Creator, capsule.ID)
	capsule.Version = 1
	capsule.CreatedAt = time.Now()
	capsule.UpdatedAt = capsule.CreatedAt

	stored := *capsule
	m.capsules[capsule.Address] = &stored
	return nil
}

func (m *memStore) GetByAddress(ctx context.Context, address string) (*models.Capsule, error) {
	stored, ok := m.capsules[address]
	if !ok {
		return nil, fault.ErrCapsuleNotFound
	}
	capsule := *stored
	return &capsule, nil
}

func (m *memStore) ListByOwner(ctx context.Context, owner string) ([]*models.Capsule, error) {
	var capsules []*models.Capsule
	for _, stored := range m.capsules {
		if stored.Owner == owner {
			capsule := *stored
			capsules = append(capsules, &capsule)
		}
	}
	return capsules, nil
}

func (m *memStore) UpdateGuarded(ctx context.Context, capsule *models.Capsule) error {
	stored, ok := m.capsules[capsule.Address]
	if !ok || stored.Version != capsule.Version {
		return fault.ErrStaleCapsule
	}
	capsule.Version++
	capsule.UpdatedAt = time.Now()

	updated := *capsule
	m.capsules[capsule.Address] = &updated
	return nil
}

func (m *memStore) DeleteGuarded(ctx context.Context, capsule *models.Capsule) error {
	stored, ok := m.capsules[capsule.Address]
	if !ok || stored.Version != capsule.Version {
		return fault.ErrStaleCapsule
	}
	delete(m.capsules, capsule.Address)
	return nil
}

func (m *memStore) Append(ctx context.Context, record *models.TransferRecord) error {
	record.CreatedAt = time.Now()
	m.records = append(m.records, record)
	return nil
}

func (m *memStore) ListByCapsule(ctx context.Context, capsuleAddr string) ([]*models.TransferRecord, error) {
	var records []*models.TransferRecord
	for _, record := range m.records {
		if record.CapsuleAddr == capsuleAddr {
			records = append(records, record)
		}
	}
	return records, nil
}

// fakeIndex is an in-memory asset index. Proofs are zero-length paths, so
// root == leaf verifies; setting a mismatched root simulates a stale proof.
type fakeIndex struct {
	assets    map[string]*models.Asset
	proofs    map[string]*models.AssetProof
	submitErr error
	submitted []*merkle.TransferInstruction
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		assets: make(map[string]*models.Asset),
		proofs: make(map[string]*models.AssetProof),
	}
}

func (f *fakeIndex) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	asset, ok := f.assets[id]
	if !ok {
		return nil, fault.ErrAssetNotFound
	}
	return asset, nil
}

func (f *fakeIndex) GetAssetProof(ctx context.Context, id string) (*models.AssetProof, error) {
	proof, ok := f.proofs[id]
	if !ok {
		return nil, fault.ErrAssetNotFound
	}
	return proof, nil
}

func (f *fakeIndex) GetSignaturesForAsset(ctx context.Context, id string) ([]models.AssetSignature, error) {
	return nil, nil
}

func (f *fakeIndex) GetAssetsByOwner(ctx context.Context, owner string) ([]*models.Asset, error) {
	var assets []*models.Asset
	for _, asset := range f.assets {
		if asset.Owner == owner {
			assets = append(assets, asset)
		}
	}
	return assets, nil
}

func (f *fakeIndex) SubmitTransfer(ctx context.Context, instruction *merkle.TransferInstruction) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = append(f.submitted, instruction)
	f.assets[instruction.AssetID].Owner = instruction.NewOwner
	return "asset-sig-" + instruction.AssetID, nil
}

// addAsset registers an asset with a trivially valid proof (empty path, so
// the leaf is the root).
func (f *fakeIndex) addAsset(id, owner string) {
	digest := merkle.NewDigest([]byte(id))
	f.assets[id] = &models.Asset{
		ID:          id,
		Owner:       owner,
		TreeID:      testAddress(0xee),
		LeafIndex:   0,
		DataHash:    digest.String(),
		CreatorHash: digest.String(),
		Compressed:  true,
	}
	f.proofs[id] = &models.AssetProof{
		Root:      digest.String(),
		Proof:     []string{},
		NodeIndex: 0,
		Leaf:      digest.String(),
		TreeID:    testAddress(0xee),
	}
}

// testAddress builds a valid base58 address from a fill byte.
func testAddress(fill byte) string {
	var raw [ledger.AddressLength]byte
	for i := range raw {
		raw[i] = fill
	}
	return base58.Encode(raw[:])
}

func newTestCapsuleService(store *memStore, authority string) *CapsuleService {
	return NewCapsuleService(store, store, authority)
}
