package services

import (
	"context"
	"fmt"
	"time"

	"github.com/vaultik/capsulechain/internal/crypto"
	"github.com/vaultik/capsulechain/internal/fault"
	"github.com/vaultik/capsulechain/internal/ledger"
	"github.com/vaultik/capsulechain/internal/models"
	"github.com/vaultik/capsulechain/internal/repositories"
)

// Operation names the mutating capsule operations for authority dispatch.
type Operation string

const (
	OpUpdate   Operation = "update"
	OpUnlock   Operation = "unlock"
	OpClose    Operation = "close"
	OpTransfer Operation = "transfer"
)

// Authorize is the single source of truth for who may do what to a capsule.
// Every post-create mutation is owner-gated: the capsule is a bearer record,
// creatorship grants nothing once ownership has moved.
func Authorize(op Operation, capsule *models.Capsule, caller string) error {
	switch op {
	case OpUpdate, OpUnlock, OpClose, OpTransfer:
		if caller != capsule.Owner {
			return fault.ErrNotOwner
		}
		return nil
	}
	return fmt.Errorf("unknown operation %q", op)
}

// storage deposit accounting for Close: the closing owner gets back a deposit
// proportional to the record's byte footprint.
const (
	capsuleBaseSize       = 165
	storageDepositPerByte = 10
)

type CapsuleService struct {
	configRepo  repositories.ConfigRepository
	capsuleRepo repositories.CapsuleRepository
	authority   string
	now         func() time.Time
}

func NewCapsuleService(
	configRepo repositories.ConfigRepository,
	capsuleRepo repositories.CapsuleRepository,
	authority string,
) *CapsuleService {
	return &CapsuleService{
		configRepo:  configRepo,
		capsuleRepo: capsuleRepo,
		authority:   authority,
		now:         time.Now,
	}
}

// InitializeConfig creates the counter singleton. Only the configured
// authority may do it, and only once.
func (s *CapsuleService) InitializeConfig(ctx context.Context, caller string) (*models.LedgerConfig, error) {
	if caller != s.authority {
		return nil, fault.ErrNotAuthority
	}
	return s.configRepo.Initialize(ctx, caller)
}

func (s *CapsuleService) GetConfig(ctx context.Context) (*models.LedgerConfig, error) {
	return s.configRepo.Get(ctx)
}

type CreateCapsuleRequest struct {
	Title      string
	Content    string
	UnlockDate time.Time
	// Locator, when present, is sealed under the creator's identity tuple
	// before anything is stored. The plaintext never reaches the record.
	Locator *string
}

func (s *CapsuleService) Create(ctx context.Context, creator string, req CreateCapsuleRequest) (*models.Capsule, error) {
	if err := ledger.ValidateAddress(creator); err != nil {
		return nil, err
	}
	if len(req.Title) > models.MaxTitleLength {
		return nil, fault.ErrTitleTooLong
	}
	if !req.UnlockDate.After(s.now()) {
		return nil, fault.ErrUnlockDateMustBeFuture
	}

	content := req.Content
	var encryptedURL *string
	if req.Locator != nil {
		key := crypto.DeriveKey(creator, req.Title, req.UnlockDate, creator)
		ciphertext, ivMarker, err := crypto.Encrypt(*req.Locator, key)
		if err != nil {
			return nil, fmt.Errorf("failed to seal locator: %w", err)
		}
		if len(ciphertext) > models.MaxURLLength {
			return nil, fault.ErrUrlTooLong
		}
		encryptedURL = &ciphertext
		content = content + ivMarker
	}
	if len(content) > models.MaxContentLength {
		return nil, fault.ErrContentTooLong
	}

	capsule := &models.Capsule{
		Creator:      creator,
		Owner:        creator,
		Title:        req.Title,
		Content:      content,
		EncryptedURL: encryptedURL,
		UnlockDate:   req.UnlockDate,
	}
	if err := s.capsuleRepo.Create(ctx, capsule); err != nil {
		return nil, err
	}
	return capsule, nil
}

type UpdateCapsuleRequest struct {
	NewContent         *string
	NewUnlockDate      *time.Time
	NewLocator         *string
	RemoveEncryptedURL bool
}

// Update mutates a still-locked capsule. Omitted fields are left unchanged.
// When both a new locator and removal are requested, removal wins.
func (s *CapsuleService) Update(ctx context.Context, caller, address string, req UpdateCapsuleRequest) (*models.Capsule, error) {
	capsule, err := s.capsuleRepo.GetByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if err := Authorize(OpUpdate, capsule, caller); err != nil {
		return nil, err
	}
	if capsule.IsUnlocked {
		return nil, fault.ErrCapsuleAlreadyUnlocked
	}

	if req.NewUnlockDate != nil {
		if !req.NewUnlockDate.After(capsule.UnlockDate) {
			return nil, fault.ErrInvalidUnlockDateExtension
		}
	}

	content := capsule.Content
	if req.NewContent != nil {
		// carry the existing IV marker over so a sealed locator stays
		// decryptable after a content edit
		if ivMarker, _, ok := crypto.ExtractIVMarker(capsule.Content); ok && capsule.EncryptedURL != nil {
			content = *req.NewContent + ivMarker
		} else {
			content = *req.NewContent
		}
	}

	unlockDate := capsule.UnlockDate
	if req.NewUnlockDate != nil {
		unlockDate = *req.NewUnlockDate
	}

	encryptedURL := capsule.EncryptedURL
	switch {
	case req.RemoveEncryptedURL:
		encryptedURL = nil
		if _, rest, ok := crypto.ExtractIVMarker(content); ok {
			content = rest
		}
	case req.NewLocator != nil:
		key := crypto.DeriveKey(capsule.Owner, capsule.Title, unlockDate, capsule.Creator)
		ciphertext, ivMarker, err := crypto.Encrypt(*req.NewLocator, key)
		if err != nil {
			return nil, fmt.Errorf("failed to seal locator: %w", err)
		}
		if len(ciphertext) > models.MaxURLLength {
			return nil, fault.ErrUrlTooLong
		}
		encryptedURL = &ciphertext
		if _, rest, ok := crypto.ExtractIVMarker(content); ok {
			content = rest
		}
		content = content + ivMarker
	}

	if len(content) > models.MaxContentLength {
		return nil, fault.ErrContentTooLong
	}

	capsule.Content = content
	capsule.UnlockDate = unlockDate
	capsule.EncryptedURL = encryptedURL

	if err := s.capsuleRepo.UpdateGuarded(ctx, capsule); err != nil {
		return nil, err
	}
	return capsule, nil
}

// Unlock flips the one-way unlocked flag once the threshold has passed.
// Calling it again after success short-circuits to success instead of
// re-erroring.
func (s *CapsuleService) Unlock(ctx context.Context, caller, address string) (*models.Capsule, error) {
	capsule, err := s.capsuleRepo.GetByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if err := Authorize(OpUnlock, capsule, caller); err != nil {
		return nil, err
	}
	if capsule.IsUnlocked {
		return capsule, nil
	}
	if s.now().Before(capsule.UnlockDate) {
		return nil, fault.ErrCapsuleNotReadyToUnlock
	}

	capsule.IsUnlocked = true
	if err := s.capsuleRepo.UpdateGuarded(ctx, capsule); err != nil {
		return nil, err
	}
	return capsule, nil
}

// Close destroys an unlocked capsule and reports the storage deposit returned
// to the closing owner.
func (s *CapsuleService) Close(ctx context.Context, caller, address string) (uint64, error) {
	capsule, err := s.capsuleRepo.GetByAddress(ctx, address)
	if err != nil {
		return 0, err
	}
	if err := Authorize(OpClose, capsule, caller); err != nil {
		return 0, err
	}
	if !capsule.IsUnlocked {
		return 0, fault.ErrCannotCloseLockedCapsule
	}

	if err := s.capsuleRepo.DeleteGuarded(ctx, capsule); err != nil {
		return 0, err
	}

	size := capsuleBaseSize + len(capsule.Title) + len(capsule.Content)
	if capsule.EncryptedURL != nil {
		size += len(*capsule.EncryptedURL)
	}
	return uint64(size) * storageDepositPerByte, nil
}

// TransferOwnership moves the capsule to newOwner, allowed in any lock state.
// When a mint is supplied, mintCreator records the transferring caller,
// overwriting whatever a previous transfer stored there.
func (s *CapsuleService) TransferOwnership(ctx context.Context, caller, address, newOwner string, mint *string) (*models.Capsule, error) {
	if err := ledger.ValidateAddress(newOwner); err != nil {
		return nil, err
	}

	capsule, err := s.capsuleRepo.GetByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if err := Authorize(OpTransfer, capsule, caller); err != nil {
		return nil, err
	}
	if newOwner == capsule.Owner {
		return nil, fault.ErrCannotTransferToSelf
	}

	transferredAt := s.now()
	capsule.Owner = newOwner
	capsule.TransferredAt = &transferredAt
	if mint != nil {
		capsule.Mint = mint
		capsule.MintCreator = &caller
	}

	if err := s.capsuleRepo.UpdateGuarded(ctx, capsule); err != nil {
		return nil, err
	}
	return capsule, nil
}

func (s *CapsuleService) GetCapsule(ctx context.Context, address string) (*models.Capsule, error) {
	return s.capsuleRepo.GetByAddress(ctx, address)
}

// GetCapsuleByCreatorAndID resolves the deterministic address and fetches.
func (s *CapsuleService) GetCapsuleByCreatorAndID(ctx context.Context, creator string, id uint64) (*models.Capsule, error) {
	address, _ := ledger.DeriveCapsuleAddress(creator, id)
	return s.capsuleRepo.GetByAddress(ctx, address)
}

func (s *CapsuleService) ListByOwner(ctx context.Context, owner string) ([]*models.Capsule, error) {
	return s.capsuleRepo.ListByOwner(ctx, owner)
}

// RevealLocator tries to decrypt a capsule's sealed locator for the given
// reader identity, falling back to the creator's identity for capsules
// encrypted before an ownership transfer, then to the heuristic ciphertext
// scan. Returns ErrNoLocatorRecovered rather than a hard failure so read
// paths can degrade to "locator unavailable".
func (s *CapsuleService) RevealLocator(capsule *models.Capsule, identity string) (string, error) {
	if capsule.EncryptedURL == nil {
		return "", fault.ErrNoLocatorRecovered
	}
	ivMarker, _, ok := crypto.ExtractIVMarker(capsule.Content)
	if !ok {
		return "", fault.ErrNoLocatorRecovered
	}

	keys := [][]byte{
		crypto.DeriveKey(identity, capsule.Title, capsule.UnlockDate, capsule.Creator),
	}
	if identity != capsule.Creator {
		keys = append(keys, crypto.DeriveKey(capsule.Creator, capsule.Title, capsule.UnlockDate, capsule.Creator))
	}
	return crypto.RecoverLocator(*capsule.EncryptedURL, ivMarker, keys...)
}
