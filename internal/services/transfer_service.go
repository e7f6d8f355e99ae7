package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vaultik/capsulechain/internal/assetindex"
	"github.com/vaultik/capsulechain/internal/fault"
	"github.com/vaultik/capsulechain/internal/ledger"
	"github.com/vaultik/capsulechain/internal/merkle"
	"github.com/vaultik/capsulechain/internal/models"
	"github.com/vaultik/capsulechain/internal/repositories"
)

const assetStaysWarning = "capsule ownership moved but the linked asset remains with the original owner; resume the asset transfer separately"

// TransferService sequences the two legs of a combined transfer: the capsule
// ownership mutation on the ledger, then the proof-authorized asset-leaf
// move. The two systems share no transaction and no lock; once the capsule
// leg commits there is no rollback, only precise reporting and resume.
type TransferService struct {
	capsules    *CapsuleService
	index       assetindex.Service
	transferLog repositories.TransferLogRepository
}

func NewTransferService(
	capsules *CapsuleService,
	index assetindex.Service,
	transferLog repositories.TransferLogRepository,
) *TransferService {
	return &TransferService{
		capsules:    capsules,
		index:       index,
		transferLog: transferLog,
	}
}

type CombinedTransferRequest struct {
	CapsuleAddr  string
	NewOwner     string
	AssetID      string
	IncludeAsset bool
}

// Transfer runs the saga. Validation failures return before any mutation.
// After the capsule leg commits, an asset-leg failure is reported as a
// partial-failure outcome, never rolled back and never retried here; the
// caller resumes via ResumeAssetTransfer.
//
// The returned error is non-nil only when nothing committed.
func (s *TransferService) Transfer(ctx context.Context, caller string, req CombinedTransferRequest) (*models.TransferOutcome, error) {
	// step 1: validate before any side effect
	if err := ledger.ValidateAddress(req.CapsuleAddr); err != nil {
		return nil, err
	}
	if err := ledger.ValidateAddress(req.NewOwner); err != nil {
		return nil, err
	}
	if req.IncludeAsset && req.AssetID == "" {
		return nil, fault.ErrAssetRefRequired
	}

	// step 2: capsule ownership moves as a single committed operation
	var mint *string
	if req.IncludeAsset {
		mint = &req.AssetID
	}
	capsule, err := s.capsules.TransferOwnership(ctx, caller, req.CapsuleAddr, req.NewOwner, mint)
	if err != nil {
		return &models.TransferOutcome{
			Status:       models.TransferFailure,
			CapsuleError: err.Error(),
		}, err
	}

	capsuleSig := newSignature()
	s.recordLeg(ctx, capsule.Address, caller, req.NewOwner, mint, "capsule", capsuleSig)

	outcome := &models.TransferOutcome{
		CapsuleTransferOK: true,
		CapsuleSignature:  capsuleSig,
	}

	if !req.IncludeAsset {
		outcome.Status = models.TransferSuccess
		return outcome, nil
	}

	// step 3: asset leg, only after the capsule leg committed
	assetSig, err := s.transferAssetLeaf(ctx, caller, req.NewOwner, req.AssetID)
	if err != nil {
		outcome.Status = models.TransferPartialFailure
		outcome.AssetError = err.Error()
		outcome.Warning = assetStaysWarning
		return outcome, nil
	}

	s.recordLeg(ctx, capsule.Address, caller, req.NewOwner, mint, "asset", assetSig)

	outcome.Status = models.TransferSuccess
	outcome.AssetTransferOK = true
	outcome.AssetSignature = assetSig
	outcome.TransferredAssets = []string{req.AssetID}
	return outcome, nil
}

// ResumeAssetTransfer re-issues only the asset leg of a combined transfer
// whose capsule leg already committed. Re-running the whole saga would fail
// with NotOwner, since capsule ownership has already moved; this entry point
// is how a crashed caller finishes the job.
func (s *TransferService) ResumeAssetTransfer(ctx context.Context, caller string, req CombinedTransferRequest) (*models.TransferOutcome, error) {
	if err := ledger.ValidateAddress(req.CapsuleAddr); err != nil {
		return nil, err
	}
	if err := ledger.ValidateAddress(req.NewOwner); err != nil {
		return nil, err
	}
	if req.AssetID == "" {
		return nil, fault.ErrAssetRefRequired
	}

	// the capsule leg must actually have committed to this recipient
	capsule, err := s.capsules.GetCapsule(ctx, req.CapsuleAddr)
	if err != nil {
		return nil, err
	}
	if capsule.Owner != req.NewOwner {
		return nil, fmt.Errorf("capsule owner is %s, not the resume recipient: %w", capsule.Owner, fault.ErrNotOwner)
	}

	outcome := &models.TransferOutcome{
		CapsuleTransferOK: true,
		CapsuleSignature:  s.priorCapsuleSignature(ctx, req.CapsuleAddr, req.NewOwner),
	}

	assetSig, err := s.transferAssetLeaf(ctx, caller, req.NewOwner, req.AssetID)
	if err != nil {
		outcome.Status = models.TransferPartialFailure
		outcome.AssetError = err.Error()
		outcome.Warning = assetStaysWarning
		return outcome, nil
	}

	mint := req.AssetID
	s.recordLeg(ctx, req.CapsuleAddr, caller, req.NewOwner, &mint, "asset", assetSig)

	outcome.Status = models.TransferSuccess
	outcome.AssetTransferOK = true
	outcome.AssetSignature = assetSig
	outcome.TransferredAssets = []string{req.AssetID}
	return outcome, nil
}

// transferAssetLeaf fetches fresh proof data and submits the leaf move. The
// proof is a snapshot: ErrStaleProof from verification or submission means a
// concurrent tree mutation got in first, and the caller should simply retry.
func (s *TransferService) transferAssetLeaf(ctx context.Context, initiator, newOwner, assetID string) (string, error) {
	asset, err := s.index.GetAsset(ctx, assetID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch asset: %w", err)
	}
	if asset.Owner != initiator {
		return "", fault.ErrNotAssetOwner
	}

	proof, err := s.index.GetAssetProof(ctx, assetID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch proof: %w", err)
	}

	delegateOrOwner := initiator
	if asset.Delegate != nil {
		delegateOrOwner = *asset.Delegate
	}

	instruction, err := merkle.BuildTransfer(asset, proof, initiator, delegateOrOwner, newOwner)
	if err != nil {
		return "", err
	}

	signature, err := s.index.SubmitTransfer(ctx, instruction)
	if err != nil {
		return "", fmt.Errorf("failed to submit leaf transfer: %w", err)
	}
	return signature, nil
}

// recordLeg journals a committed leg. The journal backs resume tooling; a
// write failure must not fail a transfer that already committed.
func (s *TransferService) recordLeg(ctx context.Context, capsuleAddr, from, to string, mint *string, leg, signature string) {
	record := &models.TransferRecord{
		ID:          uuid.New().String(),
		CapsuleAddr: capsuleAddr,
		FromOwner:   from,
		ToOwner:     to,
		Mint:        mint,
		Leg:         leg,
		Signature:   signature,
	}
	if err := s.transferLog.Append(ctx, record); err != nil {
		fmt.Printf("failed to journal %s transfer leg for %s: %v\n", leg, capsuleAddr, err)
	}
}

// priorCapsuleSignature digs the committed capsule-leg signature out of the
// journal for resume reporting. Best effort: an empty string just means the
// journal entry was lost.
func (s *TransferService) priorCapsuleSignature(ctx context.Context, capsuleAddr, newOwner string) string {
	records, err := s.transferLog.ListByCapsule(ctx, capsuleAddr)
	if err != nil {
		return ""
	}
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Leg == "capsule" && records[i].ToOwner == newOwner {
			return records[i].Signature
		}
	}
	return ""
}

func newSignature() string {
	return uuid.New().String()
}
