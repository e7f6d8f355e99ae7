package models

import "time"

// TransferStatus tags the outcome of a combined capsule+asset transfer.
// The two legs commit on independent systems with no shared transaction, so
// a partial result is a first-class status, never collapsed into a boolean.
type TransferStatus string

const (
	TransferSuccess        TransferStatus = "success"
	TransferPartialFailure TransferStatus = "partial_failure"
	TransferFailure        TransferStatus = "failure"
)

// TransferOutcome reports exactly which legs of a combined transfer committed
// and the confirmation handle for each leg that did.
type TransferOutcome struct {
	Status            TransferStatus `json:"status"`
	CapsuleTransferOK bool           `json:"capsule_transfer_ok"`
	AssetTransferOK   bool           `json:"asset_transfer_ok"`
	CapsuleSignature  string         `json:"capsule_signature,omitempty"`
	AssetSignature    string         `json:"asset_signature,omitempty"`
	TransferredAssets []string       `json:"transferred_assets,omitempty"`
	CapsuleError      string         `json:"capsule_error,omitempty"`
	AssetError        string         `json:"asset_error,omitempty"`
	Warning           string         `json:"warning,omitempty"`
}

// TransferRecord is the durable log entry for one committed transfer leg.
// It is what makes a crashed saga resumable: a capsule leg recorded without a
// matching asset leg identifies the transfers that still need their asset
// re-issued.
type TransferRecord struct {
	ID          string    `json:"id"`
	CapsuleAddr string    `json:"capsule_addr"`
	FromOwner   string    `json:"from_owner"`
	ToOwner     string    `json:"to_owner"`
	Mint        *string   `json:"mint,omitempty"`
	Leg         string    `json:"leg"` // "capsule" or "asset"
	Signature   string    `json:"signature"`
	CreatedAt   time.Time `json:"created_at"`
}
