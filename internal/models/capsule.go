package models

import (
	"time"
)

const (
	MaxTitleLength   = 100
	MaxContentLength = 1000
	MaxURLLength     = 500
)

// Capsule is a time-locked, ownership-transferable record. The creator never
// changes; the owner is the sole mutation authority after creation and tracks
// the latest transfer recipient.
type Capsule struct {
	ID            uint64     `json:"id"`
	Address       string     `json:"address"`
	Creator       string     `json:"creator"`
	Owner         string     `json:"owner"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	EncryptedURL  *string    `json:"encrypted_url,omitempty"`
	UnlockDate    time.Time  `json:"unlock_date"`
	IsUnlocked    bool       `json:"is_unlocked"`
	Mint          *string    `json:"mint,omitempty"`
	MintCreator   *string    `json:"mint_creator,omitempty"`
	Bump          uint8      `json:"bump"`
	Version       int64      `json:"version"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	TransferredAt *time.Time `json:"transferred_at,omitempty"`
}
