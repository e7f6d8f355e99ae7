package models

import "time"

// LedgerConfig is the process-wide singleton counter record. It is created
// exactly once by the configured authority and mutated only by capsule
// creation, which increments TotalCapsules.
type LedgerConfig struct {
	Authority     string    `json:"authority"`
	TotalCapsules uint64    `json:"total_capsules"`
	Version       uint8     `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
