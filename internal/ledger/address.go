// Package ledger derives the deterministic account addresses used to locate
// capsule records and the config singleton. An address is recomputable from
// stable identifying fields alone, so readers never need to store it.
package ledger

import (
	"encoding/binary"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"

	"github.com/vaultik/capsulechain/internal/fault"
)

const (
	capsuleNamespace = "capsule"
	configNamespace  = "config"

	// AddressLength is the raw byte length of every derived address.
	AddressLength = 32
)

// DeriveCapsuleAddress computes the address of the capsule created by creator
// with the given sequence number, together with the bump that produced it.
// The bump scan is deterministic: starting at 255 and walking down, the first
// digest whose trailing byte is non-zero wins, keeping derived addresses out
// of the reserved zero page used by singleton records.
func DeriveCapsuleAddress(creator string, sequence uint64) (string, uint8) {
	var seq [8]byte
	binary.LittleEndian.PutUint64(seq[:], sequence)

	for bump := 255; bump >= 0; bump-- {
		h := sha3.New256()
		h.Write([]byte(capsuleNamespace))
		h.Write([]byte(creator))
		h.Write(seq[:])
		h.Write([]byte{byte(bump)})
		digest := h.Sum(nil)
		if digest[AddressLength-1] != 0 {
			return base58.Encode(digest), uint8(bump)
		}
	}
	// unreachable: 256 independent digests cannot all end in zero
	return "", 0
}

// ConfigAddress is the fixed singleton address of the ledger config record.
func ConfigAddress() string {
	h := sha3.Sum256([]byte(configNamespace))
	return base58.Encode(h[:])
}

// ValidateAddress checks that s is a well-formed base58 address of the
// expected raw length. Used to fail fast before any mutation is submitted.
func ValidateAddress(s string) error {
	raw, err := base58.Decode(s)
	if err != nil || len(raw) != AddressLength {
		return fault.ErrInvalidAddress
	}
	return nil
}
