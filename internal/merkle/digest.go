package merkle

import (
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"

	"github.com/vaultik/capsulechain/internal/fault"
)

// number of bytes in the digest
const DigestLength = 32

// Digest is a single node hash in a compressed-asset tree.
type Digest [DigestLength]byte

// NewDigest hashes a record into a node digest.
func NewDigest(record []byte) Digest {
	return sha3.Sum256(record)
}

// String renders the digest the way the asset index does, base58.
func (d Digest) String() string {
	return base58.Encode(d[:])
}

// DigestFromString parses a base58 node hash as reported by the asset index.
func DigestFromString(s string) (Digest, error) {
	var d Digest
	raw, err := base58.Decode(s)
	if err != nil || len(raw) != DigestLength {
		return d, fault.ErrStaleProof
	}
	copy(d[:], raw)
	return d, nil
}

// combine hashes an ordered pair of sibling nodes into their parent.
func combine(left, right Digest) Digest {
	h := sha3.New256()
	h.Write(left[:])
	h.Write(right[:])
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// VerifyPath walks a leaf digest up its sibling path and reports whether the
// reconstructed root matches the published one. The low bit of the leaf index
// at each level decides which side the current node hashes on.
func VerifyPath(leaf Digest, index uint64, path []Digest, root Digest) bool {
	node := leaf
	for _, sibling := range path {
		if index&1 == 0 {
			node = combine(node, sibling)
		} else {
			node = combine(sibling, node)
		}
		index >>= 1
	}
	return node == root
}
