package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultik/capsulechain/internal/fault"
	"github.com/vaultik/capsulechain/internal/models"
)

// buildTree hashes four leaves into a two-level tree and returns the leaves,
// the per-leaf sibling paths and the root.
func buildTree() (leaves [4]Digest, paths [4][]Digest, root Digest) {
	for i := range leaves {
		leaves[i] = NewDigest([]byte{byte(i)})
	}
	n01 := combine(leaves[0], leaves[1])
	n23 := combine(leaves[2], leaves[3])
	root = combine(n01, n23)

	paths[0] = []Digest{leaves[1], n23}
	paths[1] = []Digest{leaves[0], n23}
	paths[2] = []Digest{leaves[3], n01}
	paths[3] = []Digest{leaves[2], n01}
	return
}

func TestVerifyPath(t *testing.T) {
	leaves, paths, root := buildTree()

	for i := range leaves {
		assert.True(t, VerifyPath(leaves[i], uint64(i), paths[i], root), "leaf %d verifies", i)
	}

	// wrong index or mutated sibling must fail
	assert.False(t, VerifyPath(leaves[0], 1, paths[0], root))
	tampered := []Digest{NewDigest([]byte("x")), paths[0][1]}
	assert.False(t, VerifyPath(leaves[0], 0, tampered, root))
}

func TestDigestRoundTrip(t *testing.T) {
	d := NewDigest([]byte("hello"))
	parsed, err := DigestFromString(d.String())
	require.NoError(t, err)
	assert.Equal(t, d, parsed)

	_, err = DigestFromString("0OIl")
	assert.Error(t, err)
}

func TestBuildTransfer(t *testing.T) {
	leaves, paths, root := buildTree()
	owner := "owner-wallet"

	asset := &models.Asset{
		ID:          "asset-1",
		Owner:       owner,
		TreeID:      "tree-1",
		LeafIndex:   2,
		DataHash:    NewDigest([]byte("data")).String(),
		CreatorHash: NewDigest([]byte("creator")).String(),
	}
	proof := &models.AssetProof{
		Root:      root.String(),
		Proof:     []string{paths[2][0].String(), paths[2][1].String()},
		NodeIndex: 2,
		Leaf:      leaves[2].String(),
		TreeID:    "tree-1",
	}

	instruction, err := BuildTransfer(asset, proof, owner, owner, "new-wallet")
	require.NoError(t, err)
	assert.Equal(t, "asset-1", instruction.AssetID)
	assert.Equal(t, uint64(2), instruction.LeafIndex)
	assert.Equal(t, root, instruction.Root)
	assert.Equal(t, "new-wallet", instruction.NewOwner)
}

func TestBuildTransfer_NotOwner(t *testing.T) {
	leaves, paths, root := buildTree()

	asset := &models.Asset{
		ID:          "asset-1",
		Owner:       "actual-owner",
		DataHash:    NewDigest([]byte("data")).String(),
		CreatorHash: NewDigest([]byte("creator")).String(),
	}
	proof := &models.AssetProof{
		Root:      root.String(),
		Proof:     []string{paths[0][0].String(), paths[0][1].String()},
		NodeIndex: 0,
		Leaf:      leaves[0].String(),
	}

	_, err := BuildTransfer(asset, proof, "imposter", "imposter", "new-wallet")
	assert.ErrorIs(t, err, fault.ErrNotAssetOwner)
}

func TestBuildTransfer_StaleProof(t *testing.T) {
	leaves, paths, _ := buildTree()
	owner := "owner-wallet"

	asset := &models.Asset{
		ID:          "asset-1",
		Owner:       owner,
		DataHash:    NewDigest([]byte("data")).String(),
		CreatorHash: NewDigest([]byte("creator")).String(),
	}
	// the root belongs to a tree that has since mutated
	proof := &models.AssetProof{
		Root:      NewDigest([]byte("some other tree state")).String(),
		Proof:     []string{paths[0][0].String(), paths[0][1].String()},
		NodeIndex: 0,
		Leaf:      leaves[0].String(),
	}

	_, err := BuildTransfer(asset, proof, owner, owner, "new-wallet")
	assert.ErrorIs(t, err, fault.ErrStaleProof)
}
