package merkle

import (
	"fmt"

	"github.com/vaultik/capsulechain/internal/fault"
	"github.com/vaultik/capsulechain/internal/models"
)

// TransferInstruction moves one leaf of a compressed-asset tree to a new
// owner. It is bound to the exact root/proof/leaf-index snapshot it was built
// from; any concurrent tree mutation invalidates it and the builder must be
// re-run against fresh proof data.
type TransferInstruction struct {
	AssetID         string
	TreeID          string
	LeafIndex       uint64
	Root            Digest
	Leaf            Digest
	Proof           []Digest
	DataHash        Digest
	CreatorHash     Digest
	CurrentOwner    string
	DelegateOrOwner string
	NewOwner        string
}

// BuildTransfer constructs a leaf-transfer instruction from a freshly fetched
// asset and proof. It fails fast with ErrNotAssetOwner when the initiator does
// not own the leaf, and with ErrStaleProof when the sibling path no longer
// reproduces the published root.
func BuildTransfer(asset *models.Asset, proof *models.AssetProof, currentOwner, delegateOrOwner, newOwner string) (*TransferInstruction, error) {
	if asset.Owner != currentOwner {
		return nil, fault.ErrNotAssetOwner
	}

	root, err := DigestFromString(proof.Root)
	if err != nil {
		return nil, fmt.Errorf("bad proof root: %w", err)
	}
	leaf, err := DigestFromString(proof.Leaf)
	if err != nil {
		return nil, fmt.Errorf("bad proof leaf: %w", err)
	}
	path := make([]Digest, 0, len(proof.Proof))
	for _, node := range proof.Proof {
		d, err := DigestFromString(node)
		if err != nil {
			return nil, fmt.Errorf("bad proof node: %w", err)
		}
		path = append(path, d)
	}

	if !VerifyPath(leaf, proof.NodeIndex, path, root) {
		return nil, fault.ErrStaleProof
	}

	dataHash, err := DigestFromString(asset.DataHash)
	if err != nil {
		return nil, fmt.Errorf("bad asset data hash: %w", err)
	}
	creatorHash, err := DigestFromString(asset.CreatorHash)
	if err != nil {
		return nil, fmt.Errorf("bad asset creator hash: %w", err)
	}

	return &TransferInstruction{
		AssetID:         asset.ID,
		TreeID:          asset.TreeID,
		LeafIndex:       asset.LeafIndex,
		Root:            root,
		Leaf:            leaf,
		Proof:           path,
		DataHash:        dataHash,
		CreatorHash:     creatorHash,
		CurrentOwner:    currentOwner,
		DelegateOrOwner: delegateOrOwner,
		NewOwner:        newOwner,
	}, nil
}
