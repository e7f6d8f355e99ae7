package models

// Asset is one leaf of a compressed-asset tree as reported by the off-chain
// index. Ownership here is authoritative for the tree, not for the capsule
// record that may point at it.
type Asset struct {
	ID          string  `json:"id"`
	Owner       string  `json:"owner"`
	Delegate    *string `json:"delegate,omitempty"`
	TreeID      string  `json:"tree_id"`
	LeafIndex   uint64  `json:"leaf_index"`
	DataHash    string  `json:"data_hash"`
	CreatorHash string  `json:"creator_hash"`
	Compressed  bool    `json:"compressed"`
}

// AssetProof is a point-in-time Merkle membership proof for an asset's leaf.
// Any concurrent mutation of the tree invalidates it; callers must re-fetch
// rather than reuse a stale proof.
type AssetProof struct {
	Root      string   `json:"root"`
	Proof     []string `json:"proof"`
	NodeIndex uint64   `json:"node_index"`
	Leaf      string   `json:"leaf"`
	TreeID    string   `json:"tree_id"`
}

// AssetSignature is one historical confirmation touching an asset.
type AssetSignature struct {
	Signature string `json:"signature"`
	Type      string `json:"type"`
	Slot      uint64 `json:"slot"`
}
