// Package assetindex talks to the off-chain index of the compressed-asset
// tree: read lookups for assets, proofs and signature history, plus
// submission of proof-authorized leaf transfers.
package assetindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vaultik/capsulechain/internal/fault"
	"github.com/vaultik/capsulechain/internal/merkle"
	"github.com/vaultik/capsulechain/internal/models"
)

// Service is what the transfer coordinator depends on, so tests can swap the
// HTTP client for a fake.
type Service interface {
	GetAsset(ctx context.Context, id string) (*models.Asset, error)
	GetAssetProof(ctx context.Context, id string) (*models.AssetProof, error)
	GetSignaturesForAsset(ctx context.Context, id string) ([]models.AssetSignature, error)
	GetAssetsByOwner(ctx context.Context, owner string) ([]*models.Asset, error)
	SubmitTransfer(ctx context.Context, instruction *merkle.TransferInstruction) (string, error)
}

// RPC error codes the index reports for the two retryable-or-expected cases.
const (
	rpcCodeNotFound   = -32001
	rpcCodeStaleProof = -32002
)

type Client struct {
	endpoint string
	http     *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.New().String(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		switch rpcResp.Error.Code {
		case rpcCodeNotFound:
			return fault.ErrAssetNotFound
		case rpcCodeStaleProof:
			return fault.ErrStaleProof
		}
		return fmt.Errorf("%s rpc error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return fault.ErrAssetNotFound
	}

	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("failed to unmarshal %s result: %w", method, err)
	}
	return nil
}

func (c *Client) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	var asset models.Asset
	if err := c.call(ctx, "getAsset", map[string]string{"id": id}, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

func (c *Client) GetAssetProof(ctx context.Context, id string) (*models.AssetProof, error) {
	var proof models.AssetProof
	if err := c.call(ctx, "getAssetProof", map[string]string{"id": id}, &proof); err != nil {
		return nil, err
	}
	return &proof, nil
}

func (c *Client) GetSignaturesForAsset(ctx context.Context, id string) ([]models.AssetSignature, error) {
	var signatures []models.AssetSignature
	if err := c.call(ctx, "getSignaturesForAsset", map[string]string{"id": id}, &signatures); err != nil {
		return nil, err
	}
	return signatures, nil
}

func (c *Client) GetAssetsByOwner(ctx context.Context, owner string) ([]*models.Asset, error) {
	var assets []*models.Asset
	if err := c.call(ctx, "getAssetsByOwner", map[string]string{"owner": owner}, &assets); err != nil {
		return nil, err
	}
	return assets, nil
}

// transferParams is the wire form of a leaf transfer submission. Digests are
// sent the way they arrived, base58.
type transferParams struct {
	AssetID         string   `json:"asset_id"`
	TreeID          string   `json:"tree_id"`
	LeafIndex       uint64   `json:"leaf_index"`
	Root            string   `json:"root"`
	Leaf            string   `json:"leaf"`
	Proof           []string `json:"proof"`
	DataHash        string   `json:"data_hash"`
	CreatorHash     string   `json:"creator_hash"`
	CurrentOwner    string   `json:"current_owner"`
	DelegateOrOwner string   `json:"delegate_or_owner"`
	NewOwner        string   `json:"new_owner"`
}

// SubmitTransfer submits the leaf transfer bound to its proof snapshot and
// returns the confirmation signature. Submission should happen promptly after
// the proof fetch; ErrStaleProof from the index means re-fetch and rebuild.
func (c *Client) SubmitTransfer(ctx context.Context, instruction *merkle.TransferInstruction) (string, error) {
	proof := make([]string, 0, len(instruction.Proof))
	for _, node := range instruction.Proof {
		proof = append(proof, node.String())
	}

	params := transferParams{
		AssetID:         instruction.AssetID,
		TreeID:          instruction.TreeID,
		LeafIndex:       instruction.LeafIndex,
		Root:            instruction.Root.String(),
		Leaf:            instruction.Leaf.String(),
		Proof:           proof,
		DataHash:        instruction.DataHash.String(),
		CreatorHash:     instruction.CreatorHash.String(),
		CurrentOwner:    instruction.CurrentOwner,
		DelegateOrOwner: instruction.DelegateOrOwner,
		NewOwner:        instruction.NewOwner,
	}

	var result struct {
		Signature string `json:"signature"`
	}
	if err := c.call(ctx, "submitLeafTransfer", params, &result); err != nil {
		return "", err
	}
	return result.Signature, nil
}
