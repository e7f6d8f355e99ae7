package assetindex

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vaultik/capsulechain/internal/merkle"
	"github.com/vaultik/capsulechain/internal/models"
)

const (
	assetKeyPrefix = "asset:"
	ownerKeyPrefix = "asset_owner:"
)

// CachedClient fronts an index Service with a short-TTL Redis cache for asset
// lookups. Proofs are deliberately never cached: a proof is a point-in-time
// snapshot that concurrent tree mutation invalidates, so it must always be
// fetched fresh.
type CachedClient struct {
	inner  Service
	client *redis.Client
	ttl    time.Duration
}

func NewCachedClient(inner Service, client *redis.Client, ttl time.Duration) *CachedClient {
	return &CachedClient{inner: inner, client: client, ttl: ttl}
}

func (c *CachedClient) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	key := assetKeyPrefix + id

	jsonData, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var asset models.Asset
		if err := json.Unmarshal([]byte(jsonData), &asset); err == nil {
			return &asset, nil
		}
		// undecodable cache entry, fall through to the index
	}

	asset, err := c.inner.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(asset); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			// cache write failure is not worth failing the lookup
			fmt.Printf("failed to cache asset %s: %v\n", id, err)
		}
	}
	return asset, nil
}

func (c *CachedClient) GetAssetsByOwner(ctx context.Context, owner string) ([]*models.Asset, error) {
	key := ownerKeyPrefix + owner

	jsonData, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var assets []*models.Asset
		if err := json.Unmarshal([]byte(jsonData), &assets); err == nil {
			return assets, nil
		}
	}

	assets, err := c.inner.GetAssetsByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(assets); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			fmt.Printf("failed to cache assets for %s: %v\n", owner, err)
		}
	}
	return assets, nil
}

// GetAssetProof always goes to the index, never the cache.
func (c *CachedClient) GetAssetProof(ctx context.Context, id string) (*models.AssetProof, error) {
	return c.inner.GetAssetProof(ctx, id)
}

func (c *CachedClient) GetSignaturesForAsset(ctx context.Context, id string) ([]models.AssetSignature, error) {
	return c.inner.GetSignaturesForAsset(ctx, id)
}

// SubmitTransfer passes through and drops the moved asset's cache entries so
// the next read does not see the stale owner.
func (c *CachedClient) SubmitTransfer(ctx context.Context, instruction *merkle.TransferInstruction) (string, error) {
	signature, err := c.inner.SubmitTransfer(ctx, instruction)
	if err != nil {
		return "", err
	}

	keys := []string{
		assetKeyPrefix + instruction.AssetID,
		ownerKeyPrefix + instruction.CurrentOwner,
		ownerKeyPrefix + instruction.NewOwner,
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		fmt.Printf("failed to invalidate owner caches after transfer: %v\n", err)
	}
	return signature, nil
}
