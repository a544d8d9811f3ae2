package enrichment

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Raghu-Nath97/secureops360/internal/logger"
	"github.com/Raghu-Nath97/secureops360/internal/metrics"
	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// AssetStore is a read-through cache over the asset registry. Entries
// do not expire; the registry invalidates keys explicitly when an asset
// changes. Keys are tenant-scoped, so tenants never observe each
// other's assets.
type AssetStore struct {
	backend        Backend[models.AssetContext]
	source         AssetSource
	refreshTimeout time.Duration
	group          singleflight.Group

	now func() time.Time
}

// NewAssetStore creates an asset store over the backend and source.
func NewAssetStore(backend Backend[models.AssetContext], source AssetSource, refreshTimeout time.Duration) *AssetStore {
	if refreshTimeout <= 0 {
		refreshTimeout = 3 * time.Second
	}
	return &AssetStore{
		backend:        backend,
		source:         source,
		refreshTimeout: refreshTimeout,
		now:            time.Now,
	}
}

// Resolve returns asset context for the tenant asset key, refreshing
// through the registry on miss. The degraded flag is set when the
// refresh failed and no cached entry exists. A nil context with a nil
// error means the registry has no record for the key.
func (s *AssetStore) Resolve(ctx context.Context, key string) (*models.AssetContext, bool, error) {
	entry, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		logger.Warnf("asset store read failed for %s: %v", key, err)
		ok = false
	}
	if ok {
		metrics.CacheLookups.WithLabelValues("asset", "found").Inc()
		return materializeAsset(&entry), false, nil
	}
	metrics.CacheLookups.WithLabelValues("asset", "miss").Inc()

	fresh, err := s.refresh(ctx, key)
	if err == nil {
		return materializeAsset(fresh), false, nil
	}
	metrics.RefreshFailures.WithLabelValues("asset").Inc()
	return nil, true, err
}

// Invalidate drops the cached entry so the next lookup refreshes from
// the registry. Called when the registry reports an asset update.
func (s *AssetStore) Invalidate(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

func (s *AssetStore) refresh(ctx context.Context, key string) (*models.AssetContext, error) {
	ch := s.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.Background(), s.refreshTimeout)
		defer cancel()

		asset, err := s.source.Refresh(fetchCtx, key)
		if err == ErrNotFound {
			asset = &models.AssetContext{TenantAssetID: key, NotFound: true}
		} else if err != nil {
			return nil, err
		}
		asset.UpdatedAt = s.now()
		if err := s.backend.Set(fetchCtx, key, *asset); err != nil {
			logger.Warnf("asset store write failed for %s: %v", key, err)
		}
		return asset, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.AssetContext), nil
	}
}

// Close releases the backing store.
func (s *AssetStore) Close() error {
	return s.backend.Close()
}

func materializeAsset(asset *models.AssetContext) *models.AssetContext {
	if asset == nil || asset.NotFound {
		return nil
	}
	return asset
}
