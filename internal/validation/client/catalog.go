package client

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wardenhq/warden/internal/cachekey"
	"github.com/wardenhq/warden/internal/redisx"
	"github.com/wardenhq/warden/internal/validation/engine"
)

// CatalogTTLs configures the mirror TTLs for catalog projections.
type CatalogTTLs struct {
	Conflicts    time.Duration
	AccessGroups time.Duration
}

// Catalog reads conflict and membership projections from the catalog service.
type Catalog struct {
	http  *httpClient
	cache *redisx.Cache
	ttls  CatalogTTLs
	log   *zap.Logger
}

// NewCatalog builds the catalog client. cache may be nil; every read then
// hits the catalog service.
func NewCatalog(baseURL string, timeout time.Duration, cache *redisx.Cache, ttls CatalogTTLs, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	if ttls.Conflicts <= 0 {
		ttls.Conflicts = 10 * time.Minute
	}
	if ttls.AccessGroups <= 0 {
		ttls.AccessGroups = 10 * time.Minute
	}
	return &Catalog{
		http:  newHTTPClient("catalog", baseURL, timeout, log),
		cache: cache,
		ttls:  ttls,
		log:   log,
	}
}

// ConflictMatrix returns every conflict edge, read through conflicts:matrix.
func (c *Catalog) ConflictMatrix(ctx context.Context) ([]engine.ConflictEdge, error) {
	if c.cache != nil {
		var cached []engine.ConflictEdge
		hit, err := c.cache.GetJSON(ctx, cachekey.ConflictsMatrix, &cached)
		if err != nil {
			c.log.Warn("cache read failed, fetching from catalog",
				zap.String("key", cachekey.ConflictsMatrix), zap.Error(err))
		} else if hit {
			return cached, nil
		}
	}

	var resp struct {
		Conflicts []engine.ConflictEdge `json:"conflicts"`
	}
	if err := c.http.getJSON(ctx, "/conflicts", &resp); err != nil {
		return nil, fmt.Errorf("fetch conflict matrix: %w", err)
	}
	c.fill(ctx, cachekey.ConflictsMatrix, resp.Conflicts, c.ttls.Conflicts)
	return resp.Conflicts, nil
}

// AccessGroups returns the groups carrying an access, read through
// access:{id}:groups.
func (c *Catalog) AccessGroups(ctx context.Context, accessID int64) ([]engine.GroupRef, error) {
	key := cachekey.AccessGroups(accessID)
	if c.cache != nil {
		var cached []engine.GroupRef
		hit, err := c.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			c.log.Warn("cache read failed, fetching from catalog",
				zap.String("key", key), zap.Error(err))
		} else if hit {
			return cached, nil
		}
	}

	var resp struct {
		AccessID int64             `json:"access_id"`
		Groups   []engine.GroupRef `json:"groups"`
	}
	if err := c.http.getJSON(ctx, fmt.Sprintf("/accesses/%d/groups", accessID), &resp); err != nil {
		return nil, fmt.Errorf("fetch groups for access %d: %w", accessID, err)
	}
	c.fill(ctx, key, resp.Groups, c.ttls.AccessGroups)
	return resp.Groups, nil
}

func (c *Catalog) fill(ctx context.Context, key string, value any, ttl time.Duration) {
	if c.cache == nil {
		return
	}
	if err := c.cache.SetJSON(ctx, key, value, ttl); err != nil {
		c.log.Warn("cache fill failed", zap.String("key", key), zap.Error(err))
	}
}
