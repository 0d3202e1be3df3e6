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

// Entitlement reads the subject's active groups from the entitlement service.
type Entitlement struct {
	http  *httpClient
	cache *redisx.Cache
	ttl   time.Duration
	log   *zap.Logger
}

// NewEntitlement builds the entitlement client. cache may be nil.
func NewEntitlement(baseURL string, timeout time.Duration, cache *redisx.Cache, userGroupsTTL time.Duration, log *zap.Logger) *Entitlement {
	if log == nil {
		log = zap.NewNop()
	}
	if userGroupsTTL <= 0 {
		userGroupsTTL = 10 * time.Minute
	}
	return &Entitlement{
		http:  newHTTPClient("entitlement", baseURL, timeout, log),
		cache: cache,
		ttl:   userGroupsTTL,
		log:   log,
	}
}

// ActiveGroups returns the user's active group memberships, read through
// user:{id}:active_groups.
func (c *Entitlement) ActiveGroups(ctx context.Context, userID int64) ([]engine.GroupRef, error) {
	key := cachekey.UserActiveGroups(userID)
	if c.cache != nil {
		var cached []engine.GroupRef
		hit, err := c.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			c.log.Warn("cache read failed, fetching from entitlement",
				zap.String("key", key), zap.Error(err))
		} else if hit {
			return cached, nil
		}
	}

	var resp struct {
		Groups []engine.GroupRef `json:"groups"`
	}
	if err := c.http.getJSON(ctx, fmt.Sprintf("/users/%d/current_active_groups", userID), &resp); err != nil {
		return nil, fmt.Errorf("fetch active groups for user %d: %w", userID, err)
	}

	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, key, resp.Groups, c.ttl); err != nil {
			c.log.Warn("cache fill failed", zap.String("key", key), zap.Error(err))
		}
	}
	return resp.Groups, nil
}
