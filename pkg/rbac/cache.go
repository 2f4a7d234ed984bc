package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pradumya004/Getmax-wfm-sub009/pkg/observability"
)

// Cache fronts the role registry with resolved permission sets. Entries are
// version-keyed: the cache store holds a pointer key mapping (tenant, role)
// to the role's current version marker, and immutable value keys per
// version. A role mutation produces a new version, so stale value entries
// are simply never referenced again; the pointer's TTL bounds the staleness
// window when the in-process invalidation is missed.
//
// On cache-store unavailability resolution fails open to a direct registry
// read (degraded mode) and emits an observability signal. Denying all
// traffic because a cache is down would be outage amplification.
type Cache struct {
	registry *Registry
	redis    *redis.Client
	l1       *lru.Cache[string, PermissionSet]
	ttl      time.Duration
	metrics  *observability.Metrics
	logger   *observability.Logger
}

// NewCache creates a permission cache. redisClient may be nil, in which
// case every resolve is an L1-or-registry read.
func NewCache(registry *Registry, redisClient *redis.Client, ttl time.Duration, l1Size int, metrics *observability.Metrics, logger *observability.Logger) (*Cache, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if l1Size <= 0 {
		l1Size = 1024
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	l1, err := lru.New[string, PermissionSet](l1Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create L1 cache: %w", err)
	}

	return &Cache{
		registry: registry,
		redis:    redisClient,
		l1:       l1,
		ttl:      ttl,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

func versionKey(tenantID, roleID string) string {
	return fmt.Sprintf("permver:%s:%s", tenantID, roleID)
}

func valueKey(tenantID, roleID string, version int64) string {
	return fmt.Sprintf("perm:%s:%s:%d", tenantID, roleID, version)
}

func l1Key(tenantID, roleID string, version int64) string {
	return fmt.Sprintf("%s:%s@%d", tenantID, roleID, version)
}

// Resolve returns the permission set for (tenant, role), cache-first with
// registry fallback. Repeated resolves of the same version yield identical
// sets until the role is mutated.
func (c *Cache) Resolve(ctx context.Context, tenantID, roleID string) (PermissionSet, error) {
	if c.redis != nil {
		set, found, err := c.lookup(ctx, tenantID, roleID)
		if err == nil && found {
			return set, nil
		}
		if err != nil {
			// Degraded mode: the store is unreachable, not missing a key.
			// Fall open to the registry and say so.
			c.metrics.CacheDegradedTotal.Inc()
			c.logger.WithError(err).
				WithFields(map[string]interface{}{"tenant_id": tenantID, "role_id": roleID}).
				Warn("permission cache degraded, falling back to role registry")
			return c.resolveFromRegistry(ctx, tenantID, roleID, false)
		}
	}

	c.metrics.CacheMissesTotal.Inc()
	return c.resolveFromRegistry(ctx, tenantID, roleID, c.redis != nil)
}

// lookup checks the version pointer and then the L1/L2 value entries.
// found=false with nil error means a clean miss.
func (c *Cache) lookup(ctx context.Context, tenantID, roleID string) (PermissionSet, bool, error) {
	verStr, err := c.redis.Get(ctx, versionKey(tenantID, roleID)).Result()
	if err == redis.Nil {
		return PermissionSet{}, false, nil
	}
	if err != nil {
		return PermissionSet{}, false, err
	}

	version, err := strconv.ParseInt(verStr, 10, 64)
	if err != nil {
		// Corrupt pointer; treat as a miss and let the rebuild overwrite it
		return PermissionSet{}, false, nil
	}

	if set, ok := c.l1.Get(l1Key(tenantID, roleID, version)); ok {
		c.metrics.CacheHitsTotal.WithLabelValues("l1").Inc()
		return set, true, nil
	}

	data, err := c.redis.Get(ctx, valueKey(tenantID, roleID, version)).Result()
	if err == redis.Nil {
		return PermissionSet{}, false, nil
	}
	if err != nil {
		return PermissionSet{}, false, err
	}

	var set PermissionSet
	if err := json.Unmarshal([]byte(data), &set); err != nil {
		// Corrupt entry; drop it and rebuild from the registry
		c.redis.Del(ctx, valueKey(tenantID, roleID, version))
		return PermissionSet{}, false, nil
	}

	c.l1.Add(l1Key(tenantID, roleID, version), set)
	c.metrics.CacheHitsTotal.WithLabelValues("l2").Inc()
	return set, true, nil
}

// resolveFromRegistry reads the role directly and repopulates the cache
func (c *Cache) resolveFromRegistry(ctx context.Context, tenantID, roleID string, store bool) (PermissionSet, error) {
	role, err := c.registry.GetRole(ctx, tenantID, roleID)
	if err != nil {
		return PermissionSet{}, err
	}

	set := NewPermissionSet(role)
	c.l1.Add(l1Key(tenantID, roleID, set.Version), set)

	if store && c.redis != nil {
		data, err := json.Marshal(set)
		if err == nil {
			pipe := c.redis.Pipeline()
			pipe.Set(ctx, versionKey(tenantID, roleID), strconv.FormatInt(set.Version, 10), c.ttl)
			pipe.Set(ctx, valueKey(tenantID, roleID, set.Version), data, c.ttl)
			if _, err := pipe.Exec(ctx); err != nil {
				c.logger.WithError(err).Warn("failed to populate permission cache")
			}
		}
	}

	return set, nil
}

// Invalidate drops the cached pointer for a role. Registered as the
// registry's OnRoleChanged hook so mutations are visible on the next
// resolve without waiting out the TTL.
func (c *Cache) Invalidate(ctx context.Context, tenantID, roleID string) {
	prefix := tenantID + ":" + roleID + "@"
	for _, key := range c.l1.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.l1.Remove(key)
		}
	}

	if c.redis != nil {
		if err := c.redis.Del(ctx, versionKey(tenantID, roleID)).Err(); err != nil {
			c.logger.WithError(err).
				WithFields(map[string]interface{}{"tenant_id": tenantID, "role_id": roleID}).
				Warn("failed to invalidate permission cache entry")
		}
	}
}

// Ping probes the cache store. Used by the health checker's readiness probe.
func (c *Cache) Ping(ctx context.Context) error {
	if c.redis == nil {
		return fmt.Errorf("cache store not configured")
	}
	return c.redis.Ping(ctx).Err()
}
