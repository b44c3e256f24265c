package projects

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const membershipVersionKey = "memberships:version"

// MembershipLookup answers the active-membership question from storage.
type MembershipLookup interface {
	HasActiveMembership(ctx context.Context, userID int64, projectID uuid.UUID) (bool, error)
}

// MembershipCache fronts membership lookups with versioned Redis keys.
// Membership mutations bump the version, invalidating every cached answer
// at once. Concurrent lookups for the same pair collapse through
// singleflight. Implements authz.MembershipResolver.
type MembershipCache struct {
	lookup MembershipLookup
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewMembershipCache constructs the cache. A nil client degrades to
// direct lookups.
func NewMembershipCache(lookup MembershipLookup, client *redis.Client, ttl time.Duration) *MembershipCache {
	return &MembershipCache{lookup: lookup, client: client, ttl: ttl}
}

// IsActiveMember reports whether the user holds an active membership on
// the project.
func (c *MembershipCache) IsActiveMember(ctx context.Context, userID int64, projectID uuid.UUID) (bool, error) {
	if c.client == nil {
		return c.lookup.HasActiveMembership(ctx, userID, projectID)
	}
	key, err := c.buildKey(ctx, userID, projectID)
	if err != nil {
		return c.lookup.HasActiveMembership(ctx, userID, projectID)
	}

	cached, err := c.client.Get(ctx, key).Result()
	if err == nil {
		return cached == "1", nil
	}
	if err != redis.Nil {
		return c.lookup.HasActiveMembership(ctx, userID, projectID)
	}

	value, err, _ := c.group.Do(key, func() (interface{}, error) {
		active, err := c.lookup.HasActiveMembership(ctx, userID, projectID)
		if err != nil {
			return false, err
		}
		stored := "0"
		if active {
			stored = "1"
		}
		if err := c.client.Set(ctx, key, stored, c.ttl).Err(); err != nil {
			return active, nil
		}
		return active, nil
	})
	if err != nil {
		return false, err
	}
	return value.(bool), nil
}

// Invalidate bumps the membership cache version after a mutation.
func (c *MembershipCache) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, membershipVersionKey).Err()
}

// Warm preloads the active-member answer for the given pairs. Used by the
// background warmup job.
func (c *MembershipCache) Warm(ctx context.Context, members []Membership) error {
	if c.client == nil {
		return nil
	}
	for _, m := range members {
		key, err := c.buildKey(ctx, m.UserID, m.ProjectID)
		if err != nil {
			return err
		}
		stored := "0"
		if m.IsActive {
			stored = "1"
		}
		if err := c.client.Set(ctx, key, stored, c.ttl).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (c *MembershipCache) buildKey(ctx context.Context, userID int64, projectID uuid.UUID) (string, error) {
	version, err := c.version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("memberships:%d:%d:%s", version, userID, projectID), nil
}

func (c *MembershipCache) version(ctx context.Context) (int64, error) {
	version, err := c.client.Get(ctx, membershipVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, membershipVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}
