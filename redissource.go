package permgate

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/permgate/permgate/node"
)

const redisKeyPrefixDefault = "prm"

// RedisSource is a [Source] backed by Redis sets: one set per identity for
// direct permissions, one per group for group permissions, and one per
// identity for memberships. Redis prunes emptied sets itself, so the
// no-stray-empty-containers invariant holds for free.
//
// RedisSource has no built-in groups and no Default membership fallback: it
// behaves as a pure data source, which makes it suitable as a secondary
// aggregator behind a [FileSource]. Operational failures surface as errors
// wrapping [ErrSourceUnavailable].
type RedisSource struct {
	client redis.UniversalClient
	name   string
	prefix string
}

// NewRedisSource creates a RedisSource labeled name using the given key
// prefix (default "prm").
func NewRedisSource(client redis.UniversalClient, name, prefix string) *RedisSource {
	if name == "" {
		name = "redis"
	}
	if prefix == "" {
		prefix = redisKeyPrefixDefault
	}
	return &RedisSource{
		client: client,
		name:   name,
		prefix: prefix,
	}
}

// Name implements [Source].
func (s *RedisSource) Name() string {
	return s.name
}

func (s *RedisSource) userKey(id Identity) string {
	return s.prefix + ":u:" + id.String()
}

func (s *RedisSource) groupKey(group string) string {
	return s.prefix + ":g:" + group
}

func (s *RedisSource) memberKey(id Identity) string {
	return s.prefix + ":m:" + id.String()
}

func (s *RedisSource) readSet(ctx context.Context, key string) (node.Set, error) {
	values, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: smembers %s: %v", ErrSourceUnavailable, key, err)
	}
	return node.SetFromSlice(values), nil
}

func (s *RedisSource) addSet(ctx context.Context, key string, nodes node.Set) error {
	if nodes.Len() == 0 {
		return nil
	}
	members := make([]interface{}, 0, nodes.Len())
	for _, n := range nodes.Sorted() {
		members = append(members, n)
	}
	if err := s.client.SAdd(ctx, key, members...).Err(); err != nil {
		return fmt.Errorf("%w: sadd %s: %v", ErrSourceUnavailable, key, err)
	}
	return nil
}

func (s *RedisSource) removeSet(ctx context.Context, key string, nodes node.Set) error {
	if nodes.Len() == 0 {
		return nil
	}
	members := make([]interface{}, 0, nodes.Len())
	for _, n := range nodes.Sorted() {
		members = append(members, n)
	}
	if err := s.client.SRem(ctx, key, members...).Err(); err != nil {
		return fmt.Errorf("%w: srem %s: %v", ErrSourceUnavailable, key, err)
	}
	return nil
}

// DirectPermissions implements [Source].
func (s *RedisSource) DirectPermissions(ctx context.Context, id Identity) (node.Set, error) {
	return s.readSet(ctx, s.userKey(id))
}

// AddDirectPermissions implements [Source]. An empty set is a no-op.
func (s *RedisSource) AddDirectPermissions(ctx context.Context, id Identity, nodes node.Set) error {
	return s.addSet(ctx, s.userKey(id), nodes)
}

// RemoveDirectPermissions implements [Source]. An empty set is a no-op.
func (s *RedisSource) RemoveDirectPermissions(ctx context.Context, id Identity, nodes node.Set) error {
	return s.removeSet(ctx, s.userKey(id), nodes)
}

// GroupPermissions implements [Source].
func (s *RedisSource) GroupPermissions(ctx context.Context, group string) (node.Set, error) {
	return s.readSet(ctx, s.groupKey(group))
}

// AddGroupPermissions implements [Source]. An empty set is a no-op.
func (s *RedisSource) AddGroupPermissions(ctx context.Context, group string, nodes node.Set) error {
	return s.addSet(ctx, s.groupKey(group), nodes)
}

// RemoveGroupPermissions implements [Source]. An empty set is a no-op.
func (s *RedisSource) RemoveGroupPermissions(ctx context.Context, group string, nodes node.Set) error {
	return s.removeSet(ctx, s.groupKey(group), nodes)
}

// Memberships implements [Source]. Group names return sorted so resolution
// order is deterministic. No fallback group is injected.
func (s *RedisSource) Memberships(ctx context.Context, id Identity) ([]string, error) {
	groups, err := s.client.SMembers(ctx, s.memberKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: smembers %s: %v", ErrSourceUnavailable, s.memberKey(id), err)
	}
	sort.Strings(groups)
	return groups, nil
}

// AddMembership implements [Source].
func (s *RedisSource) AddMembership(ctx context.Context, id Identity, group string) error {
	if err := s.client.SAdd(ctx, s.memberKey(id), group).Err(); err != nil {
		return fmt.Errorf("%w: sadd %s: %v", ErrSourceUnavailable, s.memberKey(id), err)
	}
	return nil
}

// RemoveMembership implements [Source].
func (s *RedisSource) RemoveMembership(ctx context.Context, id Identity, group string) error {
	if err := s.client.SRem(ctx, s.memberKey(id), group).Err(); err != nil {
		return fmt.Errorf("%w: srem %s: %v", ErrSourceUnavailable, s.memberKey(id), err)
	}
	return nil
}
