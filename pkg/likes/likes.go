// Package likes keeps likes in Redis: a set of user IDs per liked object and
// a sorted set ranking the objects of one subject by like count.
package likes

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ds124wfegd/ewm/config"
	"github.com/go-redis/redis/v8"
)

// toggleScript changes membership and keeps the ranking equal to the set size
// in one step.
var toggleScript = redis.NewScript(`
local changed
if ARGV[1] == "add" then
	changed = redis.call("SADD", KEYS[1], ARGV[2])
else
	changed = redis.call("SREM", KEYS[1], ARGV[2])
end
local n = redis.call("SCARD", KEYS[1])
if n > 0 then
	redis.call("ZADD", KEYS[2], n, ARGV[3])
else
	redis.call("ZREM", KEYS[2], ARGV[3])
end
return changed
`)

// Subject is the kind of object being liked. Every subject has its own
// key space and its own ranking.
type Subject string

const (
	Events    Subject = "event"
	Locations Subject = "location"
)

type Store struct {
	client  *redis.Client
	prefix  string
	subject Subject
}

// NewStore returns a store for event likes; use For to switch subject.
func NewStore(client *redis.Client, cfg *config.LikesConfig) *Store {
	return &Store{client: client, prefix: cfg.KeyPrefix, subject: Events}
}

// For returns a store sharing the connection but keyed by subject.
func (s *Store) For(subject Subject) *Store {
	return &Store{client: s.client, prefix: s.prefix, subject: subject}
}

func (s *Store) likesKey(id int64) string {
	return s.prefix + ":" + string(s.subject) + ":" + strconv.FormatInt(id, 10)
}

func (s *Store) topKey() string { return s.prefix + ":" + string(s.subject) + ":top" }

// Like is idempotent: liking twice counts once.
func (s *Store) Like(ctx context.Context, userID, id int64) error {
	return s.toggle(ctx, "add", userID, id)
}

func (s *Store) Unlike(ctx context.Context, userID, id int64) error {
	return s.toggle(ctx, "remove", userID, id)
}

// Liked reports whether userID currently likes id.
func (s *Store) Liked(ctx context.Context, userID, id int64) (bool, error) {
	liked, err := s.client.SIsMember(ctx, s.likesKey(id), userID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check like: %w", err)
	}
	return liked, nil
}

func (s *Store) toggle(ctx context.Context, op string, userID, id int64) error {
	keys := []string{s.likesKey(id), s.topKey()}
	if err := toggleScript.Run(ctx, s.client, keys, op, userID, id).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to %s %s like: %w", op, s.subject, err)
	}
	return nil
}

func (s *Store) Counts(ctx context.Context, ids []int64) (map[int64]int64, error) {
	counts := make(map[int64]int64, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}

	pipe := s.client.Pipeline()
	cmds := make(map[int64]*redis.IntCmd, len(ids))
	for _, id := range ids {
		cmds[id] = pipe.SCard(ctx, s.likesKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to count likes: %w", err)
	}

	for id, cmd := range cmds {
		counts[id] = cmd.Val()
	}
	return counts, nil
}

// Top returns up to count IDs of the subject, most liked first.
func (s *Store) Top(ctx context.Context, count int) ([]int64, error) {
	if count <= 0 {
		return []int64{}, nil
	}

	members, err := s.client.ZRevRange(ctx, s.topKey(), 0, int64(count-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get top liked %ss: %w", s.subject, err)
	}

	ids := make([]int64, 0, len(members))
	for _, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
