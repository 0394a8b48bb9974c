// Package stats records endpoint hits in Redis and answers view counts.
//
// Every URI owns two sorted sets scored by hit time: one with a member per
// hit and one with a member per client IP, which gives unique views.
package stats

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/ds124wfegd/ewm/config"
	"github.com/ds124wfegd/ewm/internal/entity"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ViewStats is the number of hits of one URI.
type ViewStats struct {
	App  string `json:"app"`
	URI  string `json:"uri"`
	Hits int64  `json:"hits"`
}

type Store struct {
	client *redis.Client
	app    string
	prefix string
}

func NewStore(client *redis.Client, cfg *config.StatsConfig) *Store {
	return &Store{
		client: client,
		app:    cfg.App,
		prefix: cfg.KeyPrefix,
	}
}

// EventURI is the URI under which views of an event are recorded.
func EventURI(eventID int64) string {
	return "/events/" + strconv.FormatInt(eventID, 10)
}

func (s *Store) hitsKey(uri string) string { return s.prefix + ":hits:" + uri }
func (s *Store) ipsKey(uri string) string  { return s.prefix + ":ips:" + uri }
func (s *Store) urisKey() string           { return s.prefix + ":uris" }

func (s *Store) RecordHit(ctx context.Context, hit *entity.Hit) error {
	if hit.URI == "" {
		return fmt.Errorf("hit uri is required")
	}
	ts := hit.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	score := float64(ts.UnixNano()) / 1e9

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, s.hitsKey(hit.URI), &redis.Z{Score: score, Member: uuid.NewString()})
	if hit.IP != "" {
		pipe.ZAdd(ctx, s.ipsKey(hit.URI), &redis.Z{Score: score, Member: hit.IP})
	}
	pipe.SAdd(ctx, s.urisKey(), hit.URI)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record hit: %w", err)
	}
	return nil
}

// ViewCounts returns unique views per event between since and until. A zero
// bound is open.
func (s *Store) ViewCounts(ctx context.Context, eventIDs []int64, since, until time.Time) (map[int64]int64, error) {
	counts := make(map[int64]int64, len(eventIDs))
	if len(eventIDs) == 0 {
		return counts, nil
	}

	lo, hi := scoreRange(since, until)
	pipe := s.client.Pipeline()
	cmds := make(map[int64]*redis.IntCmd, len(eventIDs))
	for _, id := range eventIDs {
		cmds[id] = pipe.ZCount(ctx, s.ipsKey(EventURI(id)), lo, hi)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to count views: %w", err)
	}

	for id, cmd := range cmds {
		counts[id] = cmd.Val()
	}
	return counts, nil
}

// Stats returns hit counts for uris (all known URIs when empty), most
// visited first.
func (s *Store) Stats(ctx context.Context, uris []string, since, until time.Time, unique bool) ([]ViewStats, error) {
	if len(uris) == 0 {
		known, err := s.client.SMembers(ctx, s.urisKey()).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list uris: %w", err)
		}
		uris = known
	}

	lo, hi := scoreRange(since, until)
	pipe := s.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(uris))
	for i, uri := range uris {
		key := s.hitsKey(uri)
		if unique {
			key = s.ipsKey(uri)
		}
		cmds[i] = pipe.ZCount(ctx, key, lo, hi)
	}
	if len(uris) > 0 {
		if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
			return nil, fmt.Errorf("failed to count hits: %w", err)
		}
	}

	result := make([]ViewStats, 0, len(uris))
	for i, uri := range uris {
		if hits := cmds[i].Val(); hits > 0 {
			result = append(result, ViewStats{App: s.app, URI: uri, Hits: hits})
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Hits > result[j].Hits })
	return result, nil
}

func scoreRange(since, until time.Time) (string, string) {
	lo, hi := "-inf", "+inf"
	if !since.IsZero() {
		lo = formatScore(since)
	}
	if !until.IsZero() {
		hi = formatScore(until)
	}
	return lo, hi
}

func formatScore(t time.Time) string {
	return strconv.FormatFloat(math.Round(float64(t.UnixNano())/1e3)/1e6, 'f', 6, 64)
}
