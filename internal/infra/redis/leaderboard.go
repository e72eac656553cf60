package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultLeaderboardTTL keeps a mirrored leaderboard for a day after its last update.
const DefaultLeaderboardTTL = 24 * time.Hour

// LeaderboardMirror copies session scores into a sorted set at leaderboard:{code}
// so external dashboards can read rankings without loading sessions.
type LeaderboardMirror struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLeaderboardMirror(client *redis.Client, ttl time.Duration) *LeaderboardMirror {
	if ttl <= 0 {
		ttl = DefaultLeaderboardTTL
	}
	return &LeaderboardMirror{client: client, ttl: ttl}
}

// RecordScore sets name's total score and refreshes the key expiry.
func (m *LeaderboardMirror) RecordScore(ctx context.Context, code, name string, score int) error {
	key := m.key(code)
	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(score), Member: name})
		pipe.Expire(ctx, key, m.ttl)
		return nil
	})
	return err
}

// ClearScores drops the mirrored leaderboard of a session.
func (m *LeaderboardMirror) ClearScores(ctx context.Context, code string) error {
	return m.client.Del(ctx, m.key(code)).Err()
}

func (m *LeaderboardMirror) key(code string) string {
	return "leaderboard:" + code
}
