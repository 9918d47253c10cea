package redis

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence records live connections per game so every instance sees the
// same viewers. Each game is one hash of connection id to user id.
type Presence struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresence(client *redis.Client, ttl time.Duration) *Presence {
	return &Presence{client: client, ttl: ttl}
}

// Join registers connID and reports whether it is the user's first
// connection to the game.
func (p *Presence) Join(ctx context.Context, gameID, userID int64, connID string) (bool, error) {
	key := p.key(gameID)
	var vals *redis.StringSliceCmd
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, connID, userID)
		if p.ttl > 0 {
			pipe.Expire(ctx, key, p.ttl)
		}
		vals = pipe.HVals(ctx, key)
		return nil
	})
	if err != nil {
		return false, err
	}
	return count(vals.Val(), userID) == 1, nil
}

// Leave drops connID and reports whether the user has no connection left.
func (p *Presence) Leave(ctx context.Context, gameID, userID int64, connID string) (bool, error) {
	key := p.key(gameID)
	var vals *redis.StringSliceCmd
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, key, connID)
		vals = pipe.HVals(ctx, key)
		return nil
	})
	if err != nil {
		return false, err
	}
	return count(vals.Val(), userID) == 0, nil
}

func (p *Presence) Viewers(ctx context.Context, gameID int64) ([]int64, error) {
	vals, err := p.client.HVals(ctx, p.key(gameID)).Result()
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(vals))
	var out []int64
	for _, v := range vals {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (p *Presence) key(gameID int64) string {
	return "game:" + strconv.FormatInt(gameID, 10) + ":presence"
}

func count(vals []string, userID int64) int {
	want := strconv.FormatInt(userID, 10)
	n := 0
	for _, v := range vals {
		if v == want {
			n++
		}
	}
	return n
}
