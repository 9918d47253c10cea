package redis

import (
	"context"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"trivia-duel-service/internal/domain"
)

// AnswerKeyLoader fetches an answer key from the question bank.
type AnswerKeyLoader interface {
	LoadAnswerKey(ctx context.Context, questionID int64) (domain.AnswerKey, error)
}

// AnswerKeyCache shares answer keys across instances through Redis and falls
// back to the loader on a miss. Each key is one hash:
//
//	HSET question:{id}:answer_key correct {choiceID} choices {id,id,...}
type AnswerKeyCache struct {
	client *redis.Client
	loader AnswerKeyLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewAnswerKeyCache(client *redis.Client, loader AnswerKeyLoader, ttl time.Duration) *AnswerKeyCache {
	return &AnswerKeyCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *AnswerKeyCache) AnswerKey(ctx context.Context, questionID int64) (domain.AnswerKey, error) {
	if key, ok := c.cached(ctx, questionID); ok {
		return key, nil
	}

	result, err, _ := c.sf.Do(strconv.FormatInt(questionID, 10), func() (interface{}, error) {
		if key, ok := c.cached(ctx, questionID); ok {
			return key, nil
		}
		key, err := c.loader.LoadAnswerKey(ctx, questionID)
		if err != nil {
			return domain.AnswerKey{}, err
		}

		redisKey := c.key(questionID)
		pipe := c.client.TxPipeline()
		pipe.HSet(ctx, redisKey,
			"correct", key.CorrectChoiceID,
			"choices", joinIDs(key.ChoiceIDs),
		)
		if ttl := c.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, redisKey, ttl)
		}
		// a failed write only costs the next caller a reload
		_, _ = pipe.Exec(ctx)
		return key, nil
	})
	if err != nil {
		return domain.AnswerKey{}, err
	}
	return result.(domain.AnswerKey), nil
}

func (c *AnswerKeyCache) cached(ctx context.Context, questionID int64) (domain.AnswerKey, bool) {
	fields, err := c.client.HGetAll(ctx, c.key(questionID)).Result()
	if err != nil || len(fields) == 0 {
		return domain.AnswerKey{}, false
	}
	correct, err := strconv.ParseInt(fields["correct"], 10, 64)
	if err != nil {
		return domain.AnswerKey{}, false
	}
	choices, err := splitIDs(fields["choices"])
	if err != nil {
		return domain.AnswerKey{}, false
	}
	return domain.AnswerKey{QuestionID: questionID, CorrectChoiceID: correct, ChoiceIDs: choices}, true
}

// IsCorrect fails with domain.ErrInvalidChoice for a choice that does not
// belong to the question.
func (c *AnswerKeyCache) IsCorrect(ctx context.Context, questionID, choiceID int64) (bool, error) {
	key, err := c.AnswerKey(ctx, questionID)
	if err != nil {
		return false, err
	}
	if !key.Has(choiceID) {
		return false, domain.Wrap(domain.ErrInvalidChoice, "choice %d", choiceID)
	}
	return key.CorrectChoiceID == choiceID, nil
}

func (c *AnswerKeyCache) CorrectChoice(ctx context.Context, questionID int64) (int64, error) {
	key, err := c.AnswerKey(ctx, questionID)
	if err != nil {
		return 0, err
	}
	return key.CorrectChoiceID, nil
}

func (c *AnswerKeyCache) key(questionID int64) string {
	return "question:" + strconv.FormatInt(questionID, 10) + ":answer_key"
}

func (c *AnswerKeyCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func splitIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
