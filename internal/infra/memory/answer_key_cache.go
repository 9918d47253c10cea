package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"trivia-duel-service/internal/domain"
)

// AnswerKeyLoader fetches a question's answer key from the question bank.
type AnswerKeyLoader interface {
	LoadAnswerKey(ctx context.Context, questionID int64) (domain.AnswerKey, error)
}

// AnswerKeyCache keeps answer keys in process with a TTL so answer checks
// do not hit the question bank every time.
type AnswerKeyCache struct {
	loader AnswerKeyLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[int64]cachedKey
}

type cachedKey struct {
	key       domain.AnswerKey
	expiresAt time.Time
}

func NewAnswerKeyCache(loader AnswerKeyLoader, ttl time.Duration) *AnswerKeyCache {
	return &AnswerKeyCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[int64]cachedKey),
	}
}

func (c *AnswerKeyCache) AnswerKey(ctx context.Context, questionID int64) (domain.AnswerKey, error) {
	if key, ok := c.lookup(questionID); ok {
		return key, nil
	}

	result, err, _ := c.sf.Do(strconv.FormatInt(questionID, 10), func() (interface{}, error) {
		if key, ok := c.lookup(questionID); ok {
			return key, nil
		}
		key, err := c.loader.LoadAnswerKey(ctx, questionID)
		if err != nil {
			return domain.AnswerKey{}, err
		}
		c.mu.Lock()
		c.cache[questionID] = cachedKey{key: key, expiresAt: c.clock().Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return key, nil
	})
	if err != nil {
		return domain.AnswerKey{}, err
	}
	return result.(domain.AnswerKey), nil
}

func (c *AnswerKeyCache) lookup(questionID int64) (domain.AnswerKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[questionID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.AnswerKey{}, false
	}
	return entry.key, true
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

func (c *AnswerKeyCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter spreads expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
