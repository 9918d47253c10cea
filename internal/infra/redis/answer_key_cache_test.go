package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"trivia-duel-service/internal/domain"
	"trivia-duel-service/internal/infra/memory"
)

func TestAnswerKeyCacheStoresInRedis(t *testing.T) {
	mr, client := newRedis(t)

	loader := &countingLoader{AnswerKeyLoader: sampleCatalog()}
	cache := NewAnswerKeyCache(client, loader, time.Minute)

	key, err := cache.AnswerKey(context.Background(), 11)
	if err != nil {
		t.Fatalf("answer key: %v", err)
	}
	if key.CorrectChoiceID != 112 || len(key.ChoiceIDs) != 2 {
		t.Fatalf("unexpected key %+v", key)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if got := mr.HGet("question:11:answer_key", "correct"); got != "112" {
		t.Fatalf("expected cached correct choice, got %q", got)
	}
	if ttl := mr.TTL("question:11:answer_key"); ttl < time.Minute || ttl > 66*time.Second {
		t.Fatalf("expected ttl with jitter, got %v", ttl)
	}

	// a second cache instance shares the entry
	other := NewAnswerKeyCache(client, loader, time.Minute)
	if _, err := other.AnswerKey(context.Background(), 11); err != nil {
		t.Fatalf("answer key from peer: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
}

func TestAnswerKeyCacheReloadsAfterExpiry(t *testing.T) {
	mr, client := newRedis(t)
	loader := &countingLoader{AnswerKeyLoader: sampleCatalog()}
	cache := NewAnswerKeyCache(client, loader, time.Minute)

	_, _ = cache.AnswerKey(context.Background(), 11)
	mr.FastForward(2 * time.Minute)
	_, _ = cache.AnswerKey(context.Background(), 11)
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls=%d", loader.calls)
	}
}

func TestAnswerKeyCacheJudgesChoices(t *testing.T) {
	_, client := newRedis(t)
	cache := NewAnswerKeyCache(client, sampleCatalog(), time.Minute)
	ctx := context.Background()

	ok, err := cache.IsCorrect(ctx, 11, 112)
	if err != nil || !ok {
		t.Fatalf("expected 112 correct, got %v %v", ok, err)
	}
	ok, err = cache.IsCorrect(ctx, 11, 111)
	if err != nil || ok {
		t.Fatalf("expected 111 wrong, got %v %v", ok, err)
	}
	if _, err := cache.IsCorrect(ctx, 11, 5); !errors.Is(err, domain.ErrInvalidChoice) {
		t.Fatalf("expected invalid choice, got %v", err)
	}
	if _, err := cache.CorrectChoice(ctx, 99); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected unknown question, got %v", err)
	}
}

func TestAnswerKeyCacheIgnoresCorruptEntry(t *testing.T) {
	mr, client := newRedis(t)
	mr.HSet("question:11:answer_key", "correct", "x", "choices", "111,112")
	loader := &countingLoader{AnswerKeyLoader: sampleCatalog()}
	cache := NewAnswerKeyCache(client, loader, time.Minute)

	correct, err := cache.CorrectChoice(context.Background(), 11)
	if err != nil || correct != 112 {
		t.Fatalf("expected reload to fix entry, got %d %v", correct, err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader call, got %d", loader.calls)
	}
}

type countingLoader struct {
	AnswerKeyLoader
	calls int
}

func (l *countingLoader) LoadAnswerKey(ctx context.Context, questionID int64) (domain.AnswerKey, error) {
	l.calls++
	return l.AnswerKeyLoader.LoadAnswerKey(ctx, questionID)
}

func sampleCatalog() *memory.Catalog {
	c := memory.NewCatalog()
	c.AddCategory(domain.Category{ID: 1, Name: "Math"})
	c.AddQuestion(domain.Question{
		ID:         11,
		CategoryID: 1,
		Text:       "What is 2 + 2?",
		Choices:    []domain.Choice{{ID: 111, Text: "3"}, {ID: 112, Text: "4"}},
	}, 112)
	return c
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}
