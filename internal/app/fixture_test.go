package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"trivia-duel-service/internal/app"
	"trivia-duel-service/internal/domain"
	"trivia-duel-service/internal/infra/memory"
)

const (
	catScience int64 = 1
	catHistory int64 = 2
	catEmpty   int64 = 3

	duelType  int64 = 1
	quickType int64 = 2
)

type fixture struct {
	engine  *app.Engine
	store   *memory.Store
	catalog *memory.Catalog
	hub     *memory.Hub
	metrics *app.Metrics
	logs    *logtest.Hook

	mu  sync.Mutex
	now time.Time
}

func newFixture(t *testing.T, opts ...app.Option) *fixture {
	t.Helper()
	f := &fixture{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	f.store = memory.NewStore(
		domain.GameType{ID: duelType, Name: "duel", TotalRounds: 5},
		domain.GameType{ID: quickType, Name: "quick duel", TotalRounds: 2},
	)
	f.catalog = seedCatalog()
	f.hub = memory.NewHub(64)
	f.metrics = app.NewMetrics(prometheus.NewRegistry())

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	f.logs = hook

	base := []app.Option{app.WithClock(f.clock), app.WithFirstPicker(func(int) int { return 0 })}
	f.engine = app.NewEngine(app.Deps{
		Store:       f.store,
		Questions:   app.NewQuestionBank(f.catalog, memory.NewAnswerKeyCache(f.catalog, time.Minute)),
		Users:       f.catalog,
		Categories:  f.catalog,
		Broadcaster: f.hub,
		Logger:      logger,
		Metrics:     f.metrics,
	}, append(base, opts...)...)
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// seedCatalog holds users 1..20, two categories with three questions each
// and one category without questions. Choice ids are question*10+n and
// n == 2 is always correct.
func seedCatalog() *memory.Catalog {
	c := memory.NewCatalog()
	for id := int64(1); id <= 20; id++ {
		c.AddUsers(id)
	}
	c.AddCategory(domain.Category{ID: catScience, Name: "Science"})
	c.AddCategory(domain.Category{ID: catHistory, Name: "History"})
	c.AddCategory(domain.Category{ID: catEmpty, Name: "Empty"})
	for _, cat := range []int64{catScience, catHistory} {
		for n := int64(1); n <= 3; n++ {
			id := cat*100 + n
			q := domain.Question{ID: id, CategoryID: cat, Text: "question"}
			for k := int64(1); k <= 4; k++ {
				q.Choices = append(q.Choices, domain.Choice{ID: id*10 + k, Text: "choice"})
			}
			c.AddQuestion(q, id*10+2)
		}
	}
	return c
}

func correctChoice(questionID int64) int64 { return questionID*10 + 2 }
func wrongChoice(questionID int64) int64   { return questionID*10 + 1 }

// duel matches users a and b through the queue. a queues first.
func (f *fixture) duel(t *testing.T, gameType, a, b int64) int64 {
	t.Helper()
	ctx := context.Background()
	_, err := f.engine.Enqueue(ctx, a, gameType)
	require.NoError(t, err)
	f.advance(time.Second)
	res, err := f.engine.Enqueue(ctx, b, gameType)
	require.NoError(t, err)
	require.Equal(t, domain.QueueMatched, res.Status)
	return res.GameID
}

func (f *fixture) roundQuestions(t *testing.T, gameID int64) []int64 {
	t.Helper()
	snap, err := f.engine.GetSnapshot(context.Background(), gameID, nil)
	require.NoError(t, err)
	require.NotNil(t, snap.CurrentRound)
	ids := make([]int64, 0, len(snap.CurrentRound.Questions))
	for _, q := range snap.CurrentRound.Questions {
		ids = append(ids, q.ID)
	}
	return ids
}

// answerAll submits an answer for every question of the active round.
func (f *fixture) answerAll(t *testing.T, gameID int64, round int, userID int64, correct bool) {
	t.Helper()
	for _, qid := range f.roundQuestions(t, gameID) {
		choice := wrongChoice(qid)
		if correct {
			choice = correctChoice(qid)
		}
		_, err := f.engine.SubmitAnswer(context.Background(), domain.AnswerSubmission{
			GameID: gameID, RoundNumber: round, UserID: userID, QuestionID: qid, ChoiceID: choice,
		})
		require.NoError(t, err)
	}
}

// playRound picks, answers for every player and completes one duel round.
func (f *fixture) playRound(t *testing.T, gameID int64, round int, picker int64, correct map[int64]bool) domain.RoundCompletion {
	t.Helper()
	ctx := context.Background()
	_, err := f.engine.PickCategory(ctx, gameID, round, picker, catScience)
	require.NoError(t, err)
	for user, ok := range correct {
		f.answerAll(t, gameID, round, user, ok)
	}
	res, err := f.engine.CompleteRound(ctx, gameID, round)
	require.NoError(t, err)
	return res
}

func drain(ch <-chan domain.Event) []domain.Event {
	var out []domain.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}
