package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"trivia-duel-service/internal/app"
	"trivia-duel-service/internal/domain"
	"trivia-duel-service/internal/infra/memory"
)

type brokenStore struct{ err error }

func (s brokenStore) RunInTx(context.Context, func(context.Context, app.Tx) error) error {
	return s.err
}

func (s brokenStore) ReadTx(context.Context, func(context.Context, app.Tx) error) error {
	return s.err
}

type failingBroadcaster struct{ calls int }

func (b *failingBroadcaster) Publish(context.Context, domain.Event) error {
	b.calls++
	return errors.New("broker unavailable")
}

func TestStorageErrorsAreClassified(t *testing.T) {
	catalog := seedCatalog()
	logger, hook := logtest.NewNullLogger()
	metrics := app.NewMetrics(prometheus.NewRegistry())
	engine := app.NewEngine(app.Deps{
		Store:      brokenStore{err: errors.New("connection reset")},
		Questions:  app.NewQuestionBank(catalog, memory.NewAnswerKeyCache(catalog, time.Minute)),
		Users:      catalog,
		Categories: catalog,
		Logger:     logger,
		Metrics:    metrics,
	})

	_, err := engine.Enqueue(context.Background(), 1, duelType)
	require.Error(t, err)
	require.Equal(t, domain.KindStorage, domain.KindOf(err))
	require.Equal(t, "internal error", domain.PublicMessage(err))
	require.Contains(t, err.Error(), "connection reset")

	require.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	require.Equal(t, "enqueue", hook.LastEntry().Data["operation"])
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Operations.WithLabelValues("enqueue", "storage_error")))
}

func TestRejectionsAreLoggedAsWarnings(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Invite(context.Background(), 1, 1)
	require.ErrorIs(t, err, domain.ErrSelfInvite)

	entry := f.logs.LastEntry()
	require.Equal(t, logrus.WarnLevel, entry.Level)
	require.Equal(t, "invalid_argument", entry.Data["kind"])
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Operations.WithLabelValues("invite", "invalid_argument")))
}

func TestBroadcastFailureDoesNotFailOperation(t *testing.T) {
	ctx := context.Background()
	catalog := seedCatalog()
	store := memory.NewStore(domain.GameType{ID: duelType, Name: "duel", TotalRounds: 5})
	broadcaster := &failingBroadcaster{}
	logger, _ := logtest.NewNullLogger()
	metrics := app.NewMetrics(prometheus.NewRegistry())
	engine := app.NewEngine(app.Deps{
		Store:       store,
		Questions:   app.NewQuestionBank(catalog, memory.NewAnswerKeyCache(catalog, time.Minute)),
		Users:       catalog,
		Categories:  catalog,
		Broadcaster: broadcaster,
		Logger:      logger,
		Metrics:     metrics,
	})

	_, err := engine.Enqueue(ctx, 1, duelType)
	require.NoError(t, err)
	res, err := engine.Enqueue(ctx, 2, duelType)
	require.NoError(t, err)
	require.Equal(t, domain.QueueMatched, res.Status)

	_, err = engine.GetSnapshot(ctx, res.GameID, nil)
	require.NoError(t, err)
	require.Equal(t, 1, broadcaster.calls)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.BroadcastFailures))
}

func TestSettingsDefaults(t *testing.T) {
	f := newFixture(t, app.WithSettings(app.Settings{QuestionsPerRound: 2}))
	s := f.engine.Settings()
	require.Equal(t, 2, s.QuestionsPerRound)
	require.Equal(t, 30*time.Second, s.TimeLimit)
	require.Equal(t, 100, s.PointsPossible)
	require.Equal(t, 20, s.WinnerBonusPercent)
}
