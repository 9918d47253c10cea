package app

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"trivia-duel-service/internal/domain"
)

// Deps are the collaborators an Engine is built from. Broadcaster, Logger
// and Metrics are optional.
type Deps struct {
	Store       Store
	Questions   QuestionBank
	Users       IdentityDirectory
	Categories  CategoryDirectory
	Broadcaster Broadcaster
	Logger      logrus.FieldLogger
	Metrics     *Metrics
}

type Option func(*Engine)

func WithSettings(s Settings) Option {
	return func(e *Engine) { e.settings = s.withDefaults() }
}

// WithClock is used by tests to control round deadlines.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithFirstPicker overrides how the first category picker of a duel is
// chosen. pick receives the participant count and returns an index.
func WithFirstPicker(pick func(n int) int) Option {
	return func(e *Engine) { e.firstPicker = pick }
}

// Engine implements every game operation. It keeps no game state in
// memory; all of it lives behind the Store.
type Engine struct {
	store       Store
	questions   QuestionBank
	users       IdentityDirectory
	categories  CategoryDirectory
	broadcaster Broadcaster
	log         logrus.FieldLogger
	metrics     *Metrics
	settings    Settings
	now         func() time.Time
	firstPicker func(n int) int
}

func NewEngine(deps Deps, opts ...Option) *Engine {
	e := &Engine{
		store:       deps.Store,
		questions:   deps.Questions,
		users:       deps.Users,
		categories:  deps.Categories,
		broadcaster: deps.Broadcaster,
		log:         deps.Logger,
		metrics:     deps.Metrics,
		settings:    DefaultSettings(),
		now:         time.Now,
		firstPicker: rand.Intn,
	}
	if e.log == nil {
		e.log = logrus.StandardLogger()
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Settings() Settings { return e.settings }

// clock returns the current time truncated to microseconds, the precision
// Postgres keeps, so in-memory and persisted timestamps compare equal.
func (e *Engine) clock() time.Time {
	return e.now().UTC().Truncate(time.Microsecond)
}

func (e *Engine) inTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return classify(e.store.RunInTx(ctx, fn))
}

func (e *Engine) readTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return classify(e.store.ReadTx(ctx, fn))
}

// classify keeps engine errors as they are and turns everything else that
// escaped the store into a storage failure.
func classify(err error) error {
	if err == nil || domain.KindOf(err) != domain.KindUnknown {
		return err
	}
	return domain.StorageFailure(err)
}

// observe runs one engine operation with logging, metrics and panic recovery.
func observe[T any](ctx context.Context, e *Engine, op string, fields logrus.Fields, fn func(ctx context.Context) (T, error)) (result T, err error) {
	log := e.log.WithFields(fields).WithField("operation", op)
	start := time.Now()
	log.Debug("operation started")

	defer func() {
		if r := recover(); r != nil {
			err = domain.StorageFailure(fmt.Errorf("panic in %s: %v", op, r))
			log.WithField("panic", r).Error("operation panicked")
		}
		outcome := "ok"
		if err != nil {
			outcome = domain.KindOf(err).String()
		}
		e.metrics.observeOperation(op, outcome, time.Since(start))
	}()

	result, err = fn(ctx)
	switch {
	case err == nil:
		log.WithField("elapsed", time.Since(start)).Info("operation succeeded")
	case domain.KindOf(err) == domain.KindStorage:
		log.WithError(err).Error("operation failed")
	default:
		log.WithError(err).WithField("kind", domain.KindOf(err).String()).Warn("operation rejected")
	}
	return result, err
}

// publishSnapshot pushes the committed state of a game to its topic.
// Failures are logged and counted, never returned.
func (e *Engine) publishSnapshot(ctx context.Context, gameID int64) {
	if e.broadcaster == nil {
		return
	}
	log := e.log.WithField("game_id", gameID)
	snap, err := e.snapshot(ctx, gameID, nil)
	if err != nil {
		e.metrics.BroadcastFailures.Inc()
		log.WithError(err).Warn("build broadcast snapshot")
		return
	}
	event := domain.Event{
		Type:     domain.EventGameUpdate,
		GameID:   gameID,
		Snapshot: &snap,
		At:       snap.GeneratedAt,
	}
	if err := e.broadcaster.Publish(ctx, event); err != nil {
		e.metrics.BroadcastFailures.Inc()
		log.WithError(err).Warn("publish game update")
	}
}

func (e *Engine) requireUser(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return domain.Wrap(domain.ErrMissingArgument, "user id")
	}
	ok, err := e.users.UserExists(ctx, userID)
	if err != nil {
		return classify(err)
	}
	if !ok {
		return domain.Wrap(domain.ErrUserNotFound, "user %d", userID)
	}
	return nil
}
