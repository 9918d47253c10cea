package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"trivia-duel-service/internal/app"
	"trivia-duel-service/internal/domain"
)

func submit(f *fixture, gameID int64, round int, userID, questionID, choiceID int64) (domain.AnswerResult, error) {
	return f.engine.SubmitAnswer(context.Background(), domain.AnswerSubmission{
		GameID: gameID, RoundNumber: round, UserID: userID, QuestionID: questionID, ChoiceID: choiceID,
	})
}

func startedDuel(t *testing.T, f *fixture) (int64, []int64) {
	t.Helper()
	gameID := f.duel(t, duelType, 1, 2)
	_, err := f.engine.PickCategory(context.Background(), gameID, 1, 1, catScience)
	require.NoError(t, err)
	return gameID, f.roundQuestions(t, gameID)
}

func TestSubmitCorrectAnswerScores(t *testing.T) {
	f := newFixture(t)
	gameID, questions := startedDuel(t, f)
	q := questions[0]

	res, err := submit(f, gameID, 1, 2, q, correctChoice(q))
	require.NoError(t, err)
	require.Equal(t, domain.AnswerResult{
		IsCorrect:       true,
		PointsEarned:    100,
		CorrectChoiceID: correctChoice(q),
		TotalScore:      100,
	}, res)

	snap, err := f.engine.GetSnapshot(context.Background(), gameID, nil)
	require.NoError(t, err)
	require.Equal(t, 100, snap.Scores[2])
	require.Equal(t, 0, snap.Scores[1])
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Answers.WithLabelValues("true")))
}

func TestSubmitWrongAnswerRevealsCorrectChoice(t *testing.T) {
	f := newFixture(t)
	gameID, questions := startedDuel(t, f)
	q := questions[1]

	res, err := submit(f, gameID, 1, 1, q, wrongChoice(q))
	require.NoError(t, err)
	require.False(t, res.IsCorrect)
	require.Zero(t, res.PointsEarned)
	require.Equal(t, correctChoice(q), res.CorrectChoiceID)
	require.Zero(t, res.TotalScore)
}

func TestSubmitAnswerOnlyOnce(t *testing.T) {
	f := newFixture(t)
	gameID, questions := startedDuel(t, f)
	q := questions[0]

	_, err := submit(f, gameID, 1, 1, q, correctChoice(q))
	require.NoError(t, err)
	_, err = submit(f, gameID, 1, 1, q, correctChoice(q))
	require.ErrorIs(t, err, domain.ErrAlreadyAnswered)

	snap, err := f.engine.GetSnapshot(context.Background(), gameID, nil)
	require.NoError(t, err)
	require.Equal(t, 100, snap.Scores[1])
}

func TestSubmitAnswerAfterDeadline(t *testing.T) {
	f := newFixture(t, app.WithSettings(app.Settings{TimeLimit: 5 * time.Second, AnswerGrace: 5 * time.Second}))
	gameID, questions := startedDuel(t, f)

	f.advance(9 * time.Second)
	_, err := submit(f, gameID, 1, 1, questions[0], correctChoice(questions[0]))
	require.NoError(t, err)

	f.advance(time.Second)
	_, err = submit(f, gameID, 1, 2, questions[0], correctChoice(questions[0]))
	require.ErrorIs(t, err, domain.ErrTimeLimit)
	require.Equal(t, domain.KindConflict, domain.KindOf(err))
}

func TestSubmitAnswerRejections(t *testing.T) {
	f := newFixture(t)
	gameID, questions := startedDuel(t, f)
	q := questions[0]

	_, err := submit(f, 999, 1, 1, q, correctChoice(q))
	require.ErrorIs(t, err, domain.ErrGameNotFound)

	_, err = submit(f, gameID, 9, 1, q, correctChoice(q))
	require.ErrorIs(t, err, domain.ErrRoundNotFound)

	_, err = submit(f, gameID, 2, 1, q, correctChoice(q))
	require.ErrorIs(t, err, domain.ErrRoundNotActive)

	_, err = submit(f, gameID, 1, 3, q, correctChoice(q))
	require.ErrorIs(t, err, domain.ErrNotParticipant)

	_, err = submit(f, gameID, 1, 1, 201, correctChoice(201))
	require.ErrorIs(t, err, domain.ErrQuestionNotFound)

	_, err = submit(f, gameID, 1, 1, q, correctChoice(questions[1]))
	require.ErrorIs(t, err, domain.ErrInvalidChoice)
	require.Equal(t, domain.KindInvalidArgument, domain.KindOf(err))

	_, err = submit(f, gameID, 1, 1, q, 0)
	require.Equal(t, domain.KindInvalidArgument, domain.KindOf(err))
}

func TestConcurrentAnswersAreCommutative(t *testing.T) {
	f := newFixture(t)
	gameID, questions := startedDuel(t, f)

	var wg sync.WaitGroup
	errs := make(chan error, 2*len(questions))
	for _, user := range []int64{1, 2} {
		for _, q := range questions {
			wg.Add(1)
			go func(user, q int64) {
				defer wg.Done()
				_, err := submit(f, gameID, 1, user, q, correctChoice(q))
				errs <- err
			}(user, q)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	_, err := f.engine.CompleteRound(context.Background(), gameID, 1)
	require.NoError(t, err)
	snap, err := f.engine.GetSnapshot(context.Background(), gameID, nil)
	require.NoError(t, err)
	require.Equal(t, map[int64]int{1: 300, 2: 300}, snap.Scores)
}

func TestScoresNeverDecrease(t *testing.T) {
	f := newFixture(t)
	gameID, questions := startedDuel(t, f)

	last := 0
	for i, q := range questions {
		choice := correctChoice(q)
		if i%2 == 1 {
			choice = wrongChoice(q)
		}
		res, err := submit(f, gameID, 1, 1, q, choice)
		require.NoError(t, err)
		require.GreaterOrEqual(t, res.TotalScore, last)
		require.Equal(t, last+res.PointsEarned, res.TotalScore)
		require.Contains(t, []int{0, 100}, res.PointsEarned)
		last = res.TotalScore
	}
}
