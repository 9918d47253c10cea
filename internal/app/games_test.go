package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"trivia-duel-service/internal/domain"
)

func TestCreateGroupGameValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.CreateGroupGame(ctx, quickType, 1, []int64{1})
	require.ErrorIs(t, err, domain.ErrTooFewPlayers)

	_, err = f.engine.CreateGroupGame(ctx, quickType, 1, []int64{2, 404})
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = f.engine.CreateGroupGame(ctx, 42, 1, []int64{2, 3})
	require.ErrorIs(t, err, domain.ErrGameTypeNotFound)
}

func TestGroupGameLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.engine.CreateGroupGame(ctx, quickType, 1, []int64{2, 3, 3})
	require.NoError(t, err)
	require.Equal(t, 2, created.TotalRounds)
	gameID := created.GameID

	snap, err := f.engine.GetSnapshot(ctx, gameID, nil)
	require.NoError(t, err)
	require.Equal(t, domain.GamePending, snap.Game.Status)
	require.Equal(t, domain.ModeGroup, snap.Game.Mode)
	require.Len(t, snap.Participants, 3)
	require.Equal(t, int64(1), snap.Participants[0].UserID)
	require.Empty(t, snap.Rounds)

	_, err = f.engine.AssignCategories(ctx, gameID)
	require.ErrorIs(t, err, domain.ErrGameNotActive)

	_, err = f.engine.StartGame(ctx, gameID)
	require.NoError(t, err)
	_, err = f.engine.StartGame(ctx, gameID)
	require.ErrorIs(t, err, domain.ErrGameNotPending)

	snap, err = f.engine.GetSnapshot(ctx, gameID, nil)
	require.NoError(t, err)
	require.Equal(t, domain.GameActive, snap.Game.Status)
	for _, r := range snap.Rounds {
		require.Nil(t, r.PickerID)
	}
	require.Nil(t, snap.CurrentRound.PickerTurn)

	assigned, err := f.engine.AssignCategories(ctx, gameID)
	require.NoError(t, err)
	require.Len(t, assigned, 2)
	for _, a := range assigned {
		require.NotEqual(t, catEmpty, a.CategoryID)
		require.Len(t, a.QuestionIDs, 3)
	}

	snap, err = f.engine.GetSnapshot(ctx, gameID, nil)
	require.NoError(t, err)
	require.Equal(t, domain.RoundActive, snap.Rounds[0].Status)
	require.Equal(t, domain.RoundPending, snap.Rounds[1].Status)
	require.NotNil(t, snap.Rounds[1].CategoryID)

	_, err = f.engine.PickCategory(ctx, gameID, 2, 1, catScience)
	require.ErrorIs(t, err, domain.ErrCategoryPicked)

	for _, user := range []int64{1, 2, 3} {
		f.answerAll(t, gameID, 1, user, user != 3)
	}
	res, err := f.engine.CompleteRound(ctx, gameID, 1)
	require.NoError(t, err)
	require.Equal(t, 2, *res.NextRound)

	snap, err = f.engine.GetSnapshot(ctx, gameID, nil)
	require.NoError(t, err)
	require.Equal(t, domain.RoundActive, snap.Rounds[1].Status)
	require.Equal(t, 2, snap.CurrentRound.Number)
	require.Len(t, snap.CurrentRound.Questions, 3)

	for _, user := range []int64{1, 2, 3} {
		f.answerAll(t, gameID, 2, user, user == 2)
	}
	res, err = f.engine.CompleteRound(ctx, gameID, 2)
	require.NoError(t, err)
	require.True(t, res.GameReady)

	done, err := f.engine.CompleteGame(ctx, gameID)
	require.NoError(t, err)
	require.Equal(t, int64(2), done.WinnerID)
	require.Len(t, done.Settlements, 3)
}

func TestAssignCategoriesOnlyForGroupGames(t *testing.T) {
	f := newFixture(t)
	gameID := f.duel(t, duelType, 1, 2)

	_, err := f.engine.AssignCategories(context.Background(), gameID)
	require.ErrorIs(t, err, domain.ErrNotGroupGame)
}
