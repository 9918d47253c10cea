package app

import (
	"context"

	"github.com/sirupsen/logrus"

	"trivia-duel-service/internal/domain"
)

// Enqueue puts a user in the match queue for a game type and pairs them
// with the oldest waiting opponent when there is one. Insert, claim and
// game creation commit together, so a queue entry is consumed at most once.
func (e *Engine) Enqueue(ctx context.Context, userID, gameTypeID int64) (domain.EnqueueResult, error) {
	fields := logrus.Fields{"user_id": userID, "game_type_id": gameTypeID}
	return observe(ctx, e, "enqueue", fields, func(ctx context.Context) (domain.EnqueueResult, error) {
		if gameTypeID <= 0 {
			return domain.EnqueueResult{}, domain.Wrap(domain.ErrMissingArgument, "game type id")
		}
		if err := e.requireUser(ctx, userID); err != nil {
			return domain.EnqueueResult{}, err
		}

		var res domain.EnqueueResult
		err := e.inTx(ctx, func(ctx context.Context, tx Tx) error {
			gameType, err := tx.GameType(ctx, gameTypeID)
			if err != nil {
				return err
			}
			if gameType == nil {
				return domain.Wrap(domain.ErrGameTypeNotFound, "game type %d", gameTypeID)
			}
			if err := tx.LockQueue(ctx, gameTypeID); err != nil {
				return err
			}
			existing, err := tx.QueueEntry(ctx, userID, gameTypeID)
			if err != nil {
				return err
			}
			if existing != nil {
				return domain.ErrAlreadyQueued
			}

			entry := &domain.MatchQueueEntry{UserID: userID, GameTypeID: gameTypeID, EnqueuedAt: e.clock()}
			if err := tx.InsertQueueEntry(ctx, entry); err != nil {
				return err
			}
			opponent, err := tx.ClaimOpponent(ctx, gameTypeID, userID)
			if err != nil {
				return err
			}
			if opponent == nil {
				at := entry.EnqueuedAt
				res = domain.EnqueueResult{Status: domain.QueueWaiting, QueueID: entry.ID, EnqueuedAt: &at}
				return nil
			}

			// Both players leave every queue they are in.
			if err := tx.DeleteUserQueueEntries(ctx, opponent.UserID, userID); err != nil {
				return err
			}
			players := []int64{opponent.UserID, userID}
			game, err := e.createDuel(ctx, tx, gameType, players)
			if err != nil {
				return err
			}
			res = domain.EnqueueResult{Status: domain.QueueMatched, GameID: game.ID, Players: players}
			return nil
		})
		if err != nil {
			return domain.EnqueueResult{}, err
		}
		if res.Status == domain.QueueMatched {
			e.metrics.Matches.WithLabelValues("queue").Inc()
			e.publishSnapshot(ctx, res.GameID)
		}
		return res, nil
	})
}

// CancelQueue removes a waiting user from a game type's queue.
func (e *Engine) CancelQueue(ctx context.Context, userID, gameTypeID int64) error {
	fields := logrus.Fields{"user_id": userID, "game_type_id": gameTypeID}
	_, err := observe(ctx, e, "cancel_queue", fields, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.inTx(ctx, func(ctx context.Context, tx Tx) error {
			if err := tx.LockQueue(ctx, gameTypeID); err != nil {
				return err
			}
			entry, err := tx.QueueEntry(ctx, userID, gameTypeID)
			if err != nil {
				return err
			}
			if entry == nil {
				return domain.ErrNotQueued
			}
			_, err = tx.DeleteQueueEntry(ctx, entry.ID)
			return err
		})
	})
	return err
}

// QueueStatus reports whether a user is still waiting or has been matched
// into an open game of that type.
func (e *Engine) QueueStatus(ctx context.Context, userID, gameTypeID int64) (domain.QueueStatus, error) {
	fields := logrus.Fields{"user_id": userID, "game_type_id": gameTypeID}
	return observe(ctx, e, "queue_status", fields, func(ctx context.Context) (domain.QueueStatus, error) {
		var res domain.QueueStatus
		err := e.readTx(ctx, func(ctx context.Context, tx Tx) error {
			entry, err := tx.QueueEntry(ctx, userID, gameTypeID)
			if err != nil {
				return err
			}
			if entry != nil {
				at := entry.EnqueuedAt
				res = domain.QueueStatus{Status: domain.QueueWaiting, QueueID: entry.ID, EnqueuedAt: &at}
				return nil
			}
			game, err := tx.LatestOpenGame(ctx, userID, gameTypeID)
			if err != nil {
				return err
			}
			if game == nil {
				return domain.ErrNotQueued
			}
			res = domain.QueueStatus{Status: domain.QueueMatched, GameID: game.ID, GameStatus: game.Status}
			return nil
		})
		return res, err
	})
}
