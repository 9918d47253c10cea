package app

import (
	"context"

	"github.com/sirupsen/logrus"

	"trivia-duel-service/internal/domain"
)

// CompleteGame closes a game whose rounds are all completed, names the
// winner and credits XP to every participant.
func (e *Engine) CompleteGame(ctx context.Context, gameID int64) (domain.GameCompletion, error) {
	return observe(ctx, e, "complete_game", logrus.Fields{"game_id": gameID}, func(ctx context.Context) (domain.GameCompletion, error) {
		var res domain.GameCompletion
		err := e.inTx(ctx, func(ctx context.Context, tx Tx) error {
			game, err := tx.LockGame(ctx, gameID)
			if err != nil {
				return err
			}
			if game == nil {
				return domain.Wrap(domain.ErrGameNotFound, "game %d", gameID)
			}
			if game.Status != domain.GameActive {
				return domain.ErrGameNotActive
			}
			done, err := allRoundsCompleted(ctx, tx, gameID)
			if err != nil {
				return err
			}
			if !done {
				return domain.ErrRoundsRemaining
			}
			participants, err := tx.Participants(ctx, gameID)
			if err != nil {
				return err
			}
			winner := pickWinner(participants)
			if winner == nil {
				return domain.ErrNoParticipants
			}

			now := e.clock()
			game.Status = domain.GameCompleted
			game.EndTime = &now
			game.WinnerID = &winner.UserID
			if err := tx.UpdateGame(ctx, game); err != nil {
				return err
			}
			settlements := settle(gameID, participants, winner.UserID, e.settings.WinnerBonusPercent)
			if err := tx.RecordSettlements(ctx, settlements); err != nil {
				return err
			}
			res = domain.GameCompletion{
				GameID:      gameID,
				WinnerID:    winner.UserID,
				WinnerScore: winner.Score,
				Settlements: settlements,
			}
			return nil
		})
		if err != nil {
			return domain.GameCompletion{}, err
		}
		e.publishSnapshot(ctx, gameID)
		return res, nil
	})
}

// pickWinner returns the highest scorer. participants are in join order,
// so the earliest joiner keeps a tie.
func pickWinner(participants []*domain.Participant) *domain.Participant {
	var best *domain.Participant
	for _, p := range participants {
		if best == nil || p.Score > best.Score {
			best = p
		}
	}
	return best
}

func settle(gameID int64, participants []*domain.Participant, winnerID int64, bonusPercent int) []domain.Settlement {
	out := make([]domain.Settlement, 0, len(participants))
	for _, p := range participants {
		s := domain.Settlement{GameID: gameID, UserID: p.UserID, XP: p.Score}
		if p.UserID == winnerID {
			s.Winner = true
			s.BonusXP = p.Score * bonusPercent / 100
		}
		out = append(out, s)
	}
	return out
}
