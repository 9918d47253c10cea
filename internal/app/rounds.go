package app

import (
	"context"

	"github.com/sirupsen/logrus"

	"trivia-duel-service/internal/domain"
)

// PickCategory lets the round's picker choose its category. The round goes
// active right away with a fresh sample of verified questions.
func (e *Engine) PickCategory(ctx context.Context, gameID int64, roundNumber int, userID, categoryID int64) (domain.PickResult, error) {
	fields := logrus.Fields{"game_id": gameID, "round": roundNumber, "user_id": userID, "category_id": categoryID}
	return observe(ctx, e, "pick_category", fields, func(ctx context.Context) (domain.PickResult, error) {
		if userID <= 0 || categoryID <= 0 {
			return domain.PickResult{}, domain.Wrap(domain.ErrMissingArgument, "user and category ids")
		}

		var res domain.PickResult
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
			participant, err := tx.Participant(ctx, gameID, userID)
			if err != nil {
				return err
			}
			if participant == nil {
				return domain.ErrNotParticipant
			}
			round, err := tx.LockRound(ctx, gameID, roundNumber)
			if err != nil {
				return err
			}
			if round == nil {
				return domain.Wrap(domain.ErrRoundNotFound, "round %d", roundNumber)
			}
			if round.PickerID != nil && *round.PickerID != userID {
				return domain.ErrNotPicker
			}
			if round.CategoryID != nil {
				return domain.ErrCategoryPicked
			}
			if round.Status != domain.RoundPending {
				return domain.ErrRoundNotPending
			}
			if err := previousRoundsCompleted(ctx, tx, gameID, roundNumber); err != nil {
				return err
			}

			exists, err := e.categories.CategoryExists(ctx, categoryID)
			if err != nil {
				return err
			}
			if !exists {
				return domain.Wrap(domain.ErrCategoryNotFound, "category %d", categoryID)
			}
			questions, err := e.questions.SampleQuestions(ctx, categoryID, e.settings.QuestionsPerRound)
			if err != nil {
				return err
			}
			if len(questions) == 0 {
				return domain.Wrap(domain.ErrNoQuestions, "category %d", categoryID)
			}

			now := e.clock()
			round.CategoryID = &categoryID
			round.PickerID = &userID
			round.Status = domain.RoundActive
			round.StartTime = &now
			if err := tx.UpdateRound(ctx, round); err != nil {
				return err
			}
			if err := tx.InsertRoundQuestions(ctx, roundQuestions(round.ID, questions)); err != nil {
				return err
			}
			res = domain.PickResult{RoundID: round.ID, CategoryID: categoryID, QuestionIDs: questionIDs(questions)}
			return nil
		})
		if err != nil {
			return domain.PickResult{}, err
		}
		e.publishSnapshot(ctx, gameID)
		return res, nil
	})
}

func previousRoundsCompleted(ctx context.Context, tx Tx, gameID int64, roundNumber int) error {
	rounds, err := tx.Rounds(ctx, gameID)
	if err != nil {
		return err
	}
	for _, r := range rounds {
		if r.Number < roundNumber && r.Status != domain.RoundCompleted {
			return domain.Wrap(domain.ErrPreviousRound, "round %d is %s", r.Number, r.Status)
		}
	}
	return nil
}

// CompleteRound closes a round once every participant answered every
// question. Completing an already completed round succeeds without side
// effects.
func (e *Engine) CompleteRound(ctx context.Context, gameID int64, roundNumber int) (domain.RoundCompletion, error) {
	fields := logrus.Fields{"game_id": gameID, "round": roundNumber}
	return observe(ctx, e, "complete_round", fields, func(ctx context.Context) (domain.RoundCompletion, error) {
		res := domain.RoundCompletion{RoundNumber: roundNumber}
		err := e.inTx(ctx, func(ctx context.Context, tx Tx) error {
			game, err := tx.LockGame(ctx, gameID)
			if err != nil {
				return err
			}
			if game == nil {
				return domain.Wrap(domain.ErrGameNotFound, "game %d", gameID)
			}
			round, err := tx.LockRound(ctx, gameID, roundNumber)
			if err != nil {
				return err
			}
			if round == nil {
				return domain.Wrap(domain.ErrRoundNotFound, "round %d", roundNumber)
			}
			if round.Status == domain.RoundCompleted {
				res.AlreadyCompleted = true
				res.GameReady, err = allRoundsCompleted(ctx, tx, gameID)
				return err
			}
			if round.Status != domain.RoundActive {
				return domain.ErrRoundNotActive
			}
			if round.CategoryID == nil {
				return domain.ErrNoCategory
			}

			participants, err := tx.Participants(ctx, gameID)
			if err != nil {
				return err
			}
			questions, err := tx.RoundQuestions(ctx, round.ID)
			if err != nil {
				return err
			}
			answered, err := tx.CountRoundAnswers(ctx, round.ID)
			if err != nil {
				return err
			}
			if expected := len(participants) * len(questions); answered < expected {
				return domain.Wrap(domain.ErrAnswersMissing, "expected %d, submitted %d", expected, answered)
			}

			now := e.clock()
			round.Status = domain.RoundCompleted
			round.EndTime = &now
			if err := tx.UpdateRound(ctx, round); err != nil {
				return err
			}

			next, err := tx.LockRound(ctx, gameID, roundNumber+1)
			if err != nil {
				return err
			}
			if next != nil && next.Status == domain.RoundPending {
				// Rounds with a preassigned category start now; the rest
				// wait for their picker.
				if next.CategoryID != nil {
					next.Status = domain.RoundActive
				}
				next.StartTime = &now
				if err := tx.UpdateRound(ctx, next); err != nil {
					return err
				}
				n := next.Number
				res.NextRound = &n
			}
			res.GameReady, err = allRoundsCompleted(ctx, tx, gameID)
			return err
		})
		if err != nil {
			return domain.RoundCompletion{}, err
		}
		if !res.AlreadyCompleted {
			e.publishSnapshot(ctx, gameID)
		}
		return res, nil
	})
}

func allRoundsCompleted(ctx context.Context, tx Tx, gameID int64) (bool, error) {
	rounds, err := tx.Rounds(ctx, gameID)
	if err != nil {
		return false, err
	}
	for _, r := range rounds {
		if r.Status != domain.RoundCompleted {
			return false, nil
		}
	}
	return len(rounds) > 0, nil
}
