package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"trivia-duel-service/internal/domain"
)

// createDuel inserts an active two-player game. players must already be in
// join order; both get the same join time and insertion order breaks the tie.
func (e *Engine) createDuel(ctx context.Context, tx Tx, gameType *domain.GameType, players []int64) (*domain.Game, error) {
	now := e.clock()
	game := &domain.Game{
		GameTypeID: gameType.ID,
		Mode:       domain.ModeDuel,
		Status:     domain.GamePending,
		CreatedAt:  now,
	}
	if err := tx.InsertGame(ctx, game); err != nil {
		return nil, err
	}
	if err := tx.InsertParticipants(ctx, newParticipants(game.ID, players, now)); err != nil {
		return nil, err
	}
	if err := e.activate(ctx, tx, game, gameType, players); err != nil {
		return nil, err
	}
	return game, nil
}

func newParticipants(gameID int64, userIDs []int64, joined time.Time) []*domain.Participant {
	out := make([]*domain.Participant, 0, len(userIDs))
	for _, id := range userIDs {
		out = append(out, &domain.Participant{
			GameID:   gameID,
			UserID:   id,
			JoinTime: joined,
			Status:   domain.ParticipantActive,
		})
	}
	return out
}

// activate generates the game's rounds and flips it to active.
func (e *Engine) activate(ctx context.Context, tx Tx, game *domain.Game, gameType *domain.GameType, players []int64) error {
	if err := tx.InsertRounds(ctx, e.generateRounds(game, gameType.TotalRounds, players)); err != nil {
		return err
	}
	now := e.clock()
	game.Status = domain.GameActive
	game.StartTime = &now
	return tx.UpdateGame(ctx, game)
}

// generateRounds builds total pending rounds. Duels store an alternating
// picker starting from a random player; group rounds have none.
func (e *Engine) generateRounds(game *domain.Game, total int, players []int64) []*domain.Round {
	first := 0
	if game.Mode == domain.ModeDuel && len(players) > 0 {
		first = e.firstPicker(len(players)) % len(players)
		if first < 0 {
			first += len(players)
		}
	}
	rounds := make([]*domain.Round, 0, total)
	for i := 0; i < total; i++ {
		r := &domain.Round{
			GameID:           game.ID,
			Number:           i + 1,
			Status:           domain.RoundPending,
			TimeLimitSeconds: int(e.settings.TimeLimit / time.Second),
			PointsPossible:   e.settings.PointsPossible,
		}
		if game.Mode == domain.ModeDuel && len(players) > 0 {
			picker := players[(first+i)%len(players)]
			r.PickerID = &picker
		}
		rounds = append(rounds, r)
	}
	return rounds
}

// CreateGroupGame creates a pending group game. The creator always takes a
// seat, joining first.
func (e *Engine) CreateGroupGame(ctx context.Context, gameTypeID, creatorID int64, participantIDs []int64) (domain.StartResult, error) {
	fields := logrus.Fields{"game_type_id": gameTypeID, "user_id": creatorID}
	return observe(ctx, e, "create_group_game", fields, func(ctx context.Context) (domain.StartResult, error) {
		if gameTypeID <= 0 {
			return domain.StartResult{}, domain.Wrap(domain.ErrMissingArgument, "game type id")
		}
		players := distinctPlayers(creatorID, participantIDs)
		if len(players) < 2 {
			return domain.StartResult{}, domain.ErrTooFewPlayers
		}
		for _, id := range players {
			if err := e.requireUser(ctx, id); err != nil {
				return domain.StartResult{}, err
			}
		}

		var res domain.StartResult
		err := e.inTx(ctx, func(ctx context.Context, tx Tx) error {
			gameType, err := tx.GameType(ctx, gameTypeID)
			if err != nil {
				return err
			}
			if gameType == nil {
				return domain.Wrap(domain.ErrGameTypeNotFound, "game type %d", gameTypeID)
			}
			now := e.clock()
			game := &domain.Game{
				GameTypeID: gameTypeID,
				Mode:       domain.ModeGroup,
				Status:     domain.GamePending,
				CreatedAt:  now,
			}
			if err := tx.InsertGame(ctx, game); err != nil {
				return err
			}
			if err := tx.InsertParticipants(ctx, newParticipants(game.ID, players, now)); err != nil {
				return err
			}
			res = domain.StartResult{GameID: game.ID, TotalRounds: gameType.TotalRounds}
			return nil
		})
		return res, err
	})
}

func distinctPlayers(creatorID int64, ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids)+1)
	out := make([]int64, 0, len(ids)+1)
	for _, id := range append([]int64{creatorID}, ids...) {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// StartGame generates the rounds of a pending game and activates it.
func (e *Engine) StartGame(ctx context.Context, gameID int64) (domain.StartResult, error) {
	return observe(ctx, e, "start_game", logrus.Fields{"game_id": gameID}, func(ctx context.Context) (domain.StartResult, error) {
		var res domain.StartResult
		err := e.inTx(ctx, func(ctx context.Context, tx Tx) error {
			game, err := tx.LockGame(ctx, gameID)
			if err != nil {
				return err
			}
			if game == nil {
				return domain.Wrap(domain.ErrGameNotFound, "game %d", gameID)
			}
			if game.Status != domain.GamePending {
				return domain.ErrGameNotPending
			}
			gameType, err := tx.GameType(ctx, game.GameTypeID)
			if err != nil {
				return err
			}
			if gameType == nil {
				return domain.Wrap(domain.ErrGameTypeNotFound, "game type %d", game.GameTypeID)
			}
			participants, err := tx.Participants(ctx, gameID)
			if err != nil {
				return err
			}
			if len(participants) == 0 {
				return domain.ErrNoParticipants
			}
			if err := e.activate(ctx, tx, game, gameType, userIDs(participants)); err != nil {
				return err
			}
			res = domain.StartResult{GameID: game.ID, TotalRounds: gameType.TotalRounds}
			return nil
		})
		if err != nil {
			return domain.StartResult{}, err
		}
		e.publishSnapshot(ctx, gameID)
		return res, nil
	})
}

func userIDs(participants []*domain.Participant) []int64 {
	ids := make([]int64, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// AssignCategories gives every round of an active group game a random
// category and its questions. The first open round starts immediately.
func (e *Engine) AssignCategories(ctx context.Context, gameID int64) ([]domain.AssignedRound, error) {
	return observe(ctx, e, "assign_categories", logrus.Fields{"game_id": gameID}, func(ctx context.Context) ([]domain.AssignedRound, error) {
		var assigned []domain.AssignedRound
		err := e.inTx(ctx, func(ctx context.Context, tx Tx) error {
			game, err := tx.LockGame(ctx, gameID)
			if err != nil {
				return err
			}
			if game == nil {
				return domain.Wrap(domain.ErrGameNotFound, "game %d", gameID)
			}
			if game.Mode != domain.ModeGroup {
				return domain.ErrNotGroupGame
			}
			if game.Status != domain.GameActive {
				return domain.ErrGameNotActive
			}
			rounds, err := tx.Rounds(ctx, gameID)
			if err != nil {
				return err
			}
			candidates, err := e.categories.RandomCategories(ctx, len(rounds))
			if err != nil {
				return err
			}
			if len(candidates) == 0 {
				return domain.Wrap(domain.ErrCategoryNotFound, "no categories available")
			}

			now := e.clock()
			activated := false
			for i, r := range rounds {
				if r.Status == domain.RoundCompleted {
					continue
				}
				if r.CategoryID == nil {
					category, questions, err := e.sampleAny(ctx, candidates, i)
					if err != nil {
						return err
					}
					if err := tx.InsertRoundQuestions(ctx, roundQuestions(r.ID, questions)); err != nil {
						return err
					}
					r.CategoryID = &category
					assigned = append(assigned, domain.AssignedRound{
						RoundNumber: r.Number,
						RoundID:     r.ID,
						CategoryID:  category,
						QuestionIDs: questionIDs(questions),
					})
				}
				if !activated && r.Status == domain.RoundPending {
					r.Status = domain.RoundActive
					r.StartTime = &now
				}
				activated = true
				if err := tx.UpdateRound(ctx, r); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		e.publishSnapshot(ctx, gameID)
		return assigned, nil
	})
}

// sampleAny draws questions from the candidate at offset, moving on to the
// next candidate when a category has no verified questions.
func (e *Engine) sampleAny(ctx context.Context, candidates []domain.Category, offset int) (int64, []domain.Question, error) {
	for i := range candidates {
		c := candidates[(offset+i)%len(candidates)]
		questions, err := e.questions.SampleQuestions(ctx, c.ID, e.settings.QuestionsPerRound)
		if err != nil {
			return 0, nil, err
		}
		if len(questions) > 0 {
			return c.ID, questions, nil
		}
	}
	return 0, nil, domain.ErrNoQuestions
}

func roundQuestions(roundID int64, questions []domain.Question) []*domain.RoundQuestion {
	out := make([]*domain.RoundQuestion, 0, len(questions))
	for _, q := range questions {
		out = append(out, &domain.RoundQuestion{RoundID: roundID, QuestionID: q.ID})
	}
	return out
}

func questionIDs(questions []domain.Question) []int64 {
	ids := make([]int64, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	return ids
}
