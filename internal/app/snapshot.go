package app

import (
	"context"

	"github.com/sirupsen/logrus"

	"trivia-duel-service/internal/domain"
)

// GetSnapshot returns the consolidated view of a game. When viewerID is
// set, the current round includes that user's submitted answers.
func (e *Engine) GetSnapshot(ctx context.Context, gameID int64, viewerID *int64) (domain.Snapshot, error) {
	fields := logrus.Fields{"game_id": gameID}
	if viewerID != nil {
		fields["user_id"] = *viewerID
	}
	return observe(ctx, e, "get_snapshot", fields, func(ctx context.Context) (domain.Snapshot, error) {
		return e.snapshot(ctx, gameID, viewerID)
	})
}

func (e *Engine) snapshot(ctx context.Context, gameID int64, viewerID *int64) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := e.readTx(ctx, func(ctx context.Context, tx Tx) error {
		game, err := tx.Game(ctx, gameID)
		if err != nil {
			return err
		}
		if game == nil {
			return domain.Wrap(domain.ErrGameNotFound, "game %d", gameID)
		}
		gameType, err := tx.GameType(ctx, game.GameTypeID)
		if err != nil {
			return err
		}
		participants, err := tx.Participants(ctx, gameID)
		if err != nil {
			return err
		}
		rounds, err := tx.Rounds(ctx, gameID)
		if err != nil {
			return err
		}

		snap = domain.Snapshot{
			Game: domain.GameHeader{
				ID:         game.ID,
				GameTypeID: game.GameTypeID,
				Mode:       game.Mode,
				Status:     game.Status,
				WinnerID:   game.WinnerID,
				StartTime:  game.StartTime,
				EndTime:    game.EndTime,
			},
			Participants: make([]domain.Participant, 0, len(participants)),
			Rounds:       make([]domain.Round, 0, len(rounds)),
			Scores:       make(map[int64]int, len(participants)),
			GeneratedAt:  e.clock(),
		}
		if gameType != nil {
			snap.Game.TotalRounds = gameType.TotalRounds
		} else {
			snap.Game.TotalRounds = len(rounds)
		}
		for _, p := range participants {
			snap.Participants = append(snap.Participants, *p)
			snap.Scores[p.UserID] = p.Score
		}
		for _, r := range rounds {
			snap.Rounds = append(snap.Rounds, *r)
		}

		for _, r := range rounds {
			if r.Status == domain.RoundPending || r.Status == domain.RoundActive {
				current, err := e.currentRound(ctx, tx, game, r, participants, viewerID)
				if err != nil {
					return err
				}
				snap.CurrentRound = current
				break
			}
		}
		return nil
	})
	return snap, err
}

func (e *Engine) currentRound(ctx context.Context, tx Tx, game *domain.Game, r *domain.Round, participants []*domain.Participant, viewerID *int64) (*domain.CurrentRound, error) {
	cur := &domain.CurrentRound{
		Number:           r.Number,
		Status:           r.Status,
		CategoryID:       r.CategoryID,
		PickerID:         r.PickerID,
		TimeLimitSeconds: r.TimeLimitSeconds,
		PointsPossible:   r.PointsPossible,
		StartTime:        r.StartTime,
		CategoryOptions:  []domain.Category{},
		Questions:        []domain.Question{},
		Answers:          []domain.ViewerAnswer{},
	}

	if r.CategoryID == nil {
		cur.PickerTurn = pickerTurn(game, r, participants)
		if r.Status == domain.RoundPending {
			options, err := e.categories.RandomCategories(ctx, e.settings.CategorySuggestions)
			if err != nil {
				return nil, err
			}
			cur.CategoryOptions = options
		}
		return cur, nil
	}
	if r.Status != domain.RoundActive {
		return cur, nil
	}

	if deadline, ok := r.Deadline(e.settings.AnswerGrace); ok {
		cur.Deadline = &deadline
	}
	roundQuestions, err := tx.RoundQuestions(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(roundQuestions))
	byRoundQuestion := make(map[int64]int64, len(roundQuestions))
	for _, q := range roundQuestions {
		ids = append(ids, q.QuestionID)
		byRoundQuestion[q.ID] = q.QuestionID
	}
	if len(ids) > 0 {
		questions, err := e.questions.Questions(ctx, ids)
		if err != nil {
			return nil, err
		}
		cur.Questions = questions
	}

	if viewerID != nil {
		answers, err := tx.UserRoundAnswers(ctx, r.ID, *viewerID)
		if err != nil {
			return nil, err
		}
		for _, a := range answers {
			cur.Answers = append(cur.Answers, domain.ViewerAnswer{
				QuestionID: byRoundQuestion[a.RoundQuestionID],
				ChoiceID:   a.ChoiceID,
				IsCorrect:  a.IsCorrect,
			})
		}
	}
	return cur, nil
}

// pickerTurn names who picks the round's category. Rounds created before
// pickers were stored fall back to alternating by join order.
func pickerTurn(game *domain.Game, r *domain.Round, participants []*domain.Participant) *int64 {
	if game.Mode != domain.ModeDuel {
		return nil
	}
	if r.PickerID != nil {
		id := *r.PickerID
		return &id
	}
	if len(participants) == 0 {
		return nil
	}
	id := participants[(r.Number-1)%len(participants)].UserID
	return &id
}
