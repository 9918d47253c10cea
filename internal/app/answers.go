package app

import (
	"context"
	"strconv"

	"github.com/sirupsen/logrus"

	"trivia-duel-service/internal/domain"
)

// SubmitAnswer records one answer and credits the round's points when it is
// correct. The answer row and the score increment commit together.
func (e *Engine) SubmitAnswer(ctx context.Context, sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	fields := logrus.Fields{
		"game_id":     sub.GameID,
		"round":       sub.RoundNumber,
		"user_id":     sub.UserID,
		"question_id": sub.QuestionID,
	}
	return observe(ctx, e, "submit_answer", fields, func(ctx context.Context) (domain.AnswerResult, error) {
		if sub.UserID <= 0 || sub.QuestionID <= 0 || sub.ChoiceID <= 0 {
			return domain.AnswerResult{}, domain.Wrap(domain.ErrMissingArgument, "user, question and choice ids")
		}

		var res domain.AnswerResult
		err := e.inTx(ctx, func(ctx context.Context, tx Tx) error {
			game, err := tx.Game(ctx, sub.GameID)
			if err != nil {
				return err
			}
			if game == nil {
				return domain.Wrap(domain.ErrGameNotFound, "game %d", sub.GameID)
			}
			round, err := tx.Round(ctx, sub.GameID, sub.RoundNumber)
			if err != nil {
				return err
			}
			if round == nil {
				return domain.Wrap(domain.ErrRoundNotFound, "round %d", sub.RoundNumber)
			}
			if game.Status != domain.GameActive {
				return domain.ErrGameNotActive
			}
			if round.Status != domain.RoundActive {
				return domain.ErrRoundNotActive
			}

			now := e.clock()
			if deadline, ok := round.Deadline(e.settings.AnswerGrace); ok && !now.Before(deadline) {
				return domain.ErrTimeLimit
			}

			participant, err := tx.Participant(ctx, sub.GameID, sub.UserID)
			if err != nil {
				return err
			}
			if participant == nil || participant.Status != domain.ParticipantActive {
				return domain.ErrNotParticipant
			}

			questions, err := tx.RoundQuestions(ctx, round.ID)
			if err != nil {
				return err
			}
			var rq *domain.RoundQuestion
			for _, q := range questions {
				if q.QuestionID == sub.QuestionID {
					rq = q
					break
				}
			}
			if rq == nil {
				return domain.Wrap(domain.ErrQuestionNotFound, "question %d", sub.QuestionID)
			}

			answered, err := tx.AnswerExists(ctx, rq.ID, sub.UserID)
			if err != nil {
				return err
			}
			if answered {
				return domain.ErrAlreadyAnswered
			}

			correct, err := e.questions.IsCorrect(ctx, sub.QuestionID, sub.ChoiceID)
			if err != nil {
				return err
			}
			correctChoice, err := e.questions.CorrectChoice(ctx, sub.QuestionID)
			if err != nil {
				return err
			}
			points := 0
			if correct {
				points = round.PointsPossible
			}

			answer := &domain.RoundAnswer{
				RoundQuestionID: rq.ID,
				UserID:          sub.UserID,
				ChoiceID:        sub.ChoiceID,
				IsCorrect:       correct,
				PointsEarned:    points,
				ResponseTimeMs:  sub.ResponseTimeMs,
				CreatedAt:       now,
			}
			if err := tx.InsertAnswer(ctx, answer); err != nil {
				return err
			}
			total, err := tx.AddScore(ctx, sub.GameID, sub.UserID, points)
			if err != nil {
				return err
			}
			res = domain.AnswerResult{
				IsCorrect:       correct,
				PointsEarned:    points,
				CorrectChoiceID: correctChoice,
				TotalScore:      total,
			}
			return nil
		})
		if err != nil {
			return domain.AnswerResult{}, err
		}
		e.metrics.Answers.WithLabelValues(strconv.FormatBool(res.IsCorrect)).Inc()
		e.publishSnapshot(ctx, sub.GameID)
		return res, nil
	})
}
