package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"trivia-duel-service/internal/domain"
)

type gameTypeRow struct {
	bun.BaseModel `bun:"table:game_types,alias:gt"`
	ID            int64  `bun:"id,pk,autoincrement"`
	Name          string `bun:"name,notnull"`
	TotalRounds   int    `bun:"total_rounds,notnull"`
}

func (r *gameTypeRow) toDomain() *domain.GameType {
	return &domain.GameType{ID: r.ID, Name: r.Name, TotalRounds: r.TotalRounds}
}

type queueRow struct {
	bun.BaseModel `bun:"table:match_queue,alias:mq"`
	ID            int64     `bun:"id,pk,autoincrement"`
	UserID        int64     `bun:"user_id,notnull"`
	GameTypeID    int64     `bun:"game_type_id,notnull"`
	EnqueuedAt    time.Time `bun:"enqueued_at,notnull"`
}

func (r *queueRow) toDomain() *domain.MatchQueueEntry {
	return &domain.MatchQueueEntry{ID: r.ID, UserID: r.UserID, GameTypeID: r.GameTypeID, EnqueuedAt: r.EnqueuedAt}
}

type invitationRow struct {
	bun.BaseModel `bun:"table:game_invitations,alias:gi"`
	ID            int64     `bun:"id,pk,autoincrement"`
	InviterID     int64     `bun:"inviter_id,notnull"`
	InviteeID     int64     `bun:"invitee_id,notnull"`
	Status        string    `bun:"status,notnull"`
	GameID        *int64    `bun:"game_id"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

func newInvitationRow(inv *domain.GameInvitation) *invitationRow {
	return &invitationRow{
		ID:        inv.ID,
		InviterID: inv.InviterID,
		InviteeID: inv.InviteeID,
		Status:    string(inv.Status),
		GameID:    inv.GameID,
		CreatedAt: inv.CreatedAt,
	}
}

func (r *invitationRow) toDomain() *domain.GameInvitation {
	return &domain.GameInvitation{
		ID:        r.ID,
		InviterID: r.InviterID,
		InviteeID: r.InviteeID,
		Status:    domain.InvitationStatus(r.Status),
		GameID:    r.GameID,
		CreatedAt: r.CreatedAt,
	}
}

type gameRow struct {
	bun.BaseModel `bun:"table:games,alias:g"`
	ID            int64      `bun:"id,pk,autoincrement"`
	GameTypeID    int64      `bun:"game_type_id,notnull"`
	Mode          string     `bun:"mode,notnull"`
	Status        string     `bun:"status,notnull"`
	StartTime     *time.Time `bun:"start_time"`
	EndTime       *time.Time `bun:"end_time"`
	WinnerID      *int64     `bun:"winner_id"`
	CreatedAt     time.Time  `bun:"created_at,notnull"`
}

func newGameRow(g *domain.Game) *gameRow {
	return &gameRow{
		ID:         g.ID,
		GameTypeID: g.GameTypeID,
		Mode:       string(g.Mode),
		Status:     string(g.Status),
		StartTime:  g.StartTime,
		EndTime:    g.EndTime,
		WinnerID:   g.WinnerID,
		CreatedAt:  g.CreatedAt,
	}
}

func (r *gameRow) toDomain() *domain.Game {
	return &domain.Game{
		ID:         r.ID,
		GameTypeID: r.GameTypeID,
		Mode:       domain.GameMode(r.Mode),
		Status:     domain.GameStatus(r.Status),
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		WinnerID:   r.WinnerID,
		CreatedAt:  r.CreatedAt,
	}
}

type participantRow struct {
	bun.BaseModel `bun:"table:game_participants,alias:gp"`
	ID            int64     `bun:"id,pk,autoincrement"`
	GameID        int64     `bun:"game_id,notnull"`
	UserID        int64     `bun:"user_id,notnull"`
	Score         int       `bun:"score,notnull"`
	JoinTime      time.Time `bun:"join_time,notnull"`
	Status        string    `bun:"status,notnull"`
}

func (r *participantRow) toDomain() *domain.Participant {
	return &domain.Participant{
		GameID:   r.GameID,
		UserID:   r.UserID,
		Score:    r.Score,
		JoinTime: r.JoinTime,
		Status:   domain.ParticipantStatus(r.Status),
	}
}

type roundRow struct {
	bun.BaseModel    `bun:"table:game_rounds,alias:gr"`
	ID               int64      `bun:"id,pk,autoincrement"`
	GameID           int64      `bun:"game_id,notnull"`
	RoundNumber      int        `bun:"round_number,notnull"`
	CategoryID       *int64     `bun:"category_id"`
	CategoryPickerID *int64     `bun:"category_picker_id"`
	Status           string     `bun:"status,notnull"`
	StartTime        *time.Time `bun:"start_time"`
	EndTime          *time.Time `bun:"end_time"`
	TimeLimitSeconds int        `bun:"time_limit_seconds,notnull"`
	PointsPossible   int        `bun:"points_possible,notnull"`
}

func newRoundRow(r *domain.Round) *roundRow {
	return &roundRow{
		ID:               r.ID,
		GameID:           r.GameID,
		RoundNumber:      r.Number,
		CategoryID:       r.CategoryID,
		CategoryPickerID: r.PickerID,
		Status:           string(r.Status),
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		TimeLimitSeconds: r.TimeLimitSeconds,
		PointsPossible:   r.PointsPossible,
	}
}

func (r *roundRow) toDomain() *domain.Round {
	return &domain.Round{
		ID:               r.ID,
		GameID:           r.GameID,
		Number:           r.RoundNumber,
		CategoryID:       r.CategoryID,
		PickerID:         r.CategoryPickerID,
		Status:           domain.RoundStatus(r.Status),
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		TimeLimitSeconds: r.TimeLimitSeconds,
		PointsPossible:   r.PointsPossible,
	}
}

type roundQuestionRow struct {
	bun.BaseModel `bun:"table:game_round_questions,alias:grq"`
	ID            int64 `bun:"id,pk,autoincrement"`
	GameRoundID   int64 `bun:"game_round_id,notnull"`
	QuestionID    int64 `bun:"question_id,notnull"`
}

type answerRow struct {
	bun.BaseModel       `bun:"table:round_answers,alias:ra"`
	ID                  int64     `bun:"id,pk,autoincrement"`
	GameRoundQuestionID int64     `bun:"game_round_question_id,notnull"`
	UserID              int64     `bun:"user_id,notnull"`
	ChoiceID            int64     `bun:"choice_id,notnull"`
	IsCorrect           bool      `bun:"is_correct,notnull"`
	PointsEarned        int       `bun:"points_earned,notnull"`
	ResponseTimeMs      *int      `bun:"response_time_ms"`
	CreatedAt           time.Time `bun:"created_at,notnull"`
}

func (r *answerRow) toDomain() *domain.RoundAnswer {
	return &domain.RoundAnswer{
		ID:              r.ID,
		RoundQuestionID: r.GameRoundQuestionID,
		UserID:          r.UserID,
		ChoiceID:        r.ChoiceID,
		IsCorrect:       r.IsCorrect,
		PointsEarned:    r.PointsEarned,
		ResponseTimeMs:  r.ResponseTimeMs,
		CreatedAt:       r.CreatedAt,
	}
}

type settlementRow struct {
	bun.BaseModel `bun:"table:game_settlements,alias:gs"`
	GameID        int64 `bun:"game_id,pk"`
	UserID        int64 `bun:"user_id,pk"`
	XPAwarded     int   `bun:"xp_awarded,notnull"`
	BonusXP       int   `bun:"bonus_xp,notnull"`
	Winner        bool  `bun:"winner,notnull"`
}
