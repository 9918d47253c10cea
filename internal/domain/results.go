package domain

import "time"

type QueueState string

const (
	QueueWaiting QueueState = "waiting"
	QueueMatched QueueState = "matched"
)

// EnqueueResult is either a waiting ticket or a freshly created game.
type EnqueueResult struct {
	Status     QueueState `json:"status"`
	QueueID    int64      `json:"queue_id,omitempty"`
	EnqueuedAt *time.Time `json:"enqueued_at,omitempty"`
	GameID     int64      `json:"game_id,omitempty"`
	Players    []int64    `json:"players,omitempty"`
}

type QueueStatus struct {
	Status     QueueState `json:"status"`
	QueueID    int64      `json:"queue_id,omitempty"`
	EnqueuedAt *time.Time `json:"enqueued_at,omitempty"`
	GameID     int64      `json:"game_id,omitempty"`
	GameStatus GameStatus `json:"game_status,omitempty"`
}

type InviteResult struct {
	InvitationID int64     `json:"invitation_id"`
	CreatedAt    time.Time `json:"created_at"`
}

type InviteAction string

const (
	ActionAccept  InviteAction = "accept"
	ActionDecline InviteAction = "decline"
	ActionReject  InviteAction = "reject"
)

type RespondResult struct {
	Accepted bool    `json:"accepted"`
	GameID   int64   `json:"game_id,omitempty"`
	Players  []int64 `json:"players,omitempty"`
}

type StartResult struct {
	GameID      int64 `json:"game_id"`
	TotalRounds int   `json:"total_rounds"`
}

type PickResult struct {
	RoundID     int64   `json:"round_id"`
	CategoryID  int64   `json:"category_id"`
	QuestionIDs []int64 `json:"question_ids"`
}

type AssignedRound struct {
	RoundNumber int     `json:"round_number"`
	RoundID     int64   `json:"round_id"`
	CategoryID  int64   `json:"category_id"`
	QuestionIDs []int64 `json:"question_ids"`
}

type AnswerSubmission struct {
	GameID         int64
	RoundNumber    int
	UserID         int64
	QuestionID     int64
	ChoiceID       int64
	ResponseTimeMs *int
}

type AnswerResult struct {
	IsCorrect       bool  `json:"is_correct"`
	PointsEarned    int   `json:"points_earned"`
	CorrectChoiceID int64 `json:"correct_choice_id"`
	TotalScore      int   `json:"total_score"`
}

type RoundCompletion struct {
	RoundNumber      int  `json:"round_number"`
	AlreadyCompleted bool `json:"already_completed"`
	NextRound        *int `json:"next_round,omitempty"`
	GameReady        bool `json:"game_ready"`
}

type GameCompletion struct {
	GameID      int64        `json:"game_id"`
	WinnerID    int64        `json:"winner_id"`
	WinnerScore int          `json:"winner_score"`
	Settlements []Settlement `json:"settlements"`
}
