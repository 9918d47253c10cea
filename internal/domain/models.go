package domain

import "time"

type GameStatus string

const (
	GamePending   GameStatus = "pending"
	GameActive    GameStatus = "active"
	GameCompleted GameStatus = "completed"
)

type RoundStatus string

const (
	RoundPending   RoundStatus = "pending"
	RoundActive    RoundStatus = "active"
	RoundCompleted RoundStatus = "completed"
)

// GameMode decides how round categories are chosen: duels alternate a
// designated picker, group games get random categories.
type GameMode string

const (
	ModeDuel  GameMode = "duel"
	ModeGroup GameMode = "group"
)

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
)

type ParticipantStatus string

const (
	ParticipantActive ParticipantStatus = "active"
	ParticipantLeft   ParticipantStatus = "left"
)

// GameType is immutable reference data.
type GameType struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	TotalRounds int    `json:"total_rounds"`
}

type MatchQueueEntry struct {
	ID         int64     `json:"queue_id"`
	UserID     int64     `json:"user_id"`
	GameTypeID int64     `json:"game_type_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type GameInvitation struct {
	ID        int64            `json:"invitation_id"`
	InviterID int64            `json:"inviter_id"`
	InviteeID int64            `json:"invitee_id"`
	Status    InvitationStatus `json:"status"`
	GameID    *int64           `json:"game_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

type Game struct {
	ID         int64      `json:"id"`
	GameTypeID int64      `json:"game_type_id"`
	Mode       GameMode   `json:"mode"`
	Status     GameStatus `json:"status"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	WinnerID   *int64     `json:"winner_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Participant is one player's seat in a game. Score only grows.
type Participant struct {
	GameID   int64             `json:"game_id"`
	UserID   int64             `json:"user_id"`
	Score    int               `json:"score"`
	JoinTime time.Time         `json:"join_time"`
	Status   ParticipantStatus `json:"status"`
}

type Round struct {
	ID               int64       `json:"id"`
	GameID           int64       `json:"game_id"`
	Number           int         `json:"round_number"`
	CategoryID       *int64      `json:"category_id"`
	PickerID         *int64      `json:"category_picker_id"`
	Status           RoundStatus `json:"status"`
	StartTime        *time.Time  `json:"start_time,omitempty"`
	EndTime          *time.Time  `json:"end_time,omitempty"`
	TimeLimitSeconds int         `json:"time_limit_seconds"`
	PointsPossible   int         `json:"points_possible"`
}

// Deadline is the instant after which answers are refused.
func (r Round) Deadline(grace time.Duration) (time.Time, bool) {
	if r.StartTime == nil {
		return time.Time{}, false
	}
	return r.StartTime.Add(time.Duration(r.TimeLimitSeconds)*time.Second + grace), true
}

type RoundQuestion struct {
	ID         int64 `json:"id"`
	RoundID    int64 `json:"game_round_id"`
	QuestionID int64 `json:"question_id"`
}

type RoundAnswer struct {
	ID              int64     `json:"id"`
	RoundQuestionID int64     `json:"game_round_question_id"`
	UserID          int64     `json:"user_id"`
	ChoiceID        int64     `json:"choice_id"`
	IsCorrect       bool      `json:"is_correct"`
	PointsEarned    int       `json:"points_earned"`
	ResponseTimeMs  *int      `json:"response_time_ms,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Settlement is the XP credited to one participant when a game completes.
type Settlement struct {
	GameID  int64 `json:"game_id"`
	UserID  int64 `json:"user_id"`
	XP      int   `json:"xp_awarded"`
	BonusXP int   `json:"bonus_xp"`
	Winner  bool  `json:"winner"`
}

type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Choice never carries correctness; that stays behind the question bank.
type Choice struct {
	ID   int64  `json:"choice_id"`
	Text string `json:"choice_text"`
}

type Question struct {
	ID         int64    `json:"question_id"`
	CategoryID int64    `json:"category_id"`
	Text       string   `json:"text"`
	Choices    []Choice `json:"choices"`
}

// AnswerKey lists a question's choices and the correct one.
type AnswerKey struct {
	QuestionID      int64
	CorrectChoiceID int64
	ChoiceIDs       []int64
}

func (k AnswerKey) Has(choiceID int64) bool {
	for _, id := range k.ChoiceIDs {
		if id == choiceID {
			return true
		}
	}
	return false
}
