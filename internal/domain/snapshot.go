package domain

import "time"

// Snapshot is the consolidated client-facing view of a game. Polling
// clients and push subscribers receive the same structure.
type Snapshot struct {
	Game         GameHeader    `json:"game"`
	Participants []Participant `json:"participants"`
	Rounds       []Round       `json:"rounds"`
	CurrentRound *CurrentRound `json:"current_round"`
	Scores       map[int64]int `json:"scores"`
	GeneratedAt  time.Time     `json:"generated_at"`
}

type GameHeader struct {
	ID          int64      `json:"id"`
	GameTypeID  int64      `json:"game_type_id"`
	Mode        GameMode   `json:"mode"`
	Status      GameStatus `json:"status"`
	TotalRounds int        `json:"total_rounds"`
	WinnerID    *int64     `json:"winner_id,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
}

type CurrentRound struct {
	Number           int            `json:"round_number"`
	Status           RoundStatus    `json:"status"`
	CategoryID       *int64         `json:"category_id"`
	PickerID         *int64         `json:"category_picker_id"`
	PickerTurn       *int64         `json:"picker_turn"`
	CategoryOptions  []Category     `json:"category_options"`
	Questions        []Question     `json:"questions"`
	Answers          []ViewerAnswer `json:"answers"`
	TimeLimitSeconds int            `json:"time_limit_seconds"`
	PointsPossible   int            `json:"points_possible"`
	StartTime        *time.Time     `json:"start_time,omitempty"`
	Deadline         *time.Time     `json:"deadline,omitempty"`
}

// ViewerAnswer is an answer the viewing user already submitted.
type ViewerAnswer struct {
	QuestionID int64 `json:"question_id"`
	ChoiceID   int64 `json:"choice_id"`
	IsCorrect  bool  `json:"is_correct"`
}

type EventType string

const (
	EventGameUpdate   EventType = "game_update"
	EventTyping       EventType = "typing"
	EventPlayerJoined EventType = "player_joined"
	EventPlayerLeft   EventType = "player_left"
)

// Event is what travels over a game's broadcast topic. Only game_update
// carries a snapshot; the rest are ephemeral and never persisted.
type Event struct {
	Type     EventType `json:"type"`
	GameID   int64     `json:"game_id"`
	UserID   int64     `json:"user_id,omitempty"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	At       time.Time `json:"at"`
}
