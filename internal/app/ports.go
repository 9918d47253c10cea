package app

import (
	"context"
	"time"

	"trivia-duel-service/internal/domain"
)

// Store runs multi-step read-modify-write sequences atomically. A non-nil
// error from fn rolls back everything fn did.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	ReadTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the row-level view of the engine's tables inside one transaction.
// Lookups return a nil pointer and a nil error when the row does not exist.
// Lock* variants hold the row until the transaction ends.
type Tx interface {
	GameType(ctx context.Context, id int64) (*domain.GameType, error)

	LockQueue(ctx context.Context, gameTypeID int64) error
	QueueEntry(ctx context.Context, userID, gameTypeID int64) (*domain.MatchQueueEntry, error)
	InsertQueueEntry(ctx context.Context, entry *domain.MatchQueueEntry) error
	ClaimOpponent(ctx context.Context, gameTypeID, userID int64) (*domain.MatchQueueEntry, error)
	DeleteQueueEntry(ctx context.Context, id int64) (bool, error)
	DeleteUserQueueEntries(ctx context.Context, userIDs ...int64) error
	UserQueued(ctx context.Context, userID int64) (bool, error)

	InsertInvitation(ctx context.Context, inv *domain.GameInvitation) error
	PendingInvitation(ctx context.Context, inviterID, inviteeID int64) (*domain.GameInvitation, error)
	LockInvitation(ctx context.Context, id int64) (*domain.GameInvitation, error)
	UpdateInvitation(ctx context.Context, inv *domain.GameInvitation) error
	DeleteInvitation(ctx context.Context, id int64) error

	InsertGame(ctx context.Context, game *domain.Game) error
	Game(ctx context.Context, id int64) (*domain.Game, error)
	LockGame(ctx context.Context, id int64) (*domain.Game, error)
	UpdateGame(ctx context.Context, game *domain.Game) error
	LatestOpenGame(ctx context.Context, userID, gameTypeID int64) (*domain.Game, error)
	UserInOpenGame(ctx context.Context, userID int64) (bool, error)

	InsertParticipants(ctx context.Context, participants []*domain.Participant) error
	// Participants are returned in join order.
	Participants(ctx context.Context, gameID int64) ([]*domain.Participant, error)
	Participant(ctx context.Context, gameID, userID int64) (*domain.Participant, error)
	AddScore(ctx context.Context, gameID, userID int64, points int) (int, error)

	InsertRounds(ctx context.Context, rounds []*domain.Round) error
	// Rounds are returned ordered by round number.
	Rounds(ctx context.Context, gameID int64) ([]*domain.Round, error)
	Round(ctx context.Context, gameID int64, number int) (*domain.Round, error)
	LockRound(ctx context.Context, gameID int64, number int) (*domain.Round, error)
	UpdateRound(ctx context.Context, round *domain.Round) error

	InsertRoundQuestions(ctx context.Context, questions []*domain.RoundQuestion) error
	RoundQuestions(ctx context.Context, roundID int64) ([]*domain.RoundQuestion, error)

	InsertAnswer(ctx context.Context, answer *domain.RoundAnswer) error
	AnswerExists(ctx context.Context, roundQuestionID, userID int64) (bool, error)
	CountRoundAnswers(ctx context.Context, roundID int64) (int, error)
	UserRoundAnswers(ctx context.Context, roundID, userID int64) ([]*domain.RoundAnswer, error)

	RecordSettlements(ctx context.Context, settlements []domain.Settlement) error
}

// QuestionBank serves verified questions and answer checks.
type QuestionBank interface {
	SampleQuestions(ctx context.Context, categoryID int64, count int) ([]domain.Question, error)
	Questions(ctx context.Context, ids []int64) ([]domain.Question, error)
	// IsCorrect fails with domain.ErrInvalidChoice when choiceID does not belong to questionID.
	IsCorrect(ctx context.Context, questionID, choiceID int64) (bool, error)
	CorrectChoice(ctx context.Context, questionID int64) (int64, error)
}

type IdentityDirectory interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
}

type CategoryDirectory interface {
	CategoryExists(ctx context.Context, categoryID int64) (bool, error)
	RandomCategories(ctx context.Context, n int) ([]domain.Category, error)
}

// Broadcaster pushes events onto a game's topic. Delivery is best effort.
type Broadcaster interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Settings are the engine's tunables.
type Settings struct {
	QuestionsPerRound   int
	TimeLimit           time.Duration
	AnswerGrace         time.Duration
	PointsPossible      int
	CategorySuggestions int
	WinnerBonusPercent  int
	InviteGameTypeID    int64
}

func DefaultSettings() Settings {
	return Settings{
		QuestionsPerRound:   3,
		TimeLimit:           30 * time.Second,
		AnswerGrace:         5 * time.Second,
		PointsPossible:      100,
		CategorySuggestions: 3,
		WinnerBonusPercent:  20,
		InviteGameTypeID:    1,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.QuestionsPerRound <= 0 {
		s.QuestionsPerRound = d.QuestionsPerRound
	}
	if s.TimeLimit <= 0 {
		s.TimeLimit = d.TimeLimit
	}
	if s.AnswerGrace < 0 {
		s.AnswerGrace = 0
	}
	if s.PointsPossible <= 0 {
		s.PointsPossible = d.PointsPossible
	}
	if s.CategorySuggestions <= 0 {
		s.CategorySuggestions = d.CategorySuggestions
	}
	if s.WinnerBonusPercent < 0 {
		s.WinnerBonusPercent = 0
	}
	if s.InviteGameTypeID <= 0 {
		s.InviteGameTypeID = d.InviteGameTypeID
	}
	return s
}

// QuestionSource serves question content without correctness.
type QuestionSource interface {
	SampleQuestions(ctx context.Context, categoryID int64, count int) ([]domain.Question, error)
	Questions(ctx context.Context, ids []int64) ([]domain.Question, error)
}

// AnswerChecker judges choices, usually from a cache of answer keys.
type AnswerChecker interface {
	IsCorrect(ctx context.Context, questionID, choiceID int64) (bool, error)
	CorrectChoice(ctx context.Context, questionID int64) (int64, error)
}

type questionBank struct {
	QuestionSource
	AnswerChecker
}

// NewQuestionBank joins a question source with an answer checker.
func NewQuestionBank(source QuestionSource, checker AnswerChecker) QuestionBank {
	return questionBank{QuestionSource: source, AnswerChecker: checker}
}
