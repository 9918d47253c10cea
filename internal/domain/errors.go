package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so adapters can map it to a structured reason.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidArgument
	KindNotFound
	KindForbidden
	KindConflict
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage_error"
	default:
		return "unknown"
	}
}

// Error is the engine's structured error. Sentinels below are compared by
// kind and message, so a sentinel wrapped with extra detail still matches.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == e.Msg
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches detail to a sentinel while keeping it matchable with errors.Is.
func Wrap(sentinel *Error, format string, args ...any) error {
	return &Error{Kind: sentinel.Kind, Msg: sentinel.Msg, Err: fmt.Errorf(format, args...)}
}

// StorageFailure wraps a persistence error. The cause is kept for logs only.
func StorageFailure(err error) error {
	return &Error{Kind: KindStorage, Msg: "storage failure", Err: err}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// PublicMessage returns a message safe to show to clients.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindStorage {
		return "internal error"
	}
	return e.Error()
}

var (
	ErrMissingArgument   = newError(KindInvalidArgument, "missing or invalid argument")
	ErrSelfInvite        = newError(KindInvalidArgument, "cannot invite yourself")
	ErrInvalidAction     = newError(KindInvalidArgument, "invalid invitation action")
	ErrInvalidChoice     = newError(KindInvalidArgument, "invalid choice for this question")
	ErrTooFewPlayers     = newError(KindInvalidArgument, "a group game needs at least two participants")
	ErrUserNotFound      = newError(KindNotFound, "user not found")
	ErrGameTypeNotFound  = newError(KindNotFound, "game type not found")
	ErrGameNotFound      = newError(KindNotFound, "game not found")
	ErrRoundNotFound     = newError(KindNotFound, "round not found")
	ErrQuestionNotFound  = newError(KindNotFound, "question not found in this round")
	ErrCategoryNotFound  = newError(KindNotFound, "category not found")
	ErrNoQuestions       = newError(KindNotFound, "category has no verified questions")
	ErrInvitationMissing = newError(KindNotFound, "invitation not found")
	ErrNotQueued         = newError(KindNotFound, "user is not queued or matched")

	ErrNotParticipant   = newError(KindForbidden, "user is not an active participant of this game")
	ErrNotPicker        = newError(KindForbidden, "user is not the designated category picker")
	ErrInviteeMismatch  = newError(KindForbidden, "invitee mismatch")
	ErrAlreadyQueued    = newError(KindConflict, "user already in queue")
	ErrAlreadyInvited   = newError(KindConflict, "already invited")
	ErrInviteeBusy      = newError(KindConflict, "invitee currently in another game or in the match queue")
	ErrPlayerBusy       = newError(KindConflict, "player already in another game")
	ErrInvitationClosed = newError(KindConflict, "invitation is not pending")
	ErrGameNotPending   = newError(KindConflict, "game is not pending")
	ErrGameNotActive    = newError(KindConflict, "game is not active")
	ErrNotGroupGame     = newError(KindConflict, "categories are assigned only in group games")
	ErrCategoryPicked   = newError(KindConflict, "category already picked")
	ErrRoundNotPending  = newError(KindConflict, "round is not pending")
	ErrRoundNotActive   = newError(KindConflict, "round is not active")
	ErrPreviousRound    = newError(KindConflict, "previous round not completed")
	ErrNoCategory       = newError(KindConflict, "category not selected for this round")
	ErrAnswersMissing   = newError(KindConflict, "not all answers submitted")
	ErrTimeLimit        = newError(KindConflict, "time limit exceeded")
	ErrAlreadyAnswered  = newError(KindConflict, "already answered")
	ErrRoundsRemaining  = newError(KindConflict, "pending rounds remain")
	ErrNoParticipants   = newError(KindConflict, "game has no participants")
)
