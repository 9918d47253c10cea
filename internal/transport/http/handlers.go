package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trivia-duel-service/internal/domain"
)

// Games is the engine surface the adapters drive.
type Games interface {
	Enqueue(ctx context.Context, userID, gameTypeID int64) (domain.EnqueueResult, error)
	CancelQueue(ctx context.Context, userID, gameTypeID int64) error
	QueueStatus(ctx context.Context, userID, gameTypeID int64) (domain.QueueStatus, error)
	Invite(ctx context.Context, inviterID, inviteeID int64) (domain.InviteResult, error)
	RespondInvite(ctx context.Context, invitationID, inviteeID int64, action domain.InviteAction) (domain.RespondResult, error)
	CreateGroupGame(ctx context.Context, gameTypeID, creatorID int64, participantIDs []int64) (domain.StartResult, error)
	StartGame(ctx context.Context, gameID int64) (domain.StartResult, error)
	AssignCategories(ctx context.Context, gameID int64) ([]domain.AssignedRound, error)
	PickCategory(ctx context.Context, gameID int64, roundNumber int, userID, categoryID int64) (domain.PickResult, error)
	SubmitAnswer(ctx context.Context, sub domain.AnswerSubmission) (domain.AnswerResult, error)
	CompleteRound(ctx context.Context, gameID int64, roundNumber int) (domain.RoundCompletion, error)
	CompleteGame(ctx context.Context, gameID int64) (domain.GameCompletion, error)
	GetSnapshot(ctx context.Context, gameID int64, viewerID *int64) (domain.Snapshot, error)
}

// Handlers exposes the engine as JSON over HTTP.
type Handlers struct {
	games Games
}

func NewHandlers(games Games) *Handlers {
	return &Handlers{games: games}
}

// Routes mounts the game endpoints on r.
func (h *Handlers) Routes(r chi.Router) {
	r.Route("/games", func(r chi.Router) {
		r.Post("/", h.createGroupGame)
		r.Post("/queue", h.enqueue)
		r.Delete("/queue", h.cancelQueue)
		r.Get("/queue/status", h.queueStatus)
		r.Post("/invite", h.invite)
		r.Post("/invite/respond", h.respondInvite)

		r.Route("/{gameID}", func(r chi.Router) {
			r.Post("/start", h.startGame)
			r.Post("/assign_categories", h.assignCategories)
			r.Post("/complete", h.completeGame)
			r.Get("/state", h.state)
			r.Post("/rounds/{round}/pick_category", h.pickCategory)
			r.Post("/rounds/{round}/answer", h.answer)
			r.Post("/rounds/{round}/complete", h.completeRound)
		})
	})
}

type queueRequest struct {
	UserID     int64 `json:"user_id"`
	GameTypeID int64 `json:"game_type_id"`
}

func (h *Handlers) enqueue(w http.ResponseWriter, r *http.Request) {
	var req queueRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.games.Enqueue(r.Context(), req.UserID, req.GameTypeID)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusAccepted
	if res.Status == domain.QueueMatched {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

func queueParams(r *http.Request) (userID, gameTypeID int64, err error) {
	if userID, err = parseID(r.URL.Query().Get("user_id"), "user_id"); err != nil {
		return 0, 0, err
	}
	gameTypeID, err = parseID(r.URL.Query().Get("game_type_id"), "game_type_id")
	return userID, gameTypeID, err
}

func (h *Handlers) cancelQueue(w http.ResponseWriter, r *http.Request) {
	userID, gameTypeID, err := queueParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.games.CancelQueue(r.Context(), userID, gameTypeID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) queueStatus(w http.ResponseWriter, r *http.Request) {
	userID, gameTypeID, err := queueParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.games.QueueStatus(r.Context(), userID, gameTypeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type inviteRequest struct {
	InviterID int64 `json:"inviter_id"`
	InviteeID int64 `json:"invitee_id"`
}

func (h *Handlers) invite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.games.Invite(r.Context(), req.InviterID, req.InviteeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type respondRequest struct {
	InvitationID int64               `json:"invitation_id"`
	InviteeID    int64               `json:"invitee_id"`
	Action       domain.InviteAction `json:"action"`
}

func (h *Handlers) respondInvite(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.games.RespondInvite(r.Context(), req.InvitationID, req.InviteeID, req.Action)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type groupGameRequest struct {
	GameTypeID     int64   `json:"game_type_id"`
	CreatorID      int64   `json:"creator_id"`
	ParticipantIDs []int64 `json:"participant_ids"`
}

func (h *Handlers) createGroupGame(w http.ResponseWriter, r *http.Request) {
	var req groupGameRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.games.CreateGroupGame(r.Context(), req.GameTypeID, req.CreatorID, req.ParticipantIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func gameID(r *http.Request) (int64, error) {
	return parseID(chi.URLParam(r, "gameID"), "game id")
}

func roundParams(r *http.Request) (int64, int, error) {
	id, err := gameID(r)
	if err != nil {
		return 0, 0, err
	}
	round, err := parseID(chi.URLParam(r, "round"), "round number")
	if err != nil {
		return 0, 0, err
	}
	return id, int(round), nil
}

func (h *Handlers) startGame(w http.ResponseWriter, r *http.Request) {
	id, err := gameID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.games.StartGame(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) assignCategories(w http.ResponseWriter, r *http.Request) {
	id, err := gameID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.games.AssignCategories(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rounds": res})
}

type pickRequest struct {
	UserID     int64 `json:"user_id"`
	CategoryID int64 `json:"category_id"`
}

func (h *Handlers) pickCategory(w http.ResponseWriter, r *http.Request) {
	id, round, err := roundParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req pickRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.games.PickCategory(r.Context(), id, round, req.UserID, req.CategoryID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type answerRequest struct {
	UserID         int64 `json:"user_id"`
	QuestionID     int64 `json:"question_id"`
	ChoiceID       int64 `json:"choice_id"`
	ResponseTimeMs *int  `json:"response_time_ms,omitempty"`
}

func (h *Handlers) answer(w http.ResponseWriter, r *http.Request) {
	id, round, err := roundParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req answerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.games.SubmitAnswer(r.Context(), domain.AnswerSubmission{
		GameID:         id,
		RoundNumber:    round,
		UserID:         req.UserID,
		QuestionID:     req.QuestionID,
		ChoiceID:       req.ChoiceID,
		ResponseTimeMs: req.ResponseTimeMs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) completeRound(w http.ResponseWriter, r *http.Request) {
	id, round, err := roundParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.games.CompleteRound(r.Context(), id, round)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) completeGame(w http.ResponseWriter, r *http.Request) {
	id, err := gameID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.games.CompleteGame(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) state(w http.ResponseWriter, r *http.Request) {
	id, err := gameID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	viewer, err := optionalID(r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := h.games.GetSnapshot(r.Context(), id, viewer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
