package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"trivia-duel-service/internal/domain"
)

func TestDuelOverREST(t *testing.T) {
	s := newTestServer(t)
	gameID := s.matchDuel(t)
	base := fmt.Sprintf("/games/%d", gameID)

	code, state := s.do(t, http.MethodGet, base+"/state", nil)
	require.Equal(t, http.StatusOK, code)
	current := state["current_round"].(map[string]any)
	require.Equal(t, float64(1), current["picker_turn"])

	code, body := s.do(t, http.MethodPost, base+"/rounds/1/pick_category", map[string]any{"user_id": 2, "category_id": 1})
	require.Equal(t, http.StatusForbidden, code)
	require.Equal(t, "forbidden", body["reason"])

	code, body = s.do(t, http.MethodPost, base+"/rounds/1/pick_category", map[string]any{"user_id": 1, "category_id": 1})
	require.Equal(t, http.StatusOK, code)
	questions := body["question_ids"].([]any)
	require.Len(t, questions, 3)

	for _, user := range []int64{1, 2} {
		for _, q := range questions {
			qid := int64(q.(float64))
			code, body = s.do(t, http.MethodPost, base+"/rounds/1/answer", map[string]any{
				"user_id": user, "question_id": qid, "choice_id": qid*10 + 2,
			})
			require.Equal(t, http.StatusOK, code)
			require.Equal(t, true, body["is_correct"])
		}
	}

	first := int64(questions[0].(float64))
	code, body = s.do(t, http.MethodPost, base+"/rounds/1/answer", map[string]any{
		"user_id": 1, "question_id": first, "choice_id": first*10 + 1,
	})
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, "conflict", body["reason"])

	code, body = s.do(t, http.MethodPost, base+"/rounds/1/complete", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(2), body["next_round"])

	code, _ = s.do(t, http.MethodPost, base+"/complete", nil)
	require.Equal(t, http.StatusConflict, code, "round 2 is still pending")

	code, state = s.do(t, http.MethodGet, base+"/state?user_id=2", nil)
	require.Equal(t, http.StatusOK, code)
	current = state["current_round"].(map[string]any)
	require.Equal(t, float64(2), current["round_number"])
	require.Equal(t, float64(2), current["picker_turn"])
}

func TestQueueStatusAndCancel(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodGet, "/games/queue/status?user_id=1&game_type_id=1", nil)
	require.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPost, "/games/queue", map[string]any{"user_id": 1, "game_type_id": 1})
	require.Equal(t, http.StatusAccepted, code)

	code, body := s.do(t, http.MethodGet, "/games/queue/status?user_id=1&game_type_id=1", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "waiting", body["status"])

	code, _ = s.do(t, http.MethodDelete, "/games/queue?user_id=1&game_type_id=1", nil)
	require.Equal(t, http.StatusNoContent, code)

	code, _ = s.do(t, http.MethodGet, "/games/queue/status?user_id=x&game_type_id=1", nil)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestInvitationOverREST(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodPost, "/games/invite", map[string]any{"inviter_id": 1, "invitee_id": 2})
	require.Equal(t, http.StatusCreated, code)
	invitation := body["invitation_id"]

	code, _ = s.do(t, http.MethodPost, "/games/invite", map[string]any{"inviter_id": 1, "invitee_id": 2})
	require.Equal(t, http.StatusConflict, code)

	code, _ = s.do(t, http.MethodPost, "/games/invite/respond", map[string]any{
		"invitation_id": invitation, "invitee_id": 3, "action": "accept",
	})
	require.Equal(t, http.StatusForbidden, code)

	code, body = s.do(t, http.MethodPost, "/games/invite/respond", map[string]any{
		"invitation_id": invitation, "invitee_id": 2, "action": "accept",
	})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, body["accepted"])
	require.NotZero(t, body["game_id"])
}

func TestGroupGameOverREST(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodPost, "/games", map[string]any{
		"game_type_id": 1, "creator_id": 1, "participant_ids": []int64{2, 3},
	})
	require.Equal(t, http.StatusCreated, code)
	base := fmt.Sprintf("/games/%d", int64(body["game_id"].(float64)))

	code, _ = s.do(t, http.MethodPost, base+"/assign_categories", nil)
	require.Equal(t, http.StatusConflict, code, "game not started yet")

	code, body = s.do(t, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(2), body["total_rounds"])

	code, body = s.do(t, http.MethodPost, base+"/assign_categories", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["rounds"], 2)

	code, _ = s.do(t, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusConflict, code, "already active")
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, s.URL+"/games/queue", strings.NewReader("{bad"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	code, _ := s.do(t, http.MethodPost, "/games/queue", map[string]any{"user_id": 1, "game_type_id": 1, "extra": true})
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, "/games/0/state", nil)
	require.Equal(t, http.StatusBadRequest, code)

	code, body := s.do(t, http.MethodGet, "/games/99/state", nil)
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "not_found", body["reason"])

	code, _ = s.do(t, http.MethodPost, "/games/1/rounds/abc/complete", nil)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestWriteErrorHidesStorageCause(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, domain.StorageFailure(errors.New("pq: password authentication failed")))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"internal error","reason":"storage_error"}`, rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	s.matchDuel(t)

	resp, err := http.Get(s.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(s.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(raw), `trivia_matches_total{source="queue"} 1`)
}
