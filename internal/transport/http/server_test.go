package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"trivia-duel-service/internal/app"
	"trivia-duel-service/internal/domain"
	"trivia-duel-service/internal/infra/memory"
)

type testServer struct {
	*httptest.Server
	engine   *app.Engine
	hub      *memory.Hub
	presence *memory.Presence
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	catalog := memory.NewCatalog()
	catalog.AddUsers(1, 2, 3)
	catalog.AddCategory(domain.Category{ID: 1, Name: "Science"})
	for id := int64(11); id <= 13; id++ {
		catalog.AddQuestion(domain.Question{
			ID:         id,
			CategoryID: 1,
			Text:       "question",
			Choices:    []domain.Choice{{ID: id*10 + 1, Text: "a"}, {ID: id*10 + 2, Text: "b"}},
		}, id*10+2)
	}

	logger, _ := logtest.NewNullLogger()
	reg := prometheus.NewRegistry()
	hub := memory.NewHub(32)
	presence := memory.NewPresence()
	engine := app.NewEngine(app.Deps{
		Store:       memory.NewStore(domain.GameType{ID: 1, Name: "duel", TotalRounds: 2}),
		Questions:   app.NewQuestionBank(catalog, memory.NewAnswerKeyCache(catalog, time.Minute)),
		Users:       catalog,
		Categories:  catalog,
		Broadcaster: hub,
		Logger:      logger,
		Metrics:     app.NewMetrics(reg),
	}, app.WithFirstPicker(func(int) int { return 0 }))

	ws := NewWSHandler(engine, hub, presence, hub, logger)
	router := NewRouter(NewHandlers(engine), ws, RouterOptions{Gatherer: reg})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, engine: engine, hub: hub, presence: presence}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

// matchDuel queues users 1 and 2; user 1 picks first.
func (s *testServer) matchDuel(t *testing.T) int64 {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/games/queue", map[string]any{"user_id": 1, "game_type_id": 1})
	require.Equal(t, http.StatusAccepted, code)
	require.Equal(t, "waiting", body["status"])

	code, body = s.do(t, http.MethodPost, "/games/queue", map[string]any{"user_id": 2, "game_type_id": 1})
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, "matched", body["status"])
	return int64(body["game_id"].(float64))
}
