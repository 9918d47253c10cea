package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"trivia-duel-service/internal/domain"
)

// Subscriber hands out a game's event stream.
type Subscriber interface {
	Subscribe(gameID int64) (<-chan domain.Event, func())
}

type Presence interface {
	Join(ctx context.Context, gameID, userID int64, connID string) (bool, error)
	Leave(ctx context.Context, gameID, userID int64, connID string) (bool, error)
}

type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

type WSHandler struct {
	games     Games
	events    Subscriber
	presence  Presence
	publisher Publisher
	log       logrus.FieldLogger
	upgrader  websocket.Upgrader

	// TypingEvery and TypingBurst throttle typing events per connection.
	TypingEvery time.Duration
	TypingBurst int
}

func NewWSHandler(games Games, events Subscriber, presence Presence, publisher Publisher, log logrus.FieldLogger) *WSHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WSHandler{
		games:     games,
		events:    events,
		presence:  presence,
		publisher: publisher,
		log:       log.WithField("component", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		TypingEvery: time.Second,
		TypingBurst: 3,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type roundPayload struct {
	RoundNumber int `json:"round_number"`
}

type pickPayload struct {
	RoundNumber int   `json:"round_number"`
	CategoryID  int64 `json:"category_id"`
}

type answerPayload struct {
	RoundNumber    int   `json:"round_number"`
	QuestionID     int64 `json:"question_id"`
	ChoiceID       int64 `json:"choice_id"`
	ResponseTimeMs *int  `json:"response_time_ms,omitempty"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type presencePayload struct {
	UserID int64 `json:"user_id"`
}

// ServeWS upgrades a participant's request and streams the game to it.
// Commands sent over the socket go through the same engine calls as REST.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	gameID, err := parseID(r.URL.Query().Get("game_id"), "game_id")
	if err != nil {
		writeError(w, err)
		return
	}
	userID, err := parseID(r.URL.Query().Get("user_id"), "user_id")
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := h.games.GetSnapshot(r.Context(), gameID, &userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !seated(snap, userID) {
		writeError(w, domain.ErrNotParticipant)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	connID := uuid.NewString()
	log := h.log.WithFields(logrus.Fields{"game_id": gameID, "user_id": userID, "conn_id": connID})

	updates, cancel := h.events.Subscribe(gameID)
	defer cancel()

	if first, err := h.presence.Join(ctx, gameID, userID, connID); err != nil {
		log.WithError(err).Warn("presence join")
	} else if first {
		h.emit(ctx, domain.EventPlayerJoined, gameID, userID)
	}
	defer func() {
		// the request context may already be done here
		leaveCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		last, err := h.presence.Leave(leaveCtx, gameID, userID, connID)
		if err != nil {
			log.WithError(err).Warn("presence leave")
			return
		}
		if last {
			h.emit(leaveCtx, domain.EventPlayerLeft, gameID, userID)
		}
	}()

	// Read the state again now that the subscription is live, so nothing
	// committed since the participant check goes missing.
	if fresh, err := h.games.GetSnapshot(ctx, gameID, &userID); err != nil {
		log.WithError(err).Warn("refresh snapshot")
	} else {
		snap = fresh
	}

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})
	send <- outboundMessage{Type: string(domain.EventGameUpdate), Payload: snap}

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).Debug("ws write")
				// unblock the read loop
				_ = conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					return
				}
				if stale(ev, snap.GeneratedAt) {
					continue
				}
				msg, forward := eventMessage(ev, userID)
				if !forward {
					continue
				}
				select {
				case send <- msg:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	typing := rate.NewLimiter(rate.Every(h.TypingEvery), h.TypingBurst)
read:
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if reply, ok := h.handle(ctx, gameID, userID, inbound, typing); ok {
			select {
			case send <- reply:
			case <-writerDone:
				break read
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// handle runs one client command. The broadcast that follows a successful
// mutation reaches the client through its subscription.
func (h *WSHandler) handle(ctx context.Context, gameID, userID int64, in inboundMessage, typing *rate.Limiter) (outboundMessage, bool) {
	switch in.Type {
	case "pick_category":
		var p pickPayload
		if err := unmarshal(in.Payload, &p); err != nil {
			return gameError(err), true
		}
		if _, err := h.games.PickCategory(ctx, gameID, p.RoundNumber, userID, p.CategoryID); err != nil {
			return gameError(err), true
		}
	case "answer":
		var p answerPayload
		if err := unmarshal(in.Payload, &p); err != nil {
			return gameError(err), true
		}
		res, err := h.games.SubmitAnswer(ctx, domain.AnswerSubmission{
			GameID:         gameID,
			RoundNumber:    p.RoundNumber,
			UserID:         userID,
			QuestionID:     p.QuestionID,
			ChoiceID:       p.ChoiceID,
			ResponseTimeMs: p.ResponseTimeMs,
		})
		if err != nil {
			return gameError(err), true
		}
		return outboundMessage{Type: "answer_result", Payload: res}, true
	case "complete_round":
		var p roundPayload
		if err := unmarshal(in.Payload, &p); err != nil {
			return gameError(err), true
		}
		if _, err := h.games.CompleteRound(ctx, gameID, p.RoundNumber); err != nil {
			return gameError(err), true
		}
	case "complete_game":
		if _, err := h.games.CompleteGame(ctx, gameID); err != nil {
			return gameError(err), true
		}
	case "get_state":
		snap, err := h.games.GetSnapshot(ctx, gameID, &userID)
		if err != nil {
			return gameError(err), true
		}
		return outboundMessage{Type: string(domain.EventGameUpdate), Payload: snap}, true
	case "typing":
		if typing.Allow() {
			h.emit(ctx, domain.EventTyping, gameID, userID)
		}
	default:
		return gameError(domain.Wrap(domain.ErrMissingArgument, "unsupported message type %q", in.Type)), true
	}
	return outboundMessage{}, false
}

func (h *WSHandler) emit(ctx context.Context, typ domain.EventType, gameID, userID int64) {
	ev := domain.Event{Type: typ, GameID: gameID, UserID: userID, At: time.Now().UTC()}
	if err := h.publisher.Publish(ctx, ev); err != nil {
		h.log.WithError(err).WithField("event", typ).Warn("publish ephemeral event")
	}
}

// eventMessage converts a topic event into the client message. Ephemeral
// events about the receiving user are not echoed back.
func eventMessage(ev domain.Event, userID int64) (outboundMessage, bool) {
	switch ev.Type {
	case domain.EventGameUpdate:
		if ev.Snapshot == nil {
			return outboundMessage{}, false
		}
		return outboundMessage{Type: string(ev.Type), Payload: ev.Snapshot}, true
	case domain.EventTyping, domain.EventPlayerJoined, domain.EventPlayerLeft:
		if ev.UserID == userID {
			return outboundMessage{}, false
		}
		return outboundMessage{Type: string(ev.Type), Payload: presencePayload{UserID: ev.UserID}}, true
	}
	return outboundMessage{}, false
}

// stale reports a game update generated before the snapshot the client
// already holds.
func stale(ev domain.Event, since time.Time) bool {
	return ev.Type == domain.EventGameUpdate && ev.Snapshot != nil && ev.Snapshot.GeneratedAt.Before(since)
}

func gameError(err error) outboundMessage {
	return outboundMessage{Type: "game_error", Payload: errorBody{
		Error:  domain.PublicMessage(err),
		Reason: domain.KindOf(err).String(),
	}}
}

func unmarshal(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return domain.Wrap(domain.ErrMissingArgument, "invalid payload: %v", err)
	}
	return nil
}

func seated(snap domain.Snapshot, userID int64) bool {
	for _, p := range snap.Participants {
		if p.UserID == userID && p.Status == domain.ParticipantActive {
			return true
		}
	}
	return false
}
