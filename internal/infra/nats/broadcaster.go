package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"trivia-duel-service/internal/domain"
)

const subjectWildcard = "game.*.events"

// Conn is the part of *nats.Conn the broadcaster uses.
type Conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Sink receives relayed events, usually the local hub.
type Sink interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Broadcaster publishes game events on game.{id}.events.
type Broadcaster struct {
	conn Conn
	log  logrus.FieldLogger
}

// Connect dials the server at url, with an optional token.
func Connect(url, token string) (*nats.Conn, error) {
	opts := []nats.Option{nats.Name("trivia-duel-service")}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}
	return nats.Connect(url, opts...)
}

func NewBroadcaster(conn Conn, log logrus.FieldLogger) *Broadcaster {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Broadcaster{conn: conn, log: log.WithField("component", "nats_broadcaster")}
}

func Subject(gameID int64) string {
	return "game." + strconv.FormatInt(gameID, 10) + ".events"
}

func (b *Broadcaster) Publish(_ context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.conn.Publish(Subject(event.GameID), payload); err != nil {
		b.log.WithError(err).WithField("game_id", event.GameID).Error("publish event")
		return err
	}
	return nil
}

// Relay forwards events from every instance into sink until ctx is done.
func (b *Broadcaster) Relay(ctx context.Context, sink Sink) error {
	sub, err := b.conn.Subscribe(subjectWildcard, b.handler(ctx, sink))
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subjectWildcard, err)
	}
	<-ctx.Done()
	return sub.Unsubscribe()
}

func (b *Broadcaster) handler(ctx context.Context, sink Sink) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var event domain.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			b.log.WithError(err).WithField("subject", msg.Subject).Warn("dropping malformed event")
			return
		}
		if err := sink.Publish(ctx, event); err != nil {
			b.log.WithError(err).WithField("game_id", event.GameID).Warn("relay event")
		}
	}
}
