package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"trivia-duel-service/internal/domain"
)

const channelPattern = "game:*:events"

// Sink receives events relayed from Redis, usually the local hub.
type Sink interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Broadcaster publishes game events on game:{id}:events so that every
// instance can push them to its own connections.
type Broadcaster struct {
	client *redis.Client
	log    logrus.FieldLogger
}

func NewBroadcaster(client *redis.Client, log logrus.FieldLogger) *Broadcaster {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Broadcaster{client: client, log: log.WithField("component", "redis_broadcaster")}
}

func Channel(gameID int64) string {
	return "game:" + strconv.FormatInt(gameID, 10) + ":events"
}

func (b *Broadcaster) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return b.client.Publish(ctx, Channel(event.GameID), payload).Err()
}

// Relay forwards every game event published by any instance into sink
// until ctx is done.
func (b *Broadcaster) Relay(ctx context.Context, sink Sink) error {
	sub := b.client.PSubscribe(ctx, channelPattern)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channelPattern, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.log.WithError(err).WithField("channel", msg.Channel).Warn("dropping malformed event")
				continue
			}
			if err := sink.Publish(ctx, event); err != nil {
				b.log.WithError(err).WithField("game_id", event.GameID).Warn("relay event")
			}
		}
	}
}
