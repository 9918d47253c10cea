package memory

import (
	"context"
	"testing"

	"trivia-duel-service/internal/domain"
)

func TestHubDeliversPerGame(t *testing.T) {
	hub := NewHub(4)
	ch1, cancel1 := hub.Subscribe(1)
	defer cancel1()
	ch2, cancel2 := hub.Subscribe(2)
	defer cancel2()

	_ = hub.Publish(context.Background(), domain.Event{Type: domain.EventGameUpdate, GameID: 1})

	select {
	case ev := <-ch1:
		if ev.GameID != 1 {
			t.Fatalf("unexpected event %+v", ev)
		}
	default:
		t.Fatalf("expected event for game 1")
	}
	select {
	case ev := <-ch2:
		t.Fatalf("game 2 should not receive %+v", ev)
	default:
	}
}

func TestHubDropsOldestWhenFull(t *testing.T) {
	hub := NewHub(1)
	ch, cancel := hub.Subscribe(7)
	defer cancel()

	_ = hub.Publish(context.Background(), domain.Event{GameID: 7, UserID: 1})
	_ = hub.Publish(context.Background(), domain.Event{GameID: 7, UserID: 2})

	ev := <-ch
	if ev.UserID != 2 {
		t.Fatalf("expected newest event to survive, got user %d", ev.UserID)
	}
}

func TestHubCancelClosesAndForgets(t *testing.T) {
	hub := NewHub(1)
	ch, cancel := hub.Subscribe(3)
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	if hub.Subscribers(3) != 0 {
		t.Fatalf("expected topic removed")
	}
}
