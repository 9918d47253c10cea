package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"trivia-duel-service/internal/app"
	"trivia-duel-service/internal/domain"
)

func TestStoreRollsBackFailedTransaction(t *testing.T) {
	ctx := context.Background()
	store := NewStore(domain.GameType{ID: 1, Name: "duel", TotalRounds: 3})
	boom := errors.New("boom")

	err := store.RunInTx(ctx, func(ctx context.Context, tx app.Tx) error {
		if err := tx.InsertQueueEntry(ctx, &domain.MatchQueueEntry{UserID: 1, GameTypeID: 1, EnqueuedAt: time.Now()}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if n := store.QueueLen(1); n != 0 {
		t.Fatalf("expected rollback, queue has %d entries", n)
	}
}

func TestStoreEnforcesUniqueRows(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	err := store.RunInTx(ctx, func(ctx context.Context, tx app.Tx) error {
		if err := tx.InsertQueueEntry(ctx, &domain.MatchQueueEntry{UserID: 1, GameTypeID: 1}); err != nil {
			return err
		}
		return tx.InsertQueueEntry(ctx, &domain.MatchQueueEntry{UserID: 1, GameTypeID: 1})
	})
	if !errors.Is(err, domain.ErrAlreadyQueued) {
		t.Fatalf("expected already queued, got %v", err)
	}

	err = store.RunInTx(ctx, func(ctx context.Context, tx app.Tx) error {
		if err := tx.InsertAnswer(ctx, &domain.RoundAnswer{RoundQuestionID: 5, UserID: 1}); err != nil {
			return err
		}
		return tx.InsertAnswer(ctx, &domain.RoundAnswer{RoundQuestionID: 5, UserID: 1})
	})
	if !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected already answered, got %v", err)
	}
}

func TestStoreReadTxRejectsWrites(t *testing.T) {
	store := NewStore()
	err := store.ReadTx(context.Background(), func(ctx context.Context, tx app.Tx) error {
		return tx.InsertGame(ctx, &domain.Game{})
	})
	if !errors.Is(err, ErrReadOnlyTx) {
		t.Fatalf("expected read-only error, got %v", err)
	}
}

func TestStoreClaimsOldestOpponent(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	err := store.RunInTx(ctx, func(ctx context.Context, tx app.Tx) error {
		for i, user := range []int64{3, 2, 4} {
			entry := &domain.MatchQueueEntry{UserID: user, GameTypeID: 1, EnqueuedAt: base.Add(time.Duration(i) * time.Second)}
			if err := tx.InsertQueueEntry(ctx, entry); err != nil {
				return err
			}
		}
		opp, err := tx.ClaimOpponent(ctx, 1, 3)
		if err != nil {
			return err
		}
		if opp == nil || opp.UserID != 2 {
			t.Fatalf("expected user 2 claimed, got %+v", opp)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}

func TestStoreAddScoreAndSettlements(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	err := store.RunInTx(ctx, func(ctx context.Context, tx app.Tx) error {
		game := &domain.Game{Status: domain.GameActive}
		if err := tx.InsertGame(ctx, game); err != nil {
			return err
		}
		if err := tx.InsertParticipants(ctx, []*domain.Participant{{GameID: game.ID, UserID: 9}}); err != nil {
			return err
		}
		if _, err := tx.AddScore(ctx, game.ID, 9, 100); err != nil {
			return err
		}
		total, err := tx.AddScore(ctx, game.ID, 9, 100)
		if err != nil {
			return err
		}
		if total != 200 {
			t.Fatalf("expected 200, got %d", total)
		}
		return tx.RecordSettlements(ctx, []domain.Settlement{{GameID: game.ID, UserID: 9, XP: 200, BonusXP: 40, Winner: true}})
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	if xp := store.XP(9); xp != 240 {
		t.Fatalf("expected 240 xp, got %d", xp)
	}
}
