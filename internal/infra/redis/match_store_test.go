package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"trivia-match-service/internal/app"
	"trivia-match-service/internal/domain"
	"trivia-match-service/internal/infra/memory"
)

func TestMatchStorePersistsSnapshots(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewMatchStore(client, time.Minute)

	pool, err := app.NewQuestionPool(sampleQuestions())
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	match, err := app.NewMatch("m1", []domain.PlayerSeat{{ID: "p1", DisplayName: "Alice"}}, domain.MatchSettings{}, pool)
	if err != nil {
		t.Fatalf("new match: %v", err)
	}
	store.Put(match)
	store.SaveSnapshot(context.Background(), match.Snapshot())

	if !mr.Exists("match:snapshot:m1") {
		t.Fatalf("expected snapshot key in redis")
	}

	snap, ok := store.LoadSnapshot(context.Background(), "m1")
	if !ok {
		t.Fatalf("expected snapshot readable")
	}
	if snap.MatchID != "m1" || len(snap.Seats) != 1 {
		t.Fatalf("expected round-tripped snapshot, got %+v", snap)
	}

	store.Delete("m1")
	if mr.Exists("match:snapshot:m1") {
		t.Fatalf("expected snapshot key removed on delete")
	}
}

func TestMatchSurvivesRestartViaSnapshot(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(map[string][]domain.Question{
		"general": sampleQuestions(),
	}), time.Minute)

	service := app.NewMatchService(NewMatchStore(client, time.Minute), questions)
	state, err := service.Start(context.Background(), app.MatchSpec{
		MatchID: "m1",
		Seats:   []domain.PlayerSeat{{ID: "p1", DisplayName: "Alice"}, {ID: "p2", DisplayName: "Bob"}},
		Settings: domain.MatchSettings{
			Category:    "general",
			TargetScore: 5,
		},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.Answer(context.Background(), state.MatchID, true); err != nil {
		t.Fatalf("answer: %v", err)
	}

	// A fresh store with the same redis models a process restart.
	restarted := app.NewMatchService(NewMatchStore(client, time.Minute), questions)
	restored, err := restarted.State(context.Background(), "m1")
	if err != nil {
		t.Fatalf("state after restart: %v", err)
	}
	if restored.TurnCount != 1 {
		t.Fatalf("expected history restored, got %d turns", restored.TurnCount)
	}
	if restored.Standings[0].PlayerID != "p1" || restored.Standings[0].Score != 1 {
		t.Fatalf("expected p1 leading with 1 after restore, got %+v", restored.Standings[0])
	}
	if restored.CurrentPlayerID != "p2" {
		t.Fatalf("expected p2 on turn after restore, got %s", restored.CurrentPlayerID)
	}
}
