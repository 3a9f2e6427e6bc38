package redis

import (
	"context"
	"testing"
	"time"

	"bleepy-challenge-service/internal/domain"
)

func TestHubStoreSetsAndClearsKeys(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewHubStore(client, time.Minute)
	ctx := context.Background()

	_, cancel := store.Subscribe("123456", domain.ChallengeView{})
	if !mr.Exists("challenge:live:123456") {
		t.Fatalf("expected redis key to be set")
	}
	if _, ok := store.Get("123456"); !ok {
		t.Fatalf("expected local hub")
	}
	if !store.Live(ctx, "123456") {
		t.Fatalf("expected live challenge")
	}

	cancel()
	store.DeleteIfIdle("123456")
	if mr.Exists("challenge:live:123456") {
		t.Fatalf("expected redis key to be removed")
	}
	if store.Live(ctx, "123456") {
		t.Fatalf("expected challenge not live after cancel")
	}
}

func TestHubStoreLiveFromOtherNode(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewHubStore(client, time.Minute)

	if store.Live(context.Background(), "654321") {
		t.Fatalf("expected no stream before the marker exists")
	}
	if err := mr.Set("challenge:live:654321", "1"); err != nil {
		t.Fatalf("set marker: %v", err)
	}
	if !store.Live(context.Background(), "654321") {
		t.Fatalf("expected marker from another node to count as live")
	}
}
