package notify

import (
	"context"
	"testing"
	"time"

	"kolekta.org/internal/collection"
)

func TestPublishReachesSubscribers(t *testing.T) {
	hub := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := hub.Subscribe(ctx)
	b := hub.Subscribe(ctx)
	if got := hub.SubscriberCount(); got != 2 {
		t.Fatalf("SubscriberCount = %d, want 2", got)
	}

	evt := collection.EventRecord{
		Type: "collection.verified",
		Collection: collection.Collection{
			ID:     "col-1",
			Amount: 5000,
			Status: collection.StatusVerified,
		},
		At: time.Now().UTC(),
	}
	hub.Publish(evt)

	for _, ch := range []<-chan collection.EventRecord{a, b} {
		select {
		case got := <-ch:
			if got.Type != evt.Type || got.Collection.ID != "col-1" {
				t.Fatalf("unexpected event: %+v", got)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Fill the subscriber buffer without draining it.
	hub.Subscribe(ctx)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish(collection.EventRecord{Type: "collection.created"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestSubscribeClosesOnContextEnd(t *testing.T) {
	hub := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := hub.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel, got event")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancellation")
	}

	// Publishing after unsubscription must not panic.
	hub.Publish(collection.EventRecord{Type: "collection.reversed"})
}
