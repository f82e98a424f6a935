package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("store.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindMessageUpserted, Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != KindMessageUpserted {
			t.Errorf("got kind %q, want %q", evt.Kind, KindMessageUpserted)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPrefixFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("push.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindMessageUpserted})
	b.Publish(Event{Kind: KindPushStatus})

	select {
	case evt := <-ch:
		if evt.Kind != KindPushStatus {
			t.Errorf("got kind %q, want %q", evt.Kind, KindPushStatus)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure the store event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("store.", 10)
	unsub()

	b.Publish(Event{Kind: KindContactUpserted})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("send.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: KindSendAck})
	// This one should be dropped (non-blocking delivery).
	b.Publish(Event{Kind: KindSendFailed})

	evt := <-ch
	if evt.Kind != KindSendAck {
		t.Errorf("got %q, want %q", evt.Kind, KindSendAck)
	}
}

func TestKindNamespaceMatching(t *testing.T) {
	if !KindMessageUpserted.In("store.") {
		t.Error("store kind not matched by store. prefix")
	}
	if KindPushStatus.In("store.") {
		t.Error("push kind matched by store. prefix")
	}
	if !KindSendAck.In("") {
		t.Error("empty prefix must match everything")
	}
}
