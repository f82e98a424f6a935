package push

import (
	"testing"

	"github.com/psousa/waconsole/internal/bus"
	"github.com/psousa/waconsole/internal/model"
	"github.com/psousa/waconsole/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(bus.New(), nil, 50)
	s.SetAccounts([]model.Account{{ID: "acc-a"}, {ID: "acc-b"}})
	if err := s.SwitchAccount("acc-a"); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewMessageReachesStore(t *testing.T) {
	s := testStore(t)
	h := NewHandler(s, nil)

	h.Handle([]byte(`{
		"event": "new_message",
		"data": {
			"account_id": "acc-a",
			"phone_number": "+234-901-234-5678",
			"message": {
				"id": "row-1",
				"message_id": "wamid.1",
				"phone_number": "+234-901-234-5678",
				"text": "hello",
				"sender_type": "incoming",
				"timestamp": "2026-08-30T10:00:00Z"
			}
		}
	}`))

	msgs := s.Messages("2349012345678")
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].ID.Durable != "wamid.1" {
		t.Errorf("durable id = %q, want wamid.1", msgs[0].ID.Durable)
	}

	c, ok := s.Contact("2349012345678")
	if !ok {
		t.Fatal("contact not touched")
	}
	if c.LastMessage != "hello" {
		t.Errorf("last message = %q", c.LastMessage)
	}
	if c.UnreadCount != 0 || c.MessageCount != 0 {
		t.Errorf("counts written by push: unread=%d messages=%d", c.UnreadCount, c.MessageCount)
	}
}

func TestNewMessageFallsBackToRowID(t *testing.T) {
	s := testStore(t)
	h := NewHandler(s, nil)

	h.Handle([]byte(`{
		"event": "new_message",
		"data": {
			"account_id": "acc-a",
			"phone_number": "15550001111",
			"message": {
				"id": "row-9",
				"phone_number": "15550001111",
				"text": "hi",
				"sender_type": "incoming",
				"timestamp": "2026-08-30T10:00:00Z"
			}
		}
	}`))

	msgs := s.Messages("15550001111")
	if len(msgs) != 1 || msgs[0].ID.Durable != "row-9" {
		t.Fatalf("messages = %+v", msgs)
	}
}

func TestForeignAccountEventDiscarded(t *testing.T) {
	s := testStore(t)
	h := NewHandler(s, nil)

	h.Handle([]byte(`{
		"event": "new_message",
		"data": {
			"account_id": "acc-b",
			"phone_number": "15550001111",
			"message": {
				"id": "row-1",
				"phone_number": "15550001111",
				"text": "other account",
				"sender_type": "incoming",
				"timestamp": "2026-08-30T10:00:00Z"
			}
		}
	}`))

	if msgs := s.Messages("15550001111"); len(msgs) != 0 {
		t.Fatalf("foreign-account message stored: %+v", msgs)
	}
	if _, ok := s.Contact("15550001111"); ok {
		t.Fatal("foreign-account contact created")
	}
}

func TestSystemStatusStored(t *testing.T) {
	s := testStore(t)
	h := NewHandler(s, nil)

	h.Handle([]byte(`{
		"event": "system_status",
		"data": {"online": true, "redis_connected": true, "webhook_status": "healthy"}
	}`))

	status, ok := s.SystemStatus()
	if !ok {
		t.Fatal("system status not stored")
	}
	if !status.Online || status.WebhookStatus != "healthy" {
		t.Errorf("status = %+v", status)
	}
}

func TestAccountErrorNotifies(t *testing.T) {
	s := testStore(t)
	h := NewHandler(s, nil)

	h.Handle([]byte(`{
		"event": "account_status",
		"data": {"account_id": "acc-a", "status": "error", "message": "token expired"}
	}`))
	h.Handle([]byte(`{
		"event": "account_status",
		"data": {"account_id": "acc-a", "status": "active"}
	}`))

	notes := s.Notifications()
	if len(notes) != 1 {
		t.Fatalf("got %d notifications, want 1", len(notes))
	}
	if notes[0].Type != model.NotifyError || notes[0].Message != "token expired" {
		t.Errorf("notification = %+v", notes[0])
	}
}

func TestWebhookErrorNotifies(t *testing.T) {
	s := testStore(t)
	h := NewHandler(s, nil)

	h.Handle([]byte(`{
		"event": "webhook_event",
		"data": {"type": "error", "message": "delivery failed"}
	}`))

	notes := s.Notifications()
	if len(notes) != 1 || notes[0].Type != model.NotifyWarning {
		t.Fatalf("notifications = %+v", notes)
	}
}

func TestMalformedFrameDropped(t *testing.T) {
	s := testStore(t)
	h := NewHandler(s, nil)

	h.Handle([]byte(`not json`))
	h.Handle([]byte(`{"event": "new_message", "data": {"message": 42}}`))

	if notes := s.Notifications(); len(notes) != 0 {
		t.Fatalf("notifications = %+v", notes)
	}
}
