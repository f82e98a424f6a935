package loader

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/psousa/waconsole/internal/bus"
	"github.com/psousa/waconsole/internal/config"
	"github.com/psousa/waconsole/internal/model"
	"github.com/psousa/waconsole/internal/store"
)

type fakeSource struct {
	contacts    []model.Contact
	messages    map[string][]model.Message
	contactsErr error
	messagesErr error
	queried     []string // phone numbers whose conversations were fetched
	onMessages  func()   // runs while the snapshot fetch is "in flight"
}

func (f *fakeSource) QueryContacts(ctx context.Context, accountID string) ([]model.Contact, error) {
	if f.contactsErr != nil {
		return nil, f.contactsErr
	}
	return f.contacts, nil
}

func (f *fakeSource) QueryMessages(ctx context.Context, accountID, phoneNumber string, limit int) ([]model.Message, error) {
	f.queried = append(f.queried, phoneNumber)
	if f.messagesErr != nil {
		return nil, f.messagesErr
	}
	if f.onMessages != nil {
		f.onMessages()
	}
	msgs := f.messages[phoneNumber]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

type fakeFallback struct {
	contacts []model.Contact
	messages map[string][]model.Message
	err      error
	calls    int
}

func (f *fakeFallback) Contacts(ctx context.Context, accountID string) ([]model.Contact, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.contacts, nil
}

func (f *fakeFallback) Messages(ctx context.Context, accountID, phoneNumber string) ([]model.Message, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.messages[phoneNumber], nil
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(bus.New(), nil, 50)
	s.SetAccounts([]model.Account{{ID: "acc-a"}, {ID: "acc-b"}})
	if err := s.SwitchAccount("acc-a"); err != nil {
		t.Fatal(err)
	}
	return s
}

func msgAt(id string, hour int) model.Message {
	return model.Message{
		ID:          model.MessageID{Durable: id},
		PhoneNumber: "15550001111",
		Text:        id,
		Direction:   model.DirectionIncoming,
		Timestamp:   fmt.Sprintf("2026-08-30T%02d:00:00Z", hour),
		AccountID:   "acc-a",
	}
}

func snapshotConfig() config.Snapshot {
	return config.Snapshot{ContactCap: 10, MessageCap: 100}
}

func TestLoadSeedsContactsAndMessages(t *testing.T) {
	src := &fakeSource{
		contacts: []model.Contact{{PhoneNumber: "15550001111", AccountID: "acc-a"}},
		messages: map[string][]model.Message{
			"15550001111": {msgAt("m1", 1), msgAt("m2", 2)},
		},
	}
	s := testStore(t)
	New(snapshotConfig(), src, nil, s, nil).Load(context.Background(), "acc-a")

	if got := len(s.Contacts()); got != 1 {
		t.Fatalf("got %d contacts, want 1", got)
	}
	msgs := s.Messages("15550001111")
	if len(msgs) != 2 || msgs[0].ID.Durable != "m1" {
		t.Fatalf("messages = %+v", msgs)
	}
}

func TestLoadSeedsAllContactsButPrefetchesCapped(t *testing.T) {
	src := &fakeSource{}
	for i := 0; i < 25; i++ {
		src.contacts = append(src.contacts, model.Contact{
			PhoneNumber: fmt.Sprintf("155500010%02d", i),
			AccountID:   "acc-a",
		})
	}
	s := testStore(t)
	New(config.Snapshot{ContactCap: 10, MessageCap: 100}, src, nil, s, nil).Load(context.Background(), "acc-a")

	// The full contact list is visible; the cap bounds only how many
	// conversations get their messages fetched up front.
	if got := len(s.Contacts()); got != 25 {
		t.Fatalf("got %d contacts, want all 25", got)
	}
	if got := len(src.queried); got != 10 {
		t.Fatalf("prefetched %d conversations, want 10", got)
	}
	for i, phone := range src.queried {
		if want := fmt.Sprintf("155500010%02d", i); phone != want {
			t.Errorf("prefetch[%d] = %s, want %s", i, phone, want)
		}
	}
}

func TestLoadKeepsLiveMessageArrivingMidLoad(t *testing.T) {
	// A pushed message lands after the contact list is seeded but before
	// the conversation snapshot is applied: the snapshot must merge it
	// in, not wipe it.
	s := testStore(t)
	src := &fakeSource{
		contacts: []model.Contact{{PhoneNumber: "15550001111", AccountID: "acc-a"}},
		messages: map[string][]model.Message{
			"15550001111": {msgAt("m1", 1), msgAt("m2", 2)},
		},
	}
	src.onMessages = func() {
		if _, err := s.AddMessage("15550001111", msgAt("live", 3)); err != nil {
			t.Fatal(err)
		}
	}
	New(snapshotConfig(), src, nil, s, nil).Load(context.Background(), "acc-a")

	msgs := s.Messages("15550001111")
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3: %+v", len(msgs), msgs)
	}
	if msgs[2].ID.Durable != "live" {
		t.Errorf("live message lost, tail = %+v", msgs[2])
	}
}

func TestLoadDiscardedAfterAccountSwitch(t *testing.T) {
	s := testStore(t)
	src := &fakeSource{
		contacts: []model.Contact{{PhoneNumber: "15550001111", AccountID: "acc-a"}},
	}
	if err := s.SwitchAccount("acc-b"); err != nil {
		t.Fatal(err)
	}
	New(snapshotConfig(), src, nil, s, nil).Load(context.Background(), "acc-a")

	if got := len(s.Contacts()); got != 0 {
		t.Fatalf("stale snapshot seeded %d contacts", got)
	}
}

func TestLoadFallsBackToRESTWhenPushConnected(t *testing.T) {
	s := testStore(t)
	s.SetPushConnected(true)
	src := &fakeSource{contactsErr: errors.New("feed down"), messagesErr: errors.New("feed down")}
	fb := &fakeFallback{
		contacts: []model.Contact{{PhoneNumber: "15550001111", AccountID: "acc-a"}},
		messages: map[string][]model.Message{
			"15550001111": {msgAt("m1", 1)},
		},
	}
	New(snapshotConfig(), src, fb, s, nil).Load(context.Background(), "acc-a")

	if got := len(s.Contacts()); got != 1 {
		t.Fatalf("got %d contacts, want 1 via fallback", got)
	}
	if got := len(s.Messages("15550001111")); got != 1 {
		t.Fatalf("got %d messages, want 1 via fallback", got)
	}
}

func TestFallbackMessagesBounded(t *testing.T) {
	s := testStore(t)
	s.SetPushConnected(true)
	src := &fakeSource{
		contacts:    []model.Contact{{PhoneNumber: "15550001111", AccountID: "acc-a"}},
		messagesErr: errors.New("feed down"),
	}
	var history []model.Message
	for i := 0; i < 8; i++ {
		history = append(history, msgAt(fmt.Sprintf("m%d", i), i))
	}
	fb := &fakeFallback{messages: map[string][]model.Message{"15550001111": history}}

	New(config.Snapshot{ContactCap: 10, MessageCap: 5}, src, fb, s, nil).Load(context.Background(), "acc-a")

	msgs := s.Messages("15550001111")
	if len(msgs) != 5 {
		t.Fatalf("got %d messages, want 5", len(msgs))
	}
	if msgs[0].ID.Durable != "m3" || msgs[4].ID.Durable != "m7" {
		t.Errorf("kept %s..%s, want the most recent m3..m7", msgs[0].ID.Durable, msgs[4].ID.Durable)
	}
}

func TestLoadDegradesToEmptyWhenEverythingFails(t *testing.T) {
	s := testStore(t)
	src := &fakeSource{contactsErr: errors.New("feed down")}
	fb := &fakeFallback{err: errors.New("api down")}

	// Push socket down: the fallback must not even be consulted.
	New(snapshotConfig(), src, fb, s, nil).Load(context.Background(), "acc-a")
	if fb.calls != 0 {
		t.Errorf("fallback consulted while push disconnected")
	}
	if got := len(s.Contacts()); got != 0 {
		t.Fatalf("got %d contacts, want 0", got)
	}

	s.SetPushConnected(true)
	New(snapshotConfig(), src, fb, s, nil).Load(context.Background(), "acc-a")
	if fb.calls == 0 {
		t.Error("fallback not consulted while push connected")
	}
	if got := len(s.Contacts()); got != 0 {
		t.Fatalf("got %d contacts, want 0 after total failure", got)
	}
}
