package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/psousa/waconsole/internal/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.API{BaseURL: srv.URL, Token: "tok", TimeoutSeconds: 5})
}

func TestAccounts(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/accounts" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		_, _ = w.Write([]byte(`{"status":"success","accounts":[{"id":"acc-1","name":"Main","status":"active"}]}`))
	})

	accounts, err := c.Accounts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 1 || accounts[0].ID != "acc-1" {
		t.Errorf("accounts = %+v", accounts)
	}
}

func TestContactsQuery(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("account_id"); got != "acc-1" {
			t.Errorf("account_id = %q", got)
		}
		_, _ = w.Write([]byte(`{"status":"success","contacts":[{"phone_number":"2348000000000","message_count":3}]}`))
	})

	contacts, err := c.Contacts(context.Background(), "acc-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 1 || contacts[0].MessageCount != 3 {
		t.Errorf("contacts = %+v", contacts)
	}
}

func TestMessagesMapsWireIDs(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","messages":[
			{"id":"row-1","message_id":"wamid.1","phone_number":"234","text":"a","sender_type":"incoming","timestamp":"2026-08-01T12:00:00Z"},
			{"id":"row-2","phone_number":"234","text":"b","sender_type":"outgoing","timestamp":"2026-08-01T12:00:01Z"}
		]}`))
	})

	msgs, err := c.Messages(context.Background(), "acc-1", "234")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages", len(msgs))
	}
	// The provider message id wins; the row id is the fallback.
	if msgs[0].ID.Durable != "wamid.1" {
		t.Errorf("msgs[0].ID = %+v, want wamid.1", msgs[0].ID)
	}
	if msgs[1].ID.Durable != "row-2" {
		t.Errorf("msgs[1].ID = %+v, want row-2", msgs[1].ID)
	}
}

func TestSend(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/send" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status":"success","message_id":"wamid.9"}`))
	})

	resp, err := c.Send(context.Background(), SendRequest{To: "234", Message: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.MessageID != "wamid.9" {
		t.Errorf("message id = %q", resp.MessageID)
	}
}

func TestSendBackendError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":"invalid recipient"}`))
	})

	if _, err := c.Send(context.Background(), SendRequest{To: "x", Message: "hi"}); err == nil {
		t.Error("expected error for backend status=error")
	}
}

func TestHTTPError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	if _, err := c.Accounts(context.Background()); err == nil {
		t.Error("expected error for HTTP 502")
	}
}
