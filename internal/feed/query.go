package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/psousa/waconsole/internal/config"
	"github.com/psousa/waconsole/internal/model"
)

// Query reads row snapshots from the feed backend's REST surface. It is
// the bulk loader's primary source; the console REST API is the
// fallback.
type Query struct {
	cfg  config.Feed
	http *http.Client
}

// NewQuery creates a snapshot query client.
func NewQuery(cfg config.Feed) *Query {
	return &Query{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// QueryContacts returns an account's contacts ordered most recently
// active first.
func (q *Query) QueryContacts(ctx context.Context, accountID string) ([]model.Contact, error) {
	params := url.Values{}
	params.Set("account_id", accountID)
	params.Set("order", "last_message_time.desc")

	var rows []contactRow
	if err := q.get(ctx, "/contacts", params, &rows); err != nil {
		return nil, err
	}
	out := make([]model.Contact, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.Contact{
			PhoneNumber:     row.PhoneNumber,
			DisplayName:     row.DisplayName,
			LastMessage:     row.LastMessage,
			LastMessageTime: row.LastMessageTime,
			LastMessageType: row.LastMessageType,
			MessageCount:    row.MessageCount,
			AccountID:       row.AccountID,
		})
	}
	return out, nil
}

// QueryMessages returns up to limit most recent messages for one
// conversation, oldest first.
func (q *Query) QueryMessages(ctx context.Context, accountID, phoneNumber string, limit int) ([]model.Message, error) {
	params := url.Values{}
	params.Set("account_id", accountID)
	params.Set("phone_number", phoneNumber)
	params.Set("order", "timestamp.asc")
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var rows []messageRow
	if err := q.get(ctx, "/messages", params, &rows); err != nil {
		return nil, err
	}
	out := make([]model.Message, 0, len(rows))
	for _, row := range rows {
		msg, err := row.toModel()
		if err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (q *Query) get(ctx context.Context, path string, params url.Values, out any) error {
	u := q.cfg.RestURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if q.cfg.Key != "" {
		req.Header.Set("Authorization", "Bearer "+q.cfg.Key)
	}

	resp, err := q.http.Do(req)
	if err != nil {
		return fmt.Errorf("feed query: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("feed query %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	return nil
}
