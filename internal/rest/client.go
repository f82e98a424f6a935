// Package rest is the typed client for the console backend's REST
// surface, consumed by the bulk loader's fallback path and the send
// flow.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/psousa/waconsole/internal/config"
	"github.com/psousa/waconsole/internal/model"
)

// Client talks to the console backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a REST client from config.
func New(cfg config.API) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
	}
}

// AccountsResponse is the envelope for GET /api/accounts.
type AccountsResponse struct {
	Status   string          `json:"status"`
	Accounts []model.Account `json:"accounts"`
	Message  string          `json:"message,omitempty"`
}

// ContactsResponse is the envelope for GET /api/contacts.
type ContactsResponse struct {
	Status   string          `json:"status"`
	Contacts []model.Contact `json:"contacts"`
	Message  string          `json:"message,omitempty"`
}

// MessagesResponse is the envelope for GET /api/messages/{phone}.
type MessagesResponse struct {
	Status   string        `json:"status"`
	Messages []wireMessage `json:"messages"`
	Message  string        `json:"message,omitempty"`
}

// SendRequest is the body for POST /send.
type SendRequest struct {
	To         string `json:"to"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	BusinessID string `json:"business_id,omitempty"`
	PhoneID    string `json:"phone_id,omitempty"`
}

// SendResponse is the envelope for POST /send.
type SendResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

// wireMessage is the backend's message shape: ids arrive as flat
// strings, not as the structured identity used internally.
type wireMessage struct {
	ID          string          `json:"id"`
	MessageID   string          `json:"message_id,omitempty"`
	PhoneNumber string          `json:"phone_number"`
	Text        string          `json:"text"`
	SenderType  model.Direction `json:"sender_type"`
	Timestamp   string          `json:"timestamp"`
	AccountID   string          `json:"account_id,omitempty"`
}

func (w wireMessage) toModel() model.Message {
	id := model.MessageID{Durable: w.MessageID}
	if id.Durable == "" {
		id.Durable = w.ID
	}
	return model.Message{
		ID:          id,
		PhoneNumber: w.PhoneNumber,
		Text:        w.Text,
		Direction:   w.SenderType,
		Timestamp:   w.Timestamp,
		AccountID:   w.AccountID,
	}
}

// Accounts fetches all configured accounts.
func (c *Client) Accounts(ctx context.Context) ([]model.Account, error) {
	var resp AccountsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/accounts", nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("accounts: backend status %q: %s", resp.Status, resp.Message)
	}
	return resp.Accounts, nil
}

// Contacts fetches the contact list for an account, most recently
// active first.
func (c *Client) Contacts(ctx context.Context, accountID string) ([]model.Contact, error) {
	var resp ContactsResponse
	query := map[string]string{"account_id": accountID}
	if err := c.doJSON(ctx, http.MethodGet, "/api/contacts", nil, query, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("contacts: backend status %q: %s", resp.Status, resp.Message)
	}
	return resp.Contacts, nil
}

// Messages fetches the message history for one phone number, oldest
// first.
func (c *Client) Messages(ctx context.Context, accountID, phoneNumber string) ([]model.Message, error) {
	var resp MessagesResponse
	query := map[string]string{"account_id": accountID}
	path := "/api/messages/" + url.PathEscape(phoneNumber)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, query, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("messages: backend status %q: %s", resp.Status, resp.Message)
	}
	out := make([]model.Message, 0, len(resp.Messages))
	for _, w := range resp.Messages {
		out = append(out, w.toModel())
	}
	return out, nil
}

// Send submits an outgoing message and returns the backend's durable
// message id.
func (c *Client) Send(ctx context.Context, req SendRequest) (SendResponse, error) {
	if req.Type == "" {
		req.Type = "text"
	}
	var resp SendResponse
	if err := c.doJSON(ctx, http.MethodPost, "/send", req, nil, &resp); err != nil {
		return SendResponse{}, err
	}
	if resp.Status != "success" {
		return resp, fmt.Errorf("send: backend status %q: %s", resp.Status, resp.Message)
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, query map[string]string, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		params := url.Values{}
		for k, v := range query {
			params.Set(k, v)
		}
		u += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
