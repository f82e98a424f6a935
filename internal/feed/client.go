// Package feed is Channel B: a per-account subscription to row-level
// insert/update notifications on the backend data tables, adapted into
// the store's shapes. Subscriptions are scoped to the current account
// and torn down before a new one is established; every row still goes
// through the normalizer and the dedup/merge engine, because the feed
// is not ordered relative to the push socket.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	gosync "sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/psousa/waconsole/internal/bus"
	"github.com/psousa/waconsole/internal/config"
	"github.com/psousa/waconsole/internal/phone"
	"github.com/psousa/waconsole/internal/store"
	"go.uber.org/zap"
)

// Conn is the minimal websocket surface the feed consumes.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens feed connections. Tests substitute in-memory fakes.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Client manages change-feed subscriptions.
type Client struct {
	cfg    config.Feed
	store  *store.Store
	bus    *bus.Bus
	logger *zap.Logger
	dialer Dialer
}

// New creates a feed client using the real websocket dialer.
func New(cfg config.Feed, st *store.Store, b *bus.Bus, logger *zap.Logger) *Client {
	return NewWithDialer(cfg, st, b, logger, wsDialer{key: cfg.Key})
}

// NewWithDialer creates a feed client with a custom dialer.
func NewWithDialer(cfg config.Feed, st *store.Store, b *bus.Bus, logger *zap.Logger, d Dialer) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		store:  st,
		bus:    b,
		logger: logger,
		dialer: d,
	}
}

// subscribeFrame asks the backend to stream one table's changes for one
// account; filtering happens server-side.
type subscribeFrame struct {
	Action    string `json:"action"`
	Table     string `json:"table"`
	AccountID string `json:"account_id"`
}

// Subscription is one live per-account feed. Close must complete before
// a subscription for another account is established.
type Subscription struct {
	accountID string
	conn      Conn
	done      chan struct{}
	once      gosync.Once
	client    *Client
}

// AccountID returns the account this subscription is scoped to.
func (s *Subscription) AccountID() string { return s.accountID }

// Close tears the subscription down and waits for its read loop to
// exit, so no event can be delivered after it returns.
func (s *Subscription) Close() {
	s.once.Do(func() {
		_ = s.conn.Close()
		<-s.done
		s.client.store.SetFeedActive(false)
		s.client.publish(bus.KindFeedUnsubscribed, s.accountID)
		s.client.logger.Info("change feed unsubscribed", zap.String("account_id", s.accountID))
	})
}

// Subscribe establishes the change feed for one account: messages,
// contacts, and chat-metadata tables.
func (c *Client) Subscribe(ctx context.Context, accountID string) (*Subscription, error) {
	conn, err := c.dialer.Dial(ctx, c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial feed: %w", err)
	}

	for _, table := range []string{tableMessages, tableContacts, tableChats} {
		data, err := json.Marshal(subscribeFrame{Action: "subscribe", Table: table, AccountID: accountID})
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		if err := conn.WriteMessage(data); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("subscribe %s: %w", table, err)
		}
	}

	sub := &Subscription{
		accountID: accountID,
		conn:      conn,
		done:      make(chan struct{}),
		client:    c,
	}
	go c.readLoop(sub)

	c.store.SetFeedActive(true)
	c.publish(bus.KindFeedSubscribed, accountID)
	c.logger.Info("change feed subscribed", zap.String("account_id", accountID))
	return sub, nil
}

func (c *Client) readLoop(sub *Subscription) {
	defer close(sub.done)
	for {
		data, err := sub.conn.ReadMessage()
		if err != nil {
			return
		}
		c.handleFrame(sub.accountID, data)
	}
}

// handleFrame applies one row notification. A malformed row is dropped
// with a diagnostic; the rest of the store is unaffected.
func (c *Client) handleFrame(accountID string, data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		c.logger.Warn("dropping malformed feed frame", zap.Error(err))
		return
	}

	switch f.Table {
	case tableMessages:
		msg, err := MessageInserted(f.Record)
		if err != nil {
			c.logger.Warn("dropping feed row", zap.Error(err))
			return
		}
		if msg.AccountID != "" && msg.AccountID != accountID {
			// Server-side filtering should prevent this; discard anyway.
			return
		}
		key := phone.Normalize(msg.PhoneNumber)
		if _, err := c.store.AddMessage(key, msg); err != nil {
			c.logger.Warn("feed message rejected", zap.String("key", key), zap.Error(err))
		}

	case tableContacts:
		contact, err := ContactChanged(f.Record)
		if err != nil {
			c.logger.Warn("dropping feed row", zap.Error(err))
			return
		}
		if contact.AccountID != "" && contact.AccountID != accountID {
			return
		}
		c.store.AddOrUpdateContact(contact)

	case tableChats:
		meta, err := ChatMetadataChanged(f.Record)
		if err != nil {
			c.logger.Warn("dropping feed row", zap.Error(err))
			return
		}
		if meta.AccountID != "" && meta.AccountID != accountID {
			return
		}
		c.store.SetUnreadCount(meta.ContactPhoneNumber, meta.UnreadCount, meta.AccountID)

	default:
		c.logger.Debug("ignoring feed frame", zap.String("table", f.Table))
	}
}

func (c *Client) publish(kind bus.Kind, payload any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

// wsDialer is the production dialer over gorilla/websocket.
type wsDialer struct {
	key string
}

func (d wsDialer) Dial(ctx context.Context, url string) (Conn, error) {
	header := make(map[string][]string)
	if d.key != "" {
		header["Authorization"] = []string{"Bearer " + d.key}
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, err
	}
	return wsConn{conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c wsConn) WriteMessage(data []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c wsConn) Close() error {
	return c.conn.Close()
}
