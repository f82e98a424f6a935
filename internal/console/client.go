// Package console composes the store, the two ingestion channels, the
// bulk loader, and the outbox into one client surface.
package console

import (
	"context"
	gosync "sync"

	"github.com/psousa/waconsole/internal/bus"
	"github.com/psousa/waconsole/internal/feed"
	"github.com/psousa/waconsole/internal/loader"
	"github.com/psousa/waconsole/internal/model"
	"github.com/psousa/waconsole/internal/outbox"
	"github.com/psousa/waconsole/internal/push"
	"github.com/psousa/waconsole/internal/rest"
	"github.com/psousa/waconsole/internal/status"
	"github.com/psousa/waconsole/internal/store"
	"go.uber.org/zap"
)

// feedSource is the slice of the feed client the console drives.
type feedSource interface {
	Subscribe(ctx context.Context, accountID string) (*feed.Subscription, error)
}

// accountSource lists the available accounts. *rest.Client satisfies it.
type accountSource interface {
	Accounts(ctx context.Context) ([]model.Account, error)
}

// Client is the console facade.
type Client struct {
	store    *store.Store
	bus      *bus.Bus
	push     *push.Manager
	feed     feedSource
	loader   *loader.Loader
	outbox   *outbox.Sender
	accounts accountSource
	logger   *zap.Logger

	mu  gosync.Mutex
	sub *feed.Subscription
}

// NewClient assembles the console facade.
func NewClient(st *store.Store, b *bus.Bus, pm *push.Manager, fc feedSource, ld *loader.Loader, ob *outbox.Sender, accounts accountSource, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		store:    st,
		bus:      b,
		push:     pm,
		feed:     fc,
		loader:   ld,
		outbox:   ob,
		accounts: accounts,
		logger:   logger,
	}
}

// Start connects the push socket, loads the account list, and activates
// the first account. Account list failures are not fatal: the console
// stays up and the user retries with a manual switch.
func (c *Client) Start(ctx context.Context) {
	c.push.Connect()

	accounts, err := c.accounts.Accounts(ctx)
	if err != nil {
		c.logger.Warn("account list fetch failed", zap.Error(err))
		return
	}
	c.store.SetAccounts(accounts)
	if len(accounts) == 0 {
		c.logger.Info("no accounts configured")
		return
	}
	if err := c.SwitchAccount(ctx, accounts[0].ID); err != nil {
		c.logger.Warn("initial account activation failed",
			zap.String("account", accounts[0].ID),
			zap.Error(err))
	}
}

// SwitchAccount makes accountID current: conversation state is cleared
// immediately, the old feed subscription is torn down before the new
// one starts, and a snapshot load runs in the background.
func (c *Client) SwitchAccount(ctx context.Context, accountID string) error {
	if err := c.store.SwitchAccount(accountID); err != nil {
		return err
	}

	c.mu.Lock()
	old := c.sub
	c.sub = nil
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}

	sub, err := c.feed.Subscribe(ctx, accountID)
	if err != nil {
		// Degraded but usable: push events still flow, so the switch
		// itself stands.
		c.logger.Warn("feed subscription failed", zap.String("account", accountID), zap.Error(err))
	} else {
		c.mu.Lock()
		c.sub = sub
		c.mu.Unlock()
	}

	go c.loader.Load(context.Background(), accountID)
	return nil
}

// Send delivers text to phoneNumber from the current account.
func (c *Client) Send(ctx context.Context, phoneNumber, text string) (string, error) {
	return c.outbox.Send(ctx, phoneNumber, text)
}

// Reconnect manually restarts the push connection cycle.
func (c *Client) Reconnect() {
	c.push.Reconnect()
}

// ConnectionStatus returns the push channel state.
func (c *Client) ConnectionStatus() status.State {
	return c.push.Status()
}

// Events subscribes to the event stream for the given kind prefix.
func (c *Client) Events(prefix string, buf int) (<-chan bus.Event, func()) {
	return c.bus.Subscribe(prefix, buf)
}

// Store exposes the underlying read surface.
func (c *Client) Store() *store.Store {
	return c.store
}

// Stop tears down the feed subscription and the push supervisor.
func (c *Client) Stop() {
	c.mu.Lock()
	old := c.sub
	c.sub = nil
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
	c.push.Stop()
}

var _ feedSource = (*feed.Client)(nil)
var _ accountSource = (*rest.Client)(nil)
