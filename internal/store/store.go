// Package store holds the current in-memory truth for the console:
// accounts, contacts, per-conversation message lists, notifications,
// and connection status. It is the only shared mutable resource in the
// core; every mutation goes through one of its operations and no other
// component touches its internal maps. State is scoped to the client
// session; durability is the backend's job.
package store

import (
	"fmt"
	gosync "sync"
	"time"

	"github.com/psousa/waconsole/internal/bus"
	"github.com/psousa/waconsole/internal/model"
	"github.com/psousa/waconsole/internal/phone"
	"go.uber.org/zap"
)

// Store is the single source of truth for session state. All operations
// are atomic; handlers run to completion under the store lock before the
// next mutation is admitted.
type Store struct {
	mu        gosync.RWMutex
	logger    *zap.Logger
	bus       *bus.Bus
	notifyCap int

	accounts []model.Account
	current  *model.Account
	epoch    uint64

	contacts map[string]model.Contact // normalized phone key -> contact
	selected string                   // selected contact key, "" when none

	messages map[string][]model.Message // normalized phone key -> ordered list
	counters map[string]uint64          // per-conversation mutation counters

	notifications []model.Notification
	notifyUnread  int

	system           *model.SystemStatus
	pushConnected    bool
	pushReconnecting bool
	feedActive       bool
}

// New creates an empty store. notifyCap bounds the notification history
// (most recent N retained).
func New(b *bus.Bus, logger *zap.Logger, notifyCap int) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifyCap <= 0 {
		notifyCap = 50
	}
	return &Store{
		logger:    logger,
		bus:       b,
		notifyCap: notifyCap,
		contacts:  make(map[string]model.Contact),
		messages:  make(map[string][]model.Message),
		counters:  make(map[string]uint64),
	}
}

// SetAccounts replaces the account list. The current account pointer is
// re-resolved against the new list so a refresh cannot leave it dangling.
func (s *Store) SetAccounts(accounts []model.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = append([]model.Account(nil), accounts...)
	if s.current != nil {
		cur := *s.current
		s.current = nil
		for i := range s.accounts {
			if s.accounts[i].ID == cur.ID {
				s.current = &s.accounts[i]
				break
			}
		}
	}
}

// Accounts returns a copy of the account list.
func (s *Store) Accounts() []model.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Account(nil), s.accounts...)
}

// CurrentAccount returns the current account, or false when none is
// selected.
func (s *Store) CurrentAccount() (model.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return model.Account{}, false
	}
	return *s.current, true
}

// SwitchAccount sets the current account and atomically clears all
// contacts, message lists, and the selected contact. This is a hard
// boundary: once it returns, no event attributable to the previous
// account can be applied (the per-mutation account checks enforce it).
func (s *Store) SwitchAccount(accountID string) error {
	s.mu.Lock()
	var target *model.Account
	for i := range s.accounts {
		if s.accounts[i].ID == accountID {
			target = &s.accounts[i]
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		return fmt.Errorf("switch account: unknown account %q", accountID)
	}
	s.current = target
	s.contacts = make(map[string]model.Contact)
	s.messages = make(map[string][]model.Message)
	s.counters = make(map[string]uint64)
	s.selected = ""
	s.epoch++
	s.mu.Unlock()

	s.publish(bus.KindAccountSwitched, accountID)
	s.logger.Info("switched account", zap.String("account_id", accountID))
	return nil
}

// Epoch returns the account-switch generation. Bulk loads capture it to
// detect that their result went stale mid-flight.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// SetSelectedContact records which conversation the shell is viewing.
// The raw phone string is normalized here.
func (s *Store) SetSelectedContact(phoneNumber string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = phone.Normalize(phoneNumber)
}

// SelectedContact returns the selected conversation key, "" when none.
func (s *Store) SelectedContact() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// currentAllows reports whether a mutation tagged with accountID may be
// applied. Untagged mutations pass; tagged ones must match the current
// account. Caller holds the lock.
func (s *Store) currentAllows(accountID string) bool {
	if accountID == "" {
		return true
	}
	return s.current != nil && s.current.ID == accountID
}

func (s *Store) publish(kind bus.Kind, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}
