// Package loader seeds the store with a bounded conversation snapshot
// when an account becomes current. Loads run concurrently with live
// ingestion; the store's seeding primitives resolve the races.
package loader

import (
	"context"

	"github.com/psousa/waconsole/internal/config"
	"github.com/psousa/waconsole/internal/model"
	"github.com/psousa/waconsole/internal/phone"
	"github.com/psousa/waconsole/internal/store"
	"go.uber.org/zap"
)

// Source is the primary snapshot source, the feed backend's row query
// surface.
type Source interface {
	QueryContacts(ctx context.Context, accountID string) ([]model.Contact, error)
	QueryMessages(ctx context.Context, accountID, phoneNumber string, limit int) ([]model.Message, error)
}

// Fallback is the console REST API, used when the primary source is
// unreachable and the push socket says the backend itself is up.
type Fallback interface {
	Contacts(ctx context.Context, accountID string) ([]model.Contact, error)
	Messages(ctx context.Context, accountID, phoneNumber string) ([]model.Message, error)
}

// Loader performs bulk loads.
type Loader struct {
	snapshot config.Snapshot
	source   Source
	fallback Fallback
	store    *store.Store
	logger   *zap.Logger
}

// New creates a loader. fallback may be nil to disable REST fallback.
func New(snapshot config.Snapshot, source Source, fallback Fallback, st *store.Store, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		snapshot: snapshot,
		source:   source,
		fallback: fallback,
		store:    st,
		logger:   logger,
	}
}

// Load seeds the store with accountID's most recently active
// conversations. Failures degrade to an empty state and are never
// returned: live channels keep the console usable without a snapshot.
func (l *Loader) Load(ctx context.Context, accountID string) {
	contacts, err := l.source.QueryContacts(ctx, accountID)
	if err != nil {
		l.logger.Warn("snapshot contact query failed", zap.String("account", accountID), zap.Error(err))
		contacts = l.fallbackContacts(ctx, accountID)
	}
	if !l.store.SeedContacts(accountID, contacts) {
		// Account switched while we were fetching; every remaining row
		// belongs to a dead epoch.
		l.logger.Info("snapshot discarded, account no longer current", zap.String("account", accountID))
		return
	}

	// Every contact is listed; only the most recently active ones get
	// their conversations prefetched.
	prefetch := contacts
	if limit := l.snapshot.ContactCap; limit > 0 && len(prefetch) > limit {
		prefetch = prefetch[:limit]
	}
	for _, c := range prefetch {
		key := phone.Normalize(c.PhoneNumber)
		if key == "" {
			continue
		}
		if !l.loadConversation(ctx, accountID, key, c.PhoneNumber) {
			return
		}
	}
	l.logger.Info("snapshot loaded",
		zap.String("account", accountID),
		zap.Int("contacts", len(contacts)))
}

// loadConversation seeds one conversation. The mutation counter is read
// before the fetch so the store can tell whether live ingestion moved
// the conversation underneath us. Returns false when the account is no
// longer current.
func (l *Loader) loadConversation(ctx context.Context, accountID, key, phoneNumber string) bool {
	since := l.store.MutationCount(key)
	msgs, err := l.source.QueryMessages(ctx, accountID, phoneNumber, l.snapshot.MessageCap)
	if err != nil {
		l.logger.Warn("snapshot message query failed",
			zap.String("account", accountID),
			zap.String("key", key),
			zap.Error(err))
		msgs = l.fallbackMessages(ctx, accountID, phoneNumber)
		if msgs == nil {
			return true
		}
	}
	return l.store.SeedMessages(accountID, key, msgs, since)
}

func (l *Loader) fallbackContacts(ctx context.Context, accountID string) []model.Contact {
	if l.fallback == nil || !l.store.PushConnected() {
		return nil
	}
	contacts, err := l.fallback.Contacts(ctx, accountID)
	if err != nil {
		l.logger.Warn("fallback contact fetch failed", zap.String("account", accountID), zap.Error(err))
		return nil
	}
	return contacts
}

func (l *Loader) fallbackMessages(ctx context.Context, accountID, phoneNumber string) []model.Message {
	if l.fallback == nil || !l.store.PushConnected() {
		return nil
	}
	msgs, err := l.fallback.Messages(ctx, accountID, phoneNumber)
	if err != nil {
		l.logger.Warn("fallback message fetch failed", zap.String("account", accountID), zap.Error(err))
		return nil
	}
	// The console API has no limit parameter; keep only the most recent
	// entries so a degraded load stays bounded like a primary one.
	if limit := l.snapshot.MessageCap; limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs
}
