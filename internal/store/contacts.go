package store

import (
	"sort"
	"time"

	"github.com/psousa/waconsole/internal/bus"
	"github.com/psousa/waconsole/internal/model"
	"github.com/psousa/waconsole/internal/phone"
	intsync "github.com/psousa/waconsole/internal/sync"
)

// SetContacts replaces the full contact list (bulk load). Message lists
// are not affected.
func (s *Store) SetContacts(contacts []model.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setContactsLocked(contacts)
}

// SeedContacts is SetContacts tagged with the bulk load's target
// account; a result arriving after an account switch is discarded.
func (s *Store) SeedContacts(accountID string, contacts []model.Contact) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentAllows(accountID) {
		return false
	}
	s.setContactsLocked(contacts)
	return true
}

func (s *Store) setContactsLocked(contacts []model.Contact) {
	s.contacts = make(map[string]model.Contact, len(contacts))
	for _, c := range contacts {
		key := phone.Normalize(c.PhoneNumber)
		if key == "" {
			continue
		}
		s.contacts[key] = c
	}
}

// AddOrUpdateContact upserts a contact by normalized phone key: absent
// inserts, present shallow-merges the provided fields over the existing
// record. Returns the resulting record. Updates tagged with a
// non-current account have no effect. Unread counts are never written
// here; the chat-metadata feed owns them (SetUnreadCount).
func (s *Store) AddOrUpdateContact(c model.Contact) (model.Contact, bool) {
	key := phone.Normalize(c.PhoneNumber)
	if key == "" {
		return model.Contact{}, false
	}
	s.mu.Lock()
	if !s.currentAllows(c.AccountID) {
		s.mu.Unlock()
		return model.Contact{}, false
	}
	merged := c
	if existing, ok := s.contacts[key]; ok {
		merged = intsync.MergeContact(existing, c)
	} else {
		merged.UnreadCount = 0
	}
	s.contacts[key] = merged
	s.mu.Unlock()

	s.publish(bus.KindContactUpserted, key)
	return merged, true
}

// SetUnreadCount writes a conversation's unread count from the
// chat-metadata feed, the single authoritative source for it. A row for
// an unknown contact creates a minimal record so the count is not lost.
func (s *Store) SetUnreadCount(phoneNumber string, unread int, accountID string) bool {
	key := phone.Normalize(phoneNumber)
	if key == "" {
		return false
	}
	s.mu.Lock()
	if !s.currentAllows(accountID) {
		s.mu.Unlock()
		return false
	}
	c, ok := s.contacts[key]
	if !ok {
		c = model.Contact{PhoneNumber: phoneNumber, AccountID: accountID}
	}
	c.UnreadCount = unread
	s.contacts[key] = c
	s.mu.Unlock()

	s.publish(bus.KindContactUpserted, key)
	return true
}

// Contact returns the contact for a normalized key.
func (s *Store) Contact(key string) (model.Contact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[key]
	return c, ok
}

// Contacts returns all contacts ordered most-recently-active first.
func (s *Store) Contacts() []model.Contact {
	s.mu.RLock()
	out := make([]model.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		out = append(out, c)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := lastActive(out[i]), lastActive(out[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return phone.Normalize(out[i].PhoneNumber) < phone.Normalize(out[j].PhoneNumber)
	})
	return out
}

// DisplayName resolves a conversation key to a human-readable name,
// falling back to a masked number when the contact has no display name.
func (s *Store) DisplayName(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.displayNameLocked(key)
}

func lastActive(c model.Contact) time.Time {
	t, err := time.Parse(time.RFC3339, c.LastMessageTime)
	if err != nil {
		return time.Time{}
	}
	return t
}
