package store

import (
	"github.com/psousa/waconsole/internal/bus"
	"github.com/psousa/waconsole/internal/model"
	"github.com/psousa/waconsole/internal/phone"
	intsync "github.com/psousa/waconsole/internal/sync"
	"go.uber.org/zap"
)

// MessageUpsert is the bus payload for message mutations.
type MessageUpsert struct {
	Key     string
	ID      string
	Outcome intsync.Outcome
}

// AddMessage is the incremental-ingestion entry point. It delegates
// membership and ordering to the dedup/merge engine and applies its
// decision. Messages tagged with a non-current account are discarded
// with zero state effect; malformed messages are rejected with an error
// and the conversation is left untouched. An inserted incoming message
// additionally enqueues a notification.
func (s *Store) AddMessage(key string, msg model.Message) (intsync.Outcome, error) {
	s.mu.Lock()
	if !s.currentAllows(msg.AccountID) {
		s.mu.Unlock()
		return intsync.OutcomeDiscarded, nil
	}
	list, outcome, err := intsync.Apply(s.messages[key], msg)
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("message rejected",
			zap.String("key", key),
			zap.String("id", msg.ID.Key()),
			zap.Error(err))
		return outcome, err
	}
	s.messages[key] = list
	s.counters[key]++
	senderName := s.displayNameLocked(key)
	s.mu.Unlock()

	s.publish(bus.KindMessageUpserted, MessageUpsert{Key: key, ID: msg.ID.Key(), Outcome: outcome})

	if outcome == intsync.OutcomeInserted && msg.Direction == model.DirectionIncoming {
		s.AddNotification(model.NotifyInfo, "New Message",
			"From "+senderName+": "+truncate(msg.Text, 50))
	}
	return outcome, nil
}

// SetMessages replaces the full message list for a conversation key.
// Used after a bulk load; the caller must pre-sort by timestamp
// ascending. This is a replace, not a merge: the snapshot is
// authoritative for its window.
func (s *Store) SetMessages(key string, msgs []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[key] = append([]model.Message(nil), msgs...)
}

// SeedMessages applies a bulk-load result that may have raced with
// incremental events. The load is tagged with its target account and
// the conversation's mutation counter from when it started: a stale
// account discards the whole result, and a moved counter downgrades the
// replace to a per-message merge so newer incremental events survive.
func (s *Store) SeedMessages(accountID, key string, msgs []model.Message, since uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentAllows(accountID) {
		return false
	}
	if s.counters[key] == since {
		s.messages[key] = append([]model.Message(nil), msgs...)
		return true
	}
	for _, m := range msgs {
		list, _, err := intsync.Apply(s.messages[key], m)
		if err != nil {
			s.logger.Warn("snapshot message rejected", zap.String("key", key), zap.Error(err))
			continue
		}
		s.messages[key] = list
	}
	return true
}

// RemoveMessage drops the message whose identity equals id (a failed
// optimistic send).
func (s *Store) RemoveMessage(key, id string) bool {
	s.mu.Lock()
	list := s.messages[key]
	at := -1
	for i, m := range list {
		if m.ID.Key() == id || (m.ID.Local != "" && m.ID.Local == id) {
			at = i
			break
		}
	}
	if at < 0 {
		s.mu.Unlock()
		return false
	}
	s.messages[key] = append(list[:at:at], list[at+1:]...)
	s.counters[key]++
	s.mu.Unlock()

	s.publish(bus.KindMessageUpserted, MessageUpsert{Key: key, ID: id, Outcome: intsync.OutcomeDiscarded})
	return true
}

// ClearMessages removes a conversation's message list entirely.
func (s *Store) ClearMessages(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, key)
	s.counters[key]++
}

// Messages returns a copy of a conversation's ordered message list.
func (s *Store) Messages(key string) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Message(nil), s.messages[key]...)
}

// MutationCount returns the conversation's mutation counter. Bulk loads
// capture it before fetching to detect races on completion.
func (s *Store) MutationCount(key string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[key]
}

// displayNameLocked resolves the human-readable name for a conversation
// key: contact display name, falling back to a masked number.
func (s *Store) displayNameLocked(key string) string {
	if c, ok := s.contacts[key]; ok && c.DisplayName != "" {
		return c.DisplayName
	}
	return phone.Mask(key)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
