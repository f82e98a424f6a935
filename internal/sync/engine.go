// Package sync implements the dedup/merge engine: the pure decision
// logic that reconciles one candidate inbound message against one
// conversation's existing list. Two independent channels (push socket
// and change feed) may both deliver the same backend event, in any
// order; identity-based de-duplication here is what keeps the list
// consistent regardless of arrival order.
package sync

import (
	"errors"
	"time"

	"github.com/psousa/waconsole/internal/model"
)

// Outcome describes what Apply decided to do with an incoming message.
type Outcome int

const (
	// OutcomeInserted means the message was new and inserted in
	// timestamp order.
	OutcomeInserted Outcome = iota
	// OutcomeReplaced means an existing entry with the same identity
	// (or the optimistic placeholder it confirms) was updated in place.
	OutcomeReplaced
	// OutcomeDuplicate means an identical entry already existed; the
	// list is unchanged.
	OutcomeDuplicate
	// OutcomeDiscarded means the message was filtered before reaching
	// the engine (account mismatch). Produced by the store, not Apply.
	OutcomeDiscarded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeReplaced:
		return "replaced"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeDiscarded:
		return "discarded"
	}
	return "unknown"
}

var (
	// ErrNoIdentity rejects a message that carries neither a durable
	// nor a temporary id.
	ErrNoIdentity = errors.New("message carries no identity")
	// ErrBadTimestamp rejects a message whose timestamp cannot be
	// parsed. The engine fails closed rather than corrupt ordering.
	ErrBadTimestamp = errors.New("unparseable message timestamp")
)

// Apply reconciles incoming against existing and returns the merged,
// time-ordered list. existing is never mutated; on error it is returned
// unchanged. Invariants on the result: entries are unique by identity
// and non-decreasing by timestamp; a replaced entry keeps its position.
func Apply(existing []model.Message, incoming model.Message) ([]model.Message, Outcome, error) {
	if incoming.ID.IsZero() {
		return existing, OutcomeDiscarded, ErrNoIdentity
	}
	ts, err := time.Parse(time.RFC3339, incoming.Timestamp)
	if err != nil {
		return existing, OutcomeDiscarded, ErrBadTimestamp
	}

	durableAt := -1
	localAt := -1
	for i, m := range existing {
		if incoming.ID.Durable != "" && m.ID.Durable == incoming.ID.Durable {
			durableAt = i
		}
		if incoming.ID.Local != "" && m.ID.Local == incoming.ID.Local {
			localAt = i
		}
	}

	switch {
	case durableAt >= 0:
		merged := mergeMessage(existing[durableAt], incoming, ts)
		if merged == existing[durableAt] && (localAt < 0 || localAt == durableAt) {
			return existing, OutcomeDuplicate, nil
		}
		result := make([]model.Message, 0, len(existing))
		result = append(result, existing...)
		result[durableAt] = merged
		if localAt >= 0 && localAt != durableAt {
			// The same logical message exists both confirmed and as an
			// optimistic placeholder; keep the confirmed copy only.
			result = append(result[:localAt], result[localAt+1:]...)
		}
		return result, OutcomeReplaced, nil

	case localAt >= 0:
		// Confirmation of a prior optimistic entry: replace in place.
		merged := mergeMessage(existing[localAt], incoming, ts)
		if merged == existing[localAt] {
			return existing, OutcomeDuplicate, nil
		}
		result := make([]model.Message, len(existing))
		copy(result, existing)
		result[localAt] = merged
		return result, OutcomeReplaced, nil
	}

	// New entry: insert keeping timestamps non-decreasing. Equal
	// timestamps append at the end of the equal run (stable).
	at := len(existing)
	for at > 0 && existing[at-1].Time().After(ts) {
		at--
	}
	result := make([]model.Message, 0, len(existing)+1)
	result = append(result, existing[:at]...)
	result = append(result, incoming)
	result = append(result, existing[at:]...)
	return result, OutcomeInserted, nil
}

// mergeMessage overlays incoming on old for an in-place replacement.
// The durable id wins over the temporary id, and the original
// optimistic timestamp is preserved unless incoming is strictly newer.
func mergeMessage(old, incoming model.Message, incomingTS time.Time) model.Message {
	out := old
	if incoming.ID.Durable != "" {
		out.ID.Durable = incoming.ID.Durable
	}
	if incoming.ID.Local != "" && out.ID.Local == "" {
		out.ID.Local = incoming.ID.Local
	}
	if incoming.Text != "" {
		out.Text = incoming.Text
	}
	if incoming.Direction != "" {
		out.Direction = incoming.Direction
	}
	if incoming.AccountID != "" {
		out.AccountID = incoming.AccountID
	}
	if incoming.PhoneNumber != "" {
		out.PhoneNumber = incoming.PhoneNumber
	}
	if incomingTS.After(old.Time()) {
		out.Timestamp = incoming.Timestamp
	}
	return out
}

// MergeContact shallow-merges update over existing: provided (non-zero)
// fields overwrite, omitted fields are preserved. UnreadCount is
// deliberately excluded; only the chat-metadata feed writes it, via
// Store.SetUnreadCount, so incoming messages never double count.
func MergeContact(existing, update model.Contact) model.Contact {
	out := existing
	if update.PhoneNumber != "" {
		out.PhoneNumber = update.PhoneNumber
	}
	if update.DisplayName != "" {
		out.DisplayName = update.DisplayName
	}
	if update.LastMessage != "" {
		out.LastMessage = update.LastMessage
	}
	if update.LastMessageTime != "" {
		out.LastMessageTime = update.LastMessageTime
	}
	if update.LastMessageType != "" {
		out.LastMessageType = update.LastMessageType
	}
	if update.MessageCount > 0 {
		out.MessageCount = update.MessageCount
	}
	if update.AccountID != "" {
		out.AccountID = update.AccountID
	}
	return out
}
