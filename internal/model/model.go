// Package model defines the data types shared by the store, the sync
// engine, and the ingestion channels.
package model

import "time"

// Direction indicates whether a message was sent by the business or by
// the counterparty.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// MessageID identifies a message either by a backend-assigned durable id
// or by a locally generated temporary id while a send is in flight. At
// least one of the two is set; a confirmed message may carry both, the
// local id acting as the marker that links it back to its optimistic
// placeholder.
type MessageID struct {
	Durable string `json:"durable,omitempty"`
	Local   string `json:"local,omitempty"`
}

// Confirmed reports whether the backend has assigned a durable id.
func (id MessageID) Confirmed() bool { return id.Durable != "" }

// Key returns the identity used for dedup: the durable id when present,
// the local id otherwise.
func (id MessageID) Key() string {
	if id.Durable != "" {
		return id.Durable
	}
	return id.Local
}

// IsZero reports whether the id carries no identity at all.
func (id MessageID) IsZero() bool { return id.Durable == "" && id.Local == "" }

// Account is one connected business messaging identity.
type Account struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Token             string `json:"token"`
	PhoneNumberID     string `json:"phone_number_id"`
	BusinessAccountID string `json:"business_account_id"`
	Status            string `json:"status"` // "active" or "inactive"
}

// Contact is a counterparty phone number within one account.
type Contact struct {
	PhoneNumber     string `json:"phone_number"` // raw, as delivered
	DisplayName     string `json:"display_name,omitempty"`
	LastMessage     string `json:"last_message,omitempty"`
	LastMessageTime string `json:"last_message_time,omitempty"`
	LastMessageType string `json:"last_message_type,omitempty"`
	MessageCount    int    `json:"message_count"`
	UnreadCount     int    `json:"unread_count"`
	AccountID       string `json:"account_id,omitempty"`
}

// Message is one unit of conversation content. Timestamp is an RFC 3339
// instant as delivered by the backend; the sync engine validates it
// before the message is admitted into a conversation list.
type Message struct {
	ID          MessageID `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	Text        string    `json:"text"`
	Direction   Direction `json:"sender_type"`
	Timestamp   string    `json:"timestamp"`
	AccountID   string    `json:"account_id,omitempty"`
}

// Time parses the message timestamp. The zero time is returned for an
// unparseable value; callers that must reject malformed timestamps parse
// explicitly instead.
func (m Message) Time() time.Time {
	t, err := time.Parse(time.RFC3339, m.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// NotificationType classifies user-facing notifications.
type NotificationType string

const (
	NotifyInfo    NotificationType = "info"
	NotifySuccess NotificationType = "success"
	NotifyWarning NotificationType = "warning"
	NotifyError   NotificationType = "error"
)

// Notification is an ephemeral user-facing event record produced as a
// side effect of ingestion. Not part of conversation correctness.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Read      bool             `json:"read"`
}

// SystemStatus is the advisory backend health record pushed over the
// socket. Display-only.
type SystemStatus struct {
	Online         bool   `json:"online"`
	RedisConnected bool   `json:"redis_connected"`
	WebhookStatus  string `json:"webhook_status"`
	LastUpdated    string `json:"last_updated"`
}
