package feed

import (
	"encoding/json"
	"fmt"

	"github.com/psousa/waconsole/internal/model"
)

// Table names carried on change-feed frames.
const (
	tableMessages = "messages"
	tableContacts = "contacts"
	tableChats    = "chats"
)

// frame is the envelope for one row-level change notification.
type frame struct {
	Table  string          `json:"table"`
	Type   string          `json:"type"` // INSERT or UPDATE
	Record json.RawMessage `json:"record"`
}

// messageRow is an insert on the messages table.
type messageRow struct {
	ID          string          `json:"id"`
	MessageID   string          `json:"message_id,omitempty"`
	PhoneNumber string          `json:"phone_number"`
	Text        string          `json:"text"`
	SenderType  model.Direction `json:"sender_type"`
	Timestamp   string          `json:"timestamp"`
	AccountID   string          `json:"account_id"`
}

// contactRow is an insert/update on the contacts table.
type contactRow struct {
	PhoneNumber     string `json:"phone_number"`
	DisplayName     string `json:"display_name,omitempty"`
	LastMessage     string `json:"last_message,omitempty"`
	LastMessageTime string `json:"last_message_time,omitempty"`
	LastMessageType string `json:"last_message_type,omitempty"`
	MessageCount    int    `json:"message_count"`
	AccountID       string `json:"account_id"`
}

// ChatMetadata is an insert/update on the chat-metadata table. Only
// the unread count is consumed; this feed is the authoritative source
// for it.
type ChatMetadata struct {
	ContactPhoneNumber string `json:"contact_phone_number"`
	UnreadCount        int    `json:"unread_count"`
	AccountID          string `json:"account_id"`
}

// MessageInserted adapts a raw messages-table row into the internal
// message shape. Timestamp validity is the sync engine's call; this
// only rejects rows that are structurally unusable.
func MessageInserted(record json.RawMessage) (model.Message, error) {
	var row messageRow
	if err := json.Unmarshal(record, &row); err != nil {
		return model.Message{}, fmt.Errorf("message row: %w", err)
	}
	return row.toModel()
}

func (row messageRow) toModel() (model.Message, error) {
	if row.PhoneNumber == "" {
		return model.Message{}, fmt.Errorf("message row: missing phone_number")
	}
	switch row.SenderType {
	case model.DirectionIncoming, model.DirectionOutgoing:
	default:
		return model.Message{}, fmt.Errorf("message row: unknown sender_type %q", row.SenderType)
	}
	id := model.MessageID{Durable: row.MessageID}
	if id.Durable == "" {
		id.Durable = row.ID
	}
	return model.Message{
		ID:          id,
		PhoneNumber: row.PhoneNumber,
		Text:        row.Text,
		Direction:   row.SenderType,
		Timestamp:   row.Timestamp,
		AccountID:   row.AccountID,
	}, nil
}

// ContactChanged adapts a raw contacts-table row.
func ContactChanged(record json.RawMessage) (model.Contact, error) {
	var row contactRow
	if err := json.Unmarshal(record, &row); err != nil {
		return model.Contact{}, fmt.Errorf("contact row: %w", err)
	}
	if row.PhoneNumber == "" {
		return model.Contact{}, fmt.Errorf("contact row: missing phone_number")
	}
	return model.Contact{
		PhoneNumber:     row.PhoneNumber,
		DisplayName:     row.DisplayName,
		LastMessage:     row.LastMessage,
		LastMessageTime: row.LastMessageTime,
		LastMessageType: row.LastMessageType,
		MessageCount:    row.MessageCount,
		AccountID:       row.AccountID,
	}, nil
}

// ChatMetadataChanged adapts a raw chat-metadata row.
func ChatMetadataChanged(record json.RawMessage) (ChatMetadata, error) {
	var row ChatMetadata
	if err := json.Unmarshal(record, &row); err != nil {
		return ChatMetadata{}, fmt.Errorf("chat row: %w", err)
	}
	if row.ContactPhoneNumber == "" {
		return ChatMetadata{}, fmt.Errorf("chat row: missing contact_phone_number")
	}
	return row, nil
}
