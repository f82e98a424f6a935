package push

import (
	"encoding/json"

	"github.com/psousa/waconsole/internal/model"
	"github.com/psousa/waconsole/internal/phone"
	"github.com/psousa/waconsole/internal/store"
	"go.uber.org/zap"
)

// Event names pushed over the socket.
const (
	eventNewMessage    = "new_message"
	eventSystemStatus  = "system_status"
	eventAccountStatus = "account_status"
	eventWebhook       = "webhook_event"
)

// envelope is the outer shape of every pushed frame.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type pushedMessage struct {
	ID          string          `json:"id"`
	MessageID   string          `json:"message_id,omitempty"`
	PhoneNumber string          `json:"phone_number"`
	Text        string          `json:"text"`
	SenderType  model.Direction `json:"sender_type"`
	Timestamp   string          `json:"timestamp"`
	AccountID   string          `json:"account_id,omitempty"`
}

type newMessageEvent struct {
	AccountID   string        `json:"account_id"`
	PhoneNumber string        `json:"phone_number"`
	Message     pushedMessage `json:"message"`
}

type accountStatusEvent struct {
	AccountID string `json:"account_id"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

type webhookEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// Handler turns pushed frames into store mutations. Conversation events
// go through the normalizer and (via the store) the dedup/merge engine;
// system, account-status, and webhook events are advisory only.
type Handler struct {
	store  *store.Store
	logger *zap.Logger
}

// NewHandler creates a push event handler.
func NewHandler(st *store.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: st, logger: logger}
}

// Handle processes one pushed frame. Malformed frames are dropped with
// a diagnostic; frames for a non-current account are discarded without
// touching any state.
func (h *Handler) Handle(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.logger.Warn("dropping malformed push frame", zap.Error(err))
		return
	}

	switch env.Event {
	case eventNewMessage:
		h.handleNewMessage(env.Data)
	case eventSystemStatus:
		var status model.SystemStatus
		if err := json.Unmarshal(env.Data, &status); err != nil {
			h.logger.Warn("dropping malformed system status", zap.Error(err))
			return
		}
		h.store.SetSystemStatus(status)
	case eventAccountStatus:
		h.handleAccountStatus(env.Data)
	case eventWebhook:
		h.handleWebhook(env.Data)
	default:
		h.logger.Debug("ignoring push event", zap.String("event", env.Event))
	}
}

func (h *Handler) handleNewMessage(data json.RawMessage) {
	var evt newMessageEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		h.logger.Warn("dropping malformed message event", zap.Error(err))
		return
	}

	current, ok := h.store.CurrentAccount()
	if !ok || current.ID != evt.AccountID {
		// Session-scoped socket: events for other accounts are expected
		// and must not affect any state.
		return
	}

	rawPhone := evt.Message.PhoneNumber
	if rawPhone == "" {
		rawPhone = evt.PhoneNumber
	}
	key := phone.Normalize(rawPhone)
	if key == "" {
		h.logger.Warn("dropping message event without phone number")
		return
	}

	id := model.MessageID{Durable: evt.Message.MessageID}
	if id.Durable == "" {
		id.Durable = evt.Message.ID
	}
	msg := model.Message{
		ID:          id,
		PhoneNumber: rawPhone,
		Text:        evt.Message.Text,
		Direction:   evt.Message.SenderType,
		Timestamp:   evt.Message.Timestamp,
		AccountID:   evt.AccountID,
	}
	if _, err := h.store.AddMessage(key, msg); err != nil {
		h.logger.Warn("push message rejected", zap.String("key", key), zap.Error(err))
		return
	}

	// Keep the contact preview current. Counts are not touched here;
	// the change feed owns them.
	h.store.AddOrUpdateContact(model.Contact{
		PhoneNumber:     rawPhone,
		LastMessage:     evt.Message.Text,
		LastMessageTime: evt.Message.Timestamp,
		LastMessageType: string(evt.Message.SenderType),
		AccountID:       evt.AccountID,
	})
}

func (h *Handler) handleAccountStatus(data json.RawMessage) {
	var evt accountStatusEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		h.logger.Warn("dropping malformed account status", zap.Error(err))
		return
	}
	if evt.Status != "error" {
		return
	}
	msg := evt.Message
	if msg == "" {
		msg = "Account " + evt.AccountID + " encountered an error"
	}
	h.store.AddNotification(model.NotifyError, "Account Error", msg)
}

func (h *Handler) handleWebhook(data json.RawMessage) {
	var evt webhookEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		h.logger.Warn("dropping malformed webhook event", zap.Error(err))
		return
	}
	if evt.Type != "error" {
		return
	}
	msg := evt.Message
	if msg == "" {
		msg = "Webhook encountered an issue"
	}
	h.store.AddNotification(model.NotifyWarning, "Webhook Issue", msg)
}
