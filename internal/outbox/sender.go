// Package outbox sends outgoing messages optimistically: the message
// appears in its conversation immediately under a temporary id and is
// reconciled or rolled back when the backend answers.
package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/psousa/waconsole/internal/bus"
	"github.com/psousa/waconsole/internal/model"
	"github.com/psousa/waconsole/internal/phone"
	"github.com/psousa/waconsole/internal/rest"
	"github.com/psousa/waconsole/internal/store"
	"go.uber.org/zap"
)

var (
	ErrNoAccount      = errors.New("no current account")
	ErrBadPhoneNumber = errors.New("phone number has no digits")
)

// TextSender is the backend send operation. *rest.Client satisfies it.
type TextSender interface {
	Send(ctx context.Context, req rest.SendRequest) (rest.SendResponse, error)
}

// Sender performs optimistic sends against the current account.
type Sender struct {
	store  *store.Store
	sender TextSender
	bus    *bus.Bus
	logger *zap.Logger
}

// NewSender creates an outbox sender.
func NewSender(st *store.Store, sender TextSender, b *bus.Bus, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		store:  st,
		sender: sender,
		bus:    b,
		logger: logger,
	}
}

// Send delivers text to phoneNumber on behalf of the current account.
// The message is inserted immediately with a temporary local id; on
// confirmation the backend's durable id is attached in place, on
// failure the placeholder is rolled back and the error surfaced as a
// notification. The returned id is the temporary one.
func (s *Sender) Send(ctx context.Context, phoneNumber, text string) (string, error) {
	account, ok := s.store.CurrentAccount()
	if !ok {
		return "", ErrNoAccount
	}
	key := phone.Normalize(phoneNumber)
	if key == "" {
		return "", ErrBadPhoneNumber
	}

	tempID := "temp-" + uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339)
	pending := model.Message{
		ID:          model.MessageID{Local: tempID},
		PhoneNumber: phoneNumber,
		Text:        text,
		Direction:   model.DirectionOutgoing,
		Timestamp:   now,
		AccountID:   account.ID,
	}
	if _, err := s.store.AddMessage(key, pending); err != nil {
		return "", err
	}
	s.store.AddOrUpdateContact(model.Contact{
		PhoneNumber:     phoneNumber,
		LastMessage:     text,
		LastMessageTime: now,
		LastMessageType: string(model.DirectionOutgoing),
		AccountID:       account.ID,
	})

	resp, err := s.sender.Send(ctx, rest.SendRequest{
		To:         key,
		Message:    text,
		BusinessID: account.BusinessAccountID,
		PhoneID:    account.PhoneNumberID,
	})
	if err != nil {
		s.logger.Warn("send failed, rolling back placeholder",
			zap.String("key", key),
			zap.String("temp_id", tempID),
			zap.Error(err))
		s.store.RemoveMessage(key, tempID)
		s.store.AddNotification(model.NotifyError, "Send Failed", "Message could not be delivered")
		s.publish(bus.KindSendFailed, SendResult{Key: key, TempID: tempID, Err: err.Error()})
		return tempID, err
	}

	confirmed := pending
	confirmed.ID = model.MessageID{Durable: resp.MessageID, Local: tempID}
	if _, err := s.store.AddMessage(key, confirmed); err != nil {
		// The conversation may have been cleared by an account switch
		// mid-flight; the send itself succeeded.
		s.logger.Warn("confirmation not applied", zap.String("key", key), zap.Error(err))
	}

	s.logger.Info("message sent",
		zap.String("key", key),
		zap.String("temp_id", tempID),
		zap.String("message_id", resp.MessageID))
	s.publish(bus.KindSendAck, SendResult{Key: key, TempID: tempID, MessageID: resp.MessageID})
	return tempID, nil
}

// SendResult is the payload for send ack and failure events.
type SendResult struct {
	Key       string
	TempID    string
	MessageID string
	Err       string
}

func (s *Sender) publish(kind bus.Kind, payload SendResult) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}
