package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/psousa/waconsole/internal/bus"
	"github.com/psousa/waconsole/internal/model"
)

// AddNotification enqueues a user-facing notification, most recent
// first, keeping only the configured number of entries.
func (s *Store) AddNotification(typ model.NotificationType, title, message string) model.Notification {
	n := model.Notification{
		ID:        uuid.NewString(),
		Type:      typ,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
	}

	s.mu.Lock()
	s.notifications = append([]model.Notification{n}, s.notifications...)
	s.notifyUnread++
	if len(s.notifications) > s.notifyCap {
		for _, dropped := range s.notifications[s.notifyCap:] {
			if !dropped.Read && s.notifyUnread > 0 {
				s.notifyUnread--
			}
		}
		s.notifications = s.notifications[:s.notifyCap]
	}
	s.mu.Unlock()

	s.publish(bus.KindNotification, n)
	return n
}

// Notifications returns a copy of the notification history, most recent
// first.
func (s *Store) Notifications() []model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Notification(nil), s.notifications...)
}

// UnreadNotifications returns how many notifications have not been
// marked read.
func (s *Store) UnreadNotifications() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notifyUnread
}

// MarkNotificationRead marks one notification as read.
func (s *Store) MarkNotificationRead(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			if !s.notifications[i].Read {
				s.notifications[i].Read = true
				if s.notifyUnread > 0 {
					s.notifyUnread--
				}
			}
			return
		}
	}
}

// ClearNotifications drops the notification history.
func (s *Store) ClearNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = nil
	s.notifyUnread = 0
}
