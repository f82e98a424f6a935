package store

import "github.com/psousa/waconsole/internal/model"

// SetPushConnected records the push socket's connected flag.
func (s *Store) SetPushConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushConnected = connected
}

// PushConnected reports whether the push socket is connected. The bulk
// loader gates its REST fallback on this: an unconnected push channel
// is treated as a signal that the backend is not ready.
func (s *Store) PushConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pushConnected
}

// SetPushReconnecting records that the supervisor is between retry
// attempts.
func (s *Store) SetPushReconnecting(reconnecting bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushReconnecting = reconnecting
}

// PushReconnecting reports whether a reconnect attempt is pending.
func (s *Store) PushReconnecting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pushReconnecting
}

// SetFeedActive records whether the change-feed subscription for the
// current account is established.
func (s *Store) SetFeedActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedActive = active
}

// FeedActive reports whether the change-feed subscription is live.
func (s *Store) FeedActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feedActive
}

// SetSystemStatus stores the advisory backend health record.
func (s *Store) SetSystemStatus(status model.SystemStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.system = &status
}

// SystemStatus returns the last advisory health record, if any.
func (s *Store) SystemStatus() (model.SystemStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.system == nil {
		return model.SystemStatus{}, false
	}
	return *s.system, true
}
