// package session binds server-side session data to a signed browser cookie
package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Boomlive-ai/analytics.boomlive.in/internal/models"
)

// Session is the live, per-request view of a stored session.
//
// It holds provider token records and short-lived strings such as the pending OAuth state. Writes mark the session
// dirty so the [Manager] persists it before the response is sent.
type Session struct {
	mu        sync.Mutex
	id        string
	values    map[string]json.RawMessage
	createdAt time.Time
	dirty     bool
	fresh     bool
}

func newSession(id string, now time.Time) *Session {
	return &Session{id: id, values: map[string]json.RawMessage{}, createdAt: now, fresh: true}
}

func fromModel(m *models.Session) (*Session, error) {
	values := map[string]json.RawMessage{}
	if len(m.Data()) > 0 {
		if err := json.Unmarshal(m.Data(), &values); err != nil {
			return nil, fmt.Errorf("failed to decode session %s: %w", m.ID(), err)
		}
	}
	return &Session{id: m.ID(), values: values, createdAt: m.CreatedAt()}, nil
}

// ID returns the session identifier carried in the cookie.
func (s *Session) ID() string {
	return s.id
}

// Get returns the token record stored under key.
// A missing or undecodable value is reported as absent.
func (s *Session) Get(key string) (models.TokenRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.values[key]
	if !ok {
		return models.TokenRecord{}, false
	}

	var rec models.TokenRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return models.TokenRecord{}, false
	}
	return rec, true
}

// Set stores rec under key.
func (s *Session) Set(key string, rec models.TokenRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode token record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = raw
	s.dirty = true
	return nil
}

// Delete removes keys from the session. Absent keys are ignored.
func (s *Session) Delete(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		if _, ok := s.values[key]; ok {
			delete(s.values, key)
			s.dirty = true
		}
	}
}

// SetString stores a plain string value.
func (s *Session) SetString(key, value string) {
	raw, _ := json.Marshal(value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = raw
	s.dirty = true
}

// PopString returns and removes a string value.
func (s *Session) PopString(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.values[key]
	if !ok {
		return "", false
	}
	delete(s.values, key)
	s.dirty = true

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false
	}
	return value, true
}

// Len returns the number of stored values.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

// Modified reports whether the session changed since it was loaded.
func (s *Session) Modified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func (s *Session) encode() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Marshal(s.values)
}

func (s *Session) markClean() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
	s.fresh = false
}
