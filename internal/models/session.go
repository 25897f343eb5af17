package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Session is the persisted form of a browser session: an opaque JSON document keyed by the id carried in the
// session cookie.
type Session struct {
	id        string
	data      []byte
	createdAt time.Time
	updatedAt time.Time
	expiresAt time.Time
}

// NewSession creates a session with an empty document expiring after ttl.
func NewSession(id string, ttl time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{
		id:        id,
		data:      []byte("{}"),
		createdAt: now,
		updatedAt: now,
		expiresAt: now.Add(ttl),
	}
}

// RestoreSession rebuilds a session loaded from storage.
func RestoreSession(id string, data []byte, createdAt, updatedAt, expiresAt time.Time) *Session {
	return &Session{id: id, data: data, createdAt: createdAt, updatedAt: updatedAt, expiresAt: expiresAt}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) CreatedAt() time.Time { return s.createdAt }
func (s *Session) UpdatedAt() time.Time { return s.updatedAt }
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }
func (s *Session) Data() []byte         { return s.data }

func (s *Session) SetID(id string)          { s.id = id }
func (s *Session) SetData(data []byte)      { s.data = data }
func (s *Session) SetUpdatedAt(t time.Time) { s.updatedAt = t }
func (s *Session) SetExpiresAt(t time.Time) { s.expiresAt = t }

// Touch marks the session modified at now and pushes its expiry out by ttl.
func (s *Session) Touch(now time.Time, ttl time.Duration) {
	s.updatedAt = now
	s.expiresAt = now.Add(ttl)
}

// Expired reports whether the session has passed its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.expiresAt)
}

// Validate checks that the session can be persisted.
func (s *Session) Validate() error {
	if s.id == "" {
		return fmt.Errorf("session id is required")
	}
	if s.expiresAt.IsZero() {
		return fmt.Errorf("session expiry is required")
	}
	if !json.Valid(s.data) {
		return fmt.Errorf("session data must be valid JSON")
	}
	return nil
}
