package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/Boomlive-ai/analytics.boomlive.in/internal/models"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/repositories"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/shared"
)

// Backend persists session documents.
//
// Load returns [shared.ErrSessionNotFound] for unknown ids.
type Backend interface {
	Load(id string) (*models.Session, error)
	Save(s *models.Session) error
	Delete(id string) error
	Prune(now time.Time) (int64, error)
}

// MemoryBackend keeps sessions in process memory. Sessions are lost on restart.
type MemoryBackend struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{sessions: map[string]*models.Session{}}
}

func (b *MemoryBackend) Load(id string) (*models.Session, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s, ok := b.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	return copySession(s), nil
}

func (b *MemoryBackend) Save(s *models.Session) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[s.ID()] = copySession(s)
	return nil
}

func (b *MemoryBackend) Delete(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, id)
	return nil
}

func (b *MemoryBackend) Prune(now time.Time) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var n int64
	for id, s := range b.sessions {
		if s.Expired(now) {
			delete(b.sessions, id)
			n++
		}
	}
	return n, nil
}

func copySession(s *models.Session) *models.Session {
	data := append([]byte(nil), s.Data()...)
	return models.RestoreSession(s.ID(), data, s.CreatedAt(), s.UpdatedAt(), s.ExpiresAt())
}

// SQLBackend stores sessions in the sessions table through a [repositories.SessionRepository].
type SQLBackend struct {
	repo *repositories.SessionRepository
}

func NewSQLBackend(repo *repositories.SessionRepository) *SQLBackend {
	return &SQLBackend{repo: repo}
}

func (b *SQLBackend) Load(id string) (*models.Session, error) {
	return b.repo.Get(id)
}

func (b *SQLBackend) Save(s *models.Session) error {
	return b.repo.Save(s)
}

// Delete removes a session. Deleting an unknown session is not an error.
func (b *SQLBackend) Delete(id string) error {
	if err := b.repo.Delete(id); err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

func (b *SQLBackend) Prune(now time.Time) (int64, error) {
	return b.repo.DeleteExpired(now)
}
