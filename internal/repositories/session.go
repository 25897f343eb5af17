package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Boomlive-ai/analytics.boomlive.in/internal/models"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/shared"
)

// SessionRepository implements [models.Repository] for [models.Session] persistence.
type SessionRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.Session] = (*SessionRepository)(nil)

// NewSessionRepository creates a new [SessionRepository] with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session, generating an ID when the session has none
func (r *SessionRepository) Create(session *models.Session) error {
	if session.ID() == "" {
		session.SetID(shared.GenerateID())
	}

	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO sessions (id, data, created_at, updated_at, expires_at) VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query, session.ID(), string(session.Data()),
		session.CreatedAt().UTC(), session.UpdatedAt().UTC(), session.ExpiresAt().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// Get retrieves a session by ID. Expired rows are still returned; callers decide what expiry means.
func (r *SessionRepository) Get(id string) (*models.Session, error) {
	query := `
		SELECT id, data, created_at, updated_at, expires_at
		FROM sessions
		WHERE id = ?
	`

	session, err := scanSession(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	return session, nil
}

// Update replaces the data and expiry of an existing session
func (r *SessionRepository) Update(session *models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE sessions
		SET data = ?, updated_at = ?, expires_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, string(session.Data()), session.UpdatedAt().UTC(), session.ExpiresAt().UTC(), session.ID())
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return requireRows(result, shared.ErrSessionNotFound, session.ID())
}

// Save inserts the session or overwrites the stored copy (last write wins)
func (r *SessionRepository) Save(session *models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO sessions (id, data, created_at, updated_at, expires_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at
	`

	_, err := r.db.Exec(query, session.ID(), string(session.Data()),
		session.CreatedAt().UTC(), session.UpdatedAt().UTC(), session.ExpiresAt().UTC())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes a session by ID
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return requireRows(result, shared.ErrSessionNotFound, id)
}

// DeleteExpired removes every session whose expiry is at or before now and returns how many were removed
func (r *SessionRepository) DeleteExpired(now time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

// List retrieves sessions matching the given criteria.
//
// Supported criteria: "expired_before" (time.Time) and "active_at" (time.Time).
func (r *SessionRepository) List(criteria map[string]any) ([]*models.Session, error) {
	query := `
		SELECT id, data, created_at, updated_at, expires_at
		FROM sessions
		WHERE 1 = 1
	`

	args := []any{}

	if before, ok := criteria["expired_before"].(time.Time); ok {
		query += " AND expires_at <= ?"
		args = append(args, before.UTC())
	}

	if at, ok := criteria["active_at"].(time.Time); ok {
		query += " AND expires_at > ?"
		args = append(args, at.UTC())
	}

	query += " ORDER BY created_at ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return sessions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.Session, error) {
	var (
		id        string
		data      string
		createdAt time.Time
		updatedAt time.Time
		expiresAt time.Time
	)

	if err := row.Scan(&id, &data, &createdAt, &updatedAt, &expiresAt); err != nil {
		return nil, err
	}

	return models.RestoreSession(id, []byte(data), createdAt, updatedAt, expiresAt), nil
}
