package repositories

import (
	"errors"
	"testing"
	"time"

	"github.com/Boomlive-ai/analytics.boomlive.in/internal/models"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/shared"
)

func TestSessionRepositoryErrors(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		t.Run("ValidationError", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewSessionRepository(db)
			session := models.NewSession("bad", time.Hour)
			session.SetData([]byte("not json"))

			if err := repo.Create(session); err == nil {
				t.Fatal("expected validation error for invalid data")
			}
		})

		t.Run("DuplicateID", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewSessionRepository(db)
			if err := repo.Create(models.NewSession("dup", time.Hour)); err != nil {
				t.Fatalf("failed to create first session: %v", err)
			}

			if err := repo.Create(models.NewSession("dup", time.Hour)); err == nil {
				t.Fatal("expected error when creating session with duplicate id")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewSessionRepository(db)

			_, err := repo.Get("nonexistent-id")
			if !errors.Is(err, shared.ErrSessionNotFound) {
				t.Fatalf("expected ErrSessionNotFound, got %v", err)
			}
		})
	})

	t.Run("Update", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewSessionRepository(db)

			err := repo.Update(models.NewSession("missing", time.Hour))
			if !errors.Is(err, shared.ErrSessionNotFound) {
				t.Fatalf("expected ErrSessionNotFound, got %v", err)
			}
		})
	})

	t.Run("Delete", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewSessionRepository(db)

			if err := repo.Delete("missing"); !errors.Is(err, shared.ErrSessionNotFound) {
				t.Fatalf("expected ErrSessionNotFound, got %v", err)
			}
		})
	})

	t.Run("Closed Database", func(t *testing.T) {
		db := setupTestDB(t)
		db.Close()

		repo := NewSessionRepository(db)
		if _, err := repo.DeleteExpired(time.Now()); err == nil {
			t.Fatal("expected error on closed database")
		}
		if _, err := repo.List(nil); err == nil {
			t.Fatal("expected error on closed database")
		}
	})
}
