package models

import (
	"testing"
	"time"
)

func TestProvider(t *testing.T) {
	t.Run("SessionKey", func(t *testing.T) {
		tc := map[Provider]string{
			Google:   "google_token_info",
			Spotify:  "spotify_token_info",
			Facebook: "facebook_token_info",
		}
		for p, want := range tc {
			if got := p.SessionKey(); got != want {
				t.Errorf("%s: expected %s, got %s", p, want, got)
			}
		}
	})

	t.Run("ParseProvider", func(t *testing.T) {
		if p, ok := ParseProvider(" Spotify "); !ok || p != Spotify {
			t.Errorf("expected spotify, got %q %v", p, ok)
		}
		if _, ok := ParseProvider("twitter"); ok {
			t.Error("expected twitter to be rejected")
		}
	})

	t.Run("DisplayName", func(t *testing.T) {
		if got := Facebook.DisplayName(); got != "Facebook" {
			t.Errorf("expected Facebook, got %s", got)
		}
	})
}

func TestTokenRecord(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	skew := 300 * time.Second

	t.Run("NeedsRefresh", func(t *testing.T) {
		tc := []struct {
			name     string
			expires  time.Time
			expected bool
		}{
			{name: "well before skew", expires: now.Add(10 * time.Minute), expected: false},
			{name: "one second outside skew", expires: now.Add(301 * time.Second), expected: false},
			{name: "exactly at skew", expires: now.Add(300 * time.Second), expected: true},
			{name: "inside skew", expires: now.Add(100 * time.Second), expected: true},
			{name: "already expired", expires: now.Add(-time.Minute), expected: true},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				rec := TokenRecord{AccessToken: "a", ExpiresAt: tt.expires}
				if got := rec.NeedsRefresh(now, skew); got != tt.expected {
					t.Errorf("NeedsRefresh() = %v, want %v", got, tt.expected)
				}
			})
		}
	})

	t.Run("Merge Keeps Refresh Token", func(t *testing.T) {
		old := TokenRecord{AccessToken: "old", RefreshToken: "R", TokenType: "Bearer", ExpiresAt: now, Scope: "s"}
		merged := old.Merge(TokenRecord{AccessToken: "new", ExpiresAt: now.Add(time.Hour)})

		if merged.AccessToken != "new" {
			t.Errorf("expected access token new, got %s", merged.AccessToken)
		}
		if merged.RefreshToken != "R" {
			t.Errorf("expected refresh token R to be carried forward, got %q", merged.RefreshToken)
		}
		if !merged.ExpiresAt.Equal(now.Add(time.Hour)) {
			t.Errorf("expected expiry to be replaced, got %v", merged.ExpiresAt)
		}
		if merged.Scope != "s" || merged.TokenType != "Bearer" {
			t.Errorf("expected scope and token type to be kept, got %q %q", merged.Scope, merged.TokenType)
		}
	})

	t.Run("Merge Rotates Refresh Token", func(t *testing.T) {
		old := TokenRecord{AccessToken: "old", RefreshToken: "R1", ExpiresAt: now}
		merged := old.Merge(TokenRecord{AccessToken: "new", RefreshToken: "R2", ExpiresAt: now})

		if merged.RefreshToken != "R2" {
			t.Errorf("expected rotated refresh token R2, got %s", merged.RefreshToken)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		if err := (TokenRecord{}).Validate(); err == nil {
			t.Error("expected empty record to be invalid")
		}
		if err := (TokenRecord{AccessToken: "a", ExpiresAt: now}).Validate(); err != nil {
			t.Errorf("expected valid record, got %v", err)
		}
	})
}

func TestSession(t *testing.T) {
	s := NewSession("abc", time.Hour)

	if err := s.Validate(); err != nil {
		t.Fatalf("expected new session to be valid, got %v", err)
	}

	if s.Expired(s.CreatedAt()) {
		t.Error("new session should not be expired")
	}

	if !s.Expired(s.CreatedAt().Add(time.Hour)) {
		t.Error("session should be expired at its ttl")
	}

	later := s.CreatedAt().Add(30 * time.Minute)
	s.Touch(later, time.Hour)
	if !s.ExpiresAt().Equal(later.Add(time.Hour)) {
		t.Errorf("expected expiry to move to %v, got %v", later.Add(time.Hour), s.ExpiresAt())
	}

	s.SetData([]byte("{not json"))
	if err := s.Validate(); err == nil {
		t.Error("expected invalid JSON to fail validation")
	}
}
