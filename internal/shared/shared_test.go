package shared

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestLogger(t *testing.T) {
	t.Run("Child Logger Carries Fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WithLogger(NewLogger(&buf), "provider", "google")
		logger.Info("refreshed")

		out := buf.String()
		if !strings.Contains(out, "provider=google") {
			t.Errorf("expected provider field in output, got %q", out)
		}
	})

	t.Run("Level Filters", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		SetLogLevel(logger, log.WarnLevel)
		logger.Info("hidden")

		if buf.Len() != 0 {
			t.Errorf("expected info to be filtered, got %q", buf.String())
		}
	})
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := GenerateState()

	if a == b {
		t.Error("expected distinct states")
	}
	if len(a) < 40 {
		t.Errorf("expected at least 40 characters, got %d", len(a))
	}
}

func TestRedactToken(t *testing.T) {
	if got := RedactToken("ya29.a0Af"); got != "ya29****" {
		t.Errorf("expected ya29****, got %s", got)
	}
	if got := RedactToken("short"); got != "****" {
		t.Errorf("expected ****, got %s", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	tc := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: http.StatusOK},
		{name: "not authenticated", err: ErrNotAuthenticated, want: http.StatusUnauthorized},
		{name: "no refresh token", err: fmt.Errorf("%w: google", ErrNoRefreshToken), want: http.StatusUnauthorized},
		{
			name: "refresh rejected",
			err:  &RemoteError{Provider: "google", Op: "refresh", StatusCode: 400, Kind: ErrRefreshFailed},
			want: http.StatusUnauthorized,
		},
		{
			name: "exchange rejected",
			err:  &RemoteError{Provider: "spotify", Op: "exchange", StatusCode: 400, Kind: ErrExchangeFailed},
			want: http.StatusBadRequest,
		},
		{
			name: "remote status propagated",
			err:  &RemoteError{Provider: "google", Op: "GET", StatusCode: 403, Kind: ErrAPIRequest},
			want: http.StatusForbidden,
		},
		{
			name: "transport failure",
			err:  &RemoteError{Provider: "google", Op: "GET", Kind: ErrAPIRequest, Err: errors.New("dial tcp")},
			want: http.StatusBadGateway,
		},
		{name: "not found", err: fmt.Errorf("%w: no channels", ErrNotFound), want: http.StatusNotFound},
		{name: "unknown provider", err: ErrUnknownProvider, want: http.StatusNotFound},
		{name: "invalid state", err: ErrInvalidState, want: http.StatusBadRequest},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRemoteError(t *testing.T) {
	cause := errors.New("connection reset")
	err := &RemoteError{Provider: "spotify", Op: "GET /me", StatusCode: 500, Body: `{"error":"x"}`, Kind: ErrAPIRequest, Err: cause}

	if !errors.Is(err, ErrAPIRequest) {
		t.Error("expected error to match its kind")
	}
	if !errors.Is(err, cause) {
		t.Error("expected error to match its cause")
	}

	msg := err.Error()
	for _, want := range []string{"spotify", "GET /me", "status 500", `{"error":"x"}`} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}

	t.Run("Rejected", func(t *testing.T) {
		cases := []struct {
			status int
			want   bool
		}{
			{0, false},
			{400, true},
			{401, true},
			{500, false},
			{503, false},
		}
		for _, tc := range cases {
			re := &RemoteError{StatusCode: tc.status, Kind: ErrRefreshFailed}
			if got := re.Rejected(); got != tc.want {
				t.Errorf("status %d: expected Rejected() = %v, got %v", tc.status, tc.want, got)
			}
		}
	})
}
