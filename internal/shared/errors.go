package shared

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrExchangeFailed   = fmt.Errorf("authorization code exchange failed")
	ErrInvalidState     = fmt.Errorf("invalid state parameter")
	ErrAuthDenied       = fmt.Errorf("authorization denied")

	// Session errors
	ErrSessionNotFound = fmt.Errorf("session not found")
	ErrSessionExpired  = fmt.Errorf("session expired")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrNotFound           = fmt.Errorf("not found")
	ErrUnknownProvider    = fmt.Errorf("unknown provider")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// RemoteError describes a failed call to a provider endpoint.
//
// Kind is one of the sentinel errors above ([ErrExchangeFailed], [ErrRefreshFailed], [ErrAPIRequest]) so callers
// can branch with [errors.Is]. StatusCode and Body hold the provider's raw response when one was received; Err holds
// the transport error when none was.
type RemoteError struct {
	Provider   string
	Op         string
	StatusCode int
	Body       string
	Kind       error
	Err        error
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Provider, e.Op)
	if e.Kind != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Kind)
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Rejected reports whether the provider answered and refused the request (a 4xx such as invalid_grant), as
// opposed to a transport failure or a 5xx that may succeed on a later attempt.
func (e *RemoteError) Rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

func (e *RemoteError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// HTTPStatus maps an error from the token lifecycle or a provider call to the status code returned to clients.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case errors.Is(err, ErrNotAuthenticated),
		errors.Is(err, ErrNoRefreshToken),
		errors.Is(err, ErrRefreshFailed):
		return http.StatusUnauthorized
	case errors.Is(err, ErrExchangeFailed),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrAuthDenied),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrMissingArgument),
		errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnknownProvider):
		return http.StatusNotFound
	case errors.Is(err, ErrAPIRequest):
		var remote *RemoteError
		if errors.As(err, &remote) && remote.StatusCode >= 400 {
			return remote.StatusCode
		}
		return http.StatusBadGateway
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
