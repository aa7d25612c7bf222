package domain

import (
	"errors"
	"fmt"
)

// AuthReason classifies credential failures so per-user boundaries can
// distinguish "needs re-authorization" from transient provider trouble.
type AuthReason string

const (
	AuthNoRefreshToken AuthReason = "no_refresh_token"
	AuthRefreshFailed  AuthReason = "refresh_failed"
)

// AuthError marks a user whose credentials cannot produce a valid access
// token. Callers skip the user and continue; they must not abort the batch.
type AuthError struct {
	UserID string
	Reason AuthReason
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth failure (%s) for user %s: %v", e.Reason, e.UserID, e.Err)
	}
	return fmt.Sprintf("auth failure (%s) for user %s", e.Reason, e.UserID)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ProviderError is a non-2xx response from the provider's list/fetch endpoints.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("strava API error %d: %s", e.Status, e.Body)
}

// ErrPermissionScope indicates the user revoked activity-read scope while
// keeping the app connected. It is an expected, non-alarming skip.
var ErrPermissionScope = errors.New("activity read permission revoked")

// ValidationError rejects malformed input at the boundary.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
}

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
