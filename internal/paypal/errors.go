package paypal

import (
	"errors"
	"fmt"
)

var (
	ErrMissingCredentials = errors.New("paypal client credentials are required")
	ErrInvalidMode        = errors.New("paypal mode must be sandbox or live")
)

// AuthError is returned when the OAuth token exchange is rejected.
// It carries the HTTP status and the raw response body so callers can
// distinguish bad credentials from transient failures.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("paypal auth failed: status %d: %s", e.StatusCode, e.Body)
}

// PayoutError is returned when a payouts API call fails. Name is the
// PayPal error name (e.g. INSUFFICIENT_FUNDS) when one was parseable.
type PayoutError struct {
	StatusCode int
	Name       string
	Message    string
	Body       string
}

func (e *PayoutError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("paypal payout failed: %s: %s", e.Name, e.Message)
	}
	return fmt.Sprintf("paypal payout failed: status %d: %s", e.StatusCode, e.Body)
}
