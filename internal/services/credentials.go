package services

import (
	"errors"

	"github.com/graphcs/flexpay/internal/model"
	"github.com/graphcs/flexpay/internal/paypal"
)

var (
	// ErrPayPalNotConnected signals that the user has no usable PayPal
	// credentials. It is a local gating decision, not a processor
	// failure; schedules hit by it are skipped, not failed.
	ErrPayPalNotConnected = errors.New("paypal account is not connected")
)

// ResolveCredentials returns the user's verified PayPal credentials or
// ErrPayPalNotConnected. Eligibility requires the connected flag plus
// all three credential fields; secret validity itself is checked lazily
// by the gateway on first use.
func ResolveCredentials(u *model.User) (paypal.Credentials, error) {
	if u == nil || !u.PayPalConnected {
		return paypal.Credentials{}, ErrPayPalNotConnected
	}
	creds := paypal.Credentials{
		ClientID:     u.PayPalClientID,
		ClientSecret: u.PayPalClientSecret,
		Mode:         model.PayPalMode(u.PayPalMode),
	}
	if creds.ClientID == "" || creds.ClientSecret == "" || !creds.Mode.Valid() {
		return paypal.Credentials{}, ErrPayPalNotConnected
	}
	return creds, nil
}
