package model

import (
	"time"
)

// PayPalMode selects which PayPal environment a user's credentials target.
type PayPalMode string

const (
	PayPalModeSandbox PayPalMode = "sandbox"
	PayPalModeLive    PayPalMode = "live"
)

func (m PayPalMode) Valid() bool {
	return m == PayPalModeSandbox || m == PayPalModeLive
}

type User struct {
	ID           int64     `json:"id"         db:"id"`
	Email        string    `json:"email"      db:"email"`
	Name         string    `json:"name"       db:"name"`
	PasswordHash string    `json:"-"          db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`

	// PayPal connection. Credentials are stored only after a successful
	// token exchange has verified them (see services.PayPalService.Connect).
	PayPalConnected    bool   `json:"paypal_connected" db:"paypal_connected"`
	PayPalEmail        string `json:"paypal_email"     db:"paypal_email"`
	PayPalClientID     string `json:"-"                db:"paypal_client_id"`
	PayPalClientSecret string `json:"-"                db:"paypal_client_secret"`
	PayPalMode         string `json:"paypal_mode"      db:"paypal_mode"`
}

type PayPalConnectRequest struct {
	ClientID     string `json:"client_id"     validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
	Mode         string `json:"mode"          validate:"required,oneof=sandbox live"`
	PayPalEmail  string `json:"paypal_email"  validate:"required,email"`
}
