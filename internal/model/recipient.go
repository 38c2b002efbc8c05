package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecipientStatus is the lifecycle state of a payee.
type RecipientStatus string

const (
	RecipientStatusActive   RecipientStatus = "active"
	RecipientStatusInactive RecipientStatus = "inactive"
)

// Recipient is a payee owned by a user. Schedules reference recipients but
// never own them; deleting a recipient is rejected while schedules still
// reference it.
type Recipient struct {
	ID            int64            `json:"id"             db:"id"`
	UserID        int64            `json:"user_id"        db:"user_id"`
	Name          string           `json:"name"           db:"name"`
	Email         string           `json:"email"          db:"email"`
	DefaultAmount *decimal.Decimal `json:"default_amount" db:"default_amount"`
	Status        RecipientStatus  `json:"status"         db:"status"`
	CreatedAt     time.Time        `json:"created_at"     db:"created_at"`
}

type RecipientCreateRequest struct {
	Name          string           `json:"name"           validate:"required"`
	Email         string           `json:"email"          validate:"required,email"`
	DefaultAmount *decimal.Decimal `json:"default_amount" validate:"omitempty"`
}

type RecipientUpdateRequest struct {
	Name          *string          `json:"name"           validate:"omitempty,min=1"`
	Email         *string          `json:"email"          validate:"omitempty,email"`
	DefaultAmount *decimal.Decimal `json:"default_amount"`
	Status        *RecipientStatus `json:"status"         validate:"omitempty,oneof=active inactive"`
}
