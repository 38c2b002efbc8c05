package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle state of one payout attempt.
//
// The submission path (payout orchestrator) owns processing -> pending|failed,
// the reconciliation path (webhook listener) owns pending -> completed|failed.
// See CanTransition for the full table.
type TransactionStatus string

const (
	// TransactionStatusProcessing means the row is staged but the batch has
	// not been accepted by PayPal yet.
	TransactionStatusProcessing TransactionStatus = "processing"
	// TransactionStatusPending means PayPal accepted the batch and the item
	// awaits asynchronous confirmation.
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction is one row per (schedule, recipient, run occurrence).
// Append-only history: rows are never deleted except by cascading schedule
// deletion, and only the status-transition fields change after creation.
type Transaction struct {
	ID          int64           `json:"id"           db:"id"`
	ScheduleID  int64           `json:"schedule_id"  db:"schedule_id"`
	RecipientID int64           `json:"recipient_id" db:"recipient_id"`
	Recipient   *Recipient      `json:"recipient,omitempty"`
	Amount      decimal.Decimal `json:"amount"       db:"amount"`
	Currency    string          `json:"currency"     db:"currency"`

	// BatchID is the local correlation id at staging time; once PayPal
	// accepts the batch it is overwritten with the payout_batch_id, which is
	// the durable reconciliation key.
	BatchID      string            `json:"batch_id"      db:"batch_id"`
	ItemID       string            `json:"item_id"       db:"item_id"`
	Status       TransactionStatus `json:"status"        db:"status"`
	ErrorMessage string            `json:"error_message" db:"error_message"`

	CreatedAt   time.Time  `json:"created_at"   db:"created_at"`
	ProcessedAt *time.Time `json:"processed_at" db:"processed_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
}

// TransactionFilter controls List queries.
type TransactionFilter struct {
	UserID     *int64
	ScheduleID *int64
	Statuses   []TransactionStatus
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
	Desc       bool
}
