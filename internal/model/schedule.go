package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is the recurrence rule of a schedule.
type Frequency string

const (
	FrequencyOneTime  Frequency = "one_time"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiWeekly Frequency = "bi_weekly"
	FrequencyMonthly  Frequency = "monthly"
	FrequencyCustom   Frequency = "custom"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOneTime, FrequencyWeekly, FrequencyBiWeekly, FrequencyMonthly, FrequencyCustom:
		return true
	}
	return false
}

// ScheduleStatus is the lifecycle state of a schedule.
type ScheduleStatus string

const (
	ScheduleStatusActive    ScheduleStatus = "active"
	ScheduleStatusPaused    ScheduleStatus = "paused"
	ScheduleStatusCompleted ScheduleStatus = "completed"
	ScheduleStatusCancelled ScheduleStatus = "cancelled"
)

// Schedule is a recurrence definition owned by a user. It owns its
// recipient links; NextRunDate is nil only when the schedule is terminal
// (completed or cancelled), and CustomDays is set iff Frequency is custom.
type Schedule struct {
	ID          int64          `json:"id"            db:"id"`
	UserID      int64          `json:"user_id"       db:"user_id"`
	Name        string         `json:"name"          db:"name"`
	Frequency   Frequency      `json:"frequency"     db:"frequency"`
	CustomDays  *int           `json:"custom_days"   db:"custom_days"`
	StartDate   time.Time      `json:"start_date"    db:"start_date"`
	NextRunDate *time.Time     `json:"next_run_date" db:"next_run_date"`
	LastRunDate *time.Time     `json:"last_run_date" db:"last_run_date"`
	Status      ScheduleStatus `json:"status"        db:"status"`
	CreatedAt   time.Time      `json:"created_at"    db:"created_at"`

	Recipients []*ScheduleRecipient `json:"recipients"`
}

// ScheduleRecipient links a schedule to one payee with a per-recipient amount.
type ScheduleRecipient struct {
	ID          int64           `json:"id"           db:"id"`
	ScheduleID  int64           `json:"schedule_id"  db:"schedule_id"`
	RecipientID int64           `json:"recipient_id" db:"recipient_id"`
	Recipient   *Recipient      `json:"recipient,omitempty"`
	Amount      decimal.Decimal `json:"amount"       db:"amount"`
	Note        string          `json:"note"         db:"note"`
}

var (
	ErrCustomDaysRequired  = errors.New("custom_days is required for custom frequency")
	ErrCustomDaysForbidden = errors.New("custom_days is only valid for custom frequency")
)

// ValidateRecurrence enforces the customDays-iff-custom invariant.
func (s *Schedule) ValidateRecurrence() error {
	if s.Frequency == FrequencyCustom {
		if s.CustomDays == nil || *s.CustomDays <= 0 {
			return ErrCustomDaysRequired
		}
		return nil
	}
	if s.CustomDays != nil {
		return ErrCustomDaysForbidden
	}
	return nil
}

type ScheduleRecipientRequest struct {
	RecipientID int64           `json:"recipient_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount"       validate:"required"`
	Note        string          `json:"note"`
}

type ScheduleCreateRequest struct {
	Name       string                     `json:"name"        validate:"required"`
	Frequency  Frequency                  `json:"frequency"   validate:"required,oneof=one_time weekly bi_weekly monthly custom"`
	CustomDays *int                       `json:"custom_days" validate:"omitempty,gt=0"`
	StartDate  time.Time                  `json:"start_date"  validate:"required"`
	Recipients []ScheduleRecipientRequest `json:"recipients"  validate:"required,min=1,dive"`
}

type ScheduleUpdateRequest struct {
	Name       *string         `json:"name"        validate:"omitempty,min=1"`
	Frequency  *Frequency      `json:"frequency"   validate:"omitempty,oneof=one_time weekly bi_weekly monthly custom"`
	CustomDays *int            `json:"custom_days" validate:"omitempty,gt=0"`
	StartDate  *time.Time      `json:"start_date"`
	Status     *ScheduleStatus `json:"status"      validate:"omitempty,oneof=active paused cancelled"`
}
