package fixtures

import (
	"time"

	"github.com/graphcs/flexpay/internal/model"
	"github.com/shopspring/decimal"
)

var (
	TestUserConnected = model.User{
		ID:                 1,
		Email:              "owner@example.com",
		PayPalConnected:    true,
		PayPalClientID:     "test-client-id",
		PayPalClientSecret: "test-client-secret",
		PayPalMode:         "sandbox",
	}

	TestUserUnconnected = model.User{
		ID:    2,
		Email: "newcomer@example.com",
	}
)

func NewTestRecipient(userID int64, email string) *model.Recipient {
	return &model.Recipient{
		UserID: userID,
		Name:   "Test Recipient",
		Email:  email,
		Status: model.RecipientStatusActive,
	}
}

func NewTestSchedule(userID int64, frequency model.Frequency, nextRun time.Time) *model.Schedule {
	return &model.Schedule{
		UserID:      userID,
		Name:        "Test Schedule",
		Frequency:   frequency,
		StartDate:   nextRun,
		NextRunDate: &nextRun,
		Status:      model.ScheduleStatusActive,
	}
}

func NewTestScheduleLink(recipientID int64, amount string) *model.ScheduleRecipient {
	return &model.ScheduleRecipient{
		RecipientID: recipientID,
		Amount:      decimal.RequireFromString(amount),
	}
}
