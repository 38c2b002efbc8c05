package services

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/graphcs/flexpay/internal/model"
	"github.com/graphcs/flexpay/internal/paypal"
	"github.com/graphcs/flexpay/internal/recurrence"
	"github.com/graphcs/flexpay/pkg/logger"
	"github.com/graphcs/flexpay/pkg/prom"
)

type DueScheduleRepository interface {
	FindDue(ctx context.Context, now time.Time) ([]*model.Schedule, error)
	AdvanceRun(ctx context.Context, id int64, lastRun time.Time, nextRun *time.Time, status model.ScheduleStatus) error
}

type PayoutTransactionRepository interface {
	CreateBatch(ctx context.Context, txs []*model.Transaction) ([]*model.Transaction, error)
	ActivateBatch(ctx context.Context, localBatchID, payoutBatchID string, processedAt time.Time) (int64, error)
	MarkBatchFailed(ctx context.Context, localBatchID, errorMessage string) (int64, error)
}

type UserGetter interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// CycleResult aggregates one orchestration cycle.
type CycleResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// PayoutService runs the payout cycle: find due schedules, stage
// transactions, submit batches, advance recurrence state. One
// invocation per trigger; the caller guarantees at most one concurrent
// run (see the runner's redis lock).
type PayoutService struct {
	schedules    DueScheduleRepository
	transactions PayoutTransactionRepository
	users        UserGetter
	gateway      PayPalGateway
	emailSubject string
}

func NewPayoutService(schedules DueScheduleRepository, transactions PayoutTransactionRepository, users UserGetter, gateway PayPalGateway, emailSubject string) *PayoutService {
	return &PayoutService{
		schedules:    schedules,
		transactions: transactions,
		users:        users,
		gateway:      gateway,
		emailSubject: emailSubject,
	}
}

// ProcessDueSchedules executes one payout cycle at the given time.
// Schedules are processed independently: one schedule's failure never
// aborts the rest. Only an error from the due-query itself is fatal.
func (s *PayoutService) ProcessDueSchedules(ctx context.Context, now time.Time) (CycleResult, error) {
	start := time.Now()
	var result CycleResult

	due, err := s.schedules.FindDue(ctx, now)
	if err != nil {
		return result, err
	}

	logger.Info("payout cycle started", "due_schedules", len(due), "now", now)

	for _, schedule := range due {
		switch s.processSchedule(ctx, schedule, now) {
		case cycleProcessed:
			result.Processed++
		case cycleFailed:
			result.Failed++
		case cycleSkipped:
			result.Skipped++
		}
	}

	prom.AddPayoutCycleDuration(time.Since(start).Seconds())
	logger.Info("payout cycle finished",
		"processed", result.Processed,
		"failed", result.Failed,
		"skipped", result.Skipped)

	return result, nil
}

type cycleOutcome int

const (
	cycleProcessed cycleOutcome = iota
	cycleFailed
	cycleSkipped
)

func (s *PayoutService) processSchedule(ctx context.Context, schedule *model.Schedule, now time.Time) cycleOutcome {
	user, err := s.users.GetByID(ctx, schedule.UserID)
	if err != nil {
		logger.Error("failed to load schedule owner", "schedule_id", schedule.ID, "user_id", schedule.UserID, "error", err)
		return cycleFailed
	}

	creds, err := ResolveCredentials(user)
	if err != nil {
		// not configured yet: leave the schedule due, retry next cycle
		logger.Warn("schedule skipped, paypal not connected", "schedule_id", schedule.ID, "user_id", schedule.UserID)
		return cycleSkipped
	}

	if len(schedule.Recipients) == 0 {
		logger.Warn("schedule skipped, no recipients", "schedule_id", schedule.ID)
		return cycleSkipped
	}

	// Stage before any external call. The rows are the durability point:
	// if the process dies mid-submit, the processing rows make the
	// attempt auditable.
	localBatchID := uuid.NewString()
	staged := make([]*model.Transaction, len(schedule.Recipients))
	for i, link := range schedule.Recipients {
		staged[i] = &model.Transaction{
			ScheduleID:  schedule.ID,
			RecipientID: link.RecipientID,
			Amount:      link.Amount,
			Currency:    "USD",
			BatchID:     localBatchID,
			Status:      model.TransactionStatusProcessing,
		}
	}
	staged, err = s.transactions.CreateBatch(ctx, staged)
	if err != nil {
		logger.Error("failed to stage transactions", "schedule_id", schedule.ID, "error", err)
		return cycleFailed
	}
	prom.IncPayoutTransactions(string(model.TransactionStatusProcessing), float64(len(staged)))

	outcome := s.submitBatch(ctx, schedule, creds, localBatchID, staged, now)

	// Advance regardless of the submission outcome: a failed attempt
	// consumes its slot, so broken credentials do not retry-loop every
	// cycle.
	if err := s.advance(ctx, schedule, now); err != nil {
		logger.Error("failed to advance schedule", "schedule_id", schedule.ID, "error", err)
		return cycleFailed
	}

	return outcome
}

func (s *PayoutService) submitBatch(ctx context.Context, schedule *model.Schedule, creds paypal.Credentials, localBatchID string, staged []*model.Transaction, now time.Time) cycleOutcome {
	req := &paypal.PayoutRequest{
		SenderBatchHeader: paypal.SenderBatchHeader{
			SenderBatchID: localBatchID,
			EmailSubject:  s.emailSubject,
		},
		Items: make([]paypal.PayoutItem, len(staged)),
	}
	for i, tx := range staged {
		link := schedule.Recipients[i]
		req.Items[i] = paypal.PayoutItem{
			RecipientType: "EMAIL",
			Amount: paypal.Amount{
				Value:    tx.Amount.StringFixed(2),
				Currency: tx.Currency,
			},
			Receiver:     link.Recipient.Email,
			SenderItemID: strconv.FormatInt(tx.ID, 10),
			Note:         link.Note,
		}
	}

	resp, err := s.gateway.CreatePayout(ctx, creds, req)
	if err != nil {
		if _, ferr := s.transactions.MarkBatchFailed(ctx, localBatchID, err.Error()); ferr != nil {
			logger.Error("failed to mark batch failed", "batch_id", localBatchID, "error", ferr)
		}
		prom.IncPayoutBatchSubmit("failed")
		prom.IncPayoutTransactions(string(model.TransactionStatusFailed), float64(len(staged)))
		logger.Error("payout submission failed", "schedule_id", schedule.ID, "batch_id", localBatchID, "error", err)
		return cycleFailed
	}

	payoutBatchID := resp.BatchHeader.PayoutBatchID
	if _, err := s.transactions.ActivateBatch(ctx, localBatchID, payoutBatchID, now); err != nil {
		logger.Error("failed to activate batch", "batch_id", localBatchID, "payout_batch_id", payoutBatchID, "error", err)
		return cycleFailed
	}
	prom.IncPayoutBatchSubmit("accepted")
	prom.IncPayoutTransactions(string(model.TransactionStatusPending), float64(len(staged)))

	logger.Info("payout batch submitted",
		"schedule_id", schedule.ID,
		"payout_batch_id", payoutBatchID,
		"items", len(staged))

	return cycleProcessed
}

func (s *PayoutService) advance(ctx context.Context, schedule *model.Schedule, now time.Time) error {
	if schedule.Frequency == model.FrequencyOneTime {
		return s.schedules.AdvanceRun(ctx, schedule.ID, now, nil, model.ScheduleStatusCompleted)
	}

	ref := now
	if schedule.NextRunDate != nil {
		ref = *schedule.NextRunDate
	}
	next := recurrence.NextRun(schedule.Frequency, ref, now, customDays(schedule))
	return s.schedules.AdvanceRun(ctx, schedule.ID, now, &next, model.ScheduleStatusActive)
}
