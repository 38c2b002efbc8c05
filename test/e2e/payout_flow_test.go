package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/graphcs/flexpay/internal/model"
	"github.com/graphcs/flexpay/internal/paypal"
	"github.com/graphcs/flexpay/internal/repository"
	"github.com/graphcs/flexpay/internal/services"
	"github.com/graphcs/flexpay/pkg/pg"
	"github.com/graphcs/flexpay/pkg/redis"
	"github.com/graphcs/flexpay/test/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestEnvironment struct {
	DB               *pg.DB
	RedisAdapter     redis.RedisAdapter
	PayPalServer     *httptest.Server
	UserRepo         *repository.UserRepository
	ScheduleRepo     *repository.ScheduleRepository
	TransactionRepo  *repository.TransactionRepository
	PayoutService    *services.PayoutService
	ReconcileService *services.ReconcileService

	// payouts received by the fake PayPal API, keyed by payout_batch_id
	ReceivedBatches map[string][]string
}

func setupE2EEnvironment(t *testing.T) *TestEnvironment {
	env := &TestEnvironment{
		DB:              helpers.SetupTestDB(t),
		ReceivedBatches: make(map[string][]string),
	}
	_, env.RedisAdapter = helpers.SetupTestRedis(t)

	batchSeq := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "e2e-token",
			"token_type":   "Bearer",
			"expires_in":   32400,
		})
	})
	mux.HandleFunc("/v1/payments/payouts", func(w http.ResponseWriter, r *http.Request) {
		var req paypal.PayoutRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		batchSeq++
		payoutBatchID := fmt.Sprintf("E2E-BATCH-%d", batchSeq)
		for _, item := range req.Items {
			env.ReceivedBatches[payoutBatchID] = append(env.ReceivedBatches[payoutBatchID], item.SenderItemID)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"batch_header": map[string]any{
				"payout_batch_id": payoutBatchID,
				"batch_status":    "PENDING",
			},
		})
	})
	env.PayPalServer = httptest.NewServer(mux)
	t.Cleanup(env.PayPalServer.Close)

	client := paypal.NewClient(&paypal.Config{
		SandboxBaseURL: env.PayPalServer.URL,
		LiveBaseURL:    env.PayPalServer.URL,
		Timeout:        5 * time.Second,
	})

	env.UserRepo = repository.NewUserRepository(env.DB)
	env.ScheduleRepo = repository.NewScheduleRepository(env.DB)
	env.TransactionRepo = repository.NewTransactionRepository(env.DB)

	env.PayoutService = services.NewPayoutService(env.ScheduleRepo, env.TransactionRepo, env.UserRepo, client, "Payout")
	env.ReconcileService = services.NewReconcileService(env.TransactionRepo, env.RedisAdapter)

	return env
}

func (env *TestEnvironment) deliverWebhook(t *testing.T, ctx context.Context, raw map[string]any, now time.Time) {
	body, err := json.Marshal(raw)
	require.NoError(t, err)
	ev, err := model.ParseWebhookEvent(body)
	require.NoError(t, err)
	require.NoError(t, env.ReconcileService.HandleEvent(ctx, ev, now))
}

func TestPayoutFlow_EndToEnd(t *testing.T) {
	env := setupE2EEnvironment(t)
	ctx := context.Background()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	user := helpers.CreateTestUser(t, env.DB, "owner@example.com", true)
	recA := helpers.CreateTestRecipient(t, env.DB, user.ID, "a@example.com")
	recB := helpers.CreateTestRecipient(t, env.DB, user.ID, "b@example.com")
	schedule := helpers.CreateTestSchedule(t, env.DB, user.ID, "weekly", now.Add(-time.Hour), map[int64]string{
		recA.ID: "50.00",
		recB.ID: "25.50",
	})

	// cycle 1: schedule is due, batch is submitted and accepted
	result, err := env.PayoutService.ProcessDueSchedules(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, services.CycleResult{Processed: 1}, result)

	require.Len(t, env.ReceivedBatches, 1)

	txs, total, err := env.TransactionRepo.List(ctx, model.TransactionFilter{UserID: &user.ID})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	var payoutBatchID string
	for _, tx := range txs {
		assert.Equal(t, model.TransactionStatusPending, tx.Status)
		assert.NotNil(t, tx.ProcessedAt)
		payoutBatchID = tx.BatchID
	}
	assert.Contains(t, env.ReceivedBatches, payoutBatchID)

	// recurrence advanced a week past the consumed slot
	updated, err := env.ScheduleRepo.GetByID(ctx, user.ID, schedule.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.NextRunDate)
	assert.True(t, updated.NextRunDate.After(now))
	require.NotNil(t, updated.LastRunDate)

	// cycle 2 at the same instant: nothing due anymore
	result, err = env.PayoutService.ProcessDueSchedules(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, services.CycleResult{}, result)

	// webhook: one item succeeds explicitly, then the batch settles
	settleTime := now.Add(10 * time.Minute)
	env.deliverWebhook(t, ctx, map[string]any{
		"id":         "WH-E2E-1",
		"event_type": "PAYMENT.PAYOUTS-ITEM.SUCCEEDED",
		"resource": map[string]any{
			"payout_item_id":  "E2E-ITEM-1",
			"payout_batch_id": payoutBatchID,
			"sender_item_id":  fmt.Sprintf("%d", txs[0].ID),
		},
	}, settleTime)

	env.deliverWebhook(t, ctx, map[string]any{
		"id":         "WH-E2E-2",
		"event_type": "PAYMENT.PAYOUTSBATCH.SUCCESS",
		"resource": map[string]any{
			"batch_header": map[string]any{
				"payout_batch_id": payoutBatchID,
				"batch_status":    "SUCCESS",
			},
		},
	}, settleTime)

	txs, _, err = env.TransactionRepo.List(ctx, model.TransactionFilter{UserID: &user.ID})
	require.NoError(t, err)
	for _, tx := range txs {
		assert.Equal(t, model.TransactionStatusCompleted, tx.Status)
		require.NotNil(t, tx.CompletedAt)
	}

	// replayed batch event is deduped and cannot disturb settled rows
	env.deliverWebhook(t, ctx, map[string]any{
		"id":         "WH-E2E-2",
		"event_type": "PAYMENT.PAYOUTSBATCH.SUCCESS",
		"resource": map[string]any{
			"batch_header": map[string]any{
				"payout_batch_id": payoutBatchID,
				"batch_status":    "SUCCESS",
			},
		},
	}, settleTime.Add(time.Hour))

	replayed, err := env.TransactionRepo.GetByID(ctx, txs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusCompleted, replayed.Status)
}

func TestPayoutFlow_UnconnectedUserIsSkipped(t *testing.T) {
	env := setupE2EEnvironment(t)
	ctx := context.Background()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	user := helpers.CreateTestUser(t, env.DB, "newcomer@example.com", false)
	rec := helpers.CreateTestRecipient(t, env.DB, user.ID, "payee@example.com")
	due := now.Add(-time.Hour)
	schedule := helpers.CreateTestSchedule(t, env.DB, user.ID, "weekly", due, map[int64]string{
		rec.ID: "10.00",
	})

	result, err := env.PayoutService.ProcessDueSchedules(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, services.CycleResult{Skipped: 1}, result)

	// nothing submitted, nothing staged, slot not consumed
	assert.Empty(t, env.ReceivedBatches)
	_, total, err := env.TransactionRepo.List(ctx, model.TransactionFilter{UserID: &user.ID})
	require.NoError(t, err)
	assert.Zero(t, total)

	unchanged, err := env.ScheduleRepo.GetByID(ctx, user.ID, schedule.ID)
	require.NoError(t, err)
	require.NotNil(t, unchanged.NextRunDate)
	assert.Equal(t, due.UTC(), unchanged.NextRunDate.UTC())
}

func TestPayoutFlow_DeniedBatchFailsTransactions(t *testing.T) {
	env := setupE2EEnvironment(t)
	ctx := context.Background()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	user := helpers.CreateTestUser(t, env.DB, "owner@example.com", true)
	rec := helpers.CreateTestRecipient(t, env.DB, user.ID, "payee@example.com")
	helpers.CreateTestSchedule(t, env.DB, user.ID, "one_time", now.Add(-time.Hour), map[int64]string{
		rec.ID: "99.99",
	})

	result, err := env.PayoutService.ProcessDueSchedules(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, services.CycleResult{Processed: 1}, result)

	txs, _, err := env.TransactionRepo.List(ctx, model.TransactionFilter{UserID: &user.ID})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	payoutBatchID := txs[0].BatchID

	env.deliverWebhook(t, ctx, map[string]any{
		"id":         "WH-E2E-DENY",
		"event_type": "PAYMENT.PAYOUTSBATCH.DENIED",
		"resource": map[string]any{
			"batch_header": map[string]any{
				"payout_batch_id": payoutBatchID,
				"batch_status":    "DENIED",
			},
		},
	}, now.Add(time.Minute))

	failed, err := env.TransactionRepo.GetByID(ctx, txs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusFailed, failed.Status)
	assert.NotEmpty(t, failed.ErrorMessage)
}
