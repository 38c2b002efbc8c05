package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/graphcs/flexpay/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockReconcileTransactionRepository struct {
	mock.Mock
}

func (m *MockReconcileTransactionRepository) GetByID(ctx context.Context, id int64) (*model.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockReconcileTransactionRepository) CompleteBatch(ctx context.Context, payoutBatchID string, completedAt time.Time) (int64, error) {
	args := m.Called(ctx, payoutBatchID, completedAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockReconcileTransactionRepository) FailBatch(ctx context.Context, payoutBatchID, errorMessage string) (int64, error) {
	args := m.Called(ctx, payoutBatchID, errorMessage)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockReconcileTransactionRepository) CompleteItem(ctx context.Context, id int64, payoutItemID string, completedAt time.Time) (int64, error) {
	args := m.Called(ctx, id, payoutItemID, completedAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockReconcileTransactionRepository) FailItem(ctx context.Context, id int64, payoutItemID, errorMessage string) (int64, error) {
	args := m.Called(ctx, id, payoutItemID, errorMessage)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockReconcileTransactionRepository) MarkItemUnclaimed(ctx context.Context, id int64, payoutItemID, note string) (int64, error) {
	args := m.Called(ctx, id, payoutItemID, note)
	return args.Get(0).(int64), args.Error(1)
}

type MockEventDeduper struct {
	mock.Mock
}

func (m *MockEventDeduper) SetNX(key string, value []byte, ttl time.Duration) (bool, error) {
	args := m.Called(key, value, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockEventDeduper) Del(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

// fakeEventDeduper keeps real SetNX/Del semantics in memory so tests can
// exercise the mark-then-release flow across deliveries.
type fakeEventDeduper struct {
	keys map[string]struct{}
}

func newFakeEventDeduper() *fakeEventDeduper {
	return &fakeEventDeduper{keys: map[string]struct{}{}}
}

func (f *fakeEventDeduper) SetNX(key string, value []byte, ttl time.Duration) (bool, error) {
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = struct{}{}
	return true, nil
}

func (f *fakeEventDeduper) Del(key string) error {
	delete(f.keys, key)
	return nil
}

func itemEvent(eventType model.WebhookEventType, senderItemID string) *model.WebhookEvent {
	return &model.WebhookEvent{
		ID:        "WH-" + senderItemID,
		EventType: eventType,
		Item: &model.ItemEvent{
			SenderItemID: senderItemID,
			PayoutItemID: "ITEM-" + senderItemID,
		},
	}
}

func TestReconcileService_BatchSuccess(t *testing.T) {
	transactions := new(MockReconcileTransactionRepository)
	ctx := context.Background()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	transactions.On("CompleteBatch", ctx, "PAYPAL-1", now).Return(int64(2), nil)

	service := NewReconcileService(transactions, nil)
	err := service.HandleEvent(ctx, &model.WebhookEvent{
		ID:        "WH-1",
		EventType: model.EventBatchSuccess,
		Batch:     &model.BatchEvent{PayoutBatchID: "PAYPAL-1", BatchStatus: "SUCCESS"},
	}, now)
	require.NoError(t, err)
	transactions.AssertExpectations(t)
}

func TestReconcileService_BatchDenied(t *testing.T) {
	transactions := new(MockReconcileTransactionRepository)
	ctx := context.Background()
	now := time.Now()

	transactions.On("FailBatch", ctx, "PAYPAL-1", "payout batch denied").Return(int64(2), nil)

	service := NewReconcileService(transactions, nil)
	err := service.HandleEvent(ctx, &model.WebhookEvent{
		ID:        "WH-2",
		EventType: model.EventBatchDenied,
		Batch:     &model.BatchEvent{PayoutBatchID: "PAYPAL-1", BatchStatus: "DENIED"},
	}, now)
	require.NoError(t, err)
	transactions.AssertExpectations(t)
}

func TestReconcileService_ItemSucceeded(t *testing.T) {
	transactions := new(MockReconcileTransactionRepository)
	ctx := context.Background()
	now := time.Now()

	transactions.On("GetByID", ctx, int64(42)).
		Return(&model.Transaction{ID: 42, Status: model.TransactionStatusPending}, nil)
	transactions.On("CompleteItem", ctx, int64(42), "ITEM-42", now).Return(int64(1), nil)

	service := NewReconcileService(transactions, nil)
	err := service.HandleEvent(ctx, itemEvent(model.EventItemSucceeded, "42"), now)
	require.NoError(t, err)
	transactions.AssertExpectations(t)
}

func TestReconcileService_ItemFailedUsesPayloadMessage(t *testing.T) {
	transactions := new(MockReconcileTransactionRepository)
	ctx := context.Background()
	now := time.Now()

	ev := itemEvent(model.EventItemFailed, "42")
	ev.Item.ErrorMessage = "Receiver is unregistered"

	transactions.On("GetByID", ctx, int64(42)).
		Return(&model.Transaction{ID: 42, Status: model.TransactionStatusPending}, nil)
	transactions.On("FailItem", ctx, int64(42), "ITEM-42", "Receiver is unregistered").Return(int64(1), nil)

	service := NewReconcileService(transactions, nil)
	require.NoError(t, service.HandleEvent(ctx, ev, now))
	transactions.AssertExpectations(t)
}

func TestReconcileService_ItemBlockedFallbackMessage(t *testing.T) {
	transactions := new(MockReconcileTransactionRepository)
	ctx := context.Background()
	now := time.Now()

	transactions.On("GetByID", ctx, int64(42)).
		Return(&model.Transaction{ID: 42, Status: model.TransactionStatusPending}, nil)
	transactions.On("FailItem", ctx, int64(42), "ITEM-42", "payout item blocked").Return(int64(1), nil)

	service := NewReconcileService(transactions, nil)
	require.NoError(t, service.HandleEvent(ctx, itemEvent(model.EventItemBlocked, "42"), now))
	transactions.AssertExpectations(t)
}

func TestReconcileService_ItemUnclaimedStaysPending(t *testing.T) {
	transactions := new(MockReconcileTransactionRepository)
	ctx := context.Background()
	now := time.Now()

	transactions.On("GetByID", ctx, int64(42)).
		Return(&model.Transaction{ID: 42, Status: model.TransactionStatusPending}, nil)
	transactions.On("MarkItemUnclaimed", ctx, int64(42), "ITEM-42", "recipient has not accepted the payout").
		Return(int64(1), nil)

	service := NewReconcileService(transactions, nil)
	require.NoError(t, service.HandleEvent(ctx, itemEvent(model.EventItemUnclaimed, "42"), now))
	transactions.AssertExpectations(t)
}

func TestReconcileService_DropsBadItems(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("malformed sender_item_id", func(t *testing.T) {
		transactions := new(MockReconcileTransactionRepository)
		service := NewReconcileService(transactions, nil)

		require.NoError(t, service.HandleEvent(ctx, itemEvent(model.EventItemSucceeded, "not-a-number"), now))
		transactions.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		transactions := new(MockReconcileTransactionRepository)
		transactions.On("GetByID", ctx, int64(999)).Return(nil, assert.AnError)
		service := NewReconcileService(transactions, nil)

		require.NoError(t, service.HandleEvent(ctx, itemEvent(model.EventItemSucceeded, "999"), now))
		transactions.AssertNotCalled(t, "CompleteItem", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("terminal transaction untouched", func(t *testing.T) {
		transactions := new(MockReconcileTransactionRepository)
		transactions.On("GetByID", ctx, int64(42)).
			Return(&model.Transaction{ID: 42, Status: model.TransactionStatusCompleted}, nil)
		service := NewReconcileService(transactions, nil)

		require.NoError(t, service.HandleEvent(ctx, itemEvent(model.EventItemFailed, "42"), now))
		transactions.AssertNotCalled(t, "FailItem", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("staged transaction not yet pending", func(t *testing.T) {
		transactions := new(MockReconcileTransactionRepository)
		transactions.On("GetByID", ctx, int64(42)).
			Return(&model.Transaction{ID: 42, Status: model.TransactionStatusProcessing}, nil)
		service := NewReconcileService(transactions, nil)

		// only the submission path moves rows out of processing
		require.NoError(t, service.HandleEvent(ctx, itemEvent(model.EventItemSucceeded, "42"), now))
		transactions.AssertNotCalled(t, "CompleteItem", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestReconcileService_UnknownEventTypeIgnored(t *testing.T) {
	transactions := new(MockReconcileTransactionRepository)
	service := NewReconcileService(transactions, nil)

	err := service.HandleEvent(context.Background(), &model.WebhookEvent{
		ID:        "WH-X",
		EventType: "PAYMENT.SALE.COMPLETED",
	}, time.Now())
	require.NoError(t, err)
	transactions.AssertNotCalled(t, "CompleteBatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcileService_DedupSkipsReplay(t *testing.T) {
	transactions := new(MockReconcileTransactionRepository)
	dedup := new(MockEventDeduper)
	ctx := context.Background()
	now := time.Now()

	ev := &model.WebhookEvent{
		ID:        "WH-1",
		EventType: model.EventBatchSuccess,
		Batch:     &model.BatchEvent{PayoutBatchID: "PAYPAL-1"},
	}

	dedup.On("SetNX", "webhook:event:WH-1", []byte("1"), eventDedupTTL).Return(true, nil).Once()
	transactions.On("CompleteBatch", ctx, "PAYPAL-1", now).Return(int64(1), nil).Once()

	service := NewReconcileService(transactions, dedup)
	require.NoError(t, service.HandleEvent(ctx, ev, now))

	// redelivery: dedup already has the id, repository is not touched again
	dedup.On("SetNX", "webhook:event:WH-1", []byte("1"), eventDedupTTL).Return(false, nil).Once()
	require.NoError(t, service.HandleEvent(ctx, ev, now))

	transactions.AssertNumberOfCalls(t, "CompleteBatch", 1)
	dedup.AssertExpectations(t)
}

func TestReconcileService_DedupReleasedOnRepositoryFailure(t *testing.T) {
	transactions := new(MockReconcileTransactionRepository)
	dedup := newFakeEventDeduper()
	ctx := context.Background()
	now := time.Now()

	ev := &model.WebhookEvent{
		ID:        "WH-1",
		EventType: model.EventBatchSuccess,
		Batch:     &model.BatchEvent{PayoutBatchID: "PAYPAL-1"},
	}

	transactions.On("CompleteBatch", ctx, "PAYPAL-1", now).
		Return(int64(0), errors.New("connection reset by peer")).Once()
	transactions.On("CompleteBatch", ctx, "PAYPAL-1", now).Return(int64(2), nil).Once()

	service := NewReconcileService(transactions, dedup)

	// first delivery fails mid-apply; the marker must not survive it,
	// otherwise PayPal's redelivery would be skipped as a replay
	require.Error(t, service.HandleEvent(ctx, ev, now))
	require.NoError(t, service.HandleEvent(ctx, ev, now))
	transactions.AssertNumberOfCalls(t, "CompleteBatch", 2)

	// a third delivery after the successful apply is a true replay
	require.NoError(t, service.HandleEvent(ctx, ev, now))
	transactions.AssertNumberOfCalls(t, "CompleteBatch", 2)
}

func TestReconcileService_DedupFailureIsNotAGate(t *testing.T) {
	transactions := new(MockReconcileTransactionRepository)
	dedup := new(MockEventDeduper)
	ctx := context.Background()
	now := time.Now()

	dedup.On("SetNX", mock.Anything, mock.Anything, mock.Anything).Return(false, assert.AnError)
	transactions.On("CompleteBatch", ctx, "PAYPAL-1", now).Return(int64(1), nil)

	service := NewReconcileService(transactions, dedup)
	err := service.HandleEvent(ctx, &model.WebhookEvent{
		ID:        "WH-1",
		EventType: model.EventBatchSuccess,
		Batch:     &model.BatchEvent{PayoutBatchID: "PAYPAL-1"},
	}, now)
	require.NoError(t, err)
	transactions.AssertExpectations(t)
}
