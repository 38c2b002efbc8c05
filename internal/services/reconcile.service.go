package services

import (
	"context"
	"strconv"
	"time"

	"github.com/graphcs/flexpay/internal/model"
	"github.com/graphcs/flexpay/pkg/logger"
	"github.com/graphcs/flexpay/pkg/prom"
)

type ReconcileTransactionRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Transaction, error)
	CompleteBatch(ctx context.Context, payoutBatchID string, completedAt time.Time) (int64, error)
	FailBatch(ctx context.Context, payoutBatchID, errorMessage string) (int64, error)
	CompleteItem(ctx context.Context, id int64, payoutItemID string, completedAt time.Time) (int64, error)
	FailItem(ctx context.Context, id int64, payoutItemID, errorMessage string) (int64, error)
	MarkItemUnclaimed(ctx context.Context, id int64, payoutItemID, note string) (int64, error)
}

// EventDeduper remembers webhook event ids across deliveries. Optional:
// the status-predicate updates are already idempotent, the deduper just
// saves the work on redeliveries.
type EventDeduper interface {
	SetNX(key string, value []byte, ttl time.Duration) (bool, error)
	Del(key string) error
}

const (
	eventDedupKeyPrefix = "webhook:event:"
	eventDedupTTL       = 72 * time.Hour
)

// ReconcileService applies asynchronous payout confirmations to
// transaction rows. It only ever moves rows out of pending (or
// self-loops pending on unclaimed); the submission path owns every
// transition out of processing. Replayed events converge without error.
type ReconcileService struct {
	transactions ReconcileTransactionRepository
	dedup        EventDeduper
}

func NewReconcileService(transactions ReconcileTransactionRepository, dedup EventDeduper) *ReconcileService {
	return &ReconcileService{
		transactions: transactions,
		dedup:        dedup,
	}
}

// HandleEvent processes one inbound webhook event. Unknown event types,
// unknown transaction ids and malformed item ids are logged and
// dropped; at-least-once delivery means a later retransmission or a
// manual status poll can recover anything we drop here.
func (s *ReconcileService) HandleEvent(ctx context.Context, ev *model.WebhookEvent, now time.Time) error {
	marked := false
	if s.dedup != nil && ev.ID != "" {
		fresh, err := s.dedup.SetNX(eventDedupKeyPrefix+ev.ID, []byte("1"), eventDedupTTL)
		switch {
		case err != nil:
			// dedup is an optimization, never a gate
			logger.Warn("webhook dedup unavailable", "event_id", ev.ID, "error", err)
		case !fresh:
			logger.Info("webhook event replayed, skipping", "event_id", ev.ID, "event_type", ev.EventType)
			return nil
		default:
			marked = true
		}
	}

	prom.IncWebhookEvent(string(ev.EventType))

	err := s.apply(ctx, ev, now)
	if err != nil && marked {
		// release the marker: the handler answers non-2xx on error and
		// the redelivery must be processed, not skipped
		if derr := s.dedup.Del(eventDedupKeyPrefix + ev.ID); derr != nil {
			logger.Warn("failed to release webhook dedup marker", "event_id", ev.ID, "error", derr)
		}
	}
	return err
}

func (s *ReconcileService) apply(ctx context.Context, ev *model.WebhookEvent, now time.Time) error {
	switch ev.EventType {
	case model.EventBatchSuccess:
		n, err := s.transactions.CompleteBatch(ctx, ev.Batch.PayoutBatchID, now)
		if err != nil {
			return err
		}
		logger.Info("payout batch completed", "payout_batch_id", ev.Batch.PayoutBatchID, "settled", n)
		return nil

	case model.EventBatchDenied:
		n, err := s.transactions.FailBatch(ctx, ev.Batch.PayoutBatchID, "payout batch denied")
		if err != nil {
			return err
		}
		logger.Warn("payout batch denied", "payout_batch_id", ev.Batch.PayoutBatchID, "failed", n)
		return nil

	case model.EventItemSucceeded:
		return s.handleItem(ctx, ev, model.TransactionStatusCompleted, func(id int64) (int64, error) {
			return s.transactions.CompleteItem(ctx, id, ev.Item.PayoutItemID, now)
		})

	case model.EventItemFailed, model.EventItemBlocked, model.EventItemReturned:
		msg := ev.Item.ErrorMessage
		if msg == "" {
			msg = itemFailureMessage(ev.EventType)
		}
		return s.handleItem(ctx, ev, model.TransactionStatusFailed, func(id int64) (int64, error) {
			return s.transactions.FailItem(ctx, id, ev.Item.PayoutItemID, msg)
		})

	case model.EventItemRefunded:
		return s.handleItem(ctx, ev, model.TransactionStatusFailed, func(id int64) (int64, error) {
			return s.transactions.FailItem(ctx, id, ev.Item.PayoutItemID, "payout refunded to sender")
		})

	case model.EventItemUnclaimed:
		return s.handleItem(ctx, ev, model.TransactionStatusPending, func(id int64) (int64, error) {
			return s.transactions.MarkItemUnclaimed(ctx, id, ev.Item.PayoutItemID, "recipient has not accepted the payout")
		})

	default:
		logger.Info("ignoring unknown webhook event type", "event_id", ev.ID, "event_type", ev.EventType)
		return nil
	}
}

// handleItem resolves the sender_item_id back to a transaction row and
// applies the transition when it is legal. Everything else is a logged
// no-op so replays and late events cannot corrupt terminal rows.
func (s *ReconcileService) handleItem(ctx context.Context, ev *model.WebhookEvent, target model.TransactionStatus, apply func(id int64) (int64, error)) error {
	id, err := strconv.ParseInt(ev.Item.SenderItemID, 10, 64)
	if err != nil {
		logger.Warn("webhook item has malformed sender_item_id", "event_id", ev.ID, "sender_item_id", ev.Item.SenderItemID)
		return nil
	}

	tx, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		logger.Warn("webhook item references unknown transaction", "event_id", ev.ID, "transaction_id", id)
		return nil
	}
	if err := model.CheckTransition(tx.Status, target); err != nil {
		if tx.Status.Terminal() {
			logger.Info("webhook item for settled transaction, skipping", "transaction_id", id, "status", tx.Status, "event_type", ev.EventType)
		} else {
			logger.Info("webhook item transition not allowed, skipping", "transaction_id", id, "status", tx.Status, "target", target, "event_type", ev.EventType)
		}
		return nil
	}

	n, err := apply(id)
	if err != nil {
		return err
	}
	if n == 0 {
		// another path settled the row between the read and the update
		logger.Info("webhook item transition raced, skipping", "transaction_id", id, "event_type", ev.EventType)
		return nil
	}

	logger.Info("transaction reconciled", "transaction_id", id, "event_type", ev.EventType)
	return nil
}

func itemFailureMessage(eventType model.WebhookEventType) string {
	switch eventType {
	case model.EventItemBlocked:
		return "payout item blocked"
	case model.EventItemReturned:
		return "payout item returned"
	default:
		return "payout item failed"
	}
}
