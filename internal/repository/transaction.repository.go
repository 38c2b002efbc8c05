package repository

import (
	"context"
	"errors"
	"time"

	"github.com/graphcs/flexpay/internal/model"
	"github.com/graphcs/flexpay/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrTransactionNotFound is returned when a transaction does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")
)

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

// transitionGuard returns the source status for a guarded update after
// checking the move against the transition table. A panic here means a
// repository method encodes a status move the model forbids, which is a
// programming error, not runtime input.
func transitionGuard(from, to model.TransactionStatus) string {
	if err := model.CheckTransition(from, to); err != nil {
		panic(err)
	}
	return string(from)
}

// CreateBatch stages one row per payout item. All rows share the same
// local batch id and enter in processing state.
func (r *TransactionRepository) CreateBatch(ctx context.Context, txs []*model.Transaction) ([]*model.Transaction, error) {
	entities := make([]*TransactionEntity, len(txs))
	for i, t := range txs {
		entities[i] = toTransactionEntity(t)
	}

	if err := r.Write(ctx).WithContext(ctx).Create(&entities).Error; err != nil {
		return nil, err
	}

	return toTransactionModels(entities), nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Preload("Recipient").
		First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

// List returns transaction history, newest first by default when
// f.Desc is set. User scoping goes through the owning schedule.
func (r *TransactionRepository) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&TransactionEntity{}).Preload("Recipient")

	if f.UserID != nil {
		q = q.Where("schedule_id IN (?)",
			r.Read(ctx).Model(&ScheduleEntity{}).Select("id").Where("user_id = ?", *f.UserID))
	}
	if f.ScheduleID != nil {
		q = q.Where("schedule_id = ?", *f.ScheduleID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*TransactionEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toTransactionModels(entities), total, nil
}

// ActivateBatch moves a staged batch to pending after PayPal accepted
// it: the local batch id is rewritten to PayPal's payout_batch_id, which
// becomes the reconciliation key. The status predicate makes the update
// a no-op for rows another path already moved on.
func (r *TransactionRepository) ActivateBatch(ctx context.Context, localBatchID, payoutBatchID string, processedAt time.Time) (int64, error) {
	res := r.Write(ctx).WithContext(ctx).Model(&TransactionEntity{}).
		Where("batch_id = ? AND status = ?", localBatchID, transitionGuard(model.TransactionStatusProcessing, model.TransactionStatusPending)).
		Updates(map[string]interface{}{
			"batch_id":     payoutBatchID,
			"status":       string(model.TransactionStatusPending),
			"processed_at": processedAt,
		})
	return res.RowsAffected, res.Error
}

// MarkBatchFailed fails every staged row of a batch that PayPal
// rejected.
func (r *TransactionRepository) MarkBatchFailed(ctx context.Context, localBatchID, errorMessage string) (int64, error) {
	res := r.Write(ctx).WithContext(ctx).Model(&TransactionEntity{}).
		Where("batch_id = ? AND status = ?", localBatchID, transitionGuard(model.TransactionStatusProcessing, model.TransactionStatusFailed)).
		Updates(map[string]interface{}{
			"status":        string(model.TransactionStatusFailed),
			"error_message": errorMessage,
		})
	return res.RowsAffected, res.Error
}

// CompleteBatch settles every still-pending row of an accepted batch.
// Replays touch zero rows and change nothing.
func (r *TransactionRepository) CompleteBatch(ctx context.Context, payoutBatchID string, completedAt time.Time) (int64, error) {
	res := r.Write(ctx).WithContext(ctx).Model(&TransactionEntity{}).
		Where("batch_id = ? AND status = ?", payoutBatchID, transitionGuard(model.TransactionStatusPending, model.TransactionStatusCompleted)).
		Updates(map[string]interface{}{
			"status":       string(model.TransactionStatusCompleted),
			"completed_at": completedAt,
		})
	return res.RowsAffected, res.Error
}

// FailBatch fails every still-pending row of a denied batch. Rows that
// item-level events already settled keep their state.
func (r *TransactionRepository) FailBatch(ctx context.Context, payoutBatchID, errorMessage string) (int64, error) {
	res := r.Write(ctx).WithContext(ctx).Model(&TransactionEntity{}).
		Where("batch_id = ? AND status = ?", payoutBatchID, transitionGuard(model.TransactionStatusPending, model.TransactionStatusFailed)).
		Updates(map[string]interface{}{
			"status":        string(model.TransactionStatusFailed),
			"error_message": errorMessage,
		})
	return res.RowsAffected, res.Error
}

// CompleteItem settles one transaction from an item-level event.
func (r *TransactionRepository) CompleteItem(ctx context.Context, id int64, payoutItemID string, completedAt time.Time) (int64, error) {
	res := r.Write(ctx).WithContext(ctx).Model(&TransactionEntity{}).
		Where("id = ? AND status = ?", id, transitionGuard(model.TransactionStatusPending, model.TransactionStatusCompleted)).
		Updates(map[string]interface{}{
			"status":       string(model.TransactionStatusCompleted),
			"item_id":      payoutItemID,
			"completed_at": completedAt,
		})
	return res.RowsAffected, res.Error
}

// FailItem fails one transaction from an item-level event.
func (r *TransactionRepository) FailItem(ctx context.Context, id int64, payoutItemID, errorMessage string) (int64, error) {
	res := r.Write(ctx).WithContext(ctx).Model(&TransactionEntity{}).
		Where("id = ? AND status = ?", id, transitionGuard(model.TransactionStatusPending, model.TransactionStatusFailed)).
		Updates(map[string]interface{}{
			"status":        string(model.TransactionStatusFailed),
			"item_id":       payoutItemID,
			"error_message": errorMessage,
		})
	return res.RowsAffected, res.Error
}

// MarkItemUnclaimed records that a payout item is waiting for the payee
// to claim it. The row stays pending so a later SUCCEEDED or RETURNED
// event can still settle it.
func (r *TransactionRepository) MarkItemUnclaimed(ctx context.Context, id int64, payoutItemID, note string) (int64, error) {
	res := r.Write(ctx).WithContext(ctx).Model(&TransactionEntity{}).
		Where("id = ? AND status = ?", id, transitionGuard(model.TransactionStatusPending, model.TransactionStatusPending)).
		Updates(map[string]interface{}{
			"item_id":       payoutItemID,
			"error_message": note,
		})
	return res.RowsAffected, res.Error
}
