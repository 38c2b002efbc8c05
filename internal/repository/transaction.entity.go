package repository

import (
	"time"

	"github.com/graphcs/flexpay/internal/model"
	"github.com/shopspring/decimal"
)

type TransactionEntity struct {
	ID          int64            `db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	ScheduleID  int64            `db:"schedule_id"  gorm:"column:schedule_id;not null;index"`
	Schedule    *ScheduleEntity  `gorm:"foreignKey:ScheduleID;references:ID;constraint:OnDelete:CASCADE"`
	RecipientID int64            `db:"recipient_id" gorm:"column:recipient_id;not null;index"`
	Recipient   *RecipientEntity `gorm:"foreignKey:RecipientID;references:ID"`
	Amount      decimal.Decimal  `db:"amount"       gorm:"column:amount;type:decimal(12,2);not null"`
	Currency    string           `db:"currency"     gorm:"column:currency;not null;default:USD"`

	BatchID      string `db:"batch_id"      gorm:"column:batch_id;not null;index"`
	ItemID       string `db:"item_id"       gorm:"column:item_id"`
	Status       string `db:"status"        gorm:"column:status;not null;index"`
	ErrorMessage string `db:"error_message" gorm:"column:error_message"`

	CreatedAt   time.Time  `db:"created_at"   gorm:"column:created_at;autoCreateTime"`
	ProcessedAt *time.Time `db:"processed_at" gorm:"column:processed_at"`
	CompletedAt *time.Time `db:"completed_at" gorm:"column:completed_at"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(t *model.Transaction) *TransactionEntity {
	if t == nil {
		return nil
	}
	return &TransactionEntity{
		ID:           t.ID,
		ScheduleID:   t.ScheduleID,
		RecipientID:  t.RecipientID,
		Amount:       t.Amount,
		Currency:     t.Currency,
		BatchID:      t.BatchID,
		ItemID:       t.ItemID,
		Status:       string(t.Status),
		ErrorMessage: t.ErrorMessage,
		CreatedAt:    t.CreatedAt,
		ProcessedAt:  t.ProcessedAt,
		CompletedAt:  t.CompletedAt,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	return &model.Transaction{
		ID:           e.ID,
		ScheduleID:   e.ScheduleID,
		RecipientID:  e.RecipientID,
		Recipient:    toRecipientModel(e.Recipient),
		Amount:       e.Amount,
		Currency:     e.Currency,
		BatchID:      e.BatchID,
		ItemID:       e.ItemID,
		Status:       model.TransactionStatus(e.Status),
		ErrorMessage: e.ErrorMessage,
		CreatedAt:    e.CreatedAt,
		ProcessedAt:  e.ProcessedAt,
		CompletedAt:  e.CompletedAt,
	}
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
