package repository

import (
	"time"

	"github.com/graphcs/flexpay/internal/model"
	"github.com/shopspring/decimal"
)

type RecipientEntity struct {
	ID            int64            `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	UserID        int64            `db:"user_id"        gorm:"column:user_id;not null;uniqueIndex:idx_recipients_user_email"`
	User          *UserEntity      `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	Name          string           `db:"name"           gorm:"column:name;not null"`
	Email         string           `db:"email"          gorm:"column:email;not null;uniqueIndex:idx_recipients_user_email"`
	DefaultAmount *decimal.Decimal `db:"default_amount" gorm:"column:default_amount;type:decimal(12,2)"`
	Status        string           `db:"status"         gorm:"column:status;not null;default:active"`
	CreatedAt     time.Time        `db:"created_at"     gorm:"column:created_at;autoCreateTime"`
}

func (RecipientEntity) TableName() string {
	return "recipients"
}

func toRecipientEntity(rec *model.Recipient) *RecipientEntity {
	if rec == nil {
		return nil
	}
	return &RecipientEntity{
		ID:            rec.ID,
		UserID:        rec.UserID,
		Name:          rec.Name,
		Email:         rec.Email,
		DefaultAmount: rec.DefaultAmount,
		Status:        string(rec.Status),
		CreatedAt:     rec.CreatedAt,
	}
}

func toRecipientModel(e *RecipientEntity) *model.Recipient {
	if e == nil {
		return nil
	}
	return &model.Recipient{
		ID:            e.ID,
		UserID:        e.UserID,
		Name:          e.Name,
		Email:         e.Email,
		DefaultAmount: e.DefaultAmount,
		Status:        model.RecipientStatus(e.Status),
		CreatedAt:     e.CreatedAt,
	}
}

func toRecipientModels(entities []*RecipientEntity) []*model.Recipient {
	if entities == nil {
		return nil
	}
	models := make([]*model.Recipient, len(entities))
	for i, e := range entities {
		models[i] = toRecipientModel(e)
	}
	return models
}
