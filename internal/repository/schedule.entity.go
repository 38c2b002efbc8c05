package repository

import (
	"time"

	"github.com/graphcs/flexpay/internal/model"
	"github.com/shopspring/decimal"
)

type ScheduleEntity struct {
	ID          int64       `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	UserID      int64       `db:"user_id"       gorm:"column:user_id;not null;index"`
	User        *UserEntity `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	Name        string      `db:"name"          gorm:"column:name;not null"`
	Frequency   string      `db:"frequency"     gorm:"column:frequency;not null"`
	CustomDays  *int        `db:"custom_days"   gorm:"column:custom_days"`
	StartDate   time.Time   `db:"start_date"    gorm:"column:start_date;not null"`
	NextRunDate *time.Time  `db:"next_run_date" gorm:"column:next_run_date;index"`
	LastRunDate *time.Time  `db:"last_run_date" gorm:"column:last_run_date"`
	Status      string      `db:"status"        gorm:"column:status;not null;default:active;index"`
	CreatedAt   time.Time   `db:"created_at"    gorm:"column:created_at;autoCreateTime"`

	Recipients []*ScheduleRecipientEntity `gorm:"foreignKey:ScheduleID"`
}

func (ScheduleEntity) TableName() string {
	return "schedules"
}

type ScheduleRecipientEntity struct {
	ID          int64            `db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	ScheduleID  int64            `db:"schedule_id"  gorm:"column:schedule_id;not null;index"`
	RecipientID int64            `db:"recipient_id" gorm:"column:recipient_id;not null;index"`
	Recipient   *RecipientEntity `gorm:"foreignKey:RecipientID;references:ID"`
	Amount      decimal.Decimal  `db:"amount"       gorm:"column:amount;type:decimal(12,2);not null"`
	Note        string           `db:"note"         gorm:"column:note"`
}

func (ScheduleRecipientEntity) TableName() string {
	return "schedule_recipients"
}

func toScheduleEntity(s *model.Schedule) *ScheduleEntity {
	if s == nil {
		return nil
	}
	entity := &ScheduleEntity{
		ID:          s.ID,
		UserID:      s.UserID,
		Name:        s.Name,
		Frequency:   string(s.Frequency),
		CustomDays:  s.CustomDays,
		StartDate:   s.StartDate,
		NextRunDate: s.NextRunDate,
		LastRunDate: s.LastRunDate,
		Status:      string(s.Status),
		CreatedAt:   s.CreatedAt,
	}
	for _, sr := range s.Recipients {
		entity.Recipients = append(entity.Recipients, toScheduleRecipientEntity(sr))
	}
	return entity
}

func toScheduleRecipientEntity(sr *model.ScheduleRecipient) *ScheduleRecipientEntity {
	if sr == nil {
		return nil
	}
	return &ScheduleRecipientEntity{
		ID:          sr.ID,
		ScheduleID:  sr.ScheduleID,
		RecipientID: sr.RecipientID,
		Amount:      sr.Amount,
		Note:        sr.Note,
	}
}

func toScheduleModel(e *ScheduleEntity) *model.Schedule {
	if e == nil {
		return nil
	}
	s := &model.Schedule{
		ID:          e.ID,
		UserID:      e.UserID,
		Name:        e.Name,
		Frequency:   model.Frequency(e.Frequency),
		CustomDays:  e.CustomDays,
		StartDate:   e.StartDate,
		NextRunDate: e.NextRunDate,
		LastRunDate: e.LastRunDate,
		Status:      model.ScheduleStatus(e.Status),
		CreatedAt:   e.CreatedAt,
	}
	for _, sr := range e.Recipients {
		s.Recipients = append(s.Recipients, toScheduleRecipientModel(sr))
	}
	return s
}

func toScheduleRecipientModel(e *ScheduleRecipientEntity) *model.ScheduleRecipient {
	if e == nil {
		return nil
	}
	return &model.ScheduleRecipient{
		ID:          e.ID,
		ScheduleID:  e.ScheduleID,
		RecipientID: e.RecipientID,
		Recipient:   toRecipientModel(e.Recipient),
		Amount:      e.Amount,
		Note:        e.Note,
	}
}

func toScheduleModels(entities []*ScheduleEntity) []*model.Schedule {
	if entities == nil {
		return nil
	}
	models := make([]*model.Schedule, len(entities))
	for i, e := range entities {
		models[i] = toScheduleModel(e)
	}
	return models
}
