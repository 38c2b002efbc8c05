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
	// ErrScheduleNotFound is returned when a schedule does not exist or
	// belongs to another user.
	ErrScheduleNotFound = errors.New("schedule not found")
)

type ScheduleRepository struct {
	*pg.DB
}

func NewScheduleRepository(db *pg.DB) *ScheduleRepository {
	return &ScheduleRepository{
		db,
	}
}

// Create inserts the schedule together with its recipient links.
func (r *ScheduleRepository) Create(ctx context.Context, s *model.Schedule) (*model.Schedule, error) {
	entity := toScheduleEntity(s)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return r.getByID(ctx, entity.UserID, entity.ID)
}

func (r *ScheduleRepository) GetByID(ctx context.Context, userID, id int64) (*model.Schedule, error) {
	return r.getByID(ctx, userID, id)
}

func (r *ScheduleRepository) getByID(ctx context.Context, userID, id int64) (*model.Schedule, error) {
	var entity ScheduleEntity
	err := r.Read(ctx).WithContext(ctx).
		Preload("Recipients").
		Preload("Recipients.Recipient").
		First(&entity, "id = ? AND user_id = ?", id, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrScheduleNotFound
	}
	if err != nil {
		return nil, err
	}
	return toScheduleModel(&entity), nil
}

func (r *ScheduleRepository) List(ctx context.Context, userID int64) ([]*model.Schedule, error) {
	var entities []*ScheduleEntity
	err := r.Read(ctx).WithContext(ctx).
		Preload("Recipients").
		Preload("Recipients.Recipient").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toScheduleModels(entities), nil
}

// FindDue returns active schedules whose next run is at or before now,
// with recipient links and recipients preloaded. The owning user, and
// with it the PayPal credentials, is resolved per schedule by the
// caller.
func (r *ScheduleRepository) FindDue(ctx context.Context, now time.Time) ([]*model.Schedule, error) {
	var entities []*ScheduleEntity
	err := r.Read(ctx).WithContext(ctx).
		Preload("Recipients").
		Preload("Recipients.Recipient").
		Where("status = ? AND next_run_date IS NOT NULL AND next_run_date <= ?", string(model.ScheduleStatusActive), now).
		Order("next_run_date ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toScheduleModels(entities), nil
}

// Update rewrites the schedule's own columns. Recipient links are
// replaced separately via ReplaceRecipients.
func (r *ScheduleRepository) Update(ctx context.Context, s *model.Schedule) (*model.Schedule, error) {
	entity := toScheduleEntity(s)

	res := r.Write(ctx).WithContext(ctx).Model(&ScheduleEntity{}).
		Where("id = ? AND user_id = ?", entity.ID, entity.UserID).
		Updates(map[string]interface{}{
			"name":          entity.Name,
			"frequency":     entity.Frequency,
			"custom_days":   entity.CustomDays,
			"start_date":    entity.StartDate,
			"next_run_date": entity.NextRunDate,
			"last_run_date": entity.LastRunDate,
			"status":        entity.Status,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrScheduleNotFound
	}

	return r.getByID(ctx, s.UserID, s.ID)
}

// ReplaceRecipients swaps the schedule's recipient links for the given
// set.
func (r *ScheduleRepository) ReplaceRecipients(ctx context.Context, scheduleID int64, recipients []*model.ScheduleRecipient) error {
	return r.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := r.Write(ctx).WithContext(ctx).
			Where("schedule_id = ?", scheduleID).
			Delete(&ScheduleRecipientEntity{}).Error; err != nil {
			return err
		}
		for _, sr := range recipients {
			entity := toScheduleRecipientEntity(sr)
			entity.ID = 0
			entity.ScheduleID = scheduleID
			if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// AdvanceRun records a completed occurrence: last run, the projected
// next run, and possibly a terminal status (one-time schedules complete
// after their single run).
func (r *ScheduleRepository) AdvanceRun(ctx context.Context, id int64, lastRun time.Time, nextRun *time.Time, status model.ScheduleStatus) error {
	res := r.Write(ctx).WithContext(ctx).Model(&ScheduleEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_run_date": lastRun,
			"next_run_date": nextRun,
			"status":        string(status),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// Delete removes the schedule, its recipient links and its transaction
// history in one transaction.
func (r *ScheduleRepository) Delete(ctx context.Context, userID, id int64) error {
	return r.WithinTransaction(ctx, func(ctx context.Context) error {
		var entity ScheduleEntity
		err := r.Write(ctx).WithContext(ctx).First(&entity, "id = ? AND user_id = ?", id, userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrScheduleNotFound
		}
		if err != nil {
			return err
		}

		if err := r.Write(ctx).WithContext(ctx).
			Where("schedule_id = ?", id).
			Delete(&TransactionEntity{}).Error; err != nil {
			return err
		}
		if err := r.Write(ctx).WithContext(ctx).
			Where("schedule_id = ?", id).
			Delete(&ScheduleRecipientEntity{}).Error; err != nil {
			return err
		}
		return r.Write(ctx).WithContext(ctx).Delete(&ScheduleEntity{}, "id = ?", id).Error
	})
}
