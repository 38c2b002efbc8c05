package repository

import (
	"context"
	"errors"

	"github.com/graphcs/flexpay/internal/model"
	"github.com/graphcs/flexpay/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrRecipientNotFound is returned when a recipient does not exist or
	// belongs to another user.
	ErrRecipientNotFound = errors.New("recipient not found")
	// ErrRecipientInUse is returned when deletion is rejected because
	// schedules still reference the recipient.
	ErrRecipientInUse = errors.New("recipient is referenced by schedules")
	// ErrRecipientEmailTaken is returned when the user already has a
	// recipient with that email.
	ErrRecipientEmailTaken = errors.New("recipient email already exists for this user")
)

type RecipientRepository struct {
	*pg.DB
}

func NewRecipientRepository(db *pg.DB) *RecipientRepository {
	return &RecipientRepository{
		db,
	}
}

func (r *RecipientRepository) Create(ctx context.Context, rec *model.Recipient) (*model.Recipient, error) {
	entity := toRecipientEntity(rec)

	taken, err := r.emailTaken(ctx, rec.UserID, rec.Email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrRecipientEmailTaken
	}

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toRecipientModel(entity), nil
}

// emailTaken reports whether the user already has another recipient
// with this email. The unique (user_id, email) index backs this up at
// the database level.
func (r *RecipientRepository) emailTaken(ctx context.Context, userID int64, email string, excludeID int64) (bool, error) {
	var count int64
	q := r.Read(ctx).WithContext(ctx).Model(&RecipientEntity{}).
		Where("user_id = ? AND email = ?", userID, email)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *RecipientRepository) GetByID(ctx context.Context, userID, id int64) (*model.Recipient, error) {
	var entity RecipientEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ? AND user_id = ?", id, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecipientNotFound
	}
	if err != nil {
		return nil, err
	}
	return toRecipientModel(&entity), nil
}

func (r *RecipientRepository) List(ctx context.Context, userID int64) ([]*model.Recipient, error) {
	var entities []*RecipientEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toRecipientModels(entities), nil
}

func (r *RecipientRepository) Update(ctx context.Context, rec *model.Recipient) (*model.Recipient, error) {
	entity := toRecipientEntity(rec)

	taken, err := r.emailTaken(ctx, rec.UserID, rec.Email, rec.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrRecipientEmailTaken
	}

	res := r.Write(ctx).WithContext(ctx).Model(&RecipientEntity{}).
		Where("id = ? AND user_id = ?", entity.ID, entity.UserID).
		Updates(map[string]interface{}{
			"name":           entity.Name,
			"email":          entity.Email,
			"default_amount": entity.DefaultAmount,
			"status":         entity.Status,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrRecipientNotFound
	}

	return r.GetByID(ctx, rec.UserID, rec.ID)
}

// Delete removes a recipient unless any schedule still references it.
// The check and the delete run in the caller's transaction when one is
// on the context.
func (r *RecipientRepository) Delete(ctx context.Context, userID, id int64) error {
	var refs int64
	err := r.Write(ctx).WithContext(ctx).Model(&ScheduleRecipientEntity{}).
		Where("recipient_id = ?", id).
		Count(&refs).Error
	if err != nil {
		return err
	}
	if refs > 0 {
		return ErrRecipientInUse
	}

	res := r.Write(ctx).WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&RecipientEntity{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecipientNotFound
	}
	return nil
}
