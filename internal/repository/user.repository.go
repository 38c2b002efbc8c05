package repository

import (
	"context"
	"errors"

	"github.com/graphcs/flexpay/internal/model"
	"github.com/graphcs/flexpay/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound is returned when a user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

type UserRepository struct {
	*pg.DB
}

func NewUserRepository(db *pg.DB) *UserRepository {
	return &UserRepository{
		db,
	}
}

func (r *UserRepository) Create(ctx context.Context, u *model.User) (*model.User, error) {
	entity := toUserEntity(u)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toUserModel(entity), nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var entity UserEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return toUserModel(&entity), nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var entity UserEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return toUserModel(&entity), nil
}

// UpdatePayPalCredentials stores verified credentials and marks the
// account connected in one statement.
func (r *UserRepository) UpdatePayPalCredentials(ctx context.Context, userID int64, clientID, clientSecret, mode, paypalEmail string) error {
	res := r.Write(ctx).WithContext(ctx).Model(&UserEntity{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"paypal_connected":     true,
			"paypal_client_id":     clientID,
			"paypal_client_secret": clientSecret,
			"paypal_mode":          mode,
			"paypal_email":         paypalEmail,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ClearPayPalCredentials disconnects the account and wipes the stored
// credentials. Existing transactions keep their history.
func (r *UserRepository) ClearPayPalCredentials(ctx context.Context, userID int64) error {
	res := r.Write(ctx).WithContext(ctx).Model(&UserEntity{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"paypal_connected":     false,
			"paypal_client_id":     "",
			"paypal_client_secret": "",
			"paypal_mode":          "",
			"paypal_email":         "",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
