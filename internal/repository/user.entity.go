package repository

import (
	"time"

	"github.com/graphcs/flexpay/internal/model"
)

type UserEntity struct {
	ID           int64     `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	Email        string    `db:"email"         gorm:"column:email;not null;uniqueIndex"`
	Name         string    `db:"name"          gorm:"column:name"`
	PasswordHash string    `db:"password_hash" gorm:"column:password_hash;not null"`
	CreatedAt    time.Time `db:"created_at"    gorm:"column:created_at;autoCreateTime"`

	PayPalConnected    bool   `db:"paypal_connected"     gorm:"column:paypal_connected;not null;default:false"`
	PayPalEmail        string `db:"paypal_email"         gorm:"column:paypal_email"`
	PayPalClientID     string `db:"paypal_client_id"     gorm:"column:paypal_client_id"`
	PayPalClientSecret string `db:"paypal_client_secret" gorm:"column:paypal_client_secret"`
	PayPalMode         string `db:"paypal_mode"          gorm:"column:paypal_mode"`
}

func (UserEntity) TableName() string {
	return "users"
}

func toUserEntity(u *model.User) *UserEntity {
	if u == nil {
		return nil
	}
	return &UserEntity{
		ID:                 u.ID,
		Email:              u.Email,
		Name:               u.Name,
		PasswordHash:       u.PasswordHash,
		CreatedAt:          u.CreatedAt,
		PayPalConnected:    u.PayPalConnected,
		PayPalEmail:        u.PayPalEmail,
		PayPalClientID:     u.PayPalClientID,
		PayPalClientSecret: u.PayPalClientSecret,
		PayPalMode:         u.PayPalMode,
	}
}

func toUserModel(e *UserEntity) *model.User {
	if e == nil {
		return nil
	}
	return &model.User{
		ID:                 e.ID,
		Email:              e.Email,
		Name:               e.Name,
		PasswordHash:       e.PasswordHash,
		CreatedAt:          e.CreatedAt,
		PayPalConnected:    e.PayPalConnected,
		PayPalEmail:        e.PayPalEmail,
		PayPalClientID:     e.PayPalClientID,
		PayPalClientSecret: e.PayPalClientSecret,
		PayPalMode:         e.PayPalMode,
	}
}
