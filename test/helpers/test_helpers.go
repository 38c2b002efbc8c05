package helpers

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/graphcs/flexpay/internal/repository"
	"github.com/graphcs/flexpay/pkg/pg"
	"github.com/graphcs/flexpay/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.UserEntity{},
		&repository.RecipientEntity{},
		&repository.ScheduleEntity{},
		&repository.ScheduleRecipientEntity{},
		&repository.TransactionEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr := miniredis.RunT(t)

	adapter, err := redis.NewRedisAdapter("e2e-"+t.Name(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestUser(t *testing.T, db *pg.DB, email string, connected bool) *repository.UserEntity {
	ctx := context.Background()
	user := &repository.UserEntity{
		Email:        email,
		Name:         "Test User",
		PasswordHash: "x",
	}
	if connected {
		user.PayPalConnected = true
		user.PayPalClientID = "test-client-id"
		user.PayPalClientSecret = "test-client-secret"
		user.PayPalMode = "sandbox"
	}
	err := db.Write(ctx).Create(user).Error
	require.NoError(t, err)
	return user
}

func CreateTestRecipient(t *testing.T, db *pg.DB, userID int64, email string) *repository.RecipientEntity {
	ctx := context.Background()
	rec := &repository.RecipientEntity{
		UserID: userID,
		Name:   "Test Recipient",
		Email:  email,
		Status: "active",
	}
	err := db.Write(ctx).Create(rec).Error
	require.NoError(t, err)
	return rec
}

func CreateTestSchedule(t *testing.T, db *pg.DB, userID int64, frequency string, nextRun time.Time, links map[int64]string) *repository.ScheduleEntity {
	ctx := context.Background()
	schedule := &repository.ScheduleEntity{
		UserID:      userID,
		Name:        "Test Schedule",
		Frequency:   frequency,
		StartDate:   nextRun,
		NextRunDate: &nextRun,
		Status:      "active",
	}
	for recipientID, amount := range links {
		schedule.Recipients = append(schedule.Recipients, &repository.ScheduleRecipientEntity{
			RecipientID: recipientID,
			Amount:      decimal.RequireFromString(amount),
		})
	}
	err := db.Write(ctx).Create(schedule).Error
	require.NoError(t, err)
	return schedule
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
