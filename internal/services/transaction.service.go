package services

import (
	"context"
	"errors"

	"github.com/graphcs/flexpay/internal/model"
	"github.com/graphcs/flexpay/internal/repository"
)

var ErrTransactionNotFound = errors.New("transaction not found")

type TransactionHistoryRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Transaction, error)
	List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error)
}

type ScheduleGetter interface {
	GetByID(ctx context.Context, userID, id int64) (*model.Schedule, error)
}

// TransactionService is the read side of payout history.
type TransactionService struct {
	transactions TransactionHistoryRepository
	schedules    ScheduleGetter
}

func NewTransactionService(transactions TransactionHistoryRepository, schedules ScheduleGetter) *TransactionService {
	return &TransactionService{
		transactions: transactions,
		schedules:    schedules,
	}
}

func (s *TransactionService) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	return s.transactions.List(ctx, f)
}

// Get returns one transaction, scoped to the requesting user through
// the owning schedule.
func (s *TransactionService) Get(ctx context.Context, userID, id int64) (*model.Transaction, error) {
	tx, err := s.transactions.GetByID(ctx, id)
	if errors.Is(err, repository.ErrTransactionNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.schedules.GetByID(ctx, userID, tx.ScheduleID); err != nil {
		return nil, ErrTransactionNotFound
	}
	return tx, nil
}
