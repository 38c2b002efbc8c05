package services

import (
	"context"

	"github.com/graphcs/flexpay/internal/model"
)

type RecipientRepository interface {
	Create(ctx context.Context, rec *model.Recipient) (*model.Recipient, error)
	GetByID(ctx context.Context, userID, id int64) (*model.Recipient, error)
	List(ctx context.Context, userID int64) ([]*model.Recipient, error)
	Update(ctx context.Context, rec *model.Recipient) (*model.Recipient, error)
	Delete(ctx context.Context, userID, id int64) error
}

type RecipientService struct {
	recipients RecipientRepository
}

func NewRecipientService(recipients RecipientRepository) *RecipientService {
	return &RecipientService{
		recipients: recipients,
	}
}

func (s *RecipientService) Create(ctx context.Context, userID int64, req model.RecipientCreateRequest) (*model.Recipient, error) {
	rec := &model.Recipient{
		UserID:        userID,
		Name:          req.Name,
		Email:         req.Email,
		DefaultAmount: req.DefaultAmount,
		Status:        model.RecipientStatusActive,
	}
	return s.recipients.Create(ctx, rec)
}

func (s *RecipientService) Get(ctx context.Context, userID, id int64) (*model.Recipient, error) {
	return s.recipients.GetByID(ctx, userID, id)
}

func (s *RecipientService) List(ctx context.Context, userID int64) ([]*model.Recipient, error) {
	return s.recipients.List(ctx, userID)
}

func (s *RecipientService) Update(ctx context.Context, userID, id int64, req model.RecipientUpdateRequest) (*model.Recipient, error) {
	rec, err := s.recipients.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		rec.Name = *req.Name
	}
	if req.Email != nil {
		rec.Email = *req.Email
	}
	if req.DefaultAmount != nil {
		rec.DefaultAmount = req.DefaultAmount
	}
	if req.Status != nil {
		rec.Status = *req.Status
	}

	return s.recipients.Update(ctx, rec)
}

func (s *RecipientService) Delete(ctx context.Context, userID, id int64) error {
	return s.recipients.Delete(ctx, userID, id)
}
