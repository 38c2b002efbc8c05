package services

import (
	"context"

	"github.com/graphcs/flexpay/internal/model"
	"github.com/graphcs/flexpay/internal/paypal"
	"github.com/graphcs/flexpay/pkg/logger"
	"github.com/pkg/errors"
)

// PayPalGateway is the slice of the gateway client the services need.
type PayPalGateway interface {
	GetAccessToken(ctx context.Context, creds paypal.Credentials) (string, error)
	CreatePayout(ctx context.Context, creds paypal.Credentials, payout *paypal.PayoutRequest) (*paypal.PayoutBatchResponse, error)
	GetPayoutStatus(ctx context.Context, creds paypal.Credentials, payoutBatchID string) (*paypal.PayoutBatchResponse, error)
	VerifyWebhookSignature(ctx context.Context, creds paypal.Credentials, webhookID string, sig paypal.WebhookSignature, event []byte) (bool, error)
}

type CredentialRepository interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	UpdatePayPalCredentials(ctx context.Context, userID int64, clientID, clientSecret, mode, paypalEmail string) error
	ClearPayPalCredentials(ctx context.Context, userID int64) error
}

type PayPalService struct {
	users   CredentialRepository
	gateway PayPalGateway
}

func NewPayPalService(users CredentialRepository, gateway PayPalGateway) *PayPalService {
	return &PayPalService{
		users:   users,
		gateway: gateway,
	}
}

// Connect verifies the submitted credentials with a live token exchange
// and only stores them on success. A user can re-connect at any time;
// the new credentials replace the old ones.
func (s *PayPalService) Connect(ctx context.Context, userID int64, req model.PayPalConnectRequest) (*model.User, error) {
	creds := paypal.Credentials{
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		Mode:         model.PayPalMode(req.Mode),
	}

	if _, err := s.gateway.GetAccessToken(ctx, creds); err != nil {
		return nil, errors.Wrap(err, "credential verification failed")
	}

	if err := s.users.UpdatePayPalCredentials(ctx, userID, req.ClientID, req.ClientSecret, req.Mode, req.PayPalEmail); err != nil {
		return nil, err
	}

	logger.Info("paypal account connected", "user_id", userID, "mode", req.Mode)

	return s.users.GetByID(ctx, userID)
}

// Disconnect wipes the stored credentials. Transaction history is kept;
// pending transactions continue to reconcile through the webhook path
// only if the webhook configuration outlives the disconnect.
func (s *PayPalService) Disconnect(ctx context.Context, userID int64) error {
	if err := s.users.ClearPayPalCredentials(ctx, userID); err != nil {
		return err
	}
	logger.Info("paypal account disconnected", "user_id", userID)
	return nil
}

// PayoutStatus polls the processor for a batch's current state on
// behalf of the user. Manual fallback for missed webhooks.
func (s *PayPalService) PayoutStatus(ctx context.Context, userID int64, payoutBatchID string) (*paypal.PayoutBatchResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	creds, err := ResolveCredentials(user)
	if err != nil {
		return nil, err
	}
	return s.gateway.GetPayoutStatus(ctx, creds, payoutBatchID)
}
