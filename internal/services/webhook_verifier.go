package services

import (
	"context"

	"github.com/graphcs/flexpay/internal/paypal"
)

// PlatformWebhookVerifier validates webhook transmission signatures
// with the platform app's own credentials. Per-user credentials are
// never involved here; the webhook subscription belongs to the app.
type PlatformWebhookVerifier struct {
	gateway   PayPalGateway
	creds     paypal.Credentials
	webhookID string
}

func NewPlatformWebhookVerifier(gateway PayPalGateway, creds paypal.Credentials, webhookID string) *PlatformWebhookVerifier {
	return &PlatformWebhookVerifier{
		gateway:   gateway,
		creds:     creds,
		webhookID: webhookID,
	}
}

func (v *PlatformWebhookVerifier) Verify(ctx context.Context, sig paypal.WebhookSignature, event []byte) (bool, error) {
	return v.gateway.VerifyWebhookSignature(ctx, v.creds, v.webhookID, sig, event)
}
