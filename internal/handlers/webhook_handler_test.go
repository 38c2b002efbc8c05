package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/graphcs/flexpay/internal/model"
	"github.com/graphcs/flexpay/internal/paypal"
	xhttp "github.com/graphcs/flexpay/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

type MockReconcileService struct {
	mock.Mock
}

func (m *MockReconcileService) HandleEvent(ctx context.Context, ev *model.WebhookEvent, now time.Time) error {
	args := m.Called(ctx, ev, now)
	return args.Error(0)
}

type MockWebhookVerifier struct {
	mock.Mock
}

func (m *MockWebhookVerifier) Verify(ctx context.Context, sig paypal.WebhookSignature, event []byte) (bool, error) {
	args := m.Called(ctx, sig, event)
	return args.Bool(0), args.Error(1)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func batchSuccessBody(payoutBatchID string) []byte {
	b, _ := json.Marshal(map[string]any{
		"id":         "WH-1",
		"event_type": "PAYMENT.PAYOUTSBATCH.SUCCESS",
		"resource": map[string]any{
			"batch_header": map[string]any{
				"payout_batch_id": payoutBatchID,
				"batch_status":    "SUCCESS",
			},
		},
	})
	return b
}

func TestWebhookHandler_HandlePayPalWebhook(t *testing.T) {
	t.Run("delivers parsed event", func(t *testing.T) {
		svc := new(MockReconcileService)
		handler := NewWebhookHandler(svc, nil)

		svc.On("HandleEvent", mock.Anything, mock.MatchedBy(func(ev *model.WebhookEvent) bool {
			return ev.EventType == model.EventBatchSuccess && ev.Batch.PayoutBatchID == "PAYPAL-1"
		}), mock.Anything).Return(nil)

		ctx := setupTestContext("POST", "/webhooks/paypal", batchSuccessBody("PAYPAL-1"))
		handler.HandlePayPalWebhook(ctx)

		assert.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("malformed payload rejected", func(t *testing.T) {
		svc := new(MockReconcileService)
		handler := NewWebhookHandler(svc, nil)

		ctx := setupTestContext("POST", "/webhooks/paypal", []byte(`{"resource":{}}`))
		handler.HandlePayPalWebhook(ctx)

		assert.Equal(t, xhttp.StatusBadRequest, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "HandleEvent", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("handler error asks for redelivery", func(t *testing.T) {
		svc := new(MockReconcileService)
		handler := NewWebhookHandler(svc, nil)

		svc.On("HandleEvent", mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError)

		ctx := setupTestContext("POST", "/webhooks/paypal", batchSuccessBody("PAYPAL-1"))
		handler.HandlePayPalWebhook(ctx)

		assert.Equal(t, xhttp.StatusInternalServerError, ctx.Response.StatusCode())
	})

	t.Run("bad signature rejected before parsing", func(t *testing.T) {
		svc := new(MockReconcileService)
		verifier := new(MockWebhookVerifier)
		handler := NewWebhookHandler(svc, verifier)

		verifier.On("Verify", mock.Anything, mock.MatchedBy(func(sig paypal.WebhookSignature) bool {
			return sig.TransmissionID == "tx-1"
		}), mock.Anything).Return(false, nil)

		ctx := setupTestContext("POST", "/webhooks/paypal", batchSuccessBody("PAYPAL-1"))
		ctx.Request.Header.Set("Paypal-Transmission-Id", "tx-1")
		handler.HandlePayPalWebhook(ctx)

		assert.Equal(t, xhttp.StatusUnauthorized, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "HandleEvent", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("accepted signature reaches the listener", func(t *testing.T) {
		svc := new(MockReconcileService)
		verifier := new(MockWebhookVerifier)
		handler := NewWebhookHandler(svc, verifier)

		verifier.On("Verify", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
		svc.On("HandleEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		ctx := setupTestContext("POST", "/webhooks/paypal", batchSuccessBody("PAYPAL-1"))
		handler.HandlePayPalWebhook(ctx)

		require.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())

		var resp map[string]bool
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
		assert.True(t, resp["received"])
	})
}
