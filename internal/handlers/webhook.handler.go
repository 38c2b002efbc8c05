package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/fasthttp/router"
	"github.com/graphcs/flexpay/internal/model"
	"github.com/graphcs/flexpay/internal/paypal"
	xhttp "github.com/graphcs/flexpay/pkg/http"
	"github.com/graphcs/flexpay/pkg/logger"
)

type ReconcileService interface {
	HandleEvent(ctx context.Context, ev *model.WebhookEvent, now time.Time) error
}

// WebhookVerifier checks a delivery's transmission signature with
// PayPal. A nil verifier on the handler disables verification (dev and
// simulator setups).
type WebhookVerifier interface {
	Verify(ctx context.Context, sig paypal.WebhookSignature, event []byte) (bool, error)
}

type WebhookHandler struct {
	svc      ReconcileService
	verifier WebhookVerifier
	now      func() time.Time
}

func RegisterWebhookRoutes(e *router.Group, h *WebhookHandler) {
	e.POST("/webhooks/paypal", h.HandlePayPalWebhook)
}

func NewWebhookHandler(reconcileService ReconcileService, verifier WebhookVerifier) *WebhookHandler {
	return &WebhookHandler{
		svc:      reconcileService,
		verifier: verifier,
		now:      time.Now,
	}
}

// HandlePayPalWebhook ingests one payout notification. The body is
// acknowledged with 200 whenever we have durably handled it; PayPal
// retries anything else.
func (h *WebhookHandler) HandlePayPalWebhook(ctx *xhttp.RequestCtx) {
	body := ctx.PostBody()

	if h.verifier != nil {
		sig := paypal.WebhookSignature{
			TransmissionID:   string(ctx.Request.Header.Peek("Paypal-Transmission-Id")),
			TransmissionTime: string(ctx.Request.Header.Peek("Paypal-Transmission-Time")),
			TransmissionSig:  string(ctx.Request.Header.Peek("Paypal-Transmission-Sig")),
			CertURL:          string(ctx.Request.Header.Peek("Paypal-Cert-Url")),
			AuthAlgo:         string(ctx.Request.Header.Peek("Paypal-Auth-Algo")),
		}
		ok, err := h.verifier.Verify(ctx, sig, body)
		if err != nil {
			logger.Error("webhook signature verification unavailable", "error", err)
			writeError(ctx, xhttp.StatusBadGateway, "signature verification unavailable")
			return
		}
		if !ok {
			logger.Warn("webhook signature rejected",
				"transmission_id", sig.TransmissionID)
			writeError(ctx, xhttp.StatusUnauthorized, "invalid webhook signature")
			return
		}
	}

	ev, err := model.ParseWebhookEvent(body)
	if err != nil {
		if errors.Is(err, model.ErrMalformedEvent) {
			writeError(ctx, xhttp.StatusBadRequest, err.Error())
			return
		}
		writeError(ctx, xhttp.StatusBadRequest, "unreadable webhook payload")
		return
	}

	if err := h.svc.HandleEvent(ctx, ev, h.now()); err != nil {
		// non-2xx makes PayPal redeliver; the listener is idempotent
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]bool{"received": true})
}
