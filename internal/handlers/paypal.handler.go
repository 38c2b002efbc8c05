package handlers

import (
	"context"
	"errors"

	"github.com/fasthttp/router"
	"github.com/graphcs/flexpay/internal/model"
	"github.com/graphcs/flexpay/internal/paypal"
	"github.com/graphcs/flexpay/internal/repository"
	"github.com/graphcs/flexpay/internal/services"
	xhttp "github.com/graphcs/flexpay/pkg/http"
)

type PayPalService interface {
	Connect(ctx context.Context, userID int64, req model.PayPalConnectRequest) (*model.User, error)
	Disconnect(ctx context.Context, userID int64) error
	PayoutStatus(ctx context.Context, userID int64, payoutBatchID string) (*paypal.PayoutBatchResponse, error)
}

type PayPalHandler struct {
	svc PayPalService
}

func RegisterPayPalRoutes(e *router.Group, h *PayPalHandler) {
	e.POST("/paypal/connect", h.Connect)
	e.DELETE("/paypal/connect", h.Disconnect)
	e.GET("/paypal/payouts/{id}", h.PayoutStatus)
}

func NewPayPalHandler(paypalService PayPalService) *PayPalHandler {
	return &PayPalHandler{
		svc: paypalService,
	}
}

func (h *PayPalHandler) Connect(ctx *xhttp.RequestCtx) {
	userID, ok := actingUserID(ctx)
	if !ok {
		return
	}
	var req model.PayPalConnectRequest
	if !readValidJSON(ctx, &req) {
		return
	}
	user, err := h.svc.Connect(ctx, userID, req)
	if err != nil {
		// a rejected token exchange means the credentials are wrong,
		// not that the request was malformed
		var authErr *paypal.AuthError
		if errors.As(err, &authErr) {
			writeError(ctx, xhttp.StatusUnprocessableEntity, "paypal rejected the credentials")
			return
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			writeError(ctx, xhttp.StatusNotFound, "user not found")
			return
		}
		writeError(ctx, xhttp.StatusBadGateway, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, user)
}

func (h *PayPalHandler) Disconnect(ctx *xhttp.RequestCtx) {
	userID, ok := actingUserID(ctx)
	if !ok {
		return
	}
	if err := h.svc.Disconnect(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeError(ctx, xhttp.StatusNotFound, "user not found")
			return
		}
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	ctx.Response.SetStatusCode(xhttp.StatusNoContent)
}

func (h *PayPalHandler) PayoutStatus(ctx *xhttp.RequestCtx) {
	userID, ok := actingUserID(ctx)
	if !ok {
		return
	}
	payoutBatchID, _ := ctx.UserValue("id").(string)
	if payoutBatchID == "" {
		writeError(ctx, xhttp.StatusBadRequest, "missing payout batch id")
		return
	}
	status, err := h.svc.PayoutStatus(ctx, userID, payoutBatchID)
	if err != nil {
		if errors.Is(err, services.ErrPayPalNotConnected) {
			writeError(ctx, xhttp.StatusConflict, err.Error())
			return
		}
		writeError(ctx, xhttp.StatusBadGateway, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, status)
}
