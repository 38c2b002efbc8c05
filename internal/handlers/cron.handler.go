package handlers

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/graphcs/flexpay/internal/services"
	xhttp "github.com/graphcs/flexpay/pkg/http"
	"github.com/graphcs/flexpay/pkg/logger"
)

type PayoutOrchestrator interface {
	ProcessDueSchedules(ctx context.Context, now time.Time) (services.CycleResult, error)
}

// CronHandler exposes the payout cycle as an HTTP trigger for external
// schedulers. The runner binary is the primary driver; this endpoint
// covers platforms where only HTTP cron is available.
type CronHandler struct {
	svc     PayoutOrchestrator
	secret  string
	enforce bool
	now     func() time.Time
}

func RegisterCronRoutes(e *router.Group, h *CronHandler) {
	e.POST("/cron/process-payouts", h.ProcessPayouts)
}

func NewCronHandler(payoutService PayoutOrchestrator, secret string, enforce bool) *CronHandler {
	return &CronHandler{
		svc:     payoutService,
		secret:  secret,
		enforce: enforce,
		now:     time.Now,
	}
}

type cronResponse struct {
	Success   bool                 `json:"success"`
	Timestamp time.Time            `json:"timestamp"`
	Results   services.CycleResult `json:"results"`
}

func (h *CronHandler) ProcessPayouts(ctx *xhttp.RequestCtx) {
	if h.enforce {
		if h.secret == "" {
			writeError(ctx, xhttp.StatusForbidden, "cron trigger is disabled")
			return
		}
		auth := string(ctx.Request.Header.Peek("Authorization"))
		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) != 1 {
			writeError(ctx, xhttp.StatusUnauthorized, "invalid cron secret")
			return
		}
	}

	now := h.now()
	result, err := h.svc.ProcessDueSchedules(ctx, now)
	if err != nil {
		logger.Error("manual payout cycle failed", "error", err)
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, cronResponse{
		Success:   true,
		Timestamp: now,
		Results:   result,
	})
}
