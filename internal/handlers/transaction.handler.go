package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/fasthttp/router"
	"github.com/graphcs/flexpay/internal/model"
	"github.com/graphcs/flexpay/internal/services"
	xhttp "github.com/graphcs/flexpay/pkg/http"
)

type TransactionService interface {
	List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error)
	Get(ctx context.Context, userID, id int64) (*model.Transaction, error)
}

type TransactionHandler struct {
	svc TransactionService
}

func RegisterTransactionRoutes(e *router.Group, h *TransactionHandler) {
	e.GET("/transactions", h.ListTransactions)
	e.GET("/transactions/{id}", h.GetTransaction)
}

func NewTransactionHandler(transactionService TransactionService) *TransactionHandler {
	return &TransactionHandler{
		svc: transactionService,
	}
}

type transactionListResponse struct {
	Items []*model.Transaction `json:"items"`
	Total int64                `json:"total"`
}

func (h *TransactionHandler) ListTransactions(ctx *xhttp.RequestCtx) {
	userID, ok := actingUserID(ctx)
	if !ok {
		return
	}

	// history is always scoped to the acting user
	f := model.TransactionFilter{UserID: &userID}

	if v := query(ctx, "schedule_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.ScheduleID = &id
		}
	}
	if v := query(ctx, "status"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Statuses = append(f.Statuses, model.TransactionStatus(parts[i]))
			}
		}
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, transactionListResponse{Items: items, Total: total})
}

func (h *TransactionHandler) GetTransaction(ctx *xhttp.RequestCtx) {
	userID, ok := actingUserID(ctx)
	if !ok {
		return
	}
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid transaction id")
		return
	}
	tx, err := h.svc.Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, services.ErrTransactionNotFound) {
			writeError(ctx, xhttp.StatusNotFound, "transaction not found")
			return
		}
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, tx)
}
