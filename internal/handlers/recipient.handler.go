package handlers

import (
	"context"
	"errors"

	"github.com/fasthttp/router"
	"github.com/graphcs/flexpay/internal/model"
	"github.com/graphcs/flexpay/internal/repository"
	xhttp "github.com/graphcs/flexpay/pkg/http"
)

type RecipientService interface {
	Create(ctx context.Context, userID int64, req model.RecipientCreateRequest) (*model.Recipient, error)
	Get(ctx context.Context, userID, id int64) (*model.Recipient, error)
	List(ctx context.Context, userID int64) ([]*model.Recipient, error)
	Update(ctx context.Context, userID, id int64, req model.RecipientUpdateRequest) (*model.Recipient, error)
	Delete(ctx context.Context, userID, id int64) error
}

type RecipientHandler struct {
	svc RecipientService
}

func RegisterRecipientRoutes(e *router.Group, h *RecipientHandler) {
	e.POST("/recipients", h.CreateRecipient)
	e.GET("/recipients", h.ListRecipients)
	e.GET("/recipients/{id}", h.GetRecipient)
	e.PUT("/recipients/{id}", h.UpdateRecipient)
	e.DELETE("/recipients/{id}", h.DeleteRecipient)
}

func NewRecipientHandler(recipientService RecipientService) *RecipientHandler {
	return &RecipientHandler{
		svc: recipientService,
	}
}

type recipientListResponse struct {
	Items []*model.Recipient `json:"items"`
}

func (h *RecipientHandler) CreateRecipient(ctx *xhttp.RequestCtx) {
	userID, ok := actingUserID(ctx)
	if !ok {
		return
	}
	var req model.RecipientCreateRequest
	if !readValidJSON(ctx, &req) {
		return
	}
	rec, err := h.svc.Create(ctx, userID, req)
	if err != nil {
		writeRecipientError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, rec)
}

func (h *RecipientHandler) ListRecipients(ctx *xhttp.RequestCtx) {
	userID, ok := actingUserID(ctx)
	if !ok {
		return
	}
	items, err := h.svc.List(ctx, userID)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, recipientListResponse{Items: items})
}

func (h *RecipientHandler) GetRecipient(ctx *xhttp.RequestCtx) {
	userID, ok := actingUserID(ctx)
	if !ok {
		return
	}
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid recipient id")
		return
	}
	rec, err := h.svc.Get(ctx, userID, id)
	if err != nil {
		writeRecipientError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, rec)
}

func (h *RecipientHandler) UpdateRecipient(ctx *xhttp.RequestCtx) {
	userID, ok := actingUserID(ctx)
	if !ok {
		return
	}
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid recipient id")
		return
	}
	var req model.RecipientUpdateRequest
	if !readValidJSON(ctx, &req) {
		return
	}
	rec, err := h.svc.Update(ctx, userID, id, req)
	if err != nil {
		writeRecipientError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, rec)
}

func (h *RecipientHandler) DeleteRecipient(ctx *xhttp.RequestCtx) {
	userID, ok := actingUserID(ctx)
	if !ok {
		return
	}
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid recipient id")
		return
	}
	if err := h.svc.Delete(ctx, userID, id); err != nil {
		writeRecipientError(ctx, err)
		return
	}
	ctx.Response.SetStatusCode(xhttp.StatusNoContent)
}

func writeRecipientError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, repository.ErrRecipientNotFound):
		writeError(ctx, xhttp.StatusNotFound, "recipient not found")
	case errors.Is(err, repository.ErrRecipientInUse):
		writeError(ctx, xhttp.StatusConflict, "recipient is referenced by a schedule")
	case errors.Is(err, repository.ErrRecipientEmailTaken):
		writeError(ctx, xhttp.StatusConflict, err.Error())
	default:
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
	}
}
