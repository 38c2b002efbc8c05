package handlers

import (
	"context"
	"errors"

	"github.com/fasthttp/router"
	"github.com/graphcs/flexpay/internal/model"
	"github.com/graphcs/flexpay/internal/repository"
	"github.com/graphcs/flexpay/internal/services"
	xhttp "github.com/graphcs/flexpay/pkg/http"
)

type ScheduleService interface {
	Create(ctx context.Context, userID int64, req model.ScheduleCreateRequest) (*model.Schedule, error)
	Get(ctx context.Context, userID, id int64) (*model.Schedule, error)
	List(ctx context.Context, userID int64) ([]*model.Schedule, error)
	Update(ctx context.Context, userID, id int64, req model.ScheduleUpdateRequest) (*model.Schedule, error)
	ReplaceRecipients(ctx context.Context, userID, id int64, links []model.ScheduleRecipientRequest) (*model.Schedule, error)
	Delete(ctx context.Context, userID, id int64) error
}

type ScheduleHandler struct {
	svc ScheduleService
}

func RegisterScheduleRoutes(e *router.Group, h *ScheduleHandler) {
	e.POST("/schedules", h.CreateSchedule)
	e.GET("/schedules", h.ListSchedules)
	e.GET("/schedules/{id}", h.GetSchedule)
	e.PUT("/schedules/{id}", h.UpdateSchedule)
	e.PUT("/schedules/{id}/recipients", h.ReplaceScheduleRecipients)
	e.DELETE("/schedules/{id}", h.DeleteSchedule)
}

func NewScheduleHandler(scheduleService ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{
		svc: scheduleService,
	}
}

type scheduleListResponse struct {
	Items []*model.Schedule `json:"items"`
}

type replaceRecipientsRequest struct {
	Recipients []model.ScheduleRecipientRequest `json:"recipients" validate:"required,min=1,dive"`
}

func (h *ScheduleHandler) CreateSchedule(ctx *xhttp.RequestCtx) {
	userID, ok := actingUserID(ctx)
	if !ok {
		return
	}
	var req model.ScheduleCreateRequest
	if !readValidJSON(ctx, &req) {
		return
	}
	schedule, err := h.svc.Create(ctx, userID, req)
	if err != nil {
		writeScheduleError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, schedule)
}

func (h *ScheduleHandler) ListSchedules(ctx *xhttp.RequestCtx) {
	userID, ok := actingUserID(ctx)
	if !ok {
		return
	}
	items, err := h.svc.List(ctx, userID)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, scheduleListResponse{Items: items})
}

func (h *ScheduleHandler) GetSchedule(ctx *xhttp.RequestCtx) {
	userID, ok := actingUserID(ctx)
	if !ok {
		return
	}
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid schedule id")
		return
	}
	schedule, err := h.svc.Get(ctx, userID, id)
	if err != nil {
		writeScheduleError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, schedule)
}

func (h *ScheduleHandler) UpdateSchedule(ctx *xhttp.RequestCtx) {
	userID, ok := actingUserID(ctx)
	if !ok {
		return
	}
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid schedule id")
		return
	}
	var req model.ScheduleUpdateRequest
	if !readValidJSON(ctx, &req) {
		return
	}
	schedule, err := h.svc.Update(ctx, userID, id, req)
	if err != nil {
		writeScheduleError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, schedule)
}

func (h *ScheduleHandler) ReplaceScheduleRecipients(ctx *xhttp.RequestCtx) {
	userID, ok := actingUserID(ctx)
	if !ok {
		return
	}
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid schedule id")
		return
	}
	var req replaceRecipientsRequest
	if !readValidJSON(ctx, &req) {
		return
	}
	schedule, err := h.svc.ReplaceRecipients(ctx, userID, id, req.Recipients)
	if err != nil {
		writeScheduleError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, schedule)
}

func (h *ScheduleHandler) DeleteSchedule(ctx *xhttp.RequestCtx) {
	userID, ok := actingUserID(ctx)
	if !ok {
		return
	}
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid schedule id")
		return
	}
	if err := h.svc.Delete(ctx, userID, id); err != nil {
		writeScheduleError(ctx, err)
		return
	}
	ctx.Response.SetStatusCode(xhttp.StatusNoContent)
}

func writeScheduleError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, repository.ErrScheduleNotFound),
		errors.Is(err, repository.ErrRecipientNotFound):
		writeError(ctx, xhttp.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrScheduleTerminal):
		writeError(ctx, xhttp.StatusConflict, err.Error())
	default:
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
	}
}
