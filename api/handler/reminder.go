package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/followup/api/transport"
	"github.com/fastygo/followup/domain"
	"github.com/fastygo/followup/pkg/httpcontext"
	"github.com/fastygo/followup/repository"
	reminderUC "github.com/fastygo/followup/usecase/reminder"
)

type ReminderHandler struct {
	baseHandler
	uc *reminderUC.UseCase
}

func NewReminderHandler(uc *reminderUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *ReminderHandler {
	return &ReminderHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List reminders
// @Tags reminders
// @Router /api/v1/reminders [get]
func (h *ReminderHandler) List(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	filter := repository.ReminderFilter{
		Status:     domain.ReminderStatus(args.Peek("status")),
		ContactRef: string(args.Peek("contact_ref")),
		Limit:      parseInt(args.Peek("limit"), 50),
		Offset:     parseInt(args.Peek("offset"), 0),
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	reminders, err := h.uc.List(stdCtx, filter)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	if reminders == nil {
		reminders = []domain.Reminder{}
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(reminders, transport.ListMeta{
		Count:  len(reminders),
		Limit:  repository.ClampLimit(filter.Limit),
		Offset: filter.Offset,
	}))
}

// @Summary Create reminder
// @Tags reminders
// @Router /api/v1/reminders [post]
func (h *ReminderHandler) Create(ctx *fasthttp.RequestCtx) {
	var req transport.ReminderRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	var due time.Time
	if req.DueAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.DueAt)
		if err != nil {
			h.respondInvalid(ctx, "due_at must be an RFC3339 timestamp")
			return
		}
		due = parsed
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.uc.Create(stdCtx, reminderUC.CreateInput{
		Title:           req.Title,
		Note:            req.Note,
		ContactRef:      req.ContactRef,
		ContactName:     req.ContactName,
		InteractionType: req.InteractionType,
		DueAt:           due,
	})
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary Get reminder
// @Tags reminders
// @Router /api/v1/reminders/{id} [get]
func (h *ReminderHandler) Get(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	reminder, err := h.uc.Get(stdCtx, pathID(ctx))
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, reminder)
}

// @Summary Snooze reminder
// @Tags reminders
// @Router /api/v1/reminders/{id}/snooze [post]
func (h *ReminderHandler) Snooze(ctx *fasthttp.RequestCtx) {
	var req transport.SnoozeRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	extension, err := req.Extension()
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	reminder, err := h.uc.Snooze(stdCtx, pathID(ctx), extension)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, reminder)
}

// @Summary Complete reminder
// @Tags reminders
// @Router /api/v1/reminders/{id}/complete [post]
func (h *ReminderHandler) Complete(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	reminder, err := h.uc.Complete(stdCtx, pathID(ctx))
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, reminder)
}

// @Summary Cancel reminder
// @Tags reminders
// @Router /api/v1/reminders/{id}/cancel [post]
func (h *ReminderHandler) Cancel(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	reminder, err := h.uc.Cancel(stdCtx, pathID(ctx))
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, reminder)
}

// @Summary Delete reminder
// @Tags reminders
// @Router /api/v1/reminders/{id} [delete]
func (h *ReminderHandler) Delete(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Delete(stdCtx, pathID(ctx)); err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	ctx.SetStatusCode(http.StatusNoContent)
}

// @Summary Reminder report buckets
// @Tags reminders
// @Router /api/v1/reminders/summary [get]
func (h *ReminderHandler) Summary(ctx *fasthttp.RequestCtx) {
	var at time.Time
	if raw := ctx.QueryArgs().Peek("at"); len(raw) > 0 {
		parsed, err := time.Parse(time.RFC3339, string(raw))
		if err != nil {
			h.respondInvalid(ctx, "at must be an RFC3339 timestamp")
			return
		}
		at = parsed
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	summary, err := h.uc.Summary(stdCtx, at)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, summary)
}

// @Summary Open reminders as iCalendar
// @Tags reminders
// @Router /api/v1/reminders/calendar.ics [get]
func (h *ReminderHandler) Calendar(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	var buf bytes.Buffer
	if err := h.uc.Calendar(stdCtx, &buf); err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	ctx.Response.Header.SetContentType("text/calendar; charset=utf-8")
	ctx.Response.Header.Set("Content-Disposition", `attachment; filename="reminders.ics"`)
	ctx.SetStatusCode(http.StatusOK)
	ctx.SetBody(buf.Bytes())
}
