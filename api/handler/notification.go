package handler

import (
	"context"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/followup/domain"
	"github.com/fastygo/followup/pkg/httpcontext"
)

// NotificationDrainer hands queued notification events to the UI.
type NotificationDrainer interface {
	Drain(ctx context.Context, max int) ([]domain.NotificationEvent, error)
}

type NotificationHandler struct {
	baseHandler
	drainer NotificationDrainer
}

func NewNotificationHandler(drainer NotificationDrainer, adapter *httpcontext.Adapter, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		baseHandler: newBaseHandler(adapter, logger),
		drainer:     drainer,
	}
}

// @Summary Drain notification events
// @Tags notifications
// @Router /api/v1/notifications [get]
func (h *NotificationHandler) Drain(ctx *fasthttp.RequestCtx) {
	max := parseInt(ctx.QueryArgs().Peek("max"), 50)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	events, err := h.drainer.Drain(stdCtx, max)
	if err != nil {
		h.respondError(stdCtx, ctx, domain.WrapError(domain.ErrCodeUnavailable, "notification queue unavailable", err))
		return
	}
	if events == nil {
		events = []domain.NotificationEvent{}
	}
	h.respondSuccess(ctx, http.StatusOK, events)
}
