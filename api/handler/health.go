package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/followup/api/transport"
	"github.com/fastygo/followup/internal/infrastructure/monitor"
	"github.com/fastygo/followup/pkg/httpcontext"
)

// HealthStatus reports backend reachability.
type HealthStatus interface {
	GetStatus() monitor.Status
}

// QueueDepth reports how many notification events await the UI.
type QueueDepth interface {
	Len(ctx context.Context) (int, error)
}

// droppedCounter is implemented by queues that discard events when full.
type droppedCounter interface {
	Dropped() int
}

type HealthHandler struct {
	baseHandler
	monitor HealthStatus
	queue   QueueDepth
}

func NewHealthHandler(mon HealthStatus, queue QueueDepth, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
		queue:       queue,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	payload := map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"services":  status.Components,
	}

	if h.queue != nil {
		stdCtx, cancel := h.requestContext(ctx)
		defer cancel()
		queue := map[string]interface{}{"online": true}
		if size, err := h.queue.Len(stdCtx); err != nil {
			queue["online"] = false
		} else {
			queue["size"] = size
		}
		if counter, ok := h.queue.(droppedCounter); ok {
			queue["dropped"] = counter.Dropped()
		}
		payload["notification_queue"] = queue
	}

	if status.Online {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.NewError("DEGRADED", "dependencies unhealthy", payload))
}
