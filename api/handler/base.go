package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/followup/api/transport"
	"github.com/fastygo/followup/domain"
	"github.com/fastygo/followup/pkg/httpcontext"
	appLogger "github.com/fastygo/followup/pkg/logger"
)

type baseHandler struct {
	adapter *httpcontext.Adapter
	logger  *zap.Logger
}

func newBaseHandler(adapter *httpcontext.Adapter, logger *zap.Logger) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseHandler{adapter: adapter, logger: logger}
}

func (h baseHandler) requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	if h.adapter != nil {
		return h.adapter.Attach(ctx)
	}
	return context.WithCancel(context.Background())
}

func (h baseHandler) respondJSON(ctx *fasthttp.RequestCtx, status int, payload transport.Envelope) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	body, _ := json.Marshal(payload)
	ctx.SetBody(body)
}

func (h baseHandler) respondSuccess(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	h.respondJSON(ctx, status, transport.NewSuccess(data, nil))
}

func (h baseHandler) respondError(reqCtx context.Context, ctx *fasthttp.RequestCtx, err error) {
	status, code := mapError(err)
	if status >= http.StatusInternalServerError {
		appLogger.WithRequestID(reqCtx, h.logger).Error("request failed",
			zap.ByteString("path", ctx.Path()),
			zap.Error(err))
	}
	h.respondJSON(ctx, status, transport.NewError(string(code), err.Error(), transport.ErrorMeta{
		Retryable: domain.IsRetryable(err),
	}))
}

func (h baseHandler) respondInvalid(ctx *fasthttp.RequestCtx, message string) {
	h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), message, transport.ErrorMeta{}))
}

func mapError(err error) (int, domain.ErrorCode) {
	code := domain.CodeOf(err)
	switch code {
	case domain.ErrCodeInvalid:
		return http.StatusBadRequest, code
	case domain.ErrCodeUnauthorized:
		return http.StatusUnauthorized, code
	case domain.ErrCodeNotFound:
		return http.StatusNotFound, code
	case domain.ErrCodeInvalidState, domain.ErrCodeConflict:
		return http.StatusConflict, code
	case domain.ErrCodeUnavailable:
		return http.StatusServiceUnavailable, code
	default:
		return http.StatusInternalServerError, domain.ErrCodeInternal
	}
}

func pathID(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue("id").(string)
	return id
}

func parseInt(value []byte, fallback int) int {
	if v, err := strconv.Atoi(string(value)); err == nil {
		return v
	}
	return fallback
}
