package router

import (
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/followup/api/handler"
	boltinfra "github.com/fastygo/followup/internal/infrastructure/boltdb"
	"github.com/fastygo/followup/internal/infrastructure/monitor"
	"github.com/fastygo/followup/internal/infrastructure/queue"
	"github.com/fastygo/followup/internal/middleware"
	"github.com/fastygo/followup/pkg/httpcontext"
	boltrepo "github.com/fastygo/followup/repository/boltdb"
	reminderUC "github.com/fastygo/followup/usecase/reminder"
)

func newTestRouter(t *testing.T, secret string) fasthttp.RequestHandler {
	t.Helper()
	db, err := boltinfra.Open(filepath.Join(t.TempDir(), "reminders.db"), boltrepo.Buckets...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	adapter := httpcontext.NewAdapter(time.Second)
	mon := monitor.New(time.Minute, nil)
	mon.Refresh(t.Context())
	q := queue.NewMemory(10)

	handlers := Handlers{
		Reminder:     apiHandler.NewReminderHandler(reminderUC.New(boltrepo.NewReminderRepository(db), nil), adapter, nil),
		Notification: apiHandler.NewNotificationHandler(q, adapter, nil),
		Health:       apiHandler.NewHealthHandler(mon, q, adapter, nil),
	}
	r := New(handlers, middleware.JWTAuth(secret, "", nil), Options{Metrics: prometheus.NewRegistry()})
	return r.Handler
}

func serve(handler fasthttp.RequestHandler, method, uri string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	handler(ctx)
	return ctx
}

func TestRoutesResolve(t *testing.T) {
	handler := newTestRouter(t, "")

	cases := []struct {
		method string
		uri    string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/v1/reminders", http.StatusOK},
		{http.MethodGet, "/api/v1/reminders/summary", http.StatusOK},
		{http.MethodGet, "/api/v1/reminders/calendar.ics", http.StatusOK},
		{http.MethodGet, "/api/v1/reminders/unknown-id", http.StatusNotFound},
		{http.MethodPost, "/api/v1/reminders/unknown-id/complete", http.StatusNotFound},
		{http.MethodDelete, "/api/v1/reminders/unknown-id", http.StatusNoContent},
		{http.MethodGet, "/api/v1/notifications", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.uri, func(t *testing.T) {
			ctx := serve(handler, tc.method, tc.uri)
			assert.Equal(t, tc.want, ctx.Response.StatusCode(), string(ctx.Response.Body()))
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	handler := newTestRouter(t, "secret")

	ctx := serve(handler, http.MethodGet, "/api/v1/reminders")
	assert.Equal(t, http.StatusUnauthorized, ctx.Response.StatusCode())

	ctx = serve(handler, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())
}
