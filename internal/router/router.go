package router

import (
	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	apiHandler "github.com/fastygo/followup/api/handler"
)

type Handlers struct {
	Reminder     *apiHandler.ReminderHandler
	Notification *apiHandler.NotificationHandler
	Health       *apiHandler.HealthHandler
}

// Options toggles optional endpoints.
type Options struct {
	// Metrics, when non-nil, is served on /metrics.
	Metrics prometheus.Gatherer
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler, opts Options) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)
	if opts.Metrics != nil {
		r.GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(opts.Metrics, promhttp.HandlerOpts{})))
	}

	// Protected routes
	api := r.Group("/api/v1")

	api.GET("/reminders", authMiddleware(handlers.Reminder.List))
	api.POST("/reminders", authMiddleware(handlers.Reminder.Create))
	api.GET("/reminders/summary", authMiddleware(handlers.Reminder.Summary))
	api.GET("/reminders/calendar.ics", authMiddleware(handlers.Reminder.Calendar))
	api.GET("/reminders/{id}", authMiddleware(handlers.Reminder.Get))
	api.DELETE("/reminders/{id}", authMiddleware(handlers.Reminder.Delete))
	api.POST("/reminders/{id}/snooze", authMiddleware(handlers.Reminder.Snooze))
	api.POST("/reminders/{id}/complete", authMiddleware(handlers.Reminder.Complete))
	api.POST("/reminders/{id}/cancel", authMiddleware(handlers.Reminder.Cancel))

	api.GET("/notifications", authMiddleware(handlers.Notification.Drain))

	return r
}
