package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/followup/api/handler"
	"github.com/fastygo/followup/internal/middleware"
	"github.com/fastygo/followup/internal/router"
	"github.com/fastygo/followup/pkg/httpcontext"
	reminderUC "github.com/fastygo/followup/usecase/reminder"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the due-check scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, zapLogger, err := loadConfig()
			if err != nil {
				return err
			}
			defer zapLogger.Sync()

			appCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a, err := bootstrap(appCtx, cfg, zapLogger)
			if err != nil {
				_ = a.manager.Shutdown(context.Background())
				return err
			}
			a.manager.Listen(cancel)

			a.monitor.Start()
			a.manager.Register("monitor", func(context.Context) error {
				a.monitor.Stop()
				return nil
			})

			if cfg.Scheduler.Enabled {
				scheduler := a.newScheduler()
				scheduler.Start()
				a.manager.Register("scheduler", func(ctx context.Context) error {
					scheduler.Stop(ctx)
					return nil
				})
			} else {
				zapLogger.Warn("scheduler disabled, reminders will not trigger in this process")
			}

			ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
			reminderUseCase := reminderUC.New(a.reminders, zapLogger.Named("reminders"),
				reminderUC.WithMaxAttempts(cfg.Store.CASAttempts))

			handlers := router.Handlers{
				Reminder:     apiHandler.NewReminderHandler(reminderUseCase, ctxAdapter, zapLogger),
				Notification: apiHandler.NewNotificationHandler(a.dispatcher, ctxAdapter, zapLogger),
				Health:       apiHandler.NewHealthHandler(a.monitor, a.queue, ctxAdapter, zapLogger),
			}

			var opts router.Options
			if cfg.HTTP.EnableMetrics {
				opts.Metrics = prometheus.DefaultGatherer
			}
			authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, cfg.JWT.Issuer, zapLogger)
			r := router.New(handlers, authMiddleware, opts)

			server := &fasthttp.Server{
				Handler:      r.Handler,
				ReadTimeout:  cfg.HTTP.ReadTimeout,
				WriteTimeout: cfg.HTTP.WriteTimeout,
				IdleTimeout:  cfg.HTTP.IdleTimeout,
				Concurrency:  cfg.HTTP.MaxConn,
				Name:         cfg.AppName,
			}

			go func() {
				zapLogger.Info("server started", zap.String("address", cfg.Address()))
				if err := server.ListenAndServe(cfg.Address()); err != nil {
					zapLogger.Error("server crashed", zap.Error(err))
					cancel()
				}
			}()

			a.manager.Register("http_server", func(ctx context.Context) error {
				return server.ShutdownWithContext(ctx)
			})

			<-appCtx.Done()

			if err := a.manager.Shutdown(context.Background()); err != nil {
				zapLogger.Error("graceful shutdown error", zap.Error(err))
				return err
			}
			return nil
		},
	}
}
