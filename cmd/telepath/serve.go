package main

import (
	"context"
	stderrors "errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telepath-dev/telepath"
	"github.com/telepath-dev/telepath/pkg/deeplink"
	"github.com/telepath-dev/telepath/pkg/middleware"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the route table for inspection",
		Long: `Build the table and serve the deep-link API for it, with Prometheus
metrics on /metrics.

Handlers are not linked into the CLI, so /resolve and /routes answer
normally while dispatches report that no handler is bound. Applications
serve the same API with real handlers through pkg/deeplink.

Examples:
  telepath serve
  telepath serve --addr :9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			_, _, table, err := p.build()
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			d := telepath.New(table,
				telepath.WithLogger(p.logger),
				telepath.WithMiddleware(
					middleware.Recover(p.logger),
					middleware.Logging(p.logger),
					middleware.Prometheus(middleware.WithRegistry(reg)),
					middleware.OpenTelemetry(),
				),
			)

			r := chi.NewRouter()
			r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			r.Mount("/", deeplink.NewHandler(d, deeplink.WithLogger(p.logger)))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, p.logger, addr, r)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "localhost:8080", "Address to listen on")

	return cmd
}

func serve(ctx context.Context, logger *zap.Logger, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	success("Serving on http://%s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
