package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/GuilhermeSoares009/signal-filter/internal/httpapi"
	"github.com/GuilhermeSoares009/signal-filter/internal/observability"
)

func newServeCommand(v *viper.Viper, load loadFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the signal endpoint over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()

			tel, err := observability.Init(ctx, observability.Options{
				Exporter: cfg.Metrics.Exporter,
				Interval: cfg.Metrics.Interval,
			})
			if err != nil {
				return fmt.Errorf("initialize observability: %w", err)
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				if err := tel.Shutdown(shutdownCtx); err != nil {
					logger.Warn("telemetry shutdown failed", zap.Error(err))
				}
			}()

			filter, err := buildFilter(cfg, logger)
			if err != nil {
				return err
			}
			server := httpapi.NewServer(filter, httpapi.Options{
				FilterName:     string(cfg.Algorithm()),
				Logger:         logger,
				MetricsHandler: tel.MetricsHandler(),
			})

			httpServer := &http.Server{
				Addr:              ":" + strconv.Itoa(cfg.Server.Port),
				Handler:           server.Handler(),
				ReadTimeout:       cfg.Server.ReadTimeout,
				ReadHeaderTimeout: cfg.Server.ReadTimeout,
				WriteTimeout:      cfg.Server.WriteTimeout,
				IdleTimeout:       cfg.Server.IdleTimeout,
			}

			serveErr := make(chan error, 1)
			go func() {
				serveErr <- httpServer.ListenAndServe()
			}()
			logger.Info("signal filter listening",
				zap.String("addr", httpServer.Addr),
				zap.String("algorithm", string(cfg.Algorithm())),
				zap.Int("limit", cfg.Filter.Limit),
				zap.Duration("window", cfg.Filter.Window),
				zap.String("metrics_exporter", cfg.Metrics.Exporter),
			)

			select {
			case err := <-serveErr:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server stopped unexpectedly: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().Int("port", 0, "HTTP listen port")
	mustBind(v.BindPFlag("server.port", cmd.Flags().Lookup("port")))
	return cmd
}
