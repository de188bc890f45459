package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/msync/internal/metrics"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Interval    time.Duration
	MetricsAddr string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Integrate on a schedule until interrupted",
		Long: `Run integration cycles every interval until SIGINT or SIGTERM.

After an aborted cycle the wait doubles up to integration.max_backoff and
resets after the next successful cycle. When a metrics address is set,
Prometheus metrics are served on /metrics.

Example:
  msync run --config ./msync.yaml
  msync run --interval 10s --metrics-addr :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runLoop(ctx, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "time between cycles (overrides integration.interval)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve /metrics on this address (overrides metrics.addr)")

	return cmd
}

func runLoop(ctx context.Context, opts *RunOptions) error {
	env, err := openEnvironment(opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.Close()

	interval := env.cfg.Integration.Interval
	if opts.Interval > 0 {
		interval = opts.Interval
	}
	addr := env.cfg.Metrics.Addr
	if opts.MetricsAddr != "" {
		addr = opts.MetricsAddr
	}

	var reg *prometheus.Registry
	if addr != "" {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	driver, err := env.newDriver(registerer(reg))
	if err != nil {
		return err
	}

	if reg != nil {
		srv := serveMetrics(env.logger, addr, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	env.logger.Info("integration loop started",
		zap.String("site_id", env.cfg.Integration.SiteID),
		zap.Duration("interval", interval))

	err = driver.Run(ctx, interval, env.cfg.Integration.MaxBackoff)
	if errors.Is(err, context.Canceled) {
		env.logger.Info("integration loop stopped")
		return nil
	}
	return err
}

// registerer avoids passing a typed nil *Registry as a non-nil interface.
func registerer(reg *prometheus.Registry) prometheus.Registerer {
	if reg == nil {
		return nil
	}
	return reg
}

func serveMetrics(logger *zap.Logger, addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	return srv
}
