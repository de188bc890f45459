package cli

import (
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/msync/internal/audit"
	"github.com/roach88/msync/internal/config"
	"github.com/roach88/msync/internal/engine"
	"github.com/roach88/msync/internal/lock"
	"github.com/roach88/msync/internal/logging"
	"github.com/roach88/msync/internal/metrics"
	"github.com/roach88/msync/internal/store"
)

// environment is what a command needs to touch the store: the loaded
// config, a logger and the open store. Close releases everything opened
// through it.
type environment struct {
	cfg     config.Config
	logger  *zap.Logger
	store   *store.Store
	closers []func() error
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}
}

// loadConfig loads the config named by --config; --verbose forces debug
// logging.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func openEnvironment(opts *RootOptions) (*environment, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build logger", err)
	}

	st, err := store.OpenDriver(cfg.Database.Driver, cfg.Database.DSN, store.WithLogger(logger))
	if err != nil {
		_ = logger.Sync()
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	env := &environment{cfg: cfg, logger: logger, store: st}
	env.closers = append(env.closers, st.Close)
	return env, nil
}

// Close releases resources in reverse order of acquisition.
func (e *environment) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	_ = e.logger.Sync()
	return errors.Join(errs...)
}

// newDriver builds the integration driver from config. reg is nil when
// metrics are not exported.
func (e *environment) newDriver(reg prometheus.Registerer) (*engine.Driver, error) {
	opts := []engine.Option{
		engine.WithLogger(e.logger),
		engine.WithSiteID(e.cfg.Integration.SiteID),
		engine.WithBatchSize(e.cfg.Integration.BatchSize),
		engine.WithAudit(e.auditSink()),
	}

	if e.cfg.Lock.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     e.cfg.Lock.RedisAddr,
			Password: e.cfg.Lock.RedisPassword,
			DB:       e.cfg.Lock.RedisDB,
		})
		e.closers = append(e.closers, client.Close)
		opts = append(opts, engine.WithLocker(lock.NewRedis(client, e.cfg.Lock.KeyPrefix, e.cfg.Lock.TTL, e.logger)))
	}

	if reg != nil {
		opts = append(opts, engine.WithMetrics(metrics.New(reg)))
	}

	d, err := engine.New(e.store, opts...)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "invalid translator set", err)
	}
	return d, nil
}

func (e *environment) auditSink() audit.Sink {
	sinks := audit.Multi{audit.NewZapSink(e.logger)}
	if len(e.cfg.Audit.KafkaBrokers) > 0 {
		sink := audit.NewKafkaSink(audit.NewKafkaWriter(strings.Join(e.cfg.Audit.KafkaBrokers, ","), e.cfg.Audit.KafkaTopic))
		e.closers = append(e.closers, sink.Close)
		sinks = append(sinks, sink)
	}
	return sinks
}
