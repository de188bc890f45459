package engine

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/roach88/msync/internal/audit"
	"github.com/roach88/msync/internal/lock"
	"github.com/roach88/msync/internal/metrics"
	"github.com/roach88/msync/internal/translation"
)

// DefaultSiteID is the lock key used when no site is configured.
const DefaultSiteID = "default"

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithTranslators replaces the built-in translators. New validates their
// dependencies.
func WithTranslators(translators ...translation.Translator) Option {
	return func(d *Driver) {
		d.translators = translators
	}
}

// WithBatchSize limits how many envelopes one cycle fetches. Zero or less
// fetches every pending envelope.
func WithBatchSize(n int) Option {
	return func(d *Driver) {
		d.batchSize = n
	}
}

// WithSiteID sets the key of the single-flight lock.
func WithSiteID(siteID string) Option {
	return func(d *Driver) {
		d.siteID = siteID
	}
}

// WithLocker sets the single-flight lock. Defaults to an in-process lock.
func WithLocker(l lock.Locker) Option {
	return func(d *Driver) {
		d.locker = l
	}
}

// WithAudit sets the audit sink. Defaults to audit.Nop.
func WithAudit(sink audit.Sink) Option {
	return func(d *Driver) {
		d.audit = sink
	}
}

// WithMetrics sets the Prometheus collectors. Metrics are off by default.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Driver) {
		d.metrics = m
	}
}

// WithTracer sets the OpenTelemetry tracer. Defaults to the global
// provider's "msync/engine" tracer.
func WithTracer(t trace.Tracer) Option {
	return func(d *Driver) {
		d.tracer = t
	}
}

// WithNow sets the wall clock used for timestamps. Ordering never depends
// on it.
func WithNow(now func() time.Time) Option {
	return func(d *Driver) {
		d.now = now
	}
}

// WithRunIDs sets the run id generator. Defaults to UUIDv7Generator.
func WithRunIDs(gen RunIDGenerator) Option {
	return func(d *Driver) {
		d.runIDs = gen
	}
}
