// Package audit publishes one entry per integrated envelope.
//
// Audit delivery is best effort: the integration driver logs a failed
// Record and carries on. The integration_log table remains the durable
// record.
package audit

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Entry is the audit record of one processed envelope.
type Entry struct {
	RunID      string    `json:"run_id"`
	RecordID   string    `json:"record_id"`
	Table      string    `json:"table_name"`
	Action     string    `json:"action"`
	Seq        int64     `json:"seq"`
	Outcome    string    `json:"outcome"`
	Message    string    `json:"message,omitempty"`
	OpCount    int       `json:"op_count"`
	At         time.Time `json:"at"`
	TraceID    string    `json:"trace_id,omitempty"`
	SourceSite string    `json:"source_site,omitempty"`
}

// Sink receives audit entries.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

// ZapSink writes entries to a logger at info level.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink creates a sink logging to logger.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger.Named("audit")}
}

func (s *ZapSink) Record(_ context.Context, e Entry) error {
	s.logger.Info("envelope processed",
		zap.String("run_id", e.RunID),
		zap.String("record_id", e.RecordID),
		zap.String("table_name", e.Table),
		zap.String("action", e.Action),
		zap.Int64("seq", e.Seq),
		zap.String("outcome", e.Outcome),
		zap.String("message", e.Message),
		zap.Int("op_count", e.OpCount),
		zap.String("trace_id", e.TraceID))
	return nil
}

// Multi fans an entry out to several sinks. Every sink is called even when
// one fails; the errors are joined.
type Multi []Sink

func (m Multi) Record(ctx context.Context, e Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
