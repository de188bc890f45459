package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/roach88/msync/internal/audit"
	"github.com/roach88/msync/internal/ir"
	"github.com/roach88/msync/internal/links"
	"github.com/roach88/msync/internal/lock"
	"github.com/roach88/msync/internal/metrics"
	"github.com/roach88/msync/internal/store"
	"github.com/roach88/msync/internal/translation"
)

const tracerName = "github.com/roach88/msync/internal/engine"

// Storage is the store a Driver integrates into. *store.Store implements it.
type Storage interface {
	FetchPending(ctx context.Context, tables []string, limit int) ([]ir.Envelope, error)
	FetchUndeferred(ctx context.Context, tables []string, limit int) ([]ir.Envelope, error)
	LoadCursor(ctx context.Context) (ir.Cursor, error)
	ResetCursor(ctx context.Context, stream string, seq int64) (int64, error)
	InTx(ctx context.Context, fn func(*store.Tx) error) error
	StartRun(ctx context.Context, run store.RunRecord) error
	FinishRun(ctx context.Context, run store.RunRecord) error
}

// Driver runs integration cycles against one store.
//
// Thread-safety: Integrate may be called from several goroutines; the
// site lock lets one cycle run at a time and rejects the others with
// ErrCycleInProgress.
type Driver struct {
	storage     Storage
	registry    *translation.Registry
	translators []translation.Translator
	tables      []string

	logger    *zap.Logger
	batchSize int
	siteID    string
	locker    lock.Locker
	audit     audit.Sink
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	now       func() time.Time
	runIDs    RunIDGenerator
}

// New creates a Driver. It computes the table order up front and returns a
// *translation.ConfigurationError if the translators' dependencies contain
// a cycle or name a table without a translator.
func New(storage Storage, opts ...Option) (*Driver, error) {
	d := &Driver{
		storage: storage,
		logger:  zap.NewNop(),
		siteID:  DefaultSiteID,
		locker:  lock.NewLocal(),
		audit:   audit.Nop{},
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
		runIDs:  UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(d)
	}

	var err error
	if d.translators != nil {
		d.registry, err = translation.NewRegistry(d.translators...)
	} else {
		d.registry, err = translation.DefaultRegistry()
	}
	if err != nil {
		return nil, fmt.Errorf("build translator registry: %w", err)
	}

	d.tables = make([]string, 0, len(d.registry.Order()))
	for _, table := range d.registry.Order() {
		d.tables = append(d.tables, string(table))
	}

	d.logger.Debug("translator order", zap.Strings("tables", d.tables))
	return d, nil
}

// Registry returns the validated translator set.
func (d *Driver) Registry() *translation.Registry {
	return d.registry
}

// Integrate runs one integration cycle.
//
// Per-record failures are parked and counted in the Summary. A storage
// failure or cancellation stops the cycle and returns the partial Summary
// with a *FatalError.
func (d *Driver) Integrate(ctx context.Context) (Summary, error) {
	release, err := d.acquire(ctx)
	if err != nil {
		return Summary{}, err
	}
	defer release()

	return d.cycle(ctx)
}

// acquire takes the site lock and returns its release function.
func (d *Driver) acquire(ctx context.Context) (func(), error) {
	lease, err := d.locker.Acquire(ctx, d.siteID)
	if errors.Is(err, lock.ErrLocked) {
		d.observeCycle("busy", 0)
		return nil, ErrCycleInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("acquire site lock %s: %w", d.siteID, err)
	}

	return func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			d.logger.Warn("release site lock", zap.String("site_id", d.siteID), zap.Error(err))
		}
	}, nil
}

// step is one envelope of a planned cycle. tr is nil for a merge of a table
// without a translator.
type step struct {
	env ir.Envelope
	tr  translation.Translator
}

// plan orders a batch: merges by ascending seq, then every other envelope
// by table dependency order and ascending seq.
func (d *Driver) plan(envs []ir.Envelope) []step {
	var merges, rows []step
	for _, env := range envs {
		tr, _ := d.registry.Lookup(env.TableName)
		if env.IsMerge() {
			merges = append(merges, step{env: env, tr: tr})
		} else {
			rows = append(rows, step{env: env, tr: tr})
		}
	}

	bySeq := func(a, b step) int {
		return cmp.Or(cmp.Compare(a.env.Seq, b.env.Seq), cmp.Compare(a.env.RecordID, b.env.RecordID))
	}
	slices.SortStableFunc(merges, bySeq)
	slices.SortStableFunc(rows, func(a, b step) int {
		ra, _ := d.registry.Rank(a.env.TableName)
		rb, _ := d.registry.Rank(b.env.TableName)
		return cmp.Or(cmp.Compare(ra, rb), bySeq(a, b))
	})
	return append(merges, rows...)
}

// cycle runs one integration cycle. The caller holds the site lock.
func (d *Driver) cycle(ctx context.Context) (Summary, error) {
	runID := d.runIDs.Generate()
	started := d.now()
	summary := newSummary(runID, started)

	ctx, span := d.tracer.Start(ctx, "msync.integrate", trace.WithAttributes(
		attribute.String("msync.run_id", runID),
		attribute.String("msync.site_id", d.siteID),
	))
	defer span.End()

	logger := d.logger.With(zap.String("run_id", runID))
	logger.Debug("integration cycle started")

	var fatal error
	if err := d.storage.StartRun(ctx, store.RunRecord{ID: runID, StartedAt: store.FormatTime(started)}); err != nil {
		fatal = &FatalError{RunID: runID, Err: fmt.Errorf("start run: %w", err)}
	} else {
		fatal = d.runBatch(ctx, logger, &summary)
	}

	return d.finish(ctx, span, logger, summary, fatal)
}

func (d *Driver) runBatch(ctx context.Context, logger *zap.Logger, summary *Summary) error {
	unknown, err := d.storage.FetchUndeferred(ctx, d.tables, d.batchSize)
	if err != nil {
		return &FatalError{RunID: summary.RunID, Err: fmt.Errorf("fetch undeferred: %w", err)}
	}
	for _, env := range unknown {
		if err := ctx.Err(); err != nil {
			return &FatalError{RunID: summary.RunID, RecordID: env.RecordID, Err: err}
		}
		if err := d.deferEnvelope(ctx, logger, summary.RunID, env); err != nil {
			return &FatalError{RunID: summary.RunID, RecordID: env.RecordID, Err: err}
		}
		summary.record(env.TableName, store.OutcomeSkipped)
		d.observeEnvelope(env.TableName, store.OutcomeSkipped)
	}

	envs, err := d.storage.FetchPending(ctx, d.tables, d.batchSize)
	if err != nil {
		return &FatalError{RunID: summary.RunID, Err: fmt.Errorf("fetch pending: %w", err)}
	}

	for _, s := range d.plan(envs) {
		if err := ctx.Err(); err != nil {
			return &FatalError{RunID: summary.RunID, RecordID: s.env.RecordID, Err: err}
		}
		outcome, err := d.process(ctx, logger, summary.RunID, s)
		if err != nil {
			return &FatalError{RunID: summary.RunID, RecordID: s.env.RecordID, Err: err}
		}
		summary.record(s.env.TableName, outcome)
		d.observeEnvelope(s.env.TableName, outcome)
	}
	return nil
}

// finish loads the cursor, closes the sync_run and reports the cycle.
func (d *Driver) finish(ctx context.Context, span trace.Span, logger *zap.Logger, summary Summary, fatal error) (Summary, error) {
	// The run is closed even when ctx was cancelled mid-batch.
	bg := context.WithoutCancel(ctx)

	cursor, err := d.storage.LoadCursor(bg)
	if err != nil && fatal == nil {
		fatal = &FatalError{RunID: summary.RunID, Err: fmt.Errorf("load cursor: %w", err)}
	}
	if cursor != nil {
		summary.Cursor = cursor
	}
	summary.FinishedAt = d.now()

	totals := summary.Totals()
	finished := store.FormatTime(summary.FinishedAt)
	run := store.RunRecord{
		ID:         summary.RunID,
		FinishedAt: &finished,
		Applied:    int64(totals.Applied),
		Skipped:    int64(totals.Skipped),
		Errored:    int64(totals.Errored),
	}
	if fatal != nil {
		msg := fatal.Error()
		run.Error = &msg
	}
	if err := d.storage.FinishRun(bg, run); err != nil {
		logger.Error("finish run", zap.Error(err))
		if fatal == nil {
			fatal = &FatalError{RunID: summary.RunID, Err: fmt.Errorf("finish run: %w", err)}
		}
	}

	span.SetAttributes(
		attribute.Int("msync.applied", totals.Applied),
		attribute.Int("msync.skipped", totals.Skipped),
		attribute.Int("msync.errored", totals.Errored),
	)
	result := "ok"
	if fatal != nil {
		result = "fatal"
		span.RecordError(fatal)
		span.SetStatus(codes.Error, fatal.Error())
		logger.Error("integration cycle aborted", zap.Error(fatal))
	}
	d.observeCycle(result, summary.Duration())
	d.observeCursor(summary.Cursor)

	logger.Info("integration cycle finished",
		zap.Int("applied", totals.Applied),
		zap.Int("skipped", totals.Skipped),
		zap.Int("errored", totals.Errored),
		zap.Duration("duration", summary.Duration()))
	return summary, fatal
}

// process integrates one envelope and returns its outcome. Any returned
// error is fatal to the cycle.
func (d *Driver) process(ctx context.Context, logger *zap.Logger, runID string, s step) (string, error) {
	env := s.env
	ctx, span := d.tracer.Start(ctx, "msync.envelope", trace.WithAttributes(
		attribute.String("msync.record_id", env.RecordID),
		attribute.String("msync.table_name", env.TableName),
		attribute.String("msync.action", string(env.Action)),
		attribute.Int64("msync.seq", env.Seq),
	))
	defer span.End()

	logger = logger.With(
		zap.String("record_id", env.RecordID),
		zap.String("table_name", env.TableName),
		zap.String("action", string(env.Action)),
		zap.Int64("seq", env.Seq))

	now := d.now()
	var res translation.Result
	err := d.storage.InTx(ctx, func(tx *store.Tx) error {
		if s.tr == nil {
			return &translation.TranslationError{Table: env.TableName, RecordID: env.RecordID, Reason: "no translator for table"}
		}

		tc := &translation.Context{
			Links:  links.New(tx, logger),
			Rows:   tx,
			Now:    now,
			Logger: logger,
		}
		var err error
		res, err = translation.Translate(ctx, tc, s.tr, env)
		if err != nil {
			return err
		}
		if err := tx.Apply(ctx, res.Ops); err != nil {
			return err
		}

		outcome, msg := store.OutcomeApplied, ""
		if res.Skipped {
			outcome, msg = store.OutcomeSkipped, res.Reason
		}
		return d.commitOutcome(ctx, tx, runID, env, outcome, msg, len(res.Ops), now)
	})

	outcome, msg, ops := store.OutcomeApplied, "", 0

	switch {
	case err == nil:
		ops = len(res.Ops)
		if res.Skipped {
			outcome, msg = store.OutcomeSkipped, res.Reason
		}
		logger.Debug("envelope integrated", zap.String("outcome", outcome), zap.Int("ops", ops))
		if env.IsMerge() && outcome == store.OutcomeApplied && d.metrics != nil {
			d.metrics.MergesTotal.WithLabelValues(env.TableName).Inc()
		}

	case ctx.Err() != nil:
		span.SetStatus(codes.Error, "cancelled")
		return "", ctx.Err()

	case translation.IsTranslationError(err):
		outcome, msg = store.OutcomeErrored, err.Error()
		logger.Warn("record parked", zap.Error(err))
		if err := d.park(ctx, runID, env, outcome, msg, now); err != nil {
			return "", err
		}

	case links.IsLinkResolutionError(err):
		outcome, msg = store.OutcomeSkipped, err.Error()
		logger.Warn("link resolution skipped", zap.Error(err))
		if err := d.park(ctx, runID, env, outcome, msg, now); err != nil {
			return "", err
		}

	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(attribute.String("msync.outcome", outcome))
	d.record(ctx, span, runID, env, outcome, msg, ops, now)
	return outcome, nil
}

// deferEnvelope reports an envelope of a table without a translator once. It
// is logged and audited as skipped but its stream does not advance, so a
// build that knows the table integrates it later.
func (d *Driver) deferEnvelope(ctx context.Context, logger *zap.Logger, runID string, env ir.Envelope) error {
	ctx, span := d.tracer.Start(ctx, "msync.envelope", trace.WithAttributes(
		attribute.String("msync.record_id", env.RecordID),
		attribute.String("msync.table_name", env.TableName),
		attribute.String("msync.action", string(env.Action)),
		attribute.Int64("msync.seq", env.Seq),
	))
	defer span.End()

	now := d.now()
	at := store.FormatTime(now)
	msg := "no translator for table, envelope left pending"
	err := d.storage.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.MarkDeferred(ctx, env.RecordID, at); err != nil {
			return err
		}
		return tx.WriteLog(ctx, store.LogEntry{
			ID:        logEntryID(env, store.OutcomeSkipped),
			RunID:     runID,
			RecordID:  env.RecordID,
			TableName: env.TableName,
			Action:    string(env.Action),
			Seq:       env.Seq,
			Outcome:   store.OutcomeSkipped,
			Message:   &msg,
			LoggedAt:  at,
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	logger.Warn(msg,
		zap.String("record_id", env.RecordID),
		zap.String("table_name", env.TableName),
		zap.Int64("seq", env.Seq))
	span.SetAttributes(attribute.String("msync.outcome", store.OutcomeSkipped))
	d.record(ctx, span, runID, env, store.OutcomeSkipped, msg, 0, now)
	return nil
}

// park commits the outcome of an envelope whose translation was rolled back.
func (d *Driver) park(ctx context.Context, runID string, env ir.Envelope, outcome, msg string, now time.Time) error {
	return d.storage.InTx(ctx, func(tx *store.Tx) error {
		return d.commitOutcome(ctx, tx, runID, env, outcome, msg, 0, now)
	})
}

// commitOutcome advances the envelope's stream, marks the buffer row and
// writes the integration log inside tx.
func (d *Driver) commitOutcome(ctx context.Context, tx *store.Tx, runID string, env ir.Envelope, outcome, msg string, ops int, now time.Time) error {
	if err := tx.AdvanceCursor(ctx, env.Stream(), env.Seq); err != nil {
		return err
	}

	at := store.FormatTime(now)
	if outcome == store.OutcomeErrored {
		if err := tx.MarkParked(ctx, env.RecordID, msg); err != nil {
			return err
		}
	} else if err := tx.MarkIntegrated(ctx, env.RecordID, at); err != nil {
		return err
	}

	entry := store.LogEntry{
		ID:        logEntryID(env, outcome),
		RunID:     runID,
		RecordID:  env.RecordID,
		TableName: env.TableName,
		Action:    string(env.Action),
		Seq:       env.Seq,
		Outcome:   outcome,
		OpCount:   int64(ops),
		LoggedAt:  at,
	}
	if msg != "" {
		entry.Message = &msg
	}
	return tx.WriteLog(ctx, entry)
}

// logEntryID derives the integration_log id from the envelope content, so a
// replayed envelope with the same outcome does not add a second row.
func logEntryID(env ir.Envelope, outcome string) string {
	fp, err := env.Fingerprint()
	if err != nil {
		fp = fmt.Sprintf("%s#%d", env.RecordID, env.Seq)
	}
	return ir.LogEntryID(fp, outcome)
}

// record publishes the audit entry of a committed envelope. Audit failures
// are logged and never fail the cycle.
func (d *Driver) record(ctx context.Context, span trace.Span, runID string, env ir.Envelope, outcome, msg string, ops int, at time.Time) {
	entry := audit.Entry{
		RunID:      runID,
		RecordID:   env.RecordID,
		Table:      env.TableName,
		Action:     string(env.Action),
		Seq:        env.Seq,
		Outcome:    outcome,
		Message:    msg,
		OpCount:    ops,
		At:         at.UTC(),
		SourceSite: env.SourceSite,
	}
	if sc := span.SpanContext(); sc.IsValid() {
		entry.TraceID = sc.TraceID().String()
	}
	if err := d.audit.Record(ctx, entry); err != nil {
		d.logger.Warn("audit record failed", zap.String("record_id", env.RecordID), zap.Error(err))
	}
}

func (d *Driver) observeEnvelope(table, outcome string) {
	if d.metrics != nil {
		d.metrics.EnvelopesTotal.WithLabelValues(table, outcome).Inc()
	}
}

func (d *Driver) observeCycle(result string, elapsed time.Duration) {
	if d.metrics == nil {
		return
	}
	d.metrics.CyclesTotal.WithLabelValues(result).Inc()
	if elapsed > 0 {
		d.metrics.CycleDuration.Observe(elapsed.Seconds())
	}
}

func (d *Driver) observeCursor(cursor ir.Cursor) {
	if d.metrics == nil {
		return
	}
	for _, stream := range cursor.Streams() {
		d.metrics.CursorPosition.WithLabelValues(stream).Set(float64(cursor.Get(stream)))
	}
}
