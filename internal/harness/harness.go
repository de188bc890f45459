package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/msync/internal/audit"
	"github.com/roach88/msync/internal/domain"
	"github.com/roach88/msync/internal/engine"
	"github.com/roach88/msync/internal/ir"
	"github.com/roach88/msync/internal/store"
	"github.com/roach88/msync/internal/testutil"
)

// traceSink is the audit sink that builds the scenario trace.
type traceSink struct {
	mu     sync.Mutex
	cycle  int
	events []TraceEvent
}

func (s *traceSink) Record(_ context.Context, e audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, TraceEvent{
		Cycle:    s.cycle,
		RecordID: e.RecordID,
		Table:    e.Table,
		Action:   e.Action,
		Seq:      e.Seq,
		Outcome:  e.Outcome,
		Message:  e.Message,
	})
	return nil
}

func (s *traceSink) setCycle(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycle = n
}

// Harness executes one scenario against one store.
type Harness struct {
	store  *store.Store
	driver *engine.Driver
	seqs   *testutil.SeqClock
	sink   *traceSink
	logger *zap.Logger
}

// Option configures a scenario run.
type Option func(*runConfig)

type runConfig struct {
	logger *zap.Logger
	dir    string
}

// WithLogger sends driver and store logs to logger. Logs are discarded
// by default.
func WithLogger(logger *zap.Logger) Option {
	return func(c *runConfig) { c.logger = logger }
}

// WithDir places the scenario database in dir instead of a fresh
// temporary directory.
func WithDir(dir string) Option {
	return func(c *runConfig) { c.dir = dir }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh SQLite database for isolation, with
// sequential run ids and a step clock so results are reproducible.
// Expectation and assertion failures are reported in Result.Errors; an
// error return means the scenario could not be executed at all.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	dir := cfg.dir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "msync-scenario-*")
		if err != nil {
			return nil, fmt.Errorf("create scenario dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	clock := testutil.NewStepClock(testutil.Epoch, time.Second)
	st, err := store.Open(filepath.Join(dir, scenario.Name+".db"),
		store.WithLogger(cfg.logger), store.WithNow(clock.Now))
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	sink := &traceSink{}
	driver, err := engine.New(st,
		engine.WithLogger(cfg.logger),
		engine.WithAudit(sink),
		engine.WithBatchSize(scenario.BatchSize),
		engine.WithNow(clock.Now),
		engine.WithRunIDs(testutil.NewSequentialRunIDs("")),
	)
	if err != nil {
		return nil, err
	}

	h := &Harness{store: st, driver: driver, seqs: testutil.NewSeqClock(), sink: sink, logger: cfg.logger}

	result := NewResult()
	for i, c := range scenario.Cycles {
		if err := h.runCycle(ctx, i, c, result); err != nil {
			return nil, fmt.Errorf("cycle %d: %w", i, err)
		}
	}

	sink.mu.Lock()
	result.Trace = append(result.Trace, sink.events...)
	sink.mu.Unlock()

	if err := h.capture(ctx, result); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions, &AssertionContext{Store: st, Ctx: ctx}) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) runCycle(ctx context.Context, index int, c Cycle, result *Result) error {
	envs, err := h.envelopes(c.Ingest)
	if err != nil {
		return err
	}
	if len(envs) > 0 {
		if _, err := h.store.WriteEnvelopes(ctx, envs); err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
	}

	for _, recordID := range c.Requeue {
		seq, err := h.store.Requeue(ctx, recordID)
		if err != nil {
			return fmt.Errorf("requeue: %w", err)
		}
		h.seqs.Observe(seq)
	}

	h.sink.setCycle(index)
	var summary engine.Summary
	if c.Replay != nil {
		summary, err = h.driver.Replay(ctx, c.Replay.Stream, c.Replay.FromSeq)
	} else {
		summary, err = h.driver.Integrate(ctx)
	}
	if err != nil {
		return err
	}

	totals := summary.Totals()
	result.Cycles = append(result.Cycles, CycleResult{
		RunID:   summary.RunID,
		Applied: totals.Applied,
		Skipped: totals.Skipped,
		Errored: totals.Errored,
	})
	h.logger.Debug("scenario cycle finished",
		zap.Int("cycle", index),
		zap.String("run_id", summary.RunID),
		zap.Int("applied", totals.Applied))

	if c.Expect != nil {
		got := CycleExpect{Applied: totals.Applied, Skipped: totals.Skipped, Errored: totals.Errored}
		if got != *c.Expect {
			result.AddError(fmt.Sprintf("cycle[%d]: expected applied=%d skipped=%d errored=%d, got applied=%d skipped=%d errored=%d",
				index, c.Expect.Applied, c.Expect.Skipped, c.Expect.Errored, got.Applied, got.Skipped, got.Errored))
		}
	}
	return nil
}

// envelopes converts ingested records, assigning a seq to those without one.
func (h *Harness) envelopes(entries []ir.YAMLEnvelope) ([]ir.Envelope, error) {
	envs := make([]ir.Envelope, 0, len(entries))
	for _, entry := range entries {
		if entry.Seq == 0 {
			entry.Seq = h.seqs.Next()
		} else {
			h.seqs.Observe(entry.Seq)
		}
		env, err := entry.Envelope()
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}
	return envs, nil
}

// capture copies links, tombstones and cursor into the result.
func (h *Harness) capture(ctx context.Context, result *Result) error {
	for _, kind := range domain.LinkKinds() {
		rows, err := h.store.Links(ctx, kind)
		if err != nil {
			return err
		}
		result.Links = append(result.Links, rows...)
	}

	tombstones, err := h.store.Tombstones(ctx)
	if err != nil {
		return err
	}
	result.Tombstones = tombstones

	cursor, err := h.store.LoadCursor(ctx)
	if err != nil {
		return err
	}
	result.Cursor = cursor
	return nil
}
