package translation

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/msync/internal/ir"
	"github.com/roach88/msync/internal/links"
)

// Descriptor is the static description of a translator.
type Descriptor struct {
	// Table is the legacy table the translator handles.
	Table LegacyTable

	// Dependencies must be integrated before Table within a batch.
	Dependencies []LegacyTable

	// Actions lists the envelope actions the translator accepts.
	Actions []ir.Action
}

// Supports reports whether the translator accepts an action.
func (d Descriptor) Supports(action ir.Action) bool {
	return slices.Contains(d.Actions, action)
}

// Translator converts envelopes of one legacy table.
type Translator interface {
	Descriptor() Descriptor
	Translate(ctx context.Context, tc *Context, env ir.Envelope) (Result, error)
}

// RowReader answers existence checks against already integrated rows.
// *store.Tx implements it.
type RowReader interface {
	Exists(ctx context.Context, table, id string) (bool, error)
}

// Context carries what a translator may consult while translating one
// envelope. It is scoped to the envelope's transaction.
type Context struct {
	Links  *links.Store
	Rows   RowReader
	Now    time.Time
	Logger *zap.Logger
}

func (c *Context) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Result is the outcome of translating one envelope.
type Result struct {
	Ops []ir.Op

	// Skipped marks an envelope that was intentionally dropped, such as a
	// merge that was already applied.
	Skipped bool
	Reason  string
}

// Skip returns a skipped result.
func Skip(reason string) Result {
	return Result{Skipped: true, Reason: reason}
}

// Translate checks that tr accepts the envelope's action and runs it.
func Translate(ctx context.Context, tc *Context, tr Translator, env ir.Envelope) (Result, error) {
	desc := tr.Descriptor()
	if !desc.Supports(env.Action) {
		return Result{}, newTranslationError(env, "unsupported action "+string(env.Action), nil)
	}
	return tr.Translate(ctx, tc, env)
}

var (
	upsertOnly       = []ir.Action{ir.ActionUpsert}
	upsertDelete     = []ir.Action{ir.ActionUpsert, ir.ActionDelete}
	upsertMergeables = []ir.Action{ir.ActionUpsert, ir.ActionMerge}
)
