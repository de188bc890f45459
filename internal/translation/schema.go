package translation

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/msync/internal/ir"
)

//go:embed schema.cue
var schemaSource []byte

// Definition names in schema.cue.
const (
	defUnit          = "#Unit"
	defItem          = "#Item"
	defName          = "#Name"
	defNameTag       = "#NameTag"
	defNameTagJoin   = "#NameTagJoin"
	defStore         = "#Store"
	defNameStoreJoin = "#NameStoreJoin"
	defTransact      = "#Transact"
	defTransLine     = "#TransLine"
	defMerge         = "#Merge"
)

// schema holds the compiled legacy schema. A cue.Context is not safe for
// concurrent use, so every validation holds mu.
type schema struct {
	mu  sync.Mutex
	ctx *cue.Context
	val cue.Value
}

var loadSchema = sync.OnceValues(func() (*schema, error) {
	ctx := cuecontext.New()
	val := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("compile legacy schema: %w", err)
	}
	return &schema{ctx: ctx, val: val}, nil
})

// validate unifies a JSON payload with a schema definition and requires the
// result to be concrete.
func (s *schema) validate(def string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.val.LookupPath(cue.ParsePath(def))
	if !d.Exists() {
		return fmt.Errorf("schema definition %s not found", def)
	}

	payload := s.ctx.CompileBytes(data, cue.Filename("payload.json"))
	if err := payload.Err(); err != nil {
		return formatSchemaError(err)
	}

	unified := d.Unify(payload)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatSchemaError(err)
	}
	return nil
}

// formatSchemaError reduces a CUE error list to its first error, prefixed
// with the field path when there is one.
func formatSchemaError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	format, args := first.Msg()
	msg := fmt.Sprintf(format, args...)
	if path := first.Path(); len(path) > 0 {
		return fmt.Errorf("%s: %s", strings.Join(path, "."), msg)
	}
	return fmt.Errorf("%s", msg)
}

// decodePayload validates env.Data against def and decodes it into dest.
// Any failure is a *TranslationError.
func decodePayload(env ir.Envelope, def string, dest any) error {
	s, err := loadSchema()
	if err != nil {
		return newTranslationError(env, "schema unavailable", err)
	}
	if err := s.validate(def, env.Data); err != nil {
		return newTranslationError(env, "invalid payload", err)
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return newTranslationError(env, "decode payload", err)
	}
	return nil
}
