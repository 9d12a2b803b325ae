package tunable

import (
	"fmt"
	"sync"
)

// TunableOp is the entry point for one logical operation with several
// interchangeable implementations. Candidates are registered once at setup;
// Execute then routes each call to the best known candidate, benchmarking
// on the first encounter of a new parameter signature and memoising the
// decision in the context's results manager.
//
// A TunableOp is safe for concurrent Execute calls. Register is not safe to
// run concurrently with Execute.
type TunableOp[P Params[P]] struct {
	name string
	ctx  *TuningContext

	// names preserves registration order, which is also evaluation order
	// during selection.
	names []string
	ops   map[string]Callable[P]

	sigOnce sync.Once
	sig     string
}

// New creates a TunableOp with the given identity name. A nil ctx uses the
// process-wide tuning context. The first candidate registered must use
// DefaultName.
func New[P Params[P]](name string, ctx *TuningContext) *TunableOp[P] {
	if ctx == nil {
		ctx = GetTuningContext()
	}
	return &TunableOp[P]{
		name: name,
		ctx:  ctx,
		ops:  make(map[string]Callable[P]),
	}
}

// Register adds a named candidate. Names must be unique; the first
// registration must be the Default (reference) candidate.
func (t *TunableOp[P]) Register(name string, op Callable[P]) error {
	if name == "" {
		return fmt.Errorf("tunable: empty candidate name")
	}
	if op == nil {
		return fmt.Errorf("tunable: nil candidate %q", name)
	}
	if _, exists := t.ops[name]; exists {
		return fmt.Errorf("tunable: candidate %q already registered", name)
	}
	if len(t.names) == 0 && name != DefaultName {
		return fmt.Errorf("tunable: first candidate must be %q, got %q", DefaultName, name)
	}
	t.names = append(t.names, name)
	t.ops[name] = op
	return nil
}

// MustRegister is Register for static candidate sets assembled at startup.
func (t *TunableOp[P]) MustRegister(name string, op Callable[P]) {
	if err := t.Register(name, op); err != nil {
		panic(err)
	}
}

// Candidates returns the registered candidate names in evaluation order.
func (t *TunableOp[P]) Candidates() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Signature returns the operation's identity string, computed once per
// instance. Concurrent first callers all observe the same single
// computation.
func (t *TunableOp[P]) Signature() string {
	t.sigOnce.Do(func() {
		t.sig = t.createSignature()
	})
	return t.sig
}

func (t *TunableOp[P]) createSignature() string {
	return t.name + "[" + paramsTypeSignature[P]() + "]"
}

// Execute routes one invocation to the selected candidate and returns that
// candidate's status unchanged.
//
// With the tunable-op feature disabled this is a direct dispatch to the
// Default candidate. Otherwise the results manager is consulted first; on a
// miss, and only if runtime tuning is enabled, the full selection protocol
// runs and its decision is cached before dispatch.
func (t *TunableOp[P]) Execute(params P) Status {
	result := NullEntry()
	ctx := t.ctx
	if ctx.Enabled() {
		mgr := ctx.ResultsManager()
		opSig := t.Signature()
		paramsSig := params.Signature()
		result = mgr.Lookup(opSig, paramsSig)
		if result.IsNull() && ctx.TuningEnabled() {
			result = t.findFastest(params)
			mgr.Add(opSig, paramsSig, result)
		}
	} else {
		result = DefaultEntry()
	}
	if result.IsNull() {
		ctx.Logger().Debug("no tuning result, using default", "op", t.Signature())
		result = DefaultEntry()
	}
	op, ok := t.ops[result.Name]
	if !ok {
		panic(fmt.Sprintf("tunable: %s: no registered candidate %q", t.Signature(), result.Name))
	}
	return op.Call(params)
}
