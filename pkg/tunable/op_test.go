package tunable

import (
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// paramStats is shared by every copy of a fakeParams so tests can observe
// pool sizing and lifetime behaviour.
type paramStats struct {
	mu             sync.Mutex
	rotatingCopies int
	plainCopies    int
	live           int
}

func (s *paramStats) onCopy(rotating bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rotating {
		s.rotatingCopies++
	} else {
		s.plainCopies++
	}
	s.live++
}

func (s *paramStats) onRelease() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live--
}

func (s *paramStats) liveCopies() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

type fakeParams struct {
	sig  string
	size int64

	// out is the simulated numerical output written by candidates.
	out float64

	stats *paramStats
}

func newFakeParams(sig string, size int64) *fakeParams {
	return &fakeParams{sig: sig, size: size, stats: &paramStats{}}
}

func (p *fakeParams) Signature() string { return p.sig }

func (p *fakeParams) DeepCopy(rotating bool) *fakeParams {
	if p.stats != nil {
		p.stats.onCopy(rotating)
	}
	cp := *p
	return &cp
}

func (p *fakeParams) Size(rotating bool) int64 { return p.size }

func (p *fakeParams) NumericalCheck(other *fakeParams) Status {
	if math.Abs(p.out-other.out) <= 1e-9 {
		return OK
	}
	return Fail
}

func (p *fakeParams) Release() {
	if p.stats != nil {
		p.stats.onRelease()
	}
}

// fakeKernel simulates a candidate with a fixed per-call cost and output.
type fakeKernel struct {
	cost   time.Duration
	out    float64
	status Status
	// failAfter, when positive, makes the kernel fail on call number
	// failAfter+1 and later.
	failAfter int64

	calls atomic.Int64
}

func (k *fakeKernel) Call(p *fakeParams) Status {
	n := k.calls.Add(1)
	if k.status != OK {
		return k.status
	}
	if k.failAfter > 0 && n > k.failAfter {
		return Fail
	}
	if k.cost > 0 {
		time.Sleep(k.cost)
	}
	p.out = k.out
	return OK
}

func (k *fakeKernel) IsSupported(p *fakeParams) Status { return k.Call(p) }

func newTestContext() *TuningContext {
	ctx := NewTuningContext()
	ctx.SetEnabled(true)
	ctx.SetMaxWarmupIterations(0)
	ctx.SetMaxTuningIterations(10)
	return ctx
}

func TestSignatureMemoizedAcrossGoroutines(t *testing.T) {
	t.Parallel()
	op := New[*fakeParams]("FakeOp", newTestContext())
	op.MustRegister(DefaultName, &fakeKernel{})

	const workers = 32
	sigs := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sigs[i] = op.Signature()
		}(i)
	}
	wg.Wait()

	want := "FakeOp[tunable.fakeParams]"
	for i, sig := range sigs {
		if sig != want {
			t.Fatalf("goroutine %d got signature %q, want %q", i, sig, want)
		}
	}
}

func TestCacheFirstDispatch(t *testing.T) {
	t.Parallel()
	ctx := newTestContext()
	def := &fakeKernel{}
	cached := &fakeKernel{}
	other := &fakeKernel{}

	op := New[*fakeParams]("CachedOp", ctx)
	op.MustRegister(DefaultName, def)
	op.MustRegister("Cached", cached)
	op.MustRegister("Other", other)

	params := newFakeParams("shape", 64)
	ctx.ResultsManager().Add(op.Signature(), params.Signature(),
		ResultEntry{Name: "Cached", Duration: time.Millisecond})

	if status := op.Execute(params); status != OK {
		t.Fatalf("Execute returned %s", status)
	}
	if got := cached.calls.Load(); got != 1 {
		t.Fatalf("cached candidate called %d times, want 1", got)
	}
	if got := def.calls.Load(); got != 0 {
		t.Fatalf("default candidate called %d times, want 0 (selector must not run)", got)
	}
	if got := other.calls.Load(); got != 0 {
		t.Fatalf("other candidate called %d times, want 0 (selector must not run)", got)
	}
}

func TestDisabledFeatureAlwaysUsesDefault(t *testing.T) {
	t.Parallel()
	ctx := newTestContext()
	ctx.SetEnabled(false)
	def := &fakeKernel{}
	fast := &fakeKernel{}

	op := New[*fakeParams]("DisabledOp", ctx)
	op.MustRegister(DefaultName, def)
	op.MustRegister("FastKernel", fast)

	params := newFakeParams("shape", 64)
	// A cached decision must be ignored when the feature is off.
	ctx.ResultsManager().Add(op.Signature(), params.Signature(),
		ResultEntry{Name: "FastKernel", Duration: time.Millisecond})

	if status := op.Execute(params); status != OK {
		t.Fatalf("Execute returned %s", status)
	}
	if got := def.calls.Load(); got != 1 {
		t.Fatalf("default called %d times, want 1", got)
	}
	if got := fast.calls.Load(); got != 0 {
		t.Fatalf("fast candidate called %d times, want 0", got)
	}
}

func TestMissWithTuningOffFallsBackToDefault(t *testing.T) {
	t.Parallel()
	ctx := newTestContext()
	ctx.SetTuningEnabled(false)
	def := &fakeKernel{}
	fast := &fakeKernel{}

	op := New[*fakeParams]("NoTuneOp", ctx)
	op.MustRegister(DefaultName, def)
	op.MustRegister("FastKernel", fast)

	params := newFakeParams("shape", 64)
	if status := op.Execute(params); status != OK {
		t.Fatalf("Execute returned %s", status)
	}
	if got := def.calls.Load(); got != 1 {
		t.Fatalf("default called %d times, want 1", got)
	}
	if got := fast.calls.Load(); got != 0 {
		t.Fatalf("fast candidate benchmarked despite tuning off: %d calls", got)
	}
	if entry := ctx.ResultsManager().Lookup(op.Signature(), params.Signature()); !entry.IsNull() {
		t.Fatalf("unexpected cached decision %+v", entry)
	}
}

func TestExecutePropagatesCandidateStatus(t *testing.T) {
	t.Parallel()
	ctx := newTestContext()
	ctx.SetEnabled(false)

	op := New[*fakeParams]("FailOp", ctx)
	op.MustRegister(DefaultName, &fakeKernel{status: Fail})

	if status := op.Execute(newFakeParams("shape", 64)); status != Fail {
		t.Fatalf("Execute returned %s, want FAIL", status)
	}
}

func TestFindFastestSelectsFastKernel(t *testing.T) {
	ctx := newTestContext()
	def := &fakeKernel{cost: 10 * time.Millisecond, out: 1}
	fast := &fakeKernel{cost: 2 * time.Millisecond, out: 1}
	slow := &fakeKernel{cost: 50 * time.Millisecond, out: 1}

	op := New[*fakeParams]("GemmLikeOp", ctx)
	op.MustRegister(DefaultName, def)
	op.MustRegister("FastKernel", fast)
	op.MustRegister("SlowKernel", slow)

	params := newFakeParams("128_128_128", 64)
	if status := op.Execute(params); status != OK {
		t.Fatalf("Execute returned %s", status)
	}

	entry := ctx.ResultsManager().Lookup(op.Signature(), params.Signature())
	if entry.Name != "FastKernel" {
		t.Fatalf("winner is %q, want FastKernel (duration %v)", entry.Name, entry.Duration)
	}
	if entry.Duration < time.Millisecond || entry.Duration > 6*time.Millisecond {
		t.Fatalf("measured duration %v, want roughly 2ms", entry.Duration)
	}

	// SlowKernel must be early-bailed: one correctness probe plus the three
	// approximate iterations, never the calibrated measurement.
	if got := slow.calls.Load(); got != 1+approxIterations {
		t.Fatalf("slow candidate called %d times, want %d (early bail)", got, 1+approxIterations)
	}

	// A second call with the same signature must dispatch from the cache.
	fastBefore := fast.calls.Load()
	defBefore := def.calls.Load()
	if status := op.Execute(params); status != OK {
		t.Fatalf("second Execute returned %s", status)
	}
	if got := fast.calls.Load(); got != fastBefore+1 {
		t.Fatalf("fast candidate called %d times after cached dispatch, want %d", got, fastBefore+1)
	}
	if got := def.calls.Load(); got != defBefore {
		t.Fatalf("default re-benchmarked on cached dispatch: %d calls, want %d", got, defBefore)
	}
}

func TestNumericsCheckExcludesDivergentCandidate(t *testing.T) {
	ctx := newTestContext()
	ctx.SetNumericsCheck(true)
	def := &fakeKernel{cost: time.Millisecond, out: 1}
	wrong := &fakeKernel{out: 5} // instant, but numerically divergent

	op := New[*fakeParams]("NumCheckOp", ctx)
	op.MustRegister(DefaultName, def)
	op.MustRegister("WrongKernel", wrong)

	params := newFakeParams("shape", 64)
	if status := op.Execute(params); status != OK {
		t.Fatalf("Execute returned %s", status)
	}

	entry := ctx.ResultsManager().Lookup(op.Signature(), params.Signature())
	if entry.Name != DefaultName {
		t.Fatalf("winner is %q, want Default (divergent candidate must not win)", entry.Name)
	}
	// The divergent candidate runs exactly once, for the numerics probe.
	if got := wrong.calls.Load(); got != 1 {
		t.Fatalf("divergent candidate called %d times, want 1", got)
	}
}

func TestUnsupportedCandidateSkipped(t *testing.T) {
	ctx := newTestContext()
	def := &fakeKernel{cost: time.Millisecond, out: 1}
	unsupported := &fakeKernel{status: Unsupported}

	op := New[*fakeParams]("SupportOp", ctx)
	op.MustRegister(DefaultName, def)
	op.MustRegister("NarrowKernel", unsupported)

	params := newFakeParams("shape", 64)
	if status := op.Execute(params); status != OK {
		t.Fatalf("Execute returned %s", status)
	}
	entry := ctx.ResultsManager().Lookup(op.Signature(), params.Signature())
	if entry.Name != DefaultName {
		t.Fatalf("winner is %q, want Default", entry.Name)
	}
	if got := unsupported.calls.Load(); got != 1 {
		t.Fatalf("unsupported candidate called %d times, want 1 (probe only)", got)
	}
}

func TestDispatchToUnregisteredNamePanics(t *testing.T) {
	t.Parallel()
	ctx := newTestContext()
	op := New[*fakeParams]("GhostOp", ctx)
	op.MustRegister(DefaultName, &fakeKernel{})

	params := newFakeParams("shape", 64)
	ctx.ResultsManager().Add(op.Signature(), params.Signature(),
		ResultEntry{Name: "Ghost", Duration: time.Millisecond})

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic dispatching to unregistered candidate")
		}
	}()
	op.Execute(params)
}

func TestGatedCandidateFailingDuringMeasurementPanics(t *testing.T) {
	ctx := newTestContext()
	def := &fakeKernel{out: 1}
	flaky := &fakeKernel{out: 1, failAfter: 1} // passes the gate, fails after

	op := New[*fakeParams]("FlakyOp", ctx)
	op.MustRegister(DefaultName, def)
	op.MustRegister("FlakyKernel", flaky)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic when a gated candidate fails during measurement")
		}
		if msg, ok := r.(string); !ok || !strings.Contains(msg, "correctness gate") {
			t.Fatalf("unexpected panic value: %v", r)
		}
	}()
	op.Execute(newFakeParams("shape", 64))
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()
	op := New[*fakeParams]("RegOp", newTestContext())

	if err := op.Register("NotDefault", &fakeKernel{}); err == nil {
		t.Fatal("expected error when first candidate is not Default")
	}
	if err := op.Register(DefaultName, &fakeKernel{}); err != nil {
		t.Fatalf("Register(Default) failed: %v", err)
	}
	if err := op.Register(DefaultName, &fakeKernel{}); err == nil {
		t.Fatal("expected error on duplicate name")
	}
	if err := op.Register("", &fakeKernel{}); err == nil {
		t.Fatal("expected error on empty name")
	}
	if err := op.Register("Nil", nil); err == nil {
		t.Fatal("expected error on nil candidate")
	}

	got := op.Candidates()
	if len(got) != 1 || got[0] != DefaultName {
		t.Fatalf("Candidates() = %v, want [Default]", got)
	}
}
