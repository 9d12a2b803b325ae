package tunable

import (
	"testing"
	"time"
)

func TestParamsPoolSizing(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		budget    int64
		paramSize int64
		want      int
	}{
		{"no rotation", 0, 64, 1},
		{"budget smaller than one copy", 100, 200, 1},
		{"exact divisor", 120, 40, 4},
		{"with remainder", 100, 40, 3},
		{"single byte params", 4, 1, 5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := newTestContext()
			ctx.SetRotatingBufferSize(tc.budget)
			op := New[*fakeParams]("PoolOp", ctx)
			op.MustRegister(DefaultName, &fakeKernel{})

			params := newFakeParams("shape", tc.paramSize)
			pool := op.newParamsPool(params)
			if len(pool) != tc.want {
				t.Fatalf("pool size %d, want %d", len(pool), tc.want)
			}
			rotating := tc.budget > 0
			if rotating && params.stats.rotatingCopies != tc.want {
				t.Fatalf("rotating copies %d, want %d", params.stats.rotatingCopies, tc.want)
			}
			if !rotating && params.stats.plainCopies != 1 {
				t.Fatalf("plain copies %d, want 1", params.stats.plainCopies)
			}
		})
	}
}

func TestWarmupIterations(t *testing.T) {
	t.Parallel()
	const unset = -1
	tests := []struct {
		name        string
		maxDuration time.Duration
		maxIters    int
		approx      time.Duration
		want        int
	}{
		{"both unset defaults to one", unset, unset, time.Millisecond, 1},
		{"zero duration disables warmup", 0, unset, time.Millisecond, 0},
		{"zero iterations disables warmup", unset, 0, time.Millisecond, 0},
		{"duration converts to iterations", 10 * time.Millisecond, unset, time.Millisecond, 10},
		{"iterations cap the duration budget", 10 * time.Millisecond, 5, time.Millisecond, 5},
		{"duration caps the iteration budget", 2 * time.Millisecond, 100, time.Millisecond, 2},
		{"iterations alone", unset, 7, time.Millisecond, 7},
		{"duration rounds down to zero", 5 * time.Millisecond, unset, 10 * time.Millisecond, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := warmupIterations(tc.maxDuration, tc.maxIters, tc.approx)
			if got != tc.want {
				t.Fatalf("warmupIterations(%v, %d, %v) = %d, want %d",
					tc.maxDuration, tc.maxIters, tc.approx, got, tc.want)
			}
		})
	}
}

func TestTuningIterations(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		maxDuration time.Duration
		maxIters    int
		poolSize    int
		approx      time.Duration
		want        int
	}{
		{"both unset defaults to 100", 0, 0, 1, time.Millisecond, 100},
		{"iterations alone", 0, 30, 1, time.Millisecond, 30},
		{"duration converts to iterations", 20 * time.Millisecond, 0, 1, time.Millisecond, 20},
		{"iterations cap the duration budget", 20 * time.Millisecond, 5, 1, time.Millisecond, 5},
		{"floor of one when duration rounds to zero", time.Millisecond, 0, 1, 10 * time.Millisecond, 1},
		{"pool size floor", 0, 3, 7, time.Millisecond, 7},
		{"pool size floor over duration", time.Millisecond, 0, 4, 10 * time.Millisecond, 4},
		{"zero approx duration", 10 * time.Millisecond, 0, 1, 0, 100},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tuningIterations(tc.maxDuration, tc.maxIters, tc.poolSize, tc.approx)
			if got != tc.want {
				t.Fatalf("tuningIterations(%v, %d, %d, %v) = %d, want %d",
					tc.maxDuration, tc.maxIters, tc.poolSize, tc.approx, got, tc.want)
			}
		})
	}
}

func TestSelectorReleasesAllCopies(t *testing.T) {
	t.Parallel()
	for _, numerics := range []bool{false, true} {
		ctx := newTestContext()
		ctx.SetNumericsCheck(numerics)
		ctx.SetRotatingBufferSize(256)

		op := New[*fakeParams]("LifetimeOp", ctx)
		op.MustRegister(DefaultName, &fakeKernel{out: 1})
		op.MustRegister("Other", &fakeKernel{out: 1})
		op.MustRegister("Unsupported", &fakeKernel{status: Unsupported})

		params := newFakeParams("shape", 64)
		op.findFastest(params)

		if live := params.stats.liveCopies(); live != 0 {
			t.Fatalf("numerics=%v: %d copies still live after selector run", numerics, live)
		}
	}
}

func TestSelectorMonotonicity(t *testing.T) {
	ctx := newTestContext()
	kernels := map[string]*fakeKernel{
		"Mid":     {cost: 3 * time.Millisecond, out: 1},
		"Fastest": {cost: 1 * time.Millisecond, out: 1},
	}
	def := &fakeKernel{cost: 2 * time.Millisecond, out: 1}

	op := New[*fakeParams]("MonotoneOp", ctx)
	op.MustRegister(DefaultName, def)
	op.MustRegister("Mid", kernels["Mid"])
	op.MustRegister("Fastest", kernels["Fastest"])

	entry := op.findFastest(newFakeParams("shape", 64))
	if entry.Name != "Fastest" {
		t.Fatalf("winner %q, want Fastest (duration %v)", entry.Name, entry.Duration)
	}
}

func TestSelectorICacheFlush(t *testing.T) {
	t.Parallel()
	ctx := newTestContext()
	flushes := 0
	ctx.SetICacheFlush(func() { flushes++ }, 2)

	op := New[*fakeParams]("FlushOp", ctx)
	op.MustRegister(DefaultName, &fakeKernel{out: 1})

	op.findFastest(newFakeParams("shape", 64))

	// Two up-front passes, plus one flush per harness call: gate is
	// unflushed, approx runs 3, tuning runs the configured 10.
	want := 2 + approxIterations + 10
	if flushes != want {
		t.Fatalf("flush called %d times, want %d", flushes, want)
	}
}
