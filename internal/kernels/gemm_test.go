package kernels

import (
	"math"
	"testing"
	"time"

	"github.com/samcharles93/tunable/pkg/tunable"
)

func maxAbsDiff(a, b []float32) float64 {
	var maxAbs float64
	for i := range a {
		d := math.Abs(float64(a[i] - b[i]))
		if d > maxAbs {
			maxAbs = d
		}
	}
	return maxAbs
}

func referenceOutput(t *testing.T, m, k, n int, seed int64) (*GemmParams, []float32) {
	t.Helper()
	p := NewGemmParams(m, k, n, seed)
	ref := p.DeepCopy(false)
	if status := gemmNaive(ref); status != tunable.OK {
		t.Fatalf("naive kernel returned %s", status)
	}
	return p, ref.C
}

func TestKernelsMatchNaive(t *testing.T) {
	t.Parallel()
	kernels := map[string]func(*GemmParams) tunable.Status{
		"Tiled":     gemmTiled,
		"Parallel":  gemmParallel{}.Call,
		"Unrolled8": gemmUnrolled8,
	}

	p, want := referenceOutput(t, 50, 70, 45, 1)
	for name, kernel := range kernels {
		cp := p.DeepCopy(false)
		if status := kernel(cp); status != tunable.OK {
			t.Fatalf("%s returned %s", name, status)
		}
		if d := maxAbsDiff(want, cp.C); d > gemmTolerance {
			t.Fatalf("%s max abs diff %g", name, d)
		}
	}
}

func TestParallelUnsupportedForSmallRows(t *testing.T) {
	t.Parallel()
	p := NewGemmParams(minParallelRows-1, 8, 8, 2)
	if status := (gemmParallel{}).Call(p); status != tunable.Unsupported {
		t.Fatalf("Call on %d rows returned %s, want UNSUPPORTED", p.M, status)
	}
	if status := (gemmParallel{}).IsSupported(p); status != tunable.Unsupported {
		t.Fatalf("IsSupported on %d rows returned %s, want UNSUPPORTED", p.M, status)
	}
}

func TestGemmParamsSignature(t *testing.T) {
	t.Parallel()
	p := NewGemmParams(128, 64, 32, 0)
	if got := p.Signature(); got != "128_64_32" {
		t.Fatalf("Signature() = %q, want 128_64_32", got)
	}
}

func TestGemmParamsDeepCopyIsIndependent(t *testing.T) {
	t.Parallel()
	p := NewGemmParams(4, 4, 4, 3)
	cp := p.DeepCopy(true)
	cp.A[0] = 42
	cp.C[0] = 42
	if p.A[0] == 42 || p.C[0] == 42 {
		t.Fatal("DeepCopy shares backing arrays with the original")
	}
}

func TestGemmParamsSize(t *testing.T) {
	t.Parallel()
	p := NewGemmParams(2, 3, 4, 0)
	// (2*3 + 3*4 + 2*4) float32 values.
	if got, want := p.Size(true), int64((6+12+8)*4); got != want {
		t.Fatalf("Size() = %d, want %d", got, want)
	}
}

func TestNumericalCheck(t *testing.T) {
	t.Parallel()
	p, want := referenceOutput(t, 8, 8, 8, 4)
	good := p.DeepCopy(false)
	copy(good.C, want)
	ref := p.DeepCopy(false)
	copy(ref.C, want)

	if status := ref.NumericalCheck(good); status != tunable.OK {
		t.Fatalf("NumericalCheck on identical outputs = %s, want OK", status)
	}
	good.C[0] += 1
	if status := ref.NumericalCheck(good); status != tunable.Fail {
		t.Fatalf("NumericalCheck on divergent outputs = %s, want FAIL", status)
	}
	if status := ref.NumericalCheck(nil); status != tunable.Fail {
		t.Fatalf("NumericalCheck(nil) = %s, want FAIL", status)
	}
}

func TestGemmOpEndToEnd(t *testing.T) {
	ctx := tunable.NewTuningContext()
	ctx.SetEnabled(true)
	ctx.SetNumericsCheck(true)
	ctx.SetMaxWarmupIterations(0)
	ctx.SetMaxTuningIterations(3)

	op := NewGemmOp(ctx)
	params := NewGemmParams(64, 64, 64, 5)

	if status := op.Execute(params); status != tunable.OK {
		t.Fatalf("Execute returned %s", status)
	}

	entry := ctx.ResultsManager().Lookup(op.Signature(), params.Signature())
	if entry.IsNull() {
		t.Fatal("no decision cached after tuning")
	}
	if entry.Duration <= 0 || entry.Duration > time.Second {
		t.Fatalf("implausible winning duration %v", entry.Duration)
	}

	// The dispatched kernel's output must match the reference.
	_, want := referenceOutput(t, 64, 64, 64, 5)
	if d := maxAbsDiff(want, params.C); d > gemmTolerance {
		t.Fatalf("dispatched kernel output diverges: max abs diff %g", d)
	}
}
