package kernels

import (
	"golang.org/x/sys/cpu"

	"github.com/samcharles93/tunable/pkg/tunable"
)

// NewGemmOp assembles the GEMM candidate registry. The naive kernel is the
// Default (reference) candidate; the unrolled variant is only registered on
// CPUs reporting AVX2.
func NewGemmOp(ctx *tunable.TuningContext) *tunable.TunableOp[*GemmParams] {
	op := tunable.New[*GemmParams]("GemmTunableOp", ctx)
	op.MustRegister(tunable.DefaultName, tunable.CallableFunc[*GemmParams](gemmNaive))
	op.MustRegister("Tiled", tunable.CallableFunc[*GemmParams](gemmTiled))
	op.MustRegister("Parallel", gemmParallel{})
	if cpu.X86.HasAVX2 {
		op.MustRegister("Unrolled8", tunable.CallableFunc[*GemmParams](gemmUnrolled8))
	}
	return op
}
