// Package kernels provides the built-in GEMM candidate set used to exercise
// the tuner end to end: a naive reference kernel plus tiled, parallel, and
// unrolled variants with different sweet spots across input shapes.
package kernels

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/samcharles93/tunable/pkg/tunable"
)

// gemmTolerance is the max absolute element difference accepted by the
// numerics cross-check. float32 accumulation order differs between kernels,
// so exact equality is not expected.
const gemmTolerance = 1e-3

// GemmParams holds one C = A*B invocation over dense row-major float32
// matrices: A is MxK, B is KxN, C is MxN.
type GemmParams struct {
	M, K, N int
	A, B, C []float32
}

// NewGemmParams allocates operands for the given shape, filling A and B with
// seeded pseudo-random values.
func NewGemmParams(m, k, n int, seed int64) *GemmParams {
	p := &GemmParams{
		M: m, K: k, N: n,
		A: make([]float32, m*k),
		B: make([]float32, k*n),
		C: make([]float32, m*n),
	}
	rng := rand.New(rand.NewSource(seed))
	for i := range p.A {
		p.A[i] = rng.Float32()*2 - 1
	}
	for i := range p.B {
		p.B[i] = rng.Float32()*2 - 1
	}
	return p
}

// Signature identifies the shape; it is the tuner's cache key for this
// parameter instance.
func (p *GemmParams) Signature() string {
	return fmt.Sprintf("%d_%d_%d", p.M, p.K, p.N)
}

// DeepCopy returns a fully independent copy. Rotating copies are no
// different from plain copies on the CPU backend.
func (p *GemmParams) DeepCopy(rotating bool) *GemmParams {
	cp := &GemmParams{
		M: p.M, K: p.K, N: p.N,
		A: make([]float32, len(p.A)),
		B: make([]float32, len(p.B)),
		C: make([]float32, len(p.C)),
	}
	copy(cp.A, p.A)
	copy(cp.B, p.B)
	copy(cp.C, p.C)
	return cp
}

// Size reports the combined operand footprint in bytes.
func (p *GemmParams) Size(rotating bool) int64 {
	return int64(len(p.A)+len(p.B)+len(p.C)) * 4
}

// NumericalCheck compares this instance's output against other's.
func (p *GemmParams) NumericalCheck(other *GemmParams) tunable.Status {
	if other == nil || len(p.C) != len(other.C) {
		return tunable.Fail
	}
	for i := range p.C {
		if d := math.Abs(float64(p.C[i] - other.C[i])); d > gemmTolerance {
			return tunable.Fail
		}
	}
	return tunable.OK
}

// Release drops the operand buffers.
func (p *GemmParams) Release() {
	p.A, p.B, p.C = nil, nil, nil
}

func (p *GemmParams) valid() bool {
	return p.M > 0 && p.K > 0 && p.N > 0 &&
		len(p.A) == p.M*p.K && len(p.B) == p.K*p.N && len(p.C) == p.M*p.N
}
