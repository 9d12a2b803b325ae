package kernels

import (
	"runtime"
	"sync"

	"github.com/samcharles93/tunable/pkg/tunable"
)

// Tile sizes for the blocked kernel, tuned for the 256^3 benchmark shape.
const (
	defaultTileM = 32
	defaultTileN = 32
	defaultTileK = 16

	maxTileM = 64
	maxTileN = 64
	maxTileK = 64
)

// minParallelRows is the row count below which the parallel kernel reports
// Unsupported: goroutine fan-out overhead dominates on small outputs.
const minParallelRows = 16

func selectTiles(m, k, n int) (int, int, int) {
	tm := defaultTileM
	tn := defaultTileN
	tk := defaultTileK

	switch {
	case k >= 192:
		tk = 32
	case k >= 96:
		tk = 24
	}

	return clampTile(tm, maxTileM), clampTile(tn, maxTileN), clampTile(tk, maxTileK)
}

func clampTile(value, limit int) int {
	if value < 1 {
		return 1
	}
	if value > limit {
		return limit
	}
	return value
}

// gemmNaive is the reference implementation: a plain triple loop.
func gemmNaive(p *GemmParams) tunable.Status {
	if !p.valid() {
		return tunable.Unsupported
	}
	for i := 0; i < p.M; i++ {
		arow := p.A[i*p.K : (i+1)*p.K]
		crow := p.C[i*p.N : (i+1)*p.N]
		for j := 0; j < p.N; j++ {
			var sum float32
			for k := 0; k < p.K; k++ {
				sum += arow[k] * p.B[k*p.N+j]
			}
			crow[j] = sum
		}
	}
	return tunable.OK
}

// gemmTiled is a cache-blocked kernel accumulating over K panels.
func gemmTiled(p *GemmParams) tunable.Status {
	if !p.valid() {
		return tunable.Unsupported
	}
	tm, tn, tk := selectTiles(p.M, p.K, p.N)
	clear(p.C)

	for i0 := 0; i0 < p.M; i0 += tm {
		iMax := min(i0+tm, p.M)
		for k0 := 0; k0 < p.K; k0 += tk {
			kMax := min(k0+tk, p.K)
			for j0 := 0; j0 < p.N; j0 += tn {
				jMax := min(j0+tn, p.N)
				for i := i0; i < iMax; i++ {
					crow := p.C[i*p.N : (i+1)*p.N]
					for k := k0; k < kMax; k++ {
						a := p.A[i*p.K+k]
						if a == 0 {
							continue
						}
						brow := p.B[k*p.N : (k+1)*p.N]
						for j := j0; j < jMax; j++ {
							crow[j] += a * brow[j]
						}
					}
				}
			}
		}
	}
	return tunable.OK
}

// gemmParallel splits output rows across GOMAXPROCS goroutines.
type gemmParallel struct{}

func (gemmParallel) Call(p *GemmParams) tunable.Status {
	if !p.valid() || p.M < minParallelRows {
		return tunable.Unsupported
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > p.M {
		workers = p.M
	}
	strip := (p.M + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		rs := w * strip
		re := min(rs+strip, p.M)
		if rs >= re {
			break
		}
		wg.Add(1)
		go func(rs, re int) {
			defer wg.Done()
			gemmRangeRows(p, rs, re)
		}(rs, re)
	}
	wg.Wait()
	return tunable.OK
}

// IsSupported avoids spawning workers just to probe support.
func (gemmParallel) IsSupported(p *GemmParams) tunable.Status {
	if !p.valid() || p.M < minParallelRows {
		return tunable.Unsupported
	}
	return tunable.OK
}

func gemmRangeRows(p *GemmParams, rs, re int) {
	for i := rs; i < re; i++ {
		arow := p.A[i*p.K : (i+1)*p.K]
		crow := p.C[i*p.N : (i+1)*p.N]
		clear(crow)
		for k := 0; k < p.K; k++ {
			a := arow[k]
			if a == 0 {
				continue
			}
			brow := p.B[k*p.N : (k+1)*p.N]
			for j := range crow {
				crow[j] += a * brow[j]
			}
		}
	}
}

// gemmUnrolled8 accumulates eight output columns per inner-loop step so the
// compiler can keep the partial sums in registers. Registered only on CPUs
// with AVX2, where the wider stores pay off.
func gemmUnrolled8(p *GemmParams) tunable.Status {
	if !p.valid() {
		return tunable.Unsupported
	}
	clear(p.C)
	for i := 0; i < p.M; i++ {
		arow := p.A[i*p.K : (i+1)*p.K]
		crow := p.C[i*p.N : (i+1)*p.N]
		for k := 0; k < p.K; k++ {
			a := arow[k]
			if a == 0 {
				continue
			}
			brow := p.B[k*p.N : (k+1)*p.N]
			j := 0
			for ; j+8 <= p.N; j += 8 {
				crow[j] += a * brow[j]
				crow[j+1] += a * brow[j+1]
				crow[j+2] += a * brow[j+2]
				crow[j+3] += a * brow[j+3]
				crow[j+4] += a * brow[j+4]
				crow[j+5] += a * brow[j+5]
				crow[j+6] += a * brow[j+6]
				crow[j+7] += a * brow[j+7]
			}
			for ; j < p.N; j++ {
				crow[j] += a * brow[j]
			}
		}
	}
	return tunable.OK
}
