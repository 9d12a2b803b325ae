package tunable

import (
	"fmt"
	"time"
)

// warmUp executes op n times, round-robining the parameter pool and flushing
// the instruction cache before each call when a flush primitive is supplied.
// Every call must succeed: the candidate already passed the correctness gate
// under the same parameters, so a failure here is a programming error, not a
// runtime condition.
func warmUp[P Params[P]](op Callable[P], pool []P, n int, flush func()) {
	for i := 0; i < n; i++ {
		if flush != nil {
			flush()
		}
		if status := op.Call(pool[i%len(pool)]); status != OK {
			panic(fmt.Sprintf("tunable: candidate failed during warmup with status %s after passing correctness gate", status))
		}
	}
}

// profile uses the same calling pattern as warmUp but brackets the whole
// loop in a single timer measurement, returning the mean per-call duration.
func profile[P Params[P]](op Callable[P], pool []P, n int, flush func(), timer Timer) time.Duration {
	timer.Start()
	for i := 0; i < n; i++ {
		if flush != nil {
			flush()
		}
		if status := op.Call(pool[i%len(pool)]); status != OK {
			panic(fmt.Sprintf("tunable: candidate failed during profiling with status %s after passing correctness gate", status))
		}
	}
	timer.End()
	return timer.Duration() / time.Duration(n)
}
