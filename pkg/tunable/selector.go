package tunable

import (
	"fmt"
	"time"
)

const (
	// approxIterations is the size of the cheap first-pass measurement used
	// to decide whether a candidate is worth calibrated benchmarking.
	approxIterations = 3

	defaultWarmupIterations = 1
	defaultTuningIterations = 100
)

// findFastest benchmarks every registered candidate against params and
// returns the decision: the name of the candidate with the minimum measured
// mean duration, or the Default fallback if nothing was measurable.
//
// Candidates are evaluated in registration order. Each one passes a
// correctness gate (a plain probe call, or a numerical cross-check against
// the Default candidate's reference output), then a three-iteration
// approximate timing; candidates slower than twice the running minimum are
// skipped before the expensive calibrated warmup and measurement.
func (t *TunableOp[P]) findFastest(params P) ResultEntry {
	ctx := t.ctx
	log := ctx.Logger()
	opSig := t.Signature()
	paramsSig := params.Signature()
	log.Debug("finding fastest", "op", opSig, "params", paramsSig, "candidates", len(t.names))

	minDuration := durationInfinite
	best := DefaultName

	flushIters, flush := ctx.icacheFlush()
	if flushIters > 0 {
		log.Debug("instruction cache flush enabled", "iterations", flushIters)
		for i := 0; i < flushIters; i++ {
			flush()
		}
	}

	defaultOp, ok := t.ops[DefaultName]
	if !ok {
		panic(fmt.Sprintf("tunable: %s: no %q candidate registered", opSig, DefaultName))
	}

	// Reference answer for the numerics check. Never buffer rotated, never
	// timed.
	reference := params.DeepCopy(false)
	defer reference.Release()
	if status := defaultOp.Call(reference); status != OK {
		panic(fmt.Sprintf("tunable: %s: default candidate failed on reference parameters with status %s", opSig, status))
	}

	pool := t.newParamsPool(params)
	defer func() {
		for _, p := range pool {
			p.Release()
		}
	}()

	timerFor := func() Timer { return ctx.Timer() }
	numerics := ctx.NumericsCheckEnabled()

	for i, name := range t.names {
		candidate := t.ops[name]

		if numerics {
			check := params.DeepCopy(false)
			status := candidate.Call(check)
			if status != OK {
				check.Release()
				log.Debug("candidate unsupported", "id", i, "name", name, "status", status)
				continue
			}
			status = reference.NumericalCheck(check)
			check.Release()
			if status != OK {
				log.Debug("numerics check failed", "id", i, "name", name)
				continue
			}
		} else {
			if status := candidate.Call(pool[0]); status != OK {
				log.Debug("candidate unsupported", "id", i, "name", name, "status", status)
				continue
			}
		}

		approx := profile(candidate, pool, approxIterations, flush, timerFor())
		if minDuration < durationInfinite/2 && approx > 2*minDuration {
			log.Debug("skipping slow candidate", "id", i, "name", name, "approx", approx, "best", minDuration)
			continue
		}

		warmupIters := warmupIterations(ctx.MaxWarmupDuration(), ctx.MaxWarmupIterations(), approx)
		tuningIters := tuningIterations(ctx.MaxTuningDuration(), ctx.MaxTuningIterations(), len(pool), approx)
		log.Debug("tuning candidate",
			"id", i, "name", name,
			"warmup_iters", warmupIters, "warmup_est", time.Duration(warmupIters)*approx,
			"tuning_iters", tuningIters, "tuning_est", time.Duration(tuningIters)*approx)

		warmUp(candidate, pool, warmupIters, flush)
		duration := profile(candidate, pool, tuningIters, flush, timerFor())
		if duration < minDuration {
			log.Debug("found better candidate", "id", i, "name", name, "duration", duration)
			minDuration = duration
			best = name
		}
	}

	log.Info("found fastest", "op", opSig, "params", paramsSig, "name", best, "duration", minDuration)
	return ResultEntry{Name: best, Duration: minDuration}
}

// newParamsPool deep-copies params enough times to fill the configured
// rotating-buffer budget: floor(budget/size)+1 copies when a budget is set,
// exactly one copy otherwise.
func (t *TunableOp[P]) newParamsPool(params P) []P {
	rotating := t.ctx.RotatingBufferSize()
	useRotation := rotating > 0

	count := 1
	if useRotation {
		size := params.Size(true)
		if size > 0 {
			count = int(rotating/size) + 1
		}
		t.ctx.Logger().Debug("rotating buffer",
			"budget_bytes", rotating, "params_bytes", size, "copies", count)
	}

	pool := make([]P, count)
	for i := range pool {
		pool[i] = params.DeepCopy(useRotation)
	}
	return pool
}

// warmupIterations derives the warmup count from the configured budgets and
// an approximate per-call duration. Negative knobs are unset; with both
// unset one warmup iteration runs. Zero is a valid derived or configured
// value and skips warmup entirely.
func warmupIterations(maxDuration time.Duration, maxIters int, approx time.Duration) int {
	if approx <= 0 {
		approx = 1
	}
	iters := defaultWarmupIterations
	switch {
	case maxDuration >= 0:
		durationIters := int(maxDuration / approx)
		if maxIters >= 0 {
			iters = min(maxIters, durationIters)
		} else {
			iters = durationIters
		}
	case maxIters >= 0:
		iters = maxIters
	}
	return iters
}

// tuningIterations derives the measurement count. Zero or negative knobs are
// unset; with both unset 100 iterations run. The count is clamped to at
// least one and to at least the pool size so every rotated copy is
// exercised.
func tuningIterations(maxDuration time.Duration, maxIters, poolSize int, approx time.Duration) int {
	if approx <= 0 {
		approx = 1
	}
	iters := defaultTuningIterations
	switch {
	case maxDuration > 0:
		durationIters := int(maxDuration / approx)
		if maxIters > 0 {
			iters = min(maxIters, durationIters)
		} else {
			iters = durationIters
		}
	case maxIters > 0:
		iters = maxIters
	}
	iters = max(iters, 1)
	iters = max(iters, poolSize)
	return iters
}
