package tunable

import "time"

// Timer is the high-resolution timing capability used by the benchmark
// harness. Start and End bracket a measurement; Duration reports the
// elapsed time between them. Implementations need not be safe for
// concurrent use; the harness creates one per measurement.
type Timer interface {
	Start()
	End()
	Duration() time.Duration
}

type wallTimer struct {
	start time.Time
	end   time.Time
}

func (t *wallTimer) Start() { t.start = time.Now() }

func (t *wallTimer) End() { t.end = time.Now() }

func (t *wallTimer) Duration() time.Duration { return t.end.Sub(t.start) }
