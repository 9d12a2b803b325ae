package tunable

import (
	"math"
	"os"
	"strconv"
	"sync"
	"time"
)

// Environment variables recognised by NewTuningContextFromEnv. Duration
// knobs are in milliseconds, matching the granularity kernel launches are
// usually reasoned about in.
const (
	EnvEnabled             = "TUNABLEOP_ENABLED"
	EnvTuning              = "TUNABLEOP_TUNING"
	EnvNumericsCheck       = "TUNABLEOP_NUMERICS_CHECK"
	EnvICacheFlush         = "TUNABLEOP_ICACHE_FLUSH"
	EnvRotatingBufferSize  = "TUNABLEOP_ROTATING_BUFFER_SIZE"
	EnvMaxWarmupDurationMs = "TUNABLEOP_MAX_WARMUP_DURATION_MS"
	EnvMaxWarmupIterations = "TUNABLEOP_MAX_WARMUP_ITERATIONS"
	EnvMaxTuningDurationMs = "TUNABLEOP_MAX_TUNING_DURATION_MS"
	EnvMaxTuningIterations = "TUNABLEOP_MAX_TUNING_ITERATIONS"
	EnvResultsFile         = "TUNABLEOP_RESULTS_FILE"
)

// TuningContext carries the process-wide tuning configuration and the shared
// results manager. All accessors are safe for concurrent use; knob writes are
// expected at setup time but tolerated at any point.
type TuningContext struct {
	mu sync.RWMutex

	enabled       bool
	tuningEnabled bool
	numericsCheck bool

	icacheFlushIters int
	flushICache      func()

	rotatingBufferSize int64

	// Negative warmup knobs mean "unset"; zero is a valid value that
	// disables warmup. For the tuning knobs zero already means "unset"
	// because tuning must always run at least one iteration.
	maxWarmupDuration   time.Duration
	maxWarmupIterations int
	maxTuningDuration   time.Duration
	maxTuningIterations int

	resultsFile string

	manager  *TuningResultsManager
	newTimer func() Timer
	log      Logger
}

// NewTuningContext returns a context with tuning feature disabled, runtime
// tuning allowed once the feature is enabled, and every budget knob unset so
// the selector defaults apply.
func NewTuningContext() *TuningContext {
	return &TuningContext{
		tuningEnabled:       true,
		maxWarmupDuration:   -1,
		maxWarmupIterations: -1,
		manager:             NewTuningResultsManager(),
		log:                 nopLogger{},
	}
}

// NewTuningContextFromEnv builds a context from TUNABLEOP_* environment
// variables. Unset or unparsable variables keep their defaults.
func NewTuningContextFromEnv() *TuningContext {
	ctx := NewTuningContext()
	if v, ok := envBool(EnvEnabled); ok {
		ctx.enabled = v
	}
	if v, ok := envBool(EnvTuning); ok {
		ctx.tuningEnabled = v
	}
	if v, ok := envBool(EnvNumericsCheck); ok {
		ctx.numericsCheck = v
	}
	if v, ok := envInt(EnvICacheFlush); ok && v > 0 {
		ctx.icacheFlushIters = v
	}
	if v, ok := envInt64(EnvRotatingBufferSize); ok && v > 0 {
		ctx.rotatingBufferSize = v
	}
	if v, ok := envFloat(EnvMaxWarmupDurationMs); ok && v >= 0 {
		ctx.maxWarmupDuration = millis(v)
	}
	if v, ok := envInt(EnvMaxWarmupIterations); ok && v >= 0 {
		ctx.maxWarmupIterations = v
	}
	if v, ok := envFloat(EnvMaxTuningDurationMs); ok && v > 0 {
		ctx.maxTuningDuration = millis(v)
	}
	if v, ok := envInt(EnvMaxTuningIterations); ok && v > 0 {
		ctx.maxTuningIterations = v
	}
	if v := os.Getenv(EnvResultsFile); v != "" {
		ctx.resultsFile = v
	}
	return ctx
}

var (
	globalCtxOnce sync.Once
	globalCtx     *TuningContext
)

// GetTuningContext returns the process-wide context, created from the
// environment on first use.
func GetTuningContext() *TuningContext {
	globalCtxOnce.Do(func() {
		globalCtx = NewTuningContextFromEnv()
	})
	return globalCtx
}

// Enabled reports whether the tunable-op feature is on at all. When false,
// every Execute call dispatches straight to the Default candidate.
func (c *TuningContext) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

func (c *TuningContext) SetEnabled(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = v
}

// TuningEnabled reports whether a cache miss may trigger benchmarking. With
// this off, misses fall back to the Default candidate.
func (c *TuningContext) TuningEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tuningEnabled
}

func (c *TuningContext) SetTuningEnabled(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tuningEnabled = v
}

func (c *TuningContext) NumericsCheckEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.numericsCheck
}

func (c *TuningContext) SetNumericsCheck(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.numericsCheck = v
}

// SetICacheFlush injects the instruction-cache flush primitive and how many
// flush passes the selector performs up front. Flushing is off unless both a
// primitive and a positive count are supplied.
func (c *TuningContext) SetICacheFlush(fn func(), iters int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushICache = fn
	c.icacheFlushIters = iters
}

// icacheFlush returns the configured flush pass count and the primitive, or
// (0, nil) when flushing is disabled.
func (c *TuningContext) icacheFlush() (int, func()) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.flushICache == nil || c.icacheFlushIters <= 0 {
		return 0, nil
	}
	return c.icacheFlushIters, c.flushICache
}

// ICacheFlushEnabled reports whether measurement interleaves instruction
// cache flushes.
func (c *TuningContext) ICacheFlushEnabled() bool {
	n, fn := c.icacheFlush()
	return n > 0 && fn != nil
}

// RotatingBufferSize is the combined memory budget, in bytes, of the deep
// copies the selector rotates through during measurement. Zero disables
// rotation.
func (c *TuningContext) RotatingBufferSize() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rotatingBufferSize
}

func (c *TuningContext) SetRotatingBufferSize(bytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rotatingBufferSize = bytes
}

// MaxWarmupDuration returns the warmup time budget; negative means unset.
func (c *TuningContext) MaxWarmupDuration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxWarmupDuration
}

func (c *TuningContext) SetMaxWarmupDuration(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxWarmupDuration = d
}

// MaxWarmupIterations returns the warmup iteration budget; negative means
// unset. Zero disables warmup entirely.
func (c *TuningContext) MaxWarmupIterations() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxWarmupIterations
}

func (c *TuningContext) SetMaxWarmupIterations(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxWarmupIterations = n
}

// MaxTuningDuration returns the measurement time budget; zero or negative
// means unset.
func (c *TuningContext) MaxTuningDuration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxTuningDuration
}

func (c *TuningContext) SetMaxTuningDuration(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxTuningDuration = d
}

// MaxTuningIterations returns the measurement iteration budget; zero or
// negative means unset.
func (c *TuningContext) MaxTuningIterations() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxTuningIterations
}

func (c *TuningContext) SetMaxTuningIterations(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxTuningIterations = n
}

// ResultsFile is the path decisions are persisted to, if any.
func (c *TuningContext) ResultsFile() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resultsFile
}

func (c *TuningContext) SetResultsFile(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resultsFile = path
}

// ResultsManager returns the shared decision cache.
func (c *TuningContext) ResultsManager() *TuningResultsManager {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.manager
}

// SetTimer overrides the timing capability used for measurement. The factory
// is invoked once per profiling pass.
func (c *TuningContext) SetTimer(factory func() Timer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.newTimer = factory
}

// Timer returns a fresh timer, wall-clock backed unless overridden.
func (c *TuningContext) Timer() Timer {
	c.mu.RLock()
	factory := c.newTimer
	c.mu.RUnlock()
	if factory != nil {
		return factory()
	}
	return &wallTimer{}
}

func (c *TuningContext) SetLogger(log Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if log == nil {
		log = nopLogger{}
	}
	c.log = log
}

func (c *TuningContext) Logger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.log
}

// millis converts fractional milliseconds, rounding so values survive a
// write/parse round trip through the results file.
func millis(ms float64) time.Duration {
	return time.Duration(math.Round(ms * float64(time.Millisecond)))
}

func envBool(key string) (bool, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envInt64(key string) (int64, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envFloat(key string) (float64, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
