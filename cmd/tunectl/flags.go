package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tunable/internal/logger"
	"github.com/samcharles93/tunable/pkg/tunable"
)

var (
	resultsFile        string
	numericsCheck      bool
	rotatingBufferSize int64
	maxWarmupMs        float64
	maxWarmupIters     int64
	maxTuningMs        float64
	maxTuningIters     int64
	logLevel           string
	logFormat          string
)

func commonTuningFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "results-file",
			Aliases:     []string{"f"},
			Usage:       "path to the tuning results file",
			Destination: &resultsFile,
		},
		&cli.BoolFlag{
			Name:        "numerics-check",
			Usage:       "cross-check each candidate's output against the reference",
			Destination: &numericsCheck,
		},
		&cli.Int64Flag{
			Name:        "rotating-buffer-size",
			Usage:       "rotating parameter buffer budget in bytes (0 disables rotation)",
			Destination: &rotatingBufferSize,
		},
		&cli.FloatFlag{
			Name:        "max-warmup-ms",
			Usage:       "warmup time budget per candidate in ms (negative leaves it unset)",
			Value:       -1,
			Destination: &maxWarmupMs,
		},
		&cli.Int64Flag{
			Name:        "max-warmup-iters",
			Usage:       "warmup iteration budget per candidate (negative leaves it unset)",
			Value:       -1,
			Destination: &maxWarmupIters,
		},
		&cli.FloatFlag{
			Name:        "max-tuning-ms",
			Usage:       "measurement time budget per candidate in ms (0 leaves it unset)",
			Destination: &maxTuningMs,
		},
		&cli.Int64Flag{
			Name:        "max-tuning-iters",
			Usage:       "measurement iteration budget per candidate (0 leaves it unset)",
			Destination: &maxTuningIters,
		},
	}
}

func commonLogFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, text, json)",
			Value:       "pretty",
			Destination: &logFormat,
		},
	}
}

func newLogger() logger.Logger {
	level := logger.ParseLevel(logLevel)
	switch logFormat {
	case "json":
		return logger.JSON(os.Stderr, level)
	case "text":
		return logger.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	default:
		return logger.Pretty(os.Stderr, level)
	}
}

// newTuningContext builds a context from the environment, then layers the
// CLI flags on top.
func newTuningContext(log logger.Logger) *tunable.TuningContext {
	ctx := tunable.NewTuningContextFromEnv()
	ctx.SetEnabled(true)
	ctx.SetLogger(log)
	ctx.SetNumericsCheck(numericsCheck)
	if rotatingBufferSize > 0 {
		ctx.SetRotatingBufferSize(rotatingBufferSize)
	}
	if maxWarmupMs >= 0 {
		ctx.SetMaxWarmupDuration(time.Duration(maxWarmupMs * float64(time.Millisecond)))
	}
	if maxWarmupIters >= 0 {
		ctx.SetMaxWarmupIterations(int(maxWarmupIters))
	}
	if maxTuningMs > 0 {
		ctx.SetMaxTuningDuration(time.Duration(maxTuningMs * float64(time.Millisecond)))
	}
	if maxTuningIters > 0 {
		ctx.SetMaxTuningIterations(int(maxTuningIters))
	}
	if resultsFile != "" {
		ctx.SetResultsFile(resultsFile)
	}
	return ctx
}
