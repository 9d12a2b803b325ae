package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tunable/internal/kernels"
	"github.com/samcharles93/tunable/pkg/tunable"
)

func demoCmd() *cli.Command {
	var (
		dimM    int64
		dimK    int64
		dimN    int64
		seed    int64
		repeats int64
	)

	return &cli.Command{
		Name:  "demo",
		Usage: "Tune the bundled GEMM kernel set for a given shape",
		Flags: append(append(commonTuningFlags(), commonLogFlags()...),
			&cli.Int64Flag{
				Name:        "m",
				Usage:       "rows of A and C",
				Value:       256,
				Destination: &dimM,
			},
			&cli.Int64Flag{
				Name:        "k",
				Usage:       "columns of A, rows of B",
				Value:       256,
				Destination: &dimK,
			},
			&cli.Int64Flag{
				Name:        "n",
				Usage:       "columns of B and C",
				Value:       256,
				Destination: &dimN,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "seed for the generated input matrices",
				Value:       42,
				Destination: &seed,
			},
			&cli.Int64Flag{
				Name:        "repeats",
				Usage:       "number of executions after tuning (hits the cached decision)",
				Value:       3,
				Destination: &repeats,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyTuningConfig(cmd, cfg)

			log := newLogger()
			tctx := newTuningContext(log)

			if path := tctx.ResultsFile(); path != "" {
				if err := tctx.ResultsManager().ReadFile(path); err != nil {
					if !errors.Is(err, fs.ErrNotExist) {
						return fmt.Errorf("read results file: %w", err)
					}
					log.Info("results file not found, starting fresh", "path", path)
				}
			}

			op := kernels.NewGemmOp(tctx)
			params := kernels.NewGemmParams(int(dimM), int(dimK), int(dimN), seed)
			defer params.Release()

			log.Info("tuning gemm",
				"m", dimM, "k", dimK, "n", dimN,
				"candidates", op.Candidates())

			start := time.Now()
			if status := op.Execute(params); status != tunable.OK {
				return fmt.Errorf("gemm execution returned %s", status)
			}
			log.Info("tuning complete", "elapsed", time.Since(start))

			entry := tctx.ResultsManager().Lookup(op.Signature(), params.Signature())
			if entry.IsNull() {
				log.Warn("no tuning decision recorded, default kernel was used")
			} else {
				fmt.Printf("selected:   %s\n", entry.Name)
				fmt.Printf("mean time:  %s\n", entry.Duration)
			}

			for i := int64(0); i < repeats; i++ {
				t := time.Now()
				if status := op.Execute(params); status != tunable.OK {
					return fmt.Errorf("gemm execution returned %s", status)
				}
				log.Debug("cached execution", "iteration", i, "elapsed", time.Since(t))
			}

			if path := tctx.ResultsFile(); path != "" {
				if err := tctx.ResultsManager().WriteFile(path); err != nil {
					return fmt.Errorf("write results file: %w", err)
				}
				log.Info("results saved", "path", path, "entries", tctx.ResultsManager().NumResults())
			}
			return nil
		},
	}
}
