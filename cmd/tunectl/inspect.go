package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tunable/pkg/tunable"
)

func inspectCmd() *cli.Command {
	var (
		path   string
		asJSON bool
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect the contents of a tuning results file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "results-file",
				Aliases:     []string{"f"},
				Usage:       "path to the tuning results file",
				Destination: &path,
				Required:    true,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "emit the results as JSON",
				Destination: &asJSON,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			manager := tunable.NewTuningResultsManager()
			if err := manager.ReadFile(path); err != nil {
				return fmt.Errorf("read results file: %w", err)
			}

			if asJSON {
				raw, err := json.MarshalIndent(manager, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal results: %w", err)
				}
				fmt.Println(string(raw))
				return nil
			}

			results := manager.Results()
			opSigs := make([]string, 0, len(results))
			for opSig := range results {
				opSigs = append(opSigs, opSig)
			}
			sort.Strings(opSigs)

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "OPERATION\tPARAMS\tCANDIDATE\tMEAN TIME")
			for _, opSig := range opSigs {
				kernelMap := results[opSig]
				paramsSigs := make([]string, 0, len(kernelMap))
				for paramsSig := range kernelMap {
					paramsSigs = append(paramsSigs, paramsSig)
				}
				sort.Strings(paramsSigs)
				for _, paramsSig := range paramsSigs {
					entry := kernelMap[paramsSig]
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", opSig, paramsSig, entry.Name, entry.Duration)
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Printf("\n%d result(s)\n", manager.NumResults())
			return nil
		},
	}
}
