// Command ava-export is a standalone CLI for §4.20's three training-data
// export formats (jsonl, csv, finetune), for operators who want a batch
// dump without going through internal/api's HTTP surface — e.g. piping
// straight into a fine-tuning job. Grounded on cmd/ava-jobs's cobra +
// config.Get() + bootstrap.Open shape, generalized from "run a job" to
// "stream a filtered query to a file/stdout".
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"ava/internal/apierr"
	"ava/internal/bootstrap"
	"ava/internal/config"
	"ava/internal/core"
	"ava/internal/export"
	"ava/internal/repo"
)

func main() {
	var (
		siteURL    string
		frictionID string
		outcomeStr string
		tierStr    string
		outPath    string
	)

	formats := map[string]func(ctx context.Context, stores *bootstrap.Stores, filter repo.TrainingDatapointFilter, out io.Writer) error{
		"jsonl":    runExport(export.WriteJSONL),
		"csv":      runExport(export.WriteCSV),
		"finetune": runExport(export.WriteFineTuneJSONL),
	}

	root := &cobra.Command{
		Use:   "ava-export <jsonl|csv|finetune>",
		Short: "Stream AVA's TrainingDatapoint export in one of three formats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			writeFn, ok := formats[args[0]]
			if !ok {
				return fmt.Errorf("ava-export: unknown format %q (want jsonl, csv, or finetune)", args[0])
			}

			filter := repo.TrainingDatapointFilter{SiteURL: siteURL, FrictionID: frictionID}
			if outcomeStr != "" {
				status := core.InterventionStatus(outcomeStr)
				filter.Outcome = &status
			}
			if tierStr != "" {
				tier := core.Tier(tierStr)
				filter.Tier = &tier
			}

			var out io.Writer = os.Stdout
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("ava-export: creating %s: %w", outPath, err)
				}
				defer f.Close()
				out = f
			}

			cfg := config.Get()
			stores, err := bootstrap.Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			return writeFn(cmd.Context(), stores, filter, out)
		},
	}

	root.Flags().StringVar(&siteURL, "site-url", "", "restrict to a single site")
	root.Flags().StringVar(&frictionID, "friction-id", "", "restrict to a single friction catalog entry")
	root.Flags().StringVar(&outcomeStr, "outcome", "", "restrict to one intervention outcome (converted, dismissed, ...)")
	root.Flags().StringVar(&tierStr, "tier", "", "restrict to one MSWIM tier (MONITOR, NUDGE, ESCALATE, ...)")
	root.Flags().StringVar(&outPath, "out", "", "write to this file instead of stdout")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// runExport adapts one of internal/export's Write* functions into the
// query-then-stream shape every format shares.
func runExport(writer func(w io.Writer, datapoints []core.TrainingDatapoint) error) func(context.Context, *bootstrap.Stores, repo.TrainingDatapointFilter, io.Writer) error {
	return func(ctx context.Context, stores *bootstrap.Stores, filter repo.TrainingDatapointFilter, out io.Writer) error {
		datapoints, err := stores.TrainingDatapoints.List(ctx, filter)
		if err != nil {
			return err
		}
		return writer(out, datapoints)
	}
}

func exitCodeFor(err error) int {
	if apierr.CategoryOf(err) == apierr.CategoryConfigurationError {
		return 2
	}
	return 1
}
