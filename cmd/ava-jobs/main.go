// Command ava-jobs runs AVA's three periodic jobs (§4.14): nightly batch,
// hourly drift snapshot, and canary rollout health check. Grounded on
// joestump-claude-ops's cmd/claudeops/main.go: a cobra root command backed
// by AVA's own env-driven config.Get() singleton in place of viper, since
// internal/config already owns that responsibility.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ava/internal/apierr"
	"ava/internal/bootstrap"
	"ava/internal/config"
	"ava/internal/core"
	"ava/internal/drift"
	"ava/internal/jobs"
	"ava/internal/rollout"
	"ava/internal/webhooks"
)

// Exit codes per spec.md §6.
const (
	exitSuccess = 0
	exitError   = 1
	exitConfig  = 2
)

func main() {
	root := &cobra.Command{
		Use:   "ava-jobs",
		Short: "Run AVA's nightly/hourly/canary background jobs",
	}

	root.AddCommand(
		runCmd("nightly", "Run the nightly training-data and drift batch once", (*jobs.Runner).RunNightly),
		runCmd("hourly", "Run the hourly drift snapshot once", (*jobs.Runner).RunHourlySnapshot),
		runCmd("canary", "Run the canary rollout health check once", (*jobs.Runner).RunCanaryCheck),
		serveCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// runCmd builds a one-shot subcommand that triggers a single named job run
// via runFn (one of jobs.Runner's Run* methods) and reports the resulting
// core.JobRun's terminal status as a process exit code.
func runCmd(use, short string, runFn func(*jobs.Runner, context.Context, string) (core.JobRun, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, stores, dispatcher, err := buildRunner(cmd.Context())
			if err != nil {
				return err
			}
			defer stores.Close()
			defer dispatcher.Shutdown()

			run, err := runFn(runner, cmd.Context(), jobs.TriggeredByAPI)
			if err != nil {
				return err
			}
			if run.Status == core.JobFailed {
				return fmt.Errorf("job %s failed: %s", run.JobName, run.Error)
			}
			fmt.Printf("%s: %s (%s)\n", run.JobName, run.Status, run.Summary)
			return nil
		},
	}
}

// serveCmd starts the three timer loops and blocks until SIGINT/SIGTERM,
// mirroring claudeops' signal-handling main loop.
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the self-scheduling nightly/hourly/canary timers and block",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, stores, dispatcher, err := buildRunner(cmd.Context())
			if err != nil {
				return err
			}
			defer stores.Close()
			defer dispatcher.Shutdown()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			runner.Start(ctx)
			slog.Info("ava-jobs: timers started",
				"nightly_hour_utc", runner.Config.NightlyHourUTC,
				"canary_check_interval_hours", runner.Config.CanaryCheckIntervalHours)

			sig := <-sigCh
			slog.Info("ava-jobs: received signal, shutting down", "signal", sig)
			runner.Stop()
			return nil
		},
	}
}

// buildRunner wires the job runner's collaborators, including a webhook
// Dispatcher shared by the drift detector, rollout controller, and the
// runner itself so drift_alert.raised, rollout.* and job_run.failed events
// reach whatever subscribers have been registered against webhooksRegistry.
// The caller owns the returned Dispatcher's Shutdown.
func buildRunner(ctx context.Context) (*jobs.Runner, *bootstrap.Stores, *webhooks.Dispatcher, error) {
	cfg := config.Get()

	stores, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	registry := webhooks.NewRegistry()
	dispatcher := webhooks.NewDispatcher(registry, 4)

	d := drift.NewDetector(stores.ShadowComparisons, stores.Interventions, stores.DriftSnapshots, stores.DriftAlerts)
	d.Thresholds = cfg.Drift.DriftThresholds
	d.Emitter = dispatcher

	c := rollout.NewController(stores.Rollouts, stores.Experiments, stores.ScoringConfigs)
	c.Emitter = dispatcher

	runner := jobs.NewRunner(stores.JobRuns, stores.TrainingDatapoints, stores.DriftSnapshots, d, c)
	runner.Emitter = dispatcher
	runner.Config = jobs.Config{
		NightlyHourUTC:           cfg.Jobs.NightlyHourUTC,
		CanaryCheckIntervalHours: cfg.Jobs.CanaryCheckIntervalHours,
		JobRunRetentionDays:      cfg.Jobs.JobRunRetentionDays,
	}
	return runner, stores, dispatcher, nil
}

// exitCodeFor maps a ConfigurationError to spec.md §6's exit code 2, and
// every other error to 1.
func exitCodeFor(err error) int {
	if apierr.CategoryOf(err) == apierr.CategoryConfigurationError {
		return exitConfig
	}
	return exitError
}
