package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/routing-engine/internal/app"
	"github.com/spec-kit/routing-engine/internal/scheduler"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		interval time.Duration
		backoff  time.Duration
		lockPath string
		once     bool
		jsonOut  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run sender and grabber sweeps on a fixed cadence",
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("interval") {
				interval = cfg.Logistics.Interval()
			}
			if !cmd.Flags().Changed("backoff") {
				backoff = cfg.Logistics.ErrorBackoff()
			}
			if !cmd.Flags().Changed("lock") {
				lockPath = cfg.Logistics.LockPath
			}
			if interval <= 0 {
				return fmt.Errorf("interval must be positive, got %s", interval)
			}

			container, err := ctx.build(signalCtx, app.Options{Migrate: cfg.Postgres.RunMigrations, Events: true})
			if err != nil {
				return err
			}
			defer container.Close()

			sched := scheduler.New(container.Routing, container.Logger, scheduler.Options{
				Interval:     interval,
				ErrorBackoff: backoff,
				LockPath:     lockPath,
				Metrics:      container.Metrics,
				Dispatcher:   container.Dispatcher,
			})

			if once {
				report, err := sched.RunOnce(signalCtx)
				if report != nil {
					if printErr := printReport(cmd, report, jsonOut); printErr != nil {
						return printErr
					}
				}
				return err
			}
			return sched.Run(signalCtx)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 15*time.Second, "Time between cycles")
	cmd.Flags().DurationVar(&backoff, "backoff", 5*time.Second, "Wait after a failed cycle")
	cmd.Flags().StringVar(&lockPath, "lock", "", "Lock file guarding against a second runner")
	cmd.Flags().BoolVar(&once, "once", false, "Run a single cycle and exit")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the --once report as JSON")
	return cmd
}
