package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/routing-engine/internal/app"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show occupancy of every holding area",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := ctx.build(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer container.Close()

			view, err := container.Dashboards.Monitor(cmd.Context())
			if err != nil {
				return err
			}
			if wantJSON(cmd, jsonOut) {
				return writeJSON(cmd.OutOrStdout(), view)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderMonitor(view))
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
