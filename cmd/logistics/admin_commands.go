package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/routing-engine/internal/app"
	"github.com/spec-kit/routing-engine/internal/auth"
	"github.com/spec-kit/routing-engine/internal/seed"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := ctx.build(cmd.Context(), app.Options{Migrate: true})
			if err != nil {
				return err
			}
			defer container.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newSeedCommand(ctx *commandContext) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load departments, capacities and query types from a TOML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := seed.Load(path)
			if err != nil {
				return err
			}
			container, err := ctx.build(cmd.Context(), app.Options{Migrate: true})
			if err != nil {
				return err
			}
			defer container.Close()

			summary, err := seed.Apply(cmd.Context(), seed.Dependencies{
				Transactor:     container.Transactor,
				DepartmentRepo: container.Departments,
				ConfigRepo:     container.Settings,
				QueryTypeRepo:  container.QueryTypes,
			}, file)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "departments: %d\nquery types: %d\n", summary.Departments, summary.QueryTypes)
			if summary.Capacity != nil {
				fmt.Fprintf(out, "capacity: hub %d, department %d\n", summary.Capacity.HubCapacity, summary.Capacity.ReceiverCapacity)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", "seed.toml", "Seed file")
	return cmd
}

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var (
		user string
		dept string
		role string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator token for the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
			token, expiresAt, err := tokens.GenerateToken(user, dept, auth.Role(role))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.UTC().Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Operator id")
	cmd.Flags().StringVar(&dept, "dept", "", "Department code")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleOperator), "OPERATOR or ADMIN")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
