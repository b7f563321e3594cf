package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hostwright/hostwright/pkg/ops"
)

func newServiceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage systemd services on a target",
	}

	actions := []struct {
		use   string
		short string
		run   func(context.Context, *ops.Ops, string) error
	}{
		{"start <unit>", "Start a service", func(ctx context.Context, o *ops.Ops, unit string) error { return o.StartService(ctx, unit) }},
		{"stop <unit>", "Stop a service", func(ctx context.Context, o *ops.Ops, unit string) error { return o.StopService(ctx, unit) }},
		{"restart <unit>", "Restart a service", func(ctx context.Context, o *ops.Ops, unit string) error { return o.RestartService(ctx, unit) }},
		{"enable <unit>", "Enable a service at boot", func(ctx context.Context, o *ops.Ops, unit string) error { return o.EnableService(ctx, unit) }},
		{"disable <unit>", "Disable a service at boot", func(ctx context.Context, o *ops.Ops, unit string) error { return o.DisableService(ctx, unit) }},
	}
	for _, a := range actions {
		run := a.run
		sub := &cobra.Command{
			Use:   a.use,
			Short: a.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withTarget(cmd, func(o *ops.Ops) error {
					return run(cmd.Context(), o, args[0])
				})
			},
		}
		addTargetFlag(sub)
		cmd.AddCommand(sub)
	}

	status := &cobra.Command{
		Use:   "status <unit>",
		Short: "Report whether a service is active and enabled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTarget(cmd, func(o *ops.Ops) error {
				st, err := o.QueryService(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(st)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: active=%v enabled=%v (%s)\n",
					args[0], st.Active, st.Enabled, st.Raw)
				return nil
			})
		},
	}
	addTargetFlag(status)
	cmd.AddCommand(status)

	return cmd
}
