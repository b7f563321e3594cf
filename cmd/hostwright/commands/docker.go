package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hostwright/hostwright/pkg/ops"
)

func newDockerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docker",
		Short: "Manage docker compose stacks and containers on a target",
	}
	cmd.AddCommand(newDockerPsCommand())
	cmd.AddCommand(newDockerUpCommand())
	cmd.AddCommand(newDockerDownCommand())
	cmd.AddCommand(newDockerLogsCommand())
	return cmd
}

func newDockerPsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ps",
		Short: "List containers and their states",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withTarget(cmd, func(o *ops.Ops) error {
				states, err := o.ContainerStates(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(states)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tSTATE\tIMAGE\tSTATUS")
				for _, c := range states {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, c.State, c.Image, c.Status)
				}
				return w.Flush()
			})
		},
	}
	addTargetFlag(cmd)
	return cmd
}

func newDockerUpCommand() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "up <compose-file>",
		Short: "Bring a compose stack up detached",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTarget(cmd, func(o *ops.Ops) error {
				return o.ComposeUp(cmd.Context(), args[0], envFile)
			})
		},
	}
	addTargetFlag(cmd)
	cmd.Flags().StringVar(&envFile, "env-file", "", "compose environment file")
	return cmd
}

func newDockerDownCommand() *cobra.Command {
	var volumes bool

	cmd := &cobra.Command{
		Use:   "down <compose-file>",
		Short: "Tear a compose stack down",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTarget(cmd, func(o *ops.Ops) error {
				return o.ComposeDown(cmd.Context(), args[0], volumes)
			})
		},
	}
	addTargetFlag(cmd)
	cmd.Flags().BoolVar(&volumes, "volumes", false, "also remove named volumes")
	return cmd
}

func newDockerLogsCommand() *cobra.Command {
	var tail int

	cmd := &cobra.Command{
		Use:   "logs <container>",
		Short: "Print a container's recent logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTarget(cmd, func(o *ops.Ops) error {
				out, err := o.ContainerLogs(cmd.Context(), args[0], tail)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	addTargetFlag(cmd)
	cmd.Flags().IntVar(&tail, "tail", 200, "number of log lines")
	return cmd
}
