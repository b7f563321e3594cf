package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	var (
		target      string
		privileged  bool
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "run <command...>",
		Short: "Run an ad-hoc command on a target",
		Long: `Run a free-form shell command on a target.

The command is passed to the target's shell verbatim. This is the only
path where privilege and terminal allocation are chosen per call; every
declared task carries its own flags.`,
		Example: `  # Check disk usage
  hostwright run -t web1 -- df -h

  # Tail a root-owned log
  hostwright run -t web1 --privileged -- tail -n 50 /var/log/syslog`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, cleanup, err := openSession(cmd.Context(), target)
			if err != nil {
				return err
			}
			defer cleanup()

			inv, err := o.AdHoc(cmd.Context(), strings.Join(args, " "), privileged, interactive)
			if err != nil {
				return err
			}
			if inv.Result != nil {
				fmt.Print(inv.Result.Stdout)
				if inv.Result.Stderr != "" {
					fmt.Fprint(cmd.ErrOrStderr(), inv.Result.Stderr)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "inventory target to run on")
	cmd.Flags().BoolVar(&privileged, "privileged", false, "run under sudo")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "allocate a terminal")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}
