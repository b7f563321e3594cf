package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hostwright/hostwright/pkg/inventory"
)

func newTargetsCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "targets",
		Short: "List inventory targets",
		Long: `List the targets in the inventory file. With --watch the command
keeps running and reprints the list whenever the file changes; edits
that fail validation are rejected and the previous inventory stays in
effect.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printTargets := func(inv *inventory.Inventory) {
				for _, t := range inv.Targets {
					transport := t.Transport
					if transport == "" {
						transport = "ssh"
					}
					addr := "-"
					if t.Host != "" {
						addr = t.Host
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-6s %s\n", t.Name, transport, addr)
				}
			}

			if !watch {
				inv, err := inventory.Load(inventoryPath)
				if err != nil {
					return err
				}
				printTargets(inv)
				return nil
			}

			w, err := inventory.NewWatcher(inventoryPath, log.Logger, printTargets)
			if err != nil {
				return err
			}
			if err := w.Start(cmd.Context()); err != nil {
				return err
			}
			<-cmd.Context().Done()
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep watching the inventory file")
	return cmd
}
