package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newProbeCommand() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Gather basic facts about a target",
		Long: `Run the diagnostic probes against a target: kernel, hostname,
CPU count, memory, and root disk usage. Probes are best-effort, so a
degraded host still answers with whatever it can.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, cleanup, err := openSession(cmd.Context(), target)
			if err != nil {
				return err
			}
			defer cleanup()

			facts, err := o.ProbeSystem(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(facts)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "hostname: %s\n", facts.Hostname)
			fmt.Fprintf(out, "kernel:   %s %s (%s)\n", facts.Kernel.Kernel, facts.Kernel.Release, facts.Kernel.Machine)
			fmt.Fprintf(out, "cpus:     %d\n", facts.CPUs)
			fmt.Fprintf(out, "memory:   %d MB total, %d MB available\n", facts.Memory.TotalMB, facts.Memory.AvailableMB)
			fmt.Fprintf(out, "disk /:   %s used of %s (%s)\n", facts.RootDisk.Used, facts.RootDisk.Size, facts.RootDisk.UsePercent)
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "inventory target to probe")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}
