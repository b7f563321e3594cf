package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	inventoryPath string
	databasePath  string
	jsonOutput    bool
	metricsAddr   string
	traceExporter string
	traceEndpoint string
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hostwright",
		Short: "Hostwright - host provisioning task engine",
		Long: `Hostwright provisions hosts by running a curated catalog of tasks
over SSH or locally, with the same semantics either way.

Features:
  - Uniform remote/local execution with sudo escalation
  - Declared task catalog: packages, services, containers, cluster,
    filesystem, users, TLS, VCS, network probes
  - Automatic retry with backoff on transient failures
  - Structured output parsing per task
  - Append-only per-target execution history`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&inventoryPath, "inventory", "i", "inventory.yaml", "inventory file path")
	rootCmd.PersistentFlags().StringVar(&databasePath, "db", "", "sqlite database for durable history (optional)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (optional)")
	rootCmd.PersistentFlags().StringVar(&traceExporter, "trace", "", "trace exporter: otlp or stdout (optional)")
	rootCmd.PersistentFlags().StringVar(&traceEndpoint, "trace-endpoint", "localhost:4317", "OTLP collector endpoint")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newTaskCommand())
	rootCmd.AddCommand(newServiceCommand())
	rootCmd.AddCommand(newDockerCommand())
	rootCmd.AddCommand(newTLSCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newProbeCommand())
	rootCmd.AddCommand(newTargetsCommand())

	return rootCmd
}
