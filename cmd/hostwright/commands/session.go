package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hostwright/hostwright/pkg/executor"
	"github.com/hostwright/hostwright/pkg/inventory"
	"github.com/hostwright/hostwright/pkg/ops"
	"github.com/hostwright/hostwright/pkg/stores"
	"github.com/hostwright/hostwright/pkg/telemetry"
	"github.com/hostwright/hostwright/pkg/transports"
)

// openSession resolves a target from the inventory, connects its
// transport, and builds the session plus its typed operation surface.
// The returned cleanup closes the transport and store.
func openSession(ctx context.Context, targetName string) (*ops.Ops, func(), error) {
	inv, err := inventory.Load(inventoryPath)
	if err != nil {
		return nil, nil, err
	}
	target, err := inv.Find(targetName)
	if err != nil {
		return nil, nil, err
	}
	backend, err := target.Backend()
	if err != nil {
		return nil, nil, err
	}
	if err := backend.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("connecting to %s: %w", target.Name, err)
	}

	opts := []executor.Option{executor.WithLogger(log.Logger)}

	if metricsAddr != "" {
		metrics, merr := telemetry.NewMetrics(telemetry.MetricsConfig{
			Enabled:       true,
			ListenAddress: metricsAddr,
			Namespace:     "hostwright",
		})
		if merr != nil {
			_ = backend.Close()
			return nil, nil, merr
		}
		go func() {
			if serr := metrics.Serve(); serr != nil {
				log.Error().Err(serr).Msg("metrics endpoint failed")
			}
		}()
		opts = append(opts, executor.WithMetrics(metrics))
	}

	var tracer *telemetry.Tracer
	if traceExporter != "" {
		tcfg := telemetry.DefaultConfig().Tracing
		tcfg.Enabled = true
		tcfg.Exporter = traceExporter
		tcfg.Endpoint = traceEndpoint
		tcfg.Insecure = true
		tracer, err = telemetry.NewTracer(tcfg, "hostwright", "dev", "cli")
		if err != nil {
			_ = backend.Close()
			return nil, nil, err
		}
		opts = append(opts, executor.WithSpanner(tracer))
	}

	var store *stores.SQLiteStore
	if databasePath != "" {
		store, err = stores.NewSQLiteStore(stores.Config{Path: databasePath})
		if err == nil {
			err = store.Init(ctx)
		}
		if err != nil {
			_ = backend.Close()
			return nil, nil, fmt.Errorf("opening history database: %w", err)
		}
		opts = append(opts, executor.WithStore(store))
	}

	sess := executor.NewSession(target.Name, backend, opts...)
	cleanup := func() {
		_ = backend.Close()
		if store != nil {
			_ = store.Close()
		}
		if tracer != nil {
			_ = tracer.Shutdown(context.Background())
		}
	}
	var files transports.FileTransfer
	if ft, ok := backend.(transports.FileTransfer); ok {
		files = ft
	}
	return ops.New(sess, files), cleanup, nil
}

func addTargetFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("target", "t", "", "inventory target to run on")
	_ = cmd.MarkFlagRequired("target")
}

// withTarget opens a session for the command's --target flag, runs fn,
// and tears the session down.
func withTarget(cmd *cobra.Command, fn func(*ops.Ops) error) error {
	target, err := cmd.Flags().GetString("target")
	if err != nil {
		return err
	}
	o, cleanup, err := openSession(cmd.Context(), target)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(o)
}
