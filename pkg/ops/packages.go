package ops

import (
	"context"

	"github.com/hostwright/hostwright/pkg/tasks"
)

// RefreshPackages updates the package index.
func (o *Ops) RefreshPackages(ctx context.Context) error {
	return o.run(ctx, "pkg.refresh", nil)
}

// InstallPackages installs each named package in order. Installing a
// package that is already present is a no-op on the target, so the
// whole call is safe to repeat.
func (o *Ops) InstallPackages(ctx context.Context, packages ...string) error {
	for _, pkg := range packages {
		if err := o.run(ctx, "pkg.install", tasks.Params{"package": pkg}); err != nil {
			return err
		}
	}
	return nil
}

// UpgradePackages upgrades all installed packages.
func (o *Ops) UpgradePackages(ctx context.Context) error {
	return o.run(ctx, "pkg.upgrade", nil)
}

// PurgePackages removes each named package with its configuration.
func (o *Ops) PurgePackages(ctx context.Context, packages ...string) error {
	for _, pkg := range packages {
		if err := o.run(ctx, "pkg.purge", tasks.Params{"package": pkg}); err != nil {
			return err
		}
	}
	return nil
}

// RepairPackages finishes interrupted package configuration, the usual
// recovery after a killed apt run.
func (o *Ops) RepairPackages(ctx context.Context) error {
	return o.run(ctx, "pkg.configure", nil)
}
