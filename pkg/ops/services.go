package ops

import (
	"context"
	"fmt"

	"github.com/hostwright/hostwright/pkg/parsers"
	"github.com/hostwright/hostwright/pkg/tasks"
)

// ServiceStatus is the combined answer of the two status probes.
type ServiceStatus struct {
	Active  bool
	Enabled bool
	Raw     string
}

// StartService starts a systemd unit.
func (o *Ops) StartService(ctx context.Context, service string) error {
	return o.run(ctx, "svc.start", tasks.Params{"service": service})
}

// StopService stops a systemd unit. Stopping a unit that is not running
// succeeds on the target.
func (o *Ops) StopService(ctx context.Context, service string) error {
	return o.run(ctx, "svc.stop", tasks.Params{"service": service})
}

// RestartService restarts a systemd unit.
func (o *Ops) RestartService(ctx context.Context, service string) error {
	return o.run(ctx, "svc.restart", tasks.Params{"service": service})
}

// EnableService enables a unit at boot.
func (o *Ops) EnableService(ctx context.Context, service string) error {
	return o.run(ctx, "svc.enable", tasks.Params{"service": service})
}

// DisableService disables a unit at boot.
func (o *Ops) DisableService(ctx context.Context, service string) error {
	return o.run(ctx, "svc.disable", tasks.Params{"service": service})
}

// QueryService probes whether a unit is active and enabled. A stopped,
// disabled, or even absent unit is a valid answer, never an error.
func (o *Ops) QueryService(ctx context.Context, service string) (ServiceStatus, error) {
	p := tasks.Params{"service": service}

	inv, err := o.invoke(ctx, "svc.active", p)
	if err != nil {
		return ServiceStatus{}, err
	}
	state, ok := inv.Parsed.(parsers.ServiceState)
	if !ok {
		return ServiceStatus{}, fmt.Errorf("svc.active: unexpected result %T", inv.Parsed)
	}

	inv, err = o.invoke(ctx, "svc.enabled", p)
	if err != nil {
		return ServiceStatus{}, err
	}
	enabled, ok := inv.Parsed.(bool)
	if !ok {
		return ServiceStatus{}, fmt.Errorf("svc.enabled: unexpected result %T", inv.Parsed)
	}

	return ServiceStatus{Active: state.Active, Enabled: enabled, Raw: state.Raw}, nil
}
