package ops

import (
	"context"
	"fmt"

	"github.com/hostwright/hostwright/pkg/parsers"
	"github.com/hostwright/hostwright/pkg/tasks"
)

// SystemFacts is what the diagnostic probes could learn about a target.
// Probes are best-effort, so any field may be its zero value on a
// degraded host.
type SystemFacts struct {
	Kernel   parsers.SystemInfo
	Hostname string
	CPUs     int
	Memory   parsers.Memory
	RootDisk parsers.DiskUsage
}

// Fetch downloads a URL to a path on the target. Unlike the probes this
// is mandatory: a failed download aborts after its retries.
func (o *Ops) Fetch(ctx context.Context, url, dest string) error {
	return o.run(ctx, "net.fetch", tasks.Params{"url": url, "dest": dest})
}

// HealthCheck probes an HTTP endpoint from the target. Unreachable
// endpoints report false, never an error.
func (o *Ops) HealthCheck(ctx context.Context, url string) (bool, error) {
	inv, err := o.invoke(ctx, "net.health", tasks.Params{"url": url})
	if err != nil {
		return false, err
	}
	up, ok := inv.Parsed.(bool)
	if !ok {
		// A warned invocation carries no decoded value.
		return false, nil
	}
	return up, nil
}

// ResolveHost looks a name up through the target's own resolver.
func (o *Ops) ResolveHost(ctx context.Context, host string) ([]parsers.HostEntry, error) {
	inv, err := o.invoke(ctx, "probe.dns", tasks.Params{"host": host})
	if err != nil {
		return nil, err
	}
	if inv.Parsed == nil {
		return nil, nil
	}
	out, ok := inv.Parsed.([]parsers.HostEntry)
	if !ok {
		return nil, fmt.Errorf("probe.dns: unexpected result %T", inv.Parsed)
	}
	return out, nil
}

// ProbeSystem gathers basic facts about the target. Each probe is
// best-effort; a probe that fails leaves its field zeroed.
func (o *Ops) ProbeSystem(ctx context.Context) (SystemFacts, error) {
	var facts SystemFacts

	if inv, err := o.invoke(ctx, "probe.uname", nil); err == nil {
		if v, ok := inv.Parsed.(parsers.SystemInfo); ok {
			facts.Kernel = v
		}
	}
	if inv, err := o.invoke(ctx, "probe.hostname", nil); err == nil {
		if v, ok := inv.Parsed.(string); ok {
			facts.Hostname = v
		}
	}
	if inv, err := o.invoke(ctx, "probe.cpus", nil); err == nil {
		if v, ok := inv.Parsed.(int); ok {
			facts.CPUs = v
		}
	}
	if inv, err := o.invoke(ctx, "probe.mem", nil); err == nil {
		if v, ok := inv.Parsed.(parsers.Memory); ok {
			facts.Memory = v
		}
	}
	if inv, err := o.invoke(ctx, "probe.disk", nil); err == nil {
		if v, ok := inv.Parsed.(parsers.DiskUsage); ok {
			facts.RootDisk = v
		}
	}
	return facts, nil
}
