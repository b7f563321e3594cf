package ops

import (
	"context"
	"fmt"

	"github.com/hostwright/hostwright/pkg/parsers"
	"github.com/hostwright/hostwright/pkg/tasks"
)

// ComposeUp brings a compose project up, building as needed. An
// optional env file is passed through to compose.
func (o *Ops) ComposeUp(ctx context.Context, composeFile, envFile string) error {
	if envFile != "" {
		return o.run(ctx, "docker.compose_up_env", tasks.Params{
			"compose_file": composeFile,
			"env_file":     envFile,
		})
	}
	return o.run(ctx, "docker.compose_up", tasks.Params{"compose_file": composeFile})
}

// ComposeDown tears a compose project down, optionally removing its
// volumes.
func (o *Ops) ComposeDown(ctx context.Context, composeFile string, removeVolumes bool) error {
	task := "docker.compose_down"
	if removeVolumes {
		task = "docker.compose_down_volumes"
	}
	return o.run(ctx, task, tasks.Params{"compose_file": composeFile})
}

// ContainerStates lists all containers on the target with their state.
func (o *Ops) ContainerStates(ctx context.Context) ([]parsers.Container, error) {
	inv, err := o.invoke(ctx, "docker.ps", nil)
	if err != nil {
		return nil, err
	}
	out, ok := inv.Parsed.([]parsers.Container)
	if !ok {
		return nil, fmt.Errorf("docker.ps: unexpected result %T", inv.Parsed)
	}
	return out, nil
}

// InspectContainer returns the full inspect document of one container.
func (o *Ops) InspectContainer(ctx context.Context, name string) ([]map[string]any, error) {
	inv, err := o.invoke(ctx, "docker.inspect", tasks.Params{"container": name})
	if err != nil {
		return nil, err
	}
	out, ok := inv.Parsed.([]map[string]any)
	if !ok {
		return nil, fmt.Errorf("docker.inspect: unexpected result %T", inv.Parsed)
	}
	return out, nil
}

// InspectAllContainers returns inspect documents for every container.
func (o *Ops) InspectAllContainers(ctx context.Context) ([]map[string]any, error) {
	inv, err := o.invoke(ctx, "docker.inspect_all", nil)
	if err != nil {
		return nil, err
	}
	out, ok := inv.Parsed.([]map[string]any)
	if !ok {
		return nil, fmt.Errorf("docker.inspect_all: unexpected result %T", inv.Parsed)
	}
	return out, nil
}

// ContainerLogs returns the last tail lines of a container's log.
func (o *Ops) ContainerLogs(ctx context.Context, name string, tail int) (string, error) {
	params := tasks.Params{"container": name}
	if tail > 0 {
		params["tail"] = fmt.Sprintf("%d", tail)
	}
	inv, err := o.invoke(ctx, "docker.logs", params)
	if err != nil {
		return "", err
	}
	if inv.Result == nil {
		return "", nil
	}
	// docker logs writes to both streams depending on how the
	// container logged.
	return inv.Result.Stdout + inv.Result.Stderr, nil
}
