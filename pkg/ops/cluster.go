package ops

import (
	"context"
	"fmt"

	"github.com/hostwright/hostwright/pkg/tasks"
)

// ClusterRef names the cluster and namespace an operation applies to.
type ClusterRef struct {
	Kubeconfig string
	Namespace  string
}

func (c ClusterRef) params() tasks.Params {
	p := tasks.Params{"kubeconfig": c.Kubeconfig}
	if c.Namespace != "" {
		p["namespace"] = c.Namespace
	}
	return p
}

// KubectlApply applies a manifest file already present on the target.
func (o *Ops) KubectlApply(ctx context.Context, ref ClusterRef, manifest string) error {
	p := ref.params()
	p["manifest"] = manifest
	return o.run(ctx, "kube.apply", p)
}

// KubectlDelete deletes a manifest's resources; absent resources are
// ignored.
func (o *Ops) KubectlDelete(ctx context.Context, ref ClusterRef, manifest string) error {
	p := ref.params()
	p["manifest"] = manifest
	return o.run(ctx, "kube.delete", p)
}

// KubectlGet fetches one resource as a decoded JSON document.
func (o *Ops) KubectlGet(ctx context.Context, ref ClusterRef, kind, name string) (map[string]any, error) {
	p := ref.params()
	p["kind"] = kind
	p["name"] = name
	inv, err := o.invoke(ctx, "kube.get", p)
	if err != nil {
		return nil, err
	}
	out, ok := inv.Parsed.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("kube.get: unexpected result %T", inv.Parsed)
	}
	return out, nil
}

// WaitRollout blocks until a deployment's rollout completes or the
// probe's own timeout expires.
func (o *Ops) WaitRollout(ctx context.Context, ref ClusterRef, deployment string) error {
	p := ref.params()
	p["name"] = deployment
	return o.run(ctx, "kube.rollout", p)
}

// HelmInstallOrUpgrade installs a release or upgrades it in place.
func (o *Ops) HelmInstallOrUpgrade(ctx context.Context, ref ClusterRef, release, chart string) error {
	p := ref.params()
	p["release"] = release
	p["chart"] = chart
	return o.run(ctx, "helm.upgrade", p)
}

// HelmStatus returns a release's status document.
func (o *Ops) HelmStatus(ctx context.Context, ref ClusterRef, release string) (map[string]any, error) {
	p := ref.params()
	p["release"] = release
	inv, err := o.invoke(ctx, "helm.status", p)
	if err != nil {
		return nil, err
	}
	out, ok := inv.Parsed.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("helm.status: unexpected result %T", inv.Parsed)
	}
	return out, nil
}
