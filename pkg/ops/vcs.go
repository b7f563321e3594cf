package ops

import (
	"context"
	"fmt"
	"time"

	"github.com/hostwright/hostwright/pkg/tasks"
)

// CheckoutState reports what CloneOrUpdate did and where the tree
// stands afterwards.
type CheckoutState struct {
	// Fresh is true when the directory was cloned rather than pulled.
	Fresh        bool
	LastModified time.Time
}

// Clone clones a repository into dir. An optional deploy key path on
// the target selects key-based SSH auth with host keys accepted on
// first use.
func (o *Ops) Clone(ctx context.Context, repo, dir, deployKeyPath string) error {
	if deployKeyPath != "" {
		return o.run(ctx, "vcs.clone_deploykey", tasks.Params{
			"repo": repo, "dir": dir, "key_path": deployKeyPath,
		})
	}
	return o.run(ctx, "vcs.clone", tasks.Params{"repo": repo, "dir": dir})
}

// Pull fast-forwards an existing checkout; diverged history is an error
// rather than a merge.
func (o *Ops) Pull(ctx context.Context, dir, deployKeyPath string) error {
	if deployKeyPath != "" {
		return o.run(ctx, "vcs.pull_deploykey", tasks.Params{
			"dir": dir, "key_path": deployKeyPath,
		})
	}
	return o.run(ctx, "vcs.pull", tasks.Params{"dir": dir})
}

// LastModified returns the commit time of a checkout's HEAD.
func (o *Ops) LastModified(ctx context.Context, dir string) (time.Time, error) {
	inv, err := o.invoke(ctx, "vcs.last_modified", tasks.Params{"dir": dir})
	if err != nil {
		return time.Time{}, err
	}
	ts, ok := inv.Parsed.(int64)
	if !ok {
		return time.Time{}, fmt.Errorf("vcs.last_modified: unexpected result %T", inv.Parsed)
	}
	return time.Unix(ts, 0).UTC(), nil
}

// CloneOrUpdate clones when dir is absent and pulls when it exists,
// then reports the checkout's last commit time.
func (o *Ops) CloneOrUpdate(ctx context.Context, repo, dir, deployKeyPath string) (CheckoutState, error) {
	exists, err := o.DirExists(ctx, dir)
	if err != nil {
		return CheckoutState{}, err
	}
	if exists {
		err = o.Pull(ctx, dir, deployKeyPath)
	} else {
		err = o.Clone(ctx, repo, dir, deployKeyPath)
	}
	if err != nil {
		return CheckoutState{}, err
	}
	mod, err := o.LastModified(ctx, dir)
	if err != nil {
		return CheckoutState{}, err
	}
	return CheckoutState{Fresh: !exists, LastModified: mod}, nil
}
