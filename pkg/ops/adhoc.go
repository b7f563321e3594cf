package ops

import (
	"context"

	"github.com/hostwright/hostwright/pkg/executor"
	"github.com/hostwright/hostwright/pkg/tasks"
)

// AdHoc runs a free-form command on the target. This is the only
// operation where the caller decides privilege and terminal handling;
// the command is passed verbatim, so the caller owns its quoting.
func (o *Ops) AdHoc(ctx context.Context, command string, privileged, interactive bool) (*executor.Invocation, error) {
	return o.sess.Invoke(ctx, "adhoc.run",
		tasks.Params{"command": command},
		executor.Privileged(privileged),
		executor.Interactive(interactive),
	)
}
