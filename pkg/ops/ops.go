// Package ops is the typed surface over the task executor: one Go
// method per provisioning operation, returning decoded results instead
// of raw command output. Provisioning flows call this package; only
// tests and the ad-hoc CLI path reach the executor directly.
package ops

import (
	"context"
	"strings"

	"github.com/hostwright/hostwright/pkg/executor"
	"github.com/hostwright/hostwright/pkg/tasks"
	"github.com/hostwright/hostwright/pkg/transports"
)

// Ops executes typed operations over one session. File-level operations
// that move content (WriteFile, ReadFile) additionally need the
// transport's file channel; sessions over transports without one may
// pass nil and those operations return ErrNoFileTransfer.
type Ops struct {
	sess  *executor.Session
	files transports.FileTransfer
}

// New returns the operation surface for one session.
func New(sess *executor.Session, files transports.FileTransfer) *Ops {
	return &Ops{sess: sess, files: files}
}

// Session exposes the underlying session, mainly for history access.
func (o *Ops) Session() *executor.Session { return o.sess }

func (o *Ops) invoke(ctx context.Context, task string, params tasks.Params) (*executor.Invocation, error) {
	return o.sess.Invoke(ctx, task, params)
}

// run invokes and discards the decoded value; for imperative tasks.
func (o *Ops) run(ctx context.Context, task string, params tasks.Params) error {
	_, err := o.invoke(ctx, task, params)
	return err
}

// shQuote wraps s in single quotes for safe interpolation of free-form
// content into a shell command.
func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
