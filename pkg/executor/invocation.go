package executor

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hostwright/hostwright/pkg/tasks"
	"github.com/hostwright/hostwright/pkg/transports"
)

// Status is an invocation's position in its lifecycle.
//
//	pending -> escalating -> running -> succeeded
//	                                 -> retrying -> (running ...)
//	                                 -> warned
//	                                 -> failed
//
// Unprivileged invocations skip escalating. Warned is a failure that a
// best-effort spec or a soft escalation policy downgraded.
type Status string

const (
	StatusPending    Status = "pending"
	StatusEscalating Status = "escalating"
	StatusRunning    Status = "running"
	StatusRetrying   Status = "retrying"
	StatusSucceeded  Status = "succeeded"
	StatusWarned     Status = "warned"
	StatusFailed     Status = "failed"
)

// terminal reports whether no further transition is possible.
func (s Status) terminal() bool {
	return s == StatusSucceeded || s == StatusWarned || s == StatusFailed
}

// Invocation is one execution of a task against a target: the resolved
// command, the flags actually applied, and the outcome.
type Invocation struct {
	ID          uuid.UUID
	Target      string
	Spec        *tasks.Spec
	Params      tasks.Params
	Command     string
	Privileged  bool
	Interactive bool

	Status   Status
	Attempt  int
	Result   *transports.ExecResult
	Parsed   any
	Warning  string
	Err      error
	Started  time.Time
	Finished time.Time
}

// transition moves the invocation to next, panicking on an illegal move
// so lifecycle bugs surface in tests rather than as silent bad records.
func (inv *Invocation) transition(next Status) {
	if inv.Status.terminal() {
		panic("executor: transition from terminal status " + string(inv.Status))
	}
	inv.Status = next
}

// RedactedCommand returns the command with sensitive parameter values
// masked, suitable for logs and history.
func (inv *Invocation) RedactedCommand() string {
	cmd := inv.Command
	for _, p := range inv.Spec.Params {
		if !p.Sensitive {
			continue
		}
		if val, ok := inv.Params[p.Name]; ok && val != "" {
			cmd = strings.ReplaceAll(cmd, val, "******")
		}
	}
	return cmd
}

// ExitCode returns the command's exit code, or -1 if it never ran.
func (inv *Invocation) ExitCode() int {
	if inv.Result == nil {
		return -1
	}
	return inv.Result.ExitCode
}
