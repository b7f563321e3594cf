// Package transports defines the execution backend contract shared by the
// SSH and local backends. A backend runs one command string on its target
// and reports captured output, exit status, and timing; it keeps no state
// about what it ran. Auditing and retry belong to the executor, not here.
package transports

import (
	"context"
	"time"
)

// ExecRequest describes a single command execution.
type ExecRequest struct {
	// Command is the fully resolved command string to run.
	Command string

	// Privileged requests privilege escalation. The backend wraps the
	// command with its escalation mechanism; the command text itself must
	// not contain an escalation prefix.
	Privileged bool

	// Interactive requests a pseudo-terminal. Commands that read from a
	// terminal must set this; without it the backend closes stdin so such
	// commands fail fast instead of blocking on input.
	Interactive bool

	// Timeout bounds the execution. Zero means the backend default.
	Timeout time.Duration
}

// ExecResult is the raw outcome of one execution.
type ExecResult struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
}

// Backend runs commands on a target. Implementations must be
// behaviorally identical: same escalation handling, same timeout
// handling, same treatment of non-zero exit codes.
//
// A Backend is stateless with respect to executions and may be shared
// across sequential calls. Interactive executions are exclusive for
// their duration; the executor serializes them.
type Backend interface {
	// Connect establishes the underlying channel. For the local backend
	// this is a no-op.
	Connect(ctx context.Context) error

	// Close releases the channel and all resources.
	Close() error

	// Alive reports whether the channel is usable.
	Alive() bool

	// Run executes one command. A non-zero exit code is returned as a
	// command-classified *Error together with the captured result.
	Run(ctx context.Context, req ExecRequest) (*ExecResult, error)
}

// FileTransfer is implemented by backends that can move file content to
// and from the target out of band (the SSH backend via SFTP, the local
// backend via the filesystem).
type FileTransfer interface {
	Upload(ctx context.Context, content []byte, remotePath string, mode uint32) error
	Download(ctx context.Context, remotePath string) ([]byte, error)
}

// ErrorKind classifies a backend failure.
type ErrorKind string

const (
	// KindConnection covers unreachable targets and closed sessions.
	KindConnection ErrorKind = "connection"

	// KindEscalation covers rejected privilege elevation.
	KindEscalation ErrorKind = "escalation"

	// KindCommand covers commands that ran and exited non-zero.
	KindCommand ErrorKind = "command"

	// KindTimeout covers executions terminated by their deadline.
	KindTimeout ErrorKind = "timeout"
)

// Error is a classified transport failure.
type Error struct {
	// Op is the operation that failed ("connect", "run", "upload", ...).
	Op string

	// Kind is the failure classification.
	Kind ErrorKind

	// ExitCode is the command exit status for KindCommand, otherwise 0.
	ExitCode int

	// Temporary marks failures that may succeed on retry.
	Temporary bool

	Err error
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a transport Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		if te, ok := err.(*Error); ok {
			return te.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
