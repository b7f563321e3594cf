package executor

import (
	"errors"
	"fmt"

	"github.com/hostwright/hostwright/pkg/parsers"
	"github.com/hostwright/hostwright/pkg/transports"
)

// FailureKind classifies why an invocation failed.
type FailureKind string

const (
	// FailValidation: the parameters never passed checking; nothing ran.
	FailValidation FailureKind = "validation"
	// FailConnection: the transport could not reach or keep the target.
	FailConnection FailureKind = "connection"
	// FailEscalation: privilege elevation was refused on the target.
	FailEscalation FailureKind = "escalation"
	// FailCommand: the command ran and exited with a non-tolerated code.
	FailCommand FailureKind = "command"
	// FailTimeout: the command was killed after exceeding its deadline.
	FailTimeout FailureKind = "timeout"
	// FailParse: the command succeeded but its output was undecodable.
	FailParse FailureKind = "parse"
)

// Failure is the executor's terminal error: which task on which target
// failed, how, and with what the target said. Sensitive tasks carry no
// captured output.
type Failure struct {
	Kind     FailureKind
	Task     string
	Target   string
	Attempts int
	ExitCode int
	Stderr   string
	Err      error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("%s on %s: %s failure", f.Task, f.Target, f.Kind)
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

// IsKind reports whether err is a Failure of the given kind.
func IsKind(err error, kind FailureKind) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == kind
}

// classify maps a transport or parser error onto the failure taxonomy.
func classify(err error) FailureKind {
	var pe *parsers.ParseError
	if errors.As(err, &pe) {
		return FailParse
	}
	var te *transports.Error
	if errors.As(err, &te) {
		switch te.Kind {
		case transports.KindEscalation:
			return FailEscalation
		case transports.KindTimeout:
			return FailTimeout
		case transports.KindCommand:
			return FailCommand
		}
	}
	return FailConnection
}
