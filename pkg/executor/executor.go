// Package executor drives task invocations against a single target: it
// validates and resolves the task specification, applies privilege and
// terminal requirements mechanically, retries transient failures with
// backoff, decodes output, and records every outcome in the history log.
package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hostwright/hostwright/pkg/history"
	"github.com/hostwright/hostwright/pkg/parsers"
	"github.com/hostwright/hostwright/pkg/tasks"
	"github.com/hostwright/hostwright/pkg/transports"
)

// Metrics receives execution counters. The telemetry package provides
// the Prometheus-backed implementation.
type Metrics interface {
	ObserveInvocation(category, status string, d time.Duration)
	CountRetry(category string)
	CountEscalationFailure(target string)
}

// Store persists finished invocations durably. The stores package
// provides the SQLite-backed implementation.
type Store interface {
	SaveInvocation(ctx context.Context, e history.Entry) error
}

// Spanner opens a trace span per invocation. The telemetry package
// provides the OpenTelemetry-backed implementation.
type Spanner interface {
	InvocationSpan(ctx context.Context, target, task string) (context.Context, func(error))
}

// Session executes tasks against one target over one backend. A session
// is safe for concurrent use; interactive invocations are serialized
// because only one command at a time may own the terminal.
type Session struct {
	target   string
	backend  transports.Backend
	registry *tasks.Registry
	log      *history.Log
	logger   zerolog.Logger
	metrics  Metrics
	store    Store
	spanner  Spanner

	ttyMu sync.Mutex

	// sleep is swapped in tests so retry backoff does not wall-clock.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Session.
type Option func(*Session)

// WithRegistry replaces the built-in task catalog.
func WithRegistry(r *tasks.Registry) Option {
	return func(s *Session) { s.registry = r }
}

// WithLogger sets the session logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithHistory records invocations into the given log.
func WithHistory(l *history.Log) Option {
	return func(s *Session) { s.log = l }
}

// WithMetrics wires execution counters.
func WithMetrics(m Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithStore persists finished invocations.
func WithStore(st Store) Option {
	return func(s *Session) { s.store = st }
}

// WithSpanner traces each invocation.
func WithSpanner(sp Spanner) Option {
	return func(s *Session) { s.spanner = sp }
}

// NewSession returns a session for target backed by the given transport.
func NewSession(target string, backend transports.Backend, opts ...Option) *Session {
	s := &Session{
		target:   target,
		backend:  backend,
		registry: tasks.Builtin(),
		log:      history.NewLog(0),
		logger:   zerolog.Nop(),
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Target returns the target this session executes against.
func (s *Session) Target() string { return s.target }

// History returns the session's in-memory invocation log.
func (s *Session) History() *history.Log { return s.log }

// CallOption adjusts a single invocation. Overrides apply only to the
// ad-hoc category; declared tasks carry their own flags.
type CallOption func(*callOpts)

type callOpts struct {
	privileged  *bool
	interactive *bool
}

// Privileged overrides privilege for an ad-hoc command.
func Privileged(v bool) CallOption {
	return func(o *callOpts) { o.privileged = &v }
}

// Interactive overrides terminal allocation for an ad-hoc command.
func Interactive(v bool) CallOption {
	return func(o *callOpts) { o.interactive = &v }
}

// Invoke runs the named task with the given parameters. On failure the
// returned error is a *Failure; the Invocation is returned in both
// cases so callers can inspect the record.
func (s *Session) Invoke(ctx context.Context, task string, params tasks.Params, opts ...CallOption) (*Invocation, error) {
	spec, err := s.registry.Get(task)
	if err != nil {
		return nil, &Failure{Kind: FailValidation, Task: task, Target: s.target, Err: err}
	}
	if s.spanner != nil {
		var end func(error)
		ctx, end = s.spanner.InvocationSpan(ctx, s.target, task)
		inv, err := s.invoke(ctx, spec, params, opts...)
		end(err)
		return inv, err
	}
	return s.invoke(ctx, spec, params, opts...)
}

func (s *Session) invoke(ctx context.Context, spec *tasks.Spec, params tasks.Params, opts ...CallOption) (*Invocation, error) {
	inv := &Invocation{
		ID:          uuid.New(),
		Target:      s.target,
		Spec:        spec,
		Params:      params,
		Privileged:  spec.RequiresPrivilege,
		Interactive: spec.RequiresPTY,
		Status:      StatusPending,
		Started:     time.Now(),
	}

	// Free-form commands are the one place the caller chooses the flags.
	if spec.Category == tasks.CategoryAdHoc {
		var co callOpts
		for _, opt := range opts {
			opt(&co)
		}
		if co.privileged != nil {
			inv.Privileged = *co.privileged
		}
		if co.interactive != nil {
			inv.Interactive = *co.interactive
		}
	}

	if err := spec.CheckParams(params); err != nil {
		return s.finish(ctx, inv, StatusFailed, &Failure{
			Kind: FailValidation, Task: spec.Name, Target: s.target, Err: err,
		})
	}
	cmd, err := spec.Resolve(params)
	if err != nil {
		return s.finish(ctx, inv, StatusFailed, &Failure{
			Kind: FailValidation, Task: spec.Name, Target: s.target, Err: err,
		})
	}
	inv.Command = cmd

	if inv.Interactive {
		s.ttyMu.Lock()
		defer s.ttyMu.Unlock()
	}

	// MaxRetries bounds total attempts: a permanently failing command
	// is tried exactly MaxRetries times, never more.
	maxAttempts := 1
	if spec.Retryable && spec.MaxRetries > 0 {
		maxAttempts = spec.MaxRetries
	}
	backoff := spec.EffectiveBackoff()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		inv.Attempt = attempt
		if inv.Privileged {
			inv.transition(StatusEscalating)
		}
		inv.transition(StatusRunning)

		s.logger.Debug().
			Str("target", s.target).
			Str("task", spec.Name).
			Str("command", inv.RedactedCommand()).
			Bool("privileged", inv.Privileged).
			Int("attempt", attempt).
			Msg("executing task")

		res, runErr := s.backend.Run(ctx, transports.ExecRequest{
			Command:     cmd,
			Privileged:  inv.Privileged,
			Interactive: inv.Interactive,
			Timeout:     spec.Timeout,
		})
		inv.Result = res

		if runErr == nil || (res != nil && spec.ExitOK(res.ExitCode) && transports.IsKind(runErr, transports.KindCommand)) {
			return s.succeed(ctx, inv, spec, res)
		}

		kind := classify(runErr)
		lastErr = runErr

		if kind == FailEscalation {
			if s.metrics != nil {
				s.metrics.CountEscalationFailure(s.target)
			}
			if spec.Escalation == tasks.EscalationSoft {
				// The target refused elevation for an optional query;
				// report an empty answer with a warning instead of
				// aborting the run.
				inv.Warning = "privilege escalation refused: " + runErr.Error()
				return s.finish(ctx, inv, StatusWarned, nil)
			}
			return s.fail(ctx, inv, kind, runErr)
		}

		if attempt < maxAttempts && s.transient(spec, res, runErr) {
			inv.transition(StatusRetrying)
			if s.metrics != nil {
				s.metrics.CountRetry(string(spec.Category))
			}
			wait := backoff.Wait(attempt)
			s.logger.Warn().
				Str("target", s.target).
				Str("task", spec.Name).
				Int("attempt", attempt).
				Dur("backoff", wait).
				Err(runErr).
				Msg("transient failure, retrying")
			if err := s.sleep(ctx, wait); err != nil {
				return s.fail(ctx, inv, FailTimeout, err)
			}
			inv.Status = StatusPending
			continue
		}

		return s.fail(ctx, inv, kind, runErr)
	}
	// Unreachable: the loop always returns. Kept for the compiler.
	return s.fail(ctx, inv, classify(lastErr), lastErr)
}

// succeed decodes output and closes out the invocation.
func (s *Session) succeed(ctx context.Context, inv *Invocation, spec *tasks.Spec, res *transports.ExecResult) (*Invocation, error) {
	parsed, err := parsers.Parse(spec.Parser, parsers.Input{
		Stdout: res.Stdout,
		Stderr: res.Stderr,
		Code:   res.ExitCode,
	})
	if err != nil {
		return s.fail(ctx, inv, FailParse, err)
	}
	inv.Parsed = parsed
	return s.finish(ctx, inv, StatusSucceeded, nil)
}

// fail closes out the invocation; best-effort specs downgrade every
// post-validation failure to a warning.
func (s *Session) fail(ctx context.Context, inv *Invocation, kind FailureKind, cause error) (*Invocation, error) {
	if inv.Spec.BestEffort && kind != FailValidation {
		inv.Warning = string(kind) + " failure: " + cause.Error()
		s.logger.Warn().
			Str("target", s.target).
			Str("task", inv.Spec.Name).
			Err(cause).
			Msg("best-effort task failed")
		return s.finish(ctx, inv, StatusWarned, nil)
	}
	f := &Failure{
		Kind:     kind,
		Task:     inv.Spec.Name,
		Target:   s.target,
		Attempts: inv.Attempt,
		ExitCode: inv.ExitCode(),
		Err:      cause,
	}
	if inv.Result != nil && !inv.Spec.Sensitive {
		f.Stderr = inv.Result.Stderr
	}
	return s.finish(ctx, inv, StatusFailed, f)
}

// finish records the terminal state in history, store, metrics and logs.
func (s *Session) finish(ctx context.Context, inv *Invocation, status Status, failure *Failure) (*Invocation, error) {
	inv.transition(status)
	inv.Finished = time.Now()
	if failure != nil {
		inv.Err = failure
	}

	entry := history.Entry{
		ID:         inv.ID,
		Target:     s.target,
		Task:       inv.Spec.Name,
		Category:   string(inv.Spec.Category),
		Command:    inv.RedactedCommand(),
		Privileged: inv.Privileged,
		Status:     string(status),
		ExitCode:   inv.ExitCode(),
		Attempts:   inv.Attempt,
		StartedAt:  inv.Started,
		Duration:   inv.Finished.Sub(inv.Started),
	}
	if inv.Result != nil && !inv.Spec.Sensitive {
		entry.Stdout = inv.Result.Stdout
		entry.Stderr = inv.Result.Stderr
	}
	if failure != nil {
		entry.Error = failure.Error()
	} else if inv.Warning != "" {
		entry.Error = inv.Warning
	}
	entry = s.log.Append(entry)

	if s.store != nil {
		if err := s.store.SaveInvocation(ctx, entry); err != nil {
			s.logger.Error().Err(err).Str("task", inv.Spec.Name).Msg("persisting invocation failed")
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveInvocation(string(inv.Spec.Category), string(status), entry.Duration)
	}

	evt := s.logger.Info()
	if status == StatusFailed {
		evt = s.logger.Error()
	}
	evt.Str("target", s.target).
		Str("task", inv.Spec.Name).
		Str("status", string(status)).
		Int("exit_code", entry.ExitCode).
		Int("attempts", inv.Attempt).
		Dur("duration", entry.Duration).
		Msg("task finished")

	if failure != nil {
		return inv, failure
	}
	return inv, nil
}

// transient reports whether the failure matches the spec's transient
// signatures or the transport flagged it temporary.
func (s *Session) transient(spec *tasks.Spec, res *transports.ExecResult, err error) bool {
	if !spec.Retryable {
		return false
	}
	var te *transports.Error
	if errors.As(err, &te) && te.Temporary {
		return true
	}
	if res == nil {
		return false
	}
	combined := res.Stdout + "\n" + res.Stderr
	for _, sig := range spec.TransientSignatures {
		if strings.Contains(combined, sig) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
