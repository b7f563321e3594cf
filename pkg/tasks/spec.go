package tasks

import "time"

// ParamKind constrains the semantic type of a parameter value.
type ParamKind string

const (
	// KindString is a free-form value that must still be shell-safe.
	KindString ParamKind = "string"

	// KindName is a conservative identifier (users, services, packages).
	KindName ParamKind = "name"

	// KindInt is a decimal integer.
	KindInt ParamKind = "int"

	// KindPort is a positive integer in the TCP/UDP port range.
	KindPort ParamKind = "port"

	// KindPath is an absolute filesystem path.
	KindPath ParamKind = "path"

	// KindRelPath is a path that may be relative.
	KindRelPath ParamKind = "relpath"

	// KindURL is an http(s) or git URL.
	KindURL ParamKind = "url"

	// KindRaw is unvalidated text. Only the ad-hoc passthrough and
	// quoted content parameters use it; everything else gets the
	// injection guard.
	KindRaw ParamKind = "raw"
)

// Param declares one named placeholder of a task template.
type Param struct {
	Name     string
	Kind     ParamKind
	Required bool

	// Default is substituted when an optional parameter is absent.
	Default string

	// Sensitive parameter values are redacted from history and logs.
	Sensitive bool
}

// Backoff is the retry backoff policy for a retryable specification:
// exponential growth from Initial, capped at Max.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoff matches transient package-manager lock contention:
// quick first retry, bounded growth.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    500 * time.Millisecond,
		Max:        15 * time.Second,
		Multiplier: 2.0,
	}
}

// Wait returns the backoff delay before retry attempt n (1-based).
func (b Backoff) Wait(attempt int) time.Duration {
	d := b.Initial
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * b.Multiplier)
		if d >= b.Max {
			return b.Max
		}
	}
	if d > b.Max {
		return b.Max
	}
	return d
}

// EscalationPolicy decides what a rejected privilege elevation means for
// one specification. The default is to surface the failure; optional
// privileged probes may declare it soft so the invocation reports an
// empty result with a warning instead.
type EscalationPolicy string

const (
	// EscalationHard surfaces escalation failures as errors.
	EscalationHard EscalationPolicy = "hard"

	// EscalationSoft downgrades escalation failures to a warning with an
	// empty result. Only meaningful for read-only queries.
	EscalationSoft EscalationPolicy = "soft"
)

// Spec is an immutable task specification: one operation's command
// template together with its execution policy.
type Spec struct {
	// Name uniquely identifies the specification, e.g. "pkg.install".
	Name string

	// Category is the logical bucket; uniform failure semantics apply
	// per category.
	Category Category

	// Template is the command with {placeholder} substitution points.
	Template string

	// Params declares every placeholder the template uses.
	Params []Param

	// RequiresPrivilege forces escalation. The executor applies it
	// mechanically; callers cannot downgrade it.
	RequiresPrivilege bool

	// RequiresPTY requests an interactive pseudo-terminal.
	RequiresPTY bool

	// Parser names the result decoder from pkg/parsers. Empty means the
	// raw trimmed stdout is the result.
	Parser string

	// OKExitCodes lists non-zero exit codes that still count as success
	// for this specification. Status probes use it so "inactive" or
	// "missing" is an answer, not a failure.
	OKExitCodes []int

	// Retryable allows retry on transient failure signatures.
	Retryable bool

	// MaxRetries bounds total attempts for a retryable specification.
	// A permanently failing command is tried exactly MaxRetries times.
	MaxRetries int

	// Backoff is the retry delay policy. Zero value means DefaultBackoff
	// when Retryable is set.
	Backoff Backoff

	// TransientSignatures are substrings of stderr/stdout that mark a
	// command failure as transient and therefore retryable.
	TransientSignatures []string

	// BestEffort downgrades timeout and command failures to warnings.
	// Used by diagnostics; mandatory operations leave it unset.
	BestEffort bool

	// Sensitive marks specs whose output contains secret material
	// (generated keys, passwords); history truncates and flags it.
	Sensitive bool

	// Escalation resolves rejected privilege elevation per spec.
	Escalation EscalationPolicy

	// Timeout overrides the backend default when positive.
	Timeout time.Duration
}

// ExitOK reports whether code counts as success for this specification.
func (s *Spec) ExitOK(code int) bool {
	if code == 0 {
		return true
	}
	for _, ok := range s.OKExitCodes {
		if code == ok {
			return true
		}
	}
	return false
}

// param returns the declared parameter by name, or nil.
func (s *Spec) param(name string) *Param {
	for i := range s.Params {
		if s.Params[i].Name == name {
			return &s.Params[i]
		}
	}
	return nil
}

// backoff returns the effective backoff policy.
func (s *Spec) backoff() Backoff {
	if s.Backoff == (Backoff{}) {
		return DefaultBackoff()
	}
	return s.Backoff
}

// EffectiveBackoff exposes the backoff policy the executor applies.
func (s *Spec) EffectiveBackoff() Backoff {
	return s.backoff()
}
