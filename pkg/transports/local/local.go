// Package local implements the execution backend for the machine the
// process runs on. It satisfies the same contract as the SSH backend:
// identical escalation wrapping, identical timeout behavior, identical
// classification of non-zero exits.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hostwright/hostwright/pkg/transports"
)

// Backend runs commands as local subprocesses.
type Backend struct {
	// WorkDir is the working directory for commands. Empty means the
	// process working directory.
	WorkDir string

	// SudoPassword is used for privilege escalation. May be empty when
	// the current user has NOPASSWD sudo.
	SudoPassword string

	// CommandTimeout is the default timeout for command execution.
	CommandTimeout time.Duration

	// Shell is the shell used to interpret command strings. Defaults
	// to /bin/sh.
	Shell string
}

var _ transports.Backend = (*Backend)(nil)
var _ transports.FileTransfer = (*Backend)(nil)

// New creates a local backend with default settings.
func New() *Backend {
	return &Backend{
		CommandTimeout: 5 * time.Minute,
		Shell:          "/bin/sh",
	}
}

// Connect is a no-op for the local backend.
func (b *Backend) Connect(ctx context.Context) error { return nil }

// Close is a no-op for the local backend.
func (b *Backend) Close() error { return nil }

// Alive always reports true: the local process is its own channel.
func (b *Backend) Alive() bool { return true }

// Run executes one command as a subprocess.
func (b *Backend) Run(ctx context.Context, req transports.ExecRequest) (*transports.ExecResult, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = b.CommandTimeout
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	shell := b.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	var cmd *exec.Cmd
	if req.Privileged {
		if b.SudoPassword != "" {
			cmd = exec.CommandContext(ctx, "sudo", "-S", "-p", "", shell, "-c", req.Command)
			cmd.Stdin = strings.NewReader(b.SudoPassword + "\n")
		} else {
			// -n fails fast when credentials are missing instead of
			// prompting on a terminal that is not there.
			cmd = exec.CommandContext(ctx, "sudo", "-n", shell, "-c", req.Command)
		}
	} else {
		cmd = exec.CommandContext(ctx, shell, "-c", req.Command)
	}

	if b.WorkDir != "" {
		cmd.Dir = b.WorkDir
	}
	if cmd.Stdin == nil && !req.Interactive {
		// Closed stdin: prompting commands get EOF and fail fast.
		cmd.Stdin = strings.NewReader("")
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	log.Debug().
		Str("command", req.Command).
		Bool("privileged", req.Privileged).
		Bool("interactive", req.Interactive).
		Msg("executing local command")

	startedAt := time.Now()
	runErr := cmd.Run()
	finishedAt := time.Now()

	res := &transports.ExecResult{
		Stdout:     strings.TrimRight(stdoutBuf.String(), "\n"),
		Stderr:     strings.TrimRight(stderrBuf.String(), "\n"),
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Duration:   finishedAt.Sub(startedAt),
	}

	if ctx.Err() == context.DeadlineExceeded {
		return res, &transports.Error{
			Op:        "run",
			Kind:      transports.KindTimeout,
			Temporary: true,
			Err:       fmt.Errorf("command timed out after %s", timeout),
		}
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			if req.Privileged && isEscalationDenied(res.ExitCode, res.Stderr) {
				return res, &transports.Error{
					Op:       "run",
					Kind:     transports.KindEscalation,
					ExitCode: res.ExitCode,
					Err:      fmt.Errorf("privilege escalation rejected: %s", res.Stderr),
				}
			}
			return res, &transports.Error{
				Op:       "run",
				Kind:     transports.KindCommand,
				ExitCode: res.ExitCode,
				Err:      fmt.Errorf("command exited with code %d: %s", res.ExitCode, res.Stderr),
			}
		}
		// Shell or sudo binary missing, fork failure: the channel itself
		// is unusable, same classification as a dead connection.
		return res, &transports.Error{
			Op:   "run",
			Kind: transports.KindConnection,
			Err:  runErr,
		}
	}

	return res, nil
}

// Upload writes content to path on the local filesystem.
func (b *Backend) Upload(ctx context.Context, content []byte, path string, mode uint32) error {
	if err := ctx.Err(); err != nil {
		return &transports.Error{Op: "upload", Kind: transports.KindConnection, Err: err}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &transports.Error{Op: "upload", Kind: transports.KindCommand, Err: err}
		}
	}
	fm := os.FileMode(mode)
	if mode == 0 {
		fm = 0o644
	}
	if err := os.WriteFile(path, content, fm); err != nil {
		return &transports.Error{Op: "upload", Kind: transports.KindCommand, Err: err}
	}
	return nil
}

// Download reads the content of path on the local filesystem.
func (b *Backend) Download(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &transports.Error{Op: "download", Kind: transports.KindConnection, Err: err}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &transports.Error{Op: "download", Kind: transports.KindCommand, Err: err}
	}
	return content, nil
}

// isEscalationDenied mirrors the SSH backend's sudo rejection detection.
func isEscalationDenied(exitCode int, stderr string) bool {
	if exitCode != 1 {
		return false
	}
	for _, sig := range []string{
		"sudo: a password is required",
		"sudo: no tty present",
		"incorrect password attempt",
		"is not in the sudoers file",
		"sudo: a terminal is required",
	} {
		if strings.Contains(stderr, sig) {
			return true
		}
	}
	return false
}
