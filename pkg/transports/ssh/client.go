// Package ssh implements the network execution backend: an authenticated
// SSH session to a remote host with uniform escalation, PTY, and timeout
// semantics per the transports.Backend contract.
package ssh

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"

	"github.com/hostwright/hostwright/pkg/transports"
)

// Client implements transports.Backend over an SSH connection.
type Client struct {
	config *Config

	connMu      sync.RWMutex
	client      *ssh.Client
	isConnected bool
	connectedAt time.Time
	lastUsedAt  time.Time
}

var _ transports.Backend = (*Client)(nil)
var _ transports.FileTransfer = (*Client)(nil)

// NewClient creates a new SSH backend for one target.
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Client{config: config}, nil
}

// Connect establishes the SSH connection to the remote host.
func (c *Client) Connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.isConnected && c.client != nil {
		// Already connected, verify connection is still alive
		if err := c.healthCheckLocked(); err == nil {
			return nil
		}
		log.Warn().Msg("existing connection is dead, reconnecting")
		_ = c.client.Close()
	}

	clientConfig, err := c.config.buildClientConfig()
	if err != nil {
		return &transports.Error{Op: "connect", Kind: transports.KindConnection, Err: err}
	}

	address := c.config.Address()
	log.Debug().Str("address", address).Msg("establishing SSH connection")

	connChan := make(chan *ssh.Client, 1)
	errChan := make(chan error, 1)

	go func() {
		client, err := ssh.Dial("tcp", address, clientConfig)
		if err != nil {
			errChan <- err
			return
		}
		connChan <- client
	}()

	select {
	case <-ctx.Done():
		return &transports.Error{Op: "connect", Kind: transports.KindConnection, Temporary: true, Err: ctx.Err()}
	case err := <-errChan:
		return &transports.Error{Op: "connect", Kind: transports.KindConnection, Temporary: true, Err: err}
	case client := <-connChan:
		c.client = client
		c.isConnected = true
		c.connectedAt = time.Now()
		c.lastUsedAt = time.Now()

		if c.config.KeepAliveInterval > 0 {
			go c.keepAlive()
		}

		log.Info().Str("address", address).Msg("SSH connection established")
		return nil
	}
}

// Close closes the SSH connection and releases all resources.
func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if !c.isConnected || c.client == nil {
		return nil
	}

	log.Debug().Str("host", c.config.Host).Msg("closing SSH connection")

	err := c.client.Close()
	c.client = nil
	c.isConnected = false

	if err != nil {
		return &transports.Error{Op: "disconnect", Kind: transports.KindConnection, Err: err}
	}
	return nil
}

// Alive reports whether the transport has a responsive connection.
func (c *Client) Alive() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()

	if !c.isConnected || c.client == nil {
		return false
	}
	return c.healthCheckLocked() == nil
}

// healthCheckLocked runs a no-op command to probe the connection.
// Must be called with connMu held.
func (c *Client) healthCheckLocked() error {
	session, err := c.client.NewSession()
	if err != nil {
		return err
	}
	defer session.Close()
	return session.Run("true")
}

// keepAlive sends periodic keep-alive messages to keep the connection alive.
func (c *Client) keepAlive() {
	ticker := time.NewTicker(c.config.KeepAliveInterval)
	defer ticker.Stop()

	retries := 0
	maxRetries := c.config.MaxKeepAliveRetries

	for range ticker.C {
		c.connMu.RLock()
		if !c.isConnected || c.client == nil {
			c.connMu.RUnlock()
			return
		}
		client := c.client
		c.connMu.RUnlock()

		_, _, err := client.SendRequest("keepalive@openssh.com", true, nil)
		if err != nil {
			retries++
			log.Warn().Err(err).Int("retries", retries).Msg("keep-alive failed")
			if retries >= maxRetries {
				log.Error().Msg("keep-alive failed too many times, connection may be dead")
				return
			}
		} else {
			retries = 0
		}
	}
}

// getClient returns the underlying SSH client.
func (c *Client) getClient() (*ssh.Client, error) {
	c.connMu.RLock()
	defer c.connMu.RUnlock()

	if !c.isConnected || c.client == nil {
		return nil, &transports.Error{
			Op:   "run",
			Kind: transports.KindConnection,
			Err:  fmt.Errorf("not connected"),
		}
	}

	c.lastUsedAt = time.Now()
	return c.client, nil
}

// Run executes one command on the remote host.
func (c *Client) Run(ctx context.Context, req transports.ExecRequest) (*transports.ExecResult, error) {
	sshClient, err := c.getClient()
	if err != nil {
		return nil, err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.config.CommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	session, err := sshClient.NewSession()
	if err != nil {
		return nil, &transports.Error{
			Op:        "run",
			Kind:      transports.KindConnection,
			Temporary: true,
			Err:       fmt.Errorf("failed to create session: %w", err),
		}
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	finalCmd := req.Command
	if req.Privileged {
		finalCmd = escalate(req.Command, c.config.SudoPassword != "")
		if c.config.SudoPassword != "" {
			// Password is fed on stdin; -p '' suppresses the prompt so it
			// never mixes into captured output.
			session.Stdin = strings.NewReader(c.config.SudoPassword + "\n")
		}
	}
	// Leaving Stdin unset for everything else gives commands immediate
	// EOF: anything that prompts fails fast instead of hanging.

	if req.Interactive {
		if err := session.RequestPty("xterm", 40, 80, ssh.TerminalModes{
			ssh.ECHO:          0,
			ssh.TTY_OP_ISPEED: 14400,
			ssh.TTY_OP_OSPEED: 14400,
		}); err != nil {
			return nil, &transports.Error{
				Op:        "run",
				Kind:      transports.KindConnection,
				Temporary: true,
				Err:       fmt.Errorf("failed to request pseudo-terminal: %w", err),
			}
		}
	}

	startedAt := time.Now()

	log.Debug().
		Str("command", req.Command).
		Bool("privileged", req.Privileged).
		Bool("interactive", req.Interactive).
		Msg("executing command")

	doneChan := make(chan error, 1)
	go func() {
		doneChan <- session.Run(finalCmd)
	}()

	var execErr error
	timedOut := false
	select {
	case <-ctx.Done():
		// Terminate or abandon the command rather than hanging the caller.
		_ = session.Signal(ssh.SIGTERM)
		select {
		case execErr = <-doneChan:
		case <-time.After(100 * time.Millisecond):
			_ = session.Signal(ssh.SIGKILL)
			execErr = ctx.Err()
		}
		timedOut = true
	case execErr = <-doneChan:
	}

	finishedAt := time.Now()
	res := &transports.ExecResult{
		Stdout:     strings.TrimRight(stdoutBuf.String(), "\n"),
		Stderr:     strings.TrimRight(stderrBuf.String(), "\n"),
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Duration:   finishedAt.Sub(startedAt),
	}

	log.Debug().
		Str("command", req.Command).
		Int("stdout_len", len(res.Stdout)).
		Int("stderr_len", len(res.Stderr)).
		Dur("duration", res.Duration).
		Err(execErr).
		Msg("command completed")

	if timedOut {
		return res, &transports.Error{
			Op:        "run",
			Kind:      transports.KindTimeout,
			Temporary: true,
			Err:       fmt.Errorf("command timed out after %s", timeout),
		}
	}

	if execErr != nil {
		if exitErr, ok := execErr.(*ssh.ExitError); ok {
			res.ExitCode = exitErr.ExitStatus()
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
		return res, &transports.Error{
			Op:        "run",
			Kind:      transports.KindConnection,
			Temporary: true,
			Err:       execErr,
		}
	}

	return res, nil
}

// escalate wraps a command with the sudo escalation mechanism. The
// executor relies on this being the only place escalation text is
// produced, so the audit trail can record the flag separately from the
// command the caller phrased.
func escalate(cmd string, withPassword bool) string {
	quoted := shQuote(cmd)
	if withPassword {
		return "sudo -S -p '' sh -c " + quoted
	}
	// -n makes a credential-less escalation fail immediately instead of
	// prompting, which would otherwise be indistinguishable from a hang.
	return "sudo -n sh -c " + quoted
}

// shQuote single-quotes s for POSIX sh.
func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// isEscalationDenied distinguishes sudo rejecting the elevation from the
// wrapped command itself failing. sudo exits 1 and writes its diagnostics
// to stderr with a "sudo:" prefix before the command ever runs.
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
