// Package parsers turns raw command output into structured values.
//
// Each task specification may name a parser; the executor runs it over
// the captured output after the command succeeds. A parser that cannot
// make sense of the output returns a *ParseError, which the executor
// reports as a parse failure distinct from the command failing.
package parsers

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Input is what a parser sees: the captured streams and the exit code.
// Exit-code driven parsers (existence tests, health checks) only look
// at Code; the rest decode Stdout.
type Input struct {
	Stdout string
	Stderr string
	Code   int
}

// Func decodes one command's output.
type Func func(in Input) (any, error)

// ParseError reports output the named parser could not decode.
type ParseError struct {
	Parser string
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parser %s: %s", e.Parser, e.Msg)
}

func parseErrf(parser, format string, args ...any) *ParseError {
	return &ParseError{Parser: parser, Msg: fmt.Sprintf(format, args...)}
}

var registry = map[string]Func{
	"":               parseRaw,
	"lines":          parseLines,
	"int":            parseInt,
	"bool.exit":      parseBoolExit,
	"svc.active":     parseSvcActive,
	"svc.enabled":    parseSvcEnabled,
	"docker.ps":      parseDockerPS,
	"docker.inspect": parseDockerInspect,
	"kube.get":       parseJSONObject("kube.get"),
	"helm.status":    parseJSONObject("helm.status"),
	"fs.tree":        parseTree,
	"stat.mode":      parseStatMode,
	"user.id":        parseUserID,
	"user.entry":     parseUserEntry,
	"user.list":      parseUserList,
	"date.unix":      parseDateUnix,
	"probe.uname":    parseUname,
	"probe.mem":      parseMem,
	"probe.disk":     parseDisk,
	"probe.dns":      parseDNS,
}

// Lookup returns the parser registered under id.
func Lookup(id string) (Func, error) {
	fn, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("unknown parser %q", id)
	}
	return fn, nil
}

// Parse runs the parser registered under id over the input.
func Parse(id string, in Input) (any, error) {
	fn, err := Lookup(id)
	if err != nil {
		return nil, err
	}
	return fn(in)
}

func parseRaw(in Input) (any, error) {
	return strings.TrimRight(in.Stdout, "\n"), nil
}

func parseLines(in Input) (any, error) {
	var out []string
	for _, line := range strings.Split(in.Stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

func parseInt(in Input) (any, error) {
	s := strings.TrimSpace(in.Stdout)
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, parseErrf("int", "not an integer: %q", s)
	}
	return n, nil
}

// parseBoolExit maps exit status to a boolean: zero is true, anything
// the spec tolerated is false.
func parseBoolExit(in Input) (any, error) {
	return in.Code == 0, nil
}

// ServiceState is the decoded answer of a service status probe.
type ServiceState struct {
	Active bool
	Raw    string
}

func parseSvcActive(in Input) (any, error) {
	raw := strings.TrimSpace(in.Stdout)
	switch raw {
	case "active", "activating", "reloading":
		return ServiceState{Active: true, Raw: raw}, nil
	case "inactive", "deactivating", "failed", "unknown", "":
		return ServiceState{Active: false, Raw: raw}, nil
	}
	return nil, parseErrf("svc.active", "unrecognized unit state %q", raw)
}

func parseSvcEnabled(in Input) (any, error) {
	raw := strings.TrimSpace(in.Stdout)
	switch raw {
	case "enabled", "enabled-runtime", "static", "alias", "linked":
		return true, nil
	case "disabled", "masked", "not-found", "":
		return false, nil
	}
	return nil, parseErrf("svc.enabled", "unrecognized enablement %q", raw)
}

// Container is one row of the container listing.
type Container struct {
	Name   string
	State  string
	Image  string
	Status string
}

func parseDockerPS(in Input) (any, error) {
	var out []Container
	for _, line := range strings.Split(in.Stdout, "\n") {
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 4)
		if len(parts) != 4 {
			return nil, parseErrf("docker.ps", "malformed row %q", line)
		}
		out = append(out, Container{Name: parts[0], State: parts[1], Image: parts[2], Status: parts[3]})
	}
	return out, nil
}

func parseDockerInspect(in Input) (any, error) {
	s := strings.TrimSpace(in.Stdout)
	if s == "" {
		return []map[string]any{}, nil
	}
	var out []map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, parseErrf("docker.inspect", "invalid JSON: %v", err)
	}
	return out, nil
}

func parseJSONObject(name string) Func {
	return func(in Input) (any, error) {
		s := strings.TrimSpace(in.Stdout)
		if s == "" {
			return nil, parseErrf(name, "empty output")
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, parseErrf(name, "invalid JSON: %v", err)
		}
		return out, nil
	}
}

// TreeEntry is one filesystem node from a recursive listing.
type TreeEntry struct {
	Path  string
	Type  string // f, d, l per find -printf %y
	Size  int64
	MTime int64
}

func parseTree(in Input) (any, error) {
	var out []TreeEntry
	for _, line := range strings.Split(in.Stdout, "\n") {
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 4)
		if len(parts) != 4 {
			return nil, parseErrf("fs.tree", "malformed row %q", line)
		}
		size, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return nil, parseErrf("fs.tree", "bad size in %q", line)
		}
		// find prints %T@ with fractional seconds.
		mtimeStr, _, _ := strings.Cut(parts[3], ".")
		mtime, err := strconv.ParseInt(mtimeStr, 10, 64)
		if err != nil {
			return nil, parseErrf("fs.tree", "bad mtime in %q", line)
		}
		out = append(out, TreeEntry{Path: parts[0], Type: parts[1], Size: size, MTime: mtime})
	}
	return out, nil
}

func parseStatMode(in Input) (any, error) {
	s := strings.TrimSpace(in.Stdout)
	if s == "" {
		return nil, parseErrf("stat.mode", "empty output")
	}
	if _, err := strconv.ParseUint(s, 8, 32); err != nil {
		return nil, parseErrf("stat.mode", "not an octal mode: %q", s)
	}
	return s, nil
}

func parseUserID(in Input) (any, error) {
	s := strings.TrimSpace(in.Stdout)
	uid, err := strconv.Atoi(s)
	if err != nil {
		return nil, parseErrf("user.id", "not a uid: %q", s)
	}
	return uid, nil
}

// Account is one passwd entry.
type Account struct {
	Name  string
	UID   int
	GID   int
	Gecos string
	Home  string
	Shell string
}

func parsePasswdLine(line string) (Account, error) {
	parts := strings.Split(line, ":")
	if len(parts) != 7 {
		return Account{}, fmt.Errorf("want 7 fields, got %d", len(parts))
	}
	uid, err := strconv.Atoi(parts[2])
	if err != nil {
		return Account{}, fmt.Errorf("bad uid %q", parts[2])
	}
	gid, err := strconv.Atoi(parts[3])
	if err != nil {
		return Account{}, fmt.Errorf("bad gid %q", parts[3])
	}
	return Account{
		Name: parts[0], UID: uid, GID: gid,
		Gecos: parts[4], Home: parts[5], Shell: parts[6],
	}, nil
}

func parseUserEntry(in Input) (any, error) {
	line := strings.TrimSpace(in.Stdout)
	if line == "" {
		return nil, parseErrf("user.entry", "empty output")
	}
	acct, err := parsePasswdLine(line)
	if err != nil {
		return nil, parseErrf("user.entry", "%v in %q", err, line)
	}
	return acct, nil
}

func parseUserList(in Input) (any, error) {
	var out []Account
	for _, line := range strings.Split(in.Stdout, "\n") {
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		acct, err := parsePasswdLine(line)
		if err != nil {
			return nil, parseErrf("user.list", "%v in %q", err, line)
		}
		out = append(out, acct)
	}
	return out, nil
}

func parseDateUnix(in Input) (any, error) {
	s := strings.TrimSpace(in.Stdout)
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, parseErrf("date.unix", "not a unix timestamp: %q", s)
	}
	return ts, nil
}

// SystemInfo is the decoded uname probe.
type SystemInfo struct {
	Kernel  string
	Release string
	Machine string
}

func parseUname(in Input) (any, error) {
	fields := strings.Fields(strings.TrimSpace(in.Stdout))
	if len(fields) < 3 {
		return nil, parseErrf("probe.uname", "want 3 fields, got %q", in.Stdout)
	}
	return SystemInfo{Kernel: fields[0], Release: fields[1], Machine: fields[2]}, nil
}

// Memory is the decoded `free -m` probe, in mebibytes.
type Memory struct {
	TotalMB     int64
	UsedMB      int64
	AvailableMB int64
}

func parseMem(in Input) (any, error) {
	for _, line := range strings.Split(in.Stdout, "\n") {
		if !strings.HasPrefix(line, "Mem:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 7 {
			return nil, parseErrf("probe.mem", "short Mem row %q", line)
		}
		total, err1 := strconv.ParseInt(fields[1], 10, 64)
		used, err2 := strconv.ParseInt(fields[2], 10, 64)
		avail, err3 := strconv.ParseInt(fields[6], 10, 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, parseErrf("probe.mem", "non-numeric Mem row %q", line)
		}
		return Memory{TotalMB: total, UsedMB: used, AvailableMB: avail}, nil
	}
	return nil, parseErrf("probe.mem", "no Mem row in output")
}

// DiskUsage is the decoded root-filesystem usage probe.
type DiskUsage struct {
	Filesystem string
	Size       string
	Used       string
	Available  string
	UsePercent string
	MountedOn  string
}

func parseDisk(in Input) (any, error) {
	lines := strings.Split(strings.TrimSpace(in.Stdout), "\n")
	if len(lines) < 2 {
		return nil, parseErrf("probe.disk", "no data row in output")
	}
	fields := strings.Fields(lines[len(lines)-1])
	if len(fields) < 6 {
		return nil, parseErrf("probe.disk", "short data row %q", lines[len(lines)-1])
	}
	return DiskUsage{
		Filesystem: fields[0], Size: fields[1], Used: fields[2],
		Available: fields[3], UsePercent: fields[4], MountedOn: fields[5],
	}, nil
}

// HostEntry is one resolved address from a name lookup.
type HostEntry struct {
	Address string
	Names   []string
}

func parseDNS(in Input) (any, error) {
	var out []HostEntry
	for _, line := range strings.Split(in.Stdout, "\n") {
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, parseErrf("probe.dns", "malformed row %q", line)
		}
		out = append(out, HostEntry{Address: fields[0], Names: fields[1:]})
	}
	if len(out) == 0 {
		return nil, parseErrf("probe.dns", "no entries resolved")
	}
	return out, nil
}
