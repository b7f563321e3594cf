package ops

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/hostwright/hostwright/pkg/executor"
	"github.com/hostwright/hostwright/pkg/transports"
)

// scriptBackend answers commands by substring rules and records every
// request so tests can assert on ordering and flags.
type scriptBackend struct {
	t        *testing.T
	rules    []rule
	requests []transports.ExecRequest
}

type rule struct {
	substr string
	res    *transports.ExecResult
	err    error
}

func answer(substr, stdout string) rule {
	return rule{substr: substr, res: &transports.ExecResult{Stdout: stdout}}
}

func refuse(substr, stderr string, code int) rule {
	return rule{
		substr: substr,
		res:    &transports.ExecResult{Stderr: stderr, ExitCode: code},
		err:    &transports.Error{Op: "run", Kind: transports.KindCommand, ExitCode: code, Err: errors.New(stderr)},
	}
}

func (b *scriptBackend) Connect(ctx context.Context) error { return nil }
func (b *scriptBackend) Close() error                      { return nil }
func (b *scriptBackend) Alive() bool                       { return true }

func (b *scriptBackend) Run(ctx context.Context, req transports.ExecRequest) (*transports.ExecResult, error) {
	b.requests = append(b.requests, req)
	for _, r := range b.rules {
		if strings.Contains(req.Command, r.substr) {
			return r.res, r.err
		}
	}
	b.t.Fatalf("unexpected command: %q", req.Command)
	return nil, nil
}

func (b *scriptBackend) commands() []string {
	out := make([]string, len(b.requests))
	for i, r := range b.requests {
		out[i] = r.Command
	}
	return out
}

type upload struct {
	path    string
	mode    uint32
	content []byte
}

// fakeFiles is an in-memory file channel.
type fakeFiles struct {
	uploads []upload
	content map[string][]byte
}

func (f *fakeFiles) Upload(ctx context.Context, content []byte, path string, mode uint32) error {
	f.uploads = append(f.uploads, upload{path: path, mode: mode, content: content})
	if f.content == nil {
		f.content = map[string][]byte{}
	}
	f.content[path] = content
	return nil
}

func (f *fakeFiles) Download(ctx context.Context, path string) ([]byte, error) {
	c, ok := f.content[path]
	if !ok {
		return nil, &transports.Error{Op: "download", Kind: transports.KindCommand, Err: errors.New("no such file")}
	}
	return c, nil
}

func newTestOps(t *testing.T, files transports.FileTransfer, rules ...rule) (*Ops, *scriptBackend) {
	t.Helper()
	backend := &scriptBackend{t: t, rules: rules}
	sess := executor.NewSession("ops-test", backend)
	return New(sess, files), backend
}

func TestQueryServiceRunning(t *testing.T) {
	o, _ := newTestOps(t, nil,
		answer("is-active", "active\n"),
		answer("is-enabled", "enabled\n"),
	)
	st, err := o.QueryService(context.Background(), "nginx")
	if err != nil {
		t.Fatalf("QueryService: %v", err)
	}
	if !st.Active || !st.Enabled || st.Raw != "active" {
		t.Errorf("status = %+v", st)
	}
}

func TestQueryServiceStoppedIsAnAnswer(t *testing.T) {
	o, _ := newTestOps(t, nil,
		refuse("is-active", "inactive\n", 3),
		refuse("is-enabled", "disabled\n", 1),
	)
	st, err := o.QueryService(context.Background(), "nginx")
	if err != nil {
		t.Fatalf("QueryService: %v", err)
	}
	if st.Active || st.Enabled {
		t.Errorf("status = %+v, want stopped and disabled", st)
	}
}

func TestDirExists(t *testing.T) {
	o, _ := newTestOps(t, nil, answer("test -d /srv/app", ""))
	found, err := o.DirExists(context.Background(), "/srv/app")
	if err != nil || !found {
		t.Errorf("DirExists = %v, %v", found, err)
	}

	o, _ = newTestOps(t, nil, refuse("test -d /srv/app", "", 1))
	found, err = o.DirExists(context.Background(), "/srv/app")
	if err != nil || found {
		t.Errorf("DirExists = %v, %v, want false", found, err)
	}
}

func TestWriteFileUnprivileged(t *testing.T) {
	files := &fakeFiles{}
	o, backend := newTestOps(t, files)

	if err := o.WriteFile(context.Background(), "/home/app/conf.yaml", []byte("a: 1\n"), 0o644, false); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if len(backend.requests) != 0 {
		t.Error("unprivileged write should not execute commands")
	}
	if len(files.uploads) != 1 || files.uploads[0].path != "/home/app/conf.yaml" || files.uploads[0].mode != 0o644 {
		t.Errorf("uploads = %+v", files.uploads)
	}
}

func TestWriteFilePrivilegedStages(t *testing.T) {
	files := &fakeFiles{}
	o, backend := newTestOps(t, files, answer("mv /tmp/hostwright-", ""))

	if err := o.WriteFile(context.Background(), "/etc/app/conf.yaml", []byte("a: 1\n"), 0o644, true); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	up := files.uploads[0]
	if !strings.HasPrefix(up.path, "/tmp/hostwright-") || up.mode != 0o600 {
		t.Errorf("staging upload = %+v", up)
	}
	cmd := backend.requests[0].Command
	if !strings.Contains(cmd, up.path) || !strings.Contains(cmd, "/etc/app/conf.yaml") || !strings.Contains(cmd, "chmod 644") {
		t.Errorf("install command = %q", cmd)
	}
	if !backend.requests[0].Privileged {
		t.Error("install must run privileged")
	}
}

func TestWriteFileWithoutChannel(t *testing.T) {
	o, _ := newTestOps(t, nil)
	err := o.WriteFile(context.Background(), "/etc/x", nil, 0o644, false)
	if !errors.Is(err, ErrNoFileTransfer) {
		t.Errorf("err = %v, want ErrNoFileTransfer", err)
	}
}

func TestReadFile(t *testing.T) {
	files := &fakeFiles{content: map[string][]byte{"/etc/hostname": []byte("web-1\n")}}
	o, _ := newTestOps(t, files)

	got, err := o.ReadFile(context.Background(), "/etc/hostname")
	if err != nil || string(got) != "web-1\n" {
		t.Errorf("ReadFile = %q, %v", got, err)
	}
	if _, err := o.ReadFile(context.Background(), "/etc/absent"); err == nil {
		t.Error("missing file should fail")
	}
}

func TestUserID(t *testing.T) {
	o, _ := newTestOps(t, nil, answer("id -u deploy", "1000\n"))
	uid, found, err := o.UserID(context.Background(), "deploy")
	if err != nil || !found || uid != 1000 {
		t.Errorf("UserID = %d, %v, %v", uid, found, err)
	}

	o, _ = newTestOps(t, nil, refuse("id -u ghost", "id: 'ghost': no such user", 1))
	_, found, err = o.UserID(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("unknown user is an answer, not an error: %v", err)
	}
	if found {
		t.Error("found = true for unknown user")
	}
}

func TestAuthorizeKeyQuotesKey(t *testing.T) {
	o, backend := newTestOps(t, nil, answer("authorized_keys", ""))

	key := "ssh-ed25519 AAAAC3Nza... deploy@ci"
	if err := o.AuthorizeKey(context.Background(), "deploy", key); err != nil {
		t.Fatalf("AuthorizeKey: %v", err)
	}
	cmd := backend.requests[0].Command
	if !strings.Contains(cmd, "'"+key+"'") {
		t.Errorf("key not quoted in %q", cmd)
	}
	if !backend.requests[0].Privileged {
		t.Error("authorize_key must run privileged")
	}
}

func TestContainerStates(t *testing.T) {
	o, backend := newTestOps(t, nil,
		answer("docker ps", "web|running|nginx:1.27|Up 2 hours\ndb|exited|postgres:16|Exited (0) 3 days ago\n"),
	)
	states, err := o.ContainerStates(context.Background())
	if err != nil {
		t.Fatalf("ContainerStates: %v", err)
	}
	if len(states) != 2 || states[0].Name != "web" || states[1].State != "exited" {
		t.Errorf("states = %+v", states)
	}
	if !backend.requests[0].Privileged {
		t.Error("docker commands run privileged")
	}
}

func TestGenerateSelfSigned(t *testing.T) {
	o, backend := newTestOps(t, nil,
		answer("mkdir -p", ""),
		answer("genrsa", ""),
		answer("req -new", ""),
		answer("x509 -req", ""),
		answer("chmod 600", ""),
		answer("stat -c", "600\n"),
	)
	cert, err := o.GenerateSelfSigned(context.Background(), "/etc/ssl/app", "/CN=example.com", 30)
	if err != nil {
		t.Fatalf("GenerateSelfSigned: %v", err)
	}
	if cert.KeyPath != "/etc/ssl/app/key.pem" || cert.CertPath != "/etc/ssl/app/cert.pem" {
		t.Errorf("cert = %+v", cert)
	}

	cmds := backend.commands()
	if len(cmds) != 6 {
		t.Fatalf("commands = %v", cmds)
	}
	if !strings.Contains(cmds[3], "-days 30") {
		t.Errorf("sign command = %q", cmds[3])
	}
}

func TestGenerateSelfSignedChecksKeyMode(t *testing.T) {
	o, _ := newTestOps(t, nil,
		answer("mkdir -p", ""),
		answer("genrsa", ""),
		answer("req -new", ""),
		answer("x509 -req", ""),
		answer("chmod 600", ""),
		answer("stat -c", "644\n"),
	)
	_, err := o.GenerateSelfSigned(context.Background(), "/etc/ssl/app", "/CN=example.com", 0)
	if err == nil || !strings.Contains(err.Error(), "644") {
		t.Errorf("err = %v, want mode complaint", err)
	}
}

func TestGenerateSSHKeypair(t *testing.T) {
	pair, err := GenerateSSHKeypair("deploy@ci")
	if err != nil {
		t.Fatalf("GenerateSSHKeypair: %v", err)
	}
	if _, err := ssh.ParsePrivateKey(pair.PrivatePEM); err != nil {
		t.Errorf("private key does not parse: %v", err)
	}
	pub, comment, _, _, err := ssh.ParseAuthorizedKey([]byte(pair.PublicKey))
	if err != nil {
		t.Fatalf("public key does not parse: %v", err)
	}
	if pub.Type() != ssh.KeyAlgoED25519 {
		t.Errorf("key type = %s", pub.Type())
	}
	if comment != "deploy@ci" {
		t.Errorf("comment = %q", comment)
	}
}

func TestAdHocFlags(t *testing.T) {
	o, backend := newTestOps(t, nil, answer("whoami", "root\n"))

	inv, err := o.AdHoc(context.Background(), "whoami", true, false)
	if err != nil {
		t.Fatalf("AdHoc: %v", err)
	}
	if inv.Result.Stdout != "root\n" {
		t.Errorf("stdout = %q", inv.Result.Stdout)
	}
	if !backend.requests[0].Privileged || backend.requests[0].Interactive {
		t.Errorf("request = %+v", backend.requests[0])
	}
}

func TestInstallPackagesIsRepeatable(t *testing.T) {
	o, backend := newTestOps(t, nil,
		answer("apt-get install -y -q nginx", "nginx is already the newest version (1.27.0-1).\n"),
	)
	ctx := context.Background()

	// Installing into an already-satisfied target is a no-op on the
	// host, so the same call must succeed every time it is issued.
	if err := o.InstallPackages(ctx, "nginx"); err != nil {
		t.Fatalf("first install: %v", err)
	}
	if err := o.InstallPackages(ctx, "nginx"); err != nil {
		t.Fatalf("second install: %v", err)
	}
	if got := len(backend.requests); got != 2 {
		t.Fatalf("backend calls = %d, want 2", got)
	}

	snap := o.Session().History().Snapshot()
	if len(snap) != 2 {
		t.Fatalf("history entries = %d, want 2", len(snap))
	}
	for i, e := range snap {
		if e.Status != "succeeded" {
			t.Errorf("history[%d].Status = %q", i, e.Status)
		}
	}
}

func TestProbeWarningsDoNotSoftenFetch(t *testing.T) {
	memTimeout := rule{
		substr: "free -m",
		res:    &transports.ExecResult{ExitCode: -1},
		err:    &transports.Error{Op: "run", Kind: transports.KindTimeout, Temporary: true, Err: errors.New("deadline exceeded")},
	}
	o, _ := newTestOps(t, nil,
		answer("uname", "Linux 6.8.0-45-generic x86_64\n"),
		answer("hostname", "web-1\n"),
		answer("nproc", "8\n"),
		memTimeout,
		answer("df -h /", "Filesystem      Size  Used Avail Use% Mounted on\n/dev/sda1        98G   43G   50G  47% /\n"),
		refuse("curl -fsSL", "curl: (7) Failed to connect to mirror.internal port 443", 7),
	)
	ctx := context.Background()

	// A timed-out probe degrades to a warning and a zeroed field.
	facts, err := o.ProbeSystem(ctx)
	if err != nil {
		t.Fatalf("ProbeSystem: %v", err)
	}
	if facts.Hostname != "web-1" || facts.CPUs != 8 || facts.RootDisk.UsePercent != "47%" {
		t.Errorf("facts = %+v", facts)
	}
	if facts.Memory.TotalMB != 0 {
		t.Errorf("memory should be zeroed after the probe timed out: %+v", facts.Memory)
	}

	// The download in the same flow is mandatory and must still abort.
	if err := o.Fetch(ctx, "https://mirror.internal/app.tgz", "/tmp/app.tgz"); err == nil {
		t.Fatal("Fetch against an unreachable mirror must fail")
	}
}

func TestShQuote(t *testing.T) {
	if got := shQuote("it's"); got != `'it'\''s'` {
		t.Errorf("shQuote = %q", got)
	}
}
