package inventory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hostwright/hostwright/pkg/transports/local"
)

const sampleInventory = `
targets:
  - name: web-1
    host: 10.0.0.10
    user: deploy
    private_key: /home/op/.ssh/id_ed25519
    sudo_password_env: WEB1_SUDO
  - name: db-1
    transport: ssh
    host: db.internal
    port: 2222
    user: admin
    auth: password
    password_env: DB1_PASSWORD
  - name: self
    transport: local
    command_timeout: 30s
`

func TestParse(t *testing.T) {
	inv, err := Parse([]byte(sampleInventory))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(inv.Targets) != 3 {
		t.Fatalf("targets = %d", len(inv.Targets))
	}

	web, err := inv.Find("web-1")
	if err != nil {
		t.Fatal(err)
	}
	if web.Transport != "ssh" {
		t.Errorf("transport defaults to ssh, got %q", web.Transport)
	}

	db, _ := inv.Find("db-1")
	if db.Port != 2222 || db.Auth != "password" || db.PasswordEnv != "DB1_PASSWORD" {
		t.Errorf("db-1 = %+v", db)
	}

	self, _ := inv.Find("self")
	if self.CommandTimeout != 30*time.Second {
		t.Errorf("command_timeout = %v", self.CommandTimeout)
	}

	if _, err := inv.Find("nope"); err == nil {
		t.Error("Find should fail for unknown target")
	}
}

func TestParseRejects(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "empty",
			yaml: "targets: []",
			want: "invalid inventory",
		},
		{
			name: "duplicate names",
			yaml: `
targets:
  - name: a
    host: 10.0.0.1
    user: x
  - name: a
    host: 10.0.0.2
    user: x
`,
			want: "duplicate target",
		},
		{
			name: "ssh without host",
			yaml: `
targets:
  - name: a
    user: x
`,
			want: "needs host and user",
		},
		{
			name: "ssh without user",
			yaml: `
targets:
  - name: a
    host: 10.0.0.1
`,
			want: "needs host and user",
		},
		{
			name: "unknown transport",
			yaml: `
targets:
  - name: a
    transport: telnet
`,
			want: "invalid inventory",
		},
		{
			name: "port out of range",
			yaml: `
targets:
  - name: a
    host: 10.0.0.1
    port: 70000
    user: x
`,
			want: "invalid inventory",
		},
		{
			name: "not yaml",
			yaml: "targets: {{",
			want: "parsing inventory",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatal("Parse accepted bad inventory")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestLocalBackendFromTarget(t *testing.T) {
	t.Setenv("TEST_SUDO_PASS", "hunter2")

	tgt := Target{
		Name:            "self",
		Transport:       "local",
		SudoPasswordEnv: "TEST_SUDO_PASS",
		CommandTimeout:  time.Minute,
	}
	b, err := tgt.Backend()
	if err != nil {
		t.Fatalf("Backend: %v", err)
	}
	lb, ok := b.(*local.Backend)
	if !ok {
		t.Fatalf("backend type = %T", b)
	}
	if lb.SudoPassword != "hunter2" {
		t.Error("sudo password not taken from environment")
	}
	if lb.CommandTimeout != time.Minute {
		t.Errorf("command timeout = %v", lb.CommandTimeout)
	}
	if FileTransfer(b) == nil {
		t.Error("local backend should expose a file channel")
	}
}

func TestBackendUnknownTransport(t *testing.T) {
	tgt := Target{Name: "x", Transport: "carrier-pigeon"}
	if _, err := tgt.Backend(); err == nil {
		t.Error("Backend should reject unknown transport")
	}
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inventory.yaml")
	write := func(body string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write(sampleInventory)

	loads := make(chan *Inventory, 4)
	w, err := NewWatcher(path, zerolog.Nop(), func(inv *Inventory) { loads <- inv })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	first := <-loads
	if len(first.Targets) != 3 {
		t.Fatalf("initial load targets = %d", len(first.Targets))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	write("targets:\n  - name: only\n    transport: local\n")
	select {
	case inv := <-loads:
		if len(inv.Targets) != 1 || inv.Targets[0].Name != "only" {
			t.Errorf("reloaded inventory = %+v", inv.Targets)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reload never arrived")
	}

	// A broken edit keeps the previous inventory.
	write("targets: []")
	time.Sleep(2 * reloadDelay)
	if got := w.Current(); len(got.Targets) != 1 {
		t.Errorf("bad edit replaced inventory: %+v", got.Targets)
	}
}
