package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hostwright/hostwright/pkg/transports"
)

func TestRun(t *testing.T) {
	b := New()
	ctx := context.Background()

	t.Run("captures stdout", func(t *testing.T) {
		res, err := b.Run(ctx, transports.ExecRequest{Command: "echo hello"})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if res.Stdout != "hello" {
			t.Errorf("stdout = %q, want hello", res.Stdout)
		}
		if res.ExitCode != 0 {
			t.Errorf("exit code = %d, want 0", res.ExitCode)
		}
	})

	t.Run("captures stderr separately", func(t *testing.T) {
		res, err := b.Run(ctx, transports.ExecRequest{Command: "echo oops >&2"})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if res.Stdout != "" || res.Stderr != "oops" {
			t.Errorf("stdout=%q stderr=%q, want stderr oops only", res.Stdout, res.Stderr)
		}
	})

	t.Run("nonzero exit is a command failure with the code", func(t *testing.T) {
		res, err := b.Run(ctx, transports.ExecRequest{Command: "exit 3"})
		if !transports.IsKind(err, transports.KindCommand) {
			t.Fatalf("err = %v, want command kind", err)
		}
		if res.ExitCode != 3 {
			t.Errorf("exit code = %d, want 3", res.ExitCode)
		}
	})

	t.Run("stdin is closed for non-interactive commands", func(t *testing.T) {
		// cat would hang forever on an open terminal; EOF ends it at once.
		done := make(chan struct{})
		go func() {
			defer close(done)
			res, err := b.Run(ctx, transports.ExecRequest{Command: "cat"})
			if err != nil {
				t.Errorf("Run: %v", err)
				return
			}
			if res.Stdout != "" {
				t.Errorf("stdout = %q, want empty", res.Stdout)
			}
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("cat did not terminate; stdin was not closed")
		}
	})

	t.Run("timeout is classified and temporary", func(t *testing.T) {
		_, err := b.Run(ctx, transports.ExecRequest{
			Command: "sleep 10",
			Timeout: 100 * time.Millisecond,
		})
		if !transports.IsKind(err, transports.KindTimeout) {
			t.Fatalf("err = %v, want timeout kind", err)
		}
		var te *transports.Error
		if !asTransportError(err, &te) || !te.Temporary {
			t.Error("timeout should be marked temporary")
		}
	})

	t.Run("workdir is honored", func(t *testing.T) {
		dir := t.TempDir()
		wb := New()
		wb.WorkDir = dir
		res, err := wb.Run(ctx, transports.ExecRequest{Command: "pwd"})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		// Resolve symlinks: on some systems TMPDIR is a symlink.
		want, _ := filepath.EvalSymlinks(dir)
		got, _ := filepath.EvalSymlinks(res.Stdout)
		if got != want {
			t.Errorf("pwd = %q, want %q", got, want)
		}
	})
}

func TestUploadDownload(t *testing.T) {
	b := New()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sub", "file.txt")
	content := []byte("provisioned\n")

	if err := b.Upload(ctx, content, path, 0o600); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %o, want 600", info.Mode().Perm())
	}

	got, err := b.Download(ctx, path)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content = %q, want %q", got, content)
	}
}

func TestDownloadMissingFile(t *testing.T) {
	b := New()
	_, err := b.Download(context.Background(), filepath.Join(t.TempDir(), "absent"))
	if !transports.IsKind(err, transports.KindCommand) {
		t.Errorf("err = %v, want command kind", err)
	}
}

func asTransportError(err error, target **transports.Error) bool {
	te, ok := err.(*transports.Error)
	if ok {
		*target = te
	}
	return ok
}
