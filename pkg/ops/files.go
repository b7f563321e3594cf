package ops

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"

	"github.com/google/uuid"

	"github.com/hostwright/hostwright/pkg/parsers"
	"github.com/hostwright/hostwright/pkg/tasks"
)

// ErrNoFileTransfer is returned when an operation needs the transport's
// file channel and the session was built without one.
var ErrNoFileTransfer = errors.New("ops: transport has no file channel")

// Mkdir creates a directory and any missing parents.
func (o *Ops) Mkdir(ctx context.Context, dir string) error {
	return o.run(ctx, "fs.mkdir", tasks.Params{"path": dir})
}

// RemoveDir deletes a directory tree.
func (o *Ops) RemoveDir(ctx context.Context, dir string) error {
	return o.run(ctx, "fs.rmdir", tasks.Params{"path": dir})
}

// Copy copies a file or tree on the target.
func (o *Ops) Copy(ctx context.Context, src, dst string) error {
	return o.run(ctx, "fs.copy", tasks.Params{"src": src, "dst": dst})
}

// Move renames a file or tree on the target.
func (o *Ops) Move(ctx context.Context, src, dst string) error {
	return o.run(ctx, "fs.move", tasks.Params{"src": src, "dst": dst})
}

// ReplaceInFile substitutes old with new throughout a file. The
// delimiter defaults to "!"; pass a different one when the patterns
// contain it.
func (o *Ops) ReplaceInFile(ctx context.Context, file, old, new, sep string) error {
	p := tasks.Params{"file": file, "old": old, "new": new}
	if sep != "" {
		p["sep"] = sep
	}
	return o.run(ctx, "fs.sed", p)
}

// Symlink creates a symbolic link.
func (o *Ops) Symlink(ctx context.Context, target, link string) error {
	return o.run(ctx, "fs.symlink", tasks.Params{"target": target, "link": link})
}

// Unlink removes a file or symlink.
func (o *Ops) Unlink(ctx context.Context, link string) error {
	return o.run(ctx, "fs.unlink", tasks.Params{"link": link})
}

// Touch creates an empty file or refreshes its timestamp.
func (o *Ops) Touch(ctx context.Context, file string) error {
	return o.run(ctx, "fs.touch", tasks.Params{"file": file})
}

// AppendLine appends one line of free-form text to a file. The line is
// quoted here; the task template takes it verbatim.
func (o *Ops) AppendLine(ctx context.Context, file, line string) error {
	return o.run(ctx, "fs.append", tasks.Params{"file": file, "line": shQuote(line)})
}

// Truncate empties a file without removing it.
func (o *Ops) Truncate(ctx context.Context, file string) error {
	return o.run(ctx, "fs.truncate", tasks.Params{"file": file})
}

// DirExists reports whether a directory exists on the target.
func (o *Ops) DirExists(ctx context.Context, dir string) (bool, error) {
	return o.exists(ctx, "fs.exists", dir)
}

// FileExists reports whether a regular file exists on the target.
func (o *Ops) FileExists(ctx context.Context, file string) (bool, error) {
	return o.exists(ctx, "fs.exists_file", file)
}

func (o *Ops) exists(ctx context.Context, task, p string) (bool, error) {
	inv, err := o.invoke(ctx, task, tasks.Params{"path": p})
	if err != nil {
		return false, err
	}
	ok, isBool := inv.Parsed.(bool)
	if !isBool {
		return false, fmt.Errorf("%s: unexpected result %T", task, inv.Parsed)
	}
	return ok, nil
}

// List returns the names in a directory, hidden entries included.
func (o *Ops) List(ctx context.Context, dir string) ([]string, error) {
	inv, err := o.invoke(ctx, "fs.ls", tasks.Params{"path": dir})
	if err != nil {
		return nil, err
	}
	out, ok := inv.Parsed.([]string)
	if !ok {
		return nil, fmt.Errorf("fs.ls: unexpected result %T", inv.Parsed)
	}
	return out, nil
}

// Tree walks a directory recursively, returning every node with type,
// size, and mtime.
func (o *Ops) Tree(ctx context.Context, dir string) ([]parsers.TreeEntry, error) {
	inv, err := o.invoke(ctx, "fs.tree", tasks.Params{"path": dir})
	if err != nil {
		return nil, err
	}
	out, ok := inv.Parsed.([]parsers.TreeEntry)
	if !ok {
		return nil, fmt.Errorf("fs.tree: unexpected result %T", inv.Parsed)
	}
	return out, nil
}

// StatMode returns a path's permission bits as an octal string, e.g.
// "600".
func (o *Ops) StatMode(ctx context.Context, p string) (string, error) {
	inv, err := o.invoke(ctx, "fs.stat_mode", tasks.Params{"path": p})
	if err != nil {
		return "", err
	}
	mode, ok := inv.Parsed.(string)
	if !ok {
		return "", fmt.Errorf("fs.stat_mode: unexpected result %T", inv.Parsed)
	}
	return mode, nil
}

// Chmod sets permission bits; mode is octal text such as "600".
func (o *Ops) Chmod(ctx context.Context, p, mode string) error {
	return o.run(ctx, "fs.chmod", tasks.Params{"path": p, "mode": mode})
}

// Chown sets ownership recursively; owner is "user" or "user:group".
func (o *Ops) Chown(ctx context.Context, p, owner string) error {
	return o.run(ctx, "fs.chown", tasks.Params{"path": p, "owner": owner})
}

// WriteFile pushes content to a path on the target. Unprivileged writes
// go straight over the file channel. Privileged writes stage the
// content in /tmp and move it into place under elevation, since the
// file channel itself never escalates.
func (o *Ops) WriteFile(ctx context.Context, remotePath string, content []byte, mode uint32, privileged bool) error {
	if o.files == nil {
		return ErrNoFileTransfer
	}
	if !privileged {
		return o.files.Upload(ctx, content, remotePath, mode)
	}

	staging := path.Join("/tmp", "hostwright-"+uuid.NewString())
	if err := o.files.Upload(ctx, content, staging, 0o600); err != nil {
		return err
	}
	return o.run(ctx, "fs.install", tasks.Params{
		"src":  staging,
		"dst":  remotePath,
		"mode": strconv.FormatUint(uint64(mode), 8),
	})
}

// ReadFile fetches a file's content over the file channel.
func (o *Ops) ReadFile(ctx context.Context, remotePath string) ([]byte, error) {
	if o.files == nil {
		return nil, ErrNoFileTransfer
	}
	return o.files.Download(ctx, remotePath)
}
