package ops

import (
	"context"
	"fmt"

	"github.com/hostwright/hostwright/pkg/executor"
	"github.com/hostwright/hostwright/pkg/parsers"
	"github.com/hostwright/hostwright/pkg/tasks"
)

// CreatedUser describes an account after provisioning.
type CreatedUser struct {
	Name string
	UID  int
	Home string
}

// AddUser creates an account with a home directory and password, then
// reads the resulting entry back. Adding an existing user fails on the
// target; probe with UserID first when idempotence is wanted.
func (o *Ops) AddUser(ctx context.Context, username, password string, sudoer bool) (CreatedUser, error) {
	err := o.run(ctx, "user.add", tasks.Params{"username": username, "password": password})
	if err != nil {
		return CreatedUser{}, err
	}
	if sudoer {
		if err := o.run(ctx, "user.sudoer", tasks.Params{"username": username}); err != nil {
			return CreatedUser{}, err
		}
	}
	acct, err := o.UserEntry(ctx, username)
	if err != nil {
		return CreatedUser{}, err
	}
	return CreatedUser{Name: acct.Name, UID: acct.UID, Home: acct.Home}, nil
}

// MakeSudoer adds an existing account to the sudo group.
func (o *Ops) MakeSudoer(ctx context.Context, username string) error {
	return o.run(ctx, "user.sudoer", tasks.Params{"username": username})
}

// UserID returns an account's uid, or found=false when the account does
// not exist.
func (o *Ops) UserID(ctx context.Context, username string) (uid int, found bool, err error) {
	inv, err := o.invoke(ctx, "user.id", tasks.Params{"username": username})
	if err != nil {
		// `id` exits 1 for an unknown user; that is an answer.
		if executor.IsKind(err, executor.FailCommand) && inv != nil && inv.ExitCode() == 1 {
			return 0, false, nil
		}
		return 0, false, err
	}
	n, ok := inv.Parsed.(int)
	if !ok {
		return 0, false, fmt.Errorf("user.id: unexpected result %T", inv.Parsed)
	}
	return n, true, nil
}

// CurrentUID returns the uid the session runs as on the target.
func (o *Ops) CurrentUID(ctx context.Context) (int, error) {
	inv, err := o.invoke(ctx, "user.self_id", nil)
	if err != nil {
		return 0, err
	}
	n, ok := inv.Parsed.(int)
	if !ok {
		return 0, fmt.Errorf("user.self_id: unexpected result %T", inv.Parsed)
	}
	return n, nil
}

// UserEntry returns one account's passwd entry.
func (o *Ops) UserEntry(ctx context.Context, username string) (parsers.Account, error) {
	inv, err := o.invoke(ctx, "user.entry", tasks.Params{"username": username})
	if err != nil {
		return parsers.Account{}, err
	}
	acct, ok := inv.Parsed.(parsers.Account)
	if !ok {
		return parsers.Account{}, fmt.Errorf("user.entry: unexpected result %T", inv.Parsed)
	}
	return acct, nil
}

// ListUsers returns all accounts the target will enumerate. The probe
// escalates softly: a target that refuses elevation yields an empty
// list rather than an error.
func (o *Ops) ListUsers(ctx context.Context) ([]parsers.Account, error) {
	inv, err := o.invoke(ctx, "user.list", nil)
	if err != nil {
		return nil, err
	}
	if inv.Parsed == nil {
		return nil, nil
	}
	out, ok := inv.Parsed.([]parsers.Account)
	if !ok {
		return nil, fmt.Errorf("user.list: unexpected result %T", inv.Parsed)
	}
	return out, nil
}

// AuthorizeKey appends a public key to an account's authorized_keys,
// creating the .ssh directory with the permissions sshd insists on.
func (o *Ops) AuthorizeKey(ctx context.Context, username, publicKey string) error {
	return o.run(ctx, "user.authorize_key", tasks.Params{
		"username":   username,
		"public_key": shQuote(publicKey),
	})
}
