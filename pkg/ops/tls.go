package ops

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"strconv"

	"golang.org/x/crypto/ssh"

	"github.com/hostwright/hostwright/pkg/tasks"
)

// Certificate names the material a self-signed issuance produced.
type Certificate struct {
	CertPath string
	KeyPath  string
}

// GenerateSelfSigned issues a self-signed certificate on the target:
// key, CSR, signature, then permission hardening. It verifies the key
// ends up mode 600 before reporting success, since a world-readable
// private key is worse than no certificate.
func (o *Ops) GenerateSelfSigned(ctx context.Context, dir, subject string, days int) (Certificate, error) {
	if err := o.Mkdir(ctx, dir); err != nil {
		return Certificate{}, err
	}
	if err := o.run(ctx, "tls.genkey", tasks.Params{"dir": dir}); err != nil {
		return Certificate{}, err
	}
	if err := o.run(ctx, "tls.csr", tasks.Params{"dir": dir, "subject": subject}); err != nil {
		return Certificate{}, err
	}
	p := tasks.Params{"dir": dir}
	if days > 0 {
		p["days"] = strconv.Itoa(days)
	}
	if err := o.run(ctx, "tls.sign", p); err != nil {
		return Certificate{}, err
	}
	if err := o.run(ctx, "tls.harden", tasks.Params{"dir": dir}); err != nil {
		return Certificate{}, err
	}

	keyPath := dir + "/key.pem"
	mode, err := o.StatMode(ctx, keyPath)
	if err != nil {
		return Certificate{}, err
	}
	if mode != "600" {
		return Certificate{}, fmt.Errorf("tls: %s has mode %s after hardening, want 600", keyPath, mode)
	}
	return Certificate{CertPath: dir + "/cert.pem", KeyPath: keyPath}, nil
}

// SSHKeypair is a locally generated ed25519 keypair: the private key in
// OpenSSH PEM form and the public key in authorized_keys form.
type SSHKeypair struct {
	PrivatePEM []byte
	PublicKey  string
}

// GenerateSSHKeypair creates an ed25519 keypair in process. Nothing
// touches the target; pair it with WriteFile and AuthorizeKey to
// install deploy keys.
func GenerateSSHKeypair(comment string) (SSHKeypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return SSHKeypair{}, fmt.Errorf("generating ed25519 key: %w", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, comment)
	if err != nil {
		return SSHKeypair{}, fmt.Errorf("encoding private key: %w", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return SSHKeypair{}, fmt.Errorf("encoding public key: %w", err)
	}
	authorized := string(ssh.MarshalAuthorizedKey(sshPub))
	if comment != "" {
		authorized = authorized[:len(authorized)-1] + " " + comment + "\n"
	}
	return SSHKeypair{
		PrivatePEM: pem.EncodeToMemory(block),
		PublicKey:  authorized,
	}, nil
}
