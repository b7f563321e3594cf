// Package inventory loads the YAML file naming the targets hostwright
// provisions and turns each entry into a configured transport.
package inventory

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hostwright/hostwright/pkg/transports"
	"github.com/hostwright/hostwright/pkg/transports/local"
	sshtransport "github.com/hostwright/hostwright/pkg/transports/ssh"
)

var validate = validator.New()

// Target is one host in the inventory. Local targets need no
// connection settings; ssh targets need at least host and user.
type Target struct {
	Name      string `yaml:"name" validate:"required"`
	Transport string `yaml:"transport" validate:"omitempty,oneof=ssh local"`

	Host string `yaml:"host" validate:"omitempty,hostname|ip"`
	Port int    `yaml:"port" validate:"omitempty,gte=1,lte=65535"`
	User string `yaml:"user"`

	// Auth selects how the ssh transport authenticates: "key" (default)
	// or "password".
	Auth           string `yaml:"auth" validate:"omitempty,oneof=key password"`
	PrivateKeyPath string `yaml:"private_key"`
	// PasswordEnv and SudoPasswordEnv name environment variables; the
	// inventory file never carries secrets itself.
	PasswordEnv     string `yaml:"password_env"`
	SudoPasswordEnv string `yaml:"sudo_password_env"`

	KnownHostsPath string `yaml:"known_hosts"`
	// InsecureHostKey disables host key verification. Lab use only.
	InsecureHostKey bool `yaml:"insecure_host_key"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// Inventory is the parsed targets file.
type Inventory struct {
	Targets []Target `yaml:"targets" validate:"required,min=1,dive"`
}

// Load reads and validates an inventory file.
func Load(path string) (*Inventory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading inventory: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates inventory YAML.
func Parse(raw []byte) (*Inventory, error) {
	var inv Inventory
	if err := yaml.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("parsing inventory: %w", err)
	}
	if err := validate.Struct(&inv); err != nil {
		return nil, fmt.Errorf("invalid inventory: %w", err)
	}

	seen := make(map[string]bool, len(inv.Targets))
	for i := range inv.Targets {
		t := &inv.Targets[i]
		if seen[t.Name] {
			return nil, fmt.Errorf("invalid inventory: duplicate target %q", t.Name)
		}
		seen[t.Name] = true
		if t.Transport == "" {
			t.Transport = "ssh"
		}
		if t.Transport == "ssh" && (t.Host == "" || t.User == "") {
			return nil, fmt.Errorf("invalid inventory: target %q needs host and user", t.Name)
		}
	}
	return &inv, nil
}

// Find returns the named target.
func (inv *Inventory) Find(name string) (*Target, error) {
	for i := range inv.Targets {
		if inv.Targets[i].Name == name {
			return &inv.Targets[i], nil
		}
	}
	return nil, fmt.Errorf("unknown target %q", name)
}

// Backend builds the transport for this target. SSH backends are
// returned unconnected; the caller owns Connect and Close.
func (t *Target) Backend() (transports.Backend, error) {
	switch t.Transport {
	case "local":
		b := local.New()
		b.SudoPassword = os.Getenv(t.SudoPasswordEnv)
		if t.CommandTimeout > 0 {
			b.CommandTimeout = t.CommandTimeout
		}
		return b, nil

	case "ssh":
		cfg := sshtransport.DefaultConfig(t.Host, t.User)
		if t.Port > 0 {
			cfg.Port = t.Port
		}
		if t.Auth == "password" {
			cfg.AuthMethod = sshtransport.AuthMethodPassword
			cfg.Password = os.Getenv(t.PasswordEnv)
		} else if t.PrivateKeyPath != "" {
			cfg.PrivateKeyPath = t.PrivateKeyPath
		}
		cfg.SudoPassword = os.Getenv(t.SudoPasswordEnv)
		if t.KnownHostsPath != "" {
			cfg.KnownHostsPath = t.KnownHostsPath
		}
		if t.InsecureHostKey {
			cfg.StrictHostKeyChecking = false
		}
		if t.ConnectTimeout > 0 {
			cfg.ConnectionTimeout = t.ConnectTimeout
		}
		if t.CommandTimeout > 0 {
			cfg.CommandTimeout = t.CommandTimeout
		}
		return sshtransport.NewClient(cfg)

	default:
		return nil, fmt.Errorf("unknown transport %q", t.Transport)
	}
}

// FileTransfer returns the backend's file channel when it has one.
func FileTransfer(b transports.Backend) transports.FileTransfer {
	if ft, ok := b.(transports.FileTransfer); ok {
		return ft
	}
	return nil
}
