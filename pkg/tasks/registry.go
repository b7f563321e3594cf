package tasks

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry holds the closed set of task specifications. It is populated
// at process start and read-only afterwards.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]*Spec
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]*Spec)}
}

// Register adds a specification. Duplicate names and malformed templates
// are programming errors and panic, so they surface at startup rather
// than mid-provisioning.
func (r *Registry) Register(spec *Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if spec.Name == "" {
		panic("tasks: spec with empty name")
	}
	if _, exists := r.specs[spec.Name]; exists {
		panic(fmt.Sprintf("tasks: duplicate spec %q", spec.Name))
	}

	// Every placeholder must be declared, and vice versa, so missing
	// parameters are caught by validation instead of leaking braces.
	declared := make(map[string]bool, len(spec.Params))
	for _, p := range spec.Params {
		declared[p.Name] = true
	}
	for _, name := range spec.Placeholders() {
		if !declared[name] {
			panic(fmt.Sprintf("tasks: spec %q uses undeclared placeholder {%s}", spec.Name, name))
		}
	}

	r.specs[spec.Name] = spec
}

// Get returns the specification by name.
func (r *Registry) Get(name string) (*Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, ok := r.specs[name]
	if !ok {
		return nil, fmt.Errorf("unknown task %q", name)
	}
	return spec, nil
}

// List returns all specifications, sorted by name.
func (r *Registry) List() []*Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Spec, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ByCategory returns the specifications of one category, sorted by name.
func (r *Registry) ByCategory(cat Category) []*Spec {
	var out []*Spec
	for _, s := range r.List() {
		if s.Category == cat {
			out = append(out, s)
		}
	}
	return out
}

var (
	builtinOnce sync.Once
	builtin     *Registry
)

// Builtin returns the process-wide registry of built-in specifications.
func Builtin() *Registry {
	builtinOnce.Do(func() {
		builtin = NewRegistry()
		registerBuiltins(builtin)
	})
	return builtin
}

// aptLockSignatures mark transient package-manager lock contention.
var aptLockSignatures = []string{
	"Could not get lock",
	"dpkg frontend is locked",
	"is another process using it",
	"Resource temporarily unavailable",
	"dpkg status database is locked",
}

func registerBuiltins(r *Registry) {
	// ----- package management -------------------------------------------
	// Noninteractive is forced on; apt prompting over a session with no
	// terminal would otherwise stall the install.
	pkgParam := Param{Name: "package", Kind: KindName, Required: true}
	for _, s := range []*Spec{
		{
			Name:     "pkg.refresh",
			Template: "DEBIAN_FRONTEND=noninteractive apt-get update -q",
		},
		{
			Name:     "pkg.configure",
			Template: "DEBIAN_FRONTEND=noninteractive dpkg --configure -a",
		},
		{
			Name:     "pkg.install",
			Template: "DEBIAN_FRONTEND=noninteractive apt-get install -y -q {package}",
			Params:   []Param{pkgParam},
		},
		{
			Name:     "pkg.upgrade",
			Template: "DEBIAN_FRONTEND=noninteractive apt-get upgrade -y -q",
		},
		{
			Name:     "pkg.purge",
			Template: "DEBIAN_FRONTEND=noninteractive apt-get purge -y -q {package}",
			Params:   []Param{pkgParam},
		},
	} {
		s.Category = CategoryPackages
		s.RequiresPrivilege = true
		s.Retryable = true
		s.MaxRetries = 3
		s.TransientSignatures = aptLockSignatures
		s.Timeout = 10 * time.Minute
		r.Register(s)
	}

	// ----- service control ----------------------------------------------
	svcParam := Param{Name: "service", Kind: KindName, Required: true}
	for _, action := range []string{"start", "stop", "restart", "enable", "disable"} {
		r.Register(&Spec{
			Name:              "svc." + action,
			Category:          CategoryServices,
			Template:          "systemctl " + action + " {service}",
			Params:            []Param{svcParam},
			RequiresPrivilege: true,
		})
	}
	r.Register(&Spec{
		Name:     "svc.active",
		Category: CategoryServices,
		Template: "systemctl is-active {service}",
		Params:   []Param{svcParam},
		Parser:   "svc.active",
		// is-active exits 3 for inactive and 4 for unknown units; a
		// stopped or absent service is an answer, not an error.
		OKExitCodes: []int{1, 2, 3, 4},
	})
	r.Register(&Spec{
		Name:        "svc.enabled",
		Category:    CategoryServices,
		Template:    "systemctl is-enabled {service}",
		Params:      []Param{svcParam},
		Parser:      "svc.enabled",
		OKExitCodes: []int{1},
	})

	// ----- container runtime --------------------------------------------
	composeParam := Param{Name: "compose_file", Kind: KindPath, Required: true}
	containerParam := Param{Name: "container", Kind: KindName, Required: true}
	for _, s := range []*Spec{
		{
			Name:     "docker.compose_up",
			Template: `docker compose -f {compose_file} up -d --build`,
			Params:   []Param{composeParam},
		},
		{
			Name:     "docker.compose_up_env",
			Template: `docker compose --env-file {env_file} -f {compose_file} up -d --build`,
			Params:   []Param{composeParam, {Name: "env_file", Kind: KindPath, Required: true}},
		},
		{
			Name:     "docker.compose_down",
			Template: `docker compose -f {compose_file} down --remove-orphans`,
			Params:   []Param{composeParam},
		},
		{
			Name:     "docker.compose_down_volumes",
			Template: `docker compose -f {compose_file} down --volumes --remove-orphans`,
			Params:   []Param{composeParam},
		},
		{
			Name:     "docker.ps",
			Template: `docker ps -a --format '{{.Names}}|{{.State}}|{{.Image}}|{{.Status}}'`,
			Parser:   "docker.ps",
		},
		{
			Name:     "docker.inspect",
			Template: "docker inspect {container}",
			Params:   []Param{containerParam},
			Parser:   "docker.inspect",
		},
		{
			Name:     "docker.inspect_all",
			Template: "docker ps -aq | xargs -r docker inspect",
			Parser:   "docker.inspect",
		},
		{
			Name:     "docker.logs",
			Template: "docker logs --tail {tail} {container}",
			Params:   []Param{containerParam, {Name: "tail", Kind: KindInt, Required: false, Default: "200"}},
		},
	} {
		s.Category = CategoryContainers
		s.RequiresPrivilege = true
		if s.Timeout == 0 {
			s.Timeout = 10 * time.Minute
		}
		r.Register(s)
	}

	// ----- cluster orchestration ----------------------------------------
	kubeconfigParam := Param{Name: "kubeconfig", Kind: KindPath, Required: true}
	namespaceParam := Param{Name: "namespace", Kind: KindName, Required: false, Default: "default"}
	for _, s := range []*Spec{
		{
			Name:     "kube.apply",
			Template: "kubectl --kubeconfig {kubeconfig} -n {namespace} apply -f {manifest}",
			Params:   []Param{kubeconfigParam, namespaceParam, {Name: "manifest", Kind: KindPath, Required: true}},
		},
		{
			Name:     "kube.delete",
			Template: "kubectl --kubeconfig {kubeconfig} -n {namespace} delete -f {manifest} --ignore-not-found",
			Params:   []Param{kubeconfigParam, namespaceParam, {Name: "manifest", Kind: KindPath, Required: true}},
		},
		{
			Name:     "kube.get",
			Template: "kubectl --kubeconfig {kubeconfig} -n {namespace} get {kind} {name} -o json",
			Params: []Param{
				kubeconfigParam, namespaceParam,
				{Name: "kind", Kind: KindName, Required: true},
				{Name: "name", Kind: KindName, Required: true},
			},
			Parser: "kube.get",
		},
		{
			Name:     "kube.rollout",
			Template: "kubectl --kubeconfig {kubeconfig} -n {namespace} rollout status deployment/{name} --timeout=120s",
			Params:   []Param{kubeconfigParam, namespaceParam, {Name: "name", Kind: KindName, Required: true}},
		},
		{
			Name:     "helm.upgrade",
			Template: "helm --kubeconfig {kubeconfig} -n {namespace} upgrade --install --create-namespace {release} {chart}",
			Params: []Param{
				kubeconfigParam, namespaceParam,
				{Name: "release", Kind: KindName, Required: true},
				{Name: "chart", Kind: KindRelPath, Required: true},
			},
		},
		{
			Name:     "helm.status",
			Template: "helm --kubeconfig {kubeconfig} -n {namespace} status {release} -o json",
			Params:   []Param{kubeconfigParam, namespaceParam, {Name: "release", Kind: KindName, Required: true}},
			Parser:   "helm.status",
		},
	} {
		s.Category = CategoryCluster
		s.RequiresPrivilege = true
		s.Timeout = 5 * time.Minute
		r.Register(s)
	}

	// ----- filesystem / configuration -----------------------------------
	pathParam := Param{Name: "path", Kind: KindPath, Required: true}
	fileParam := Param{Name: "file", Kind: KindPath, Required: true}
	for _, s := range []*Spec{
		{Name: "fs.mkdir", Template: "mkdir -p {path}", Params: []Param{pathParam}},
		{Name: "fs.rmdir", Template: "rm -rf {path}", Params: []Param{pathParam}, RequiresPrivilege: true},
		{
			Name:     "fs.copy",
			Template: "cp -r {src} {dst}",
			Params:   []Param{{Name: "src", Kind: KindPath, Required: true}, {Name: "dst", Kind: KindPath, Required: true}},
		},
		{
			Name:     "fs.move",
			Template: "mv {src} {dst}",
			Params:   []Param{{Name: "src", Kind: KindPath, Required: true}, {Name: "dst", Kind: KindPath, Required: true}},
		},
		{
			Name:     "fs.sed",
			Template: "sed -i 's{sep}{old}{sep}{new}{sep}g' {file}",
			Params: []Param{
				fileParam,
				{Name: "old", Kind: KindRaw, Required: true},
				{Name: "new", Kind: KindRaw, Required: true},
				{Name: "sep", Kind: KindString, Required: false, Default: "!"},
			},
		},
		{
			Name:     "fs.symlink",
			Template: "ln -s {target} {link}",
			Params:   []Param{{Name: "target", Kind: KindPath, Required: true}, {Name: "link", Kind: KindPath, Required: true}},
		},
		{Name: "fs.unlink", Template: "rm {link}", Params: []Param{{Name: "link", Kind: KindPath, Required: true}}},
		{Name: "fs.touch", Template: "touch {file}", Params: []Param{fileParam}},
		{
			Name:     "fs.append",
			Template: "printf '%s\\n' {line} >> {file}",
			Params:   []Param{fileParam, {Name: "line", Kind: KindRaw, Required: true}},
		},
		{Name: "fs.truncate", Template: ": > {file}", Params: []Param{fileParam}},
		{
			Name:        "fs.exists",
			Template:    "test -d {path}",
			Params:      []Param{pathParam},
			Parser:      "bool.exit",
			OKExitCodes: []int{1},
		},
		{
			Name:        "fs.exists_file",
			Template:    "test -f {path}",
			Params:      []Param{pathParam},
			Parser:      "bool.exit",
			OKExitCodes: []int{1},
		},
		{Name: "fs.ls", Template: "ls -A1 {path}", Params: []Param{pathParam}, Parser: "lines"},
		{
			Name:     "fs.tree",
			Template: `find {path} -printf '%p|%y|%s|%T@\n'`,
			Params:   []Param{pathParam},
			Parser:   "fs.tree",
		},
		{Name: "fs.stat_mode", Template: "stat -c '%a' {path}", Params: []Param{pathParam}, Parser: "stat.mode"},
		{
			Name:     "fs.chmod",
			Template: "chmod {mode} {path}",
			Params:   []Param{pathParam, {Name: "mode", Kind: KindName, Required: true}},
		},
		{
			// Staged write: content lands unprivileged in a scratch
			// path, then moves into a root-owned destination.
			Name:     "fs.install",
			Template: "mv {src} {dst} && chmod {mode} {dst} && chown {owner} {dst}",
			Params: []Param{
				{Name: "src", Kind: KindPath, Required: true},
				{Name: "dst", Kind: KindPath, Required: true},
				{Name: "mode", Kind: KindName, Required: false, Default: "644"},
				{Name: "owner", Kind: KindName, Required: false, Default: "root:root"},
			},
			RequiresPrivilege: true,
		},
		{
			Name:              "fs.chown",
			Template:          "chown -R {owner} {path}",
			Params:            []Param{pathParam, {Name: "owner", Kind: KindName, Required: true}},
			RequiresPrivilege: true,
		},
	} {
		s.Category = CategoryFilesystem
		r.Register(s)
	}

	// ----- user / access provisioning -----------------------------------
	userParam := Param{Name: "username", Kind: KindName, Required: true}
	for _, s := range []*Spec{
		{
			Name:              "user.add",
			Template:          `useradd -p "$(openssl passwd {password})" -m -d /home/{username} -s /bin/bash {username}`,
			Params:            []Param{userParam, {Name: "password", Kind: KindString, Required: true, Sensitive: true}},
			RequiresPrivilege: true,
			Sensitive:         true,
		},
		{
			Name:              "user.add_nohome",
			Template:          `useradd -p "$(openssl passwd {password})" -d /home/{username} {username}`,
			Params:            []Param{userParam, {Name: "password", Kind: KindString, Required: true, Sensitive: true}},
			RequiresPrivilege: true,
			Sensitive:         true,
		},
		{
			Name:              "user.sudoer",
			Template:          "usermod -aG sudo {username}",
			Params:            []Param{userParam},
			RequiresPrivilege: true,
		},
		{Name: "user.id", Template: "id -u {username}", Params: []Param{userParam}, Parser: "user.id"},
		{Name: "user.self_id", Template: "id -u", Parser: "user.id"},
		{Name: "user.entry", Template: "getent passwd {username}", Params: []Param{userParam}, Parser: "user.entry"},
		{
			Name:              "user.list",
			Template:          "getent passwd",
			Parser:            "user.list",
			RequiresPrivilege: true,
			// Listing accounts is an optional privileged query; targets
			// that refuse elevation still yield a usable empty answer.
			Escalation: EscalationSoft,
		},
		{
			Name: "user.authorize_key",
			Template: "mkdir -p /home/{username}/.ssh" +
				" && printf '%s\\n' {public_key} >> /home/{username}/.ssh/authorized_keys" +
				" && chown -R {username}:{username} /home/{username}/.ssh" +
				" && chmod 700 /home/{username}/.ssh" +
				" && chmod 600 /home/{username}/.ssh/authorized_keys",
			Params:            []Param{userParam, {Name: "public_key", Kind: KindRaw, Required: true}},
			RequiresPrivilege: true,
		},
	} {
		s.Category = CategoryUsers
		r.Register(s)
	}

	// ----- TLS material ---------------------------------------------------
	dirParam := Param{Name: "dir", Kind: KindPath, Required: true}
	for _, s := range []*Spec{
		{
			Name:     "tls.genkey",
			Template: "openssl genrsa -out {dir}/key.pem 2048",
			Params:   []Param{dirParam},
		},
		{
			Name:     "tls.csr",
			Template: "openssl req -new -key {dir}/key.pem -out {dir}/server.csr -subj '{subject}'",
			Params:   []Param{dirParam, {Name: "subject", Kind: KindString, Required: true}},
		},
		{
			Name: "tls.sign",
			Template: "openssl x509 -req -in {dir}/server.csr -signkey {dir}/key.pem" +
				" -out {dir}/cert.pem -days {days}",
			Params: []Param{dirParam, {Name: "days", Kind: KindInt, Required: false, Default: "365"}},
		},
		{
			Name:     "tls.harden",
			Template: "chmod 600 {dir}/key.pem {dir}/cert.pem",
			Params:   []Param{dirParam},
		},
	} {
		s.Category = CategoryTLS
		r.Register(s)
	}

	// ----- version control -------------------------------------------------
	repoParam := Param{Name: "repo", Kind: KindURL, Required: true}
	keyPathParam := Param{Name: "key_path", Kind: KindPath, Required: true}
	gitSSH := `GIT_SSH_COMMAND="ssh -i {key_path} -o IdentitiesOnly=yes -o StrictHostKeyChecking=accept-new" `
	for _, s := range []*Spec{
		{Name: "vcs.clone", Template: "git clone {repo} {dir}", Params: []Param{repoParam, dirParam}},
		{
			Name:     "vcs.clone_deploykey",
			Template: gitSSH + "git clone {repo} {dir}",
			Params:   []Param{repoParam, dirParam, keyPathParam},
		},
		{Name: "vcs.pull", Template: "git -C {dir} pull --ff-only", Params: []Param{dirParam}},
		{
			Name:     "vcs.pull_deploykey",
			Template: gitSSH + "git -C {dir} pull --ff-only",
			Params:   []Param{dirParam, keyPathParam},
		},
		{
			Name:     "vcs.last_modified",
			Template: "git -C {dir} log -1 --format=%ct",
			Params:   []Param{dirParam},
			Parser:   "date.unix",
		},
	} {
		s.Category = CategoryVCS
		s.Timeout = 5 * time.Minute
		r.Register(s)
	}

	// ----- network / diagnostics -------------------------------------------
	// Probes are best-effort: their failure downgrades to a warning.
	// Mandatory fetches abort like any other task.
	r.Register(&Spec{
		Name:                "net.fetch",
		Category:            CategoryNetwork,
		Template:            "curl -fsSL --retry 0 -o {dest} {url}",
		Params:              []Param{{Name: "dest", Kind: KindPath, Required: true}, {Name: "url", Kind: KindURL, Required: true}},
		Retryable:           true,
		MaxRetries:          2,
		TransientSignatures: []string{"Could not resolve host", "Connection timed out", "Connection refused"},
		Timeout:             5 * time.Minute,
	})
	for _, s := range []*Spec{
		{
			Name:        "net.health",
			Template:    "curl -fsS -o /dev/null {url}",
			Params:      []Param{{Name: "url", Kind: KindURL, Required: true}},
			Parser:      "bool.exit",
			OKExitCodes: nil,
		},
		{Name: "probe.uname", Template: "uname -s -r -m", Parser: "probe.uname"},
		{Name: "probe.hostname", Template: "hostname"},
		{Name: "probe.cpus", Template: "nproc", Parser: "int"},
		{Name: "probe.mem", Template: "free -m", Parser: "probe.mem"},
		{Name: "probe.disk", Template: "df -h /", Parser: "probe.disk"},
		{
			Name:     "probe.dns",
			Template: "getent hosts {host}",
			Params:   []Param{{Name: "host", Kind: KindName, Required: true}},
			Parser:   "probe.dns",
		},
	} {
		s.Category = CategoryNetwork
		s.BestEffort = true
		s.Timeout = 30 * time.Second
		r.Register(s)
	}

	// ----- ad-hoc passthrough ------------------------------------------------
	// Privilege and terminal flags come from the caller; there is no
	// retry policy for free-form commands.
	r.Register(&Spec{
		Name:     "adhoc.run",
		Category: CategoryAdHoc,
		Template: "{command}",
		Params:   []Param{{Name: "command", Kind: KindRaw, Required: true}},
	})
}
