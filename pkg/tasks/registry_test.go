package tasks

import (
	"strings"
	"testing"
)

func TestBuiltinCatalog(t *testing.T) {
	r := Builtin()

	// Every category has at least one task.
	for _, cat := range Categories() {
		if len(r.ByCategory(cat)) == 0 {
			t.Errorf("category %s has no tasks", cat)
		}
	}

	// Spot-check specs the rest of the system depends on.
	for _, tt := range []struct {
		name       string
		privileged bool
		parser     string
	}{
		{"pkg.install", true, ""},
		{"svc.active", false, "svc.active"},
		{"docker.ps", true, "docker.ps"},
		{"kube.get", true, "kube.get"},
		{"fs.exists", false, "bool.exit"},
		{"user.add", true, ""},
		{"vcs.last_modified", false, "date.unix"},
		{"probe.cpus", false, "int"},
		{"adhoc.run", false, ""},
	} {
		spec, err := r.Get(tt.name)
		if err != nil {
			t.Errorf("Get(%s): %v", tt.name, err)
			continue
		}
		if spec.RequiresPrivilege != tt.privileged {
			t.Errorf("%s: RequiresPrivilege = %v, want %v", tt.name, spec.RequiresPrivilege, tt.privileged)
		}
		if spec.Parser != tt.parser {
			t.Errorf("%s: Parser = %q, want %q", tt.name, spec.Parser, tt.parser)
		}
	}
}

func TestBuiltinPackageRetryPolicy(t *testing.T) {
	spec, err := Builtin().Get("pkg.install")
	if err != nil {
		t.Fatal(err)
	}
	if !spec.Retryable || spec.MaxRetries != 3 {
		t.Errorf("pkg.install retry policy = %v/%d, want retryable with 3 attempts", spec.Retryable, spec.MaxRetries)
	}
	found := false
	for _, sig := range spec.TransientSignatures {
		if strings.Contains(sig, "Could not get lock") {
			found = true
		}
	}
	if !found {
		t.Error("pkg.install should treat apt lock contention as transient")
	}
}

func TestBuiltinStatusProbesTolerate(t *testing.T) {
	spec, _ := Builtin().Get("svc.active")
	if !spec.ExitOK(3) {
		t.Error("svc.active must tolerate exit 3 (inactive)")
	}
	spec, _ = Builtin().Get("fs.exists")
	if !spec.ExitOK(1) {
		t.Error("fs.exists must tolerate exit 1 (absent)")
	}
}

func TestBuiltinSensitiveSpecs(t *testing.T) {
	spec, _ := Builtin().Get("user.add")
	if !spec.Sensitive {
		t.Error("user.add must be sensitive")
	}
	var hasSensitiveParam bool
	for _, p := range spec.Params {
		if p.Name == "password" && p.Sensitive {
			hasSensitiveParam = true
		}
	}
	if !hasSensitiveParam {
		t.Error("user.add password parameter must be sensitive")
	}
}

func TestBuiltinTemplatesResolve(t *testing.T) {
	// Every builtin template must resolve once its required parameters
	// are supplied; a leftover placeholder is a catalog bug.
	fill := map[ParamKind]string{
		KindString:  "value",
		KindName:    "name",
		KindInt:     "1",
		KindPort:    "22",
		KindPath:    "/tmp/x",
		KindRelPath: "rel/x",
		KindURL:     "https://example.com",
		KindRaw:     "raw",
	}
	for _, spec := range Builtin().List() {
		params := Params{}
		for _, p := range spec.Params {
			params[p.Name] = fill[p.Kind]
		}
		if _, err := spec.Resolve(params); err != nil {
			t.Errorf("%s: %v", spec.Name, err)
		}
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	r.Register(&Spec{Name: "a.b", Template: "true"})

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	r.Register(&Spec{Name: "a.b", Template: "false"})
}

func TestRegistryRejectsUndeclaredPlaceholder(t *testing.T) {
	r := NewRegistry()
	defer func() {
		if recover() == nil {
			t.Error("expected panic on undeclared placeholder")
		}
	}()
	r.Register(&Spec{Name: "bad.spec", Template: "echo {missing}"})
}
