package tasks

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{([a-z][a-z0-9_]*)\}`)

// Resolve substitutes the template's named placeholders with parameter
// values. CheckParams must pass first; Resolve still refuses to emit a
// command with an unresolved placeholder so a registry bug cannot leak
// literal braces into a shell.
func (s *Spec) Resolve(params Params) (string, error) {
	var missing []string

	cmd := placeholderPattern.ReplaceAllStringFunc(s.Template, func(m string) string {
		name := m[1 : len(m)-1]
		if val, ok := params[name]; ok && val != "" {
			return val
		}
		if p := s.param(name); p != nil && !p.Required {
			return p.Default
		}
		missing = append(missing, name)
		return m
	})

	if len(missing) > 0 {
		return "", &ValidationError{
			Spec: s.Name,
			Msg:  fmt.Sprintf("unresolved placeholders: %s", strings.Join(missing, ", ")),
		}
	}

	return cmd, nil
}

// Placeholders returns the placeholder names the template references,
// in order of first appearance.
func (s *Spec) Placeholders() []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(s.Template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}
