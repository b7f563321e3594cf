package tasks

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Params carries the caller-supplied values for one invocation, keyed by
// placeholder name.
type Params map[string]string

// validate is shared: validator instances are safe for concurrent use.
var validate = validator.New()

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.@:-]*$`)

// shellMeta are the characters the injection guard rejects in validated
// parameter values. Raw parameters skip the guard by declaration.
const shellMeta = "`$|&;<>(){}\n\"'\\"

// ValidationError reports a parameter problem caught before any network
// round-trip.
type ValidationError struct {
	Spec  string
	Param string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("task %s: %s", e.Spec, e.Msg)
	}
	return fmt.Sprintf("task %s: parameter %q: %s", e.Spec, e.Param, e.Msg)
}

// CheckParams validates params against the specification's declarations.
// It fails fast on missing required parameters, undeclared parameters,
// and values that do not satisfy their semantic kind.
func (s *Spec) CheckParams(params Params) error {
	for _, p := range s.Params {
		val, ok := params[p.Name]
		if !ok || val == "" {
			if p.Required {
				return &ValidationError{Spec: s.Name, Param: p.Name, Msg: "required parameter is missing"}
			}
			continue
		}
		if err := checkKind(p.Kind, val); err != nil {
			return &ValidationError{Spec: s.Name, Param: p.Name, Msg: err.Error()}
		}
	}

	for name := range params {
		if s.param(name) == nil {
			return &ValidationError{Spec: s.Name, Param: name, Msg: "parameter is not declared by the specification"}
		}
	}

	return nil
}

func checkKind(kind ParamKind, val string) error {
	switch kind {
	case KindRaw:
		return nil

	case KindString:
		if strings.ContainsAny(val, shellMeta) {
			return fmt.Errorf("value contains shell metacharacters")
		}
		return nil

	case KindName:
		if !namePattern.MatchString(val) {
			return fmt.Errorf("value is not a valid identifier")
		}
		return nil

	case KindInt:
		if _, err := strconv.Atoi(val); err != nil {
			return fmt.Errorf("value is not an integer")
		}
		return nil

	case KindPort:
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("port is not an integer")
		}
		if err := validate.Var(n, "gte=1,lte=65535"); err != nil {
			return fmt.Errorf("port %d is out of range", n)
		}
		return nil

	case KindPath:
		if !strings.HasPrefix(val, "/") {
			return fmt.Errorf("path must be absolute")
		}
		if strings.ContainsAny(val, shellMeta) || strings.ContainsAny(val, " \t") {
			return fmt.Errorf("path contains unsafe characters")
		}
		return nil

	case KindRelPath:
		if strings.ContainsAny(val, shellMeta) || strings.ContainsAny(val, " \t") {
			return fmt.Errorf("path contains unsafe characters")
		}
		return nil

	case KindURL:
		if strings.HasPrefix(val, "git@") || strings.HasPrefix(val, "ssh://") {
			if strings.ContainsAny(val, shellMeta) {
				return fmt.Errorf("url contains unsafe characters")
			}
			return nil
		}
		if err := validate.Var(val, "required,url"); err != nil {
			return fmt.Errorf("value is not a valid URL")
		}
		if strings.ContainsAny(val, shellMeta) {
			return fmt.Errorf("url contains unsafe characters")
		}
		return nil

	default:
		return fmt.Errorf("unknown parameter kind %q", kind)
	}
}
