// Package stage provides broker stages that run before controller dispatch.
package stage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"

	"resource-broker-go/internal/broker"
	"resource-broker-go/internal/resource"
)

// ErrUnresolvedVariable is matched by every *UnresolvedVariableError.
var ErrUnresolvedVariable = errors.New("unresolved variable")

// UnresolvedVariableError names a %VAR% token with no value.
type UnresolvedVariableError struct {
	Name string
}

func (e *UnresolvedVariableError) Error() string {
	return fmt.Sprintf("unresolved variable %q", e.Name)
}

// Is reports whether target is ErrUnresolvedVariable.
func (e *UnresolvedVariableError) Is(target error) bool {
	return target == ErrUnresolvedVariable
}

// tokenPattern matches %NAME% where NAME is an identifier. Encoded percent
// signs (%25) never start a token because identifiers cannot begin with a digit.
var tokenPattern = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_]*)%`)

// EnvExpander replaces %NAME% tokens in a resource path with variable values.
type EnvExpander struct {
	lookup func(string) (string, bool)
}

// NewEnvExpander returns an expander backed by lookup, or by the process
// environment when lookup is nil.
func NewEnvExpander(lookup func(string) (string, bool)) *EnvExpander {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &EnvExpander{lookup: lookup}
}

// AllowVariables restricts lookup to the listed variable names. A "*" entry
// allows every variable and an empty list allows none. A nil lookup reads the
// process environment.
func AllowVariables(lookup func(string) (string, bool), names []string) func(string) (string, bool) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	allowed := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == "*" {
			return lookup
		}
		allowed[n] = struct{}{}
	}
	return func(name string) (string, bool) {
		if _, ok := allowed[name]; !ok {
			return "", false
		}
		return lookup(name)
	}
}

// Name implements broker.Stage.
func (e *EnvExpander) Name() string { return "env" }

// Invoke implements broker.Stage.
func (e *EnvExpander) Invoke(_ context.Context, c *broker.Context) error {
	path := c.Request.Name.Path()
	expanded, err := e.Expand(path)
	if err != nil {
		return err
	}
	if expanded != path {
		c.Request.Name = c.Request.Name.WithPath(expanded)
	}
	return nil
}

// Expand substitutes every token in s. Substituted values are percent-encoded
// so a literal '%' in a value survives the controller's Decode.
func (e *EnvExpander) Expand(s string) (string, error) {
	var missing string
	out := tokenPattern.ReplaceAllStringFunc(s, func(tok string) string {
		if missing != "" {
			return tok
		}
		name := tok[1 : len(tok)-1]
		v, ok := e.lookup(name)
		if !ok {
			missing = name
			return tok
		}
		return resource.Encode(v)
	})
	if missing != "" {
		return "", &UnresolvedVariableError{Name: missing}
	}
	return out, nil
}
