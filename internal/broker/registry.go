package broker

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Registry maps schemes to the single controller that owns each.
//
// Register is not safe for concurrent use; Resolve is, once registration is
// done.
type Registry struct {
	owners map[string]Controller
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{owners: make(map[string]Controller)}
}

// Register assigns schemes to c. Nothing is registered if any scheme is
// already owned.
func (r *Registry) Register(c Controller, schemes ...string) error {
	if c == nil {
		return errors.New("register: nil controller")
	}
	if len(schemes) == 0 {
		return errors.New("register: controller declares no schemes")
	}

	set := make([]string, 0, len(schemes))
	for _, s := range schemes {
		s = normalizeScheme(s)
		if s == "" {
			return errors.New("register: empty scheme")
		}
		if _, taken := r.owners[s]; taken {
			return fmt.Errorf("register: %w: %q", ErrDuplicateScheme, s)
		}
		if !slices.Contains(set, s) {
			set = append(set, s)
		}
	}

	for _, s := range set {
		r.owners[s] = c
	}
	return nil
}

// Resolve returns the controller owning scheme.
func (r *Registry) Resolve(scheme string) (Controller, error) {
	s := normalizeScheme(scheme)
	c, ok := r.owners[s]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSchemeNotSupported, s)
	}
	return c, nil
}

// Owns reports whether some controller is registered for scheme.
func (r *Registry) Owns(scheme string) bool {
	_, ok := r.owners[normalizeScheme(scheme)]
	return ok
}

// Schemes returns the registered schemes in sorted order.
func (r *Registry) Schemes() []string {
	out := make([]string, 0, len(r.owners))
	for s := range r.owners {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

func (r *Registry) clone() *Registry {
	c := NewRegistry()
	for s, ctrl := range r.owners {
		c.owners[s] = ctrl
	}
	return c
}

func normalizeScheme(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
