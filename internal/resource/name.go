// Package resource defines scheme-qualified resource names.
package resource

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedName is returned when a raw string is not of the form scheme:path.
var ErrMalformedName = errors.New("malformed resource name")

var (
	encoder = strings.NewReplacer("%", "%25")
	decoder = strings.NewReplacer("%25", "%")
)

// Name is an immutable scheme:path pair. The scheme is stored in lower case.
type Name struct {
	scheme string
	path   string
}

// Parse splits raw on its first ':' into scheme and path.
func Parse(raw string) (Name, error) {
	scheme, path, ok := strings.Cut(raw, ":")
	if !ok {
		return Name{}, fmt.Errorf("%w: %q has no scheme separator", ErrMalformedName, raw)
	}
	return New(scheme, path)
}

// MustParse is like Parse but panics on error.
func MustParse(raw string) Name {
	n, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return n
}

// New builds a Name from its parts.
func New(scheme, path string) (Name, error) {
	scheme = strings.TrimSpace(scheme)
	if scheme == "" {
		return Name{}, fmt.Errorf("%w: empty scheme", ErrMalformedName)
	}
	if strings.ContainsAny(scheme, ":/\\ ") {
		return Name{}, fmt.Errorf("%w: invalid scheme %q", ErrMalformedName, scheme)
	}
	return Name{scheme: strings.ToLower(scheme), path: path}, nil
}

// Scheme returns the lower-cased scheme.
func (n Name) Scheme() string { return n.scheme }

// Path returns the raw (still encoded) path.
func (n Name) Path() string { return n.path }

// IsZero reports whether n was never set.
func (n Name) IsZero() bool { return n.scheme == "" }

// WithPath returns a copy of n with its path replaced.
func (n Name) WithPath(path string) Name {
	n.path = path
	return n
}

// Equal compares schemes case-insensitively and paths exactly.
func (n Name) Equal(other Name) bool {
	return strings.EqualFold(n.scheme, other.scheme) && n.path == other.path
}

// String returns the canonical scheme:path form.
func (n Name) String() string {
	if n.IsZero() {
		return ""
	}
	return n.scheme + ":" + n.path
}

// Encode percent-encodes the characters reserved inside a path.
func Encode(s string) string {
	return encoder.Replace(s)
}

// Decode reverses Encode.
func Decode(s string) string {
	return decoder.Replace(s)
}
