package stage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"resource-broker-go/internal/broker"
	"resource-broker-go/internal/resource"
)

type mount struct {
	from string
	to   string
}

// Mounts rewrites resource names that start with a configured prefix. The
// longest matching prefix wins.
type Mounts struct {
	mounts []mount
}

// NewMounts builds a Mounts stage from prefix → replacement pairs such as
// "docs:" → "file:/srv/docs/".
func NewMounts(prefixes map[string]string) *Mounts {
	m := &Mounts{mounts: make([]mount, 0, len(prefixes))}
	for from, to := range prefixes {
		m.mounts = append(m.mounts, mount{from: lowerScheme(from), to: to})
	}
	sort.Slice(m.mounts, func(i, j int) bool {
		if len(m.mounts[i].from) != len(m.mounts[j].from) {
			return len(m.mounts[i].from) > len(m.mounts[j].from)
		}
		return m.mounts[i].from < m.mounts[j].from
	})
	return m
}

// Name implements broker.Stage.
func (m *Mounts) Name() string { return "mounts" }

// Invoke implements broker.Stage.
func (m *Mounts) Invoke(_ context.Context, c *broker.Context) error {
	raw := c.Request.Name.String()
	for _, mt := range m.mounts {
		rest, ok := strings.CutPrefix(raw, mt.from)
		if !ok {
			continue
		}
		n, err := resource.Parse(mt.to + rest)
		if err != nil {
			return fmt.Errorf("mount %q: %w", mt.from, err)
		}
		c.Request.Name = n
		return nil
	}
	return nil
}

// lowerScheme lower-cases the part of a prefix before its first ':' so it
// matches the canonical form of resource.Name.
func lowerScheme(prefix string) string {
	scheme, rest, ok := strings.Cut(prefix, ":")
	if !ok {
		return strings.ToLower(prefix)
	}
	return strings.ToLower(scheme) + ":" + rest
}
