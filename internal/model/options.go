package model

import "strings"

// Options is a string bag with case-insensitive keys. Use Set to write: it
// stores keys in lower case. Entries written directly into the map are still
// found by Get and Lookup, at the cost of a scan.
type Options map[string]string

func canonicalKey(k string) string { return strings.ToLower(k) }

// Get returns the value for key, or "".
func (o Options) Get(key string) string {
	v, _ := o.Lookup(key)
	return v
}

// Lookup returns the value for key and whether it was present.
func (o Options) Lookup(key string) (string, bool) {
	ck := canonicalKey(key)
	if v, ok := o[ck]; ok {
		return v, true
	}
	for k, v := range o {
		if strings.EqualFold(k, ck) {
			return v, true
		}
	}
	return "", false
}

// Set stores value under key, replacing any differently-cased duplicate.
func (o Options) Set(key, value string) {
	o.Del(key)
	o[canonicalKey(key)] = value
}

// Del removes key in every casing.
func (o Options) Del(key string) {
	for k := range o {
		if strings.EqualFold(k, key) {
			delete(o, k)
		}
	}
}

// Clone returns an independent copy.
func (o Options) Clone() Options {
	c := make(Options, len(o))
	for k, v := range o {
		c[k] = v
	}
	return c
}

// WithPrefix returns the entries whose key starts with prefix, with the prefix
// removed. Returned keys are lower case.
func (o Options) WithPrefix(prefix string) map[string]string {
	prefix = canonicalKey(prefix)
	out := make(map[string]string)
	for k, v := range o {
		if rest, ok := strings.CutPrefix(canonicalKey(k), prefix); ok && rest != "" {
			out[rest] = v
		}
	}
	return out
}
