// Package model defines the request/response envelope carried through the broker.
package model

import (
	"fmt"
	"strings"
)

// Method is the HTTP-style verb of a request.
type Method int

// Supported methods.
const (
	MethodGet Method = iota + 1
	MethodPost
	MethodPut
	MethodDelete
)

var methodNames = map[Method]string{
	MethodGet:    "GET",
	MethodPost:   "POST",
	MethodPut:    "PUT",
	MethodDelete: "DELETE",
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod maps a verb such as "get" or "POST" to a Method.
func ParseMethod(s string) (Method, error) {
	for m, name := range methodNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown method %q", s)
}

// Kind tells the controller how the caller expects the body to be materialized.
type Kind int

// Request kinds.
const (
	KindRaw Kind = iota
	KindText
	KindBinary
	KindStream
	KindJSON
)

var kindNames = map[Kind]string{
	KindRaw:    "raw",
	KindText:   "text",
	KindBinary: "binary",
	KindStream: "stream",
	KindJSON:   "json",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps "text", "binary", "stream", "json" or "raw" (or "") to a Kind.
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return KindRaw, nil
	}
	for k, name := range kindNames {
		if strings.EqualFold(s, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown kind %q", s)
}
