package model

import (
	"errors"
	"testing"

	"resource-broker-go/internal/resource"
)

func TestFactories(t *testing.T) {
	tests := []struct {
		name       string
		build      func() (*Request, error)
		wantMethod Method
		wantKind   Kind
	}{
		{"Get", func() (*Request, error) { return Get("mem:a") }, MethodGet, KindRaw},
		{"GetText", func() (*Request, error) { return GetText("mem:a") }, MethodGet, KindText},
		{"GetBinary", func() (*Request, error) { return GetBinary("mem:a") }, MethodGet, KindBinary},
		{"GetStream", func() (*Request, error) { return GetStream("mem:a") }, MethodGet, KindStream},
		{"GetJSON", func() (*Request, error) { return GetJSON("mem:a") }, MethodGet, KindJSON},
		{"Post", func() (*Request, error) { return Post("mem:a", Text("x")) }, MethodPost, KindRaw},
		{"Put", func() (*Request, error) { return Put("mem:a", Text("x")) }, MethodPut, KindRaw},
		{"Delete", func() (*Request, error) { return Delete("mem:a") }, MethodDelete, KindRaw},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := tt.build()
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if req.Method != tt.wantMethod || req.Kind != tt.wantKind {
				t.Errorf("got %v/%v, want %v/%v", req.Method, req.Kind, tt.wantMethod, tt.wantKind)
			}
			if req.Name.String() != "mem:a" {
				t.Errorf("Name = %q", req.Name)
			}
			if req.Options == nil {
				t.Error("Options should be initialised")
			}
		})
	}
}

func TestNewRequest_Malformed(t *testing.T) {
	_, err := Get("no-scheme")
	if !errors.Is(err, resource.ErrMalformedName) {
		t.Errorf("error = %v, want ErrMalformedName", err)
	}
}

func TestParseMethodAndKind(t *testing.T) {
	if m, err := ParseMethod("post"); err != nil || m != MethodPost {
		t.Errorf("ParseMethod(post) = %v, %v", m, err)
	}
	if _, err := ParseMethod("PATCH"); err == nil {
		t.Error("ParseMethod(PATCH) should fail")
	}
	if k, err := ParseKind("JSON"); err != nil || k != KindJSON {
		t.Errorf("ParseKind(JSON) = %v, %v", k, err)
	}
	if k, err := ParseKind(""); err != nil || k != KindRaw {
		t.Errorf("ParseKind(\"\") = %v, %v", k, err)
	}
}

func TestRequest_WithOption(t *testing.T) {
	req, _ := Get("mem:a")
	req.WithOption("Subject", "hi").WithKind(KindText)
	if req.Options.Get("subject") != "hi" || req.Kind != KindText {
		t.Errorf("request = %+v", req)
	}
	if req.String() != "GET mem:a" {
		t.Errorf("String() = %q", req.String())
	}
}
