package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"resource-broker-go/internal/config"
	"resource-broker-go/internal/model"
)

func TestNewLoggerTo_Levels(t *testing.T) {
	tests := []struct {
		level, format string
		wantDebug     bool
		wantJSON      bool
	}{
		{"debug", "json", true, true},
		{"info", "json", false, true},
		{"warn", "text", false, false},
		{"ERROR", "TEXT", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			cfg := &config.Config{Log: config.LogConfig{Level: tt.level, Format: tt.format}}
			logger := newLoggerTo(cfg, &buf)

			if got := logger.Enabled(context.Background(), -4); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			logger.Error("boom")
			if isJSON := strings.HasPrefix(buf.String(), "{"); isJSON != tt.wantJSON {
				t.Errorf("json output = %v, want %v: %q", isJSON, tt.wantJSON, buf.String())
			}
		})
	}
}

func TestFetchRequest(t *testing.T) {
	req, err := fetchRequest(&config.FetchCmd{
		Name:   "MEM:notes/a",
		Method: "put",
		As:     "json",
		Data:   `{"a":1}`,
		Option: map[string]string{"Header.X-Trace": "1"},
	})
	if err != nil {
		t.Fatalf("fetchRequest: %v", err)
	}
	if req.Method != model.MethodPut {
		t.Errorf("method = %v, want put", req.Method)
	}
	if req.Kind != model.KindJSON {
		t.Errorf("kind = %v, want json", req.Kind)
	}
	if req.Name.String() != "mem:notes/a" {
		t.Errorf("name = %q", req.Name.String())
	}
	if got := req.Options.Get("header.x-trace"); got != "1" {
		t.Errorf("option = %q, want 1", got)
	}
	if req.Body.Empty() {
		t.Error("body should carry --data")
	}
}

func TestFetchRequest_Invalid(t *testing.T) {
	cases := []*config.FetchCmd{
		{Name: "mem:a", Method: "patch", As: "text"},
		{Name: "mem:a", Method: "get", As: "xml"},
		{Name: "no-scheme", Method: "get", As: "text"},
	}
	for _, f := range cases {
		if _, err := fetchRequest(f); err == nil {
			t.Errorf("fetchRequest(%+v) should fail", f)
		}
	}
}

func TestWriteBody(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		body *model.Body
		want string
	}{
		{"empty", nil, ""},
		{"bytes", model.Bytes([]byte("raw")), "raw"},
		{"text", model.Text("hello"), "hello"},
		{"stream", model.Stream(io.NopCloser(strings.NewReader("streamed"))), "streamed"},
		{"value", model.Value(map[string]any{"k": "v"}), "{\n  \"k\": \"v\"\n}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := writeBody(ctx, &buf, model.OK(tt.body)); err != nil {
				t.Fatalf("writeBody: %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("output = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}
