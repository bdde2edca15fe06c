package controller

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"resource-broker-go/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mustRequest builds a request or fails the test.
func mustRequest(t *testing.T, method model.Method, kind model.Kind, name string, body *model.Body) *model.Request {
	t.Helper()
	req, err := model.NewRequest(method, kind, name, body)
	if err != nil {
		t.Fatalf("NewRequest(%q) error = %v", name, err)
	}
	return req
}

func TestShape(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		kind     model.Kind
		data     string
		wantCode int
		wantCT   string
		check    func(t *testing.T, b *model.Body)
	}{
		{"text", model.KindText, "hello", http.StatusOK, contentTypeText, func(t *testing.T, b *model.Body) {
			if s, ok := b.Raw().(string); !ok || s != "hello" {
				t.Errorf("Raw() = %#v, want string hello", b.Raw())
			}
		}},
		{"binary", model.KindBinary, "hello", http.StatusOK, contentTypeBinary, func(t *testing.T, b *model.Body) {
			if got, ok := b.Raw().([]byte); !ok || string(got) != "hello" {
				t.Errorf("Raw() = %#v, want []byte hello", b.Raw())
			}
		}},
		{"stream", model.KindStream, "hello", http.StatusOK, contentTypeBinary, func(t *testing.T, b *model.Body) {
			if !b.IsStream() {
				t.Fatal("IsStream() = false, want true")
			}
			got, err := b.ReadAll(ctx)
			if err != nil || string(got) != "hello" {
				t.Errorf("ReadAll() = %q, %v", got, err)
			}
		}},
		{"json", model.KindJSON, `{"a":1}`, http.StatusOK, contentTypeJSON, func(t *testing.T, b *model.Body) {
			m, ok := b.Raw().(map[string]any)
			if !ok || m["a"] != float64(1) {
				t.Errorf("Raw() = %#v, want map with a=1", b.Raw())
			}
		}},
		{"invalid json", model.KindJSON, `{`, http.StatusUnprocessableEntity, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := shape(tt.kind, []byte(tt.data))
			if resp.Code != tt.wantCode {
				t.Fatalf("Code = %d, want %d", resp.Code, tt.wantCode)
			}
			if resp.ContentType != tt.wantCT {
				t.Errorf("ContentType = %q, want %q", resp.ContentType, tt.wantCT)
			}
			if tt.check != nil {
				tt.check(t, resp.Body)
			}
		})
	}
}

func TestMemory_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(map[string]string{"greeting": "hello"})

	resp, err := m.Serve(ctx, mustRequest(t, model.MethodGet, model.KindText, "mem:greeting", nil))
	if err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	text, err := model.As[string](ctx, resp.Body)
	if err != nil || text != "hello" {
		t.Fatalf("As[string] = %q, %v; want hello", text, err)
	}

	resp, err = m.Serve(ctx, mustRequest(t, model.MethodPut, model.KindRaw, "mem:note", model.Text("one")))
	if err != nil || resp.Code != http.StatusCreated {
		t.Fatalf("Put new = %v, %v; want 201", resp, err)
	}
	resp, err = m.Serve(ctx, mustRequest(t, model.MethodPost, model.KindRaw, "mem:note", model.Text("+two")))
	if err != nil || resp.Code != http.StatusOK {
		t.Fatalf("Post existing = %v, %v; want 200", resp, err)
	}

	resp, _ = m.Serve(ctx, mustRequest(t, model.MethodGet, model.KindBinary, "mem:note", nil))
	data, err := model.As[[]byte](ctx, resp.Body)
	if err != nil || string(data) != "one+two" {
		t.Fatalf("Get after append = %q, %v; want one+two", data, err)
	}

	resp, err = m.Serve(ctx, mustRequest(t, model.MethodDelete, model.KindRaw, "mem:note", nil))
	if err != nil || resp.Code != http.StatusNoContent {
		t.Fatalf("Delete = %v, %v; want 204", resp, err)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}

	resp, err = m.Serve(ctx, mustRequest(t, model.MethodGet, model.KindRaw, "mem:note", nil))
	if err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	if resp.Code != http.StatusNotFound || resp.Success() {
		t.Errorf("Get deleted: Code = %d, want 404", resp.Code)
	}

	resp, _ = m.Serve(ctx, mustRequest(t, model.MethodDelete, model.KindRaw, "mem:note", nil))
	if resp.Code != http.StatusNotFound {
		t.Errorf("Delete missing: Code = %d, want 404", resp.Code)
	}
}

func TestMemory_StoredCopyIsIndependent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	payload := []byte("abc")

	if _, err := m.Serve(ctx, mustRequest(t, model.MethodPut, model.KindRaw, "mem:k", model.Bytes(payload))); err != nil {
		t.Fatal(err)
	}
	payload[0] = 'X'

	resp, _ := m.Serve(ctx, mustRequest(t, model.MethodGet, model.KindText, "mem:k", nil))
	if got, _ := model.As[string](ctx, resp.Body); got != "abc" {
		t.Errorf("stored value = %q, want abc", got)
	}
}

func TestMemory_Concurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	done := make(chan struct{})

	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				req, _ := model.Post("mem:counter", model.Text("x"))
				if _, err := m.Serve(ctx, req); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	resp, _ := m.Serve(ctx, mustRequest(t, model.MethodGet, model.KindBinary, "mem:counter", nil))
	data, _ := model.As[[]byte](ctx, resp.Body)
	if len(data) != 400 {
		t.Errorf("len = %d, want 400", len(data))
	}
}
