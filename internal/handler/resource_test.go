package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"resource-broker-go/internal/broker"
	"resource-broker-go/internal/controller"
	"resource-broker-go/internal/model"
	"resource-broker-go/internal/stage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestBroker serves mem: from memory, fails every fault: request and
// blocks slow: requests until the caller gives up.
func newTestBroker(t *testing.T) *broker.Broker {
	t.Helper()
	vars := map[string]string{"GREETING_KEY": "greeting", "SECRET_TOKEN": "s3cr3t-value"}
	lookup := func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}

	brk, err := broker.NewBuilder(broker.Options{Logger: discardLogger()}).
		Register(controller.NewMemory(map[string]string{
			"greeting":  "hello",
			"data.json": `{"a":1}`,
		}), "mem").
		Register(broker.ControllerFunc(func(context.Context, *model.Request) (*model.Response, error) {
			return nil, errors.New("disk on fire")
		}), "fault").
		Register(broker.ControllerFunc(func(ctx context.Context, _ *model.Request) (*model.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}), "slow").
		Register(broker.ControllerFunc(func(context.Context, *model.Request) (*model.Response, error) {
			return model.Failure(http.StatusGone, "moved away"), nil
		}), "gone").
		Use(stage.NewEnvExpander(lookup)).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return brk
}

func serve(t *testing.T, h *ResourceHandler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	return rec
}

func TestResourceHandler_Get(t *testing.T) {
	h := NewResourceHandler(newTestBroker(t), discardLogger())

	tests := []struct {
		name     string
		target   string
		wantBody string
		wantCT   string
	}{
		{"text", "/resource?name=mem:greeting&as=text", "hello", "text/plain; charset=utf-8"},
		{"raw", "/resource?name=mem:greeting", "hello", "application/octet-stream"},
		{"stream", "/resource?name=mem:greeting&as=stream", "hello", "application/octet-stream"},
		{"env expanded", "/resource?name=mem:%25GREETING_KEY%25&as=text", "hello", "text/plain; charset=utf-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, h, httptest.NewRequest(http.MethodGet, tt.target, http.NoBody))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if ct := rec.Header().Get(echo.HeaderContentType); ct != tt.wantCT {
				t.Errorf("Content-Type = %q, want %q", ct, tt.wantCT)
			}
		})
	}
}

func TestResourceHandler_GetJSON(t *testing.T) {
	h := NewResourceHandler(newTestBroker(t), discardLogger())

	rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/resource?name=mem:data.json&as=json", http.NoBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]float64
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["a"] != 1 {
		t.Errorf("body = %v, want a=1", body)
	}
}

func TestResourceHandler_PutThenGet(t *testing.T) {
	h := NewResourceHandler(newTestBroker(t), discardLogger())

	put := httptest.NewRequest(http.MethodPut, "/resource?name=mem:note", strings.NewReader("written"))
	rec := serve(t, h, put)
	if rec.Code != http.StatusCreated {
		t.Fatalf("PUT status = %d, want 201", rec.Code)
	}

	rec = serve(t, h, httptest.NewRequest(http.MethodGet, "/resource?name=mem:note&as=text", http.NoBody))
	if rec.Body.String() != "written" {
		t.Errorf("GET body = %q, want written", rec.Body.String())
	}
}

func TestResourceHandler_Errors(t *testing.T) {
	h := NewResourceHandler(newTestBroker(t), discardLogger())

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
	}{
		{"missing name", http.MethodGet, "/resource", http.StatusBadRequest},
		{"malformed name", http.MethodGet, "/resource?name=nocolon", http.StatusBadRequest},
		{"unknown kind", http.MethodGet, "/resource?name=mem:greeting&as=xml", http.StatusBadRequest},
		{"unsupported scheme", http.MethodGet, "/resource?name=gopher:x", http.StatusNotFound},
		{"not found", http.MethodGet, "/resource?name=mem:missing", http.StatusNotFound},
		{"backend failure code", http.MethodGet, "/resource?name=gone:x", http.StatusGone},
		{"unresolved variable", http.MethodGet, "/resource?name=mem:%25NOPE%25", http.StatusUnprocessableEntity},
		{"backend fault", http.MethodGet, "/resource?name=fault:x", http.StatusBadGateway},
		{"unsupported method", http.MethodPatch, "/resource?name=mem:greeting", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, h, httptest.NewRequest(tt.method, tt.target, http.NoBody))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if body["error"] == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func TestResourceHandler_FaultHidesCause(t *testing.T) {
	h := NewResourceHandler(newTestBroker(t), discardLogger())

	rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/resource?name=fault:x", http.NoBody))
	if strings.Contains(rec.Body.String(), "disk on fire") {
		t.Errorf("response leaks backend error: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "fault:x") {
		t.Errorf("response should name the resource: %s", rec.Body.String())
	}
}

func TestResourceHandler_ErrorsNameSubmittedResource(t *testing.T) {
	h := NewResourceHandler(newTestBroker(t), discardLogger())

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{"not found", "/resource?name=mem:%25SECRET_TOKEN%25", http.StatusNotFound},
		{"unsupported scheme", "/resource?name=gopher:%25SECRET_TOKEN%25", http.StatusNotFound},
		{"backend fault", "/resource?name=fault:%25SECRET_TOKEN%25", http.StatusBadGateway},
		{"backend failure", "/resource?name=gone:%25SECRET_TOKEN%25", http.StatusGone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, h, httptest.NewRequest(http.MethodGet, tt.target, http.NoBody))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if strings.Contains(rec.Body.String(), "s3cr3t-value") {
				t.Errorf("response reveals an expanded variable: %s", rec.Body.String())
			}
		})
	}
}

func TestResourceHandler_FailureReasonKeptForUnchangedName(t *testing.T) {
	h := NewResourceHandler(newTestBroker(t), discardLogger())

	rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/resource?name=gone:x", http.NoBody))
	if !strings.Contains(rec.Body.String(), "moved away") {
		t.Errorf("body = %s, want backend reason", rec.Body.String())
	}
}

func TestResourceHandler_Deadline(t *testing.T) {
	h := NewResourceHandler(newTestBroker(t), discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/resource?name=slow:x", http.NoBody).WithContext(ctx)

	rec := serve(t, h, req)
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", rec.Code)
	}
}

func TestResourceHandler_ClientCancelled(t *testing.T) {
	h := NewResourceHandler(newTestBroker(t), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	req := httptest.NewRequest(http.MethodGet, "/resource?name=slow:x", http.NoBody).WithContext(ctx)

	rec := serve(t, h, req)
	if rec.Code != StatusClientClosedRequest {
		t.Errorf("status = %d, want %d", rec.Code, StatusClientClosedRequest)
	}
}

func TestResourceHandler_OptionsFromQuery(t *testing.T) {
	var got model.Options
	brk, err := broker.NewBuilder(broker.Options{}).
		Register(broker.ControllerFunc(func(_ context.Context, req *model.Request) (*model.Response, error) {
			got = req.Options
			return model.OK(nil), nil
		}), "probe").
		Build()
	if err != nil {
		t.Fatal(err)
	}
	h := NewResourceHandler(brk, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/resource?name=probe:x&as=text&Subject=hi&header.X-Trace=1", strings.NewReader("{}"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := serve(t, h, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got.Get("subject") != "hi" {
		t.Errorf("subject option = %q, want hi", got.Get("subject"))
	}
	if got.Get("header.x-trace") != "1" {
		t.Errorf("header.x-trace option = %q, want 1", got.Get("header.x-trace"))
	}
	if got.Get("content-type") != echo.MIMEApplicationJSON {
		t.Errorf("content-type option = %q", got.Get("content-type"))
	}
	if _, ok := got.Lookup("name"); ok {
		t.Error("name must not be passed as an option")
	}
}
