package model

import "testing"

func TestOptions_CaseInsensitive(t *testing.T) {
	o := make(Options)
	o.Set("Content-Type", "text/plain")

	if got := o.Get("content-type"); got != "text/plain" {
		t.Errorf("Get() = %q, want %q", got, "text/plain")
	}
	o.Set("CONTENT-TYPE", "application/json")
	if len(o) != 1 {
		t.Errorf("len = %d, want 1", len(o))
	}
	if _, ok := o.Lookup("Content-type"); !ok {
		t.Error("Lookup() should find key")
	}
	o.Del("content-TYPE")
	if len(o) != 0 {
		t.Errorf("len after Del = %d, want 0", len(o))
	}
}

func TestOptions_Clone(t *testing.T) {
	o := Options{"a": "1"}
	c := o.Clone()
	c.Set("a", "2")
	if o.Get("a") != "1" {
		t.Error("Clone() shares storage with original")
	}
}

func TestOptions_WithPrefix(t *testing.T) {
	o := make(Options)
	o.Set("Header.Accept", "text/plain")
	o.Set("header.X-Trace", "1")
	o.Set("subject", "hi")

	got := o.WithPrefix("header.")
	if len(got) != 2 || got["accept"] != "text/plain" || got["x-trace"] != "1" {
		t.Errorf("WithPrefix() = %v", got)
	}
}

func TestOptions_DirectMapWrite(t *testing.T) {
	o := Options{"Subject": "hi", "Header.X-Trace": "1"}

	if got := o.Get("subject"); got != "hi" {
		t.Errorf("Get() = %q, want %q", got, "hi")
	}
	if got := o.WithPrefix("header."); got["x-trace"] != "1" {
		t.Errorf("WithPrefix() = %v, want x-trace=1", got)
	}

	o.Set("SUBJECT", "bye")
	if len(o) != 2 {
		t.Errorf("len = %d, want 2 after replacing a differently-cased key", len(o))
	}
	if got := o.Get("Subject"); got != "bye" {
		t.Errorf("Get() = %q, want %q", got, "bye")
	}

	o["HEADER.X-TRACE"] = "2"
	o.Del("header.x-trace")
	if _, ok := o.Lookup("Header.X-Trace"); ok {
		t.Error("Del() should remove every casing")
	}
}
