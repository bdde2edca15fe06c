package controller

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"resource-broker-go/internal/convert"
	"resource-broker-go/internal/model"
	"resource-broker-go/internal/resource"
)

// keyOption selects a dotted key inside the document when the name carries no query.
const keyOption = "name"

// Store reads values out of TOML documents. Names take the form
// config:<file>?name=<dotted.key>; without a key the whole document is returned.
// Store is read-only.
type Store struct {
	dir  string
	conv convert.Converter
}

// NewStore creates a Store serving documents under dir, or under the working
// directory when dir is empty. Paths are confined to that directory.
func NewStore(dir string, conv convert.Converter) *Store {
	if conv == nil {
		conv = convert.Default
	}
	if dir == "" {
		dir = "."
	}
	return &Store{dir: dir, conv: conv}
}

// Serve implements broker.Controller.
func (s *Store) Serve(_ context.Context, req *model.Request) (*model.Response, error) {
	if req.Method != model.MethodGet {
		return model.MethodNotAllowed(req.Method, req.Name), nil
	}

	file, query, _ := strings.Cut(resource.Decode(req.Name.Path()), "?")
	if file == "" {
		return model.Failure(http.StatusBadRequest, fmt.Sprintf("no document in %s", req.Name)), nil
	}
	key := req.Options.Get(keyOption)
	if query != "" {
		values, err := url.ParseQuery(query)
		if err != nil {
			return model.Failure(http.StatusBadRequest, fmt.Sprintf("invalid query in %s: %v", req.Name, err)), nil
		}
		if k := values.Get(keyOption); k != "" {
			key = k
		}
	}

	path, ok := confine(s.dir, filepath.FromSlash(file))
	if !ok {
		return model.Failure(http.StatusForbidden, fmt.Sprintf("%s: %v", req.Name, errEscapesRoot)), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.NotFound(req.Name), nil
		}
		if errors.Is(err, fs.ErrPermission) {
			return model.Failure(http.StatusForbidden, fmt.Sprintf("permission denied: %s", req.Name)), nil
		}
		return nil, fmt.Errorf("config %s: %w", req.Name, err)
	}

	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config %s: parse: %w", req.Name, err)
	}

	value, ok := lookup(doc, key)
	if !ok {
		return model.Failure(http.StatusNotFound, fmt.Sprintf("key %q not found in %s", key, file)), nil
	}
	return s.respond(req.Kind, value)
}

func (s *Store) respond(kind model.Kind, value any) (*model.Response, error) {
	switch kind {
	case model.KindText, model.KindBinary, model.KindStream:
		var text string
		if err := s.conv.Convert(value, &text); err != nil {
			return nil, fmt.Errorf("config value: %w", err)
		}
		return shape(kind, []byte(text)), nil
	}
	resp := model.OK(model.Value(value))
	resp.ContentType = contentTypeJSON
	return resp, nil
}

// lookup walks a dotted key through nested tables. An empty key selects doc.
func lookup(doc map[string]any, key string) (any, bool) {
	if key == "" {
		return doc, true
	}
	var cur any = doc
	for _, part := range strings.Split(key, ".") {
		table, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = table[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}
