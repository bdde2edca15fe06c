package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"resource-broker-go/internal/model"
	"resource-broker-go/internal/resource"
)

// errEscapesRoot is returned when a path resolves outside the configured root.
var errEscapesRoot = errors.New("path escapes root")

// File serves the local filesystem. Names take the forms file:/abs/path,
// file:///abs/path, file:relative/path and file:C:\path.
type File struct {
	root   string
	logger *slog.Logger
}

// NewFile creates a File controller. A non-empty root confines every path to
// that directory; relative and absolute paths are both resolved beneath it.
func NewFile(root string, logger *slog.Logger) *File {
	if root != "" {
		root = filepath.Clean(root)
	}
	return &File{
		root:   root,
		logger: logger.With("component", "file_controller"),
	}
}

// Serve implements broker.Controller.
func (f *File) Serve(ctx context.Context, req *model.Request) (*model.Response, error) {
	path, err := f.resolve(req.Name)
	if err != nil {
		if errors.Is(err, errEscapesRoot) {
			f.logger.Warn("rejected path outside root", "name", req.Name.String())
			return model.Failure(http.StatusForbidden, err.Error()), nil
		}
		return model.Failure(http.StatusBadRequest, err.Error()), nil
	}

	switch req.Method {
	case model.MethodGet:
		return f.get(req, path)
	case model.MethodPut:
		return f.write(ctx, req, path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	case model.MethodPost:
		return f.write(ctx, req, path, os.O_WRONLY|os.O_CREATE|os.O_APPEND)
	case model.MethodDelete:
		if err := os.Remove(path); err != nil {
			return f.failure(req.Name, err)
		}
		return model.NewResponse(http.StatusNoContent, nil), nil
	}
	return model.MethodNotAllowed(req.Method, req.Name), nil
}

func (f *File) get(req *model.Request, path string) (*model.Response, error) {
	info, err := os.Stat(path)
	if err != nil {
		return f.failure(req.Name, err)
	}
	if info.IsDir() {
		return model.Failure(http.StatusBadRequest, fmt.Sprintf("%s is a directory", req.Name)), nil
	}

	if req.Kind == model.KindStream {
		fh, err := os.Open(path)
		if err != nil {
			return f.failure(req.Name, err)
		}
		resp := model.OK(model.Stream(fh))
		resp.ContentType = contentTypeBinary
		resp.Header.Set("Content-Length", fmt.Sprint(info.Size()))
		return resp, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return f.failure(req.Name, err)
	}
	return shape(req.Kind, data), nil
}

func (f *File) write(ctx context.Context, req *model.Request, path string, flag int) (*model.Response, error) {
	_, statErr := os.Stat(path)
	existed := statErr == nil

	src, err := bodyReader(ctx, req)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	fh, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return f.failure(req.Name, err)
	}
	if _, err := io.Copy(fh, src); err != nil {
		fh.Close()
		return nil, fmt.Errorf("write %s: %w", req.Name, err)
	}
	if err := fh.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", req.Name, err)
	}
	return created(existed), nil
}

// failure maps filesystem errors onto failure responses where the outcome is
// a property of the resource, and returns the rest as faults.
func (f *File) failure(name resource.Name, err error) (*model.Response, error) {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return model.NotFound(name), nil
	case errors.Is(err, fs.ErrPermission):
		return model.Failure(http.StatusForbidden, fmt.Sprintf("permission denied: %s", name)), nil
	}
	return nil, fmt.Errorf("file %s: %w", name, err)
}

// resolve maps a resource name to a filesystem path.
func (f *File) resolve(name resource.Name) (string, error) {
	p := resource.Decode(name.Path())
	// file:///abs carries an empty authority.
	if rest, ok := strings.CutPrefix(p, "//"); ok {
		p = rest
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
	}
	if p == "" {
		return "", fmt.Errorf("empty path in %s", name)
	}
	p = filepath.FromSlash(p)

	if f.root == "" {
		return filepath.Clean(p), nil
	}

	target, ok := confine(f.root, p)
	if !ok {
		return "", fmt.Errorf("%s: %w", name, errEscapesRoot)
	}
	return target, nil
}

// confine joins p under root, treating absolute paths as relative to root.
// It reports false when the result lies outside root.
func confine(root, p string) (string, bool) {
	target := filepath.Join(root, p)
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return target, true
}
