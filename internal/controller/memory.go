package controller

import (
	"context"
	"net/http"
	"sync"

	"resource-broker-go/internal/model"
	"resource-broker-go/internal/resource"
)

// Memory is a goroutine-safe in-process store keyed by resource path.
// All schemes it is registered for share one namespace.
type Memory struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemory creates a store preloaded with seed.
func NewMemory(seed map[string]string) *Memory {
	m := &Memory{items: make(map[string][]byte, len(seed))}
	for k, v := range seed {
		m.items[k] = []byte(v)
	}
	return m
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Serve implements broker.Controller.
func (m *Memory) Serve(ctx context.Context, req *model.Request) (*model.Response, error) {
	key := resource.Decode(req.Name.Path())

	switch req.Method {
	case model.MethodGet:
		m.mu.RLock()
		data, ok := m.items[key]
		m.mu.RUnlock()
		if !ok {
			return model.NotFound(req.Name), nil
		}
		return shape(req.Kind, append([]byte(nil), data...)), nil

	case model.MethodPut, model.MethodPost:
		data, err := readBody(ctx, req)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		old, existed := m.items[key]
		var stored []byte
		if req.Method == model.MethodPost {
			stored = append(stored, old...)
		}
		m.items[key] = append(stored, data...)
		m.mu.Unlock()
		return created(existed), nil

	case model.MethodDelete:
		m.mu.Lock()
		_, ok := m.items[key]
		delete(m.items, key)
		m.mu.Unlock()
		if !ok {
			return model.NotFound(req.Name), nil
		}
		return model.NewResponse(http.StatusNoContent, nil), nil
	}
	return model.MethodNotAllowed(req.Method, req.Name), nil
}
