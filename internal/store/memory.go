// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"net/http"
	"slices"
	"sync"
)

// MemoryStorage keeps caches in process memory. Names and keys are returned
// in insertion order.
type MemoryStorage struct {
	mu     sync.RWMutex
	caches map[string]*MemoryCache
	order  []string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{caches: make(map[string]*MemoryCache)}
}

func (s *MemoryStorage) Open(_ context.Context, name string) (Cache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.caches[name]; ok {
		return c, nil
	}
	c := &MemoryCache{name: name, entries: make(map[string]*Response)}
	s.caches[name] = c
	s.order = append(s.order, name)
	return c, nil
}

func (s *MemoryStorage) Has(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.caches[name]
	return ok, nil
}

func (s *MemoryStorage) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.caches[name]; !ok {
		return false, nil
	}
	delete(s.caches, name)
	s.order = slices.DeleteFunc(s.order, func(n string) bool { return n == name })
	return true, nil
}

func (s *MemoryStorage) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order), nil
}

func (s *MemoryStorage) Close() error { return nil }

// MemoryCache is a single in-memory cache.
type MemoryCache struct {
	name    string
	mu      sync.RWMutex
	entries map[string]*Response
	order   []string
}

func (c *MemoryCache) Name() string { return c.name }

func (c *MemoryCache) Match(_ context.Context, req *http.Request) (*Response, bool, error) {
	if !matchable(req) {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	resp, ok := c.entries[Key(req)]
	if !ok {
		return nil, false, nil
	}
	return resp.Clone(), true, nil
}

func (c *MemoryCache) Put(ctx context.Context, req *http.Request, resp *Response) error {
	return c.PutAll(ctx, []Entry{{Request: req, Response: resp}})
}

func (c *MemoryCache) PutAll(_ context.Context, entries []Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range entries {
		key := Key(e.Request)
		if _, exists := c.entries[key]; !exists {
			c.order = append(c.order, key)
		}
		c.entries[key] = stamp(e.Response)
	}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, req *http.Request) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(req)
	if _, ok := c.entries[key]; !ok {
		return false, nil
	}
	delete(c.entries, key)
	c.order = slices.DeleteFunc(c.order, func(k string) bool { return k == key })
	return true, nil
}

func (c *MemoryCache) Keys(_ context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.order), nil
}
