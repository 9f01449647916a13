// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apex/log"
)

// nameFile holds the clear-text cache name inside each cache directory. The
// directory itself is named by the hashed cache name.
const nameFile = ".name"

// DefaultDir resolves the base cache directory: os.UserCacheDir()/swcache.
// Returns ("", false) if a base cannot be resolved.
func DefaultDir() (string, bool) {
	if dir, err := os.UserCacheDir(); err == nil && dir != "" {
		return filepath.Join(dir, "swcache"), true
	}
	return "", false
}

// DiskStorage keeps each cache in a directory beneath Base. Entries are JSON
// files named by the MD5 of their key.
type DiskStorage struct {
	Base string
}

// NewDiskStorage creates the base directory if needed.
func NewDiskStorage(base string) (*DiskStorage, error) {
	if base == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(base, 0o755); err != nil { //nolint:mnd
		return nil, fmt.Errorf("failed to create cache base directory: %w", err)
	}
	return &DiskStorage{Base: base}, nil
}

func (s *DiskStorage) dir(name string) string {
	return filepath.Join(s.Base, encodeKey(name))
}

func (s *DiskStorage) Open(ctx context.Context, name string) (Cache, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := s.dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:mnd
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	p := filepath.Join(dir, nameFile)
	if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(p, []byte(name), os.FileMode(0o600)); err != nil { //nolint:mnd
			return nil, fmt.Errorf("failed to write cache name: %w", err)
		}
		log.Debugf("created cache %s in %s", name, dir)
	}
	return &DiskCache{name: name, dir: dir}, nil
}

func (s *DiskStorage) Has(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.dir(name), nameFile))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *DiskStorage) Delete(ctx context.Context, name string) (bool, error) {
	ok, err := s.Has(ctx, name)
	if err != nil || !ok {
		return false, err
	}
	if err := os.RemoveAll(s.dir(name)); err != nil {
		return false, fmt.Errorf("failed to remove cache %s: %w", name, err)
	}
	log.Debugf("removed cache %s", name)
	return true, nil
}

// Keys returns cache names ordered by creation time.
func (s *DiskStorage) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Base)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	type named struct {
		name string
		mod  int64
	}
	var found []named
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p := filepath.Join(s.Base, e.Name(), nameFile)
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		found = append(found, named{name: string(bytes.TrimSpace(b)), mod: info.ModTime().UnixNano()})
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].mod == found[j].mod {
			return found[i].name < found[j].name
		}
		return found[i].mod < found[j].mod
	})

	names := make([]string, 0, len(found))
	for _, f := range found {
		names = append(names, f.name)
	}
	return names, nil
}

func (s *DiskStorage) Close() error { return nil }

// DiskCache is a single cache directory.
type DiskCache struct {
	name string
	dir  string
}

func (c *DiskCache) Name() string { return c.name }

func (c *DiskCache) path(key string) string {
	return filepath.Join(c.dir, encodeKey(key))
}

func (c *DiskCache) Match(_ context.Context, req *http.Request) (*Response, bool, error) {
	if !matchable(req) {
		return nil, false, nil
	}
	b, err := os.ReadFile(c.path(Key(req)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read from cache: %w", err)
	}
	_, resp, err := decodeRecord(b)
	if err != nil {
		return nil, false, err
	}
	return resp, true, nil
}

func (c *DiskCache) Put(ctx context.Context, req *http.Request, resp *Response) error {
	return c.PutAll(ctx, []Entry{{Request: req, Response: resp}})
}

// PutAll encodes every entry and writes every temporary file before any entry
// is replaced. If a replacement fails, the entries already replaced get their
// previous contents back and new ones are removed.
func (c *DiskCache) PutAll(ctx context.Context, entries []Entry) error {
	type pending struct {
		path string
		tmp  string
		data []byte
	}
	batch := make([]pending, 0, len(entries))
	for _, e := range entries {
		key := Key(e.Request)
		data, err := encodeRecord(key, stamp(e.Response))
		if err != nil {
			return err
		}
		path := c.path(key)
		batch = append(batch, pending{path: path, tmp: path + ".tmp", data: data})
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	var tmps []string
	for _, p := range batch {
		if err := ctx.Err(); err != nil {
			removeAll(tmps)
			return err
		}
		if err := os.WriteFile(p.tmp, p.data, os.FileMode(0o600)); err != nil { //nolint:mnd
			removeAll(tmps)
			return fmt.Errorf("failed to write to cache: %w", err)
		}
		tmps = append(tmps, p.tmp)
	}

	var done []committed
	for i, p := range batch {
		prev, err := os.ReadFile(p.path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			removeAll(tmps[i:])
			restoreAll(done)
			return fmt.Errorf("failed to read cache entry: %w", err)
		}
		if err := os.Rename(p.tmp, p.path); err != nil {
			removeAll(tmps[i:])
			restoreAll(done)
			return fmt.Errorf("failed to write to cache: %w", err)
		}
		done = append(done, committed{path: p.path, prev: prev})
	}
	return nil
}

// committed is an entry file replaced by PutAll and what it held before. A
// nil prev means the file did not exist.
type committed struct {
	path string
	prev []byte
}

func restoreAll(done []committed) {
	for i := len(done) - 1; i >= 0; i-- {
		c := done[i]
		if c.prev == nil {
			removeAll([]string{c.path})
			continue
		}
		if err := os.WriteFile(c.path, c.prev, os.FileMode(0o600)); err != nil { //nolint:mnd
			log.WithError(err).Warnf("failed to restore cache file %s", c.path)
		}
	}
}

func (c *DiskCache) Delete(_ context.Context, req *http.Request) (bool, error) {
	err := os.Remove(c.path(Key(req)))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to remove cache entry: %w", err)
}

// Keys returns entry keys sorted lexically.
func (c *DiskCache) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == nameFile || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(c.dir, e.Name()))
		if err != nil {
			log.WithError(err).Warnf("failed to read cache entry %s", e.Name())
			continue
		}
		key, _, err := decodeRecord(b)
		if err != nil {
			log.WithError(err).Warnf("skipping cache entry %s", e.Name())
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func removeAll(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil {
			log.WithError(err).Warnf("failed to remove cache file %s", p)
		}
	}
}
