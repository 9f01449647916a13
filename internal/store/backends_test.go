// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package store

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendFactory struct {
	name    string
	ordered bool
	open    func(t *testing.T) Storage
}

func backends() []backendFactory {
	return []backendFactory{
		{
			name:    BackendMemory,
			ordered: true,
			open:    func(t *testing.T) Storage { return NewMemoryStorage() },
		},
		{
			name: BackendDisk,
			open: func(t *testing.T) Storage {
				s, err := NewDiskStorage(filepath.Join(t.TempDir(), "cache"))
				require.NoError(t, err)
				return s
			},
		},
		{
			name:    BackendSQLite,
			ordered: true,
			open: func(t *testing.T) Storage {
				s, err := OpenSQLite(filepath.Join(t.TempDir(), "swcache.db"))
				require.NoError(t, err)
				t.Cleanup(func() { _ = s.Close() })
				return s
			},
		},
		{
			name: BackendS3,
			open: func(t *testing.T) Storage {
				s, err := NewS3Storage(newFakeS3(), "bucket", "swcache")
				require.NoError(t, err)
				return s
			},
		},
	}
}

func get(url string) *http.Request {
	return httptest.NewRequest(http.MethodGet, url, nil)
}

func ok(url, body string) *Response {
	return &Response{
		URL:    url,
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": {"text/plain"}},
		Body:   []byte(body),
	}
}

func TestStorage_OpenHasKeys(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)

			has, err := s.Has(ctx, "tqqq-tracker-v1")
			require.NoError(t, err)
			assert.False(t, has)

			c, err := s.Open(ctx, "tqqq-tracker-v1")
			require.NoError(t, err)
			assert.Equal(t, "tqqq-tracker-v1", c.Name())

			_, err = s.Open(ctx, "tqqq-tracker-v2")
			require.NoError(t, err)
			// Reopening must not duplicate.
			_, err = s.Open(ctx, "tqqq-tracker-v1")
			require.NoError(t, err)

			has, err = s.Has(ctx, "tqqq-tracker-v1")
			require.NoError(t, err)
			assert.True(t, has)

			names, err := s.Keys(ctx)
			require.NoError(t, err)
			if b.ordered {
				assert.Equal(t, []string{"tqqq-tracker-v1", "tqqq-tracker-v2"}, names)
			} else {
				assert.ElementsMatch(t, []string{"tqqq-tracker-v1", "tqqq-tracker-v2"}, names)
			}
		})
	}
}

func TestCache_PutMatch(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			c, err := s.Open(ctx, "v1")
			require.NoError(t, err)

			require.NoError(t, c.Put(ctx, get("http://origin/style.css"), ok("http://origin/style.css", "body{}")))

			got, hit, err := c.Match(ctx, get("http://origin/style.css"))
			require.NoError(t, err)
			require.True(t, hit)
			assert.Equal(t, http.StatusOK, got.Status)
			assert.Equal(t, "body{}", string(got.Body))
			assert.Equal(t, "text/plain", got.ContentType())
			assert.Equal(t, "http://origin/style.css", got.URL)
			assert.False(t, got.StoredAt.IsZero())

			// Fragments are ignored.
			_, hit, err = c.Match(ctx, get("http://origin/style.css#x"))
			require.NoError(t, err)
			assert.True(t, hit)

			// Query strings are not.
			_, hit, err = c.Match(ctx, get("http://origin/style.css?v=2"))
			require.NoError(t, err)
			assert.False(t, hit)

			// Only GET matches.
			post := httptest.NewRequest(http.MethodPost, "http://origin/style.css", strings.NewReader(""))
			_, hit, err = c.Match(ctx, post)
			require.NoError(t, err)
			assert.False(t, hit)
		})
	}
}

func TestCache_PutAllKeysDelete(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			c, err := s.Open(ctx, "v1")
			require.NoError(t, err)

			urls := []string{"http://origin/", "http://origin/index.html", "http://origin/logo.svg"}
			var entries []Entry
			for _, u := range urls {
				entries = append(entries, Entry{Request: get(u), Response: ok(u, u)})
			}
			require.NoError(t, c.PutAll(ctx, entries))

			keys, err := c.Keys(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{
				"GET http://origin/",
				"GET http://origin/index.html",
				"GET http://origin/logo.svg",
			}, keys)

			// Overwrite keeps the count.
			require.NoError(t, c.Put(ctx, get(urls[0]), ok(urls[0], "new")))
			keys, err = c.Keys(ctx)
			require.NoError(t, err)
			assert.Len(t, keys, 3)
			got, _, err := c.Match(ctx, get(urls[0]))
			require.NoError(t, err)
			assert.Equal(t, "new", string(got.Body))

			deleted, err := c.Delete(ctx, get(urls[1]))
			require.NoError(t, err)
			assert.True(t, deleted)
			deleted, err = c.Delete(ctx, get(urls[1]))
			require.NoError(t, err)
			assert.False(t, deleted)

			keys, err = c.Keys(ctx)
			require.NoError(t, err)
			assert.Len(t, keys, 2)
		})
	}
}

func TestStorage_Delete(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			c, err := s.Open(ctx, "old")
			require.NoError(t, err)
			require.NoError(t, c.Put(ctx, get("http://origin/"), ok("http://origin/", "x")))
			_, err = s.Open(ctx, "current")
			require.NoError(t, err)

			deleted, err := s.Delete(ctx, "old")
			require.NoError(t, err)
			assert.True(t, deleted)

			deleted, err = s.Delete(ctx, "old")
			require.NoError(t, err)
			assert.False(t, deleted)

			names, err := s.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"current"}, names)

			// A reopened cache starts empty.
			c, err = s.Open(ctx, "old")
			require.NoError(t, err)
			keys, err := c.Keys(ctx)
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestS3Cache_PutAllRollsBack(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	s, err := NewS3Storage(fake, "bucket", "")
	require.NoError(t, err)

	c, err := s.Open(ctx, "v1")
	require.NoError(t, err)
	before := fake.count()

	failing := c.(*S3Cache).objectKey(Key(get("http://origin/logo.svg")))
	fake.failPut = func(key string) bool { return key == failing }

	err = c.PutAll(ctx, []Entry{
		{Request: get("http://origin/"), Response: ok("http://origin/", "a")},
		{Request: get("http://origin/logo.svg"), Response: ok("http://origin/logo.svg", "b")},
	})
	assert.Error(t, err)
	assert.Equal(t, before, fake.count())
}

func TestS3Cache_PutAllRestoresPriorEntries(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	s, err := NewS3Storage(fake, "bucket", "")
	require.NoError(t, err)

	c, err := s.Open(ctx, "v1")
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, get("http://origin/style.css"), ok("http://origin/style.css", "old")))
	before := fake.count()

	failing := c.(*S3Cache).objectKey(Key(get("http://origin/logo.svg")))
	fake.failPut = func(key string) bool { return key == failing }

	err = c.PutAll(ctx, []Entry{
		{Request: get("http://origin/style.css"), Response: ok("http://origin/style.css", "new")},
		{Request: get("http://origin/logo.svg"), Response: ok("http://origin/logo.svg", "svg")},
	})
	assert.Error(t, err)
	assert.Equal(t, before, fake.count())

	resp, hit, err := c.Match(ctx, get("http://origin/style.css"))
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "old", string(resp.Body))
}

func TestDiskCache_PutAllRestoresPriorEntries(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewDiskStorage(dir)
	require.NoError(t, err)

	c, err := s.Open(ctx, "v1")
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, get("http://origin/style.css"), ok("http://origin/style.css", "old")))

	// A directory where the logo entry belongs makes its replacement fail.
	blocked := c.(*DiskCache).path(Key(get("http://origin/logo.svg")))
	require.NoError(t, os.MkdirAll(blocked, 0o755))

	err = c.PutAll(ctx, []Entry{
		{Request: get("http://origin/style.css"), Response: ok("http://origin/style.css", "new")},
		{Request: get("http://origin/index.html"), Response: ok("http://origin/index.html", "index")},
		{Request: get("http://origin/logo.svg"), Response: ok("http://origin/logo.svg", "svg")},
	})
	assert.Error(t, err)

	resp, hit, err := c.Match(ctx, get("http://origin/style.css"))
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "old", string(resp.Body))

	_, hit, err = c.Match(ctx, get("http://origin/index.html"))
	require.NoError(t, err)
	assert.False(t, hit)

	tmps, err := filepath.Glob(filepath.Join(c.(*DiskCache).dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, tmps)
}

func TestNewS3Storage_RequiresBucket(t *testing.T) {
	_, err := NewS3Storage(newFakeS3(), "", "x")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := New(ctx, Settings{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, s)

	s, err = New(ctx, Settings{Backend: BackendDisk, Dir: dir})
	require.NoError(t, err)
	assert.IsType(t, &DiskStorage{}, s)

	s, err = New(ctx, Settings{Backend: BackendSQLite, Dir: dir})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStorage{}, s)
	assert.FileExists(t, filepath.Join(dir, "swcache.db"))
	assert.NoError(t, s.Close())

	_, err = New(ctx, Settings{Backend: "redis"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store backend")
}

func TestDiskStorage_RequiresBase(t *testing.T) {
	_, err := NewDiskStorage("")
	assert.Error(t, err)
}

func TestDiskCache_ContextCanceled(t *testing.T) {
	s, err := NewDiskStorage(t.TempDir())
	require.NoError(t, err)
	c, err := s.Open(context.Background(), "v1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = c.PutAll(ctx, []Entry{{Request: get("http://origin/"), Response: ok("http://origin/", "x")}})
	assert.True(t, errors.Is(err, context.Canceled))

	keys, err := c.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMatch_AcrossCaches(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			older, err := s.Open(ctx, "tqqq-tracker-v0")
			require.NoError(t, err)
			require.NoError(t, older.Put(ctx, get("http://origin/legacy.js"), ok("http://origin/legacy.js", "old")))
			current, err := s.Open(ctx, "tqqq-tracker-v1")
			require.NoError(t, err)
			require.NoError(t, current.Put(ctx, get("http://origin/style.css"), ok("http://origin/style.css", "new")))

			resp, name, hit, err := Match(ctx, s, get("http://origin/legacy.js"))
			require.NoError(t, err)
			assert.True(t, hit)
			assert.Equal(t, "tqqq-tracker-v0", name)
			assert.Equal(t, "old", string(resp.Body))

			_, name, hit, err = Match(ctx, s, get("http://origin/style.css"))
			require.NoError(t, err)
			assert.True(t, hit)
			assert.Equal(t, "tqqq-tracker-v1", name)

			_, _, hit, err = Match(ctx, s, get("http://origin/unknown.png"))
			require.NoError(t, err)
			assert.False(t, hit)
		})
	}
}
