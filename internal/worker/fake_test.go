// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package worker

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/staranto/swcache/internal/store"
)

var errOffline = errors.New("network unreachable")

// fakeNet answers from a path to status/body table and counts calls.
type fakeNet struct {
	mu      sync.Mutex
	routes  map[string]string
	status  map[string]int
	offline bool
	calls   []string
}

func newFakeNet() *fakeNet {
	n := &fakeNet{routes: map[string]string{}, status: map[string]int{}}
	for _, a := range Assets {
		n.routes[a] = "asset " + a
	}
	n.routes["/data.json"] = `{"meta":{"current_price":71.5}}`
	n.routes["/unknown.png"] = "png"
	return n
}

func (n *fakeNet) Fetch(_ context.Context, req *http.Request) (*store.Response, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.calls = append(n.calls, req.URL.RequestURI())
	if n.offline {
		return nil, errOffline
	}
	body, ok := n.routes[req.URL.Path]
	status := http.StatusOK
	if s, set := n.status[req.URL.Path]; set {
		status = s
	} else if !ok {
		status = http.StatusNotFound
	}
	return &store.Response{URL: req.URL.String(), Status: status, Body: []byte(body)}, nil
}

func (n *fakeNet) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func (n *fakeNet) setOffline(v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offline = v
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func newTestWorker(t *testing.T, opts ...func(*Options)) (*Worker, *store.MemoryStorage, *fakeNet) {
	t.Helper()
	s := store.NewMemoryStorage()
	n := newFakeNet()
	o := DefaultOptions(mustURL(t, "https://x"))
	for _, fn := range opts {
		fn(&o)
	}
	w, err := New(s, n, o)
	require.NoError(t, err)
	return w, s, n
}

func entryCount(t *testing.T, s store.Storage) int {
	t.Helper()
	ctx := context.Background()
	names, err := s.Keys(ctx)
	require.NoError(t, err)
	total := 0
	for _, name := range names {
		c, err := s.Open(ctx, name)
		require.NoError(t, err)
		keys, err := c.Keys(ctx)
		require.NoError(t, err)
		total += len(keys)
	}
	return total
}

// brokenStorage fails every cache name listing.
type brokenStorage struct {
	*store.MemoryStorage
}

var errBroken = errors.New("storage unavailable")

func (brokenStorage) Keys(context.Context) ([]string, error) { return nil, errBroken }
