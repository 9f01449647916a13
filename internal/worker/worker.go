// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"

	"github.com/staranto/swcache/internal/store"
)

// CacheName tags the one logical cache version. Bump it to ship new assets.
const CacheName = "tqqq-tracker-v1"

// BypassPattern marks the dynamic data file that is never served from cache.
const BypassPattern = "data.json"

// Assets are precached at install, in order.
var Assets = []string{
	"/",
	"/index.html",
	"/style.css",
	"/logo.svg",
	"/manifest.json",
}

// ErrInstall wraps every install failure.
var ErrInstall = errors.New("install failed")

// Options configures a Worker. Nil Assets or Bypass take the defaults above;
// an empty, non-nil slice means none.
type Options struct {
	CacheName string
	Assets    []string
	Bypass    []string
	// Origin resolves relative asset paths.
	Origin *url.URL
	// Prune deletes every other cache on activation.
	Prune bool
}

// DefaultOptions returns the built-in cache name, assets and bypass rule.
func DefaultOptions(origin *url.URL) Options {
	return Options{
		CacheName: CacheName,
		Assets:    slices.Clone(Assets),
		Bypass:    []string{BypassPattern},
		Origin:    origin,
	}
}

// Worker answers the install, activate and fetch events. It holds no mutable
// state of its own; everything lives in the storage.
type Worker struct {
	opts    Options
	storage store.Storage
	net     Fetcher
}

func New(storage store.Storage, net Fetcher, opts Options) (*Worker, error) {
	if storage == nil {
		return nil, errors.New("storage is required")
	}
	if net == nil {
		return nil, errors.New("network fetcher is required")
	}
	if opts.Origin == nil || !opts.Origin.IsAbs() {
		return nil, fmt.Errorf("origin must be an absolute URL, got %v", opts.Origin)
	}
	if opts.CacheName == "" {
		opts.CacheName = CacheName
	}
	if opts.Assets == nil {
		opts.Assets = slices.Clone(Assets)
	}
	if opts.Bypass == nil {
		opts.Bypass = []string{BypassPattern}
	}
	return &Worker{opts: opts, storage: storage, net: net}, nil
}

func (w *Worker) Options() Options { return w.opts }

// Resolve turns an asset path into an absolute URL on the origin.
func (w *Worker) Resolve(ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", ref, err)
	}
	return w.opts.Origin.ResolveReference(u), nil
}

// NewRequest builds a GET for ref resolved against the origin.
func (w *Worker) NewRequest(ctx context.Context, ref string) (*http.Request, error) {
	u, err := w.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
}

// Bypassed reports whether the request URL contains a bypass pattern.
func (w *Worker) Bypassed(req *http.Request) bool {
	target := req.URL.String()
	for _, p := range w.opts.Bypass {
		if p != "" && strings.Contains(target, p) {
			return true
		}
	}
	return false
}

// Install opens the cache and stores every asset, or none of them. All assets
// are fetched before anything is written; a transport error or a non-2xx
// status on any one fails the whole install.
func (w *Worker) Install(ctx context.Context) error {
	name := w.opts.CacheName
	cache, err := w.storage.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: failed to open cache %s: %w", ErrInstall, name, err)
	}

	entries := make([]store.Entry, len(w.opts.Assets))
	g, gctx := errgroup.WithContext(ctx)
	for i, asset := range w.opts.Assets {
		g.Go(func() error {
			req, err := w.NewRequest(gctx, asset)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrInstall, asset, err)
			}
			resp, err := w.net.Fetch(gctx, req)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrInstall, asset, err)
			}
			if !resp.OK() {
				return fmt.Errorf("%w: %s: bad response status %d", ErrInstall, asset, resp.Status)
			}
			entries[i] = store.Entry{Request: req, Response: resp}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := cache.PutAll(ctx, entries); err != nil {
		return fmt.Errorf("%w: failed to store assets: %w", ErrInstall, err)
	}

	log.WithField("cache", name).Infof("precached %d assets", len(entries))
	return nil
}

// Fetch answers a request. Bypassed requests always go to the network. Others
// are served from any cache holding a match, without a freshness check, and
// otherwise from the network. Network results are never written back. A
// failed cache lookup fails the fetch.
func (w *Worker) Fetch(ctx context.Context, req *http.Request) (*store.Response, Source, error) {
	ll := log.WithField("url", req.URL.String())

	if w.Bypassed(req) {
		ll.Debug("bypass")
		resp, err := w.net.Fetch(ctx, req)
		return resp, SourceNetwork, err
	}

	resp, name, ok, err := store.Match(ctx, w.storage, req)
	if err != nil {
		ll.WithError(err).Warn("cache lookup failed")
		return nil, SourceCache, fmt.Errorf("failed to look up %s: %w", req.URL, err)
	}
	if ok {
		ll.WithField("cache", name).Debug("hit")
		return resp, SourceCache, nil
	}

	ll.Debug("miss")
	resp, err = w.net.Fetch(ctx, req)
	return resp, SourceNetwork, err
}

// Activate deletes every cache except the current one. Only wired when
// Options.Prune is set.
func (w *Worker) Activate(ctx context.Context) error {
	deleted, err := Prune(ctx, w.storage, w.opts.CacheName)
	if err != nil {
		return err
	}
	if len(deleted) > 0 {
		log.WithField("cache", w.opts.CacheName).Infof("pruned %v", deleted)
	}
	return nil
}

// Prune deletes every cache in storage other than keep and returns the names
// deleted.
func Prune(ctx context.Context, storage store.Storage, keep string) ([]string, error) {
	names, err := storage.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list caches: %w", err)
	}

	var deleted []string
	for _, name := range names {
		if name == keep {
			continue
		}
		ok, err := storage.Delete(ctx, name)
		if err != nil {
			return deleted, fmt.Errorf("failed to delete cache %s: %w", name, err)
		}
		if ok {
			deleted = append(deleted, name)
		}
	}
	return deleted, nil
}

// Register adds the worker's listeners to h under the install and fetch
// event names, and activate when pruning.
func (w *Worker) Register(h *Host) error {
	if err := h.AddEventListener(EventInstall, func(_ context.Context, ev Event) {
		if e, ok := ev.(*ExtendableEvent); ok {
			e.WaitUntil(w.Install)
		}
	}); err != nil {
		return err
	}

	if w.opts.Prune {
		if err := h.AddEventListener(EventActivate, func(_ context.Context, ev Event) {
			if e, ok := ev.(*ExtendableEvent); ok {
				e.WaitUntil(w.Activate)
			}
		}); err != nil {
			return err
		}
	}

	return h.AddEventListener(EventFetch, func(_ context.Context, ev Event) {
		e, ok := ev.(*FetchEvent)
		if !ok {
			return
		}
		req := e.Request
		_ = e.RespondWith(func(ctx context.Context) (*store.Response, Source, error) {
			return w.Fetch(ctx, req)
		})
	})
}
