// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package proxy exposes a worker host as an HTTP server. Every incoming
// request becomes a fetch event against the configured origin.
package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/apex/log"

	"github.com/staranto/swcache/internal/store"
	"github.com/staranto/swcache/internal/worker"
)

// SourceHeader reports whether a response came from the cache or the network.
const SourceHeader = "X-Swcache-Source"

// Dispatcher routes a request through the worker.
type Dispatcher interface {
	DispatchFetch(ctx context.Context, req *http.Request) (*store.Response, worker.Source, error)
}

// Proxy serves requests on behalf of origin.
type Proxy struct {
	host   Dispatcher
	origin *url.URL
}

func New(host Dispatcher, origin *url.URL) (*Proxy, error) {
	if host == nil {
		return nil, errors.New("host is required")
	}
	if origin == nil || !origin.IsAbs() {
		return nil, errors.New("origin must be an absolute URL")
	}
	return &Proxy{host: host, origin: origin}, nil
}

// Target maps an incoming request URL onto the origin, keeping path and query.
func (p *Proxy) Target(in *url.URL) *url.URL {
	u := *p.origin
	u.Path = in.Path
	u.RawPath = in.RawPath
	u.RawQuery = in.RawQuery
	u.Fragment = ""
	u.RawFragment = ""
	return &u
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	out := r.Clone(r.Context())
	out.URL = p.Target(r.URL)
	out.Host = out.URL.Host
	out.RequestURI = ""

	ll := log.WithField("method", r.Method).WithField("url", out.URL.String())

	resp, src, err := p.host.DispatchFetch(r.Context(), out)
	if err != nil {
		ll.WithError(err).Warn("fetch failed")
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set(SourceHeader, string(src))
	if r.Method != http.MethodHead {
		w.Header().Set("Content-Length", strconv.Itoa(len(resp.Body)))
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(resp.Body); err != nil {
		ll.WithError(err).Debug("failed to write response")
		return
	}
	ll.WithField("source", src).WithField("status", status).Debug("served")
}
