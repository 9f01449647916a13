// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package network performs the live fetches behind cache misses, bypassed
// requests and install time precaching.
package network

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/staranto/swcache/internal/store"
)

// hopHeaders are connection specific and never forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Client fetches requests over HTTP. A non-2xx status is a response, not an
// error; only transport failures are errors. Nothing is retried.
type Client struct {
	HTTP *http.Client
}

// New returns a Client on a pooled cleanhttp client. A zero timeout means
// none.
func New(timeout time.Duration) *Client {
	c := cleanhttp.DefaultPooledClient()
	c.Timeout = timeout
	// Redirects are followed, as a browser fetch would.
	return &Client{HTTP: c}
}

// Fetch performs req and reads the whole body.
func (c *Client) Fetch(ctx context.Context, req *http.Request) (*store.Response, error) {
	out := req.Clone(ctx)
	out.RequestURI = ""
	out.Host = ""
	for _, h := range hopHeaders {
		out.Header.Del(h)
	}
	if conn := req.Header.Get("Connection"); conn != "" {
		for _, f := range strings.Split(conn, ",") {
			out.Header.Del(strings.TrimSpace(f))
		}
	}

	hc := c.HTTP
	if hc == nil {
		hc = cleanhttp.DefaultPooledClient()
	}

	resp, err := hc.Do(out)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	header := resp.Header.Clone()
	for _, h := range hopHeaders {
		header.Del(h)
	}
	// The body is held in full, so any length on the wire no longer applies.
	// A HEAD response has no body and keeps the origin's length.
	if out.Method != http.MethodHead {
		header.Del("Content-Length")
	}

	log.WithField("status", resp.StatusCode).Debugf("fetched %s", out.URL)

	return &store.Response{
		URL:    resp.Request.URL.String(),
		Status: resp.StatusCode,
		Header: header,
		Body:   body.Bytes(),
	}, nil
}
