// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrNotFound is returned when a named cache does not exist.
var ErrNotFound = errors.New("cache not found")

// Response is a stored response. Bodies are held in full; there is no range
// support.
type Response struct {
	URL      string      `json:"url"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header,omitempty"`
	Body     []byte      `json:"body,omitempty"`
	StoredAt time.Time   `json:"stored_at,omitempty"`
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status <= 299
}

// ContentType returns the Content-Type header, if any.
func (r *Response) ContentType() string {
	if r == nil || r.Header == nil {
		return ""
	}
	return r.Header.Get("Content-Type")
}

// Clone returns a deep copy so callers can't mutate what a backend holds.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	c := *r
	c.Header = r.Header.Clone()
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	return &c
}

// Entry pairs a request with the response to store for it.
type Entry struct {
	Request  *http.Request
	Response *Response
}

// Storage is the set of named caches.
type Storage interface {
	// Open returns the named cache, creating it if needed.
	Open(ctx context.Context, name string) (Cache, error)
	// Has reports whether the named cache exists.
	Has(ctx context.Context, name string) (bool, error)
	// Delete removes the named cache and all of its entries. It reports
	// whether the cache existed.
	Delete(ctx context.Context, name string) (bool, error)
	// Keys returns the names of all caches.
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Cache is a single named request to response map.
type Cache interface {
	Name() string
	// Match looks up a request. Only GET requests can match.
	Match(ctx context.Context, req *http.Request) (*Response, bool, error)
	Put(ctx context.Context, req *http.Request, resp *Response) error
	// PutAll stores every entry or, where the backend allows it, none.
	PutAll(ctx context.Context, entries []Entry) error
	Delete(ctx context.Context, req *http.Request) (bool, error)
	// Keys returns the request keys of all entries.
	Keys(ctx context.Context) ([]string, error)
}

// Match searches every cache in storage order and returns the first hit and
// the name of the cache holding it.
func Match(ctx context.Context, s Storage, req *http.Request) (*Response, string, bool, error) {
	if !matchable(req) {
		return nil, "", false, nil
	}
	names, err := s.Keys(ctx)
	if err != nil {
		return nil, "", false, err
	}
	for _, name := range names {
		c, err := s.Open(ctx, name)
		if err != nil {
			return nil, "", false, err
		}
		resp, ok, err := c.Match(ctx, req)
		if err != nil {
			return nil, "", false, fmt.Errorf("failed to match in %s: %w", name, err)
		}
		if ok {
			return resp, name, true, nil
		}
	}
	return nil, "", false, nil
}

// Key returns the lookup key for a request: the method and the absolute URL
// without its fragment. The query string is part of the key.
func Key(req *http.Request) string {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	u := *req.URL
	u.Fragment = ""
	u.RawFragment = ""
	return method + " " + u.String()
}

// URLFromKey strips the method from a key.
func URLFromKey(key string) string {
	if _, u, ok := strings.Cut(key, " "); ok {
		return u
	}
	return key
}

// matchable reports whether a request may be answered from a cache.
func matchable(req *http.Request) bool {
	return req.Method == "" || strings.EqualFold(req.Method, http.MethodGet)
}

// record is the serialized form of an entry used by the disk, sqlite and s3
// backends.
type record struct {
	Key string `json:"key"`
	*Response
}

func encodeRecord(key string, resp *Response) ([]byte, error) {
	b, err := json.Marshal(record{Key: key, Response: resp})
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return b, nil
}

func decodeRecord(data []byte) (string, *Response, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return "", nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	if r.Response == nil {
		r.Response = &Response{}
	}
	return r.Key, r.Response, nil
}

// stamp fills StoredAt on a copy of resp.
func stamp(resp *Response) *Response {
	c := resp.Clone()
	if c.StoredAt.IsZero() {
		c.StoredAt = time.Now().UTC()
	}
	return c
}

// encodeKey hashes k with MD5 and returns the hex string.
func encodeKey(k string) string {
	h := md5.New()
	_, _ = h.Write([]byte(k))
	return hex.EncodeToString(h.Sum(nil))
}
