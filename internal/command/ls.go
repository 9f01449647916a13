// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/swcache/internal/meta"
	"github.com/staranto/swcache/internal/store"
)

// entryRow is one cached request/response pair as listed by ls.
type entryRow struct {
	Cache    string      `json:"cache"`
	Method   string      `json:"method"`
	URL      string      `json:"url"`
	Status   int         `json:"status"`
	Type     string      `json:"type"`
	Size     int         `json:"size"`
	StoredAt time.Time   `json:"stored_at"`
	Header   http.Header `json:"header,omitempty"`
}

// cacheRow summarizes one named cache as listed by caches.
type cacheRow struct {
	Name    string `json:"name"`
	Entries int    `json:"entries"`
	Size    int    `json:"size"`
	Current bool   `json:"current"`
}

// requestFromKey rebuilds a request from a store key.
func requestFromKey(ctx context.Context, key string) (*http.Request, error) {
	method, target := http.MethodGet, store.URLFromKey(key)
	if len(target) < len(key) {
		method = key[:len(key)-len(target)-1]
	}
	return http.NewRequestWithContext(ctx, method, target, nil)
}

// cacheEntries returns every entry of cache name.
func cacheEntries(ctx context.Context, storage store.Storage, name string) ([]entryRow, error) {
	c, err := storage.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %s: %w", name, err)
	}
	keys, err := c.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", name, err)
	}

	rows := make([]entryRow, 0, len(keys))
	for _, key := range keys {
		req, err := requestFromKey(ctx, key)
		if err != nil {
			log.WithError(err).Warnf("skipping unreadable key %q", key)
			continue
		}
		resp, ok, err := c.Match(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		if !ok {
			continue
		}
		rows = append(rows, entryRow{
			Cache:    name,
			Method:   req.Method,
			URL:      req.URL.String(),
			Status:   resp.Status,
			Type:     resp.ContentType(),
			Size:     len(resp.Body),
			StoredAt: resp.StoredAt,
			Header:   resp.Header,
		})
	}
	return rows, nil
}

// selectCaches returns the cache names to list: all of them, or --name if it
// exists.
func selectCaches(ctx context.Context, cmd *cli.Command, storage store.Storage) ([]string, error) {
	if cmd.Bool("all") {
		return storage.Keys(ctx)
	}
	name := cmd.String("name")
	ok, err := storage.Has(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("cache %s: %w", name, store.ErrNotFound)
	}
	return []string{name}, nil
}

func LsCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args)

	if DumpSchemaIfRequested(cmd, reflect.TypeOf(entryRow{})) {
		return nil
	}

	al, err := BuildAttrs(cmd, "cache", "url", "status", "type", "size::h", "stored_at:stored:a")
	if err != nil {
		return err
	}
	log.Debugf("attrs: %v", al.String())

	storage, err := OpenStorage(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeStorage(storage)

	names, err := selectCaches(ctx, cmd, storage)
	if err != nil {
		return err
	}

	rows := []entryRow{}
	for _, name := range names {
		entries, err := cacheEntries(ctx, storage, name)
		if err != nil {
			return err
		}
		rows = append(rows, entries...)
	}

	return Emit(rows, al, cmd)
}

func LsCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	qcb := &QueryCommandBuilder{
		Name:      "ls",
		Usage:     "list the entries of a cache",
		UsageText: "swcache ls [--name NAME | --all] [options]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "all",
				Usage: "list the entries of every cache",
			},
		},
		Action: LsCommandAction,
		Meta:   meta,
	}
	return qcb.Build()
}

func CachesCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args)

	if DumpSchemaIfRequested(cmd, reflect.TypeOf(cacheRow{})) {
		return nil
	}

	al, err := BuildAttrs(cmd, "name", "entries", "size::h", "current")
	if err != nil {
		return err
	}

	storage, err := OpenStorage(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeStorage(storage)

	names, err := storage.Keys(ctx)
	if err != nil {
		return fmt.Errorf("failed to list caches: %w", err)
	}

	current := cmd.String("name")
	rows := make([]cacheRow, 0, len(names))
	for _, name := range names {
		entries, err := cacheEntries(ctx, storage, name)
		if err != nil {
			return err
		}
		row := cacheRow{Name: name, Entries: len(entries), Current: name == current}
		for _, e := range entries {
			row.Size += e.Size
		}
		rows = append(rows, row)
	}

	return Emit(rows, al, cmd)
}

func CachesCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	qcb := &QueryCommandBuilder{
		Name:      "caches",
		Usage:     "list the named caches",
		UsageText: "swcache caches [options]",
		Action:    CachesCommandAction,
		Meta:      meta,
	}
	return qcb.Build()
}
