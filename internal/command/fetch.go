// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/apex/log"
	"github.com/tidwall/gjson"
	"github.com/urfave/cli/v3"

	"github.com/staranto/swcache/internal/meta"
	"github.com/staranto/swcache/internal/proxy"
)

// FetchCommandAction answers one request the way the worker would and writes
// the body, or the value at --path when the body is JSON.
func FetchCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args)

	target := cmd.Args().First()
	if target == "" {
		return errors.New("a URL or path to fetch is required")
	}

	storage, err := OpenStorage(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeStorage(storage)

	w, _, err := NewWorker(cmd, storage)
	if err != nil {
		return err
	}

	req, err := w.NewRequest(ctx, target)
	if err != nil {
		return err
	}
	resp, src, err := w.Fetch(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", req.URL, err)
	}
	log.WithField("source", src).WithField("status", resp.Status).Debug("fetched")

	out := writer(cmd)
	if cmd.Bool("include") {
		fmt.Fprintf(out, "%d %s\n", resp.Status, http.StatusText(resp.Status))
		names := make([]string, 0, len(resp.Header))
		for k := range resp.Header {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			for _, v := range resp.Header[k] {
				fmt.Fprintf(out, "%s: %s\n", k, v)
			}
		}
		fmt.Fprintf(out, "%s: %s\n\n", proxy.SourceHeader, src)
	}

	if path := cmd.String("path"); path != "" {
		if !gjson.ValidBytes(resp.Body) {
			return fmt.Errorf("response from %s is not JSON", req.URL)
		}
		r := gjson.GetBytes(resp.Body, path)
		if !r.Exists() {
			return fmt.Errorf("path %q not found in %s", path, req.URL)
		}
		fmt.Fprintln(out, r.String())
		return nil
	}

	_, err = out.Write(resp.Body)
	return err
}

func FetchCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "path",
			Aliases: []string{"p"},
			Usage:   "print only the value at this gjson path of a JSON body",
		},
		&cli.BoolFlag{
			Name:    "include",
			Aliases: []string{"i"},
			Usage:   "print the status, headers and source before the body",
		},
	}
	flags = append(flags, NewOriginFlags("fetch", meta)...)
	flags = append(flags, NewStoreFlags("fetch", meta)...)

	return &cli.Command{
		Name:      "fetch",
		Usage:     "answer one request cache-first, as the worker would",
		UsageText: "swcache fetch URL|PATH [--path GJSON] [--include] [options]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags:  flags,
		Action: FetchCommandAction,
	}
}
