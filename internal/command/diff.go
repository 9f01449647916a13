// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"

	"github.com/staranto/swcache/internal/meta"
	"github.com/staranto/swcache/internal/store"
)

// DiffCommandAction compares the cached copy of an asset with what the
// origin serves now.
func DiffCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args)

	target := cmd.Args().First()
	if target == "" {
		return errors.New("a URL or path to compare is required")
	}

	storage, err := OpenStorage(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeStorage(storage)

	w, net, err := NewWorker(cmd, storage)
	if err != nil {
		return err
	}

	req, err := w.NewRequest(ctx, target)
	if err != nil {
		return err
	}

	cached, name, ok, err := store.Match(ctx, storage, req)
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", req.URL, err)
	}
	if !ok {
		return fmt.Errorf("%s is not cached: %w", req.URL, store.ErrNotFound)
	}
	log.WithField("cache", name).Debugf("cached copy of %s", req.URL)

	live, err := net.Fetch(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", req.URL, err)
	}

	return writeDiff(writer(cmd), cached, live, cmd.Bool("color"))
}

// writeDiff reports the difference between the cached and live responses.
// JSON objects get a structural diff, anything else a byte comparison.
func writeDiff(out io.Writer, cached, live *store.Response, color bool) error {
	if cached.Status != live.Status {
		fmt.Fprintf(out, "status: cached %d, live %d\n", cached.Status, live.Status)
	}

	var left map[string]any
	if json.Unmarshal(cached.Body, &left) == nil && json.Valid(live.Body) {
		d, err := gojsondiff.New().Compare(cached.Body, live.Body)
		if err == nil {
			if !d.Modified() {
				fmt.Fprintln(out, "identical")
				return nil
			}
			f := formatter.NewAsciiFormatter(left, formatter.AsciiFormatterConfig{
				ShowArrayIndex: true,
				Coloring:       color,
			})
			s, err := f.Format(d)
			if err != nil {
				return fmt.Errorf("failed to format diff: %w", err)
			}
			fmt.Fprint(out, s)
			return nil
		}
		log.WithError(err).Debug("falling back to byte comparison")
	}

	if bytes.Equal(cached.Body, live.Body) {
		fmt.Fprintln(out, "identical")
		return nil
	}
	fmt.Fprintf(out, "differs: cached %s, live %s\n",
		humanize.Bytes(uint64(len(cached.Body))), humanize.Bytes(uint64(len(live.Body))))
	return nil
}

func DiffCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:    "color",
			Aliases: []string{"c"},
			Usage:   "color the diff",
		},
	}
	flags = append(flags, NewOriginFlags("diff", meta)...)
	flags = append(flags, NewStoreFlags("diff", meta)...)

	return &cli.Command{
		Name:      "diff",
		Usage:     "compare a cached asset with the live origin",
		UsageText: "swcache diff URL|PATH [options]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags:  flags,
		Action: DiffCommandAction,
	}
}
