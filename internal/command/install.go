// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/swcache/internal/meta"
	"github.com/staranto/swcache/internal/worker"
)

// InstallCommandAction precaches every asset into the named cache. Either all
// of them are stored or none are.
func InstallCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args)

	storage, err := OpenStorage(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeStorage(storage)

	w, net, err := NewWorker(cmd, storage)
	if err != nil {
		return err
	}

	h := worker.NewHost(net)
	if err := w.Register(h); err != nil {
		return err
	}
	if err := h.Install(ctx); err != nil {
		return err
	}
	if w.Options().Prune {
		if err := h.Activate(ctx); err != nil {
			return err
		}
	}

	opts := w.Options()
	fmt.Fprintf(writer(cmd), "installed %d assets into %s\n", len(opts.Assets), opts.CacheName)
	return nil
}

func InstallCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:  "prune",
			Usage: "delete every other cache after a successful install",
		},
	}
	flags = append(flags, NewOriginFlags("install", meta)...)
	flags = append(flags, NewStoreFlags("install", meta)...)

	return &cli.Command{
		Name:      "install",
		Usage:     "precache the asset list from the origin",
		UsageText: "swcache install --origin URL [options]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags:  flags,
		Action: InstallCommandAction,
	}
}
