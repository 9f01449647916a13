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

// PruneCommandAction deletes every cache except --name.
func PruneCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args)

	storage, err := OpenStorage(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeStorage(storage)

	keep := cmd.String("name")
	out := writer(cmd)

	if cmd.Bool("dry-run") {
		names, err := storage.Keys(ctx)
		if err != nil {
			return fmt.Errorf("failed to list caches: %w", err)
		}
		for _, name := range names {
			if name != keep {
				fmt.Fprintf(out, "would delete %s\n", name)
			}
		}
		return nil
	}

	deleted, err := worker.Prune(ctx, storage, keep)
	for _, name := range deleted {
		fmt.Fprintf(out, "deleted %s\n", name)
	}
	return err
}

func PruneCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "only print the caches that would be deleted",
		},
	}
	flags = append(flags, NewStoreFlags("prune", meta)...)

	return &cli.Command{
		Name:      "prune",
		Usage:     "delete every cache except the current one",
		UsageText: "swcache prune [--name NAME] [--dry-run] [options]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags:  flags,
		Action: PruneCommandAction,
	}
}
