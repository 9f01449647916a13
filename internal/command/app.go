// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/swcache/internal/config"
	"github.com/staranto/swcache/internal/meta"
)

func InitApp(_ context.Context, args []string) (*cli.Command, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	// The arg following the binary is the subcommand and also the namespace
	// for config values. It could be -h/--help, so skip flags.
	var ns string
	if len(args) > 1 && !strings.HasPrefix(args[1], "-") {
		ns = args[1]
	}
	config.Config.Namespace = ns

	meta := meta.Meta{
		Args:   args,
		Config: config.Config,
		Env:    env,
	}

	app := &cli.Command{
		Name:  "swcache",
		Usage: "offline asset cache",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "version",
				Aliases:     []string{"v"},
				Usage:       "swcache version info",
				HideDefault: true,
			},
		},
	}

	app.Commands = append(app.Commands,
		InstallCommandBuilder(app, meta),
		ServeCommandBuilder(app, meta),
		FetchCommandBuilder(app, meta),
		LsCommandBuilder(app, meta),
		CachesCommandBuilder(app, meta),
		PruneCommandBuilder(app, meta),
		DiffCommandBuilder(app, meta),
		CompletionCommandBuilder(app, meta),
	)

	// Make sure flags are sorted for the --help text.
	for _, cmd := range app.Commands {
		sort.Slice(cmd.Flags, func(i, j int) bool {
			return cmd.Flags[i].Names()[0] < cmd.Flags[j].Names()[0]
		})
	}

	return app, nil
}
