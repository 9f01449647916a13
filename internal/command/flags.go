// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"os"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/staranto/swcache/internal/config"
	"github.com/staranto/swcache/internal/meta"
	"github.com/staranto/swcache/internal/store"
	"github.com/staranto/swcache/internal/worker"
)

func init() {
	cfg, _ = config.Load()
}

var cfg config.Type

func newSchemaFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:        "schema",
		Usage:       "list the attributes available to --attrs",
		HideDefault: true,
	}
}

// NewGlobalFlags returns the output flags shared by the listing commands,
// sourced from the config file under params[0] and then globally.
func NewGlobalFlags(params ...string) (flags []cli.Flag) {
	ns := params[0]
	flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "attrs",
			Aliases: []string{"a"},
			Usage:   "comma-separated list of attributes to include in results",
		},
		&cli.BoolWithInverseFlag{
			Name:    "color",
			Aliases: []string{"c"},
			Usage:   "enable colored text output",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(ns+"."+"color", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("color", altsrc.StringSourcer(cfg.Source)),
			),
			Value: term.IsTerminal(int(os.Stdout.Fd())),
		},
		&cli.StringFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "comma-separated list of filters to apply to results",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(ns+"."+"output", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("output", altsrc.StringSourcer(cfg.Source)),
			),
			Value: "text",
			Validator: func(value string) error {
				return FlagValidators(value, OutputValidator)
			},
		},
		&cli.StringFlag{
			Name:    "sort",
			Aliases: []string{"s"},
			Usage:   "comma-separated list of attributes to sort the results by",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(ns+"."+"sort", altsrc.StringSourcer(cfg.Source)),
			),
		},
		&cli.BoolWithInverseFlag{
			Name:    "titles",
			Aliases: []string{"t"},
			Usage:   "show titles with text output",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(ns+"."+"titles", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("titles", altsrc.StringSourcer(cfg.Source)),
			),
			Value: false,
		},
	}

	return
}

// NewStoreFlags returns the flags that select and configure the cache
// storage. A value in the environment wins over the config file.
func NewStoreFlags(ns string, m meta.Meta) []cli.Flag {
	return []cli.Flag{
		envOrConfig(ns, m.Env.Backend, &cli.StringFlag{
			Name:    "backend",
			Aliases: []string{"b"},
			Usage:   "cache storage backend (memory, disk, sqlite, s3)",
			Value:   store.BackendDisk,
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator, BackendValidator)
			},
		}),
		envOrConfig(ns, m.Env.CacheDir, &cli.StringFlag{
			Name:  "cache-dir",
			Usage: "base directory for the disk and sqlite backends",
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator)
			},
		}),
		envOrConfig(ns, "", &cli.StringFlag{
			Name:  "sqlite-path",
			Usage: "sqlite database file, defaults to <cache-dir>/swcache.db",
		}),
		envOrConfig(ns, "", &cli.StringFlag{
			Name:    "name",
			Aliases: []string{"n"},
			Usage:   "cache name",
			Value:   worker.CacheName,
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator, NotEmptyValidator)
			},
		}),
		envOrConfig(ns, "", &cli.StringFlag{
			Name:  "s3-bucket",
			Usage: "bucket for the s3 backend",
		}),
		envOrConfig(ns, "", &cli.StringFlag{
			Name:  "s3-prefix",
			Usage: "key prefix for the s3 backend",
			Value: "swcache",
		}),
		envOrConfig(ns, "", &cli.StringFlag{
			Name:  "s3-region",
			Usage: "region for the s3 backend",
		}),
		envOrConfig(ns, "", &cli.StringFlag{
			Name:  "s3-profile",
			Usage: "shared config profile for the s3 backend",
		}),
		envOrConfig(ns, "", &cli.StringFlag{
			Name:  "s3-endpoint",
			Usage: "custom endpoint for S3 compatible stores",
		}),
	}
}

// NewOriginFlags returns the flags needed to reach the origin server.
func NewOriginFlags(ns string, m meta.Meta) []cli.Flag {
	return []cli.Flag{
		envOrConfig(ns, m.Env.Origin, &cli.StringFlag{
			Name:    "origin",
			Aliases: []string{"O"},
			Usage:   "base URL the assets are served from",
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator, OriginValidator)
			},
		}),
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "network timeout per request, 0 for none",
			Value: 30 * time.Second,
			Sources: cli.NewValueSourceChain(
				yaml.YAML(ns+"."+"timeout", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("timeout", altsrc.StringSourcer(cfg.Source)),
			),
		},
	}
}

// envOrConfig makes envValue the default of flag when set, and otherwise
// sources the flag from the config file.
func envOrConfig(ns string, envValue string, flag *cli.StringFlag) *cli.StringFlag {
	if envValue != "" {
		flag.Value = envValue
		return flag
	}
	return NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, flag)
}

// NameSpacedValueChainFlagFromConfigFile adds namespaced and global config file
// sources to the given flag's Sources chain.
func NameSpacedValueChainFlagFromConfigFile(ns string, path string, flag *cli.StringFlag) *cli.StringFlag {
	src := yaml.YAML(ns+"."+flag.Name, altsrc.StringSourcer(path))
	flag.Sources.Chain = append(flag.Sources.Chain, src)

	src = yaml.YAML(flag.Name, altsrc.StringSourcer(path))
	flag.Sources.Chain = append(flag.Sources.Chain, src)

	return flag
}
