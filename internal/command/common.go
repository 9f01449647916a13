// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"reflect"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/swcache/internal/attrs"
	"github.com/staranto/swcache/internal/config"
	"github.com/staranto/swcache/internal/meta"
	"github.com/staranto/swcache/internal/network"
	"github.com/staranto/swcache/internal/output"
	"github.com/staranto/swcache/internal/store"
	"github.com/staranto/swcache/internal/worker"
)

// GetMeta returns the meta.Meta stored in the command's Metadata. If missing
// or of an unexpected type, it returns the zero value.
func GetMeta(cmd *cli.Command) meta.Meta {
	if cmd == nil || cmd.Metadata == nil {
		return meta.Meta{}
	}
	if m, ok := cmd.Metadata["meta"].(meta.Meta); ok {
		return m
	}
	return meta.Meta{}
}

// BuildAttrs constructs an AttrList with defaults and optional extras from
// --attrs, then applies the global transform spec.
func BuildAttrs(cmd *cli.Command, defaults ...string) (attrs.AttrList, error) {
	var al attrs.AttrList
	for _, d := range defaults {
		if err := al.Set(d); err != nil {
			return nil, err
		}
	}
	if extras := cmd.String("attrs"); extras != "" {
		if err := al.Set(extras); err != nil {
			return nil, fmt.Errorf("invalid --attrs: %w", err)
		}
	}
	al.SetGlobalTransformSpec()
	return al, nil
}

// DumpSchemaIfRequested prints the attributes of t when --schema is set, and
// returns true if it handled the request.
func DumpSchemaIfRequested(cmd *cli.Command, t reflect.Type) bool {
	if cmd.Bool("schema") {
		output.DumpSchema(writer(cmd), t)
		return true
	}
	return false
}

func outputOptions(cmd *cli.Command) output.Options {
	return output.Options{
		Format: cmd.String("output"),
		Filter: cmd.String("filter"),
		Sort:   cmd.String("sort"),
		Titles: cmd.Bool("titles"),
		Color:  cmd.Bool("color"),
	}
}

// Emit marshals rows to JSON and passes them to the common output routine.
func Emit(rows any, al attrs.AttrList, cmd *cli.Command) error {
	raw, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to marshal rows: %w", err)
	}
	return output.SliceDiceSpit(raw, al, outputOptions(cmd), writer(cmd))
}

// storeSettings reads the store flags.
func storeSettings(cmd *cli.Command) store.Settings {
	return store.Settings{
		Backend:    cmd.String("backend"),
		Dir:        cmd.String("cache-dir"),
		SQLitePath: cmd.String("sqlite-path"),
		S3: store.S3Settings{
			Bucket:   cmd.String("s3-bucket"),
			Prefix:   cmd.String("s3-prefix"),
			Region:   cmd.String("s3-region"),
			Profile:  cmd.String("s3-profile"),
			Endpoint: cmd.String("s3-endpoint"),
		},
	}
}

// OpenStorage opens the storage selected by the store flags. The caller
// closes it.
func OpenStorage(ctx context.Context, cmd *cli.Command) (store.Storage, error) {
	s, err := store.New(ctx, storeSettings(cmd))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache storage: %w", err)
	}
	return s, nil
}

// parseOrigin reads --origin.
func parseOrigin(cmd *cli.Command) (*url.URL, error) {
	raw := cmd.String("origin")
	if raw == "" {
		return nil, errors.New("an origin is required, set --origin or SWCACHE_ORIGIN")
	}
	if err := OriginValidator(raw); err != nil {
		return nil, err
	}
	return url.Parse(raw)
}

// NewWorker builds a worker on storage from the origin and store flags.
func NewWorker(cmd *cli.Command, storage store.Storage) (*worker.Worker, *network.Client, error) {
	origin, err := parseOrigin(cmd)
	if err != nil {
		return nil, nil, err
	}

	opts := worker.DefaultOptions(origin)
	opts.CacheName = cmd.String("name")
	opts.Prune = cmd.Bool("prune")
	if !cmd.IsSet("prune") {
		// <command>.prune, then prune, from the config file.
		opts.Prune, _ = config.GetBool("prune", false)
	}

	net := network.New(cmd.Duration("timeout"))
	w, err := worker.New(storage, net, opts)
	if err != nil {
		return nil, nil, err
	}
	log.Debugf("worker: cache=%s origin=%s", opts.CacheName, origin)
	return w, net, nil
}

func closeStorage(s store.Storage) {
	if err := s.Close(); err != nil {
		log.WithError(err).Warn("failed to close cache storage")
	}
}

// QueryCommandBuilder constructs the listing commands (ls, caches) with the
// shared output flags, store flags and metadata.
type QueryCommandBuilder struct {
	Name      string
	Usage     string
	UsageText string
	Flags     []cli.Flag
	Action    func(context.Context, *cli.Command) error
	Meta      meta.Meta
}

// Build returns a configured cli.Command from the builder.
func (qcb *QueryCommandBuilder) Build() *cli.Command {
	flags := append([]cli.Flag{}, qcb.Flags...)
	flags = append(flags, newSchemaFlag())
	flags = append(flags, NewGlobalFlags(qcb.Name)...)
	flags = append(flags, NewStoreFlags(qcb.Name, qcb.Meta)...)

	return &cli.Command{
		Name:      qcb.Name,
		Usage:     qcb.Usage,
		UsageText: qcb.UsageText,
		Metadata: map[string]any{
			"meta": qcb.Meta,
		},
		Flags:  flags,
		Action: qcb.Action,
	}
}

// writer returns the root command writer.
func writer(cmd *cli.Command) io.Writer {
	return cmd.Root().Writer
}
