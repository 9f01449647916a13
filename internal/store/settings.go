// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/apex/log"

	awsx "github.com/staranto/swcache/internal/aws"
)

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendDisk   = "disk"
	BackendSQLite = "sqlite"
	BackendS3     = "s3"
)

// Backends lists the valid backend names.
var Backends = []string{BackendMemory, BackendDisk, BackendSQLite, BackendS3}

// Settings selects and configures a backend.
type Settings struct {
	Backend string
	// Dir is the base directory for disk and the default sqlite location.
	Dir string
	// SQLitePath overrides <Dir>/swcache.db.
	SQLitePath string
	S3         S3Settings
}

type S3Settings struct {
	Bucket   string
	Prefix   string
	Region   string
	Profile  string
	Endpoint string
}

// New opens the storage described by s. An empty backend means disk.
func New(ctx context.Context, s Settings) (Storage, error) {
	backend := s.Backend
	if backend == "" {
		backend = BackendDisk
	}

	dir := s.Dir
	if dir == "" && (backend == BackendDisk || (backend == BackendSQLite && s.SQLitePath == "")) {
		d, ok := DefaultDir()
		if !ok {
			return nil, fmt.Errorf("unable to resolve a cache directory for %s", backend)
		}
		dir = d
	}
	log.Debugf("store backend=%s dir=%s", backend, dir)

	switch backend {
	case BackendMemory:
		return NewMemoryStorage(), nil
	case BackendDisk:
		return NewDiskStorage(dir)
	case BackendSQLite:
		p := s.SQLitePath
		if p == "" {
			if _, err := NewDiskStorage(dir); err != nil {
				return nil, err
			}
			p = filepath.Join(dir, "swcache.db")
		}
		return OpenSQLite(p)
	case BackendS3:
		var opts []awsx.Option
		if s.S3.Region != "" {
			opts = append(opts, awsx.WithRegion(s.S3.Region))
		}
		if s.S3.Profile != "" {
			opts = append(opts, awsx.WithProfile(s.S3.Profile))
		}
		if s.S3.Endpoint != "" {
			opts = append(opts, awsx.WithEndpoint(s.S3.Endpoint))
		}
		client, err := awsx.NewS3(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return NewS3Storage(client, s.S3.Bucket, s.S3.Prefix)
	}

	return nil, fmt.Errorf("unknown store backend %q, must be one of %v", backend, Backends)
}
