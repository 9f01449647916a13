// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package store provides named cache storage: a set of caches, each mapping
// requests to stored responses. Backends are in-memory, local disk, SQLite and
// S3.
package store
