// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package aws contains helpers for building the AWS SDK clients used by the
// S3 cache store.
package aws
