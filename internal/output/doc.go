// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package output filters, sorts and renders listings of cache entries and
// cache names as text tables, json, yaml or the raw records.
package output
