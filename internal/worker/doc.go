// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package worker is the offline asset cache. A Worker precaches a fixed asset
// list when the install event fires and answers fetch events cache-first,
// except for the dynamic data file which always goes to the network.
//
// Host stands in for the environment that owns the worker: it keeps the
// lifecycle state, dispatches the named events to registered listeners and
// performs the default network fetch when no listener responds.
package worker
