// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// swcache is the main package for the swcache command line tool. It
// precaches a web app's static assets into a named cache and answers
// requests cache-first, always fetching data.json live.
package main
