// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package meta

import (
	"github.com/staranto/swcache/internal/config"
)

// Meta are the meta-options that are available on all or most commands.
type Meta struct {
	Args   []string
	Config config.Type
	// Env holds the SWCACHE_* environment settings.
	Env config.Env
}
