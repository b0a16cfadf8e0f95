// Package lifecycle holds shared limits for fx start and stop hooks.
package lifecycle

import "time"

// DefaultTimeout bounds each OnStart / OnStop hook.
const DefaultTimeout = 10 * time.Second

// MigrationTimeout bounds schema migrations run at startup.
const MigrationTimeout = time.Minute
