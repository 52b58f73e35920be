// Package config holds the process-wide configuration for a portdiff store.
package config

import (
	log "go.arcalot.io/log/v2"
)

// Config configures a Store and the tracing around rewrite, squash and
// extraction calls. It is not part of any Diff and is never persisted
// alongside a DAG.
type Config struct {
	// Log configures the logger passed to Store operations.
	Log log.Config `json:"log" yaml:"log"`
}
