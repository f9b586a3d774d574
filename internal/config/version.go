package config

// Build metadata, set via -ldflags at release time.
var (
	Version = "0.1.0-dev"
	Commit  = "none"
	Date    = "unknown"
)
