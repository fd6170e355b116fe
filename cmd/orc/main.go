package main

import (
	"os"
)

// Version and Build are injected at link time via -ldflags.
var (
	Version = "dev"
	Build   = "unknown"
)

func main() {
	// ORC_NAME overrides the binary name in help text, useful when the
	// binary is shipped under a wrapper script with a different name.
	if name := os.Getenv("ORC_NAME"); name != "" {
		rootCmd.Use = name
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
