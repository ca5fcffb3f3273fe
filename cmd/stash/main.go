// Package main is the entry point for the stash CLI.
//
// The CLI reads and writes stash entries in any supported backend. The
// backend is selected through environment variables (see Config).
//
// Usage:
//
//	STASH_BACKEND=sqlite STASH_PATH=prefs.db stash set theme dark
//	stash get theme
//	stash delete theme
//	stash version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "stash",
	Short: "Read and write persisted stash entries",
	Long: `stash reads and writes entries in a stash backend.

Values are encoded with the configured codec (json by default). A set that
encodes to the stored entry is reported as unchanged and does not write.

Backends are configured with environment variables:
  STASH_BACKEND   file, sqlite, redis, postgres, etcd, consul, nats,
                  zookeeper, firestore or kubernetes (default: file)
  STASH_PATH      directory (file) or database path (sqlite)
  STASH_ADDR      server address(es), comma separated
  STASH_DSN       postgres connection string
  STASH_PREFIX    key prefix, bucket (nats), root (zookeeper),
                  collection (firestore) or resource name (kubernetes)
  STASH_CODEC     json or yaml (default: json)`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this stash binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "stash %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
