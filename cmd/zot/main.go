// Package main provides the zot CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "zot",
	Short: "Zotero library CLI",
	Long: `zot reads and writes a Zotero library from the command line.

Core features:
  - List and fetch items, collections and tags
  - Upload file attachments
  - Saved search management
  - Semantic Scholar lookups for citation metadata
  - A local DOI index for fast DOI-to-item resolution

Configuration lives in ~/.config/zot/config.yml; ZOTERO_API_KEY and
S2_API_KEY are also read from the environment and any .env file.
All commands output JSON by default.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}
