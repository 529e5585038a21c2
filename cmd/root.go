package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set by main through SetVersion.
var version = "dev"

// SetVersion sets the version reported by the CLI and the MCP servers.
func SetVersion(v string) {
	version = v
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "inboxquery",
		Short: "MCP servers for Gmail and natural-language SQL over CSV files",
		Long: `inboxquery runs one of two Model Context Protocol servers for AI assistants:

  - gmail: send, search, read and delete email through the Gmail API
  - sql:   load CSV files into SQLite, turn questions into SQL and chart
           the results on a live dashboard

Run "inboxquery auth" once before serving Gmail.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(`{{printf "inboxquery version %s\n" .Version}}`)

	root.AddCommand(
		newServeCmd(),
		newAuthCmd(),
		newGenerateDocsCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
