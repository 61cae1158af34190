// Package cli implements the agent-recall command line.
package cli

import (
	"github.com/spf13/cobra"
)

const rootLongDesc string = `agent-recall is a persistent memory store for AI coding-agent sessions.

Chat logs are summarized by a language model, embedded, and stored in SQLite
or Postgres. Memories are recalled by semantic similarity or keyword search.

Run services using:
  agent-recall serve mcp   Serve the memory tools over MCP stdio
  agent-recall serve api   Run the HTTP API server
  agent-recall agent       Run the coding agent with long-term memory`

const rootShortDesc string = "agent-recall - memory for coding agents"

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "agent-recall",
		Short:        rootShortDesc,
		Long:         rootLongDesc,
		Version:      version,
		SilenceUsage: true,
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolP("debug", "d", false, "Enable debug logging")
	flags.String("config-dir", "", "Directory containing recall.toml")
	flags.String("db", "", "Database URL or SQLite file path (overrides db.url)")
	flags.String("db-type", "", "Database backend, sqlite or postgres (overrides db.type)")
	flags.Bool("json", false, "Print results as JSON")

	cmd.AddCommand(
		newMigrateCmd(),
		newRememberCmd(),
		newRecallCmd(),
		newSearchCmd(),
		newGetCmd(),
		newRmCmd(),
		newTagCmd(),
		newMetaCmd(),
		newRecentCmd(),
		newStatsCmd(),
		newServeCmd(),
		newAgentCmd(),
	)

	return cmd
}
