/*
main.go - Application entry point

PURPOSE:
  Builds the deployd command tree. "serve" runs the HTTP API; the other
  commands evaluate a roster file offline and print the result.

STARTUP SEQUENCE (serve):
  1. Load config (.env, DEPLOY_* environment, then flags)
  2. Build the zap logger
  3. Open the configured store (sqlite, memory or mongo)
  4. Wire service, event bus and status roller
  5. Start the server with graceful shutdown

EXAMPLES:
  deployd serve --port 3000 --store memory
  deployd serve --db ./data/deploy.db --dev
  deployd report --roster roster.yaml
  deployd check-compliance --roster roster.json --operative op-ava

SEE ALSO:
  - config/config.go: Keys and defaults
  - api/server.go: Router configuration
  - cmd/deployd/report.go: Offline commands
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "deployd",
		Short:   "Workforce deployment engine",
		Version: version,
		Long: `deployd assigns operatives to construction sites. It checks
certificate compliance, double booking, site capacity and working
restrictions, and reports fill and weekly profit.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(checkComplianceCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
