// Command ob-engine is the operator CLI of the compliance decisioning core:
// risk scoring, checklist generation, document classification and onboarding
// case management.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"onboarding-engine/internal/cli"
)

func main() {
	root := &cobra.Command{
		Use:   "ob-engine",
		Short: "Compliance decisioning engine for client onboarding",
		Long: `ob-engine drives the compliance decisioning core for client onboarding:
risk scoring, document checklist generation, document classification and
matching, and guarded onboarding phase transitions.

Offline commands (score, checklist, classify) run the pure engines over
facts supplied on the command line. Case commands talk to the configured
PostgreSQL database.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		cli.ScoreCommand(),
		cli.ChecklistCommand(),
		cli.ClassifyCommand(),
		cli.CaseCommand(),
		cli.MigrateCommand(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
