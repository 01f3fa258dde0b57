package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"onboarding-engine/internal/config"
	"onboarding-engine/internal/store"
)

// MigrateCommand creates the migrate command, which applies the engine's
// database schema.
func MigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the engine's database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			st, err := store.NewStore(cfg.DBConnString)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer st.Close()

			if err := st.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Schema is up to date.")
			return nil
		},
	}
	return cmd
}
