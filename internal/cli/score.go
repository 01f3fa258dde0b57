// Package cli provides the operator commands of the decisioning engine:
// offline scoring and checklist generation, filename classification, and
// case management against the database.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"onboarding-engine/internal/model"
	"onboarding-engine/internal/risk"
)

// ScoreCommand creates the score command: an offline scoring run over facts
// supplied on the command line, without touching the database.
func ScoreCommand() *cobra.Command {
	var (
		jurisdiction  string
		entityType    string
		screeningFile string
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Run a risk scoring pass over supplied case facts",
		Long: `Run the risk scoring engine over case facts supplied on the command line.

The screening file is a JSON array of results, one per screened name:
  [{"name":"Acme Sponsors LLP","hasPepHit":false,"hasSanctionsHit":false,"hasAdverseMedia":false}]

Examples:
  ./ob-engine score --jurisdiction GB --entity-type llp --screening screening.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(jurisdiction, entityType, screeningFile)
		},
	}

	cmd.Flags().StringVar(&jurisdiction, "jurisdiction", "", "ISO country code of the sponsor jurisdiction")
	cmd.Flags().StringVar(&entityType, "entity-type", "", "Entity type code (company, llp, lp, trust, foundation, ...)")
	cmd.Flags().StringVar(&screeningFile, "screening", "", "Path to screening results JSON (required)")
	cmd.MarkFlagRequired("screening")

	return cmd
}

func runScore(jurisdiction, entityType, screeningFile string) error {
	raw, err := os.ReadFile(screeningFile)
	if err != nil {
		return fmt.Errorf("failed to read screening file: %w", err)
	}
	var results []model.ScreeningResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return fmt.Errorf("failed to parse screening file: %w", err)
	}

	assessment, err := risk.Score(uuid.New(), jurisdiction, results, entityType)
	if err != nil {
		return err
	}
	return printJSON(assessment)
}

func printJSON(v interface{}) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}
