package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"onboarding-engine/internal/checklist"
	"onboarding-engine/internal/engine"
	"onboarding-engine/internal/model"
)

// ChecklistCommand creates the checklist command: offline generation of the
// required-document checklist for supplied case facts.
func ChecklistCommand() *cobra.Command {
	var (
		entityType string
		regulated  bool
		edd        bool
		principals []string
	)

	cmd := &cobra.Command{
		Use:   "checklist",
		Short: "Generate the required-document checklist for supplied case facts",
		Long: `Generate the document checklist for an entity without touching the database.

Principals are supplied as "Full Name:role:ownership", e.g. "John Smith:director:30".

Examples:
  ./ob-engine checklist --entity-type llp --principal "John Smith:member:40" --principal "Jane Doe:member:60"
  ./ob-engine checklist --entity-type company --regulated --edd`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChecklist(entityType, regulated, edd, principals)
		},
	}

	cmd.Flags().StringVar(&entityType, "entity-type", "", "Entity type code")
	cmd.Flags().BoolVar(&regulated, "regulated", false, "Sponsor is a regulated entity")
	cmd.Flags().BoolVar(&edd, "edd", false, "Append the enhanced due diligence document set")
	cmd.Flags().StringArrayVar(&principals, "principal", nil, `Principal as "Full Name:role:ownership" (repeatable)`)

	return cmd
}

func runChecklist(entityType string, regulated, edd bool, principalSpecs []string) error {
	caseID := uuid.New()
	principals, err := parsePrincipals(caseID, principalSpecs)
	if err != nil {
		return err
	}

	status := model.StatusNotRegulated
	if regulated {
		status = model.StatusRegulated
	}

	var assessment *model.RiskAssessment
	if edd {
		assessment = &model.RiskAssessment{EDDRequired: true}
	}

	cl := checklist.Generate(caseID, entityType, status, principals, assessment)
	for i, slot := range cl.Slots {
		required := "required"
		if !slot.Required {
			required = "optional"
		}
		fmt.Printf("%2d. [%s] %-38s %-12s %s\n", i+1, slot.Status, slot.Label, required, slot.OwnerName)
	}
	progress := checklist.Progress(cl)
	fmt.Printf("\n%d slots, %d complete, %d pending, %d review needed (%.0f%%)\n",
		progress.Total, progress.Complete, progress.Pending, progress.ReviewNeeded, progress.Percentage)
	return nil
}

func parsePrincipals(caseID uuid.UUID, specs []string) ([]model.Principal, error) {
	var principals []model.Principal
	for _, spec := range specs {
		parts := strings.Split(spec, ":")
		p := model.Principal{
			PrincipalID: uuid.New(),
			CaseID:      caseID,
			FullName:    strings.TrimSpace(parts[0]),
		}
		if p.FullName == "" {
			return nil, fmt.Errorf("principal spec %q has no name", spec)
		}
		if len(parts) > 1 {
			p.Role = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			ownership, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
			if err != nil {
				return nil, fmt.Errorf("principal spec %q has invalid ownership: %w", spec, err)
			}
			p.OwnershipPercentage = ownership
		}
		p.ApplyUBOThreshold(engine.DefaultUBOThreshold)
		principals = append(principals, p)
	}
	return principals, nil
}
