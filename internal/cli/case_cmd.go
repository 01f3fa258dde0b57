package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"onboarding-engine/internal/classifier"
	"onboarding-engine/internal/config"
	"onboarding-engine/internal/engine"
	"onboarding-engine/internal/model"
	"onboarding-engine/internal/screening"
	"onboarding-engine/internal/store"
)

// CaseCommand groups the database-backed case management commands.
func CaseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "case",
		Short: "Manage onboarding cases",
	}
	cmd.AddCommand(
		caseCreateCommand(),
		caseShowCommand(),
		caseScreenCommand(),
		caseUploadCommand(),
		caseAdvanceCommand(),
		caseApproveCommand(),
		caseReenterCommand(),
	)
	return cmd
}

// newService wires a Service against the configured database, screening
// backend and extraction backend. The returned cleanup closes both clients.
func newService(ctx context.Context) (*engine.Service, func(), error) {
	cfg := config.Load()

	st, err := store.NewStore(cfg.DBConnString)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	extractor, err := classifier.NewExtractor(ctx, cfg.GeminiAPIKey)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	adapter := classifier.NewAdapter(extractor, cfg.ExtractionTimeout, cfg.ExtractionRetries)
	screener := screening.NewClient(cfg.ScreeningURL, cfg.ScreeningTimeout, cfg.ScreeningRetries)

	cleanup := func() {
		extractor.Close()
		st.Close()
	}
	return engine.NewService(st, screener, adapter, cfg.UBOThreshold), cleanup, nil
}

func caseCreateCommand() *cobra.Command {
	var (
		sponsor      string
		entityType   string
		jurisdiction string
		regulated    bool
		principals   []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a case from intake facts",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			status := model.StatusNotRegulated
			if regulated {
				status = model.StatusRegulated
			}
			params := engine.IntakeParams{
				SponsorName:      sponsor,
				EntityType:       entityType,
				Jurisdiction:     jurisdiction,
				RegulatoryStatus: status,
			}
			for _, spec := range principals {
				parsed, err := parsePrincipals(uuid.Nil, []string{spec})
				if err != nil {
					return err
				}
				params.Principals = append(params.Principals, engine.PrincipalIntake{
					FullName:            parsed[0].FullName,
					Role:                parsed[0].Role,
					OwnershipPercentage: parsed[0].OwnershipPercentage,
				})
			}

			c, err := svc.Intake(cmd.Context(), params)
			if err != nil {
				return err
			}
			fmt.Printf("Created case %s in phase %s\n", c.CaseID, c.Phase)
			return nil
		},
	}

	cmd.Flags().StringVar(&sponsor, "sponsor", "", "Sponsor legal name (required)")
	cmd.Flags().StringVar(&entityType, "entity-type", "", "Entity type code")
	cmd.Flags().StringVar(&jurisdiction, "jurisdiction", "", "ISO country code")
	cmd.Flags().BoolVar(&regulated, "regulated", false, "Sponsor is a regulated entity")
	cmd.Flags().StringArrayVar(&principals, "principal", nil, `Principal as "Full Name:role:ownership" (repeatable)`)
	cmd.MarkFlagRequired("sponsor")

	return cmd
}

func caseShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <case-id>",
		Short: "Show a case with its latest risk outcome and checklist progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caseID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid case id %q: %w", args[0], err)
			}
			svc, cleanup, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			c, err := svc.Case(cmd.Context(), caseID)
			if err != nil {
				return err
			}
			if err := printJSON(c); err != nil {
				return err
			}
			progress, err := svc.Progress(cmd.Context(), caseID)
			if err != nil {
				return err
			}
			fmt.Printf("\nChecklist: %d/%d complete, %d review needed, can advance: %v\n",
				progress.Complete, progress.Total, progress.ReviewNeeded, progress.CanAdvance)
			return nil
		},
	}
	return cmd
}

func caseScreenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "screen <case-id>",
		Short: "Run screening and risk scoring for a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caseID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid case id %q: %w", args[0], err)
			}
			svc, cleanup, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			assessment, err := svc.ScreenAndScore(cmd.Context(), caseID)
			if err != nil {
				return err
			}
			return printJSON(assessment)
		},
	}
	return cmd
}

func caseUploadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <case-id> <file>...",
		Short: "Classify documents and bind them to the case checklist",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caseID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid case id %q: %w", args[0], err)
			}
			svc, cleanup, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			var uploads []engine.DocumentUpload
			for _, file := range args[1:] {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}
				mimeType := mime.TypeByExtension(filepath.Ext(file))
				if mimeType == "" {
					mimeType = "application/octet-stream"
				}
				uploads = append(uploads, engine.DocumentUpload{
					FileName: filepath.Base(file),
					MIMEType: mimeType,
					Data:     data,
				})
			}

			results, err := svc.UploadDocuments(cmd.Context(), caseID, uploads)
			if err != nil {
				return err
			}
			for _, result := range results {
				target := "unassigned"
				if !result.Assignment.Unassigned() {
					target = result.Assignment.SlotID.String()
				}
				fmt.Printf("%s: %s -> %s (%s)\n",
					result.Analysis.FileName, result.Analysis.DetectedType, target, result.Assignment.Reason)
			}
			return nil
		},
	}
	return cmd
}

func caseAdvanceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advance <case-id>",
		Short: "Request the case's next phase transition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caseID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid case id %q: %w", args[0], err)
			}
			svc, cleanup, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			decision, err := svc.AdvancePhase(cmd.Context(), caseID)
			if err != nil {
				return err
			}
			if decision.Allowed {
				fmt.Printf("Transition allowed: %s\n", decision.Reason)
			} else {
				fmt.Printf("Transition rejected: %s\n", decision.Reason)
			}
			return nil
		},
	}
	return cmd
}

func caseApproveCommand() *cobra.Command {
	var (
		tier     string
		reject   bool
		approver string
	)

	cmd := &cobra.Command{
		Use:   "approve <case-id>",
		Short: "Record an approval decision at one tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caseID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid case id %q: %w", args[0], err)
			}
			svc, cleanup, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			decision := model.DecisionApproved
			if reject {
				decision = model.DecisionRejected
			}
			if err := svc.RecordApproval(cmd.Context(), caseID,
				model.ApprovalTier(tier), decision, approver); err != nil {
				return err
			}
			fmt.Printf("Recorded %s at %s tier\n", decision, tier)
			return nil
		},
	}

	cmd.Flags().StringVar(&tier, "tier", string(model.TierCompliance), "Approval tier (COMPLIANCE, MLRO, BOARD)")
	cmd.Flags().BoolVar(&reject, "reject", false, "Record a rejection instead of an approval")
	cmd.Flags().StringVar(&approver, "approver", "", "Name of the deciding officer (required)")
	cmd.MarkFlagRequired("approver")

	return cmd
}

func caseReenterCommand() *cobra.Command {
	var materialChange bool

	cmd := &cobra.Command{
		Use:   "reenter <case-id>",
		Short: "Re-enter a completed sponsor at FUND_STRUCTURE for a new fund",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caseID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid case id %q: %w", args[0], err)
			}
			svc, cleanup, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.ReenterForNewFund(cmd.Context(), caseID, materialChange); err != nil {
				return err
			}
			fmt.Printf("Case %s re-entered at %s\n", caseID, model.PhaseFundStructure)
			return nil
		},
	}

	cmd.Flags().BoolVar(&materialChange, "material-change", false, "Trigger review detected a material change")
	return cmd
}
