// Package engine coordinates the decisioning components over one onboarding
// case: intake, screening and scoring, checklist generation, document
// classification and binding, and guarded phase transitions.
//
// The computational components are pure; the engine supplies the concurrency
// discipline around them. Work on independent cases runs freely in parallel.
// Within one case, classification of N uploaded files fans out across
// goroutines (analyses share no mutable state), while checklist binding and
// phase transitions are serialized under a per-case lock. Every case
// mutation bumps the case's version counter, and the repository checks the
// expected version on write, so a racing writer loses cleanly instead of
// clobbering state.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"onboarding-engine/internal/checklist"
	"onboarding-engine/internal/match"
	"onboarding-engine/internal/model"
	"onboarding-engine/internal/risk"
	"onboarding-engine/internal/workflow"
)

// Repository persists engine state. The engine stays free of persistence
// details; callers inject whichever implementation suits them.
type Repository interface {
	CreateCase(ctx context.Context, c *model.OnboardingCase) error
	GetCase(ctx context.Context, caseID uuid.UUID) (*model.OnboardingCase, error)
	// UpdateCase writes the case only when the stored version still equals
	// expectedVersion; otherwise it returns ErrVersionConflict.
	UpdateCase(ctx context.Context, c *model.OnboardingCase, expectedVersion int) error
	SaveAssessment(ctx context.Context, a *model.RiskAssessment) error
	SaveChecklist(ctx context.Context, cl model.Checklist) error
	GetChecklist(ctx context.Context, caseID uuid.UUID) (*model.Checklist, error)
	SaveAnalysis(ctx context.Context, caseID uuid.UUID, a model.DocumentAnalysis) error
	GetAnalysis(ctx context.Context, documentID uuid.UUID) (*model.DocumentAnalysis, error)
	SaveAssignment(ctx context.Context, caseID uuid.UUID, a model.Assignment) error
}

// ErrVersionConflict is returned by UpdateCase when another writer mutated
// the case first.
var ErrVersionConflict = fmt.Errorf("case version conflict")

// Screener fetches external screening results for a list of names.
type Screener interface {
	Screen(ctx context.Context, names []string) ([]model.ScreeningResult, error)
}

// Classifier produces a document analysis for one uploaded file.
type Classifier interface {
	Classify(ctx context.Context, docID uuid.UUID, fileName, mimeType string, data []byte) model.DocumentAnalysis
}

// DefaultUBOThreshold is the ownership percentage at which a principal is
// flagged as ultimate beneficial owner.
const DefaultUBOThreshold = 25.0

// Service is the engine's entry point for one deployment.
type Service struct {
	repo         Repository
	screener     Screener
	classifier   Classifier
	uboThreshold float64

	mu        sync.Mutex
	caseLocks map[uuid.UUID]*sync.Mutex
}

// NewService wires the engine's collaborators. A zero uboThreshold selects
// the default.
func NewService(repo Repository, screener Screener, classifier Classifier, uboThreshold float64) *Service {
	if uboThreshold <= 0 {
		uboThreshold = DefaultUBOThreshold
	}
	return &Service{
		repo:         repo,
		screener:     screener,
		classifier:   classifier,
		uboThreshold: uboThreshold,
		caseLocks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

// lockCase serializes mutations to one case. Locks are per case; no
// cross-case locking exists.
func (s *Service) lockCase(caseID uuid.UUID) func() {
	s.mu.Lock()
	lock, ok := s.caseLocks[caseID]
	if !ok {
		lock = &sync.Mutex{}
		s.caseLocks[caseID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// ============================================================================
// INTAKE
// ============================================================================

// PrincipalIntake is one principal as captured on the intake form.
type PrincipalIntake struct {
	FullName            string
	Role                string
	OwnershipPercentage float64
}

// IntakeParams are the case facts captured at intake.
type IntakeParams struct {
	SponsorName      string
	EntityType       string
	Jurisdiction     string
	RegulatoryStatus string
	Principals       []PrincipalIntake
}

// Intake creates a new case in ENQUIRY with its principals and an initial
// checklist. Principals at or above the UBO threshold are flagged at intake.
func (s *Service) Intake(ctx context.Context, params IntakeParams) (*model.OnboardingCase, error) {
	if params.SponsorName == "" {
		return nil, fmt.Errorf("intake requires a sponsor name")
	}

	now := time.Now().UTC()
	c := &model.OnboardingCase{
		CaseID:           uuid.New(),
		SponsorName:      params.SponsorName,
		EntityType:       model.NormalizeEntityType(params.EntityType),
		Jurisdiction:     params.Jurisdiction,
		RegulatoryStatus: params.RegulatoryStatus,
		Phase:            model.PhaseEnquiry,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	for _, p := range params.Principals {
		principal := model.Principal{
			PrincipalID:         uuid.New(),
			CaseID:              c.CaseID,
			FullName:            p.FullName,
			Role:                p.Role,
			OwnershipPercentage: p.OwnershipPercentage,
		}
		principal.ApplyUBOThreshold(s.uboThreshold)
		c.Principals = append(c.Principals, principal)
	}

	if err := s.repo.CreateCase(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create case: %w", err)
	}

	cl := checklist.Generate(c.CaseID, c.EntityType, c.RegulatoryStatus, c.Principals, nil)
	if err := s.repo.SaveChecklist(ctx, cl); err != nil {
		return nil, fmt.Errorf("failed to save initial checklist: %w", err)
	}
	return c, nil
}

// ============================================================================
// SCREENING AND SCORING
// ============================================================================

// ScreenAndScore fetches screening results for the sponsor and every
// principal, scores the case, persists the new assessment as the latest
// snapshot and regenerates the checklist (an EDD outcome appends slots).
// Bindings already collected are reconciled onto the regenerated checklist.
func (s *Service) ScreenAndScore(ctx context.Context, caseID uuid.UUID) (*model.RiskAssessment, error) {
	unlock := s.lockCase(caseID)
	defer unlock()

	c, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	names := []string{c.SponsorName}
	for _, p := range c.Principals {
		names = append(names, p.FullName)
	}

	results, err := s.screener.Screen(ctx, names)
	if err != nil {
		// Screening is mandatory input; scoring must not proceed without it.
		return nil, fmt.Errorf("screening unavailable for case %s: %w", caseID, err)
	}

	assessment, err := risk.Score(caseID, c.Jurisdiction, results, c.EntityType)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveAssessment(ctx, assessment); err != nil {
		return nil, fmt.Errorf("failed to save assessment: %w", err)
	}

	expected := c.Version
	c.Risk = assessment
	c.Version++
	c.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateCase(ctx, c, expected); err != nil {
		return nil, err
	}

	prior, err := s.repo.GetChecklist(ctx, caseID)
	if err != nil {
		return nil, err
	}
	fresh := checklist.Generate(c.CaseID, c.EntityType, c.RegulatoryStatus, c.Principals, assessment)
	match.Reconcile(&fresh, *prior)
	if err := s.repo.SaveChecklist(ctx, fresh); err != nil {
		return nil, fmt.Errorf("failed to save regenerated checklist: %w", err)
	}

	return assessment, nil
}

// ============================================================================
// DOCUMENTS
// ============================================================================

// DocumentUpload is one file handed to the engine for classification.
type DocumentUpload struct {
	FileName string
	MIMEType string
	Data     []byte
}

// UploadResult pairs an analysis with the matcher's decision for it.
type UploadResult struct {
	Analysis   model.DocumentAnalysis
	Assignment model.Assignment
}

// UploadDocuments classifies the files concurrently, then binds the results
// to the case checklist one at a time under the case lock. Documents the
// matcher cannot place stay unassigned for manual reconciliation; nothing is
// silently dropped.
func (s *Service) UploadDocuments(ctx context.Context, caseID uuid.UUID, uploads []DocumentUpload) ([]UploadResult, error) {
	if len(uploads) == 0 {
		return nil, nil
	}

	analyses := make([]model.DocumentAnalysis, len(uploads))
	var wg sync.WaitGroup
	for i, upload := range uploads {
		wg.Add(1)
		go func(i int, upload DocumentUpload) {
			defer wg.Done()
			analyses[i] = s.classifier.Classify(ctx, uuid.New(), upload.FileName, upload.MIMEType, upload.Data)
		}(i, upload)
	}
	wg.Wait()

	unlock := s.lockCase(caseID)
	defer unlock()

	c, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	cl, err := s.repo.GetChecklist(ctx, caseID)
	if err != nil {
		return nil, err
	}

	results := make([]UploadResult, 0, len(analyses))
	for _, analysis := range analyses {
		if err := s.repo.SaveAnalysis(ctx, caseID, analysis); err != nil {
			return nil, fmt.Errorf("failed to save analysis for %s: %w", analysis.FileName, err)
		}

		assignment := match.Assign(analysis, cl, c.Principals)
		if !assignment.Unassigned() {
			if bindErr := match.Bind(cl, assignment, analysis); bindErr != nil {
				// A human-confirmed binding stays put; surface the document
				// as unassigned instead of overwriting.
				assignment = model.Assignment{
					DocumentID: analysis.DocumentID,
					Basis:      model.MatchNone,
					Reason:     bindErr.Error(),
				}
			}
		}
		if err := s.repo.SaveAssignment(ctx, caseID, assignment); err != nil {
			return nil, fmt.Errorf("failed to save assignment for %s: %w", analysis.FileName, err)
		}
		results = append(results, UploadResult{Analysis: analysis, Assignment: assignment})
	}

	if err := s.repo.SaveChecklist(ctx, *cl); err != nil {
		return nil, fmt.Errorf("failed to save checklist: %w", err)
	}
	return results, nil
}

// ReassignDocument applies a human's slot selection for a previously
// classified document. The resulting binding is human-confirmed and sticky.
func (s *Service) ReassignDocument(ctx context.Context, caseID, documentID, slotID uuid.UUID) (*model.Assignment, error) {
	unlock := s.lockCase(caseID)
	defer unlock()

	analysis, err := s.repo.GetAnalysis(ctx, documentID)
	if err != nil {
		return nil, err
	}
	cl, err := s.repo.GetChecklist(ctx, caseID)
	if err != nil {
		return nil, err
	}

	assignment, err := match.ManualAssign(cl, *analysis, slotID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveAssignment(ctx, caseID, assignment); err != nil {
		return nil, fmt.Errorf("failed to save manual assignment: %w", err)
	}
	if err := s.repo.SaveChecklist(ctx, *cl); err != nil {
		return nil, fmt.Errorf("failed to save checklist: %w", err)
	}
	return &assignment, nil
}

// ============================================================================
// PHASE TRANSITIONS AND APPROVALS
// ============================================================================

// AdvancePhase requests the case's next phase transition. A rejection
// carries the guard's reason and leaves the case untouched.
func (s *Service) AdvancePhase(ctx context.Context, caseID uuid.UUID) (workflow.Decision, error) {
	unlock := s.lockCase(caseID)
	defer unlock()

	c, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return workflow.Decision{}, err
	}
	cl, err := s.repo.GetChecklist(ctx, caseID)
	if err != nil {
		return workflow.Decision{}, err
	}

	expected := c.Version
	decision := workflow.Advance(c, *cl)
	if !decision.Allowed {
		return decision, nil
	}
	if err := s.repo.UpdateCase(ctx, c, expected); err != nil {
		return workflow.Decision{}, err
	}
	return decision, nil
}

// RecordApproval records an explicit tier decision on the case.
func (s *Service) RecordApproval(ctx context.Context, caseID uuid.UUID, tier model.ApprovalTier, decision model.ApprovalDecision, approver string) error {
	unlock := s.lockCase(caseID)
	defer unlock()

	c, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return err
	}

	expected := c.Version
	record := model.ApprovalRecord{
		Tier:      tier,
		Decision:  decision,
		Approver:  approver,
		DecidedAt: time.Now().UTC(),
	}
	if err := workflow.RecordApproval(c, record); err != nil {
		return err
	}
	return s.repo.UpdateCase(ctx, c, expected)
}

// ReenterForNewFund runs the trigger review for a completed sponsor opening
// a new fund and re-enters the case at FUND_STRUCTURE.
func (s *Service) ReenterForNewFund(ctx context.Context, caseID uuid.UUID, materialChange bool) error {
	unlock := s.lockCase(caseID)
	defer unlock()

	c, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return err
	}
	prior, err := s.repo.GetChecklist(ctx, caseID)
	if err != nil {
		return err
	}

	expected := c.Version
	fresh := checklist.Generate(c.CaseID, c.EntityType, c.RegulatoryStatus, c.Principals, nil)
	if err := workflow.ReenterForNewFund(c, materialChange, *prior, &fresh); err != nil {
		return err
	}
	if err := s.repo.UpdateCase(ctx, c, expected); err != nil {
		return err
	}
	if err := s.repo.SaveChecklist(ctx, fresh); err != nil {
		return fmt.Errorf("failed to save re-entry checklist: %w", err)
	}
	return nil
}

// Case loads a case by id.
func (s *Service) Case(ctx context.Context, caseID uuid.UUID) (*model.OnboardingCase, error) {
	return s.repo.GetCase(ctx, caseID)
}

// Progress reports completion of the case's current checklist.
func (s *Service) Progress(ctx context.Context, caseID uuid.UUID) (checklist.ProgressSummary, error) {
	cl, err := s.repo.GetChecklist(ctx, caseID)
	if err != nil {
		return checklist.ProgressSummary{}, err
	}
	return checklist.Progress(*cl), nil
}
