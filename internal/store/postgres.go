// Package store persists engine state in PostgreSQL. It implements the
// engine's Repository interface; the engine itself never sees a connection
// string or a SQL statement.
//
// Assessments are append-only history (the latest row is authoritative for
// gating). Checklists are saved as full snapshots: a save replaces the
// case's slot rows in one transaction. Case writes are guarded by the
// version counter, enforced in SQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "github.com/lib/pq"

	"onboarding-engine/internal/engine"
	"onboarding-engine/internal/model"
)

// Store is the PostgreSQL-backed repository.
type Store struct {
	db *sqlx.DB
}

// NewStore opens a database connection and verifies it.
func NewStore(connString string) (*Store, error) {
	db, err := sqlx.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an existing connection; used by tests.
func NewStoreWithDB(db *sqlx.DB) *Store { return &Store{db: db} }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS onboarding_cases (
			case_id UUID PRIMARY KEY,
			sponsor_name TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			jurisdiction TEXT NOT NULL DEFAULT '',
			regulatory_status TEXT NOT NULL DEFAULT '',
			phase TEXT NOT NULL,
			version INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS principals (
			principal_id UUID PRIMARY KEY,
			case_id UUID NOT NULL REFERENCES onboarding_cases(case_id),
			full_name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT '',
			ownership_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
			is_ubo BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS risk_assessments (
			assessment_id UUID PRIMARY KEY,
			case_id UUID NOT NULL REFERENCES onboarding_cases(case_id),
			total_score INT NOT NULL,
			rating TEXT NOT NULL,
			edd_required BOOLEAN NOT NULL,
			approval_tier TEXT NOT NULL,
			factors JSONB,
			assessed_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS checklist_slots (
			slot_id UUID PRIMARY KEY,
			case_id UUID NOT NULL REFERENCES onboarding_cases(case_id),
			position INT NOT NULL,
			owner_type TEXT NOT NULL,
			principal_id UUID,
			owner_name TEXT NOT NULL,
			document_type TEXT NOT NULL,
			label TEXT NOT NULL,
			required BOOLEAN NOT NULL,
			status TEXT NOT NULL,
			document_id UUID,
			human_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
			generated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS document_analyses (
			document_id UUID PRIMARY KEY,
			case_id UUID NOT NULL REFERENCES onboarding_cases(case_id),
			file_name TEXT NOT NULL,
			detected_type TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			extracted_name TEXT NOT NULL DEFAULT '',
			certification JSONB,
			quality_flags TEXT[],
			checks JSONB,
			status TEXT NOT NULL,
			source TEXT NOT NULL,
			analyzed_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS assignments (
			assignment_id BIGSERIAL PRIMARY KEY,
			case_id UUID NOT NULL REFERENCES onboarding_cases(case_id),
			document_id UUID NOT NULL,
			slot_id UUID,
			confidence DOUBLE PRECISION NOT NULL,
			basis TEXT NOT NULL,
			human_confirmed BOOLEAN NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS approvals (
			approval_id BIGSERIAL PRIMARY KEY,
			case_id UUID NOT NULL REFERENCES onboarding_cases(case_id),
			tier TEXT NOT NULL,
			decision TEXT NOT NULL,
			approver TEXT NOT NULL,
			decided_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

// ============================================================================
// CASES
// ============================================================================

// CreateCase inserts a case with its principals.
func (s *Store) CreateCase(ctx context.Context, c *model.OnboardingCase) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO onboarding_cases
			(case_id, sponsor_name, entity_type, jurisdiction, regulatory_status, phase, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.CaseID, c.SponsorName, c.EntityType, c.Jurisdiction, c.RegulatoryStatus,
		c.Phase, c.Version, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert case: %w", err)
	}

	for _, p := range c.Principals {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO principals (principal_id, case_id, full_name, role, ownership_percentage, is_ubo)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			p.PrincipalID, p.CaseID, p.FullName, p.Role, p.OwnershipPercentage, p.IsUBO)
		if err != nil {
			return fmt.Errorf("failed to insert principal %s: %w", p.FullName, err)
		}
	}
	return tx.Commit()
}

// GetCase loads a case with its principals, approval history and latest
// assessment.
func (s *Store) GetCase(ctx context.Context, caseID uuid.UUID) (*model.OnboardingCase, error) {
	var c model.OnboardingCase
	err := s.db.GetContext(ctx, &c, `
		SELECT case_id, sponsor_name, entity_type, jurisdiction, regulatory_status, phase, version, created_at, updated_at
		FROM onboarding_cases WHERE case_id = $1`, caseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no case found with id %s", caseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case: %w", err)
	}

	if err := s.db.SelectContext(ctx, &c.Principals, `
		SELECT principal_id, case_id, full_name, role, ownership_percentage, is_ubo
		FROM principals WHERE case_id = $1
		ORDER BY full_name`, caseID); err != nil {
		return nil, fmt.Errorf("failed to load principals: %w", err)
	}

	if err := s.db.SelectContext(ctx, &c.Approvals, `
		SELECT tier, decision, approver, decided_at
		FROM approvals WHERE case_id = $1
		ORDER BY approval_id`, caseID); err != nil {
		return nil, fmt.Errorf("failed to load approvals: %w", err)
	}

	latest, err := s.LatestAssessment(ctx, caseID)
	if err != nil {
		return nil, err
	}
	c.Risk = latest
	return &c, nil
}

// UpdateCase writes the case's mutable fields, appending any approval
// records not yet persisted. The write succeeds only when the stored version
// still equals expectedVersion.
func (s *Store) UpdateCase(ctx context.Context, c *model.OnboardingCase, expectedVersion int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE onboarding_cases
		SET phase = $1, version = $2, updated_at = $3
		WHERE case_id = $4 AND version = $5`,
		c.Phase, c.Version, c.UpdatedAt, c.CaseID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update case: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("case %s at version %d: %w", c.CaseID, expectedVersion, engine.ErrVersionConflict)
	}

	var persisted int
	if err := tx.GetContext(ctx, &persisted,
		`SELECT count(*) FROM approvals WHERE case_id = $1`, c.CaseID); err != nil {
		return fmt.Errorf("failed to count approvals: %w", err)
	}
	for _, record := range c.Approvals[min(persisted, len(c.Approvals)):] {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO approvals (case_id, tier, decision, approver, decided_at)
			VALUES ($1, $2, $3, $4, $5)`,
			c.CaseID, record.Tier, record.Decision, record.Approver, record.DecidedAt)
		if err != nil {
			return fmt.Errorf("failed to insert approval record: %w", err)
		}
	}
	return tx.Commit()
}

// ============================================================================
// ASSESSMENTS
// ============================================================================

// SaveAssessment appends one immutable assessment snapshot.
func (s *Store) SaveAssessment(ctx context.Context, a *model.RiskAssessment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO risk_assessments
			(assessment_id, case_id, total_score, rating, edd_required, approval_tier, factors, assessed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.AssessmentID, a.CaseID, a.TotalScore, a.Rating, a.EDDRequired,
		a.ApprovalTier, JSONBFactors(a.Factors), a.AssessedAt)
	if err != nil {
		return fmt.Errorf("failed to insert assessment: %w", err)
	}
	return nil
}

type assessmentRow struct {
	AssessmentID uuid.UUID          `db:"assessment_id"`
	CaseID       uuid.UUID          `db:"case_id"`
	TotalScore   int                `db:"total_score"`
	Rating       model.RiskRating   `db:"rating"`
	EDDRequired  bool               `db:"edd_required"`
	ApprovalTier model.ApprovalTier `db:"approval_tier"`
	Factors      JSONBFactors       `db:"factors"`
	AssessedAt   time.Time          `db:"assessed_at"`
}

func (r assessmentRow) toModel() *model.RiskAssessment {
	return &model.RiskAssessment{
		AssessmentID: r.AssessmentID,
		CaseID:       r.CaseID,
		TotalScore:   r.TotalScore,
		Rating:       r.Rating,
		EDDRequired:  r.EDDRequired,
		ApprovalTier: r.ApprovalTier,
		Factors:      r.Factors,
		AssessedAt:   r.AssessedAt,
	}
}

// LatestAssessment returns the newest assessment for a case, or nil when the
// case has not been scored yet.
func (s *Store) LatestAssessment(ctx context.Context, caseID uuid.UUID) (*model.RiskAssessment, error) {
	var row assessmentRow
	err := s.db.GetContext(ctx, &row, `
		SELECT assessment_id, case_id, total_score, rating, edd_required, approval_tier, factors, assessed_at
		FROM risk_assessments
		WHERE case_id = $1
		ORDER BY assessed_at DESC
		LIMIT 1`, caseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest assessment: %w", err)
	}
	return row.toModel(), nil
}

// AssessmentHistory returns every assessment for a case, oldest first.
func (s *Store) AssessmentHistory(ctx context.Context, caseID uuid.UUID) ([]*model.RiskAssessment, error) {
	var rows []assessmentRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT assessment_id, case_id, total_score, rating, edd_required, approval_tier, factors, assessed_at
		FROM risk_assessments
		WHERE case_id = $1
		ORDER BY assessed_at ASC`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assessment history: %w", err)
	}
	history := make([]*model.RiskAssessment, 0, len(rows))
	for _, row := range rows {
		history = append(history, row.toModel())
	}
	return history, nil
}

// ============================================================================
// CHECKLISTS
// ============================================================================

// SaveChecklist replaces the case's checklist snapshot.
func (s *Store) SaveChecklist(ctx context.Context, cl model.Checklist) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM checklist_slots WHERE case_id = $1`, cl.CaseID); err != nil {
		return fmt.Errorf("failed to clear checklist: %w", err)
	}

	for i, slot := range cl.Slots {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO checklist_slots
				(slot_id, case_id, position, owner_type, principal_id, owner_name,
				 document_type, label, required, status, document_id, human_confirmed, generated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			slot.SlotID, cl.CaseID, i, slot.OwnerType, slot.PrincipalID, slot.OwnerName,
			slot.DocumentType, slot.Label, slot.Required, slot.Status,
			slot.DocumentID, slot.HumanConfirmed, cl.GeneratedAt)
		if err != nil {
			return fmt.Errorf("failed to insert checklist slot %s: %w", slot.DocumentType, err)
		}
	}
	return tx.Commit()
}

type slotRow struct {
	SlotID         uuid.UUID           `db:"slot_id"`
	CaseID         uuid.UUID           `db:"case_id"`
	Position       int                 `db:"position"`
	OwnerType      model.SlotOwnerType `db:"owner_type"`
	PrincipalID    *uuid.UUID          `db:"principal_id"`
	OwnerName      string              `db:"owner_name"`
	DocumentType   string              `db:"document_type"`
	Label          string              `db:"label"`
	Required       bool                `db:"required"`
	Status         model.SlotStatus    `db:"status"`
	DocumentID     *uuid.UUID          `db:"document_id"`
	HumanConfirmed bool                `db:"human_confirmed"`
	GeneratedAt    time.Time           `db:"generated_at"`
}

// GetChecklist loads the case's current checklist snapshot in slot order.
func (s *Store) GetChecklist(ctx context.Context, caseID uuid.UUID) (*model.Checklist, error) {
	var rows []slotRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT slot_id, case_id, position, owner_type, principal_id, owner_name,
		       document_type, label, required, status, document_id, human_confirmed, generated_at
		FROM checklist_slots
		WHERE case_id = $1
		ORDER BY position ASC`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checklist: %w", err)
	}

	cl := &model.Checklist{CaseID: caseID}
	for _, row := range rows {
		cl.GeneratedAt = row.GeneratedAt
		cl.Slots = append(cl.Slots, model.ChecklistSlot{
			SlotID:         row.SlotID,
			OwnerType:      row.OwnerType,
			PrincipalID:    row.PrincipalID,
			OwnerName:      row.OwnerName,
			DocumentType:   row.DocumentType,
			Label:          row.Label,
			Required:       row.Required,
			Status:         row.Status,
			DocumentID:     row.DocumentID,
			HumanConfirmed: row.HumanConfirmed,
		})
	}
	return cl, nil
}

// ============================================================================
// DOCUMENTS
// ============================================================================

// SaveAnalysis inserts one immutable document analysis.
func (s *Store) SaveAnalysis(ctx context.Context, caseID uuid.UUID, a model.DocumentAnalysis) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_analyses
			(document_id, case_id, file_name, detected_type, confidence, extracted_name,
			 certification, quality_flags, checks, status, source, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		a.DocumentID, caseID, a.FileName, a.DetectedType, a.Confidence, a.ExtractedName,
		JSONBCertification{a.Certification}, pq.Array(a.QualityFlags), JSONBChecks(a.Checks),
		a.Status, a.Source, a.AnalyzedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document analysis: %w", err)
	}
	return nil
}

// GetAnalysis loads one document analysis by document id.
func (s *Store) GetAnalysis(ctx context.Context, documentID uuid.UUID) (*model.DocumentAnalysis, error) {
	row := s.db.QueryRowxContext(ctx, `
		SELECT document_id, file_name, detected_type, confidence, extracted_name,
		       certification, quality_flags, checks, status, source, analyzed_at
		FROM document_analyses
		WHERE document_id = $1`, documentID)

	var (
		a      model.DocumentAnalysis
		cert   JSONBCertification
		flags  pq.StringArray
		checks JSONBChecks
	)
	err := row.Scan(&a.DocumentID, &a.FileName, &a.DetectedType, &a.Confidence, &a.ExtractedName,
		&cert, &flags, &checks, &a.Status, &a.Source, &a.AnalyzedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no document analysis found with id %s", documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document analysis: %w", err)
	}
	a.Certification = cert.CertificationMetadata
	a.QualityFlags = flags
	a.Checks = checks
	return &a, nil
}

// SaveAssignment records one matcher decision. Decisions are append-only;
// the latest row per document is authoritative.
func (s *Store) SaveAssignment(ctx context.Context, caseID uuid.UUID, a model.Assignment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assignments (case_id, document_id, slot_id, confidence, basis, human_confirmed, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		caseID, a.DocumentID, a.SlotID, a.Confidence, a.Basis, a.HumanConfirmed, a.Reason)
	if err != nil {
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}
