// Package model defines the shared records of the compliance decisioning
// core: onboarding cases, principals, risk assessments, checklists, document
// analyses and assignments. Every record external data flows into is an
// explicit struct with enum-constrained status fields; unknown values are
// rejected or normalized at the boundary, never carried through as raw maps.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// PHASES AND STATUS ENUMS
// ============================================================================

// Phase is one stage of the onboarding journey. Progression is linear and
// one-directional; DECLINED is terminal.
type Phase string

const (
	PhaseEnquiry       Phase = "ENQUIRY"
	PhaseFundStructure Phase = "FUND_STRUCTURE"
	PhaseScreening     Phase = "SCREENING"
	PhaseDocumentation Phase = "DOCUMENTATION"
	PhaseApproval      Phase = "APPROVAL"
	PhaseCommercial    Phase = "COMMERCIAL"
	PhaseComplete      Phase = "COMPLETE"
	PhaseDeclined      Phase = "DECLINED"
)

// RiskRating is the banded outcome of a scoring run.
type RiskRating string

const (
	RatingLow    RiskRating = "LOW"
	RatingMedium RiskRating = "MEDIUM"
	RatingHigh   RiskRating = "HIGH"
)

// ApprovalTier is the minimum authority level required to approve a case.
type ApprovalTier string

const (
	TierCompliance ApprovalTier = "COMPLIANCE"
	TierMLRO       ApprovalTier = "MLRO"
	TierBoard      ApprovalTier = "BOARD"
)

// tierRank orders approval tiers for escalation comparisons.
var tierRank = map[ApprovalTier]int{
	TierCompliance: 1,
	TierMLRO:       2,
	TierBoard:      3,
}

// Rank returns the escalation order of the tier (compliance lowest).
// Unknown tiers rank 0 so they never satisfy a requirement.
func (t ApprovalTier) Rank() int { return tierRank[t] }

// RequiredTiers expands an approval tier into the full chain of tiers that
// must each record an explicit decision: compliance always, MLRO at or above
// MLRO, board only at board.
func (t ApprovalTier) RequiredTiers() []ApprovalTier {
	tiers := []ApprovalTier{TierCompliance}
	if t.Rank() >= TierMLRO.Rank() {
		tiers = append(tiers, TierMLRO)
	}
	if t == TierBoard {
		tiers = append(tiers, TierBoard)
	}
	return tiers
}

// SlotStatus is the derived completion state of a checklist slot. It changes
// only because a document is bound or unbound, never independently.
type SlotStatus string

const (
	SlotPending      SlotStatus = "PENDING"
	SlotReviewNeeded SlotStatus = "REVIEW_NEEDED"
	SlotComplete     SlotStatus = "COMPLETE"
)

// CheckResult is the outcome of one certification-policy check, and also the
// overall document status (the worst of its checks).
type CheckResult string

const (
	CheckPass         CheckResult = "PASS"
	CheckReviewNeeded CheckResult = "REVIEW_NEEDED"
	CheckFail         CheckResult = "FAIL"
)

var checkSeverity = map[CheckResult]int{CheckPass: 0, CheckReviewNeeded: 1, CheckFail: 2}

// Worst returns the more severe of two check results.
func (r CheckResult) Worst(other CheckResult) CheckResult {
	if checkSeverity[other] > checkSeverity[r] {
		return other
	}
	return r
}

// ApprovalDecision is an explicit approve/reject recorded at one tier.
type ApprovalDecision string

const (
	DecisionApproved ApprovalDecision = "APPROVED"
	DecisionRejected ApprovalDecision = "REJECTED"
)

// SlotOwnerType distinguishes sponsor-entity obligations from obligations
// owned by a named principal.
type SlotOwnerType string

const (
	OwnerSponsor   SlotOwnerType = "SPONSOR"
	OwnerPrincipal SlotOwnerType = "PRINCIPAL"
)

// MatchBasis records how a document was matched to a slot.
type MatchBasis string

const (
	MatchTypeOnly    MatchBasis = "TYPE_ONLY"
	MatchTypeAndName MatchBasis = "TYPE_AND_NAME"
	MatchManual      MatchBasis = "MANUAL"
	MatchNone        MatchBasis = "NONE"
)

// AnalysisSource records which classifier path produced an analysis.
type AnalysisSource string

const (
	SourceExtraction AnalysisSource = "EXTRACTION"
	SourceHeuristic  AnalysisSource = "HEURISTIC"
)

// ============================================================================
// ENTITY TYPE AND DOCUMENT TYPE CODES
// ============================================================================

// Normalized entity type codes accepted at intake.
const (
	EntityCompany    = "company"
	EntityLLC        = "llc"
	EntityLLP        = "llp"
	EntityLP         = "lp"
	EntityTrust      = "trust"
	EntityPCC        = "pcc"
	EntityICC        = "icc"
	EntityFoundation = "foundation"
)

// Regulatory status codes.
const (
	StatusRegulated    = "regulated"
	StatusNotRegulated = "not_regulated"
)

// Document type codes. Sponsor-level codes come first, then personal and EDD
// codes; DocTypeUnknown marks a document the classifier could not place.
const (
	DocCertificateOfIncorporation      = "certificate_of_incorporation"
	DocConstitutionalDocument          = "constitutional_document"
	DocRegisterOfDirectors             = "register_of_directors"
	DocRegisterOfShareholders          = "register_of_shareholders"
	DocStructureChart                  = "structure_chart"
	DocProofOfAddress                  = "proof_of_address"
	DocCertificateOfRegistration       = "certificate_of_registration"
	DocLLPAgreement                    = "llp_agreement"
	DocRegisterOfMembers               = "register_of_members"
	DocProofOfRegisteredAddress        = "proof_of_registered_address"
	DocPartnershipAgreement            = "partnership_agreement"
	DocCertificateOfLimitedPartnership = "certificate_of_limited_partnership"
	DocRegisterOfPartners              = "register_of_partners"
	DocTrustDeed                       = "trust_deed"
	DocRegisterOfTrustees              = "register_of_trustees"
	DocFoundationCharter               = "foundation_charter"
	DocFoundationRegulations           = "foundation_regulations"
	DocRegisterOfCouncilMembers        = "register_of_council_members"
	DocRegulatoryLicense               = "regulatory_license"
	DocGoodStandingLetter              = "good_standing_letter"
	DocCertifiedIdentity               = "certified_identity_document"
	DocPersonalProofOfAddress          = "personal_proof_of_address"
	DocSourceOfWealth                  = "source_of_wealth_declaration"
	DocSourceOfFunds                   = "source_of_funds_evidence"
	DocProfessionalReference           = "professional_reference"
	DocTypeUnknown                     = "unknown"
)

// IsPersonalDocType reports whether the code is a personal document type
// (identity or address proof owned by a named principal).
func IsPersonalDocType(code string) bool {
	return code == DocCertifiedIdentity || code == DocPersonalProofOfAddress
}

// IsIdentityDocType reports whether the code is an identity document, which
// carries the 12-month certification window.
func IsIdentityDocType(code string) bool {
	return code == DocCertifiedIdentity
}

// IsAddressProofDocType reports whether the code is an address proof, which
// carries the 3-month certification window.
func IsAddressProofDocType(code string) bool {
	switch code {
	case DocProofOfAddress, DocProofOfRegisteredAddress, DocPersonalProofOfAddress:
		return true
	}
	return false
}

// NormalizeEntityType lower-cases and trims an entity type code.
func NormalizeEntityType(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// ============================================================================
// CASE AND PRINCIPAL RECORDS
// ============================================================================

// OnboardingCase identifies one sponsor/fund relationship. Created at
// intake; mutated only by phase transitions and risk/document updates; never
// deleted, for regulatory retention. Version is a monotonic counter bumped
// on every mutation and checked by the store on write.
type OnboardingCase struct {
	CaseID           uuid.UUID        `json:"case_id" db:"case_id"`
	SponsorName      string           `json:"sponsor_name" db:"sponsor_name"`
	EntityType       string           `json:"entity_type" db:"entity_type"`
	Jurisdiction     string           `json:"jurisdiction" db:"jurisdiction"`
	RegulatoryStatus string           `json:"regulatory_status" db:"regulatory_status"`
	Phase            Phase            `json:"phase" db:"phase"`
	Version          int              `json:"version" db:"version"`
	Risk             *RiskAssessment  `json:"risk,omitempty"`
	Approvals        []ApprovalRecord `json:"approvals,omitempty"`
	Principals       []Principal      `json:"principals,omitempty"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

// Principal is a natural or legal person associated with a case. Identity
// fields are immutable after intake; role and ownership may change.
type Principal struct {
	PrincipalID         uuid.UUID `json:"principal_id" db:"principal_id"`
	CaseID              uuid.UUID `json:"case_id" db:"case_id"`
	FullName            string    `json:"full_name" db:"full_name"`
	Role                string    `json:"role" db:"role"`
	OwnershipPercentage float64   `json:"ownership_percentage" db:"ownership_percentage"`
	IsUBO               bool      `json:"is_ubo" db:"is_ubo"`
}

// ApplyUBOThreshold sets the UBO flag when ownership meets the threshold.
// A principal flagged UBO stays flagged even if ownership later drops.
func (p *Principal) ApplyUBOThreshold(threshold float64) {
	if p.OwnershipPercentage >= threshold {
		p.IsUBO = true
	}
}

// ApprovalRecord is one explicit decision at one tier of the approval chain.
type ApprovalRecord struct {
	Tier      ApprovalTier     `json:"tier" db:"tier"`
	Decision  ApprovalDecision `json:"decision" db:"decision"`
	Approver  string           `json:"approver" db:"approver"`
	DecidedAt time.Time        `json:"decided_at" db:"decided_at"`
}

// ============================================================================
// RISK RECORDS
// ============================================================================

// RiskFactor is one scored dimension of an assessment.
type RiskFactor struct {
	Name         string  `json:"name"`
	Score        int     `json:"score"`
	Weight       float64 `json:"weight"`
	Contribution int     `json:"contribution"`
	Reason       string  `json:"reason"`
}

// RiskAssessment is the immutable snapshot of one scoring run. A case may
// accumulate a history of assessments; the latest is authoritative for
// workflow gating.
type RiskAssessment struct {
	AssessmentID uuid.UUID    `json:"assessment_id" db:"assessment_id"`
	CaseID       uuid.UUID    `json:"case_id" db:"case_id"`
	TotalScore   int          `json:"total_score" db:"total_score"`
	Rating       RiskRating   `json:"rating" db:"rating"`
	EDDRequired  bool         `json:"edd_required" db:"edd_required"`
	ApprovalTier ApprovalTier `json:"approval_tier" db:"approval_tier"`
	Factors      []RiskFactor `json:"factors"`
	AssessedAt   time.Time    `json:"assessed_at" db:"assessed_at"`
}

// ScreeningResult is one external screening outcome for one screened name.
type ScreeningResult struct {
	Name            string `json:"name"`
	HasPEPHit       bool   `json:"hasPepHit"`
	HasSanctionsHit bool   `json:"hasSanctionsHit"`
	HasAdverseMedia bool   `json:"hasAdverseMedia"`
}

// ============================================================================
// CHECKLIST RECORDS
// ============================================================================

// ChecklistSlot is one required-document obligation tracked to completion.
type ChecklistSlot struct {
	SlotID         uuid.UUID     `json:"slot_id" db:"slot_id"`
	OwnerType      SlotOwnerType `json:"owner_type" db:"owner_type"`
	PrincipalID    *uuid.UUID    `json:"principal_id,omitempty" db:"principal_id"`
	OwnerName      string        `json:"owner_name" db:"owner_name"`
	DocumentType   string        `json:"document_type" db:"document_type"`
	Label          string        `json:"label" db:"label"`
	Required       bool          `json:"required" db:"required"`
	Status         SlotStatus    `json:"status" db:"status"`
	DocumentID     *uuid.UUID    `json:"document_id,omitempty" db:"document_id"`
	HumanConfirmed bool          `json:"human_confirmed" db:"human_confirmed"`
}

// Checklist is the ordered set of slots generated for a case.
type Checklist struct {
	CaseID      uuid.UUID       `json:"case_id"`
	Slots       []ChecklistSlot `json:"slots"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// SlotByID returns a pointer into the checklist's slot slice, or nil.
func (c *Checklist) SlotByID(id uuid.UUID) *ChecklistSlot {
	for i := range c.Slots {
		if c.Slots[i].SlotID == id {
			return &c.Slots[i]
		}
	}
	return nil
}

// ============================================================================
// DOCUMENT RECORDS
// ============================================================================

// CertificationMetadata carries the certification block extracted from an
// uploaded document, when present.
type CertificationMetadata struct {
	IsCertified            bool       `json:"is_certified"`
	CertifierQualification string     `json:"certifier_qualification,omitempty"`
	CertificationWording   string     `json:"certification_wording,omitempty"`
	CertificationDate      *time.Time `json:"certification_date,omitempty"`
	ExpiryDate             *time.Time `json:"expiry_date,omitempty"`
}

// PolicyCheck is the recorded outcome of one certification-policy check.
type PolicyCheck struct {
	Name   string      `json:"name"`
	Result CheckResult `json:"result"`
	Detail string      `json:"detail"`
}

// DocumentAnalysis is the normalized classifier output for one uploaded
// file. Produced once per file; immutable.
type DocumentAnalysis struct {
	DocumentID    uuid.UUID             `json:"document_id" db:"document_id"`
	FileName      string                `json:"file_name" db:"file_name"`
	DetectedType  string                `json:"detected_type" db:"detected_type"`
	Confidence    float64               `json:"confidence" db:"confidence"`
	ExtractedName string                `json:"extracted_name,omitempty" db:"extracted_name"`
	Certification CertificationMetadata `json:"certification"`
	QualityFlags  []string              `json:"quality_flags,omitempty"`
	Checks        []PolicyCheck         `json:"checks,omitempty"`
	Status        CheckResult           `json:"status" db:"status"`
	Source        AnalysisSource        `json:"source" db:"source"`
	AnalyzedAt    time.Time             `json:"analyzed_at" db:"analyzed_at"`
}

// Assignment is the matcher's decision linking a document analysis to a
// checklist slot, or to unassigned when SlotID is nil.
type Assignment struct {
	DocumentID     uuid.UUID  `json:"document_id" db:"document_id"`
	SlotID         *uuid.UUID `json:"slot_id,omitempty" db:"slot_id"`
	Confidence     float64    `json:"confidence" db:"confidence"`
	Basis          MatchBasis `json:"basis" db:"basis"`
	HumanConfirmed bool       `json:"human_confirmed" db:"human_confirmed"`
	Reason         string     `json:"reason" db:"reason"`
}

// Unassigned reports whether the matcher left the document for manual
// reconciliation.
func (a Assignment) Unassigned() bool { return a.SlotID == nil }
