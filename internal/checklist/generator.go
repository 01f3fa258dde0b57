// Package checklist generates the required-document checklist for an
// onboarding case and reports completion progress over it.
//
// Generation is a pure function of the case facts: entity type, regulatory
// status, principal list and the latest risk outcome. Two calls with
// identical inputs yield identical slot sets in identical order, so the
// checklist is stable for rendering and testing. Generation never carries
// forward document bindings from a prior run; reconciling bound documents
// back onto a fresh checklist is the assignment matcher's job.
package checklist

import (
	"time"

	"github.com/google/uuid"

	"onboarding-engine/internal/model"
)

// slotSpec is one entry in the fixed per-entity-type document tables.
type slotSpec struct {
	docType  string
	label    string
	required bool
}

// baseDocumentSets holds the sponsor-level document set per entity type.
// Order within each set is the order slots appear in the checklist.
var baseDocumentSets = map[string][]slotSpec{
	model.EntityCompany: {
		{model.DocCertificateOfIncorporation, "Certificate of incorporation", true},
		{model.DocConstitutionalDocument, "Constitutional document", true},
		{model.DocRegisterOfDirectors, "Register of directors", true},
		{model.DocRegisterOfShareholders, "Register of shareholders", true},
		{model.DocStructureChart, "Structure chart", true},
		{model.DocProofOfAddress, "Proof of registered address", true},
	},
	model.EntityLLP: {
		{model.DocCertificateOfRegistration, "Certificate of registration", true},
		{model.DocLLPAgreement, "LLP agreement", true},
		{model.DocRegisterOfMembers, "Register of members", true},
		{model.DocStructureChart, "Structure chart", true},
		{model.DocProofOfRegisteredAddress, "Proof of registered address", true},
	},
	model.EntityLP: {
		{model.DocCertificateOfLimitedPartnership, "Certificate of limited partnership", true},
		{model.DocPartnershipAgreement, "Partnership agreement", true},
		{model.DocRegisterOfPartners, "Register of partners", true},
		{model.DocStructureChart, "Structure chart", true},
		{model.DocProofOfAddress, "Proof of principal place of business", true},
	},
	model.EntityTrust: {
		{model.DocTrustDeed, "Trust deed", true},
		{model.DocRegisterOfTrustees, "Register of trustees", true},
		{model.DocStructureChart, "Structure chart", true},
		{model.DocProofOfAddress, "Proof of trustee address", true},
	},
	model.EntityFoundation: {
		{model.DocFoundationCharter, "Foundation charter", true},
		{model.DocFoundationRegulations, "Foundation regulations", true},
		{model.DocRegisterOfCouncilMembers, "Register of council members", true},
		{model.DocStructureChart, "Structure chart", true},
		{model.DocProofOfAddress, "Proof of registered address", true},
	},
}

// Entity types sharing another type's table.
var documentSetAliases = map[string]string{
	model.EntityLLC: model.EntityCompany,
	model.EntityPCC: model.EntityCompany,
	model.EntityICC: model.EntityCompany,
}

// genericDocumentSet is the fallback for entity types absent from the table.
// Onboarding data is incomplete early on, so an unknown type produces a
// usable generic checklist rather than an error.
var genericDocumentSet = []slotSpec{
	{model.DocCertificateOfRegistration, "Certificate of registration or equivalent", true},
	{model.DocConstitutionalDocument, "Constitutional document", true},
	{model.DocStructureChart, "Structure chart", true},
	{model.DocProofOfAddress, "Proof of registered address", true},
}

// regulatedDocumentSet is appended when the sponsor is regulated.
var regulatedDocumentSet = []slotSpec{
	{model.DocRegulatoryLicense, "Regulatory license / authorisation", true},
	{model.DocGoodStandingLetter, "Letter of good standing", false},
}

// personalDocumentSet is appended once per principal.
var personalDocumentSet = []slotSpec{
	{model.DocCertifiedIdentity, "Certified identity document", true},
	{model.DocPersonalProofOfAddress, "Proof of address", true},
}

// eddDocumentSet is appended at case level when EDD is required.
var eddDocumentSet = []slotSpec{
	{model.DocSourceOfWealth, "Source of wealth declaration", true},
	{model.DocSourceOfFunds, "Source of funds evidence", true},
	{model.DocProfessionalReference, "Professional reference", false},
}

// Generate builds the checklist for a case. Sponsor-level slots come first
// (base set, then regulator items, then EDD items), followed by the two
// personal slots for each principal in input order. All slots start pending.
func Generate(caseID uuid.UUID, entityType, regulatoryStatus string, principals []model.Principal, risk *model.RiskAssessment) model.Checklist {
	cl := model.Checklist{
		CaseID:      caseID,
		GeneratedAt: time.Now().UTC(),
	}

	for _, spec := range baseSetFor(entityType) {
		cl.Slots = append(cl.Slots, sponsorSlot(spec))
	}

	if regulatoryStatus == model.StatusRegulated {
		for _, spec := range regulatedDocumentSet {
			cl.Slots = append(cl.Slots, sponsorSlot(spec))
		}
	}

	if risk != nil && risk.EDDRequired {
		for _, spec := range eddDocumentSet {
			cl.Slots = append(cl.Slots, sponsorSlot(spec))
		}
	}

	for _, p := range principals {
		for _, spec := range personalDocumentSet {
			principalID := p.PrincipalID
			cl.Slots = append(cl.Slots, model.ChecklistSlot{
				SlotID:       uuid.New(),
				OwnerType:    model.OwnerPrincipal,
				PrincipalID:  &principalID,
				OwnerName:    p.FullName,
				DocumentType: spec.docType,
				Label:        spec.label,
				Required:     spec.required,
				Status:       model.SlotPending,
			})
		}
	}

	return cl
}

func baseSetFor(entityType string) []slotSpec {
	normalized := model.NormalizeEntityType(entityType)
	if alias, ok := documentSetAliases[normalized]; ok {
		normalized = alias
	}
	if set, ok := baseDocumentSets[normalized]; ok {
		return set
	}
	return genericDocumentSet
}

func sponsorSlot(spec slotSpec) model.ChecklistSlot {
	return model.ChecklistSlot{
		SlotID:       uuid.New(),
		OwnerType:    model.OwnerSponsor,
		OwnerName:    "Sponsor entity",
		DocumentType: spec.docType,
		Label:        spec.label,
		Required:     spec.required,
		Status:       model.SlotPending,
	}
}

// ProgressSummary reports checklist completion for gating and display.
type ProgressSummary struct {
	Total        int     `json:"total"`
	Complete     int     `json:"complete"`
	ReviewNeeded int     `json:"review_needed"`
	Pending      int     `json:"pending"`
	Percentage   float64 `json:"percentage"`
	CanAdvance   bool    `json:"can_advance"`
}

// Progress summarizes slot statuses. CanAdvance is true only when every
// required slot is complete and no slot at all sits in review. Optional
// slots left pending do not block advancement.
func Progress(cl model.Checklist) ProgressSummary {
	summary := ProgressSummary{Total: len(cl.Slots)}
	requiredOutstanding := 0
	for _, slot := range cl.Slots {
		switch slot.Status {
		case model.SlotComplete:
			summary.Complete++
		case model.SlotReviewNeeded:
			summary.ReviewNeeded++
		default:
			summary.Pending++
		}
		if slot.Required && slot.Status != model.SlotComplete {
			requiredOutstanding++
		}
	}
	if summary.Total > 0 {
		summary.Percentage = float64(summary.Complete) / float64(summary.Total) * 100
	} else {
		// An empty checklist is trivially complete; the case still passes
		// through Documentation so the empty record exists for audit.
		summary.Percentage = 100
	}
	summary.CanAdvance = summary.ReviewNeeded == 0 && requiredOutstanding == 0
	return summary
}

// OutstandingSlots returns the required slots not yet complete, in checklist
// order. Used for guard reasons and for merging items back into a returning
// sponsor's checklist on re-entry.
func OutstandingSlots(cl model.Checklist) []model.ChecklistSlot {
	var outstanding []model.ChecklistSlot
	for _, slot := range cl.Slots {
		if slot.Required && slot.Status != model.SlotComplete {
			outstanding = append(outstanding, slot)
		}
	}
	return outstanding
}
