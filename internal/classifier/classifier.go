// Package classifier turns uploaded documents into normalized
// DocumentAnalysis records.
//
// When a live extraction backend is configured the adapter validates and
// normalizes its structured output; it never performs image analysis itself.
// When no backend is available, or the backend's retries are exhausted, a
// deterministic heuristic infers the document type from filename keywords so
// the rest of the pipeline stays testable without network dependencies.
// Certification-policy checks apply to every analysis regardless of source.
package classifier

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"onboarding-engine/internal/model"
)

// Extraction is the structured output of the external vision backend: the
// detected type, its confidence, the identity fields it pulled out of the
// image and any certification block it found.
type Extraction struct {
	DetectedType  string                      `json:"detected_type"`
	Confidence    float64                     `json:"confidence"`
	ExtractedName string                      `json:"extracted_name"`
	Certification model.CertificationMetadata `json:"certification"`
	QualityFlags  []string                    `json:"quality_flags"`
}

// knownDocTypes is the closed set of type codes an extraction may carry.
var knownDocTypes = map[string]bool{
	model.DocCertificateOfIncorporation:      true,
	model.DocConstitutionalDocument:          true,
	model.DocRegisterOfDirectors:             true,
	model.DocRegisterOfShareholders:          true,
	model.DocStructureChart:                  true,
	model.DocProofOfAddress:                  true,
	model.DocCertificateOfRegistration:       true,
	model.DocLLPAgreement:                    true,
	model.DocRegisterOfMembers:               true,
	model.DocProofOfRegisteredAddress:        true,
	model.DocPartnershipAgreement:            true,
	model.DocCertificateOfLimitedPartnership: true,
	model.DocRegisterOfPartners:              true,
	model.DocTrustDeed:                       true,
	model.DocRegisterOfTrustees:              true,
	model.DocFoundationCharter:               true,
	model.DocFoundationRegulations:           true,
	model.DocRegisterOfCouncilMembers:        true,
	model.DocRegulatoryLicense:               true,
	model.DocGoodStandingLetter:              true,
	model.DocCertifiedIdentity:               true,
	model.DocPersonalProofOfAddress:          true,
	model.DocSourceOfWealth:                  true,
	model.DocSourceOfFunds:                   true,
	model.DocProfessionalReference:           true,
}

// Normalize validates a backend extraction and produces the immutable
// analysis record, including policy check results. An unrecognized detected
// type degrades to unknown with a quality flag rather than failing.
func Normalize(docID uuid.UUID, fileName string, ex Extraction, now time.Time) model.DocumentAnalysis {
	analysis := model.DocumentAnalysis{
		DocumentID:    docID,
		FileName:      fileName,
		DetectedType:  ex.DetectedType,
		Confidence:    clampConfidence(ex.Confidence),
		ExtractedName: strings.TrimSpace(ex.ExtractedName),
		Certification: ex.Certification,
		QualityFlags:  append([]string(nil), ex.QualityFlags...),
		Source:        model.SourceExtraction,
		AnalyzedAt:    now,
	}

	if analysis.DetectedType == "" || !knownDocTypes[analysis.DetectedType] {
		if analysis.DetectedType != "" {
			analysis.QualityFlags = append(analysis.QualityFlags,
				fmt.Sprintf("unrecognized detected type %q", analysis.DetectedType))
		}
		analysis.DetectedType = model.DocTypeUnknown
		analysis.Confidence = 0
	}

	applyCertificationPolicy(&analysis, now)
	return analysis
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// ============================================================================
// HEURISTIC FALLBACK
// ============================================================================

// heuristicOrder fixes the iteration order over keyword tables so fallback
// classification is fully deterministic.
var heuristicOrder = []string{
	model.DocCertificateOfIncorporation,
	model.DocCertificateOfLimitedPartnership,
	model.DocCertificateOfRegistration,
	model.DocConstitutionalDocument,
	model.DocLLPAgreement,
	model.DocPartnershipAgreement,
	model.DocRegisterOfDirectors,
	model.DocRegisterOfShareholders,
	model.DocRegisterOfMembers,
	model.DocRegisterOfPartners,
	model.DocRegisterOfTrustees,
	model.DocRegisterOfCouncilMembers,
	model.DocTrustDeed,
	model.DocFoundationCharter,
	model.DocFoundationRegulations,
	model.DocStructureChart,
	model.DocRegulatoryLicense,
	model.DocGoodStandingLetter,
	model.DocCertifiedIdentity,
	model.DocPersonalProofOfAddress,
	model.DocProofOfRegisteredAddress,
	model.DocProofOfAddress,
	model.DocSourceOfWealth,
	model.DocSourceOfFunds,
	model.DocProfessionalReference,
}

var keywordTable = map[string][]string{
	model.DocCertificateOfIncorporation:      {"certificate_of_incorporation", "cert_of_incorporation", "incorporation"},
	model.DocCertificateOfLimitedPartnership: {"certificate_of_limited_partnership", "lp_certificate"},
	model.DocCertificateOfRegistration:       {"certificate_of_registration", "registration_certificate"},
	model.DocConstitutionalDocument:          {"articles_of_association", "memorandum_and_articles", "constitutional_document", "bylaws"},
	model.DocLLPAgreement:                    {"llp_agreement", "members_agreement"},
	model.DocPartnershipAgreement:            {"partnership_agreement", "lpa"},
	model.DocRegisterOfDirectors:             {"register_of_directors", "directors_register"},
	model.DocRegisterOfShareholders:          {"register_of_shareholders", "shareholders_register"},
	model.DocRegisterOfMembers:               {"register_of_members", "members_register"},
	model.DocRegisterOfPartners:              {"register_of_partners", "partners_register"},
	model.DocRegisterOfTrustees:              {"register_of_trustees", "trustees_register"},
	model.DocRegisterOfCouncilMembers:        {"register_of_council_members", "council_register"},
	model.DocTrustDeed:                       {"trust_deed", "deed_of_trust"},
	model.DocFoundationCharter:               {"foundation_charter", "charter"},
	model.DocFoundationRegulations:           {"foundation_regulations"},
	model.DocStructureChart:                  {"structure_chart", "ownership_chart", "org_chart"},
	model.DocRegulatoryLicense:               {"regulatory_license", "regulatory_licence", "authorisation", "license"},
	model.DocGoodStandingLetter:              {"good_standing", "certificate_of_good_standing"},
	model.DocCertifiedIdentity:               {"passport", "identity_card", "national_id", "driving_licence", "id_document"},
	model.DocPersonalProofOfAddress:          {"utility_bill", "bank_statement", "council_tax", "address_proof"},
	model.DocProofOfRegisteredAddress:        {"registered_address", "registered_office"},
	model.DocProofOfAddress:                  {"proof_of_address"},
	model.DocSourceOfWealth:                  {"source_of_wealth", "sow_declaration"},
	model.DocSourceOfFunds:                   {"source_of_funds", "sof_evidence"},
	model.DocProfessionalReference:           {"professional_reference", "reference_letter"},
}

// Heuristic infers a document type from the filename alone. Confidence is
// derived deterministically: an exact keyword-as-filename match scores 0.95;
// a keyword present as a substring scores 0.75 plus keyword length over 50,
// capped at 0.95; no keyword match yields the unknown type at 0.0.
func Heuristic(docID uuid.UUID, fileName string, now time.Time) model.DocumentAnalysis {
	base := normalizeFileName(fileName)

	bestType := model.DocTypeUnknown
	bestConfidence := 0.0
	for _, docType := range heuristicOrder {
		for _, keyword := range keywordTable[docType] {
			confidence := keywordConfidence(base, keyword)
			if confidence > bestConfidence {
				bestType = docType
				bestConfidence = confidence
			}
		}
	}

	analysis := model.DocumentAnalysis{
		DocumentID:   docID,
		FileName:     fileName,
		DetectedType: bestType,
		Confidence:   bestConfidence,
		Source:       model.SourceHeuristic,
		AnalyzedAt:   now,
	}
	if bestType == model.DocTypeUnknown {
		analysis.QualityFlags = []string{"no filename keyword match"}
	}

	applyCertificationPolicy(&analysis, now)
	return analysis
}

func keywordConfidence(base, keyword string) float64 {
	if base == keyword {
		return 0.95
	}
	if strings.Contains(base, keyword) {
		confidence := 0.75 + float64(len(keyword))/50
		if confidence > 0.95 {
			confidence = 0.95
		}
		return confidence
	}
	return 0
}

func normalizeFileName(fileName string) string {
	base := strings.ToLower(filepath.Base(fileName))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	replacer := strings.NewReplacer(" ", "_", "-", "_", ".", "_")
	return replacer.Replace(base)
}
