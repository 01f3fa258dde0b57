package classifier

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"onboarding-engine/internal/model"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func TestHeuristicExactKeywordMatch(t *testing.T) {
	analysis := Heuristic(uuid.New(), "passport.jpg", testNow)
	if analysis.DetectedType != model.DocCertifiedIdentity {
		t.Fatalf("expected certified identity, got %s", analysis.DetectedType)
	}
	if analysis.Confidence != 0.95 {
		t.Errorf("exact match should score 0.95, got %f", analysis.Confidence)
	}
	if analysis.Source != model.SourceHeuristic {
		t.Errorf("expected heuristic source, got %s", analysis.Source)
	}
}

func TestHeuristicSubstringConfidence(t *testing.T) {
	analysis := Heuristic(uuid.New(), "smith_passport_scan.pdf", testNow)
	if analysis.DetectedType != model.DocCertifiedIdentity {
		t.Fatalf("expected certified identity, got %s", analysis.DetectedType)
	}
	// 0.75 + len("passport")/50 = 0.91
	if math.Abs(analysis.Confidence-0.91) > 1e-9 {
		t.Errorf("expected confidence 0.91, got %f", analysis.Confidence)
	}
}

func TestHeuristicSubstringConfidenceCapped(t *testing.T) {
	analysis := Heuristic(uuid.New(), "acme_certificate_of_incorporation_final.pdf", testNow)
	if analysis.DetectedType != model.DocCertificateOfIncorporation {
		t.Fatalf("expected certificate of incorporation, got %s", analysis.DetectedType)
	}
	// len("certificate_of_incorporation") = 28, 0.75 + 0.56 caps at 0.95.
	if analysis.Confidence != 0.95 {
		t.Errorf("expected capped confidence 0.95, got %f", analysis.Confidence)
	}
}

func TestHeuristicNoMatch(t *testing.T) {
	analysis := Heuristic(uuid.New(), "holiday_photo.png", testNow)
	if analysis.DetectedType != model.DocTypeUnknown {
		t.Fatalf("expected unknown type, got %s", analysis.DetectedType)
	}
	if analysis.Confidence != 0.0 {
		t.Errorf("expected zero confidence, got %f", analysis.Confidence)
	}
	if len(analysis.QualityFlags) == 0 {
		t.Error("no-match analysis should carry a quality flag")
	}
}

func TestHeuristicIsDeterministic(t *testing.T) {
	docID := uuid.New()
	first := Heuristic(docID, "Trust-Deed.v2.pdf", testNow)
	second := Heuristic(docID, "Trust-Deed.v2.pdf", testNow)
	if first.DetectedType != second.DetectedType || first.Confidence != second.Confidence {
		t.Errorf("heuristic not deterministic: %s/%f vs %s/%f",
			first.DetectedType, first.Confidence, second.DetectedType, second.Confidence)
	}
	if first.DetectedType != model.DocTrustDeed {
		t.Errorf("expected trust deed, got %s", first.DetectedType)
	}
}

func TestHeuristicNormalizesSeparatorsAndCase(t *testing.T) {
	analysis := Heuristic(uuid.New(), "Register Of Directors.PDF", testNow)
	if analysis.DetectedType != model.DocRegisterOfDirectors {
		t.Errorf("expected register of directors, got %s", analysis.DetectedType)
	}
	if analysis.Confidence != 0.95 {
		t.Errorf("expected exact-match confidence, got %f", analysis.Confidence)
	}
}

func TestNormalizeUnrecognizedTypeDegradesToUnknown(t *testing.T) {
	analysis := Normalize(uuid.New(), "scan.pdf", Extraction{
		DetectedType: "selfie",
		Confidence:   0.99,
	}, testNow)

	if analysis.DetectedType != model.DocTypeUnknown {
		t.Errorf("expected unknown type, got %s", analysis.DetectedType)
	}
	if analysis.Confidence != 0 {
		t.Errorf("expected zeroed confidence, got %f", analysis.Confidence)
	}
	if len(analysis.QualityFlags) != 1 {
		t.Errorf("expected a quality flag naming the bad type, got %v", analysis.QualityFlags)
	}
}

func TestNormalizeClampsConfidence(t *testing.T) {
	high := Normalize(uuid.New(), "deed.pdf", Extraction{DetectedType: model.DocTrustDeed, Confidence: 1.7}, testNow)
	if high.Confidence != 1 {
		t.Errorf("expected confidence clamped to 1, got %f", high.Confidence)
	}
	low := Normalize(uuid.New(), "deed.pdf", Extraction{DetectedType: model.DocTrustDeed, Confidence: -0.4}, testNow)
	if low.Confidence != 0 {
		t.Errorf("expected confidence clamped to 0, got %f", low.Confidence)
	}
}

// ============================================================================
// CERTIFICATION POLICY
// ============================================================================

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func checkByName(t *testing.T, analysis model.DocumentAnalysis, name string) model.PolicyCheck {
	t.Helper()
	for _, c := range analysis.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("analysis has no check %q (have %+v)", name, analysis.Checks)
	return model.PolicyCheck{}
}

func TestPolicyPassesProperlyCertifiedIdentity(t *testing.T) {
	analysis := Normalize(uuid.New(), "passport.jpg", Extraction{
		DetectedType: model.DocCertifiedIdentity,
		Confidence:   0.9,
		Certification: model.CertificationMetadata{
			IsCertified:            true,
			CertifierQualification: "Solicitor of the Senior Courts",
			CertificationWording:   "I certify this is a true copy of the original document",
			CertificationDate:      date(2026, 2, 1),
			ExpiryDate:             date(2028, 6, 1),
		},
	}, testNow)

	if analysis.Status != model.CheckPass {
		t.Fatalf("expected pass, got %s: %+v", analysis.Status, analysis.Checks)
	}
	if len(analysis.Checks) != 4 {
		t.Errorf("expected 4 checks for certified identity with expiry, got %d", len(analysis.Checks))
	}
}

func TestPolicyUncertifiedPersonalDocNeedsReview(t *testing.T) {
	analysis := Normalize(uuid.New(), "utility_bill.pdf", Extraction{
		DetectedType: model.DocPersonalProofOfAddress,
		Confidence:   0.9,
	}, testNow)

	if analysis.Status != model.CheckReviewNeeded {
		t.Errorf("uncertified personal document should need review, got %s", analysis.Status)
	}
}

func TestPolicyUncertifiedEntityDocPasses(t *testing.T) {
	analysis := Normalize(uuid.New(), "structure_chart.pdf", Extraction{
		DetectedType: model.DocStructureChart,
		Confidence:   0.9,
	}, testNow)

	if analysis.Status != model.CheckPass {
		t.Errorf("entity document without certification should pass, got %s", analysis.Status)
	}
}

func TestPolicyRejectsUnacceptedWording(t *testing.T) {
	analysis := Normalize(uuid.New(), "passport.jpg", Extraction{
		DetectedType: model.DocCertifiedIdentity,
		Certification: model.CertificationMetadata{
			IsCertified:            true,
			CertifierQualification: "notary public",
			CertificationWording:   "looks fine to me",
			CertificationDate:      date(2026, 3, 1),
		},
	}, testNow)

	if c := checkByName(t, analysis, CheckCertificationWording); c.Result != model.CheckReviewNeeded {
		t.Errorf("unaccepted wording should need review, got %s", c.Result)
	}
	if analysis.Status != model.CheckReviewNeeded {
		t.Errorf("expected overall review_needed, got %s", analysis.Status)
	}
}

func TestPolicyRejectsUnqualifiedCertifier(t *testing.T) {
	analysis := Normalize(uuid.New(), "passport.jpg", Extraction{
		DetectedType: model.DocCertifiedIdentity,
		Certification: model.CertificationMetadata{
			IsCertified:            true,
			CertifierQualification: "plumber",
			CertificationWording:   "certified true copy",
			CertificationDate:      date(2026, 3, 1),
		},
	}, testNow)

	if c := checkByName(t, analysis, CheckCertifierQualified); c.Result != model.CheckReviewNeeded {
		t.Errorf("unqualified certifier should need review, got %s", c.Result)
	}
}

func TestPolicyStaleAddressProofCertificationFails(t *testing.T) {
	// Certified four months ago: outside the 3-month address window.
	analysis := Normalize(uuid.New(), "utility_bill.pdf", Extraction{
		DetectedType: model.DocPersonalProofOfAddress,
		Certification: model.CertificationMetadata{
			IsCertified:            true,
			CertifierQualification: "solicitor",
			CertificationWording:   "certified true copy",
			CertificationDate:      date(2025, 11, 10),
		},
	}, testNow)

	if c := checkByName(t, analysis, CheckCertificationDate); c.Result != model.CheckFail {
		t.Errorf("stale address certification should fail, got %s", c.Result)
	}
	if analysis.Status != model.CheckFail {
		t.Errorf("expected overall fail, got %s", analysis.Status)
	}
}

func TestPolicyIdentityWindowIsTwelveMonths(t *testing.T) {
	// Ten months old: fine for identity, would fail an address proof.
	analysis := Normalize(uuid.New(), "passport.jpg", Extraction{
		DetectedType: model.DocCertifiedIdentity,
		Certification: model.CertificationMetadata{
			IsCertified:            true,
			CertifierQualification: "notary",
			CertificationWording:   "certified true copy",
			CertificationDate:      date(2025, 5, 20),
		},
	}, testNow)

	if c := checkByName(t, analysis, CheckCertificationDate); c.Result != model.CheckPass {
		t.Errorf("10-month-old identity certification should pass, got %s", c.Result)
	}
}

func TestPolicyMissingCertificationDateNeedsReview(t *testing.T) {
	analysis := Normalize(uuid.New(), "passport.jpg", Extraction{
		DetectedType: model.DocCertifiedIdentity,
		Certification: model.CertificationMetadata{
			IsCertified:            true,
			CertifierQualification: "notary",
			CertificationWording:   "certified true copy",
		},
	}, testNow)

	if c := checkByName(t, analysis, CheckCertificationDate); c.Result != model.CheckReviewNeeded {
		t.Errorf("missing certification date should need review, got %s", c.Result)
	}
}

func TestPolicyNearExpiryFails(t *testing.T) {
	analysis := Normalize(uuid.New(), "passport.jpg", Extraction{
		DetectedType: model.DocCertifiedIdentity,
		Certification: model.CertificationMetadata{
			IsCertified:            true,
			CertifierQualification: "notary",
			CertificationWording:   "certified true copy",
			CertificationDate:      date(2026, 3, 1),
			ExpiryDate:             date(2026, 4, 20), // 36 days out
		},
	}, testNow)

	if c := checkByName(t, analysis, CheckExpiryDate); c.Result != model.CheckFail {
		t.Errorf("expiry under 90 days should fail, got %s", c.Result)
	}
	if analysis.Status != model.CheckFail {
		t.Errorf("expected overall fail, got %s", analysis.Status)
	}
}

func TestWorstOfOrdering(t *testing.T) {
	if got := model.CheckPass.Worst(model.CheckReviewNeeded); got != model.CheckReviewNeeded {
		t.Errorf("pass vs review: got %s", got)
	}
	if got := model.CheckReviewNeeded.Worst(model.CheckFail); got != model.CheckFail {
		t.Errorf("review vs fail: got %s", got)
	}
	if got := model.CheckFail.Worst(model.CheckPass); got != model.CheckFail {
		t.Errorf("fail vs pass: got %s", got)
	}
}
