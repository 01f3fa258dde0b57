package classifier

import (
	"fmt"
	"strings"
	"time"

	"onboarding-engine/internal/model"
)

// Policy check names recorded on the analysis.
const (
	CheckCertificationWording = "certification_wording"
	CheckCertifierQualified   = "certifier_qualification"
	CheckCertificationDate    = "certification_date"
	CheckExpiryDate           = "expiry_date"
)

// Certification date windows and the minimum remaining validity.
const (
	addressProofCertWindow = 3 * 31 * 24 * time.Hour  // 3 months
	identityCertWindow     = 12 * 31 * 24 * time.Hour // 12 months
	minRemainingValidity   = 90 * 24 * time.Hour
)

// acceptedWordings is the family of certification phrases a certifier may
// use. Matching is case-insensitive substring.
var acceptedWordings = []string{
	"certify this is a true copy",
	"certified true copy",
	"certified as a true copy",
	"true copy of the original",
	"true likeness of the individual",
}

// acceptedQualifications is the set of certifier professions accepted by
// policy. Matching is case-insensitive substring so "notary public" and
// "chartered accountant" both qualify.
var acceptedQualifications = []string{
	"lawyer",
	"solicitor",
	"barrister",
	"attorney",
	"notary",
	"accountant",
}

// applyCertificationPolicy runs the certification checks against an analysis
// and sets the overall document status to the worst individual result: any
// fail fails the document, otherwise any review_needed sends it to review.
func applyCertificationPolicy(analysis *model.DocumentAnalysis, now time.Time) {
	var checks []model.PolicyCheck

	cert := analysis.Certification
	needsCertification := model.IsPersonalDocType(analysis.DetectedType)

	if !cert.IsCertified {
		if needsCertification {
			checks = append(checks, model.PolicyCheck{
				Name:   CheckCertificationWording,
				Result: model.CheckReviewNeeded,
				Detail: "personal document carries no certification",
			})
		}
	} else {
		checks = append(checks, wordingCheck(cert))
		checks = append(checks, qualificationCheck(cert))
		if dateCheck, applicable := certificationDateCheck(analysis.DetectedType, cert, now); applicable {
			checks = append(checks, dateCheck)
		}
	}

	if cert.ExpiryDate != nil {
		checks = append(checks, expiryCheck(cert, now))
	}

	status := model.CheckPass
	for _, check := range checks {
		status = status.Worst(check.Result)
	}

	analysis.Checks = checks
	analysis.Status = status
}

func wordingCheck(cert model.CertificationMetadata) model.PolicyCheck {
	wording := strings.ToLower(cert.CertificationWording)
	for _, accepted := range acceptedWordings {
		if strings.Contains(wording, accepted) {
			return model.PolicyCheck{Name: CheckCertificationWording, Result: model.CheckPass,
				Detail: "accepted certification wording"}
		}
	}
	return model.PolicyCheck{Name: CheckCertificationWording, Result: model.CheckReviewNeeded,
		Detail: "certification wording not in accepted family"}
}

func qualificationCheck(cert model.CertificationMetadata) model.PolicyCheck {
	qualification := strings.ToLower(cert.CertifierQualification)
	for _, accepted := range acceptedQualifications {
		if strings.Contains(qualification, accepted) {
			return model.PolicyCheck{Name: CheckCertifierQualified, Result: model.CheckPass,
				Detail: fmt.Sprintf("certifier qualification %q accepted", cert.CertifierQualification)}
		}
	}
	return model.PolicyCheck{Name: CheckCertifierQualified, Result: model.CheckReviewNeeded,
		Detail: fmt.Sprintf("certifier qualification %q not in accepted set", cert.CertifierQualification)}
}

// certificationDateCheck enforces the freshness window: 3 months for address
// proofs, 12 months for identity documents. Other document types carry no
// window; the second return is false for them.
func certificationDateCheck(docType string, cert model.CertificationMetadata, now time.Time) (model.PolicyCheck, bool) {
	var window time.Duration
	switch {
	case model.IsAddressProofDocType(docType):
		window = addressProofCertWindow
	case model.IsIdentityDocType(docType):
		window = identityCertWindow
	default:
		return model.PolicyCheck{}, false
	}

	if cert.CertificationDate == nil {
		return model.PolicyCheck{Name: CheckCertificationDate, Result: model.CheckReviewNeeded,
			Detail: "certification carries no date"}, true
	}
	age := now.Sub(*cert.CertificationDate)
	if age > window {
		return model.PolicyCheck{Name: CheckCertificationDate, Result: model.CheckFail,
			Detail: fmt.Sprintf("certification dated %s is outside the window", cert.CertificationDate.Format("2006-01-02"))}, true
	}
	return model.PolicyCheck{Name: CheckCertificationDate, Result: model.CheckPass,
		Detail: "certification date within window"}, true
}

func expiryCheck(cert model.CertificationMetadata, now time.Time) model.PolicyCheck {
	if cert.ExpiryDate.Before(now.Add(minRemainingValidity)) {
		return model.PolicyCheck{Name: CheckExpiryDate, Result: model.CheckFail,
			Detail: fmt.Sprintf("document expires %s, less than 90 days out", cert.ExpiryDate.Format("2006-01-02"))}
	}
	return model.PolicyCheck{Name: CheckExpiryDate, Result: model.CheckPass,
		Detail: "expiry beyond minimum validity"}
}
