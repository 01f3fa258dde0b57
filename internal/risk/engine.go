// Package risk implements the risk scoring engine for onboarding cases.
//
// A scoring run evaluates five weighted factors — jurisdiction, PEP status,
// sanctions, adverse media and entity structure — and produces an immutable
// RiskAssessment carrying the clamped total, the rating band, the EDD flag
// and the required approval tier. Scoring is a pure computation: persistence
// of the resulting assessment is the caller's responsibility.
package risk

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"onboarding-engine/internal/model"
)

// Factor names used in assessment output.
const (
	FactorJurisdiction    = "jurisdiction"
	FactorPEP             = "pep"
	FactorSanctions       = "sanctions"
	FactorAdverseMedia    = "adverse_media"
	FactorEntityStructure = "entity_structure"
)

// Factor weights. Fixed and non-configurable at runtime so every assessment
// in a case history was produced under the same rule set. Sum is 1.0.
const (
	weightJurisdiction    = 0.25
	weightPEP             = 0.25
	weightSanctions       = 0.30
	weightAdverseMedia    = 0.10
	weightEntityStructure = 0.10
)

// Jurisdiction tier scores.
const (
	scoreProhibited   = 100
	scoreHighRisk     = 80
	scoreElevated     = 50
	scoreStandard     = 20
	scoreLowRisk      = 0
	scoreUnknownJuris = 50
)

// Fixed factor scores.
const (
	scorePEPHit       = 60 // domestic-PEP baseline; screening data carries no locality
	scoreSanctionsHit = 100
	scoreAdverseMedia = 30
)

// Rating thresholds over the clamped total.
const (
	thresholdMedium = 40
	thresholdHigh   = 70
)

// jurisdictionTiers maps ISO country codes onto the five ordered tiers.
// Codes absent from every tier score as "unknown" (50) rather than
// defaulting to low, so a missing code never silently under-scores.
var jurisdictionTiers = map[string]int{
	// Prohibited
	"IR": scoreProhibited, "KP": scoreProhibited, "MM": scoreProhibited,
	// High risk
	"AF": scoreHighRisk, "SY": scoreHighRisk, "YE": scoreHighRisk,
	"SS": scoreHighRisk, "HT": scoreHighRisk, "NG": scoreHighRisk,
	// Elevated
	"AE": scoreElevated, "TR": scoreElevated, "PA": scoreElevated,
	"VG": scoreElevated, "KY": scoreElevated, "BS": scoreElevated,
	"MC": scoreElevated, "VU": scoreElevated,
	// Standard
	"MT": scoreStandard, "CY": scoreStandard, "HK": scoreStandard,
	"SG": scoreStandard, "BM": scoreStandard, "MU": scoreStandard,
	// Low
	"GB": scoreLowRisk, "JE": scoreLowRisk, "GG": scoreLowRisk,
	"IM": scoreLowRisk, "IE": scoreLowRisk, "LU": scoreLowRisk,
	"FR": scoreLowRisk, "DE": scoreLowRisk, "NL": scoreLowRisk,
	"CH": scoreLowRisk, "US": scoreLowRisk, "CA": scoreLowRisk,
	"AU": scoreLowRisk, "NZ": scoreLowRisk, "JP": scoreLowRisk,
	"SE": scoreLowRisk, "NO": scoreLowRisk, "DK": scoreLowRisk,
}

var tierNames = map[int]string{
	scoreProhibited: "prohibited",
	scoreHighRisk:   "high",
	scoreElevated:   "elevated",
	scoreStandard:   "standard",
	scoreLowRisk:    "low",
}

// entityStructureScores maps normalized entity type codes onto structure
// complexity scores. Unrecognized codes default to 20.
var entityStructureScores = map[string]int{
	model.EntityCompany:    0,
	model.EntityLLC:        0,
	model.EntityLLP:        10,
	model.EntityLP:         20,
	model.EntityTrust:      40,
	model.EntityPCC:        40,
	model.EntityICC:        40,
	model.EntityFoundation: 60,
}

const defaultStructureScore = 20

// Score evaluates the five risk factors for a case and returns the
// assessment. Screening is mandatory input: an empty result set is a hard
// error because skipping it would understate risk. A missing or unrecognized
// jurisdiction code is not an error; it degrades to the "unknown" tier with
// an auditable reason.
func Score(caseID uuid.UUID, jurisdiction string, screening []model.ScreeningResult, entityType string) (*model.RiskAssessment, error) {
	if len(screening) == 0 {
		return nil, fmt.Errorf("risk scoring requires screening results: none provided for case %s", caseID)
	}

	factors := []model.RiskFactor{
		jurisdictionFactor(jurisdiction),
		pepFactor(screening),
		sanctionsFactor(screening),
		adverseMediaFactor(screening),
		entityStructureFactor(entityType),
	}

	total := Aggregate(factors)
	rating, edd, tier := band(total)

	// Any sanctions hit overrides the banding: the relationship is treated
	// as maximum risk regardless of how the weighted total landed.
	if hasSanctionsHit(screening) {
		total = 100
		rating = model.RatingHigh
		edd = true
		tier = model.TierBoard
	}

	return &model.RiskAssessment{
		AssessmentID: uuid.New(),
		CaseID:       caseID,
		TotalScore:   total,
		Rating:       rating,
		EDDRequired:  edd,
		ApprovalTier: tier,
		Factors:      factors,
		AssessedAt:   time.Now().UTC(),
	}, nil
}

// Aggregate sums the rounded weighted contributions and clamps to [0, 100].
func Aggregate(factors []model.RiskFactor) int {
	total := 0
	for _, f := range factors {
		total += f.Contribution
	}
	if total < 0 {
		return 0
	}
	if total > 100 {
		return 100
	}
	return total
}

func band(total int) (model.RiskRating, bool, model.ApprovalTier) {
	switch {
	case total >= thresholdHigh:
		return model.RatingHigh, true, model.TierBoard
	case total >= thresholdMedium:
		return model.RatingMedium, true, model.TierMLRO
	default:
		return model.RatingLow, false, model.TierCompliance
	}
}

func contribution(score int, weight float64) int {
	return int(math.Round(float64(score) * weight))
}

func newFactor(name string, score int, weight float64, reason string) model.RiskFactor {
	return model.RiskFactor{
		Name:         name,
		Score:        score,
		Weight:       weight,
		Contribution: contribution(score, weight),
		Reason:       reason,
	}
}

func jurisdictionFactor(code string) model.RiskFactor {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return newFactor(FactorJurisdiction, scoreUnknownJuris, weightJurisdiction,
			"jurisdiction code missing; scored as unknown tier")
	}
	score, ok := jurisdictionTiers[normalized]
	if !ok {
		return newFactor(FactorJurisdiction, scoreUnknownJuris, weightJurisdiction,
			fmt.Sprintf("jurisdiction %s not in any tier table; scored as unknown tier", normalized))
	}
	return newFactor(FactorJurisdiction, score, weightJurisdiction,
		fmt.Sprintf("jurisdiction %s in %s tier", normalized, tierNames[score]))
}

func pepFactor(screening []model.ScreeningResult) model.RiskFactor {
	for _, r := range screening {
		if r.HasPEPHit {
			return newFactor(FactorPEP, scorePEPHit, weightPEP,
				fmt.Sprintf("PEP hit on %s", r.Name))
		}
	}
	return newFactor(FactorPEP, 0, weightPEP, "no PEP hits")
}

func sanctionsFactor(screening []model.ScreeningResult) model.RiskFactor {
	for _, r := range screening {
		if r.HasSanctionsHit {
			return newFactor(FactorSanctions, scoreSanctionsHit, weightSanctions,
				fmt.Sprintf("sanctions hit on %s", r.Name))
		}
	}
	return newFactor(FactorSanctions, 0, weightSanctions, "no sanctions hits")
}

func adverseMediaFactor(screening []model.ScreeningResult) model.RiskFactor {
	for _, r := range screening {
		if r.HasAdverseMedia {
			return newFactor(FactorAdverseMedia, scoreAdverseMedia, weightAdverseMedia,
				fmt.Sprintf("adverse media hit on %s; not auto-resolved", r.Name))
		}
	}
	return newFactor(FactorAdverseMedia, 0, weightAdverseMedia, "no adverse media")
}

func entityStructureFactor(entityType string) model.RiskFactor {
	normalized := model.NormalizeEntityType(entityType)
	score, ok := entityStructureScores[normalized]
	if !ok {
		return newFactor(FactorEntityStructure, defaultStructureScore, weightEntityStructure,
			fmt.Sprintf("entity type %q not in structure table; scored at default", entityType))
	}
	return newFactor(FactorEntityStructure, score, weightEntityStructure,
		fmt.Sprintf("entity structure %s", normalized))
}

func hasSanctionsHit(screening []model.ScreeningResult) bool {
	for _, r := range screening {
		if r.HasSanctionsHit {
			return true
		}
	}
	return false
}
