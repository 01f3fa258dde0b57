// Package workflow holds the onboarding phase machine and its guard
// conditions. The machine is the single source of truth for what is required
// to leave a phase; rendering and routing layers query it rather than
// re-implementing gating logic.
//
// Progression is linear and one-directional:
//
//	ENQUIRY → FUND_STRUCTURE → SCREENING → DOCUMENTATION → APPROVAL →
//	COMMERCIAL → COMPLETE
//
// No phase may be skipped even when its guard is trivially satisfied: an
// entity with nothing outstanding still passes through DOCUMENTATION so an
// empty-but-present checklist record exists for audit. A rejection at any
// required approval tier moves the case to the terminal DECLINED phase.
package workflow

import (
	"fmt"
	"time"

	"onboarding-engine/internal/checklist"
	"onboarding-engine/internal/match"
	"onboarding-engine/internal/model"
)

// Decision is the structured outcome of a phase-transition request. A
// rejected request is deterministic and side-effect free: the case record is
// untouched.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

var phaseOrder = []model.Phase{
	model.PhaseEnquiry,
	model.PhaseFundStructure,
	model.PhaseScreening,
	model.PhaseDocumentation,
	model.PhaseApproval,
	model.PhaseCommercial,
	model.PhaseComplete,
}

// Next returns the phase following p in the linear order. The second return
// is false for COMPLETE, DECLINED and unknown phases.
func Next(p model.Phase) (model.Phase, bool) {
	for i, phase := range phaseOrder[:len(phaseOrder)-1] {
		if phase == p {
			return phaseOrder[i+1], true
		}
	}
	return "", false
}

// Advance attempts to move the case to the next phase. When the current
// phase's guard is satisfied the case's phase and version are updated and
// the decision is allowed; otherwise the case is untouched and the reason
// names what is outstanding.
func Advance(c *model.OnboardingCase, cl model.Checklist) Decision {
	next, ok := Next(c.Phase)
	if !ok {
		return Decision{Allowed: false, Reason: fmt.Sprintf("phase %s is terminal", c.Phase)}
	}

	if decision := guardFor(c, cl); !decision.Allowed {
		return decision
	}

	c.Phase = next
	c.Version++
	c.UpdatedAt = time.Now().UTC()
	return Decision{Allowed: true, Reason: fmt.Sprintf("advanced to %s", next)}
}

func guardFor(c *model.OnboardingCase, cl model.Checklist) Decision {
	switch c.Phase {
	case model.PhaseScreening:
		return guardScreening(c)
	case model.PhaseDocumentation:
		return guardDocumentation(cl)
	case model.PhaseApproval:
		return guardApproval(c)
	default:
		return Decision{Allowed: true}
	}
}

// guardScreening requires a risk snapshot before the case can leave
// SCREENING: scoring without screening results never completes, so the
// snapshot's presence proves the mandatory screening ran.
func guardScreening(c *model.OnboardingCase) Decision {
	if c.Risk == nil {
		return Decision{Allowed: false, Reason: "no risk assessment recorded; screening and scoring must complete first"}
	}
	return Decision{Allowed: true}
}

func guardDocumentation(cl model.Checklist) Decision {
	progress := checklist.Progress(cl)
	if progress.CanAdvance {
		return Decision{Allowed: true}
	}
	outstanding := checklist.OutstandingSlots(cl)
	if len(outstanding) > 0 {
		first := outstanding[0]
		return Decision{
			Allowed: false,
			Reason: fmt.Sprintf("checklist incomplete: %d of %d slots outstanding, next is %q (%s) for %s",
				len(outstanding), progress.Total, first.Label, first.DocumentType, first.OwnerName),
		}
	}
	return Decision{
		Allowed: false,
		Reason:  fmt.Sprintf("checklist has %d slot(s) awaiting review", progress.ReviewNeeded),
	}
}

func guardApproval(c *model.OnboardingCase) Decision {
	if c.Risk == nil {
		return Decision{Allowed: false, Reason: "no risk assessment recorded; approval tier cannot be determined"}
	}
	for _, tier := range c.Risk.ApprovalTier.RequiredTiers() {
		record, found := latestDecisionAt(c, tier)
		if !found {
			return Decision{Allowed: false, Reason: fmt.Sprintf("approval at %s tier not yet recorded", tier)}
		}
		if record.Decision == model.DecisionRejected {
			return Decision{Allowed: false, Reason: fmt.Sprintf("approval at %s tier was rejected; case is declined", tier)}
		}
	}
	return Decision{Allowed: true}
}

func latestDecisionAt(c *model.OnboardingCase, tier model.ApprovalTier) (model.ApprovalRecord, bool) {
	for i := len(c.Approvals) - 1; i >= 0; i-- {
		if c.Approvals[i].Tier == tier {
			return c.Approvals[i], true
		}
	}
	return model.ApprovalRecord{}, false
}

// RequiredApprovalTiers exposes the approval chain mandated by the latest
// risk assessment, so the caller can enforce who may record each decision.
// Role enforcement itself happens outside the engine.
func RequiredApprovalTiers(c *model.OnboardingCase) ([]model.ApprovalTier, error) {
	if c.Risk == nil {
		return nil, fmt.Errorf("case %s has no risk assessment", c.CaseID)
	}
	return c.Risk.ApprovalTier.RequiredTiers(), nil
}

// RecordApproval appends an explicit decision at one tier. Decisions are
// only accepted while the case sits in APPROVAL. A rejection at a tier the
// risk outcome requires moves the case to the terminal DECLINED phase.
func RecordApproval(c *model.OnboardingCase, record model.ApprovalRecord) error {
	if c.Phase != model.PhaseApproval {
		return fmt.Errorf("case %s is in phase %s; approvals are only recorded in %s", c.CaseID, c.Phase, model.PhaseApproval)
	}
	required, err := RequiredApprovalTiers(c)
	if err != nil {
		return err
	}
	if !tierRequired(required, record.Tier) {
		return fmt.Errorf("tier %s is not part of the required approval chain %v", record.Tier, required)
	}

	c.Approvals = append(c.Approvals, record)
	c.Version++
	c.UpdatedAt = time.Now().UTC()

	if record.Decision == model.DecisionRejected {
		c.Phase = model.PhaseDeclined
	}
	return nil
}

func tierRequired(required []model.ApprovalTier, tier model.ApprovalTier) bool {
	for _, t := range required {
		if t == tier {
			return true
		}
	}
	return false
}

// ReenterForNewFund restarts an already-completed sponsor at FUND_STRUCTURE
// for a new fund, after a trigger review. When the review found no material
// change, the documents collected on the prior checklist are reconciled onto
// the fresh one, so the returning sponsor faces only the genuinely new
// items. A material change invalidates the collected set: every slot starts
// pending and is re-collected before re-screening. The prior approval chain
// never carries over: the new fund needs its own decisions (the store
// retains the old records).
func ReenterForNewFund(c *model.OnboardingCase, materialChange bool, prior model.Checklist, fresh *model.Checklist) error {
	if c.Phase != model.PhaseComplete {
		return fmt.Errorf("case %s is in phase %s; only completed sponsors re-enter", c.CaseID, c.Phase)
	}

	if !materialChange {
		match.Reconcile(fresh, prior)
	}

	c.Phase = model.PhaseFundStructure
	c.Approvals = nil
	c.Risk = nil
	c.Version++
	c.UpdatedAt = time.Now().UTC()
	return nil
}
