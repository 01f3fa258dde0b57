// Package match assigns classified documents to checklist slots.
//
// Entity documents bind to the sponsor-level slot of the matching type.
// Personal documents additionally require a fuzzy name match between the
// extracted identity name and a principal: two or more common name tokens is
// a strong match and binds; exactly one common token is a weak match that
// binds for human review; no common token leaves the document unassigned for
// manual reconciliation. A manual assignment is human-confirmed and is never
// overwritten by a later automatic run.
package match

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"onboarding-engine/internal/model"
)

// Confidence values recorded on assignments.
const (
	confidenceStrongMatch = 0.9
	confidenceWeakMatch   = 0.6
	confidenceTypeOnly    = 0.85
	confidenceManual      = 1.0
)

// Match strength from common-token counting.
type strength int

const (
	noMatch strength = iota
	weakMatch
	strongMatch
)

// Assign decides which slot, if any, a document analysis binds to. It is a
// pure decision: applying the binding to the checklist is Bind's job, so a
// rejected or unassigned outcome mutates nothing.
func Assign(analysis model.DocumentAnalysis, cl *model.Checklist, principals []model.Principal) model.Assignment {
	if analysis.DetectedType == model.DocTypeUnknown {
		return model.Assignment{
			DocumentID: analysis.DocumentID,
			Basis:      model.MatchNone,
			Reason:     "document type unknown; manual slot selection required",
		}
	}

	if model.IsPersonalDocType(analysis.DetectedType) {
		return assignPersonal(analysis, cl, principals)
	}
	return assignSponsor(analysis, cl)
}

func assignSponsor(analysis model.DocumentAnalysis, cl *model.Checklist) model.Assignment {
	slot := findOpenSlot(cl, analysis.DetectedType, nil)
	if slot == nil {
		return model.Assignment{
			DocumentID: analysis.DocumentID,
			Basis:      model.MatchNone,
			Reason:     fmt.Sprintf("no open sponsor slot for document type %s", analysis.DetectedType),
		}
	}
	slotID := slot.SlotID
	return model.Assignment{
		DocumentID: analysis.DocumentID,
		SlotID:     &slotID,
		Confidence: confidenceTypeOnly,
		Basis:      model.MatchTypeOnly,
		Reason:     fmt.Sprintf("entity document matched sponsor slot %s", slot.Label),
	}
}

func assignPersonal(analysis model.DocumentAnalysis, cl *model.Checklist, principals []model.Principal) model.Assignment {
	if analysis.ExtractedName == "" {
		return model.Assignment{
			DocumentID: analysis.DocumentID,
			Basis:      model.MatchNone,
			Reason:     "personal document carries no extracted name; manual slot selection required",
		}
	}

	var best *model.Principal
	bestStrength := noMatch
	for i := range principals {
		s := matchStrength(analysis.ExtractedName, principals[i].FullName)
		if s > bestStrength {
			best = &principals[i]
			bestStrength = s
		}
	}

	if best == nil || bestStrength == noMatch {
		return model.Assignment{
			DocumentID: analysis.DocumentID,
			Basis:      model.MatchNone,
			Reason:     fmt.Sprintf("extracted name %q matches no principal", analysis.ExtractedName),
		}
	}

	slot := findOpenSlot(cl, analysis.DetectedType, &best.PrincipalID)
	if slot == nil {
		return model.Assignment{
			DocumentID: analysis.DocumentID,
			Basis:      model.MatchNone,
			Reason:     fmt.Sprintf("no open %s slot for principal %s", analysis.DetectedType, best.FullName),
		}
	}
	slotID := slot.SlotID

	if bestStrength == weakMatch {
		return model.Assignment{
			DocumentID: analysis.DocumentID,
			SlotID:     &slotID,
			Confidence: confidenceWeakMatch,
			Basis:      model.MatchTypeAndName,
			Reason:     fmt.Sprintf("weak name match against %s (one common token); human confirmation required", best.FullName),
		}
	}
	return model.Assignment{
		DocumentID: analysis.DocumentID,
		SlotID:     &slotID,
		Confidence: confidenceStrongMatch,
		Basis:      model.MatchTypeAndName,
		Reason:     fmt.Sprintf("strong name match against %s", best.FullName),
	}
}

// findOpenSlot returns the first unbound slot of the given type, scoped to a
// principal when principalID is set. Slots already bound by a human are
// never candidates.
func findOpenSlot(cl *model.Checklist, docType string, principalID *uuid.UUID) *model.ChecklistSlot {
	for i := range cl.Slots {
		slot := &cl.Slots[i]
		if slot.DocumentType != docType {
			continue
		}
		if principalID != nil && (slot.PrincipalID == nil || *slot.PrincipalID != *principalID) {
			continue
		}
		if principalID == nil && slot.OwnerType != model.OwnerSponsor {
			continue
		}
		if slot.DocumentID != nil {
			continue
		}
		return slot
	}
	return nil
}

// matchStrength tokenizes both names into word sets and counts common
// tokens: two or more is strong, exactly one is weak, zero is no match.
func matchStrength(extracted, principal string) strength {
	common := 0
	extractedTokens := tokenize(extracted)
	for token := range tokenize(principal) {
		if extractedTokens[token] {
			common++
		}
	}
	switch {
	case common >= 2:
		return strongMatch
	case common == 1:
		return weakMatch
	default:
		return noMatch
	}
}

func tokenize(name string) map[string]bool {
	tokens := make(map[string]bool)
	for _, field := range strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if field != "" {
			tokens[field] = true
		}
	}
	return tokens
}

// ============================================================================
// BINDING SIDE EFFECTS
// ============================================================================

// Bind applies an assignment to the checklist: the slot records the document
// and its status becomes complete when the document passed policy, or
// review_needed otherwise (including weak name matches). An assignment with
// no slot, or one targeting a human-confirmed binding by a non-human run, is
// rejected without mutating anything.
func Bind(cl *model.Checklist, assignment model.Assignment, analysis model.DocumentAnalysis) error {
	if assignment.Unassigned() {
		return fmt.Errorf("cannot bind unassigned document %s", assignment.DocumentID)
	}
	slot := cl.SlotByID(*assignment.SlotID)
	if slot == nil {
		return fmt.Errorf("slot %s not found in checklist", *assignment.SlotID)
	}
	if slot.HumanConfirmed && !assignment.HumanConfirmed {
		return fmt.Errorf("slot %s is human-confirmed; automatic rebinding is not permitted", slot.SlotID)
	}

	docID := assignment.DocumentID
	slot.DocumentID = &docID
	slot.HumanConfirmed = assignment.HumanConfirmed

	switch {
	case assignment.Basis == model.MatchTypeAndName && assignment.Confidence <= confidenceWeakMatch && !assignment.HumanConfirmed:
		slot.Status = model.SlotReviewNeeded
	case analysis.Status == model.CheckPass:
		slot.Status = model.SlotComplete
	default:
		slot.Status = model.SlotReviewNeeded
	}
	return nil
}

// Unbind releases a slot's document, resetting it to pending. Used when a
// document is manually reassigned away from a slot.
func Unbind(cl *model.Checklist, slotID uuid.UUID) error {
	slot := cl.SlotByID(slotID)
	if slot == nil {
		return fmt.Errorf("slot %s not found in checklist", slotID)
	}
	slot.DocumentID = nil
	slot.HumanConfirmed = false
	slot.Status = model.SlotPending
	return nil
}

// Reconcile carries document bindings from a prior checklist onto a freshly
// generated one. Generation itself never carries bindings forward; after a
// regeneration (for example when EDD slots are appended by a re-score) the
// engine reconciles so already-collected documents keep their slots. Slots
// are matched by document type and owning principal.
func Reconcile(fresh *model.Checklist, prior model.Checklist) {
	for _, old := range prior.Slots {
		if old.DocumentID == nil {
			continue
		}
		for i := range fresh.Slots {
			slot := &fresh.Slots[i]
			if slot.DocumentID != nil || slot.DocumentType != old.DocumentType {
				continue
			}
			if (slot.PrincipalID == nil) != (old.PrincipalID == nil) {
				continue
			}
			if slot.PrincipalID != nil && *slot.PrincipalID != *old.PrincipalID {
				continue
			}
			slot.DocumentID = old.DocumentID
			slot.Status = old.Status
			slot.HumanConfirmed = old.HumanConfirmed
			break
		}
	}
}

// ManualAssign records a human's slot selection for a document. The
// assignment carries full confidence and is sticky: later automatic runs
// must not overwrite it. Any slot previously holding the document is reset.
func ManualAssign(cl *model.Checklist, analysis model.DocumentAnalysis, slotID uuid.UUID) (model.Assignment, error) {
	for i := range cl.Slots {
		if cl.Slots[i].DocumentID != nil && *cl.Slots[i].DocumentID == analysis.DocumentID && cl.Slots[i].SlotID != slotID {
			if err := Unbind(cl, cl.Slots[i].SlotID); err != nil {
				return model.Assignment{}, err
			}
		}
	}

	assignment := model.Assignment{
		DocumentID:     analysis.DocumentID,
		SlotID:         &slotID,
		Confidence:     confidenceManual,
		Basis:          model.MatchManual,
		HumanConfirmed: true,
		Reason:         "manually assigned",
	}
	if err := Bind(cl, assignment, analysis); err != nil {
		return model.Assignment{}, err
	}
	return assignment, nil
}
