package checklist

import (
	"testing"

	"github.com/google/uuid"

	"onboarding-engine/internal/model"
)

func twoPrincipals() []model.Principal {
	return []model.Principal{
		{PrincipalID: uuid.New(), FullName: "John Smith", Role: "member"},
		{PrincipalID: uuid.New(), FullName: "Jane Doe", Role: "member"},
	}
}

// slotShape is the order-sensitive identity of a slot, ignoring the
// freshly generated IDs.
type slotShape struct {
	ownerType model.SlotOwnerType
	ownerName string
	docType   string
	label     string
	required  bool
}

func shapes(cl model.Checklist) []slotShape {
	out := make([]slotShape, 0, len(cl.Slots))
	for _, s := range cl.Slots {
		out = append(out, slotShape{s.OwnerType, s.OwnerName, s.DocumentType, s.Label, s.Required})
	}
	return out
}

func TestGenerateLLPWithTwoPrincipals(t *testing.T) {
	cl := Generate(uuid.New(), "llp", model.StatusNotRegulated, twoPrincipals(), nil)

	// 5 sponsor slots + 2 personal slots per principal.
	if len(cl.Slots) != 9 {
		t.Fatalf("expected 9 slots, got %d", len(cl.Slots))
	}

	for i, s := range cl.Slots[:5] {
		if s.OwnerType != model.OwnerSponsor {
			t.Errorf("slot %d: expected sponsor owner, got %s", i, s.OwnerType)
		}
	}
	for i, s := range cl.Slots[5:] {
		if s.OwnerType != model.OwnerPrincipal {
			t.Errorf("personal slot %d: expected principal owner, got %s", i, s.OwnerType)
		}
		if s.PrincipalID == nil {
			t.Errorf("personal slot %d: missing principal ID", i)
		}
	}

	if cl.Slots[0].DocumentType != model.DocCertificateOfRegistration {
		t.Errorf("first slot should be certificate of registration, got %s", cl.Slots[0].DocumentType)
	}
	if cl.Slots[5].OwnerName != "John Smith" || cl.Slots[7].OwnerName != "Jane Doe" {
		t.Error("personal slots should follow principal input order")
	}

	for i, s := range cl.Slots {
		if s.Status != model.SlotPending {
			t.Errorf("slot %d: expected pending, got %s", i, s.Status)
		}
		if s.SlotID == uuid.Nil {
			t.Errorf("slot %d: missing slot ID", i)
		}
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	caseID := uuid.New()
	principals := twoPrincipals()
	risk := &model.RiskAssessment{EDDRequired: true}

	first := Generate(caseID, "trust", model.StatusRegulated, principals, risk)
	second := Generate(caseID, "trust", model.StatusRegulated, principals, risk)

	a, b := shapes(first), shapes(second)
	if len(a) != len(b) {
		t.Fatalf("slot counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("slot %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestRegulatedSponsorGetsRegulatorItems(t *testing.T) {
	plain := Generate(uuid.New(), "company", model.StatusNotRegulated, nil, nil)
	regulated := Generate(uuid.New(), "company", model.StatusRegulated, nil, nil)

	if len(regulated.Slots) != len(plain.Slots)+2 {
		t.Fatalf("expected 2 extra regulator slots, got %d vs %d", len(regulated.Slots), len(plain.Slots))
	}

	license := regulated.Slots[len(plain.Slots)]
	standing := regulated.Slots[len(plain.Slots)+1]
	if license.DocumentType != model.DocRegulatoryLicense || !license.Required {
		t.Errorf("expected required regulatory license slot, got %+v", license)
	}
	if standing.DocumentType != model.DocGoodStandingLetter || standing.Required {
		t.Errorf("expected optional good standing slot, got %+v", standing)
	}
}

func TestEDDAppendsCaseLevelItems(t *testing.T) {
	risk := &model.RiskAssessment{EDDRequired: true}
	cl := Generate(uuid.New(), "company", model.StatusNotRegulated, nil, risk)
	base := Generate(uuid.New(), "company", model.StatusNotRegulated, nil, nil)

	if len(cl.Slots) != len(base.Slots)+3 {
		t.Fatalf("expected 3 EDD slots appended, got %d vs %d", len(cl.Slots), len(base.Slots))
	}
	eddTypes := map[string]bool{}
	for _, s := range cl.Slots[len(base.Slots):] {
		eddTypes[s.DocumentType] = true
		if s.OwnerType != model.OwnerSponsor {
			t.Errorf("EDD slot %s should be sponsor-owned", s.DocumentType)
		}
	}
	for _, want := range []string{model.DocSourceOfWealth, model.DocSourceOfFunds, model.DocProfessionalReference} {
		if !eddTypes[want] {
			t.Errorf("missing EDD slot %s", want)
		}
	}
}

func TestLowRiskDoesNotAddEDDItems(t *testing.T) {
	risk := &model.RiskAssessment{EDDRequired: false}
	withRisk := Generate(uuid.New(), "company", model.StatusNotRegulated, nil, risk)
	withoutRisk := Generate(uuid.New(), "company", model.StatusNotRegulated, nil, nil)
	if len(withRisk.Slots) != len(withoutRisk.Slots) {
		t.Errorf("low-risk assessment should not change slot count: %d vs %d",
			len(withRisk.Slots), len(withoutRisk.Slots))
	}
}

func TestUnknownEntityTypeFallsBackToGenericSet(t *testing.T) {
	cl := Generate(uuid.New(), "cooperative", model.StatusNotRegulated, nil, nil)
	if len(cl.Slots) != 4 {
		t.Fatalf("expected 4 generic slots, got %d", len(cl.Slots))
	}
	if cl.Slots[0].DocumentType != model.DocCertificateOfRegistration {
		t.Errorf("generic set should open with certificate of registration, got %s", cl.Slots[0].DocumentType)
	}
}

func TestAliasedTypesShareCompanySet(t *testing.T) {
	company := Generate(uuid.New(), "company", model.StatusNotRegulated, nil, nil)
	for _, alias := range []string{"llc", "pcc", "icc"} {
		cl := Generate(uuid.New(), alias, model.StatusNotRegulated, nil, nil)
		if len(cl.Slots) != len(company.Slots) {
			t.Errorf("%s: expected %d slots matching company set, got %d", alias, len(company.Slots), len(cl.Slots))
		}
	}
}

func TestProgressBlocksOnReviewNeeded(t *testing.T) {
	cl := Generate(uuid.New(), "llp", model.StatusNotRegulated, nil, nil)
	for i := range cl.Slots {
		cl.Slots[i].Status = model.SlotComplete
	}
	cl.Slots[2].Status = model.SlotReviewNeeded

	p := Progress(cl)
	if p.CanAdvance {
		t.Error("review_needed slot should block advancement")
	}
	if p.ReviewNeeded != 1 || p.Complete != len(cl.Slots)-1 {
		t.Errorf("unexpected counts: %+v", p)
	}
}

func TestProgressAllowsPendingOptionalSlots(t *testing.T) {
	cl := Generate(uuid.New(), "company", model.StatusRegulated, nil, nil)
	for i := range cl.Slots {
		if cl.Slots[i].Required {
			cl.Slots[i].Status = model.SlotComplete
		}
	}
	// The good-standing letter is optional and still pending.
	p := Progress(cl)
	if !p.CanAdvance {
		t.Error("pending optional slot should not block advancement")
	}
	if p.Pending != 1 {
		t.Errorf("expected 1 pending optional slot, got %d", p.Pending)
	}
}

func TestProgressBlocksOnPendingRequiredSlot(t *testing.T) {
	cl := Generate(uuid.New(), "company", model.StatusNotRegulated, nil, nil)
	for i := range cl.Slots {
		cl.Slots[i].Status = model.SlotComplete
	}
	cl.Slots[0].Status = model.SlotPending

	if p := Progress(cl); p.CanAdvance {
		t.Error("pending required slot should block advancement")
	}
}

func TestProgressEmptyChecklist(t *testing.T) {
	p := Progress(model.Checklist{})
	if !p.CanAdvance {
		t.Error("empty checklist should allow advancement")
	}
	if p.Percentage != 100 {
		t.Errorf("expected 100%% for empty checklist, got %f", p.Percentage)
	}
}

func TestOutstandingSlotsPreservesOrder(t *testing.T) {
	cl := Generate(uuid.New(), "llp", model.StatusNotRegulated, twoPrincipals(), nil)
	cl.Slots[0].Status = model.SlotComplete
	cl.Slots[3].Status = model.SlotComplete

	outstanding := OutstandingSlots(cl)
	if len(outstanding) != len(cl.Slots)-2 {
		t.Fatalf("expected %d outstanding, got %d", len(cl.Slots)-2, len(outstanding))
	}
	if outstanding[0].SlotID != cl.Slots[1].SlotID {
		t.Error("outstanding slots should keep checklist order")
	}
}
