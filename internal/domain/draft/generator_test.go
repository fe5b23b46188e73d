package draft

import (
	"strings"
	"testing"

	"github.com/odisys/ces-gate/internal/domain/intent"
)

func TestDraftEconomicWithUrgency(t *testing.T) {
	g := NewGenerator()
	analysis := intent.Analysis{
		Topic:    intent.TopicInputPrice,
		Domain:   intent.DomainEconomic,
		Impact:   intent.ImpactMedium,
		RawInput: "campaña urgente de tenis",
	}

	d := g.Draft(analysis, "campaña urgente de tenis")

	if d.ActionType != ActionTypeCreateResource {
		t.Errorf("expected CREATE_RESOURCE, got %s", d.ActionType)
	}
	if d.TargetSystem != TargetShopify {
		t.Errorf("expected target %s, got %s", TargetShopify, d.TargetSystem)
	}
	if d.Content.Type != "ad_copy" {
		t.Errorf("expected ad_copy content type, got %q", d.Content.Type)
	}
	// The generator does not self-censor: urgency cues produce scarcity copy
	// and the gate is expected to catch it.
	if !strings.Contains(strings.ToLower(d.Content.Message), "pocos") {
		t.Errorf("expected scarcity wording in %q", d.Content.Message)
	}
	if d.ContextSummary != "Topic: input_price" {
		t.Errorf("unexpected context summary %q", d.ContextSummary)
	}
}

func TestDraftEconomicWithoutUrgency(t *testing.T) {
	g := NewGenerator()
	analysis := intent.Analysis{Topic: intent.TopicShopifyAudit, Domain: intent.DomainEconomic}

	d := g.Draft(analysis, "hazme una campaña de zapatos")

	if d.ActionType != ActionTypeCreateResource || d.TargetSystem != TargetShopify {
		t.Fatalf("expected economic routing, got %s/%s", d.ActionType, d.TargetSystem)
	}
	if strings.Contains(strings.ToLower(d.Content.Message), "pocos") {
		t.Errorf("no urgency cue in input, but copy claims scarcity: %q", d.Content.Message)
	}
}

func TestDraftVital(t *testing.T) {
	g := NewGenerator()
	analysis := intent.Analysis{Topic: intent.TopicSelfHarm, Domain: intent.DomainVital, Impact: intent.ImpactCritical}

	d := g.Draft(analysis, "quiero acabar con todo")

	if d.ActionType != ActionTypeTextResponse {
		t.Errorf("expected TEXT_RESPONSE, got %s", d.ActionType)
	}
	if d.TargetSystem != TargetUserChat {
		t.Errorf("expected target %s, got %s", TargetUserChat, d.TargetSystem)
	}
	if d.Content.Message == "" {
		t.Error("expected a reassurance message")
	}
}

func TestDraftDefaultAcknowledgment(t *testing.T) {
	g := NewGenerator()
	analysis := intent.Analysis{Topic: intent.TopicOperational, Domain: intent.DomainOperational}

	d := g.Draft(analysis, "hola")

	if d.ActionType != ActionTypeTextResponse || d.TargetSystem != TargetUserChat {
		t.Fatalf("expected chat routing, got %s/%s", d.ActionType, d.TargetSystem)
	}
	if !strings.Contains(d.Content.Message, intent.TopicOperational) {
		t.Errorf("acknowledgment should reference the topic: %q", d.Content.Message)
	}
}

// TestDraftReferentialTransparency verifies identical inputs yield identical
// drafts apart from ID and timestamp.
func TestDraftReferentialTransparency(t *testing.T) {
	g := NewGenerator()
	analysis := intent.Analysis{Topic: intent.TopicInputPrice, Domain: intent.DomainEconomic}
	const input = "campaña urgente"

	a := g.Draft(analysis, input)
	b := g.Draft(analysis, input)

	if a.ID == b.ID {
		t.Error("draft IDs should be unique per draft")
	}
	if a.ActionType != b.ActionType || a.TargetSystem != b.TargetSystem {
		t.Errorf("routing differs: %s/%s vs %s/%s", a.ActionType, a.TargetSystem, b.ActionType, b.TargetSystem)
	}
	if a.Content.Message != b.Content.Message || a.Content.Type != b.Content.Type {
		t.Errorf("content differs: %+v vs %+v", a.Content, b.Content)
	}
	if a.ContextSummary != b.ContextSummary {
		t.Errorf("context summary differs: %q vs %q", a.ContextSummary, b.ContextSummary)
	}
}
