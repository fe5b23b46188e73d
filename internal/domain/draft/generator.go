package draft

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odisys/ces-gate/internal/domain/intent"
)

// urgencyCues are input substrings that make the economic copywriter reach
// for scarcity language. The generator never self-censors; the policy gate is
// the sole enforcement point.
var urgencyCues = []string{"urgente", "mentira"}

// Generator turns a classified intent into an action draft. Draft is pure
// apart from ID and timestamp assignment: identical (intent, input) pairs
// always produce identical action type, target, and message.
type Generator struct{}

// NewGenerator creates a draft Generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Draft dispatches on the intent's domain and builds a draft for it. It has
// no failure mode; any panic here is a defect, not a recoverable condition.
func (g *Generator) Draft(analysis intent.Analysis, input string) ActionDraft {
	d := ActionDraft{
		ID:             uuid.NewString(),
		ActionType:     ActionTypeTextResponse,
		TargetSystem:   TargetUserChat,
		ContextSummary: fmt.Sprintf("Topic: %s", analysis.Topic),
		CreatedAt:      time.Now().UTC(),
	}

	switch analysis.Domain {
	case intent.DomainEconomic:
		d.ActionType = ActionTypeCreateResource
		d.TargetSystem = TargetShopify
		d.Content = economicContent(input)
	case intent.DomainVital:
		d.Content = Content{Message: "Estoy aquí contigo. No voy a ninguna parte."}
	default:
		d.Content = Content{Message: fmt.Sprintf("Entendido. Procesando solicitud sobre: %s.", analysis.Topic)}
	}

	return d
}

// economicContent writes ad copy for an ECONOMIC intent. When the input
// carries urgency cues, the copy claims scarcity without checking inventory;
// the gate verifies the claim against ground truth.
func economicContent(input string) Content {
	text := strings.ToLower(input)
	for _, cue := range urgencyCues {
		if strings.Contains(text, cue) {
			return Content{Message: "¡Compra ya! Quedan muy pocos (urgente).", Type: "ad_copy"}
		}
	}
	return Content{Message: "Campaña de zapatos de calidad.", Type: "ad_copy"}
}
