// Package intent contains domain types and the tiered intent classifier.
package intent

// Domain partitions user intents by the kind of consequence they carry.
type Domain string

const (
	// DomainVital covers crisis and personal-safety intents.
	DomainVital Domain = "VITAL"
	// DomainEconomic covers commerce actions (campaigns, pricing, inventory).
	DomainEconomic Domain = "ECONOMIC"
	// DomainOperational covers chatter, greetings, cancellations, and anything
	// that carries no side effect on its own.
	DomainOperational Domain = "OPERATIONAL"
	// DomainEthical is reserved for intents flagged by constitutional review.
	DomainEthical Domain = "ETHICAL"
	// DomainCreative covers visual generation and design confirmation intents.
	DomainCreative Domain = "CREATIVE"
)

// IsValid returns true if the domain is a known valid domain.
func (d Domain) IsValid() bool {
	switch d {
	case DomainVital, DomainEconomic, DomainOperational, DomainEthical, DomainCreative:
		return true
	default:
		return false
	}
}

// Impact represents how consequential an intent is, ordered from LOW to CRITICAL.
type Impact string

const (
	// ImpactLow indicates no side effect beyond a chat reply.
	ImpactLow Impact = "LOW"
	// ImpactMedium is the fixed impact assigned by the semantic fallback.
	ImpactMedium Impact = "MEDIUM"
	// ImpactHigh indicates the intent confirms or triggers a real-world action.
	ImpactHigh Impact = "HIGH"
	// ImpactCritical is reserved for reflex-tier safety detections. The
	// semantic fallback must never produce it.
	ImpactCritical Impact = "CRITICAL"
)

// rank orders impacts for comparison. Unknown impacts rank below LOW.
func (i Impact) rank() int {
	switch i {
	case ImpactLow:
		return 1
	case ImpactMedium:
		return 2
	case ImpactHigh:
		return 3
	case ImpactCritical:
		return 4
	default:
		return 0
	}
}

// AtLeast returns true if the impact is equal to or more severe than other.
func (i Impact) AtLeast(other Impact) bool {
	return i.rank() >= other.rank()
}

// Topic constants produced by the reflex tiers and the semantic label set.
const (
	TopicSelfHarm      = "self_harm"
	TopicOperational   = "operational"
	TopicVisualConfirm = "visual_confirm"

	// Semantic-only labels. The classification service must answer with one
	// of these or TopicOperational.
	TopicVisualGenerate = "visual_generate"
	TopicShopifyDelete  = "shopify_delete_request"
	TopicShopifyConfirm = "shopify_confirm"
	TopicShopifyAudit   = "shopify_audit"
	TopicInputPrice     = "input_price"
)

// Analysis is the immutable result of classifying one piece of user text.
type Analysis struct {
	// Topic is a short identifier for what the user wants.
	Topic string `json:"topic"`
	// Domain determines downstream routing (e.g. ECONOMIC -> commerce target).
	Domain Domain `json:"domain"`
	// Impact is how consequential the intent is.
	Impact Impact `json:"impact"`
	// RequiresHuman is true when the resulting draft must not be
	// auto-executed without human confirmation.
	RequiresHuman bool `json:"requires_human"`
	// RawInput is the original text, retained for audit and debugging.
	RawInput string `json:"raw_input"`
}

// SafeDefault is the classification returned when every tier is inconclusive
// or the semantic service fails. It carries no side-effect authority.
func SafeDefault(rawInput string) Analysis {
	return Analysis{
		Topic:         TopicOperational,
		Domain:        DomainOperational,
		Impact:        ImpactLow,
		RequiresHuman: false,
		RawInput:      rawInput,
	}
}
