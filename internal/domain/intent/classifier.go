package intent

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// Reflex pattern sets, checked before any external service is consulted.
// These cover the cases that cannot wait for (or be trusted to) a
// probabilistic classifier: crisis detection, cancellations, and simple
// design confirmations.
var (
	// criticalPattern detects self-harm and crisis language. Matching it is
	// the single hard safety invariant of the pipeline: the check is pure,
	// synchronous, and runs before everything else.
	criticalPattern = regexp.MustCompile(`(?i)(suicidio|matarme|muerte|acabar con todo)`)

	// negativePattern detects rejections and cancellations so a sale or
	// generation in flight is stopped without a round trip to the service.
	negativePattern = regexp.MustCompile(`(?i)(no me sirve|no me gusta|no quiero|cancelar|mejor no|feo|horrible|detener|parar|borra eso|olvídalo|así no|ninguno)`)

	// visualConfirmPattern detects the user approving a generated design.
	visualConfirmPattern = regexp.MustCompile(`(?i)(me sirve|me gusta|usa esta|úsala|está bien|perfecta|guárdala|excelente|esa es|compro|dale|de una)`)
)

// formalConfirmPhrases distinguish "this looks great" from "I confirm this
// critical action". Inputs containing one of these fall through to the
// semantic tier instead of being treated as a visual confirmation.
var formalConfirmPhrases = []string{"confirmo", "proceder"}

// semanticTopics is the closed label set the semantic service may answer with.
var semanticTopics = map[string]bool{
	TopicVisualGenerate: true,
	TopicShopifyDelete:  true,
	TopicShopifyConfirm: true,
	TopicShopifyAudit:   true,
	TopicInputPrice:     true,
	TopicOperational:    true,
}

// semanticDomains is the subset of domains the semantic service may assign.
// VITAL and ETHICAL are reflex- and gate-owned respectively.
var semanticDomains = map[Domain]bool{
	DomainCreative:    true,
	DomainEconomic:    true,
	DomainOperational: true,
}

// Label is the structured reply expected from a semantic classification
// service: a topic from the closed label set, a routing domain, and whether a
// human must confirm the resulting action.
type Label struct {
	Topic         string `json:"topic"`
	Domain        Domain `json:"domain"`
	RequiresHuman bool   `json:"requires_human"`
}

// SemanticClassifier is an outbound port to a natural-language classification
// service. Implementations are consulted only when no reflex tier matched.
type SemanticClassifier interface {
	// Classify maps raw user text onto the closed label set. An error means
	// the service was unreachable or answered something unparseable; the
	// caller degrades to the safe default.
	Classify(ctx context.Context, text string) (Label, error)
}

const defaultSemanticTimeout = 10 * time.Second

// Classifier maps raw user text to an intent Analysis using reflex pattern
// tiers with a semantic fallback. Classify never fails: every internal fault
// degrades to SafeDefault.
type Classifier struct {
	semantic SemanticClassifier
	timeout  time.Duration
	logger   *slog.Logger
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithSemanticTimeout bounds each semantic fallback call. On expiry the
// invocation degrades to the safe default instead of blocking.
func WithSemanticTimeout(d time.Duration) ClassifierOption {
	return func(c *Classifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClassifier creates a Classifier. semantic may be nil, in which case
// inputs that no reflex tier matches classify as the safe default.
func NewClassifier(semantic SemanticClassifier, logger *slog.Logger, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		semantic: semantic,
		timeout:  defaultSemanticTimeout,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify runs the tiers in strict priority order:
//
//  1. safety reflex (self-harm/crisis patterns)
//  2. negation/cancellation reflex
//  3. visual-confirmation reflex, excluded by formal-confirmation phrases
//  4. semantic fallback with a bounded timeout
//
// Each tier short-circuits the next. The result for tier 4 carries a fixed
// MEDIUM impact; CRITICAL is produced only by tier 1.
func (c *Classifier) Classify(ctx context.Context, input string) Analysis {
	text := strings.ToLower(input)

	if criticalPattern.MatchString(text) {
		return Analysis{
			Topic:         TopicSelfHarm,
			Domain:        DomainVital,
			Impact:        ImpactCritical,
			RequiresHuman: true,
			RawInput:      input,
		}
	}

	if negativePattern.MatchString(text) {
		return Analysis{
			Topic:         TopicOperational,
			Domain:        DomainOperational,
			Impact:        ImpactLow,
			RequiresHuman: false,
			RawInput:      input,
		}
	}

	if visualConfirmPattern.MatchString(text) && !containsFormalConfirm(text) {
		return Analysis{
			Topic:         TopicVisualConfirm,
			Domain:        DomainCreative,
			Impact:        ImpactHigh,
			RequiresHuman: true,
			RawInput:      input,
		}
	}

	if c.semantic == nil {
		return SafeDefault(input)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	label, err := c.semantic.Classify(callCtx, input)
	if err != nil {
		c.logger.Warn("semantic classification failed, using safe default", "error", err)
		return SafeDefault(input)
	}
	if !semanticTopics[label.Topic] || !semanticDomains[label.Domain] {
		c.logger.Warn("semantic classification outside label set, using safe default",
			"topic", label.Topic, "domain", string(label.Domain))
		return SafeDefault(input)
	}

	return Analysis{
		Topic:         label.Topic,
		Domain:        label.Domain,
		Impact:        ImpactMedium,
		RequiresHuman: label.RequiresHuman,
		RawInput:      input,
	}
}

func containsFormalConfirm(text string) bool {
	for _, phrase := range formalConfirmPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
