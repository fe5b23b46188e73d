// Package semantic provides the outbound client for the natural-language
// classification service, with an ordered provider fallback chain.
package semantic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odisys/ces-gate/internal/domain/intent"
)

// Provider is one classification backend in the fallback chain.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string
	// Classify sends the raw text and parses the structured reply.
	Classify(ctx context.Context, text string) (intent.Label, error)
}

// ErrNoProviders is returned by a Chain with no configured providers.
var ErrNoProviders = errors.New("no classification providers configured")

const defaultAttemptTimeout = 8 * time.Second

// Chain tries providers in order with a bounded timeout per attempt. The
// first successful reply wins; if every provider fails, the last error is
// returned and the intent classifier degrades to its safe default.
type Chain struct {
	providers      []Provider
	attemptTimeout time.Duration
	logger         *slog.Logger
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithAttemptTimeout bounds each provider attempt.
func WithAttemptTimeout(d time.Duration) ChainOption {
	return func(c *Chain) {
		if d > 0 {
			c.attemptTimeout = d
		}
	}
}

// NewChain creates a provider chain.
func NewChain(providers []Provider, logger *slog.Logger, opts ...ChainOption) *Chain {
	c := &Chain{
		providers:      providers,
		attemptTimeout: defaultAttemptTimeout,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time check that Chain implements intent.SemanticClassifier.
var _ intent.SemanticClassifier = (*Chain)(nil)

// Classify tries each provider in order until one answers.
func (c *Chain) Classify(ctx context.Context, text string) (intent.Label, error) {
	if len(c.providers) == 0 {
		return intent.Label{}, ErrNoProviders
	}

	var lastErr error
	for _, p := range c.providers {
		attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
		label, err := p.Classify(attemptCtx, text)
		cancel()
		if err == nil {
			return label, nil
		}
		lastErr = err
		c.logger.Warn("classification provider failed, trying next",
			"provider", p.Name(), "error", err)

		// A cancelled parent context means the whole invocation is done;
		// trying the next provider would just burn its timeout too.
		if ctx.Err() != nil {
			return intent.Label{}, ctx.Err()
		}
	}
	return intent.Label{}, fmt.Errorf("all classification providers failed: %w", lastErr)
}

// classifierInstruction enumerates the closed label set and the required JSON
// shape the backends must answer with.
const classifierInstruction = `Actúa como un Router de Intenciones para un sistema de eCommerce.
Clasifica la siguiente frase del usuario en una de estas categorías EXACTAS:

CATEGORÍAS:
1. "visual_generate": El usuario quiere ver, crear, imaginar, diseñar o generar una imagen de un producto.
2. "shopify_delete_request": El usuario quiere borrar, eliminar o limpiar productos/inventario.
3. "shopify_confirm": El usuario confirma una acción crítica (dice "confirmo", "procede", "estoy seguro").
4. "shopify_audit": El usuario pregunta qué hay en la tienda, inventario o pide recomendación sobre lo que hay.
5. "input_price": El usuario está diciendo un precio o valor monetario.
6. "operational": Saludos, insultos, rechazos o charla general que no es una orden comercial.

INPUT: %q

Responde SOLO con un JSON válido:
{ "topic": "...", "domain": "CREATIVE" | "ECONOMIC" | "OPERATIONAL", "requires_human": boolean }`

// buildPrompt renders the classification instruction for one input.
func buildPrompt(text string) string {
	return fmt.Sprintf(classifierInstruction, text)
}

// parseLabel extracts the structured label from a model reply. Models wrap
// JSON in markdown fences or surround it with prose often enough that a
// two-stage salvage is needed: strip fences first, then fall back to the
// outermost brace pair.
func parseLabel(reply string) (intent.Label, error) {
	clean := strings.TrimSpace(reply)
	clean = strings.ReplaceAll(clean, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	clean = strings.TrimSpace(clean)

	var label intent.Label
	if err := json.Unmarshal([]byte(clean), &label); err == nil {
		return label, nil
	}

	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(clean[start:end+1]), &label); err == nil {
			return label, nil
		}
	}
	return intent.Label{}, fmt.Errorf("reply is not a classification JSON: %q", truncate(reply, 120))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
