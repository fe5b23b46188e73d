package ces

import "context"

// FailMode controls what an empty rule set means.
type FailMode string

const (
	// FailOpen keeps the system available: an empty or unloadable
	// constitution yields zero enforcement. This is the default.
	FailOpen FailMode = "open"
	// FailClosed blocks every action while the rule set is empty.
	FailClosed FailMode = "closed"
)

// IsValid returns true if the fail mode is a known valid mode.
func (m FailMode) IsValid() bool {
	return m == FailOpen || m == FailClosed
}

// Engine evaluates a proposed action against the loaded constitution.
type Engine interface {
	// Evaluate runs a single deterministic pass over the rules in load order
	// and returns the verdict. It never fails; rule-internal errors skip the
	// rule and are logged by the implementation.
	Evaluate(ctx context.Context, evalCtx EvaluationContext) Verdict
}

// Source loads the ordered policy list of a constitution document.
type Source interface {
	// Load returns the policies in document order. A missing or unparseable
	// document is an error; the caller decides the fail mode.
	Load(ctx context.Context) ([]Policy, error)
}
