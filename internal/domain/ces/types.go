// Package ces contains the domain types for the Constitutional Enforcement
// System: the externally configured rule set (the constitution) and the
// verdicts the gate produces.
package ces

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// EconomicTruthRuleID is the reserved rule identifier that enables the
// built-in factual-consistency check on scarcity claims.
const EconomicTruthRuleID = "ECONOMIC_TRUTH"

// Action names passed to the gate by the pipeline.
const (
	// ActionCreateAd is an economic draft proposing ad copy.
	ActionCreateAd = "create_ad"
	// ActionRespondChat is a plain chat reply.
	ActionRespondChat = "respond_chat"
)

// Triggers describe when a policy applies.
type Triggers struct {
	// Topics restricts the policy to contexts with one of these topics.
	// Empty means the policy is not topic-gated.
	Topics []string `yaml:"topics" json:"topics,omitempty"`
	// Patterns are case-insensitive regular expressions tested against the
	// proposed output, in order. The first match blocks.
	Patterns []string `yaml:"patterns" json:"patterns,omitempty"`
}

// Policy is one rule of the constitution. Policies are evaluated in load
// order and the first matching policy wins; there is no priority beyond order.
type Policy struct {
	// ID is the stable identifier, surfaced in audit reasons. The reserved
	// value EconomicTruthRuleID activates the scarcity ground-truth check.
	ID string `yaml:"id" json:"id"`
	// Description is optional human-readable context.
	Description string `yaml:"description" json:"description,omitempty"`
	// Triggers describe when this policy applies.
	Triggers Triggers `yaml:"triggers" json:"triggers"`
	// Condition is an optional CEL expression over {topic, action, output,
	// stock}. When present, the policy blocks only if it evaluates true.
	Condition string `yaml:"condition" json:"condition,omitempty"`
	// Severity is a free-form label surfaced in the verdict.
	Severity string `yaml:"severity" json:"severity"`
	// ErrorMessage replaces the proposed output when this policy blocks.
	ErrorMessage string `yaml:"error_message" json:"error_message,omitempty"`
	// SafeResponseTemplate is the fallback replacement when ErrorMessage is
	// empty.
	SafeResponseTemplate string `yaml:"safe_response_template" json:"safe_response_template,omitempty"`
}

// ReplacementText returns the caller-facing text a blocked action surfaces
// instead of its original content.
func (p Policy) ReplacementText() string {
	if p.ErrorMessage != "" {
		return p.ErrorMessage
	}
	if p.SafeResponseTemplate != "" {
		return p.SafeResponseTemplate
	}
	return "Acción bloqueada por normativa."
}

// GroundTruth carries caller-supplied facts used to verify claims made in the
// proposed output.
type GroundTruth struct {
	// Stock is the real inventory count behind a scarcity claim.
	Stock int `json:"stock"`
}

// EvaluationContext is everything the gate needs to judge one proposed action.
type EvaluationContext struct {
	// UserID identifies the caller, for audit records.
	UserID string `json:"user_id"`
	// Topic is the classified topic of the originating intent.
	Topic string `json:"topic"`
	// Action is the action name derived from the draft (e.g. ActionCreateAd).
	Action string `json:"action"`
	// ProposedOutput is the draft content the rules are tested against.
	ProposedOutput string `json:"proposed_output"`
	// GroundTruth is optional factual data (e.g. inventory count).
	GroundTruth *GroundTruth `json:"ground_truth,omitempty"`
}

// Verdict is the gate's decision. Exactly one of allow / block-with-reason
// holds: Severity, Reason, and ModifiedOutput are populated only when
// Allowed is false.
type Verdict struct {
	// Allowed is true when no policy blocked the action.
	Allowed bool `json:"allowed"`
	// Severity mirrors the blocking policy's severity label.
	Severity string `json:"severity,omitempty"`
	// Reason explains the block as "<policy id>: <cause>".
	Reason string `json:"reason,omitempty"`
	// ModifiedOutput is the replacement text the caller surfaces instead of
	// the blocked content.
	ModifiedOutput string `json:"modified_output,omitempty"`
	// AuditHash binds the verdict to its inputs for traceability.
	AuditHash string `json:"audit_hash"`
}

// AuditHash computes a deterministic hash binding a verdict to its inputs.
// Identical (topic, action, output, rule, allowed) tuples hash identically,
// so a stored verdict can be re-derived and checked for tampering. The audit
// record carries its own timestamp; including one here would break
// reproducibility.
func AuditHash(evalCtx EvaluationContext, ruleID string, allowed bool) string {
	h := xxhash.New()
	for _, part := range []string{evalCtx.Topic, evalCtx.Action, evalCtx.ProposedOutput, ruleID} {
		_, _ = h.WriteString(part)
		_, _ = h.Write([]byte{0})
	}
	if evalCtx.GroundTruth != nil {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(evalCtx.GroundTruth.Stock)))
		_, _ = h.Write(buf[:])
	}
	_, _ = h.Write([]byte{0})
	if allowed {
		_, _ = h.Write([]byte{1})
	} else {
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
