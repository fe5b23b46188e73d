// Package audit contains domain types for the pipeline audit trail.
package audit

import "time"

// Decision constants for audit records.
const (
	// DecisionAllow indicates the gate permitted the drafted action.
	DecisionAllow = "allow"
	// DecisionBlock indicates the gate vetoed the drafted action.
	DecisionBlock = "block"
)

// Record is one audit trail entry, written once per pipeline invocation.
type Record struct {
	// Timestamp is when the invocation finished (UTC).
	Timestamp time.Time `json:"timestamp"`
	// RequestID correlates the record with the caller's request.
	RequestID string `json:"request_id"`
	// UserID identifies the caller.
	UserID string `json:"user_id,omitempty"`
	// Input is the raw user text that entered the pipeline.
	Input string `json:"input"`
	// Topic, Domain, and Impact are the classification result.
	Topic  string `json:"topic"`
	Domain string `json:"domain"`
	Impact string `json:"impact"`
	// Action is the action name the gate evaluated.
	Action string `json:"action"`
	// DraftID is the identifier of the generated draft.
	DraftID string `json:"draft_id"`
	// Decision is DecisionAllow or DecisionBlock.
	Decision string `json:"decision"`
	// RuleID is the blocking policy's identifier, empty on allow.
	RuleID string `json:"rule_id,omitempty"`
	// Reason is the blocking reason, empty on allow.
	Reason string `json:"reason,omitempty"`
	// AuditHash binds the record to the verdict's inputs.
	AuditHash string `json:"audit_hash"`
}
