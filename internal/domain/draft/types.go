// Package draft contains the action draft types and the draft generator.
package draft

import "time"

// ActionType describes what kind of action a draft proposes.
type ActionType string

const (
	// ActionTypeTextResponse is a chat reply to the user.
	ActionTypeTextResponse ActionType = "TEXT_RESPONSE"
	// ActionTypeCreateResource creates something on an external system
	// (product, campaign, ad).
	ActionTypeCreateResource ActionType = "CREATE_RESOURCE"
)

// Target systems a draft may be routed to for execution.
const (
	// TargetUserChat routes the draft back to the chat front-end.
	TargetUserChat = "user_chat"
	// TargetShopify routes the draft to the commerce platform.
	TargetShopify = "shopify"
)

// Content is the free-form payload of a draft. Message is always present;
// Type and Payload are hints for the downstream executor.
type Content struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// ActionDraft is a proposed action that has not been authorized yet. It is
// created once per classified intent, immutable thereafter, and consumed
// exactly once by the policy gate.
type ActionDraft struct {
	// ID uniquely identifies the draft.
	ID string `json:"id"`
	// ActionType is interpreted by the downstream executor.
	ActionType ActionType `json:"action_type"`
	// TargetSystem identifies which external collaborator would execute it.
	TargetSystem string `json:"target_system"`
	// Content carries the human-readable message and optional payload.
	Content Content `json:"content"`
	// ContextSummary is a short trace string for audit logs.
	ContextSummary string `json:"context_summary"`
	// CreatedAt is when the draft was generated (UTC).
	CreatedAt time.Time `json:"created_at"`
}
