package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odisys/ces-gate/internal/domain/audit"
	"github.com/odisys/ces-gate/internal/domain/ces"
	"github.com/odisys/ces-gate/internal/domain/draft"
	"github.com/odisys/ces-gate/internal/domain/intent"
)

// Caller identifies who invoked the pipeline and what facts they can vouch
// for.
type Caller struct {
	// UserID identifies the caller in verdicts and audit records.
	UserID string `json:"user_id"`
	// GroundTruth is optional factual data used to verify claims in the
	// drafted output (e.g. real inventory behind a scarcity claim).
	GroundTruth *ces.GroundTruth `json:"ground_truth,omitempty"`
}

// Result is everything one pipeline invocation produced. The caller decides
// what to do with the draft based on the verdict; execution is out of scope
// here.
type Result struct {
	RequestID string            `json:"request_id"`
	Intent    intent.Analysis   `json:"intent"`
	Draft     draft.ActionDraft `json:"draft"`
	Verdict   ces.Verdict       `json:"verdict"`
}

// PipelineService composes the three stages: classify, draft, evaluate.
// Stages run strictly in sequence within one invocation; invocations are
// independent and may run fully in parallel (the only shared state is the
// gate's immutable rule snapshot).
type PipelineService struct {
	classifier *intent.Classifier
	generator  *draft.Generator
	gate       ces.Engine
	auditSvc   *AuditService
	logger     *slog.Logger
}

// NewPipelineService creates a PipelineService. auditSvc may be nil, in which
// case no audit trail is written.
func NewPipelineService(classifier *intent.Classifier, generator *draft.Generator, gate ces.Engine, auditSvc *AuditService, logger *slog.Logger) *PipelineService {
	return &PipelineService{
		classifier: classifier,
		generator:  generator,
		gate:       gate,
		auditSvc:   auditSvc,
		logger:     logger,
	}
}

// Process runs one invocation end to end. It always returns a result and
// never raises for expected failure modes: classification degrades to its
// safe default and the verdict is a first-class outcome, not an error.
func (s *PipelineService) Process(ctx context.Context, rawInput string, caller Caller) Result {
	requestID := uuid.NewString()

	analysis := s.classifier.Classify(ctx, rawInput)
	actionDraft := s.generator.Draft(analysis, rawInput)

	evalCtx := ces.EvaluationContext{
		UserID:         caller.UserID,
		Topic:          analysis.Topic,
		Action:         actionName(actionDraft),
		ProposedOutput: actionDraft.Content.Message,
		GroundTruth:    caller.GroundTruth,
	}
	verdict := s.gate.Evaluate(ctx, evalCtx)

	s.logger.Info("pipeline invocation complete",
		"request_id", requestID,
		"topic", analysis.Topic,
		"domain", string(analysis.Domain),
		"impact", string(analysis.Impact),
		"action", evalCtx.Action,
		"allowed", verdict.Allowed,
	)

	s.audit(requestID, rawInput, caller, analysis, actionDraft, evalCtx, verdict)

	return Result{
		RequestID: requestID,
		Intent:    analysis,
		Draft:     actionDraft,
		Verdict:   verdict,
	}
}

// actionName derives the gate-facing action name from the draft.
func actionName(d draft.ActionDraft) string {
	if d.ActionType == draft.ActionTypeCreateResource && d.TargetSystem == draft.TargetShopify {
		return ces.ActionCreateAd
	}
	return ces.ActionRespondChat
}

func (s *PipelineService) audit(requestID, rawInput string, caller Caller, analysis intent.Analysis, actionDraft draft.ActionDraft, evalCtx ces.EvaluationContext, verdict ces.Verdict) {
	if s.auditSvc == nil {
		return
	}

	record := audit.Record{
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
		UserID:    caller.UserID,
		Input:     rawInput,
		Topic:     analysis.Topic,
		Domain:    string(analysis.Domain),
		Impact:    string(analysis.Impact),
		Action:    evalCtx.Action,
		DraftID:   actionDraft.ID,
		Decision:  audit.DecisionAllow,
		AuditHash: verdict.AuditHash,
	}
	if !verdict.Allowed {
		record.Decision = audit.DecisionBlock
		record.Reason = verdict.Reason
		record.RuleID = ruleIDFromReason(verdict.Reason)
	}
	s.auditSvc.Record(record)
}

// ruleIDFromReason extracts the policy id from a "<id>: <cause>" reason.
func ruleIDFromReason(reason string) string {
	for i := 0; i < len(reason); i++ {
		if reason[i] == ':' {
			return reason[:i]
		}
	}
	return ""
}
