// Package service contains application services.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/cel-go/cel"

	celeval "github.com/odisys/ces-gate/internal/adapter/outbound/cel"
	"github.com/odisys/ces-gate/internal/domain/ces"
)

// scarcityCues are the urgency/low-stock wordings the built-in economic truth
// check looks for in proposed ad copy.
var scarcityCues = []string{"urgente", "pocos"}

// scarcityStockThreshold is the inventory count above which a scarcity claim
// is considered false.
const scarcityStockThreshold = 10

// compiledPolicy is a constitution rule with its patterns and condition
// compiled, ready for evaluation.
type compiledPolicy struct {
	policy    ces.Policy
	topics    map[string]bool // nil when the policy is not topic-gated
	patterns  []*regexp.Regexp
	condition cel.Program // nil when the policy has no condition
}

// constitutionSnapshot is the immutable compiled rule set stored in
// atomic.Value. Reload swaps the whole snapshot; no reader ever observes a
// partially updated list.
type constitutionSnapshot struct {
	policies []compiledPolicy
}

// CESService implements ces.Engine. Policies are compiled at load time and
// evaluated in document order; the first matching policy wins. Reads are
// lock-free via atomic.Value.
type CESService struct {
	source    ces.Source
	evaluator *celeval.Evaluator
	snapshot  atomic.Value // stores *constitutionSnapshot
	mu        sync.Mutex   // serializes Reload
	failMode  ces.FailMode
	logger    *slog.Logger
}

// NewCESService creates a CESService and loads the constitution. A missing or
// unparseable constitution does not fail startup: the service starts with an
// empty rule set and logs a warning. What an empty rule set means is decided
// by failMode (open = zero enforcement, closed = block everything).
func NewCESService(ctx context.Context, source ces.Source, failMode ces.FailMode, logger *slog.Logger) (*CESService, error) {
	if !failMode.IsValid() {
		failMode = ces.FailOpen
	}

	evaluator, err := celeval.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create condition evaluator: %w", err)
	}

	s := &CESService{
		source:    source,
		evaluator: evaluator,
		failMode:  failMode,
		logger:    logger,
	}

	snapshot, err := s.loadAndCompile(ctx)
	if err != nil {
		logger.Warn("constitution unavailable, starting with empty rule set",
			"fail_mode", string(failMode), "error", err)
		snapshot = &constitutionSnapshot{}
	}
	s.snapshot.Store(snapshot)

	logger.Info("constitutional enforcement initialized",
		"policies_loaded", len(snapshot.policies),
		"fail_mode", string(failMode),
	)

	return s, nil
}

// Compile-time check that CESService implements ces.Engine.
var _ ces.Engine = (*CESService)(nil)

// loadAndCompile reads the constitution and compiles every policy. Any
// invalid pattern or condition makes the whole document unloadable, so a
// half-broken constitution cannot silently enforce half its rules.
func (s *CESService) loadAndCompile(ctx context.Context) (*constitutionSnapshot, error) {
	policies, err := s.source.Load(ctx)
	if err != nil {
		return nil, err
	}

	compiled := make([]compiledPolicy, 0, len(policies))
	for _, p := range policies {
		cp := compiledPolicy{policy: p}

		if len(p.Triggers.Topics) > 0 {
			cp.topics = make(map[string]bool, len(p.Triggers.Topics))
			for _, t := range p.Triggers.Topics {
				cp.topics[t] = true
			}
		}

		for _, pat := range p.Triggers.Patterns {
			re, err := regexp.Compile("(?i)" + pat)
			if err != nil {
				return nil, fmt.Errorf("policy %s: invalid pattern %q: %w", p.ID, pat, err)
			}
			cp.patterns = append(cp.patterns, re)
		}

		if p.Condition != "" {
			if err := s.evaluator.ValidateExpression(p.Condition); err != nil {
				return nil, fmt.Errorf("policy %s: %w", p.ID, err)
			}
			prg, err := s.evaluator.Compile(p.Condition)
			if err != nil {
				return nil, fmt.Errorf("policy %s: %w", p.ID, err)
			}
			cp.condition = prg
		}

		compiled = append(compiled, cp)
	}

	return &constitutionSnapshot{policies: compiled}, nil
}

// Reload reloads and recompiles the constitution, atomically swapping the
// snapshot. On error the live rule set is left untouched.
func (s *CESService) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.loadAndCompile(ctx)
	if err != nil {
		return fmt.Errorf("constitution reload failed: %w", err)
	}
	s.snapshot.Store(snapshot)
	s.logger.Info("constitution reloaded", "policies_loaded", len(snapshot.policies))
	return nil
}

// FailMode returns the configured empty-rule-set behavior.
func (s *CESService) FailMode() ces.FailMode {
	return s.failMode
}

// PoliciesLoaded returns the size of the live rule set.
func (s *CESService) PoliciesLoaded() int {
	return len(s.loadSnapshot().policies)
}

func (s *CESService) loadSnapshot() *constitutionSnapshot {
	return s.snapshot.Load().(*constitutionSnapshot)
}

// Evaluate judges one proposed action against the live rule set. Policies are
// checked in load order; the first matching policy blocks and evaluation
// stops. A single deterministic pass, no retries.
func (s *CESService) Evaluate(_ context.Context, evalCtx ces.EvaluationContext) ces.Verdict {
	snapshot := s.loadSnapshot()

	if len(snapshot.policies) == 0 && s.failMode == ces.FailClosed {
		return ces.Verdict{
			Allowed:        false,
			Severity:       "BLOCK",
			Reason:         "constitution_empty: fail-closed mode blocks all actions",
			ModifiedOutput: "Acción bloqueada por normativa.",
			AuditHash:      ces.AuditHash(evalCtx, "constitution_empty", false),
		}
	}

	for _, cp := range snapshot.policies {
		// Topic-gated pattern matching.
		if cp.topics == nil || cp.topics[evalCtx.Topic] {
			for _, re := range cp.patterns {
				if !re.MatchString(evalCtx.ProposedOutput) {
					continue
				}
				if !s.conditionHolds(cp, evalCtx) {
					break
				}
				return s.block(cp.policy, evalCtx, "prohibited pattern detected in output")
			}
		}

		// Built-in factual-consistency check: ad copy claiming scarcity must
		// be consistent with the caller-supplied inventory count.
		if cp.policy.ID == ces.EconomicTruthRuleID && evalCtx.Action == ces.ActionCreateAd {
			if claimsScarcity(evalCtx.ProposedOutput) &&
				evalCtx.GroundTruth != nil && evalCtx.GroundTruth.Stock > scarcityStockThreshold {
				return s.block(cp.policy, evalCtx, "false scarcity claim, stock is not low")
			}
		}

		// Condition-only policies: block when the condition holds for this
		// topic. Policies with patterns were handled above.
		if len(cp.patterns) == 0 && cp.condition != nil && (cp.topics == nil || cp.topics[evalCtx.Topic]) {
			if s.conditionHolds(cp, evalCtx) {
				return s.block(cp.policy, evalCtx, "condition matched")
			}
		}
	}

	return ces.Verdict{
		Allowed:   true,
		AuditHash: ces.AuditHash(evalCtx, "", true),
	}
}

// conditionHolds evaluates a policy's condition, treating a missing condition
// as true. Evaluation errors skip the policy: a broken condition must not
// turn into a spurious block or a silent bypass of later rules.
func (s *CESService) conditionHolds(cp compiledPolicy, evalCtx ces.EvaluationContext) bool {
	if cp.condition == nil {
		return true
	}
	ok, err := s.evaluator.Evaluate(cp.condition, evalCtx)
	if err != nil {
		s.logger.Warn("policy condition evaluation failed, skipping policy",
			"policy", cp.policy.ID, "error", err)
		return false
	}
	return ok
}

func (s *CESService) block(p ces.Policy, evalCtx ces.EvaluationContext, cause string) ces.Verdict {
	return ces.Verdict{
		Allowed:        false,
		Severity:       p.Severity,
		Reason:         fmt.Sprintf("%s: %s", p.ID, cause),
		ModifiedOutput: p.ReplacementText(),
		AuditHash:      ces.AuditHash(evalCtx, p.ID, false),
	}
}

// claimsScarcity reports whether ad copy contains urgency/low-stock wording.
func claimsScarcity(output string) bool {
	text := strings.ToLower(output)
	for _, cue := range scarcityCues {
		if strings.Contains(text, cue) {
			return true
		}
	}
	return false
}
