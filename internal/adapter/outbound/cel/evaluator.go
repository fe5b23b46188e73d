// Package cel provides a CEL-based evaluator for constitution condition
// expressions.
package cel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"

	"github.com/odisys/ces-gate/internal/domain/ces"
)

// maxExpressionLength caps condition size so a hostile constitution cannot
// smuggle in pathological expressions.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit per evaluation.
const maxCostBudget = 100_000

// evalTimeout bounds a single condition evaluation.
const evalTimeout = 5 * time.Second

// NewConditionEnvironment creates a CEL environment for constitution
// conditions. Conditions see four variables:
//   - topic:  the classified topic of the intent
//   - action: the action name the gate is judging
//   - output: the proposed output text
//   - stock:  ground-truth inventory count (-1 when no ground truth supplied)
func NewConditionEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		ext.Strings(),
		cel.Variable("topic", cel.StringType),
		cel.Variable("action", cel.StringType),
		cel.Variable("output", cel.StringType),
		cel.Variable("stock", cel.IntType),
	)
}

// Evaluator compiles and evaluates condition expressions for policies.
type Evaluator struct {
	env *cel.Env
}

// NewEvaluator creates an Evaluator with the condition environment.
func NewEvaluator() (*Evaluator, error) {
	env, err := NewConditionEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create condition environment: %w", err)
	}
	return &Evaluator{env: env}, nil
}

// Compile parses and type-checks a condition, returning a compiled program.
func (e *Evaluator) Compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}
	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}
	return prg, nil
}

// ValidateExpression checks that a condition is syntactically valid and
// within safety limits. Called at constitution load time so a bad condition
// is rejected before it can poison the snapshot.
func (e *Evaluator) ValidateExpression(expr string) error {
	if expr == "" {
		return errors.New("expression is empty")
	}
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}
	if _, err := e.Compile(expr); err != nil {
		return fmt.Errorf("invalid condition: %w", err)
	}
	return nil
}

// Evaluate runs a compiled condition against the evaluation context.
func (e *Evaluator) Evaluate(prg cel.Program, evalCtx ces.EvaluationContext) (bool, error) {
	stock := -1
	if evalCtx.GroundTruth != nil {
		stock = evalCtx.GroundTruth.Stock
	}
	activation := map[string]any{
		"topic":  evalCtx.Topic,
		"action": evalCtx.Action,
		"output": evalCtx.ProposedOutput,
		"stock":  stock,
	}

	ctx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()

	result, _, err := prg.ContextEval(ctx, activation)
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}
	b, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition returned %T, want bool", result.Value())
	}
	return b, nil
}
