package rules

import (
	"context"
	"log/slog"
	"slices"

	"github.com/dukex/buildflow/pkg/models"
)

// Verdict is the outcome of evaluating the rule set. Rule and Message are set when a rule
// rejected the transition.
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message,omitempty"`
}

// Engine evaluates registered rules in priority order.
type Engine struct {
	logger *slog.Logger
	rules  []Rule
}

// NewEngine creates an engine. The order of rules is the registration order used to break
// priority ties.
func NewEngine(logger *slog.Logger, rules ...Rule) *Engine {
	return &Engine{
		logger: logger.With("module", "rule_engine"),
		rules:  slices.Clone(rules),
	}
}

// Rules returns the registered rules in registration order.
func (e *Engine) Rules() []Rule {
	return slices.Clone(e.rules)
}

// CanExecuteTransition evaluates the applicable rules, highest priority first, and stops
// at the first one that fails.
func (e *Engine) CanExecuteTransition(ctx context.Context, execCtx *models.WorkflowExecutionContext) Verdict {
	applicable := make([]Rule, 0, len(e.rules))

	for _, rule := range e.rules {
		if rule.AppliesTo(execCtx) {
			applicable = append(applicable, rule)
		}
	}

	slices.SortStableFunc(applicable, func(a, b Rule) int {
		return int(b.Priority()) - int(a.Priority())
	})

	for _, rule := range applicable {
		if !rule.Evaluate(ctx, execCtx) {
			e.logger.DebugContext(ctx, "Rule rejected transition",
				"rule", rule.Name(),
				"priority", rule.Priority().String(),
				"type", string(rule.Type()),
				"action", string(execCtx.Action.Type))

			return Verdict{Allowed: false, Rule: rule.Name(), Message: rule.FailureMessage()}
		}
	}

	return Verdict{Allowed: true}
}
