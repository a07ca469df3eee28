// Package families implements the four rule family engines. Each engine
// walks its rules in the order the registry already sorted them, applies
// every active rule, and accumulates applied/failed rules and score deltas.
// A rule id that is not one of the built-ins falls through to the shared
// CEL evaluator.
package families

import (
	"context"
	"time"

	"github.com/lexure/validation-engine/internal/compliance"
	"github.com/lexure/validation-engine/internal/models"
	"github.com/lexure/validation-engine/internal/scope"
)

// Engine evaluates one rule family against a payment.
type Engine interface {
	Family() models.Family
	Execute(ctx context.Context, sc scope.Scope, payment models.PaymentInitiated, rules []models.RuleDefinition) models.FamilyResult
}

// evalFunc is a single built-in rule predicate. It returns reject=true when
// the rule fails the payment, plus an optional field name and failure
// reason for the FailedRule record.
type evalFunc func(payment models.PaymentInitiated, rule models.RuleDefinition) (reject bool, field, reason string)

// runRules is shared by all four engines: it walks rules in order, resolves
// each to a built-in predicate or the CEL fallback, and folds the result
// into appliedRules/failedRules plus whatever score delta the caller
// attaches via onFailure.
func runRules(
	ctx context.Context,
	payment models.PaymentInitiated,
	rules []models.RuleDefinition,
	builtins map[string]evalFunc,
	evaluator *compliance.Evaluator,
	onFailure func(rule models.RuleDefinition) int,
) (applied []string, failed []models.FailedRule, delta int) {
	for _, rule := range rules {
		fn, ok := builtins[rule.RuleID]

		var reject bool
		var field, reason string
		var err error

		switch {
		case ok:
			reject, field, reason = fn(payment, rule)
		case evaluator != nil && rule.Expression != "":
			reject, err = evaluator.Evaluate(rule.RuleID, payment)
			reason = "custom rule rejected payment"
		default:
			// Unknown rule id with no expression: nothing to evaluate, skip.
			continue
		}

		if err != nil {
			// CEL evaluation errors are ordinary predicate failures, not
			// family-level exceptions.
			failed = append(failed, models.FailedRule{
				RuleID:        rule.RuleID,
				RuleName:      rule.RuleName,
				Family:        rule.Family,
				FailureReason: err.Error(),
				FailedAt:      time.Now().UTC(),
			})
			delta += onFailure(rule)
			continue
		}

		applied = append(applied, rule.RuleID)
		if reject {
			failed = append(failed, models.FailedRule{
				RuleID:        rule.RuleID,
				RuleName:      rule.RuleName,
				Family:        rule.Family,
				FailureReason: reason,
				Field:         field,
				FailedAt:      time.Now().UTC(),
			})
			delta += onFailure(rule)
		}
	}
	return applied, failed, delta
}

func paramFloat(rule models.RuleDefinition, key string, def float64) float64 {
	if rule.Parameters == nil {
		return def
	}
	if v, ok := rule.Parameters[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return def
}

func paramString(rule models.RuleDefinition, key string, def string) string {
	if rule.Parameters == nil {
		return def
	}
	if v, ok := rule.Parameters[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}
