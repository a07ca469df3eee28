package families

import (
	"context"
	"time"

	"github.com/lexure/validation-engine/internal/compliance"
	"github.com/lexure/validation-engine/internal/hooks"
	"github.com/lexure/validation-engine/internal/models"
	"github.com/lexure/validation-engine/internal/scope"
)

// ComplianceEngine calls out to the AML/sanctions/KYC/reporting hooks.
// Every failure, predicate or infrastructure, adds a flat 15 to riskDelta.
type ComplianceEngine struct {
	Hooks     *hooks.Set
	Evaluator *compliance.Evaluator
}

func (e ComplianceEngine) Family() models.Family { return models.FamilyCompliance }

func (e ComplianceEngine) Execute(ctx context.Context, sc scope.Scope, payment models.PaymentInitiated, rules []models.RuleDefinition) models.FamilyResult {
	start := time.Now()

	var applied []string
	var failed []models.FailedRule
	delta := 0

	builtins := map[string]evalFunc{
		"COMPLIANCE_RULE_001": func(p models.PaymentInitiated, r models.RuleDefinition) (bool, string, string) {
			if p.Reference == "" {
				return true, "reference", "reference is empty"
			}
			return false, "", ""
		},
	}

	hookRules := map[string]hooks.Hook{
		"COMPLIANCE_RULE_002": e.Hooks.AML,
		"COMPLIANCE_RULE_003": e.Hooks.Sanctions,
		"COMPLIANCE_RULE_004": e.Hooks.KYC,
		"COMPLIANCE_RULE_005": e.Hooks.Reporting,
	}

	for _, rule := range rules {
		if fn, ok := builtins[rule.RuleID]; ok {
			reject, field, reason := fn(payment, rule)
			applied = append(applied, rule.RuleID)
			if reject {
				failed = append(failed, models.FailedRule{
					RuleID: rule.RuleID, RuleName: rule.RuleName, Family: rule.Family,
					FailureReason: reason, Field: field, FailedAt: time.Now().UTC(),
				})
				delta += 15
			}
			continue
		}

		if hook, ok := hookRules[rule.RuleID]; ok {
			pass, reason, err := e.Hooks.Call(ctx, hook, sc, payment)
			applied = append(applied, rule.RuleID)
			if err != nil {
				failed = append(failed, models.FailedRule{
					RuleID: rule.RuleID, RuleName: rule.RuleName, Family: rule.Family,
					FailureReason: "collaborator call failed: " + err.Error(), FailedAt: time.Now().UTC(),
				})
				delta += 15
				continue
			}
			if !pass {
				failed = append(failed, models.FailedRule{
					RuleID: rule.RuleID, RuleName: rule.RuleName, Family: rule.Family,
					FailureReason: reason, FailedAt: time.Now().UTC(),
				})
				delta += 15
			}
			continue
		}

		if e.Evaluator != nil && rule.Expression != "" {
			reject, err := e.Evaluator.Evaluate(rule.RuleID, payment)
			if err != nil {
				failed = append(failed, models.FailedRule{
					RuleID: rule.RuleID, RuleName: rule.RuleName, Family: rule.Family,
					FailureReason: err.Error(), FailedAt: time.Now().UTC(),
				})
				delta += 15
				continue
			}
			applied = append(applied, rule.RuleID)
			if reject {
				failed = append(failed, models.FailedRule{
					RuleID: rule.RuleID, RuleName: rule.RuleName, Family: rule.Family,
					FailureReason: "custom rule rejected payment", FailedAt: time.Now().UTC(),
				})
				delta += 15
			}
		}
	}

	return models.FamilyResult{
		Family:       models.FamilyCompliance,
		Success:      len(failed) == 0,
		AppliedRules: applied,
		FailedRules:  failed,
		RiskDelta:    delta,
		ElapsedMs:    time.Since(start).Milliseconds(),
	}
}
