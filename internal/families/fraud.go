package families

import (
	"context"
	"regexp"
	"time"

	"github.com/lexure/validation-engine/internal/compliance"
	"github.com/lexure/validation-engine/internal/models"
	"github.com/lexure/validation-engine/internal/scope"
)

// FraudEngine contributes to fraudScore only; it never touches riskDelta.
type FraudEngine struct {
	Evaluator *compliance.Evaluator
}

func (e FraudEngine) Family() models.Family { return models.FamilyFraud }

func (e FraudEngine) Execute(ctx context.Context, sc scope.Scope, payment models.PaymentInitiated, rules []models.RuleDefinition) models.FamilyResult {
	start := time.Now()

	applied, failed, delta := runRules(ctx, payment, rules, fraudPredicates, e.Evaluator, func(rule models.RuleDefinition) int {
		return int(paramFloat(rule, "fraudDelta", 0))
	})

	return models.FamilyResult{
		Family:       models.FamilyFraud,
		Success:      len(failed) == 0,
		AppliedRules: applied,
		FailedRules:  failed,
		FraudDelta:   delta,
		ElapsedMs:    time.Since(start).Milliseconds(),
	}
}

var fraudPredicates = map[string]evalFunc{
	"FRAUD_RULE_001": func(p models.PaymentInitiated, r models.RuleDefinition) (bool, string, string) {
		if p.Amount.Value > paramFloat(r, "threshold", 50000) {
			return true, "amount", "velocity threshold exceeded"
		}
		return false, "", ""
	},
	"FRAUD_RULE_002": func(p models.PaymentInitiated, r models.RuleDefinition) (bool, string, string) {
		if p.Amount.Value > paramFloat(r, "threshold", 75000) {
			return true, "amount", "amount anomaly detected"
		}
		return false, "", ""
	},
	// Suspicious account pattern defaults to always-pass: no tenant pattern
	// is configured by default.
	"FRAUD_RULE_003": func(p models.PaymentInitiated, r models.RuleDefinition) (bool, string, string) {
		pattern := paramString(r, "suspiciousAccountPattern", "")
		if pattern == "" {
			return false, "", ""
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, "", ""
		}
		if re.MatchString(p.SourceAccount) {
			return true, "sourceAccount", "source account matches suspicious pattern"
		}
		return false, "", ""
	},
	"FRAUD_RULE_004": func(p models.PaymentInitiated, r models.RuleDefinition) (bool, string, string) {
		hour := p.InitiatedAt.Hour()
		if hour < 6 || hour > 22 {
			return true, "initiatedAt", "payment initiated outside normal hours"
		}
		return false, "", ""
	},
	"FRAUD_RULE_005": func(p models.PaymentInitiated, r models.RuleDefinition) (bool, string, string) {
		if p.Amount.Value > paramFloat(r, "threshold", 100000) {
			return true, "amount", "behavioral threshold exceeded"
		}
		return false, "", ""
	},
}
