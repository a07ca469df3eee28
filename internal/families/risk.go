package families

import (
	"context"
	"regexp"
	"time"

	"github.com/lexure/validation-engine/internal/compliance"
	"github.com/lexure/validation-engine/internal/models"
	"github.com/lexure/validation-engine/internal/scope"
)

// RiskEngine contributes to riskScore via the five prudential checks.
type RiskEngine struct {
	Evaluator *compliance.Evaluator
}

func (e RiskEngine) Family() models.Family { return models.FamilyRisk }

func (e RiskEngine) Execute(ctx context.Context, sc scope.Scope, payment models.PaymentInitiated, rules []models.RuleDefinition) models.FamilyResult {
	start := time.Now()

	applied, failed, delta := runRules(ctx, payment, rules, riskPredicates, e.Evaluator, func(rule models.RuleDefinition) int {
		return int(paramFloat(rule, "riskDelta", 0))
	})

	return models.FamilyResult{
		Family:       models.FamilyRisk,
		Success:      len(failed) == 0,
		AppliedRules: applied,
		FailedRules:  failed,
		RiskDelta:    delta,
		ElapsedMs:    time.Since(start).Milliseconds(),
	}
}

var riskPredicates = map[string]evalFunc{
	"RISK_RULE_001": func(p models.PaymentInitiated, r models.RuleDefinition) (bool, string, string) {
		if p.Amount.Value > paramFloat(r, "threshold", 200000) {
			return true, "amount", "credit exposure threshold exceeded"
		}
		return false, "", ""
	},
	"RISK_RULE_002": func(p models.PaymentInitiated, r models.RuleDefinition) (bool, string, string) {
		home := paramString(r, "homeCurrency", "USD")
		if p.Amount.Currency != home {
			return true, "amount.currency", "currency differs from tenant home currency"
		}
		return false, "", ""
	},
	"RISK_RULE_003": func(p models.PaymentInitiated, r models.RuleDefinition) (bool, string, string) {
		if p.Amount.Value > paramFloat(r, "threshold", 1000000) {
			return true, "amount", "operational risk threshold exceeded"
		}
		return false, "", ""
	},
	"RISK_RULE_004": func(p models.PaymentInitiated, r models.RuleDefinition) (bool, string, string) {
		if p.Amount.Value > paramFloat(r, "threshold", 500000) {
			return true, "amount", "liquidity risk threshold exceeded"
		}
		return false, "", ""
	},
	// High-risk counterparty pattern defaults to always-pass: no tenant
	// pattern is configured by default.
	"RISK_RULE_005": func(p models.PaymentInitiated, r models.RuleDefinition) (bool, string, string) {
		pattern := paramString(r, "highRiskDestinationPattern", "")
		if pattern == "" {
			return false, "", ""
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, "", ""
		}
		if re.MatchString(p.DestinationAccount) {
			return true, "destinationAccount", "destination matches high-risk counterparty pattern"
		}
		return false, "", ""
	},
}
