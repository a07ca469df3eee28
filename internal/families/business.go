package families

import (
	"context"
	"regexp"
	"time"

	"github.com/lexure/validation-engine/internal/compliance"
	"github.com/lexure/validation-engine/internal/models"
	"github.com/lexure/validation-engine/internal/scope"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// BusinessEngine applies the account and payment-shape rules. Every failure
// adds a flat 10 to riskDelta, per the family's documented contribution.
type BusinessEngine struct {
	Evaluator *compliance.Evaluator
}

func (e BusinessEngine) Family() models.Family { return models.FamilyBusiness }

func (e BusinessEngine) Execute(ctx context.Context, sc scope.Scope, payment models.PaymentInitiated, rules []models.RuleDefinition) models.FamilyResult {
	start := time.Now()

	applied, failed, delta := runRules(ctx, payment, rules, businessPredicates, e.Evaluator, func(models.RuleDefinition) int {
		return 10
	})

	return models.FamilyResult{
		Family:       models.FamilyBusiness,
		Success:      len(failed) == 0,
		AppliedRules: applied,
		FailedRules:  failed,
		RiskDelta:    delta,
		ElapsedMs:    time.Since(start).Milliseconds(),
	}
}

var businessPredicates = map[string]evalFunc{
	"BUSINESS_RULE_001": func(p models.PaymentInitiated, r models.RuleDefinition) (bool, string, string) {
		maxAmount := paramFloat(r, "maxAmount", 100000)
		if p.Amount.Value > maxAmount {
			return true, "amount", "amount exceeds configured limit"
		}
		return false, "", ""
	},
	"BUSINESS_RULE_002": func(p models.PaymentInitiated, r models.RuleDefinition) (bool, string, string) {
		if p.SourceAccount != "" && p.SourceAccount == p.DestinationAccount {
			return true, "destinationAccount", "source and destination account match"
		}
		return false, "", ""
	},
	// Business hours default to always-pass: no tenant window is configured
	// by default, and the built-in catalogue carries no window of its own.
	"BUSINESS_RULE_003": func(p models.PaymentInitiated, r models.RuleDefinition) (bool, string, string) {
		startHour, hasStart := r.Parameters["windowStartHour"]
		endHour, hasEnd := r.Parameters["windowEndHour"]
		if !hasStart || !hasEnd {
			return false, "", ""
		}
		hour := p.InitiatedAt.Hour()
		start, _ := startHour.(float64)
		end, _ := endHour.(float64)
		if float64(hour) < start || float64(hour) > end {
			return true, "initiatedAt", "payment initiated outside configured business hours"
		}
		return false, "", ""
	},
	"BUSINESS_RULE_004": func(p models.PaymentInitiated, r models.RuleDefinition) (bool, string, string) {
		if !currencyPattern.MatchString(p.Amount.Currency) {
			return true, "amount.currency", "currency is missing or not a three-letter code"
		}
		return false, "", ""
	},
	"BUSINESS_RULE_005": func(p models.PaymentInitiated, r models.RuleDefinition) (bool, string, string) {
		allowed, ok := r.Parameters["allowedPaymentTypes"]
		if !ok {
			return false, "", ""
		}
		list, ok := allowed.([]string)
		if !ok || len(list) == 0 {
			return false, "", ""
		}
		for _, t := range list {
			if t == p.PaymentType {
				return false, "", ""
			}
		}
		return true, "paymentType", "payment type not enabled for tenant"
	},
}
