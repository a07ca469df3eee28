package families

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lexure/validation-engine/internal/models"
	"github.com/lexure/validation-engine/internal/registry"
	"github.com/lexure/validation-engine/internal/scope"
)

func fraudRules() []models.RuleDefinition {
	for _, rules := range groupByFamily(registry.BuiltinCatalogue()) {
		if len(rules) > 0 && rules[0].Family == models.FamilyFraud {
			return rules
		}
	}
	return nil
}

func groupByFamily(rules []models.RuleDefinition) map[models.Family][]models.RuleDefinition {
	out := map[models.Family][]models.RuleDefinition{}
	for _, r := range rules {
		out[r.Family] = append(out[r.Family], r)
	}
	return out
}

func TestFraudEngine_VelocityTriggers(t *testing.T) {
	engine := FraudEngine{}
	payment := models.PaymentInitiated{
		PaymentID:          "pay-2",
		SourceAccount:      "A",
		DestinationAccount: "B",
		Amount:             models.Amount{Value: 60000, Currency: "USD"},
		Reference:          "INV-2",
		InitiatedAt:        time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
	}

	result := engine.Execute(context.Background(), scope.Scope{}, payment, fraudRules())

	assert.False(t, result.Success)
	assert.Equal(t, 25, result.FraudDelta)
	if assert.Len(t, result.FailedRules, 1) {
		assert.Equal(t, "FRAUD_RULE_001", result.FailedRules[0].RuleID)
	}
}

func TestFraudEngine_AllHighThresholdsTrigger(t *testing.T) {
	engine := FraudEngine{}
	payment := models.PaymentInitiated{
		PaymentID:          "pay-6",
		SourceAccount:      "A",
		DestinationAccount: "B",
		Amount:             models.Amount{Value: 1200000, Currency: "USD"},
		Reference:          "INV-6",
		InitiatedAt:        time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC),
	}

	result := engine.Execute(context.Background(), scope.Scope{}, payment, fraudRules())

	// 001(25)+002(30)+004(15)+005(35) = 105, clamped at the aggregator not here
	assert.Equal(t, 105, result.FraudDelta)
	assert.False(t, result.Success)
}

func TestFraudEngine_NormalHoursPass(t *testing.T) {
	engine := FraudEngine{}
	payment := models.PaymentInitiated{
		PaymentID:          "pay-7",
		SourceAccount:      "A",
		DestinationAccount: "B",
		Amount:             models.Amount{Value: 1000, Currency: "USD"},
		Reference:          "INV-7",
		InitiatedAt:        time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
	}

	result := engine.Execute(context.Background(), scope.Scope{}, payment, fraudRules())

	assert.True(t, result.Success)
	assert.Equal(t, 0, result.FraudDelta)
}
