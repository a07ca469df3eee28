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

func businessRules() []models.RuleDefinition {
	return registry.BuiltinCatalogue()[0:5]
}

func TestBusinessEngine_Passes(t *testing.T) {
	engine := BusinessEngine{}
	payment := models.PaymentInitiated{
		PaymentID:          "pay-1",
		SourceAccount:      "A",
		DestinationAccount: "B",
		Amount:             models.Amount{Value: 1000, Currency: "USD"},
		Reference:          "INV-1",
		InitiatedAt:        time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
	}

	result := engine.Execute(context.Background(), scope.Scope{}, payment, businessRules())

	assert.True(t, result.Success)
	assert.Empty(t, result.FailedRules)
	assert.Equal(t, 0, result.RiskDelta)
}

func TestBusinessEngine_SameAccountFails(t *testing.T) {
	engine := BusinessEngine{}
	payment := models.PaymentInitiated{
		PaymentID:          "pay-3",
		SourceAccount:      "A",
		DestinationAccount: "A",
		Amount:             models.Amount{Value: 1000, Currency: "USD"},
		Reference:          "INV-3",
		InitiatedAt:        time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
	}

	result := engine.Execute(context.Background(), scope.Scope{}, payment, businessRules())

	assert.False(t, result.Success)
	assert.Equal(t, 10, result.RiskDelta)
	if assert.Len(t, result.FailedRules, 1) {
		assert.Equal(t, "BUSINESS_RULE_002", result.FailedRules[0].RuleID)
	}
}

func TestBusinessEngine_AmountLimitFails(t *testing.T) {
	engine := BusinessEngine{}
	payment := models.PaymentInitiated{
		PaymentID:          "pay-limit",
		SourceAccount:      "A",
		DestinationAccount: "B",
		Amount:             models.Amount{Value: 150000, Currency: "USD"},
		Reference:          "INV-X",
		InitiatedAt:        time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
	}

	result := engine.Execute(context.Background(), scope.Scope{}, payment, businessRules())

	assert.False(t, result.Success)
	assert.Equal(t, 10, result.RiskDelta)
}

func TestBusinessEngine_MissingCurrencyFails(t *testing.T) {
	engine := BusinessEngine{}
	payment := models.PaymentInitiated{
		PaymentID:          "pay-curr",
		SourceAccount:      "A",
		DestinationAccount: "B",
		Amount:             models.Amount{Value: 1000, Currency: ""},
		Reference:          "INV-4",
		InitiatedAt:        time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
	}

	result := engine.Execute(context.Background(), scope.Scope{}, payment, businessRules())

	assert.False(t, result.Success)
	found := false
	for _, fr := range result.FailedRules {
		if fr.RuleID == "BUSINESS_RULE_004" {
			found = true
		}
	}
	assert.True(t, found)
}
