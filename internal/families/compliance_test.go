package families

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lexure/validation-engine/internal/hooks"
	"github.com/lexure/validation-engine/internal/models"
	"github.com/lexure/validation-engine/internal/registry"
	"github.com/lexure/validation-engine/internal/scope"
)

func complianceRules() []models.RuleDefinition {
	for family, rules := range groupByFamily(registry.BuiltinCatalogue()) {
		if family == models.FamilyCompliance {
			return rules
		}
	}
	return nil
}

type rejectingHook struct{ reason string }

func (h rejectingHook) Check(context.Context, scope.Scope, models.PaymentInitiated) (bool, string, error) {
	return false, h.reason, nil
}

type erroringHook struct{}

func (erroringHook) Check(context.Context, scope.Scope, models.PaymentInitiated) (bool, string, error) {
	return false, "", errors.New("collaborator unreachable")
}

func TestComplianceEngine_MissingReferenceFails(t *testing.T) {
	engine := ComplianceEngine{Hooks: hooks.NewDefaultSet(500)}
	payment := models.PaymentInitiated{
		PaymentID:          "pay-5",
		SourceAccount:      "A",
		DestinationAccount: "B",
		Amount:             models.Amount{Value: 1000, Currency: "USD"},
		Reference:          "",
		InitiatedAt:        time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
	}

	result := engine.Execute(context.Background(), scope.Scope{}, payment, complianceRules())

	assert.False(t, result.Success)
	assert.Equal(t, 15, result.RiskDelta)
	if assert.Len(t, result.FailedRules, 1) {
		assert.Equal(t, "COMPLIANCE_RULE_001", result.FailedRules[0].RuleID)
	}
}

func TestComplianceEngine_HookRejectionFails(t *testing.T) {
	set := hooks.NewDefaultSet(500)
	set.AML = rejectingHook{reason: "AML flagged"}
	engine := ComplianceEngine{Hooks: set}

	payment := models.PaymentInitiated{
		PaymentID:   "pay-aml",
		Reference:   "INV-AML",
		Amount:      models.Amount{Value: 1000, Currency: "USD"},
		InitiatedAt: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
	}

	result := engine.Execute(context.Background(), scope.Scope{}, payment, complianceRules())

	assert.False(t, result.Success)
	found := false
	for _, fr := range result.FailedRules {
		if fr.RuleID == "COMPLIANCE_RULE_002" {
			found = true
			assert.Equal(t, "AML flagged", fr.FailureReason)
		}
	}
	assert.True(t, found)
}

func TestComplianceEngine_HookInfraErrorFails(t *testing.T) {
	set := hooks.NewDefaultSet(500)
	set.Sanctions = erroringHook{}
	engine := ComplianceEngine{Hooks: set}

	payment := models.PaymentInitiated{
		PaymentID:   "pay-err",
		Reference:   "INV-ERR",
		Amount:      models.Amount{Value: 1000, Currency: "USD"},
		InitiatedAt: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
	}

	result := engine.Execute(context.Background(), scope.Scope{}, payment, complianceRules())

	assert.False(t, result.Success)
	found := false
	for _, fr := range result.FailedRules {
		if fr.RuleID == "COMPLIANCE_RULE_003" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestComplianceEngine_AllPassThroughPasses(t *testing.T) {
	engine := ComplianceEngine{Hooks: hooks.NewDefaultSet(500)}
	payment := models.PaymentInitiated{
		PaymentID:   "pay-ok",
		Reference:   "INV-OK",
		Amount:      models.Amount{Value: 1000, Currency: "USD"},
		InitiatedAt: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
	}

	result := engine.Execute(context.Background(), scope.Scope{}, payment, complianceRules())

	assert.True(t, result.Success)
	assert.Equal(t, 0, result.RiskDelta)
}
