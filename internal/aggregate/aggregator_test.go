package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lexure/validation-engine/internal/models"
	"github.com/lexure/validation-engine/internal/scope"
)

func TestAggregate_AllPassed(t *testing.T) {
	sc := scope.Scope{ValidationID: "v1", PaymentID: "p1", CorrelationID: "c1"}
	payment := models.PaymentInitiated{PaymentID: "p1"}

	familyResults := []models.FamilyResult{
		{Family: models.FamilyBusiness, Success: true, AppliedRules: []string{"BUSINESS_RULE_001"}},
		{Family: models.FamilyCompliance, Success: true, AppliedRules: []string{"COMPLIANCE_RULE_001"}},
		{Family: models.FamilyFraud, Success: true},
		{Family: models.FamilyRisk, Success: true},
	}

	result := Aggregate(sc, payment, familyResults, false)

	assert.Equal(t, models.StatusPassed, result.Status)
	assert.Equal(t, models.RiskLevelLow, result.RiskLevel)
	assert.Equal(t, 0, result.FraudScore)
	assert.Equal(t, 0, result.RiskScore)
	assert.Equal(t, []string{"BUSINESS_RULE_001", "COMPLIANCE_RULE_001"}, result.AppliedRules)
}

func TestAggregate_FraudFailureIsCritical(t *testing.T) {
	sc := scope.Scope{ValidationID: "v2", PaymentID: "p2"}
	payment := models.PaymentInitiated{PaymentID: "p2"}

	familyResults := []models.FamilyResult{
		{Family: models.FamilyBusiness, Success: true},
		{Family: models.FamilyCompliance, Success: true},
		{Family: models.FamilyFraud, Success: false, FraudDelta: 25, FailedRules: []models.FailedRule{{RuleID: "FRAUD_RULE_001", Family: models.FamilyFraud}}},
		{Family: models.FamilyRisk, Success: true},
	}

	result := Aggregate(sc, payment, familyResults, false)

	assert.Equal(t, models.StatusFailed, result.Status)
	assert.Equal(t, models.RiskLevelCritical, result.RiskLevel)
	assert.Equal(t, 25, result.FraudScore)
}

func TestAggregate_ScoresClampAt100(t *testing.T) {
	sc := scope.Scope{ValidationID: "v6", PaymentID: "p6"}
	payment := models.PaymentInitiated{PaymentID: "p6"}

	familyResults := []models.FamilyResult{
		{Family: models.FamilyBusiness, Success: true},
		{Family: models.FamilyCompliance, Success: true},
		{Family: models.FamilyFraud, Success: false, FraudDelta: 25 + 30 + 15 + 35, FailedRules: []models.FailedRule{{RuleID: "FRAUD_RULE_001", Family: models.FamilyFraud}}},
		{Family: models.FamilyRisk, Success: false, RiskDelta: 30 + 35 + 20, FailedRules: []models.FailedRule{{RuleID: "RISK_RULE_001", Family: models.FamilyRisk}}},
	}

	result := Aggregate(sc, payment, familyResults, false)

	assert.Equal(t, 100, result.FraudScore)
	assert.Equal(t, 85, result.RiskScore)
	assert.Equal(t, models.RiskLevelCritical, result.RiskLevel)
}

func TestAggregate_RiskFailureWithoutFraudIsHigh(t *testing.T) {
	sc := scope.Scope{ValidationID: "v4", PaymentID: "p4"}
	payment := models.PaymentInitiated{PaymentID: "p4"}

	familyResults := []models.FamilyResult{
		{Family: models.FamilyBusiness, Success: true},
		{Family: models.FamilyCompliance, Success: true},
		{Family: models.FamilyFraud, Success: true},
		{Family: models.FamilyRisk, Success: false, RiskDelta: 55, FailedRules: []models.FailedRule{
			{RuleID: "RISK_RULE_001", Family: models.FamilyRisk},
			{RuleID: "RISK_RULE_002", Family: models.FamilyRisk},
		}},
	}

	result := Aggregate(sc, payment, familyResults, false)

	assert.Equal(t, models.RiskLevelHigh, result.RiskLevel)
	assert.Equal(t, 55, result.RiskScore)
}

func TestAggregate_OtherFailureIsMedium(t *testing.T) {
	sc := scope.Scope{ValidationID: "v3", PaymentID: "p3"}
	payment := models.PaymentInitiated{PaymentID: "p3"}

	familyResults := []models.FamilyResult{
		{Family: models.FamilyBusiness, Success: false, RiskDelta: 10, FailedRules: []models.FailedRule{{RuleID: "BUSINESS_RULE_002", Family: models.FamilyBusiness}}},
		{Family: models.FamilyCompliance, Success: true},
		{Family: models.FamilyFraud, Success: true},
		{Family: models.FamilyRisk, Success: true},
	}

	result := Aggregate(sc, payment, familyResults, false)

	assert.Equal(t, models.RiskLevelMedium, result.RiskLevel)
	assert.Equal(t, 10, result.RiskScore)
}

func TestAggregate_CancelledProducesSealedSystemError(t *testing.T) {
	sc := scope.Scope{ValidationID: "v5", PaymentID: "p5", CorrelationID: "c5"}
	payment := models.PaymentInitiated{PaymentID: "p5"}

	result := Aggregate(sc, payment, nil, true)

	assert.Equal(t, models.StatusFailed, result.Status)
	assert.Equal(t, models.RiskLevelCritical, result.RiskLevel)
	assert.Equal(t, 100, result.FraudScore)
	assert.Equal(t, 100, result.RiskScore)
	if assert.Len(t, result.FailedRules, 1) {
		assert.Equal(t, "SYSTEM_ERROR", result.FailedRules[0].RuleID)
	}
}
