// Package aggregate folds per-family dispatch results into the sealed,
// immutable ValidationResult that gets persisted and published.
package aggregate

import (
	"time"

	"github.com/lexure/validation-engine/internal/models"
	"github.com/lexure/validation-engine/internal/scope"
)

// Aggregate implements the ResultAggregator contract: concatenate rules in
// family order, clamp scores, derive status and risk level, and stamp
// validation metadata.
func Aggregate(sc scope.Scope, payment models.PaymentInitiated, familyResults []models.FamilyResult, cancelled bool) models.ValidationResult {
	if cancelled {
		return sealedSystemError(sc, "DISPATCH_CANCELLED", "dispatch was cancelled before all families completed")
	}

	var appliedRules []string
	var failedRules []models.FailedRule
	fraudScore, riskScore := 0, 0
	perFamilyElapsedMs := models.JSONB{}

	for _, fr := range familyResults {
		appliedRules = append(appliedRules, fr.AppliedRules...)
		failedRules = append(failedRules, fr.FailedRules...)
		fraudScore += fr.FraudDelta
		riskScore += fr.RiskDelta
		perFamilyElapsedMs[string(fr.Family)] = fr.ElapsedMs
	}

	if fraudScore > 100 {
		fraudScore = 100
	}
	if riskScore > 100 {
		riskScore = 100
	}

	status := models.StatusPassed
	if len(failedRules) > 0 {
		status = models.StatusFailed
	}

	return models.ValidationResult{
		ValidationID:  sc.ValidationID,
		PaymentID:     payment.PaymentID,
		TenantContext: payment.TenantContext,
		CorrelationID: sc.CorrelationID,
		Status:        status,
		RiskLevel:     deriveRiskLevel(failedRules),
		FraudScore:    fraudScore,
		RiskScore:     riskScore,
		AppliedRules:  appliedRules,
		FailedRules:   failedRules,
		ValidatedAt:   time.Now().UTC(),
		CreatedBy:     "validation-service",
		Metadata: models.JSONB{
			"validationId":       sc.ValidationID,
			"paymentId":          payment.PaymentID,
			"familyCount":        len(familyResults),
			"perFamilyElapsedMs": perFamilyElapsedMs,
		},
	}
}

// deriveRiskLevel implements the first-match-wins ordering: any FRAUD
// failure outranks any RISK failure, which outranks any other failure.
func deriveRiskLevel(failedRules []models.FailedRule) models.RiskLevel {
	hasFraud, hasRisk := false, false
	for _, fr := range failedRules {
		switch fr.Family {
		case models.FamilyFraud:
			hasFraud = true
		case models.FamilyRisk:
			hasRisk = true
		}
	}
	switch {
	case hasFraud:
		return models.RiskLevelCritical
	case hasRisk:
		return models.RiskLevelHigh
	case len(failedRules) > 0:
		return models.RiskLevelMedium
	default:
		return models.RiskLevelLow
	}
}

func sealedSystemError(sc scope.Scope, ruleID, reason string) models.ValidationResult {
	now := time.Now().UTC()
	return models.ValidationResult{
		ValidationID:  sc.ValidationID,
		PaymentID:     sc.PaymentID,
		TenantContext: models.TenantContext{TenantID: sc.TenantID, BusinessUnitID: sc.BusinessUnitID},
		CorrelationID: sc.CorrelationID,
		Status:        models.StatusFailed,
		RiskLevel:     models.RiskLevelCritical,
		FraudScore:    100,
		RiskScore:     100,
		FailedRules: []models.FailedRule{{
			RuleID:        "SYSTEM_ERROR",
			RuleName:      "System Error",
			FailureReason: reason,
			FailedAt:      now,
		}},
		ValidatedAt: now,
		CreatedBy:   "validation-service",
		Metadata: models.JSONB{
			"validationId": sc.ValidationID,
			"paymentId":    sc.PaymentID,
			"error":        reason,
			"code":         ruleID,
		},
	}
}
