package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lexure/validation-engine/internal/models"
)

func TestFlattenAndInflateFailedRules_RoundTrips(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	rules := []models.FailedRule{
		{RuleID: "BUSINESS_RULE_002", RuleName: "Same Account", Family: models.FamilyBusiness, FailureReason: "match", Field: "destinationAccount", FailedAt: now},
		{RuleID: "RISK_RULE_001", RuleName: "Credit", Family: models.FamilyRisk, FailureReason: "exceeded", FailedAt: now},
	}

	ids, names, families, reasons, fields, ats := flattenFailedRules(rules)
	roundTripped := inflateFailedRules(ids, names, families, reasons, fields, ats)

	assert.Equal(t, rules, roundTripped)
}

func TestFlattenFailedRules_Empty(t *testing.T) {
	ids, names, families, reasons, fields, ats := flattenFailedRules(nil)

	assert.Empty(t, ids)
	assert.Empty(t, names)
	assert.Empty(t, families)
	assert.Empty(t, reasons)
	assert.Empty(t, fields)
	assert.Empty(t, ats)
}
