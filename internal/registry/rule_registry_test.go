package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lexure/validation-engine/internal/models"
)

type fakeSource struct {
	rules []models.RuleDefinition
	err   error
}

func (s fakeSource) LoadRules(ctx context.Context, tenantID string) ([]models.RuleDefinition, error) {
	return s.rules, s.err
}

func TestRulesFor_NoSourceUsesBuiltinCatalogue(t *testing.T) {
	r := NewRuleRegistry(nil, nil, Policy{}, 0)

	byFamily := r.RulesFor(context.Background(), "tenant-a")

	assert.Len(t, byFamily[models.FamilyBusiness], 5)
	assert.Len(t, byFamily[models.FamilyCompliance], 5)
	assert.Len(t, byFamily[models.FamilyFraud], 5)
	assert.Len(t, byFamily[models.FamilyRisk], 5)
}

func TestRulesFor_TenantSourceErrorFallsBackToBuiltin(t *testing.T) {
	r := NewRuleRegistry(fakeSource{err: errors.New("db unavailable")}, nil, Policy{}, 0)

	byFamily := r.RulesFor(context.Background(), "tenant-b")

	assert.Len(t, byFamily[models.FamilyBusiness], 5)
}

func TestRulesFor_OrdersByPriorityThenRuleID(t *testing.T) {
	source := fakeSource{rules: []models.RuleDefinition{
		{RuleID: "CUSTOM_B", Family: models.FamilyBusiness, Priority: 1, Active: true},
		{RuleID: "CUSTOM_A", Family: models.FamilyBusiness, Priority: 1, Active: true},
		{RuleID: "CUSTOM_C", Family: models.FamilyBusiness, Priority: 0, Active: true},
	}}
	r := NewRuleRegistry(source, nil, Policy{}, 0)

	byFamily := r.RulesFor(context.Background(), "tenant-c")

	rules := byFamily[models.FamilyBusiness]
	if assert.Len(t, rules, 3) {
		assert.Equal(t, "CUSTOM_C", rules[0].RuleID)
		assert.Equal(t, "CUSTOM_A", rules[1].RuleID)
		assert.Equal(t, "CUSTOM_B", rules[2].RuleID)
	}
}

func TestRulesFor_InactiveRulesExcluded(t *testing.T) {
	source := fakeSource{rules: []models.RuleDefinition{
		{RuleID: "CUSTOM_ACTIVE", Family: models.FamilyBusiness, Active: true},
		{RuleID: "CUSTOM_INACTIVE", Family: models.FamilyBusiness, Active: false},
	}}
	r := NewRuleRegistry(source, nil, Policy{}, 0)

	byFamily := r.RulesFor(context.Background(), "tenant-d")

	assert.Len(t, byFamily[models.FamilyBusiness], 1)
	assert.Equal(t, "CUSTOM_ACTIVE", byFamily[models.FamilyBusiness][0].RuleID)
}

func TestCacheEviction_RespectsCapacity(t *testing.T) {
	source := fakeSource{rules: []models.RuleDefinition{
		{RuleID: "CUSTOM_1", Family: models.FamilyBusiness, Active: true},
	}}
	r := NewRuleRegistry(source, nil, Policy{CacheEnabled: true}, 2)

	r.loadTenantRules(context.Background(), "t1")
	r.loadTenantRules(context.Background(), "t2")
	r.loadTenantRules(context.Background(), "t3")

	state := r.cache.Load()
	assert.LessOrEqual(t, len(state.entries), 2)
}
