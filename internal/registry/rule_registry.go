// Package registry loads and caches the rule catalogue a tenant validates
// against: the tenant's own rule set when its source returns one, otherwise
// the fixed built-in rules, ordered deterministically and compiled against
// internal/compliance where the rule is not one of the built-ins.
package registry

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/lexure/validation-engine/internal/compliance"
	"github.com/lexure/validation-engine/internal/models"
)

// TenantRuleSource loads a tenant's rule overrides. A Postgres-backed
// implementation lives in internal/store; a registry built with a nil
// source always serves the built-in catalogue.
type TenantRuleSource interface {
	LoadRules(ctx context.Context, tenantID string) ([]models.RuleDefinition, error)
}

// Policy is the registry's execution policy for one validation pass.
type Policy struct {
	Parallel              bool
	MaxParallelRules      int
	PerValidationBudgetMs int
	CacheEnabled          bool
}

// RuleRegistry serves the rule set for a tenant, falling back to the
// built-in catalogue when no tenant source is configured or the tenant
// source errors. A tenant load failure never blocks validation.
type RuleRegistry struct {
	source    TenantRuleSource
	evaluator *compliance.Evaluator
	policy    Policy
	capacity  int
	cache     atomic.Pointer[cacheState]
}

type cacheState struct {
	entries map[string][]models.RuleDefinition
	order   []string // insertion order, oldest first, for capacity eviction
}

func NewRuleRegistry(source TenantRuleSource, evaluator *compliance.Evaluator, policy Policy, capacity int) *RuleRegistry {
	r := &RuleRegistry{
		source:    source,
		evaluator: evaluator,
		policy:    policy,
		capacity:  capacity,
	}
	r.cache.Store(&cacheState{entries: map[string][]models.RuleDefinition{}})
	return r
}

func (r *RuleRegistry) Policy() Policy {
	return r.policy
}

// RulesFor returns the tenant's active rules grouped by family, ordered by
// priority ascending then ruleId lexicographically within each family.
func (r *RuleRegistry) RulesFor(ctx context.Context, tenantID string) map[models.Family][]models.RuleDefinition {
	rules := r.loadTenantRules(ctx, tenantID)
	if rules == nil {
		rules = BuiltinCatalogue()
	}

	byFamily := map[models.Family][]models.RuleDefinition{}
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		byFamily[rule.Family] = append(byFamily[rule.Family], rule)
	}

	for family, familyRules := range byFamily {
		sort.Slice(familyRules, func(i, j int) bool {
			if familyRules[i].Priority != familyRules[j].Priority {
				return familyRules[i].Priority < familyRules[j].Priority
			}
			return familyRules[i].RuleID < familyRules[j].RuleID
		})
		byFamily[family] = familyRules
		r.compileCustomRules(familyRules)
	}

	return byFamily
}

func (r *RuleRegistry) loadTenantRules(ctx context.Context, tenantID string) []models.RuleDefinition {
	if r.source == nil {
		return nil
	}

	if r.policy.CacheEnabled {
		if cached, ok := r.cache.Load().entries[tenantID]; ok {
			return cached
		}
	}

	rules, err := r.source.LoadRules(ctx, tenantID)
	if err != nil {
		log.Warn().Err(err).Str("tenantId", tenantID).Msg("failed to load tenant rule overrides, falling back to built-in catalogue")
		return nil
	}
	if len(rules) == 0 {
		return nil
	}

	if r.policy.CacheEnabled {
		r.store(tenantID, rules)
	}
	return rules
}

// store performs a copy-on-write replace of the cache map, evicting the
// oldest tenant entry once capacity is exceeded.
func (r *RuleRegistry) store(tenantID string, rules []models.RuleDefinition) {
	for {
		old := r.cache.Load()
		next := &cacheState{
			entries: make(map[string][]models.RuleDefinition, len(old.entries)+1),
			order:   append([]string{}, old.order...),
		}
		for k, v := range old.entries {
			next.entries[k] = v
		}
		if _, exists := next.entries[tenantID]; !exists {
			next.order = append(next.order, tenantID)
		}
		next.entries[tenantID] = rules

		for r.capacity > 0 && len(next.entries) > r.capacity && len(next.order) > 0 {
			evict := next.order[0]
			next.order = next.order[1:]
			delete(next.entries, evict)
		}

		if r.cache.CompareAndSwap(old, next) {
			return
		}
	}
}

// compileCustomRules compiles any rule whose id does not match a built-in
// into the shared CEL evaluator so family engines can fall through to it.
func (r *RuleRegistry) compileCustomRules(rules []models.RuleDefinition) {
	if r.evaluator == nil {
		return
	}
	for _, rule := range rules {
		if isBuiltinID(rule.RuleID) || rule.Expression == "" {
			continue
		}
		if err := r.evaluator.Compile(rule.RuleID, rule.Expression); err != nil {
			log.Warn().Err(err).Str("ruleId", rule.RuleID).Msg("failed to compile custom rule, its evaluation will be recorded as a failed rule")
		}
	}
}

func isBuiltinID(ruleID string) bool {
	for _, rule := range builtinCatalogue {
		if rule.RuleID == ruleID {
			return true
		}
	}
	return false
}

// BuiltinCatalogue returns the fixed 20-rule default set, one copy per call
// so callers can't mutate the shared definitions.
func BuiltinCatalogue() []models.RuleDefinition {
	out := make([]models.RuleDefinition, len(builtinCatalogue))
	copy(out, builtinCatalogue)
	return out
}

var builtinCatalogue = []models.RuleDefinition{
	// Business family
	{RuleID: "BUSINESS_RULE_001", RuleName: "Amount Limit", Family: models.FamilyBusiness, Priority: 1, Active: true,
		Parameters: map[string]any{"maxAmount": float64(100000)}},
	{RuleID: "BUSINESS_RULE_002", RuleName: "Same Account", Family: models.FamilyBusiness, Priority: 2, Active: true},
	{RuleID: "BUSINESS_RULE_003", RuleName: "Business Hours", Family: models.FamilyBusiness, Priority: 3, Active: true},
	{RuleID: "BUSINESS_RULE_004", RuleName: "Currency Present", Family: models.FamilyBusiness, Priority: 4, Active: true},
	{RuleID: "BUSINESS_RULE_005", RuleName: "Payment Type Allowed", Family: models.FamilyBusiness, Priority: 5, Active: true},

	// Compliance family
	{RuleID: "COMPLIANCE_RULE_001", RuleName: "Reference Present", Family: models.FamilyCompliance, Priority: 1, Active: true},
	{RuleID: "COMPLIANCE_RULE_002", RuleName: "AML Screen", Family: models.FamilyCompliance, Priority: 2, Active: true},
	{RuleID: "COMPLIANCE_RULE_003", RuleName: "Sanctions Screen", Family: models.FamilyCompliance, Priority: 3, Active: true},
	{RuleID: "COMPLIANCE_RULE_004", RuleName: "KYC Status", Family: models.FamilyCompliance, Priority: 4, Active: true},
	{RuleID: "COMPLIANCE_RULE_005", RuleName: "Regulatory Reporting Flag", Family: models.FamilyCompliance, Priority: 5, Active: true},

	// Fraud family
	{RuleID: "FRAUD_RULE_001", RuleName: "Velocity", Family: models.FamilyFraud, Priority: 1, Active: true,
		Parameters: map[string]any{"threshold": float64(50000), "fraudDelta": float64(25)}},
	{RuleID: "FRAUD_RULE_002", RuleName: "Amount Anomaly", Family: models.FamilyFraud, Priority: 2, Active: true,
		Parameters: map[string]any{"threshold": float64(75000), "fraudDelta": float64(30)}},
	{RuleID: "FRAUD_RULE_003", RuleName: "Account Pattern", Family: models.FamilyFraud, Priority: 3, Active: true,
		Parameters: map[string]any{"fraudDelta": float64(20)}},
	{RuleID: "FRAUD_RULE_004", RuleName: "Time Of Day", Family: models.FamilyFraud, Priority: 4, Active: true,
		Parameters: map[string]any{"fraudDelta": float64(15)}},
	{RuleID: "FRAUD_RULE_005", RuleName: "Behavioral", Family: models.FamilyFraud, Priority: 5, Active: true,
		Parameters: map[string]any{"threshold": float64(100000), "fraudDelta": float64(35)}},

	// Risk family
	{RuleID: "RISK_RULE_001", RuleName: "Credit", Family: models.FamilyRisk, Priority: 1, Active: true,
		Parameters: map[string]any{"threshold": float64(200000), "riskDelta": float64(30)}},
	{RuleID: "RISK_RULE_002", RuleName: "Market", Family: models.FamilyRisk, Priority: 2, Active: true,
		Parameters: map[string]any{"homeCurrency": "USD", "riskDelta": float64(25)}},
	{RuleID: "RISK_RULE_003", RuleName: "Operational", Family: models.FamilyRisk, Priority: 3, Active: true,
		Parameters: map[string]any{"threshold": float64(1000000), "riskDelta": float64(35)}},
	{RuleID: "RISK_RULE_004", RuleName: "Liquidity", Family: models.FamilyRisk, Priority: 4, Active: true,
		Parameters: map[string]any{"threshold": float64(500000), "riskDelta": float64(20)}},
	{RuleID: "RISK_RULE_005", RuleName: "Counterparty", Family: models.FamilyRisk, Priority: 5, Active: true,
		Parameters: map[string]any{"riskDelta": float64(40)}},
}
