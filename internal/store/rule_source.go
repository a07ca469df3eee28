package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lexure/validation-engine/internal/models"
	"github.com/lexure/validation-engine/internal/repositories"
)

// TenantRuleStore loads a tenant's rule overrides from Postgres, satisfying
// registry.TenantRuleSource. A tenant with no override row returns an empty
// slice, which the registry treats as "use the built-in catalogue".
type TenantRuleStore struct {
	db *repositories.Database
}

func NewTenantRuleStore(db *repositories.Database) *TenantRuleStore {
	return &TenantRuleStore{db: db}
}

func (s *TenantRuleStore) LoadRules(ctx context.Context, tenantID string) ([]models.RuleDefinition, error) {
	query := `
		SELECT rule_id, rule_name, family, expression, priority, active, tenant_id, version, parameters
		FROM tenant_rules
		WHERE tenant_id = $1
	`
	rows, err := s.db.Pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tenant rules: %w", err)
	}
	defer rows.Close()

	var rules []models.RuleDefinition
	for rows.Next() {
		var rule models.RuleDefinition
		var family string
		var parametersBytes []byte

		if err := rows.Scan(&rule.RuleID, &rule.RuleName, &family, &rule.Expression, &rule.Priority, &rule.Active, &rule.TenantID, &rule.Version, &parametersBytes); err != nil {
			return nil, fmt.Errorf("failed to scan tenant rule: %w", err)
		}
		rule.Family = models.Family(family)
		if len(parametersBytes) > 0 {
			if err := json.Unmarshal(parametersBytes, &rule.Parameters); err != nil {
				return nil, fmt.Errorf("failed to unmarshal rule parameters: %w", err)
			}
		}
		rules = append(rules, rule)
	}

	return rules, nil
}
