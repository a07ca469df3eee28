// Package store persists ValidationResult rows, following the teacher's
// repository conventions: typed sentinel errors, pq.Array for embedded
// ordered lists, count-then-page pagination, idempotent inserts.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/lexure/validation-engine/internal/models"
	"github.com/lexure/validation-engine/internal/repositories"
)

var ErrValidationResultNotFound = errors.New("validation result not found")

// ValidationResultStore implements §4.6's operation table over Postgres.
type ValidationResultStore struct {
	db *repositories.Database
}

func NewValidationResultStore(db *repositories.Database) *ValidationResultStore {
	return &ValidationResultStore{db: db}
}

// Save is idempotent on ValidationID: a second save of the same row leaves
// exactly one persisted row and returns it unchanged.
func (s *ValidationResultStore) Save(ctx context.Context, result *models.ValidationResult) (*models.ValidationResult, error) {
	metadataBytes, err := result.Metadata.Value()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	failedIDs, failedNames, failedFamilies, failedReasons, failedFields, failedAts := flattenFailedRules(result.FailedRules)

	query := `
		INSERT INTO validation_results (
			validation_id, payment_id, tenant_id, business_unit_id, correlation_id,
			status, risk_level, fraud_score, risk_score,
			applied_rules,
			failed_rule_ids, failed_rule_names, failed_rule_families, failed_rule_reasons, failed_rule_fields, failed_rule_failed_ats,
			validated_at, reason, created_by, metadata
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10,
			$11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20
		)
		ON CONFLICT (validation_id) DO NOTHING
	`

	_, err = s.db.Pool.Exec(ctx, query,
		result.ValidationID, result.PaymentID, result.TenantContext.TenantID, result.TenantContext.BusinessUnitID, result.CorrelationID,
		string(result.Status), string(result.RiskLevel), result.FraudScore, result.RiskScore,
		pq.Array(result.AppliedRules),
		pq.Array(failedIDs), pq.Array(failedNames), pq.Array(failedFamilies), pq.Array(failedReasons), pq.Array(failedFields), pq.Array(failedAts),
		result.ValidatedAt, result.Reason, result.CreatedBy, metadataBytes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save validation result: %w", err)
	}

	return s.FindByValidationID(ctx, result.ValidationID)
}

func (s *ValidationResultStore) FindByValidationID(ctx context.Context, validationID string) (*models.ValidationResult, error) {
	row := s.db.Pool.QueryRow(ctx, selectColumns+` WHERE validation_id = $1`, validationID)
	return scanOne(row)
}

func (s *ValidationResultStore) FindByPaymentID(ctx context.Context, paymentID string) ([]*models.ValidationResult, error) {
	rows, err := s.db.Pool.Query(ctx, selectColumns+` WHERE payment_id = $1 ORDER BY validated_at DESC`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query by payment id: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

func (s *ValidationResultStore) FindByTenantID(ctx context.Context, tenantID string, page, pageSize int) ([]*models.ValidationResult, int, error) {
	return s.findPaged(ctx, `WHERE tenant_id = $1`, []interface{}{tenantID}, page, pageSize)
}

func (s *ValidationResultStore) FindByTenantAndBU(ctx context.Context, tenantID, businessUnitID string, page, pageSize int) ([]*models.ValidationResult, int, error) {
	return s.findPaged(ctx, `WHERE tenant_id = $1 AND business_unit_id = $2`, []interface{}{tenantID, businessUnitID}, page, pageSize)
}

func (s *ValidationResultStore) FindByCorrelationID(ctx context.Context, correlationID string) ([]*models.ValidationResult, error) {
	rows, err := s.db.Pool.Query(ctx, selectColumns+` WHERE correlation_id = $1 ORDER BY validated_at DESC`, correlationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query by correlation id: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

func (s *ValidationResultStore) FindByStatus(ctx context.Context, status models.Status, page, pageSize int) ([]*models.ValidationResult, int, error) {
	return s.findPaged(ctx, `WHERE status = $1`, []interface{}{string(status)}, page, pageSize)
}

func (s *ValidationResultStore) FindByRiskLevel(ctx context.Context, level models.RiskLevel, page, pageSize int) ([]*models.ValidationResult, int, error) {
	return s.findPaged(ctx, `WHERE risk_level = $1`, []interface{}{string(level)}, page, pageSize)
}

func (s *ValidationResultStore) FindByValidatedAtBetween(ctx context.Context, from, to time.Time, page, pageSize int) ([]*models.ValidationResult, int, error) {
	return s.findPaged(ctx, `WHERE validated_at >= $1 AND validated_at <= $2`, []interface{}{from, to}, page, pageSize)
}

func (s *ValidationResultStore) Statistics(ctx context.Context, tenantID string) (*models.ValidationStatistics, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN status = 'PASSED' THEN 1 END),
			COUNT(CASE WHEN status = 'FAILED' THEN 1 END),
			COALESCE(AVG(fraud_score), 0),
			COALESCE(AVG(risk_score), 0)
		FROM validation_results
		WHERE tenant_id = $1
	`
	stats := &models.ValidationStatistics{}
	err := s.db.Pool.QueryRow(ctx, query, tenantID).Scan(
		&stats.Total, &stats.Passed, &stats.Failed, &stats.AvgFraudScore, &stats.AvgRiskScore,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute statistics: %w", err)
	}
	return stats, nil
}

// CleanupBefore deletes rows with validatedAt < cutoff and returns the count
// deleted.
func (s *ValidationResultStore) CleanupBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM validation_results WHERE validated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up validation results: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *ValidationResultStore) findPaged(ctx context.Context, where string, args []interface{}, page, pageSize int) ([]*models.ValidationResult, int, error) {
	offset := (page - 1) * pageSize

	countQuery := `SELECT COUNT(*) FROM validation_results ` + where
	var total int
	if err := s.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count validation results: %w", err)
	}

	dataQuery := fmt.Sprintf(selectColumns+` %s ORDER BY validated_at DESC LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)

	queryArgs := append(append([]interface{}{}, args...), pageSize, offset)
	rows, err := s.db.Pool.Query(ctx, dataQuery, queryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query validation results: %w", err)
	}
	defer rows.Close()

	results, err := scanAll(rows)
	if err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

const selectColumns = `
	SELECT validation_id, payment_id, tenant_id, business_unit_id, correlation_id,
		status, risk_level, fraud_score, risk_score,
		applied_rules,
		failed_rule_ids, failed_rule_names, failed_rule_families, failed_rule_reasons, failed_rule_fields, failed_rule_failed_ats,
		validated_at, reason, created_by, metadata
	FROM validation_results
`

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanOne(row scannable) (*models.ValidationResult, error) {
	result, err := scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrValidationResultNotFound
		}
		return nil, err
	}
	return result, nil
}

func scanAll(rows pgx.Rows) ([]*models.ValidationResult, error) {
	var out []*models.ValidationResult
	for rows.Next() {
		result, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	return out, nil
}

func scanRow(row scannable) (*models.ValidationResult, error) {
	result := &models.ValidationResult{}
	var status, riskLevel string
	var appliedRules []string
	var failedIDs, failedNames, failedFamilies, failedReasons, failedFields []string
	var failedAts []time.Time
	var metadataBytes []byte

	err := row.Scan(
		&result.ValidationID, &result.PaymentID, &result.TenantContext.TenantID, &result.TenantContext.BusinessUnitID, &result.CorrelationID,
		&status, &riskLevel, &result.FraudScore, &result.RiskScore,
		&appliedRules,
		&failedIDs, &failedNames, &failedFamilies, &failedReasons, &failedFields, &failedAts,
		&result.ValidatedAt, &result.Reason, &result.CreatedBy, &metadataBytes,
	)
	if err != nil {
		return nil, err
	}

	result.Status = models.Status(status)
	result.RiskLevel = models.RiskLevel(riskLevel)
	result.AppliedRules = appliedRules
	result.FailedRules = inflateFailedRules(failedIDs, failedNames, failedFamilies, failedReasons, failedFields, failedAts)
	result.Metadata = models.JSONB{}
	_ = result.Metadata.Scan(metadataBytes)

	return result, nil
}

func flattenFailedRules(rules []models.FailedRule) (ids, names, families, reasons, fields []string, ats []time.Time) {
	for _, r := range rules {
		ids = append(ids, r.RuleID)
		names = append(names, r.RuleName)
		families = append(families, string(r.Family))
		reasons = append(reasons, r.FailureReason)
		fields = append(fields, r.Field)
		ats = append(ats, r.FailedAt)
	}
	return
}

func inflateFailedRules(ids, names, families, reasons, fields []string, ats []time.Time) []models.FailedRule {
	rules := make([]models.FailedRule, 0, len(ids))
	for i := range ids {
		rules = append(rules, models.FailedRule{
			RuleID:        ids[i],
			RuleName:      names[i],
			Family:        models.Family(families[i]),
			FailureReason: reasons[i],
			Field:         fields[i],
			FailedAt:      ats[i],
		})
	}
	return rules
}
