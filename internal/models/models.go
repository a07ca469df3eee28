package models

import (
	"encoding/json"
	"time"
)

// Amount is a monetary value in a single ISO-4217 currency.
type Amount struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

// TenantContext scopes every operation to one tenant/business-unit pair.
type TenantContext struct {
	TenantID       string `json:"tenantId"`
	BusinessUnitID string `json:"businessUnitId"`
}

// PaymentInitiated is the immutable ingress event. Created upstream.
type PaymentInitiated struct {
	PaymentID          string        `json:"paymentId"`
	SourceAccount      string        `json:"sourceAccount"`
	DestinationAccount string        `json:"destinationAccount"`
	Amount             Amount        `json:"amount"`
	Reference          string        `json:"reference"`
	PaymentType        string        `json:"paymentType"`
	TenantContext      TenantContext `json:"tenantContext"`
	InitiatedAt        time.Time     `json:"initiatedAt"`
}

// Family is one of the four rule groupings.
type Family string

const (
	FamilyBusiness   Family = "BUSINESS"
	FamilyCompliance Family = "COMPLIANCE"
	FamilyFraud      Family = "FRAUD"
	FamilyRisk       Family = "RISK"
)

// CanonicalFamilyOrder is the order family results are always reassembled in,
// regardless of completion order.
var CanonicalFamilyOrder = []Family{FamilyBusiness, FamilyCompliance, FamilyFraud, FamilyRisk}

// RuleDefinition describes one rule, built-in or tenant-authored.
type RuleDefinition struct {
	RuleID     string         `json:"ruleId"`
	RuleName   string         `json:"ruleName"`
	Family     Family         `json:"family"`
	Expression string         `json:"expression"`
	Priority   int            `json:"priority"`
	Active     bool           `json:"active"`
	TenantID   string         `json:"tenantId"`
	Version    int            `json:"version"`
	Parameters map[string]any `json:"parameters"`
}

// FailedRule is the immutable record emitted when a rule rejects a payment.
type FailedRule struct {
	RuleID        string    `json:"ruleId"`
	RuleName      string    `json:"ruleName"`
	Family        Family    `json:"family"`
	FailureReason string    `json:"failureReason"`
	Field         string    `json:"field,omitempty"`
	FailedAt      time.Time `json:"failedAt"`
}

// FamilyResult is the internal, per-family outcome of one dispatch.
type FamilyResult struct {
	Family       Family       `json:"family"`
	Success      bool         `json:"success"`
	AppliedRules []string     `json:"appliedRules"`
	FailedRules  []FailedRule `json:"failedRules"`
	FraudDelta   int          `json:"fraudDelta"`
	RiskDelta    int          `json:"riskDelta"`
	ElapsedMs    int64        `json:"elapsedMs"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
}

// Status is the sealed validation outcome.
type Status string

const (
	StatusPassed Status = "PASSED"
	StatusFailed Status = "FAILED"
)

// RiskLevel is the derived severity of a validation outcome.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// ValidationResult is the sealed, persisted, published verdict for one payment.
type ValidationResult struct {
	ValidationID  string        `json:"validationId"`
	PaymentID     string        `json:"paymentId"`
	TenantContext TenantContext `json:"tenantContext"`
	CorrelationID string        `json:"correlationId"`
	Status        Status        `json:"status"`
	RiskLevel     RiskLevel     `json:"riskLevel"`
	FraudScore    int           `json:"fraudScore"`
	RiskScore     int           `json:"riskScore"`
	AppliedRules  []string      `json:"appliedRules"`
	FailedRules   []FailedRule  `json:"failedRules"`
	ValidatedAt   time.Time     `json:"validatedAt"`
	Reason        string        `json:"reason,omitempty"`
	CreatedBy     string        `json:"createdBy"`
	Metadata      JSONB         `json:"metadata,omitempty"`
}

// JSONB is a helper type for PostgreSQL JSONB columns.
type JSONB map[string]interface{}

func (j JSONB) Value() ([]byte, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}

// PaginatedResponse wraps paginated results.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// ValidationStatistics is the tenant-level rollup returned by the store.
type ValidationStatistics struct {
	Total         int     `json:"total"`
	Passed        int     `json:"passed"`
	Failed        int     `json:"failed"`
	AvgFraudScore float64 `json:"avgFraudScore"`
	AvgRiskScore  float64 `json:"avgRiskScore"`
}
