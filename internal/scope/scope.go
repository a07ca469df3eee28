// Package scope carries the per-payment identifiers that every family
// engine, compliance hook, dispatcher, and aggregator call needs. It is passed explicitly as a
// function parameter everywhere; context.Context is reserved for
// cancellation and deadlines, never for carrying this data.
package scope

import "time"

// Scope is the small value threaded through one validation attempt.
type Scope struct {
	TenantID       string
	BusinessUnitID string
	CorrelationID  string
	ValidationID   string
	PaymentID      string
	StartedAt      time.Time
}

// New builds a Scope for the start of one validation attempt.
func New(tenantID, businessUnitID, correlationID, validationID, paymentID string) Scope {
	return Scope{
		TenantID:       tenantID,
		BusinessUnitID: businessUnitID,
		CorrelationID:  correlationID,
		ValidationID:   validationID,
		PaymentID:      paymentID,
		StartedAt:      time.Now(),
	}
}
