// Package orchestrator wires dispatch, aggregation, persistence, and
// publication into the handle() entry point the Kafka consumer calls per
// ingress message.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/lexure/validation-engine/internal/aggregate"
	"github.com/lexure/validation-engine/internal/dispatch"
	"github.com/lexure/validation-engine/internal/models"
	"github.com/lexure/validation-engine/internal/registry"
	"github.com/lexure/validation-engine/internal/scope"
)

// resultStore and resultPublisher narrow internal/store.ValidationResultStore
// and internal/publisher.OutcomePublisher to the surface this package needs,
// so tests can swap in fakes without touching Postgres or Kafka.
type resultStore interface {
	Save(ctx context.Context, result *models.ValidationResult) (*models.ValidationResult, error)
}

type resultPublisher interface {
	Publish(result models.ValidationResult) error
}

type Orchestrator struct {
	Registry           *registry.RuleRegistry
	Dispatcher         *dispatch.Dispatcher
	Store              resultStore
	Publisher          resultPublisher
	MaxPublishAttempts int
}

// Handle implements the orchestrator's six-step algorithm: dispatch,
// aggregate, persist, then publish with bounded retry. Persistence is
// attempted before publication so a reconciliation scan can find any
// validation that was sealed but never made it onto the bus.
func (o *Orchestrator) Handle(ctx context.Context, payment models.PaymentInitiated, correlationID, tenantID, businessUnitID string) {
	sc := scope.New(tenantID, businessUnitID, correlationID, uuid.NewString(), payment.PaymentID)
	log.Info().Str("validationId", sc.ValidationID).Str("paymentId", payment.PaymentID).Msg("RECEIVED")

	policy := o.Registry.Policy()
	rulesByFamily := o.Registry.RulesFor(ctx, tenantID)

	results, cancelled := o.Dispatcher.Dispatch(ctx, sc, payment, rulesByFamily, dispatch.Policy{
		Parallel:              policy.Parallel,
		MaxParallelRules:      policy.MaxParallelRules,
		PerValidationBudgetMs: policy.PerValidationBudgetMs,
	})
	log.Info().Str("validationId", sc.ValidationID).Msg("DISPATCHED")

	result := aggregate.Aggregate(sc, payment, results, cancelled)
	log.Info().Str("validationId", sc.ValidationID).Str("status", string(result.Status)).Msg("AGGREGATED")

	saved, err := o.Store.Save(ctx, &result)
	if err != nil {
		log.Error().Err(err).Str("validationId", sc.ValidationID).Msg("failed to persist validation result")
		return
	}
	log.Info().Str("validationId", sc.ValidationID).Msg("PERSISTED")

	if err := o.publishWithRetry(*saved, o.MaxPublishAttempts); err != nil {
		log.Error().Err(err).Str("validationId", sc.ValidationID).Msg("PERSISTED_PUBLISH_FAILED")
		return
	}
	log.Info().Str("validationId", sc.ValidationID).Msg("PUBLISHED")
}

func (o *Orchestrator) publishWithRetry(result models.ValidationResult, maxAttempts int) error {
	var err error
	backoff := 100 * time.Millisecond
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = o.Publisher.Publish(result); err == nil {
			return nil
		}
		log.Warn().Err(err).Str("validationId", result.ValidationID).Int("attempt", attempt).Msg("failed to publish outcome, retrying")
		if attempt < maxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return err
}
