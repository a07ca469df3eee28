package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lexure/validation-engine/internal/families"
	"github.com/lexure/validation-engine/internal/models"
	"github.com/lexure/validation-engine/internal/scope"
)

type fakeEngine struct {
	family models.Family
	delay  time.Duration
	panics bool
	result models.FamilyResult
}

func (e fakeEngine) Family() models.Family { return e.family }

func (e fakeEngine) Execute(ctx context.Context, sc scope.Scope, payment models.PaymentInitiated, rules []models.RuleDefinition) models.FamilyResult {
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
		}
	}
	if e.panics {
		panic("boom")
	}
	return e.result
}

func TestDispatch_CanonicalOrderRegardlessOfCompletionOrder(t *testing.T) {
	d := &Dispatcher{Engines: []families.Engine{
		fakeEngine{family: models.FamilyRisk, delay: 5 * time.Millisecond, result: models.FamilyResult{Family: models.FamilyRisk, Success: true}},
		fakeEngine{family: models.FamilyBusiness, result: models.FamilyResult{Family: models.FamilyBusiness, Success: true}},
		fakeEngine{family: models.FamilyFraud, delay: 2 * time.Millisecond, result: models.FamilyResult{Family: models.FamilyFraud, Success: true}},
		fakeEngine{family: models.FamilyCompliance, result: models.FamilyResult{Family: models.FamilyCompliance, Success: true}},
	}}

	results, cancelled := d.Dispatch(context.Background(), scope.Scope{}, models.PaymentInitiated{}, nil, Policy{
		Parallel: true, MaxParallelRules: 4, PerValidationBudgetMs: 200,
	})

	assert.False(t, cancelled)
	if assert.Len(t, results, 4) {
		assert.Equal(t, models.FamilyBusiness, results[0].Family)
		assert.Equal(t, models.FamilyCompliance, results[1].Family)
		assert.Equal(t, models.FamilyFraud, results[2].Family)
		assert.Equal(t, models.FamilyRisk, results[3].Family)
	}
}

func TestDispatch_TimeoutSynthesizesFailure(t *testing.T) {
	d := &Dispatcher{Engines: []families.Engine{
		fakeEngine{family: models.FamilyBusiness, result: models.FamilyResult{Family: models.FamilyBusiness, Success: true}},
		fakeEngine{family: models.FamilyCompliance, delay: 500 * time.Millisecond, result: models.FamilyResult{Family: models.FamilyCompliance, Success: true}},
		fakeEngine{family: models.FamilyFraud, result: models.FamilyResult{Family: models.FamilyFraud, Success: true}},
		fakeEngine{family: models.FamilyRisk, result: models.FamilyResult{Family: models.FamilyRisk, Success: true}},
	}}

	results, cancelled := d.Dispatch(context.Background(), scope.Scope{}, models.PaymentInitiated{}, nil, Policy{
		Parallel: true, MaxParallelRules: 4, PerValidationBudgetMs: 20,
	})

	assert.False(t, cancelled)
	complianceResult := results[1]
	assert.False(t, complianceResult.Success)
	if assert.Len(t, complianceResult.FailedRules, 1) {
		assert.Equal(t, "COMPLIANCE_TIMEOUT", complianceResult.FailedRules[0].RuleID)
	}
	assert.Equal(t, 100, complianceResult.RiskDelta)
}

func TestDispatch_PanicRecoveredAsEngineError(t *testing.T) {
	d := &Dispatcher{Engines: []families.Engine{
		fakeEngine{family: models.FamilyBusiness, panics: true},
		fakeEngine{family: models.FamilyCompliance, result: models.FamilyResult{Family: models.FamilyCompliance, Success: true}},
		fakeEngine{family: models.FamilyFraud, result: models.FamilyResult{Family: models.FamilyFraud, Success: true}},
		fakeEngine{family: models.FamilyRisk, result: models.FamilyResult{Family: models.FamilyRisk, Success: true}},
	}}

	results, cancelled := d.Dispatch(context.Background(), scope.Scope{}, models.PaymentInitiated{}, nil, Policy{
		Parallel: true, MaxParallelRules: 4, PerValidationBudgetMs: 200,
	})

	assert.False(t, cancelled)
	businessResult := results[0]
	assert.False(t, businessResult.Success)
	if assert.Len(t, businessResult.FailedRules, 1) {
		assert.Equal(t, "BUSINESS_ENGINE_ERROR", businessResult.FailedRules[0].RuleID)
	}
	assert.Equal(t, 100, businessResult.RiskDelta)
}

func TestDispatch_CancellationReturnsCancelledTrue(t *testing.T) {
	d := &Dispatcher{Engines: []families.Engine{
		fakeEngine{family: models.FamilyBusiness, delay: 500 * time.Millisecond},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, cancelled := d.Dispatch(ctx, scope.Scope{}, models.PaymentInitiated{}, nil, Policy{
		Parallel: true, MaxParallelRules: 4, PerValidationBudgetMs: 1000,
	})

	assert.True(t, cancelled)
}
