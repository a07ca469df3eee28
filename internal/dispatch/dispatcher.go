// Package dispatch runs the four rule family engines against one payment,
// either in parallel under a shared deadline or serially, and reassembles
// their results into canonical family order regardless of completion order.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lexure/validation-engine/internal/families"
	"github.com/lexure/validation-engine/internal/models"
	"github.com/lexure/validation-engine/internal/scope"
)

// Policy controls how the dispatcher fans engines out.
type Policy struct {
	Parallel              bool
	MaxParallelRules      int
	PerValidationBudgetMs int
}

// Dispatcher runs a fixed set of family engines.
type Dispatcher struct {
	Engines []families.Engine
}

// Dispatch runs every configured engine, handing each its family's rules
// from rulesByFamily (nil when the family has none). It returns one
// FamilyResult per engine, in canonical family order (synthesizing timeout or
// engine-error results as needed) and cancelled=true if ctx was cancelled
// rather than merely timing out.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	sc scope.Scope,
	payment models.PaymentInitiated,
	rulesByFamily map[models.Family][]models.RuleDefinition,
	policy Policy,
) (results []models.FamilyResult, cancelled bool) {
	if policy.Parallel {
		return d.dispatchParallel(ctx, sc, payment, rulesByFamily, policy)
	}
	return d.dispatchSerial(ctx, sc, payment, rulesByFamily, policy)
}

func (d *Dispatcher) dispatchParallel(
	ctx context.Context,
	sc scope.Scope,
	payment models.PaymentInitiated,
	rulesByFamily map[models.Family][]models.RuleDefinition,
	policy Policy,
) ([]models.FamilyResult, bool) {
	dctx, cancel := context.WithTimeout(ctx, time.Duration(policy.PerValidationBudgetMs)*time.Millisecond)
	defer cancel()

	// One buffered(1) channel per family: a goroutine that finishes after
	// the deadline still sends without blocking, and the main goroutine
	// never reads a slot another goroutine might still be writing.
	slots := make(map[models.Family]chan models.FamilyResult, len(d.Engines))
	sem := make(chan struct{}, maxInt(policy.MaxParallelRules, 1))

	var wg sync.WaitGroup
	for _, engine := range d.Engines {
		family := engine.Family()
		rules := rulesByFamily[family]
		ch := make(chan models.FamilyResult, 1)
		slots[family] = ch

		wg.Add(1)
		go func(engine families.Engine, rules []models.RuleDefinition, ch chan<- models.FamilyResult) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			result := runEngine(dctx, sc, payment, engine, rules)
			// An engine that only returned because the deadline cancelled
			// it did not complete within budget.
			if dctx.Err() == context.DeadlineExceeded {
				result = timeoutResult(engine.Family())
			}
			ch <- result
		}(engine, rules, ch)
	}

	// Race "every family finished" against the deadline, so a fast
	// validation (the common case) returns as soon as the last family does
	// instead of always sleeping out the full budget.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-dctx.Done():
	}
	cancelled = dctx.Err() == context.Canceled

	results = make([]models.FamilyResult, 0, len(models.CanonicalFamilyOrder))
	for _, family := range models.CanonicalFamilyOrder {
		ch, ok := slots[family]
		if !ok {
			continue
		}
		select {
		case result := <-ch:
			results = append(results, result)
		default:
			results = append(results, timeoutResult(family))
		}
	}

	return results, cancelled
}

func (d *Dispatcher) dispatchSerial(
	ctx context.Context,
	sc scope.Scope,
	payment models.PaymentInitiated,
	rulesByFamily map[models.Family][]models.RuleDefinition,
	policy Policy,
) ([]models.FamilyResult, bool) {
	dctx, cancel := context.WithTimeout(ctx, time.Duration(policy.PerValidationBudgetMs)*time.Millisecond)
	defer cancel()

	byFamily := map[models.Family]families.Engine{}
	for _, engine := range d.Engines {
		byFamily[engine.Family()] = engine
	}

	results := make([]models.FamilyResult, 0, len(models.CanonicalFamilyOrder))
	for _, family := range models.CanonicalFamilyOrder {
		engine, ok := byFamily[family]
		if !ok {
			continue
		}
		if dctx.Err() != nil {
			if dctx.Err() == context.Canceled {
				return results, true
			}
			results = append(results, timeoutResult(family))
			continue
		}
		results = append(results, runEngine(dctx, sc, payment, engine, rulesByFamily[family]))
	}

	return results, false
}

// runEngine guards one family engine with panic recovery, converting an
// unexpected panic into a synthetic engine-error failure rather than
// aborting the other families.
func runEngine(ctx context.Context, sc scope.Scope, payment models.PaymentInitiated, engine families.Engine, rules []models.RuleDefinition) (result models.FamilyResult) {
	defer func() {
		if r := recover(); r != nil {
			family := engine.Family()
			log.Error().Interface("panic", r).Str("family", string(family)).Msg("rule family engine panicked")
			result = models.FamilyResult{
				Family:  family,
				Success: false,
				FailedRules: []models.FailedRule{{
					RuleID:        fmt.Sprintf("%s_ENGINE_ERROR", family),
					RuleName:      fmt.Sprintf("%s Engine Error", family),
					Family:        family,
					FailureReason: fmt.Sprintf("%v", r),
					FailedAt:      time.Now().UTC(),
				}},
				RiskDelta: 100,
			}
		}
	}()
	return engine.Execute(ctx, sc, payment, rules)
}

func timeoutResult(family models.Family) models.FamilyResult {
	return models.FamilyResult{
		Family:  family,
		Success: false,
		FailedRules: []models.FailedRule{{
			RuleID:        fmt.Sprintf("%s_TIMEOUT", family),
			RuleName:      fmt.Sprintf("%s Timeout", family),
			Family:        family,
			FailureReason: "rule family did not complete within budget",
			FailedAt:      time.Now().UTC(),
		}},
		RiskDelta: 100,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
