// Package hooks wraps the external AML/sanctions/KYC/reporting collaborators
// the compliance family calls out to. Each hook has its own per-call
// timeout, strictly less than the per-validation budget, and can be wrapped
// in a Redis-memoizing decorator.
package hooks

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lexure/validation-engine/internal/models"
	"github.com/lexure/validation-engine/internal/queue"
	"github.com/lexure/validation-engine/internal/scope"
)

// Hook is one external compliance collaborator. It returns pass=true when
// the payment clears the check; reason explains a rejection.
type Hook interface {
	Check(ctx context.Context, sc scope.Scope, payment models.PaymentInitiated) (pass bool, reason string, err error)
}

// PassThrough is the default implementation used until a tenant wires a real
// collaborator; it always clears the payment.
type PassThrough struct {
	Name string
}

func (p PassThrough) Check(ctx context.Context, sc scope.Scope, payment models.PaymentInitiated) (bool, string, error) {
	return true, "", nil
}

// Set groups the four compliance collaborators. Each hook enforces its own
// per-call timeout rather than sharing one across the set.
type Set struct {
	AML       Hook
	Sanctions Hook
	KYC       Hook
	Reporting Hook
}

// NewDefaultSet builds a Set backed by pass-through hooks, each wrapped with
// timeoutMs until the caller overrides individual hooks with their own
// configured timeout (see cmd/validation-worker wiring).
func NewDefaultSet(timeoutMs int) *Set {
	return &Set{
		AML:       TimedHook{Inner: PassThrough{Name: "aml"}, TimeoutMs: timeoutMs},
		Sanctions: TimedHook{Inner: PassThrough{Name: "sanctions"}, TimeoutMs: timeoutMs},
		KYC:       TimedHook{Inner: PassThrough{Name: "kyc"}, TimeoutMs: timeoutMs},
		Reporting: TimedHook{Inner: PassThrough{Name: "reporting"}, TimeoutMs: timeoutMs},
	}
}

// Call invokes hook directly; the hook itself is responsible for enforcing
// its own per-call timeout (see TimedHook).
func (s *Set) Call(ctx context.Context, hook Hook, sc scope.Scope, payment models.PaymentInitiated) (bool, string, error) {
	return hook.Check(ctx, sc, payment)
}

// TimedHook bounds one collaborator's call to its own timeout, independent
// of the other hooks in the set.
type TimedHook struct {
	Inner     Hook
	TimeoutMs int
}

func (t TimedHook) Check(ctx context.Context, sc scope.Scope, payment models.PaymentInitiated) (bool, string, error) {
	cctx, cancel := context.WithTimeout(ctx, time.Duration(t.TimeoutMs)*time.Millisecond)
	defer cancel()
	return t.Inner.Check(cctx, sc, payment)
}

// CachedHook memoizes a hook's verdict in Redis for the duration of one
// validation budget, keyed by paymentId, mirroring the teacher's
// CacheClient Get/Set usage.
type CachedHook struct {
	Inner Hook
	Cache *queue.CacheClient
	Name  string
	TTL   time.Duration
}

type cachedVerdict struct {
	Pass   bool   `json:"pass"`
	Reason string `json:"reason"`
}

func (c CachedHook) Check(ctx context.Context, sc scope.Scope, payment models.PaymentInitiated) (bool, string, error) {
	key := fmt.Sprintf("hooks:%s:%s", c.Name, payment.PaymentID)

	var cached cachedVerdict
	if err := c.Cache.Get(ctx, key, &cached); err == nil {
		return cached.Pass, cached.Reason, nil
	}

	pass, reason, err := c.Inner.Check(ctx, sc, payment)
	if err != nil {
		return false, "", err
	}

	if setErr := c.Cache.Set(ctx, key, cachedVerdict{Pass: pass, Reason: reason}, c.TTL); setErr != nil {
		log.Warn().Err(setErr).Str("hook", c.Name).Msg("failed to cache hook verdict")
	}

	return pass, reason, nil
}
