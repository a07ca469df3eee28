// Package compliance compiles and evaluates tenant-authored rule expressions
// with CEL, layered on top of the fixed, built-in rule catalogue.
package compliance

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/lexure/validation-engine/internal/models"
)

// Evaluator holds compiled CEL programs for custom tenant rules, keyed by
// ruleId. A rule expression must evaluate to a bool; true means the rule
// rejects the payment, mirroring the reject-if phrasing of the built-in
// catalogue.
type Evaluator struct {
	mu       sync.RWMutex
	env      *cel.Env
	programs map[string]cel.Program
}

// NewEvaluator builds the CEL environment shared by every compiled rule.
func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("payment", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("sourceAccount", cel.StringType),
		cel.Variable("destinationAccount", cel.StringType),
		cel.Variable("reference", cel.StringType),
		cel.Variable("paymentType", cel.StringType),
		cel.Variable("hour", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Evaluator{env: env, programs: make(map[string]cel.Program)}, nil
}

// Compile compiles and stores the expression for ruleId, replacing any prior
// program for the same id.
func (e *Evaluator) Compile(ruleID, expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("failed to compile rule %s: %w", ruleID, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("rule %s: expression must return bool, got %s", ruleID, ast.OutputType())
	}
	program, err := e.env.Program(ast)
	if err != nil {
		return fmt.Errorf("failed to create program for rule %s: %w", ruleID, err)
	}

	e.mu.Lock()
	e.programs[ruleID] = program
	e.mu.Unlock()
	return nil
}

// Evaluate runs the compiled expression for ruleId against payment. The
// returned bool is true when the rule rejects the payment.
func (e *Evaluator) Evaluate(ruleID string, payment models.PaymentInitiated) (bool, error) {
	e.mu.RLock()
	program, ok := e.programs[ruleID]
	e.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("no compiled expression for rule %s", ruleID)
	}

	out, _, err := program.Eval(Activation(payment))
	if err != nil {
		return false, fmt.Errorf("evaluation error: %w", err)
	}

	rejects, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule %s did not evaluate to bool", ruleID)
	}
	return rejects, nil
}

// Activation builds the CEL activation map for one payment.
func Activation(payment models.PaymentInitiated) map[string]any {
	return map[string]any{
		"payment": map[string]any{
			"paymentId":          payment.PaymentID,
			"sourceAccount":      payment.SourceAccount,
			"destinationAccount": payment.DestinationAccount,
			"amount":             payment.Amount.Value,
			"currency":           payment.Amount.Currency,
			"reference":          payment.Reference,
			"paymentType":        payment.PaymentType,
		},
		"amount":             payment.Amount.Value,
		"currency":           payment.Amount.Currency,
		"sourceAccount":      payment.SourceAccount,
		"destinationAccount": payment.DestinationAccount,
		"reference":          payment.Reference,
		"paymentType":        payment.PaymentType,
		"hour":               int64(payment.InitiatedAt.Hour()),
	}
}
