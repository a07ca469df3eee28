// Package publisher emits the sealed ValidationResult as a PaymentValidated
// or ValidationFailed event onto Kafka, keyed by paymentId so the bus
// preserves per-payment order.
package publisher

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/lexure/validation-engine/configs"
	"github.com/lexure/validation-engine/internal/models"
)

const (
	eventSource  = "validation-service"
	eventVersion = "1.0.0"
)

type outcomeEvent struct {
	EventID       string               `json:"eventId"`
	EventType     string               `json:"eventType"`
	Timestamp     time.Time            `json:"timestamp"`
	CorrelationID string               `json:"correlationId"`
	Source        string               `json:"source"`
	Version       string               `json:"version"`
	TenantID      string               `json:"tenantId"`
	BusinessUnit  string               `json:"businessUnitId"`
	PaymentID     string               `json:"paymentId"`
	TenantContext models.TenantContext `json:"tenantContext"`
	RiskLevel     models.RiskLevel     `json:"riskLevel"`
	FraudScore    int                  `json:"fraudScore"`
	FailedRules   []publishedRule      `json:"failedRules,omitempty"`
}

// publishedRule mirrors models.FailedRule on the wire, renaming Family to
// ruleType per the egress event shape documented for ValidationFailed.
type publishedRule struct {
	RuleID        string    `json:"ruleId"`
	RuleName      string    `json:"ruleName"`
	RuleType      string    `json:"ruleType"`
	FailureReason string    `json:"failureReason"`
	Field         string    `json:"field,omitempty"`
	FailedAt      time.Time `json:"failedAt"`
}

func toPublishedRules(rules []models.FailedRule) []publishedRule {
	out := make([]publishedRule, len(rules))
	for i, r := range rules {
		out[i] = publishedRule{
			RuleID:        r.RuleID,
			RuleName:      r.RuleName,
			RuleType:      string(r.Family),
			FailureReason: r.FailureReason,
			Field:         r.Field,
			FailedAt:      r.FailedAt,
		}
	}
	return out
}

// OutcomePublisher emits PaymentValidated/ValidationFailed events.
type OutcomePublisher struct {
	producer sarama.SyncProducer
	topics   configs.KafkaConfig
}

func NewOutcomePublisher(producer sarama.SyncProducer, topics configs.KafkaConfig) *OutcomePublisher {
	return &OutcomePublisher{producer: producer, topics: topics}
}

// Publish routes the result to the validated or failed topic based on
// status and sends it keyed on paymentId.
func (p *OutcomePublisher) Publish(result models.ValidationResult) error {
	eventType := "PaymentValidated"
	topic := p.topics.ValidatedTopic
	if result.Status == models.StatusFailed {
		eventType = "ValidationFailed"
		topic = p.topics.FailedTopic
	}

	event := outcomeEvent{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Timestamp:     time.Now().UTC(),
		CorrelationID: result.CorrelationID,
		Source:        eventSource,
		Version:       eventVersion,
		TenantID:      result.TenantContext.TenantID,
		BusinessUnit:  result.TenantContext.BusinessUnitID,
		PaymentID:     result.PaymentID,
		TenantContext: result.TenantContext,
		RiskLevel:     result.RiskLevel,
		FraudScore:    result.FraudScore,
	}
	if result.Status == models.StatusFailed {
		event.FailedRules = toPublishedRules(result.FailedRules)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(result.PaymentID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("correlationId"), Value: []byte(result.CorrelationID)},
			{Key: []byte("tenantId"), Value: []byte(result.TenantContext.TenantID)},
			{Key: []byte("businessUnitId"), Value: []byte(result.TenantContext.BusinessUnitID)},
			{Key: []byte("eventType"), Value: []byte(eventType)},
			{Key: []byte("source"), Value: []byte(eventSource)},
			{Key: []byte("version"), Value: []byte(eventVersion)},
		},
	}

	_, _, err = p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}
	return nil
}
