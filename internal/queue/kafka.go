package queue

import (
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"

	"github.com/lexure/validation-engine/configs"
)

// NewConsumerGroup dials the Kafka brokers and returns a consumer group,
// retrying the connection the way the teacher's CDC pipeline does.
func NewConsumerGroup(cfg configs.KafkaConfig) (sarama.ConsumerGroup, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaCfg.Consumer.Return.Errors = true
	saramaCfg.Version = sarama.V3_0_0_0

	var group sarama.ConsumerGroup
	var err error
	for attempt := 1; attempt <= 30; attempt++ {
		group, err = sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, saramaCfg)
		if err == nil {
			return group, nil
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("failed to connect to Kafka, retrying")
		time.Sleep(5 * time.Second)
	}
	return nil, fmt.Errorf("failed to create Kafka consumer group after retries: %w", err)
}

// NewSyncProducer dials the Kafka brokers for outcome publication, keyed by
// paymentId so Kafka's own partition ordering preserves per-payment order.
func NewSyncProducer(cfg configs.KafkaConfig) (sarama.SyncProducer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 5
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Partitioner = sarama.NewHashPartitioner
	saramaCfg.Version = sarama.V3_0_0_0

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return producer, nil
}
