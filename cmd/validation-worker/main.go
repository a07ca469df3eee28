package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lexure/validation-engine/configs"
	"github.com/lexure/validation-engine/internal/compliance"
	"github.com/lexure/validation-engine/internal/dispatch"
	"github.com/lexure/validation-engine/internal/families"
	"github.com/lexure/validation-engine/internal/hooks"
	"github.com/lexure/validation-engine/internal/models"
	"github.com/lexure/validation-engine/internal/orchestrator"
	"github.com/lexure/validation-engine/internal/publisher"
	"github.com/lexure/validation-engine/internal/queue"
	"github.com/lexure/validation-engine/internal/registry"
	"github.com/lexure/validation-engine/internal/repositories"
	"github.com/lexure/validation-engine/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := configs.Load()
	setupLogging(cfg.Server.Environment)

	log.Info().Str("environment", cfg.Server.Environment).Msg("Starting validation worker")

	db, err := repositories.NewDatabase(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	cacheClient, err := queue.NewCacheClient(cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer cacheClient.Close()

	producer, err := queue.NewSyncProducer(cfg.Kafka)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Kafka producer")
	}
	defer producer.Close()

	consumerGroup, err := queue.NewConsumerGroup(cfg.Kafka)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Kafka consumer group")
	}
	defer consumerGroup.Close()

	evaluator, err := compliance.NewEvaluator()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create rule evaluator")
	}

	// Each collaborator gets its own configured timeout, wrapped around the
	// cache lookup so a slow Redis round trip is bounded too.
	hookSet := hooks.NewDefaultSet(cfg.Hooks.AML.TimeoutMs)
	hookSet.AML = hooks.TimedHook{
		Inner:     hooks.CachedHook{Inner: hooks.PassThrough{Name: "aml"}, Cache: cacheClient, Name: "aml", TTL: msDuration(cfg.Hooks.AML.CacheTTLMs)},
		TimeoutMs: cfg.Hooks.AML.TimeoutMs,
	}
	hookSet.Sanctions = hooks.TimedHook{
		Inner:     hooks.CachedHook{Inner: hooks.PassThrough{Name: "sanctions"}, Cache: cacheClient, Name: "sanctions", TTL: msDuration(cfg.Hooks.Sanctions.CacheTTLMs)},
		TimeoutMs: cfg.Hooks.Sanctions.TimeoutMs,
	}
	hookSet.KYC = hooks.TimedHook{
		Inner:     hooks.CachedHook{Inner: hooks.PassThrough{Name: "kyc"}, Cache: cacheClient, Name: "kyc", TTL: msDuration(cfg.Hooks.KYC.CacheTTLMs)},
		TimeoutMs: cfg.Hooks.KYC.TimeoutMs,
	}

	tenantRules := store.NewTenantRuleStore(db)
	ruleRegistry := registry.NewRuleRegistry(tenantRules, evaluator, registry.Policy{
		Parallel:              cfg.Rules.Parallel,
		MaxParallelRules:      cfg.Rules.MaxParallelRules,
		PerValidationBudgetMs: cfg.Rules.PerValidationBudgetMs,
		CacheEnabled:          cfg.Rules.CacheEnabled,
	}, cfg.Rules.CacheCapacity)

	dispatcher := &dispatch.Dispatcher{
		Engines: []families.Engine{
			families.BusinessEngine{Evaluator: evaluator},
			families.ComplianceEngine{Hooks: hookSet, Evaluator: evaluator},
			families.FraudEngine{Evaluator: evaluator},
			families.RiskEngine{Evaluator: evaluator},
		},
	}

	resultStore := store.NewValidationResultStore(db)
	outcomePublisher := publisher.NewOutcomePublisher(producer, cfg.Kafka)

	orch := &orchestrator.Orchestrator{
		Registry:           ruleRegistry,
		Dispatcher:         dispatcher,
		Store:              resultStore,
		Publisher:          outcomePublisher,
		MaxPublishAttempts: cfg.Publisher.MaxPublishAttempts,
	}

	ctx, cancel := context.WithCancel(context.Background())
	handler := &consumerHandler{orchestrator: orch}

	go func() {
		for {
			if err := consumerGroup.Consume(ctx, []string{cfg.Kafka.IngressTopic}, handler); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error().Err(err).Msg("consumer group session ended with error")
			}
		}
	}()

	go func() {
		for err := range consumerGroup.Errors() {
			log.Error().Err(err).Msg("consumer group error")
		}
	}()

	go runRetentionSweeper(ctx, resultStore, cfg.Retention.CutoffDays)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker...")
	cancel()
}

func setupLogging(env string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

type consumerHandler struct {
	orchestrator *orchestrator.Orchestrator
}

func (h *consumerHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *consumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var payment models.PaymentInitiated
		if err := json.Unmarshal(message.Value, &payment); err != nil {
			log.Error().Err(err).Msg("failed to unmarshal payment initiated event, skipping")
			session.MarkMessage(message, "")
			continue
		}

		correlationID := headerValue(message.Headers, "correlationId")
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		h.orchestrator.Handle(session.Context(), payment, correlationID, payment.TenantContext.TenantID, payment.TenantContext.BusinessUnitID)
		session.MarkMessage(message, "")
	}
	return nil
}

func headerValue(headers []*sarama.RecordHeader, key string) string {
	for _, h := range headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// runRetentionSweeper deletes sealed results older than cutoffDays once a
// day, mirroring the teacher's ticker-driven background reporter.
func runRetentionSweeper(ctx context.Context, resultStore *store.ValidationResultStore, cutoffDays int) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, 0, -cutoffDays)
			deleted, err := resultStore.CleanupBefore(ctx, cutoff)
			if err != nil {
				log.Error().Err(err).Msg("retention sweep failed")
				continue
			}
			log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("retention sweep completed")
		case <-ctx.Done():
			return
		}
	}
}
