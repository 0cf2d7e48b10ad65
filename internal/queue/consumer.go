/**
 * Queue Consumer for the card identification worker
 *
 * Consumes identify requests from an Asynq queue on Redis, runs one
 * identification per task and publishes the outcome as a ResultEvent.
 * There is a single camera, so tasks are handled one at a time.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adverant/nexus/cardsort-worker/internal/logging"
	"github.com/adverant/nexus/cardsort-worker/internal/processor"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TypeIdentifyCard is the Asynq task type for one identification
const TypeIdentifyCard = "card:identify"

// IdentifyPayload is the task payload sent by the sorter controller
type IdentifyPayload struct {
	RequestID string `json:"requestId"`
}

// Identifier runs the identification pipeline
type Identifier interface {
	Identify(ctx context.Context, runID string) (*processor.CardIdentity, error)
}

// Publisher delivers result events to whoever requested the identification
type Publisher interface {
	Publish(ctx context.Context, ev *ResultEvent) error
}

// Consumer handles identify tasks from the Redis queue
type Consumer struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	identifier Identifier
	publisher  Publisher
	config     *ConsumerConfig
	logger     *logging.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL        string
	QueueName       string
	Identifier      Identifier
	Publisher       Publisher
	IdentifyTimeout time.Duration
	Logger          *logging.Logger
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	if cfg.Identifier == nil {
		return nil, fmt.Errorf("Identifier is required")
	}

	if cfg.Publisher == nil {
		return nil, fmt.Errorf("Publisher is required")
	}

	if cfg.IdentifyTimeout <= 0 {
		cfg.IdentifyTimeout = 30 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("queue", false)
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 1,
			Queues: map[string]int{
				cfg.QueueName: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task processing error", "type", task.Type(), "payload", string(task.Payload()), "error", err)
			}),
			Logger:          newAsynqLogger(logger.With("component", "asynq")),
			ShutdownTimeout: cfg.IdentifyTimeout,
		},
	)

	consumer := newConsumer(cfg, logger)
	consumer.server = server
	return consumer, nil
}

func newConsumer(cfg *ConsumerConfig, logger *logging.Logger) *Consumer {
	c := &Consumer{
		mux:        asynq.NewServeMux(),
		identifier: cfg.Identifier,
		publisher:  cfg.Publisher,
		config:     cfg,
		logger:     logger,
	}
	c.mux.HandleFunc(TypeIdentifyCard, c.handleIdentifyCard)
	return c
}

// Start starts processing tasks in the background
func (c *Consumer) Start() error {
	c.logger.Info("Starting queue consumer", "queue", c.config.QueueName, "timeout", c.config.IdentifyTimeout)
	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start queue consumer: %w", err)
	}
	return nil
}

// Stop waits for the in-flight identification and stops the consumer
func (c *Consumer) Stop() {
	c.logger.Info("Stopping queue consumer")
	c.server.Shutdown()
	c.logger.Info("Queue consumer stopped")
}

// handleIdentifyCard runs one identification. Failed identifications are
// reported through the result event and never retried: the card under the
// camera may already have moved.
func (c *Consumer) handleIdentifyCard(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	var payload IdentifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal identify payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.RequestID == "" {
		if id, ok := asynq.GetTaskID(ctx); ok {
			payload.RequestID = id
		}
	}

	runID := uuid.NewString()
	logger := c.logger.With("request_id", payload.RequestID, "run_id", runID)
	logger.Info("Identify request received")

	identifyCtx, cancel := context.WithTimeout(ctx, c.config.IdentifyTimeout)
	defer cancel()

	card, err := c.identifier.Identify(identifyCtx, runID)
	duration := time.Since(startTime)

	event := NewResultEvent(payload.RequestID, runID, card, err, duration)
	if pubErr := c.publisher.Publish(ctx, event); pubErr != nil {
		logger.Error("Failed to publish result", "error", pubErr)
		return fmt.Errorf("failed to publish result for %s: %v: %w", payload.RequestID, pubErr, asynq.SkipRetry)
	}

	if err != nil {
		logger.Warn("Identify request failed", "duration", duration, "error", err)
		return fmt.Errorf("identify %s: %w: %w", payload.RequestID, err, asynq.SkipRetry)
	}

	logger.Info("Identify request completed", "name", card.Name, "duration", duration)
	return nil
}
