package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// NewIdentifyTask builds a card:identify task for requestID
func NewIdentifyTask(requestID string) (*asynq.Task, error) {
	if requestID == "" {
		return nil, fmt.Errorf("request ID is required")
	}
	payload, err := json.Marshal(IdentifyPayload{RequestID: requestID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal identify payload: %w", err)
	}
	return asynq.NewTask(TypeIdentifyCard, payload), nil
}

// Enqueuer submits identify requests to the worker queue
type Enqueuer struct {
	client    *asynq.Client
	queueName string
}

// NewEnqueuer creates an enqueuer for queueName
func NewEnqueuer(redisURL, queueName string) (*Enqueuer, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Enqueuer{client: asynq.NewClient(redisOpt), queueName: queueName}, nil
}

// Enqueue submits one identify request. Requests are never retried by the
// queue; a stale request would identify whatever card is now in view.
func (e *Enqueuer) Enqueue(ctx context.Context, requestID string) error {
	task, err := NewIdentifyTask(requestID)
	if err != nil {
		return err
	}
	if _, err := e.client.EnqueueContext(ctx, task, asynq.Queue(e.queueName), asynq.MaxRetry(0), asynq.TaskID(requestID)); err != nil {
		return fmt.Errorf("failed to enqueue identify request: %w", err)
	}
	return nil
}

// Close closes the underlying client
func (e *Enqueuer) Close() error {
	return e.client.Close()
}
