/**
 * Result publishing over Redis pub/sub
 *
 * Every handled identify task produces exactly one ResultEvent on the
 * result channel. Callers that enqueue a request can Await its event.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adverant/nexus/cardsort-worker/internal/errors"
	"github.com/adverant/nexus/cardsort-worker/internal/logging"
	"github.com/adverant/nexus/cardsort-worker/internal/processor"
	"github.com/redis/go-redis/v9"
)

// Result event names
const (
	EventIdentified = "card:identified"
	EventFailed     = "card:failed"
)

// ResultEvent is the outcome of one identify request
type ResultEvent struct {
	Event      string                  `json:"event"`
	RequestID  string                  `json:"requestId"`
	RunID      string                  `json:"runId"`
	Status     string                  `json:"status"`
	Card       *processor.CardIdentity `json:"card,omitempty"`
	Error      map[string]interface{}  `json:"error,omitempty"`
	DurationMs int64                   `json:"durationMs"`
	Timestamp  string                  `json:"timestamp"`
}

// NewResultEvent builds the event for a finished run; exactly one of card
// and err is expected to be set
func NewResultEvent(requestID, runID string, card *processor.CardIdentity, err error, duration time.Duration) *ResultEvent {
	ev := &ResultEvent{
		RequestID:  requestID,
		RunID:      runID,
		DurationMs: duration.Milliseconds(),
		Timestamp:  time.Now().Format(time.RFC3339),
	}

	switch {
	case err != nil:
		ev.Event = EventFailed
		ev.Status = string(processor.StateFailed)
		if ie, ok := errors.As(err); ok {
			ev.Error = ie.ToMap()
		} else {
			ev.Error = map[string]interface{}{"message": err.Error()}
		}
	case card == nil:
		ev.Event = EventFailed
		ev.Status = string(processor.StateFailed)
		ev.Error = map[string]interface{}{"message": "identification returned no card"}
	default:
		ev.Event = EventIdentified
		ev.Status = string(processor.StateDone)
		ev.Card = card
	}
	return ev
}

// Failed reports whether the event carries an error
func (e *ResultEvent) Failed() bool {
	return e.Status != string(processor.StateDone)
}

// ResultPublisher publishes and awaits result events on a Redis channel
type ResultPublisher struct {
	client  *redis.Client
	channel string
	logger  *logging.Logger
}

// NewResultPublisher connects to Redis and verifies the connection
func NewResultPublisher(redisURL, channel string, logger *logging.Logger) (*ResultPublisher, error) {
	if channel == "" {
		return nil, fmt.Errorf("result channel is required")
	}
	if logger == nil {
		logger = logging.NewLogger("results", false)
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &ResultPublisher{client: client, channel: channel, logger: logger}, nil
}

// Publish sends ev on the result channel
func (p *ResultPublisher) Publish(ctx context.Context, ev *ResultEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal result event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish result event: %w", err)
	}
	p.logger.Debug("Result published", "channel", p.channel, "request_id", ev.RequestID, "event", ev.Event)
	return nil
}

// Await subscribes to the result channel, calls enqueue and blocks until
// the event for requestID arrives or ctx is done. Subscribing first means
// a fast worker cannot publish before we listen.
func (p *ResultPublisher) Await(ctx context.Context, requestID string, enqueue func(context.Context) error) (*ResultEvent, error) {
	sub := p.client.Subscribe(ctx, p.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", p.channel, err)
	}

	if err := enqueue(ctx); err != nil {
		return nil, err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("no result for request %s: %w", requestID, ctx.Err())
		case msg, ok := <-ch:
			if !ok {
				return nil, fmt.Errorf("subscription to %s closed", p.channel)
			}
			ev, err := decodeResultEvent(msg.Payload)
			if err != nil {
				p.logger.Warn("Ignoring malformed result event", "error", err)
				continue
			}
			if ev.RequestID == requestID {
				return ev, nil
			}
		}
	}
}

// Close closes the Redis connection
func (p *ResultPublisher) Close() error {
	return p.client.Close()
}

func decodeResultEvent(payload string) (*ResultEvent, error) {
	var ev ResultEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result event: %w", err)
	}
	return &ev, nil
}
