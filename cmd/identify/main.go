// Command identify runs a single card identification and prints the
// result event as JSON. With -enqueue the request goes through the worker
// queue instead of the local camera.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/adverant/nexus/cardsort-worker/internal/config"
	"github.com/adverant/nexus/cardsort-worker/internal/logging"
	"github.com/adverant/nexus/cardsort-worker/internal/processor"
	"github.com/adverant/nexus/cardsort-worker/internal/queue"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	os.Exit(run())
}

// run returns the exit code so deferred cleanup completes before os.Exit
func run() int {
	enqueue := flag.Bool("enqueue", false, "send the request to the worker queue and wait for its result")
	requestID := flag.String("request-id", "", "request ID (default: random)")
	debugImages := flag.Bool("debug-images", false, "write frame and ROI snapshots")
	device := flag.String("device", "", "camera device index or file:<path>, overrides CAMERA_DEVICE")
	flag.Parse()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	if *device != "" {
		os.Setenv("CAMERA_DEVICE", *device)
	}
	if *debugImages {
		os.Setenv("DEBUG_IMAGES", "true")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}

	if *requestID == "" {
		*requestID = uuid.NewString()
	}

	// Diagnostics go to stderr so stdout stays a single JSON document
	logger := logging.NewLoggerWithWriter("identify", os.Stderr, cfg.LogDebug)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.IdentifyTimeout)
	defer cancel()

	var event *queue.ResultEvent
	if *enqueue {
		event, err = identifyRemote(ctx, cfg, *requestID, logger)
		if err != nil {
			log.Printf("Remote identification failed: %v", err)
			return 1
		}
	} else {
		event, err = identifyLocal(ctx, cfg, *requestID, logger)
		if err != nil {
			log.Printf("Failed to initialize card identifier: %v", err)
			return 1
		}
	}

	return report(os.Stdout, event)
}

func identifyLocal(ctx context.Context, cfg *config.Config, requestID string, logger *logging.Logger) (*queue.ResultEvent, error) {
	identifier, err := processor.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	runID := uuid.NewString()
	card, err := identifier.Identify(ctx, runID)
	return queue.NewResultEvent(requestID, runID, card, err, time.Since(start)), nil
}

func identifyRemote(ctx context.Context, cfg *config.Config, requestID string, logger *logging.Logger) (*queue.ResultEvent, error) {
	if err := cfg.RequireQueue(); err != nil {
		return nil, err
	}

	publisher, err := queue.NewResultPublisher(cfg.RedisURL, cfg.ResultChannel, logger)
	if err != nil {
		return nil, err
	}
	defer publisher.Close()

	enqueuer, err := queue.NewEnqueuer(cfg.RedisURL, cfg.QueueName)
	if err != nil {
		return nil, err
	}
	defer enqueuer.Close()

	logger.Info("Enqueuing identify request", "request_id", requestID, "queue", cfg.QueueName)
	return publisher.Await(ctx, requestID, func(ctx context.Context) error {
		return enqueuer.Enqueue(ctx, requestID)
	})
}

// report prints the event and returns the process exit code
func report(w io.Writer, event *queue.ResultEvent) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(event); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
		return 1
	}

	if !event.Failed() {
		return 0
	}
	stage, _ := event.Error["stage"].(string)
	code, _ := event.Error["error_code"].(string)
	message, _ := event.Error["message"].(string)
	if stage == "" {
		stage = "unknown stage"
	}
	fmt.Fprintf(os.Stderr, "identification failed at %s (%s): %s\n", stage, code, message)
	return 1
}
