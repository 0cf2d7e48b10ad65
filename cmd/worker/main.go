/**
 * Card Sort Worker - Main Entry Point
 *
 * Identifies the card under the sorter camera on request.
 *
 * Architecture:
 * - Asynq consumer for Redis-backed identify requests (one at a time)
 * - Capture -> crop/grayscale/invert -> allow-list OCR -> parse -> lookup
 * - Results published on a Redis pub/sub channel
 */

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/adverant/nexus/cardsort-worker/internal/config"
	"github.com/adverant/nexus/cardsort-worker/internal/logging"
	"github.com/adverant/nexus/cardsort-worker/internal/processor"
	"github.com/adverant/nexus/cardsort-worker/internal/queue"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.RequireQueue(); err != nil {
		log.Fatalf("Invalid queue configuration: %v", err)
	}

	logger := logging.NewLogger("cardsort-worker", cfg.LogDebug)
	logger.Info("Card sort worker starting", "camera", cfg.CameraDevice, "queue", cfg.QueueName,
		"lookup", cfg.LookupBaseURL, "debug_images", cfg.DebugImages)

	// Initialize identification pipeline
	identifier, err := processor.NewFromConfig(cfg, logger.With("component", "identify"))
	if err != nil {
		log.Fatalf("Failed to initialize card identifier: %v", err)
	}

	// Initialize result publisher
	publisher, err := queue.NewResultPublisher(cfg.RedisURL, cfg.ResultChannel, logger.With("component", "results"))
	if err != nil {
		log.Fatalf("Failed to initialize result publisher: %v", err)
	}
	defer publisher.Close()

	// Initialize queue consumer
	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:        cfg.RedisURL,
		QueueName:       cfg.QueueName,
		Identifier:      identifier,
		Publisher:       publisher,
		IdentifyTimeout: cfg.IdentifyTimeout,
		Logger:          logger.With("component", "queue"),
	})
	if err != nil {
		log.Fatalf("Failed to initialize queue consumer: %v", err)
	}

	if err := consumer.Start(); err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}

	logger.Info("Card sort worker is READY", "queue", cfg.QueueName, "results", cfg.ResultChannel)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received signal, initiating graceful shutdown", "signal", sig)

	consumer.Stop()
	logger.Info("Shutdown complete")
}
