package processor

import (
	"fmt"

	"github.com/adverant/nexus/cardsort-worker/internal/capture"
	"github.com/adverant/nexus/cardsort-worker/internal/clients"
	"github.com/adverant/nexus/cardsort-worker/internal/config"
	"github.com/adverant/nexus/cardsort-worker/internal/logging"
)

// NewFromConfig wires the production bindings: the configured camera,
// Tesseract and the Scryfall client.
func NewFromConfig(cfg *config.Config, logger *logging.Logger) (*CardIdentifier, error) {
	if logger == nil {
		logger = logging.NewLogger("identify", cfg.LogDebug)
	}

	camera, err := capture.Open(cfg.CameraDevice, capture.Options{
		Focus:        cfg.CameraFocus,
		AutofocusOff: cfg.CameraAutofocusOff,
		WarmupFrames: cfg.CameraWarmupFrames,
		Settle:       cfg.CameraSettle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open camera: %w", err)
	}
	if cv, ok := camera.(*capture.OpenCVCamera); ok {
		cv.SetLogger(logger.With("component", "camera"))
	}

	ocr, err := NewTesseractOCR(&TesseractConfig{
		Language:       cfg.OCRLanguage,
		PageSegMode:    cfg.PageSegMode,
		TessdataPrefix: cfg.TessdataPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR engine: %w", err)
	}

	lookup := clients.NewScryfallClient(&clients.ScryfallConfig{
		BaseURL:    cfg.LookupBaseURL,
		Timeout:    cfg.LookupTimeout,
		MaxRetries: cfg.LookupMaxRetries,
		RateLimit:  cfg.LookupRateLimit,
		UserAgent:  cfg.LookupUserAgent,
		Logger:     logger.With("component", "lookup"),
	})

	return NewCardIdentifier(&IdentifierConfig{
		Camera:       camera,
		Recognizer:   ocr,
		Lookup:       lookup,
		ROI:          Rectangle{X: cfg.ROIX, Y: cfg.ROIY, Width: cfg.ROIWidth, Height: cfg.ROIHeight},
		Rotate180:    cfg.Rotate180,
		AllowedChars: cfg.AllowedChars,
		Snapshots:    NewSnapshotWriter(cfg.DebugImageDir, cfg.DebugImages, logger.With("component", "snapshots")),
		Logger:       logger,
	})
}
