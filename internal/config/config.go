/**
 * Configuration for the card identification worker
 *
 * Loads configuration from environment variables (optionally seeded from .env)
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// DefaultAllowedChars covers set codes, collector numbers and the separators
// printed between them.
const DefaultAllowedChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ /"

// Config holds worker configuration
type Config struct {
	// Camera configuration
	CameraDevice       string
	CameraFocus        int
	CameraAutofocusOff bool
	CameraWarmupFrames int
	CameraSettle       time.Duration

	// Region of interest, in frame coordinates after optional rotation
	Rotate180 bool
	ROIX      int
	ROIY      int
	ROIWidth  int
	ROIHeight int

	// OCR configuration
	AllowedChars   string
	OCRLanguage    string
	PageSegMode    int
	TessdataPrefix string

	// Diagnostic snapshots
	DebugImages   bool
	DebugImageDir string

	// Card lookup service
	LookupBaseURL    string
	LookupTimeout    time.Duration
	LookupMaxRetries int
	LookupRateLimit  time.Duration
	LookupUserAgent  string

	// Queue transport (worker mode)
	RedisURL        string
	QueueName       string
	ResultChannel   string
	IdentifyTimeout time.Duration

	LogDebug bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		CameraDevice:       getEnvOrDefault("CAMERA_DEVICE", "0"),
		CameraFocus:        getEnvAsIntOrDefault("CAMERA_FOCUS", 200),
		CameraAutofocusOff: getEnvAsBoolOrDefault("CAMERA_AUTOFOCUS_OFF", true),
		CameraWarmupFrames: getEnvAsIntOrDefault("CAMERA_WARMUP_FRAMES", 10),
		CameraSettle:       getEnvAsMillisOrDefault("CAMERA_SETTLE_MS", 200),
		Rotate180:          getEnvAsBoolOrDefault("FRAME_ROTATE_180", true),
		ROIX:               getEnvAsIntOrDefault("ROI_X", 200),
		ROIY:               getEnvAsIntOrDefault("ROI_Y", 370),
		ROIWidth:           getEnvAsIntOrDefault("ROI_WIDTH", 800),
		ROIHeight:          getEnvAsIntOrDefault("ROI_HEIGHT", 90),
		AllowedChars:       getEnvOrDefault("OCR_ALLOWED_CHARS", DefaultAllowedChars),
		OCRLanguage:        getEnvOrDefault("OCR_LANGUAGE", "eng"),
		PageSegMode:        getEnvAsIntOrDefault("OCR_PAGE_SEG_MODE", 4),
		TessdataPrefix:     getEnvOrDefault("TESSDATA_PREFIX", ""),
		DebugImages:        getEnvAsBoolOrDefault("DEBUG_IMAGES", false),
		DebugImageDir:      getEnvOrDefault("DEBUG_IMAGE_DIR", "debug_ocr"),
		LookupBaseURL:      strings.TrimRight(getEnvOrDefault("LOOKUP_BASE_URL", "https://api.scryfall.com"), "/"),
		LookupTimeout:      getEnvAsMillisOrDefault("LOOKUP_TIMEOUT_MS", 8000),
		LookupMaxRetries:   getEnvAsIntOrDefault("LOOKUP_MAX_RETRIES", 0),
		LookupRateLimit:    getEnvAsMillisOrDefault("LOOKUP_RATE_LIMIT_MS", 100),
		LookupUserAgent:    getEnvOrDefault("LOOKUP_USER_AGENT", "cardsort-worker/1.0"),
		RedisURL:           getEnvOrDefault("REDIS_URL", ""),
		QueueName:          getEnvOrDefault("QUEUE_NAME", "cardsort"),
		ResultChannel:      getEnvOrDefault("RESULT_CHANNEL", "cardsort:results"),
		IdentifyTimeout:    getEnvAsMillisOrDefault("IDENTIFY_TIMEOUT_MS", 30000),
		LogDebug:           getEnvAsBoolOrDefault("LOG_DEBUG", false),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.CameraDevice == "" {
		return fmt.Errorf("CAMERA_DEVICE is required")
	}

	if c.ROIX < 0 || c.ROIY < 0 {
		return fmt.Errorf("ROI origin must be non-negative, got (%d,%d)", c.ROIX, c.ROIY)
	}

	if c.ROIWidth <= 0 || c.ROIHeight <= 0 {
		return fmt.Errorf("ROI size must be positive, got %dx%d", c.ROIWidth, c.ROIHeight)
	}

	if err := validateAllowedChars(c.AllowedChars); err != nil {
		return err
	}

	if c.CameraWarmupFrames < 0 {
		return fmt.Errorf("CAMERA_WARMUP_FRAMES must be non-negative, got %d", c.CameraWarmupFrames)
	}

	// Modes 0 (OSD only) and 2 (layout only) never produce text
	if c.PageSegMode < 1 || c.PageSegMode > 13 || c.PageSegMode == 2 {
		return fmt.Errorf("OCR_PAGE_SEG_MODE must be 1 or 3 to 13, got %d", c.PageSegMode)
	}

	if c.LookupBaseURL == "" {
		return fmt.Errorf("LOOKUP_BASE_URL is required")
	}

	if c.LookupTimeout < time.Second || c.LookupTimeout > 60*time.Second {
		return fmt.Errorf("LOOKUP_TIMEOUT_MS must be between 1000 and 60000, got %d", c.LookupTimeout.Milliseconds())
	}

	if c.LookupMaxRetries < 0 || c.LookupMaxRetries > 5 {
		return fmt.Errorf("LOOKUP_MAX_RETRIES must be between 0 and 5, got %d", c.LookupMaxRetries)
	}

	if c.LookupRateLimit < 0 || c.LookupRateLimit > 10*time.Second {
		return fmt.Errorf("LOOKUP_RATE_LIMIT_MS must be between 0 and 10000, got %d", c.LookupRateLimit.Milliseconds())
	}

	if c.IdentifyTimeout < time.Second {
		return fmt.Errorf("IDENTIFY_TIMEOUT_MS must be at least 1000, got %d", c.IdentifyTimeout.Milliseconds())
	}

	return nil
}

// RequireQueue checks the settings only the queue transport needs
func (c *Config) RequireQueue() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.QueueName == "" {
		return fmt.Errorf("QUEUE_NAME is required")
	}
	if c.ResultChannel == "" {
		return fmt.Errorf("RESULT_CHANNEL is required")
	}
	return nil
}

func validateAllowedChars(allowed string) error {
	if allowed == "" {
		return fmt.Errorf("OCR_ALLOWED_CHARS is required")
	}

	var hasDigit, hasLetter bool
	for _, r := range allowed {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLetter(r):
			hasLetter = true
		case r == '\n' || r == '\t' || r == '\r':
			return fmt.Errorf("OCR_ALLOWED_CHARS must not contain control whitespace")
		}
	}
	if !hasDigit || !hasLetter {
		return fmt.Errorf("OCR_ALLOWED_CHARS must contain both digits and letters")
	}
	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsMillisOrDefault reads a millisecond count as a duration
func getEnvAsMillisOrDefault(key string, defaultMillis int) time.Duration {
	return time.Duration(getEnvAsIntOrDefault(key, defaultMillis)) * time.Millisecond
}
