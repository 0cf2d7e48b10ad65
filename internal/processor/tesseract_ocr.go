/**
 * Tesseract OCR - allow-list constrained recognition of the collector line
 *
 * Narrowing the recognizer alphabet to set-code and collector-number
 * characters is what makes Tesseract usable on this tiny, low-contrast text.
 */

package processor

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"time"

	"github.com/adverant/nexus/cardsort-worker/internal/errors"
	"github.com/otiai10/gosseract/v2"
)

// Recognizer is the OCR capability the pipeline depends on
type Recognizer interface {
	Recognize(ctx context.Context, region *ProcessedRegion, allowed CharSet) (*RecognizedText, error)
}

// TesseractOCR handles constrained OCR using Tesseract
type TesseractOCR struct {
	language       string
	pageSegMode    gosseract.PageSegMode
	tessdataPrefix string
	clientFactory  func() *gosseract.Client
}

// TesseractConfig holds Tesseract configuration
type TesseractConfig struct {
	Language       string
	PageSegMode    int // 0 selects PSM_SINGLE_COLUMN; 2 is rejected
	TessdataPrefix string
}

// NewTesseractOCR creates a new Tesseract OCR instance
func NewTesseractOCR(cfg *TesseractConfig) (*TesseractOCR, error) {
	if cfg == nil {
		return nil, fmt.Errorf("tesseract config is required")
	}

	language := cfg.Language
	if language == "" {
		language = "eng"
	}

	psm := gosseract.PageSegMode(cfg.PageSegMode)
	switch {
	case cfg.PageSegMode == 0:
		psm = gosseract.PSM_SINGLE_COLUMN
	case cfg.PageSegMode == int(gosseract.PSM_AUTO_ONLY), cfg.PageSegMode < 0, cfg.PageSegMode > 13:
		return nil, fmt.Errorf("page segmentation mode %d does not recognize text", cfg.PageSegMode)
	}

	return &TesseractOCR{
		language:       language,
		pageSegMode:    psm,
		tessdataPrefix: cfg.TessdataPrefix,
		clientFactory:  gosseract.NewClient,
	}, nil
}

// Name identifies the engine in results and errors
func (t *TesseractOCR) Name() string { return "tesseract" }

// Recognize runs Tesseract over the region with its alphabet restricted to allowed
func (t *TesseractOCR) Recognize(ctx context.Context, region *ProcessedRegion, allowed CharSet) (*RecognizedText, error) {
	startTime := time.Now()

	if region == nil || region.Image == nil {
		return nil, errors.NewRecognitionError(t.Name(), "no region to recognize", nil)
	}
	if allowed.Len() == 0 {
		return nil, errors.NewRecognitionError(t.Name(), "empty character allow-list", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewRecognitionError(t.Name(), "recognition cancelled", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, region.Image); err != nil {
		return nil, errors.NewRecognitionError(t.Name(), "cannot encode region", err)
	}

	client := t.clientFactory()
	defer client.Close()

	if err := t.configure(client, allowed); err != nil {
		return nil, errors.NewRecognitionError(t.Name(), "cannot configure engine", err)
	}

	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, errors.NewRecognitionError(t.Name(), "failed to set image", err)
	}

	raw, err := client.Text()
	if err != nil {
		return nil, errors.NewRecognitionError(t.Name(), "tesseract OCR failed", err)
	}

	text := NewRecognizedText(t.Name(), raw, allowed, time.Since(startTime))
	if text.Empty() {
		return nil, errors.NewRecognitionError(t.Name(), "OCR returned empty text", nil)
	}
	return text, nil
}

func (t *TesseractOCR) configure(client *gosseract.Client, allowed CharSet) error {
	if t.tessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.tessdataPrefix); err != nil {
			return fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(t.language); err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	if err := client.SetPageSegMode(t.pageSegMode); err != nil {
		return fmt.Errorf("set page segmentation mode: %w", err)
	}
	if err := client.SetWhitelist(allowed.String()); err != nil {
		return fmt.Errorf("set whitelist: %w", err)
	}
	return nil
}
