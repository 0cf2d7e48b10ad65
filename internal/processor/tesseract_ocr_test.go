package processor

import (
	"context"
	"image"
	"testing"

	"github.com/adverant/nexus/cardsort-worker/internal/errors"
	"github.com/otiai10/gosseract/v2"
)

func TestNewTesseractOCRPageSegMode(t *testing.T) {
	cases := map[int]gosseract.PageSegMode{
		0: gosseract.PSM_SINGLE_COLUMN,
		4: gosseract.PSM_SINGLE_COLUMN,
		7: gosseract.PSM_SINGLE_LINE,
	}
	for in, want := range cases {
		ocr, err := NewTesseractOCR(&TesseractConfig{PageSegMode: in})
		if err != nil {
			t.Fatalf("NewTesseractOCR(psm=%d) error = %v", in, err)
		}
		if ocr.pageSegMode != want {
			t.Errorf("psm=%d: got %d, want %d", in, ocr.pageSegMode, want)
		}
		if ocr.language != "eng" {
			t.Errorf("psm=%d: language = %q", in, ocr.language)
		}
	}

	for _, in := range []int{2, -1, 14} {
		if _, err := NewTesseractOCR(&TesseractConfig{PageSegMode: in}); err == nil {
			t.Errorf("NewTesseractOCR(psm=%d) expected an error", in)
		}
	}
}

func TestTesseractRecognizeRejectsBadInput(t *testing.T) {
	ocr, err := NewTesseractOCR(&TesseractConfig{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ocr.Recognize(context.Background(), nil, NewCharSet("A1")); !errors.HasCode(err, errors.ErrorRecognition) {
		t.Errorf("nil region: expected RECOGNITION_FAILED, got %v", err)
	}
	region := &ProcessedRegion{Image: image.NewGray(image.Rect(0, 0, 4, 4))}
	if _, err := ocr.Recognize(context.Background(), region, NewCharSet("")); !errors.HasCode(err, errors.ErrorRecognition) {
		t.Errorf("empty allow-list: expected RECOGNITION_FAILED, got %v", err)
	}
}
