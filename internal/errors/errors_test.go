package errors

import (
	stderrors "errors"
	"fmt"
	"image"
	"strings"
	"testing"
)

func TestCodeStages(t *testing.T) {
	cases := map[ErrorCode]Stage{
		ErrorDevice:        StageCapture,
		ErrorInvalidRegion: StagePreprocess,
		ErrorRecognition:   StageRecognize,
		ErrorParse:         StageParse,
		ErrorNotFound:      StageLookup,
		ErrorTransport:     StageLookup,
		ErrorService:       StageLookup,
	}
	for code, want := range cases {
		if got := code.Stage(); got != want {
			t.Errorf("%s.Stage() = %s, want %s", code, got, want)
		}
	}
}

func TestErrorMessageNamesStage(t *testing.T) {
	err := NewRecognitionError("tesseract", "OCR returned empty text", nil)
	if got := err.Error(); got != "RECOGNITION_FAILED: recognize: OCR returned empty text" {
		t.Fatalf("unexpected message: %q", got)
	}

	cause := fmt.Errorf("dial tcp: connection refused")
	terr := NewTransportError("http://example/cards/mh3/102", 1, cause)
	if !strings.Contains(terr.Error(), "caused by: dial tcp") {
		t.Fatalf("expected cause in message, got %q", terr.Error())
	}
	if !stderrors.Is(terr, cause) {
		t.Fatalf("expected Unwrap to expose cause")
	}
}

func TestCodeOfThroughWrapping(t *testing.T) {
	base := NewParseError("XX12", `set code "XX" has only 2 letters`)
	wrapped := fmt.Errorf("identify: %w", base)

	if got := CodeOf(wrapped); got != ErrorParse {
		t.Fatalf("CodeOf() = %q, want %q", got, ErrorParse)
	}
	if !HasCode(wrapped, ErrorParse) {
		t.Fatalf("HasCode() = false")
	}
	if HasCode(nil, ErrorParse) {
		t.Fatalf("HasCode(nil) = true")
	}
	if got := CodeOf(fmt.Errorf("plain")); got != "" {
		t.Fatalf("CodeOf(plain) = %q", got)
	}
	ie, ok := As(wrapped)
	if !ok || ie != base {
		t.Fatalf("As() did not return the wrapped IdentifyError")
	}
}

func TestInvalidRegionDetails(t *testing.T) {
	err := NewInvalidRegionError(image.Rect(10, 10, 50, 50), image.Rect(0, 0, 40, 40))
	m := err.ToMap()
	if m["roi"] != "(10,10)-(50,50)" || m["bounds"] != "(0,0)-(40,40)" {
		t.Fatalf("unexpected details: %+v", m)
	}
	if m["stage"] != "preprocess" {
		t.Fatalf("unexpected stage: %v", m["stage"])
	}
}

func TestToMap(t *testing.T) {
	err := NewServiceError("http://example/cards/mh3/102", 503, "maintenance")
	err.RunID = "run-1"
	err.Cause = fmt.Errorf("upstream")

	m := err.ToMap()
	if m["error_code"] != "SERVICE_FAILED" {
		t.Errorf("error_code = %v", m["error_code"])
	}
	if m["status_code"] != 503 {
		t.Errorf("status_code = %v", m["status_code"])
	}
	if m["run_id"] != "run-1" {
		t.Errorf("run_id = %v", m["run_id"])
	}
	if m["cause"] != "upstream" {
		t.Errorf("cause = %v", m["cause"])
	}
	if !strings.Contains(m["message"].(string), "maintenance") {
		t.Errorf("message = %v", m["message"])
	}
}

func TestNotFoundMessage(t *testing.T) {
	err := NewNotFoundError("ZZZ", "999", "")
	if err.Message != "no card for ZZZ #999" {
		t.Fatalf("unexpected message %q", err.Message)
	}
}
