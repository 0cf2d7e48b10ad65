package queue

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/adverant/nexus/cardsort-worker/internal/errors"
	"github.com/adverant/nexus/cardsort-worker/internal/processor"
)

func TestNewResultEvent(t *testing.T) {
	card := &processor.CardIdentity{Name: "Lightning Bolt", SetCode: "MH3", CollectorNumber: "102", RunID: "run-1"}

	ok := NewResultEvent("req-1", "run-1", card, nil, 1500*time.Millisecond)
	if ok.Event != EventIdentified || ok.Status != "done" || ok.Error != nil || ok.DurationMs != 1500 {
		t.Fatalf("unexpected success event %+v", ok)
	}

	ie := errors.NewRecognitionError("tesseract", "OCR returned empty text", nil)
	ie.RunID = "run-2"
	failed := NewResultEvent("req-2", "run-2", nil, ie, 0)
	if failed.Event != EventFailed || failed.Card != nil {
		t.Fatalf("unexpected failure event %+v", failed)
	}
	if failed.Error["error_code"] != "RECOGNITION_FAILED" || failed.Error["run_id"] != "run-2" {
		t.Fatalf("unexpected error map %+v", failed.Error)
	}

	plain := NewResultEvent("req-3", "run-3", nil, fmt.Errorf("boom"), 0)
	if plain.Error["message"] != "boom" {
		t.Fatalf("untyped errors should keep their message: %+v", plain.Error)
	}

	empty := NewResultEvent("req-4", "run-4", nil, nil, 0)
	if !empty.Failed() {
		t.Fatal("an event without a card must be a failure")
	}
}

func TestResultEventJSON(t *testing.T) {
	card := &processor.CardIdentity{Name: "Lightning Bolt", SetCode: "MH3", CollectorNumber: "102", RunID: "run-1"}
	data, err := json.Marshal(NewResultEvent("req-1", "run-1", card, nil, time.Second))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	ev, err := decodeResultEvent(string(data))
	if err != nil {
		t.Fatalf("decodeResultEvent() error = %v", err)
	}
	if ev.RequestID != "req-1" || ev.Card == nil || ev.Card.Name != "Lightning Bolt" {
		t.Fatalf("unexpected event %+v", ev)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["error"]; ok {
		t.Fatal("success events should omit error")
	}

	if _, err := decodeResultEvent("not json"); err == nil {
		t.Fatal("expected an error for malformed events")
	}
}

func TestNewResultPublisherValidation(t *testing.T) {
	if _, err := NewResultPublisher("redis://localhost:6379", "", nil); err == nil {
		t.Fatal("expected an error for an empty channel")
	}
	if _, err := NewResultPublisher("http://nope", "cardsort:results", nil); err == nil {
		t.Fatal("expected an error for a non-redis URL")
	}
}
