/**
 * Card Identifier for the card sorter
 *
 * Runs one strictly linear identification pass:
 * capture -> crop/grayscale/invert -> constrained OCR -> parse -> lookup.
 * Any stage failure aborts the run with exactly one typed error.
 */

package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/adverant/nexus/cardsort-worker/internal/capture"
	"github.com/adverant/nexus/cardsort-worker/internal/clients"
	"github.com/adverant/nexus/cardsort-worker/internal/errors"
	"github.com/adverant/nexus/cardsort-worker/internal/logging"
	"github.com/google/uuid"
)

// State is the pipeline position of a run
type State string

const (
	StateIdle        State = "idle"
	StateCapturing   State = "capturing"
	StateProcessing  State = "processing"
	StateRecognizing State = "recognizing"
	StateResolving   State = "resolving"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// CardLookup is the card-database capability the pipeline depends on
type CardLookup interface {
	GetCardByCollectorNumber(ctx context.Context, setCode, collectorNumber string) (*clients.ScryfallCard, error)
}

// IdentifierConfig holds pipeline configuration
type IdentifierConfig struct {
	Camera       capture.Camera
	Recognizer   Recognizer
	Lookup       CardLookup
	ROI          Rectangle
	Rotate180    bool
	AllowedChars string
	Snapshots    *SnapshotWriter
	Logger       *logging.Logger
}

// CardIdentifier identifies one card per invocation. It holds no state
// between invocations.
type CardIdentifier struct {
	camera     capture.Camera
	recognizer Recognizer
	lookup     CardLookup
	roi        Rectangle
	preprocess PreprocessOptions
	allowed    CharSet
	snapshots  *SnapshotWriter
	logger     *logging.Logger
}

// NewCardIdentifier creates a new card identifier
func NewCardIdentifier(cfg *IdentifierConfig) (*CardIdentifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Camera == nil {
		return nil, fmt.Errorf("camera is required")
	}
	if cfg.Recognizer == nil {
		return nil, fmt.Errorf("recognizer is required")
	}
	if cfg.Lookup == nil {
		return nil, fmt.Errorf("card lookup is required")
	}
	if cfg.ROI.Width <= 0 || cfg.ROI.Height <= 0 {
		return nil, fmt.Errorf("ROI must have a positive size, got %v", cfg.ROI)
	}

	allowed := NewCharSet(cfg.AllowedChars)
	if allowed.Len() == 0 {
		return nil, fmt.Errorf("allowed characters are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("identify", false)
	}

	snapshots := cfg.Snapshots
	if snapshots == nil {
		snapshots = NewSnapshotWriter("", false, logger)
	}

	return &CardIdentifier{
		camera:     cfg.Camera,
		recognizer: cfg.Recognizer,
		lookup:     cfg.Lookup,
		roi:        cfg.ROI,
		preprocess: PreprocessOptions{Rotate180: cfg.Rotate180},
		allowed:    allowed,
		snapshots:  snapshots,
		logger:     logger,
	}, nil
}

// IdentifyOneCard runs the full pipeline once under a fresh run ID
func (p *CardIdentifier) IdentifyOneCard(ctx context.Context) (*CardIdentity, error) {
	return p.Identify(ctx, uuid.NewString())
}

// Identify runs the full pipeline once under the given run ID. On failure
// the error is an *errors.IdentifyError and no identity is returned.
func (p *CardIdentifier) Identify(ctx context.Context, runID string) (*CardIdentity, error) {
	run := &runState{id: runID, state: StateIdle, logger: p.logger.With("run_id", runID), started: time.Now()}
	run.logger.Info("Starting card identification")

	// Step 1: Capture a frame
	run.enter(StateCapturing)
	frame, err := p.camera.Capture(ctx)
	if err != nil {
		return nil, run.fail(err)
	}
	if frame == nil || frame.Image == nil {
		return nil, run.fail(errors.NewDeviceError(cameraName(frame), "camera returned no frame", nil))
	}
	run.logger.Debug("Frame acquired", "frame_id", frame.ID, "width", frame.Width(), "height", frame.Height())
	p.snapshots.Write(runID, "frame", frame.Image)

	// Step 2: Crop, grayscale and invert
	run.enter(StateProcessing)
	region, err := Preprocess(frame.Image, p.roi, p.preprocess)
	if err != nil {
		return nil, run.fail(err)
	}
	p.snapshots.Write(runID, "roi", region.Image)

	// Step 3: Constrained OCR
	run.enter(StateRecognizing)
	text, err := p.recognizer.Recognize(ctx, region, p.allowed)
	if err != nil {
		return nil, run.fail(err)
	}
	if text.Empty() {
		return nil, run.fail(errors.NewRecognitionError(engineName(text), "OCR returned empty text", nil))
	}
	run.logger.Debug("OCR raw output", "text", fmt.Sprintf("%q", text.Text()), "engine", text.Engine, "duration", text.Duration)

	// Step 4: Parse and resolve
	run.enter(StateResolving)
	locator, err := ParseLocator(text)
	if err != nil {
		return nil, run.failAt(StateResolving, errors.StageParse, err)
	}
	run.logger.Info("Parsed locator", "set", locator.SetCode, "number", locator.CollectorNumber)

	card, err := p.lookup.GetCardByCollectorNumber(ctx, locator.SetCode, locator.CollectorNumber)
	if err != nil {
		return nil, run.fail(err)
	}
	if card == nil || card.Name == "" {
		return nil, run.fail(errors.NewTransportError("", 1, fmt.Errorf("lookup returned no card name")))
	}

	identity := &CardIdentity{
		Name:            card.Name,
		SetCode:         locator.SetCode,
		SetName:         card.SetName,
		CollectorNumber: locator.CollectorNumber,
		Rarity:          card.Rarity,
		Lang:            card.Lang,
		TypeLine:        card.TypeLine,
		ManaCost:        card.ManaCost,
		ScryfallURI:     card.ScryfallURI,
		CardID:          card.ID,
		RunID:           runID,
		RecognizedText:  text.Text(),
	}

	run.enter(StateDone)
	run.logger.Info("Card identified", "name", identity.Name, "set", identity.SetCode,
		"number", identity.CollectorNumber, "duration", time.Since(run.started))
	return identity, nil
}

func cameraName(f *capture.Frame) string {
	if f == nil || f.Device == "" {
		return "unknown"
	}
	return f.Device
}

func engineName(t *RecognizedText) string {
	if t == nil || t.Engine == "" {
		return "unknown"
	}
	return t.Engine
}

type runState struct {
	id      string
	state   State
	logger  *logging.Logger
	started time.Time
}

func (r *runState) enter(next State) {
	r.logger.Debug("State transition", "from", r.state, "to", next)
	r.state = next
}

// fail classifies err by the current state and terminates the run
func (r *runState) fail(err error) error {
	return r.failAt(r.state, stageFor(r.state), err)
}

func (r *runState) failAt(state State, stage errors.Stage, err error) error {
	ie, ok := errors.As(err)
	if !ok {
		ie = classify(stage, err)
	}
	ie.RunID = r.id

	r.logger.Error("Card identification failed", "state", state, "stage", ie.Stage,
		"code", ie.Code, "reason", ie.Message, "duration", time.Since(r.started))
	r.state = StateFailed
	return ie
}

func stageFor(s State) errors.Stage {
	switch s {
	case StateCapturing:
		return errors.StageCapture
	case StateProcessing:
		return errors.StagePreprocess
	case StateRecognizing:
		return errors.StageRecognize
	default:
		return errors.StageLookup
	}
}

// classify wraps an untyped error from a capability binding
func classify(stage errors.Stage, err error) *errors.IdentifyError {
	switch stage {
	case errors.StageCapture:
		return errors.NewDeviceError("unknown", "capture failed", err)
	case errors.StagePreprocess:
		return errors.NewInvalidRegionError(Rectangle{}, Rectangle{})
	case errors.StageRecognize:
		return errors.NewRecognitionError("unknown", "OCR engine failed", err)
	case errors.StageParse:
		return errors.NewParseError("", err.Error())
	default:
		return errors.NewTransportError("", 1, err)
	}
}
