/**
 * Frame acquisition for the card identification pipeline
 *
 * A Camera produces exactly one Frame per Capture call. Bindings acquire the
 * underlying device for the duration of that call only.
 */

package capture

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

// Frame is a captured still, immutable once returned
type Frame struct {
	ID         string
	Device     string
	CapturedAt time.Time
	Image      *image.RGBA
}

// Width returns the frame width in pixels
func (f *Frame) Width() int { return f.Image.Bounds().Dx() }

// Height returns the frame height in pixels
func (f *Frame) Height() int { return f.Image.Bounds().Dy() }

// Camera is the capture capability the pipeline depends on
type Camera interface {
	Capture(ctx context.Context) (*Frame, error)
}

// Options configures device bindings
type Options struct {
	Focus        int
	AutofocusOff bool
	WarmupFrames int
	Settle       time.Duration
}

// StillPrefix selects the still-image binding in a device string
const StillPrefix = "file:"

// Open selects a camera binding from a device string: an integer opens an
// OpenCV device index, "file:<path>" replays a still image.
func Open(device string, opts Options) (Camera, error) {
	device = strings.TrimSpace(device)
	if path, ok := strings.CutPrefix(device, StillPrefix); ok {
		if path == "" {
			return nil, fmt.Errorf("still camera requires a path")
		}
		return NewStillCamera(path), nil
	}

	index, err := strconv.Atoi(device)
	if err != nil {
		return nil, fmt.Errorf("unsupported camera device %q: expected index or %s<path>", device, StillPrefix)
	}
	if index < 0 {
		return nil, fmt.Errorf("camera index must be non-negative, got %d", index)
	}
	return NewOpenCVCamera(index, opts), nil
}

func newFrame(device string, img image.Image) *Frame {
	return &Frame{
		ID:         uuid.NewString(),
		Device:     device,
		CapturedAt: time.Now(),
		Image:      toRGBA(img),
	}
}

// toRGBA copies img into a fresh RGBA buffer with a zero origin
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
