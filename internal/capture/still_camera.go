package capture

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/adverant/nexus/cardsort-worker/internal/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// StillCamera replays an image file as if it were captured, for bench runs
// without hardware.
type StillCamera struct {
	path string
}

// NewStillCamera creates a camera that decodes path on every capture
func NewStillCamera(path string) *StillCamera {
	return &StillCamera{path: path}
}

// Capture decodes the configured image file
func (c *StillCamera) Capture(ctx context.Context) (*Frame, error) {
	device := StillPrefix + c.path

	if err := ctx.Err(); err != nil {
		return nil, errors.NewDeviceError(device, "capture cancelled before opening file", err)
	}

	f, err := os.Open(c.path)
	if err != nil {
		return nil, errors.NewDeviceError(device, "cannot open still image", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.NewDeviceError(device, "cannot decode still image", err)
	}

	return newFrame(device, img), nil
}
