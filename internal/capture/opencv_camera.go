package capture

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/adverant/nexus/cardsort-worker/internal/errors"
	"github.com/adverant/nexus/cardsort-worker/internal/logging"
	"gocv.io/x/gocv"
)

// OpenCVCamera captures from a USB or Pi camera through OpenCV
type OpenCVCamera struct {
	index  int
	opts   Options
	logger *logging.Logger
	mu     sync.Mutex // One capture per device at a time
}

// NewOpenCVCamera creates a camera bound to an OpenCV device index
func NewOpenCVCamera(index int, opts Options) *OpenCVCamera {
	return &OpenCVCamera{
		index:  index,
		opts:   opts,
		logger: logging.NewLogger("camera", false),
	}
}

// SetLogger replaces the camera logger
func (c *OpenCVCamera) SetLogger(l *logging.Logger) {
	c.logger = l
}

func (c *OpenCVCamera) device() string {
	return fmt.Sprintf("opencv:%d", c.index)
}

// Capture opens the device, grabs one settled frame and releases the device
func (c *OpenCVCamera) Capture(ctx context.Context) (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, errors.NewDeviceError(c.device(), "capture cancelled before opening device", err)
	}

	c.logger.Debug("Opening camera", "device", c.device(), "autofocus_off", c.opts.AutofocusOff, "focus", c.opts.Focus)
	vc, err := gocv.OpenVideoCapture(c.index)
	if err != nil {
		return nil, errors.NewDeviceError(c.device(), "cannot open camera", err)
	}
	defer vc.Close()

	if !vc.IsOpened() {
		return nil, errors.NewDeviceError(c.device(), "camera did not open", nil)
	}

	if c.opts.AutofocusOff {
		vc.Set(gocv.VideoCaptureAutoFocus, 0)
		if vc.Get(gocv.VideoCaptureAutoFocus) != 0 {
			c.logger.Warn("Camera does not expose autofocus control", "device", c.device())
		}
	}

	vc.Set(gocv.VideoCaptureFocus, float64(c.opts.Focus))
	if got := vc.Get(gocv.VideoCaptureFocus); math.Abs(got-float64(c.opts.Focus)) > 0.5 {
		c.logger.Warn("Camera ignored focus value", "device", c.device(), "requested", c.opts.Focus, "reported", got)
	}

	mat := gocv.NewMat()
	defer mat.Close()

	// Warm-up frames let exposure and white balance settle
	for i := 0; i < c.opts.WarmupFrames; i++ {
		if !vc.Read(&mat) {
			c.logger.Warn("Warm-up frame read failed, continuing", "device", c.device(), "frame", i+1)
			break
		}
	}

	if c.opts.Settle > 0 {
		select {
		case <-time.After(c.opts.Settle):
		case <-ctx.Done():
			return nil, errors.NewDeviceError(c.device(), "capture cancelled while lens settled", ctx.Err())
		}
	}

	if !vc.Read(&mat) {
		return nil, errors.NewDeviceError(c.device(), "could not read a frame after warm-up", nil)
	}
	if mat.Empty() {
		return nil, errors.NewDeviceError(c.device(), "camera returned an empty frame", nil)
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, errors.NewDeviceError(c.device(), "cannot convert frame", err)
	}

	frame := newFrame(c.device(), img)
	c.logger.Debug("Frame captured", "device", c.device(), "frame_id", frame.ID, "width", frame.Width(), "height", frame.Height())
	return frame, nil
}
