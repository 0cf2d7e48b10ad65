package capture

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/adverant/nexus/cardsort-worker/internal/errors"
)

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "card.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func TestOpenSelectsBinding(t *testing.T) {
	cam, err := Open("file:/tmp/x.png", Options{})
	if err != nil {
		t.Fatalf("Open(file) error = %v", err)
	}
	if _, ok := cam.(*StillCamera); !ok {
		t.Fatalf("expected *StillCamera, got %T", cam)
	}

	cam, err = Open("1", Options{Focus: 150})
	if err != nil {
		t.Fatalf("Open(index) error = %v", err)
	}
	oc, ok := cam.(*OpenCVCamera)
	if !ok {
		t.Fatalf("expected *OpenCVCamera, got %T", cam)
	}
	if oc.index != 1 || oc.opts.Focus != 150 {
		t.Fatalf("unexpected camera settings: %+v", oc)
	}
}

func TestOpenRejectsUnknownDevice(t *testing.T) {
	for _, dev := range []string{"usb", "-1", "file:"} {
		if _, err := Open(dev, Options{}); err == nil {
			t.Errorf("Open(%q) expected error", dev)
		}
	}
}

func TestStillCameraCapture(t *testing.T) {
	src := image.NewNRGBA(image.Rect(5, 5, 15, 12))
	src.Set(5, 5, color.NRGBA{R: 200, G: 10, B: 30, A: 255})
	path := writePNG(t, src)

	frame, err := NewStillCamera(path).Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if frame.Width() != 10 || frame.Height() != 7 {
		t.Fatalf("unexpected size %dx%d", frame.Width(), frame.Height())
	}
	if frame.Image.Bounds().Min != (image.Point{}) {
		t.Fatalf("frame origin should be zero, got %v", frame.Image.Bounds().Min)
	}
	if got := frame.Image.RGBAAt(0, 0); got != (color.RGBA{R: 200, G: 10, B: 30, A: 255}) {
		t.Fatalf("unexpected pixel %+v", got)
	}
	if frame.ID == "" || frame.Device != "file:"+path {
		t.Fatalf("unexpected metadata: id=%q device=%q", frame.ID, frame.Device)
	}
}

func TestStillCameraMissingFile(t *testing.T) {
	_, err := NewStillCamera(filepath.Join(t.TempDir(), "absent.png")).Capture(context.Background())
	if !errors.HasCode(err, errors.ErrorDevice) {
		t.Fatalf("expected DEVICE_ERROR, got %v", err)
	}
}

func TestStillCameraUndecodable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.png")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := NewStillCamera(path).Capture(context.Background())
	if !errors.HasCode(err, errors.ErrorDevice) {
		t.Fatalf("expected DEVICE_ERROR, got %v", err)
	}
}

func TestStillCameraCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewStillCamera("unused.png").Capture(ctx)
	if !errors.HasCode(err, errors.ErrorDevice) {
		t.Fatalf("expected DEVICE_ERROR, got %v", err)
	}
}
