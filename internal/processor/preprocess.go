package processor

import (
	"image"

	"github.com/adverant/nexus/cardsort-worker/internal/errors"
)

// PreprocessOptions controls frame orientation before cropping
type PreprocessOptions struct {
	// Rotate180 turns the frame upside-down first; the ROI is then given in
	// rotated coordinates.
	Rotate180 bool
}

// Preprocess crops roi out of frame, converts it to grayscale and inverts
// it. Identical inputs always produce identical pixels. Frames are treated
// as opaque; alpha is ignored.
func Preprocess(frame *image.RGBA, roi Rectangle, opts PreprocessOptions) (*ProcessedRegion, error) {
	if frame == nil {
		return nil, errors.NewInvalidRegionError(roi, image.Rectangle{})
	}

	src := frame
	if opts.Rotate180 {
		src = rotate180(frame)
	}

	bounds := src.Bounds()
	r := roi.Rect(bounds.Min)
	if roi.Width <= 0 || roi.Height <= 0 || !r.In(bounds) {
		return nil, errors.NewInvalidRegionError(roi, bounds)
	}

	out := image.NewGray(image.Rect(0, 0, roi.Width, roi.Height))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		srcOff := src.PixOffset(r.Min.X, y)
		dstOff := (y - r.Min.Y) * out.Stride
		for x := 0; x < roi.Width; x++ {
			i := srcOff + x*4
			out.Pix[dstOff+x] = 255 - luma(src.Pix[i], src.Pix[i+1], src.Pix[i+2])
		}
	}

	return &ProcessedRegion{Image: out, ROI: roi}, nil
}

// luma is the ITU-R BT.601 weighting in integer arithmetic, rounded
func luma(r, g, b uint8) uint8 {
	return uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(b) + 500) / 1000)
}

func rotate180(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		srcRow := src.PixOffset(b.Min.X, b.Min.Y+y)
		dstRow := (h - 1 - y) * dst.Stride
		for x := 0; x < w; x++ {
			copy(dst.Pix[dstRow+(w-1-x)*4:dstRow+(w-x)*4], src.Pix[srcRow+x*4:srcRow+x*4+4])
		}
	}
	return dst
}
