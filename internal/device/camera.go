package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"

	"golang.org/x/image/draw"
)

// ErrCameraUnavailable means no frame could be captured. Like location
// errors it is a settings/permission problem for the operator.
var ErrCameraUnavailable = errors.New("camera unavailable")

// Camera produces a single JPEG frame for face verification.
type Camera interface {
	Capture(ctx context.Context) ([]byte, error)
}

// CaptureFunc adapts a function to the Camera interface.
type CaptureFunc func(ctx context.Context) ([]byte, error)

func (f CaptureFunc) Capture(ctx context.Context) ([]byte, error) {
	return f(ctx)
}

// FileCamera reads a frame from a fixed path, where an external capture
// process (or a developer) drops the latest snapshot.
type FileCamera struct {
	Path string
}

func (c FileCamera) Capture(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCameraUnavailable
		}
		return nil, fmt.Errorf("read camera frame: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrCameraUnavailable
	}
	return data, nil
}

// ShrinkJPEG downscales a captured frame so its longest side is at most
// maxDim pixels and re-encodes it at the given JPEG quality. Uploading full
// sensor resolution wastes bandwidth and the face matcher does not need it.
func ShrinkJPEG(data []byte, maxDim, quality int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width > maxDim || height > maxDim {
		scale := float64(maxDim) / float64(width)
		if height > width {
			scale = float64(maxDim) / float64(height)
		}
		dst := image.NewRGBA(image.Rect(0, 0,
			int(float64(width)*scale), int(float64(height)*scale)))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		src = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
