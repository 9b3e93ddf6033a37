// Package detector is the boundary to the external mark detector.
//
// The grading core never runs a model itself. A MarkDetector hands it the
// detections for one sheet. The implementations here read detections a
// model wrote next to the image, in either a JSON list or YOLO label format,
// or serve a fixed list supplied by the caller.
package detector

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/ironsheep/omr-grader-mcp/internal/config"
	"github.com/ironsheep/omr-grader-mcp/internal/omr"
)

// MarkDetector returns the marks found on one sheet. Implementations must
// be safe for concurrent use. Errors should wrap omr.ErrDetector.
type MarkDetector interface {
	Detect(ctx context.Context, path string, img image.Image) ([]omr.Detection, error)
}

// Func adapts a function to MarkDetector.
type Func func(ctx context.Context, path string, img image.Image) ([]omr.Detection, error)

func (f Func) Detect(ctx context.Context, path string, img image.Image) ([]omr.Detection, error) {
	return f(ctx, path, img)
}

// Static returns the same detections for every sheet.
type Static []omr.Detection

func (s Static) Detect(ctx context.Context, _ string, _ image.Image) ([]omr.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", omr.ErrDetector, err)
	}
	return append([]omr.Detection(nil), s...), nil
}

// New returns the sidecar detector for the configured format.
func New(cfg config.DetectorConfig) (MarkDetector, error) {
	switch cfg.Format {
	case config.SidecarJSON:
		return JSONSidecar{}, nil
	case config.SidecarYOLO:
		return YOLOSidecar{}, nil
	default:
		return nil, fmt.Errorf("unknown detector format %q", cfg.Format)
	}
}

// sidecarPath swaps the image extension for suffix.
func sidecarPath(imagePath, suffix string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + suffix
}
