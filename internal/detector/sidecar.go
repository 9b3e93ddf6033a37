package detector

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"

	"github.com/ironsheep/omr-grader-mcp/internal/omr"
)

const (
	JSONSuffix = ".detections.json"
	YOLOSuffix = ".txt"
)

// JSONSidecar reads <image base>.detections.json, a list of
//
//	{"box": [x1, y1, x2, y2], "confidence": 0.93, "class_id": 0}
//
// in absolute pixel coordinates.
type JSONSidecar struct{}

type jsonRecord struct {
	Box        []float64 `json:"box"`
	Confidence *float64  `json:"confidence"`
	ClassID    int       `json:"class_id"`
}

func (JSONSidecar) Detect(ctx context.Context, path string, _ image.Image) ([]omr.Detection, error) {
	data, err := readSidecar(ctx, sidecarPath(path, JSONSuffix))
	if err != nil {
		return nil, err
	}
	return ParseJSON(data)
}

// ParseJSON decodes a JSON detection list. Records must carry a four-value
// box and a confidence; their values are not range-checked here.
func ParseJSON(data []byte) ([]omr.Detection, error) {
	var records []jsonRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: failed to parse detections: %w", omr.ErrDetector, err)
	}
	dets := make([]omr.Detection, len(records))
	for i, r := range records {
		if len(r.Box) != 4 {
			return nil, fmt.Errorf("%w: detection %d: box needs 4 values, got %d", omr.ErrDetector, i, len(r.Box))
		}
		if r.Confidence == nil {
			return nil, fmt.Errorf("%w: detection %d: missing confidence", omr.ErrDetector, i)
		}
		dets[i] = omr.Detection{
			Box:        omr.Box{X1: r.Box[0], Y1: r.Box[1], X2: r.Box[2], Y2: r.Box[3]},
			Confidence: *r.Confidence,
			ClassID:    r.ClassID,
		}
	}
	return dets, nil
}

// YOLOSidecar reads <image base>.txt in YOLO label format, one mark per line:
//
//	class x_center y_center width height [confidence]
//
// Coordinates are fractions of the image size. A missing confidence is 1.
type YOLOSidecar struct{}

func (YOLOSidecar) Detect(ctx context.Context, path string, img image.Image) ([]omr.Detection, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: yolo labels need the image size", omr.ErrDetector)
	}
	data, err := readSidecar(ctx, sidecarPath(path, YOLOSuffix))
	if err != nil {
		return nil, err
	}
	return ParseYOLO(data, img.Bounds())
}

// ParseYOLO decodes YOLO label lines against the given image bounds. Blank
// lines and lines starting with '#' are skipped.
func ParseYOLO(data []byte, bounds image.Rectangle) ([]omr.Detection, error) {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	ox := float64(bounds.Min.X)
	oy := float64(bounds.Min.Y)

	var dets []omr.Detection
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 5 && len(fields) != 6 {
			return nil, fmt.Errorf("%w: line %d: want 5 or 6 fields, got %d", omr.ErrDetector, line, len(fields))
		}
		class, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad class %q", omr.ErrDetector, line, fields[0])
		}
		vals := make([]float64, len(fields)-1)
		for i, f := range fields[1:] {
			if vals[i], err = strconv.ParseFloat(f, 64); err != nil {
				return nil, fmt.Errorf("%w: line %d: bad number %q", omr.ErrDetector, line, f)
			}
		}
		conf := 1.0
		if len(vals) == 5 {
			conf = vals[4]
		}
		xc, yc, bw, bh := vals[0]*w, vals[1]*h, vals[2]*w, vals[3]*h
		dets = append(dets, omr.Detection{
			Box: omr.Box{
				X1: ox + xc - bw/2,
				Y1: oy + yc - bh/2,
				X2: ox + xc + bw/2,
				Y2: oy + yc + bh/2,
			},
			Confidence: conf,
			ClassID:    class,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", omr.ErrDetector, err)
	}
	return dets, nil
}

func readSidecar(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", omr.ErrDetector, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", omr.ErrDetector, err)
	}
	return data, nil
}
