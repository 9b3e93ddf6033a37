package imaging

import (
	"bytes"
	"encoding/base64"
	"image/color"
	"image/png"
	"testing"

	"github.com/ironsheep/omr-grader-mcp/internal/omr"
)

func TestCropZone(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	result, err := CropZone(img, omr.Rect{X: 10, Y: 20, Width: 50, Height: 40}, 1.0)
	if err != nil {
		t.Fatalf("CropZone failed: %v", err)
	}

	if result.Width != 50 || result.Height != 40 {
		t.Errorf("dimensions: got %dx%d, want 50x40", result.Width, result.Height)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}

	decoded, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(decoded)); err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}
}

func TestCropZone_Scale(t *testing.T) {
	img := createInMemoryImage(100, 100, color.White)

	tests := []struct {
		name          string
		scale         float64
		wantW, wantH  int
	}{
		{"double", 2.0, 100, 60},
		{"half", 0.5, 25, 15},
		{"zero means unscaled", 0, 50, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := CropZone(img, omr.Rect{X: 0, Y: 0, Width: 50, Height: 30}, tt.scale)
			if err != nil {
				t.Fatalf("CropZone failed: %v", err)
			}
			if result.Width != tt.wantW || result.Height != tt.wantH {
				t.Errorf("dimensions: got %dx%d, want %dx%d", result.Width, result.Height, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestCropZone_ClipsToImage(t *testing.T) {
	img := createInMemoryImage(100, 100, color.White)

	result, err := CropZone(img, omr.Rect{X: 80, Y: 80, Width: 50, Height: 50}, 1.0)
	if err != nil {
		t.Fatalf("CropZone failed: %v", err)
	}
	if result.Width != 20 || result.Height != 20 {
		t.Errorf("dimensions: got %dx%d, want 20x20", result.Width, result.Height)
	}
}

func TestCropZone_OutsideImage(t *testing.T) {
	img := createInMemoryImage(100, 100, color.White)

	if _, err := CropZone(img, omr.Rect{X: 200, Y: 200, Width: 10, Height: 10}, 1.0); err == nil {
		t.Error("expected error for zone outside image")
	}
}
