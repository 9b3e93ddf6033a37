// Package overlay draws a debug picture of a graded sheet: zone outlines,
// the cell grid, detection boxes colored by option, and a status badge per
// question. It only reads grading results and never feeds back into them.
package overlay

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/omr-grader-mcp/internal/grading"
	"github.com/ironsheep/omr-grader-mcp/internal/omr"
)

// Mark is a detection box with the label it was read as.
type Mark struct {
	Box   omr.Box
	Label omr.Option
}

// Input is what gets drawn.
type Input struct {
	Zones    []omr.Zone
	Cells    []omr.Cell
	Fallback bool // zones came from the template, not the image
	Options  []omr.Option
	Marks    []Mark
	Details  []grading.Detail
}

// Options control rendering.
type Options struct {
	// GridColor is a "#rrggbb" hex color for cell lines. Empty or invalid
	// values use the default.
	GridColor string

	// Badges draws a status label on each question row.
	Badges bool
}

var (
	detectedZone = mustHex("#00a000")
	fallbackZone = mustHex("#ff8c00")
	defaultGrid  = mustHex("#4682b4")
	invalidMark  = mustHex("#808080")

	statusColors = map[grading.Status]colorful.Color{
		grading.StatusCorrect:    mustHex("#2e8b57"),
		grading.StatusWrong:      mustHex("#dc143c"),
		grading.StatusUnanswered: mustHex("#696969"),
		grading.StatusAmbiguous:  mustHex("#9932cc"),
	}

	statusGlyph = map[grading.Status]string{
		grading.StatusCorrect:    "OK",
		grading.StatusWrong:      "X",
		grading.StatusUnanswered: "-",
		grading.StatusAmbiguous:  "??",
	}
)

// Render draws in over a copy of img.
func Render(img image.Image, in Input, opts Options) *image.NRGBA {
	canvas := imaging.Clone(img)
	// Clone rebases to the origin; shift everything else to match.
	off := img.Bounds().Min

	grid := defaultGrid
	if opts.GridColor != "" {
		if c, err := ParseColor(opts.GridColor); err == nil {
			grid = c
		}
	}

	for _, c := range in.Cells {
		strokeRect(canvas, rectOf(c.X1, c.Y1, c.X2, c.Y2, off), grid, 1)
	}

	zoneColor := detectedZone
	if in.Fallback {
		zoneColor = fallbackZone
	}
	for _, z := range in.Zones {
		strokeRect(canvas, z.Rect.Image().Sub(off), zoneColor, 2)
	}

	palette := OptionPalette(in.Options)
	for _, m := range in.Marks {
		c, ok := palette[m.Label]
		if !ok {
			c = invalidMark
		}
		strokeRect(canvas, rectOf(m.Box.X1, m.Box.Y1, m.Box.X2, m.Box.Y2, off), c, 2)
	}

	if opts.Badges {
		rows := make(map[int]omr.Cell)
		for _, c := range in.Cells {
			if c.Column == 0 {
				rows[c.Question] = c
			}
		}
		for _, d := range in.Details {
			row, ok := rows[d.Question]
			if !ok {
				continue
			}
			label := fmt.Sprintf("%d %s", d.Question, statusGlyph[d.Status])
			x := int(math.Floor(row.X1)) - off.X + 2
			y := int(math.Floor(row.Y1)) - off.Y + 2
			drawBadge(canvas, x, y, label, statusColors[d.Status])
		}
	}
	return canvas
}

// OptionPalette spreads one hue per option around the color wheel.
func OptionPalette(options []omr.Option) map[omr.Option]colorful.Color {
	p := make(map[omr.Option]colorful.Color, len(options))
	for i, o := range options {
		p[o] = colorful.Hsv(360*float64(i)/float64(len(options)), 0.85, 0.9)
	}
	return p
}

// ParseColor parses "#rrggbb" or "#rgb".
func ParseColor(hex string) (colorful.Color, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	return c, nil
}

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

func rectOf(x1, y1, x2, y2 float64, off image.Point) image.Rectangle {
	return image.Rect(
		int(math.Floor(x1))-off.X, int(math.Floor(y1))-off.Y,
		int(math.Ceil(x2))-off.X, int(math.Ceil(y2))-off.Y,
	)
}

// strokeRect draws the outline of r, width pixels thick, inside r.
func strokeRect(dst *image.NRGBA, r image.Rectangle, c color.Color, width int) {
	src := image.NewUniform(c)
	sides := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, s := range sides {
		draw.Draw(dst, s.Intersect(dst.Bounds()), src, image.Point{}, draw.Src)
	}
}

// drawBadge writes text in white on a filled box whose top-left is (x, y).
func drawBadge(dst *image.NRGBA, x, y int, text string, bg color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: dst, Src: image.White, Face: face}
	w := d.MeasureString(text).Ceil()
	box := image.Rect(x, y, x+w+4, y+face.Height+2)
	draw.Draw(dst, box.Intersect(dst.Bounds()), image.NewUniform(bg), image.Point{}, draw.Src)

	d.Dot = fixed.P(x+2, y+1+face.Ascent)
	d.DrawString(text)
}

// Result is an encoded overlay.
type Result struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// WritePNG encodes img as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode overlay: %w", err)
	}
	return nil
}

// Encode returns img as base64 PNG.
func Encode(img image.Image) (*Result, error) {
	var buf bytes.Buffer
	if err := WritePNG(&buf, img); err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &Result{
		Width:       b.Dx(),
		Height:      b.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
