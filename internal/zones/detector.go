package zones

import (
	"fmt"
	"image"
	"sort"

	"go.uber.org/zap"

	"github.com/ironsheep/omr-grader-mcp/internal/config"
	"github.com/ironsheep/omr-grader-mcp/internal/imaging"
	"github.com/ironsheep/omr-grader-mcp/internal/omr"
)

// Source records where a Result's zones came from.
type Source string

const (
	SourceDetected Source = "detected"
	SourceFallback Source = "fallback"
	SourceTemplate Source = "template"
)

// Result is the outcome of zone detection for one sheet.
type Result struct {
	// Zones are in canonical order with question ranges assigned.
	Zones []omr.Zone `json:"zones"`

	Source Source `json:"source"`

	// Candidates is how many rectangles survived filtering, before top-K.
	Candidates int `json:"candidates"`
}

// Detector turns a page image into exactly Layout.Zones zones.
// A Detector holds no per-sheet state and is safe for concurrent use.
type Detector struct {
	cfg      config.ZonesConfig
	zones    int
	rows     int
	strategy Strategy
	filter   Filter
	log      *zap.Logger
}

// NewDetector builds a detector from a validated configuration.
func NewDetector(cfg *config.Config, log *zap.Logger) (*Detector, error) {
	if log == nil {
		log = zap.NewNop()
	}
	strategy, err := NewStrategy(cfg)
	if err != nil {
		return nil, err
	}
	filter, err := NewFilter(cfg.Zones.Filter)
	if err != nil {
		return nil, err
	}
	return &Detector{
		cfg:      cfg.Zones,
		zones:    cfg.Layout.Zones,
		rows:     cfg.Layout.RowsPerZone,
		strategy: strategy,
		filter:   filter,
		log:      log.Named("zones"),
	}, nil
}

// Detect finds the zones of one sheet.
func (d *Detector) Detect(img image.Image) (*Result, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: image has no area (%dx%d)", omr.ErrZoneDetection, b.Dx(), b.Dy())
	}

	if d.strategy.Name() == config.StrategyTemplate {
		rects, err := Template(d.cfg.Fallback, b)
		if err != nil {
			return nil, err
		}
		return &Result{Zones: d.assign(rects), Source: SourceTemplate}, nil
	}

	candidates := d.candidates(img)
	if len(candidates) >= d.zones {
		selected := Select(candidates, d.cfg.SelectBy, d.zones)
		Order(selected, d.cfg.OrderBy)
		return &Result{
			Zones:      d.assign(selected),
			Source:     SourceDetected,
			Candidates: len(candidates),
		}, nil
	}

	d.log.Warn("zone detection fell short, using fallback template",
		zap.String("strategy", string(d.strategy.Name())),
		zap.Int("candidates", len(candidates)),
		zap.Int("want", d.zones))

	rects, err := Template(d.cfg.Fallback, b)
	if err != nil {
		return nil, err
	}
	return &Result{
		Zones:      d.assign(rects),
		Source:     SourceFallback,
		Candidates: len(candidates),
	}, nil
}

// candidates runs the strategy at working resolution and returns filtered,
// non-nested rectangles in source coordinates.
func (d *Detector) candidates(img image.Image) []omr.Rect {
	b := img.Bounds()
	work, factor := imaging.Downscale(img, d.cfg.WorkWidth)

	raw, err := d.strategy.Candidates(work)
	if err != nil {
		d.log.Warn("zone strategy failed", zap.String("strategy", string(d.strategy.Name())), zap.Error(err))
		return nil
	}

	kept := make([]omr.Rect, 0, len(raw))
	for _, r := range raw {
		if factor != 1.0 {
			r = r.Scale(factor)
			r.X += b.Min.X
			r.Y += b.Min.Y
		}
		if r.Empty() || !d.filter.Keep(r, b.Dx(), b.Dy()) {
			continue
		}
		kept = append(kept, r)
	}
	kept = DropEnclosed(kept)

	d.log.Debug("zone candidates",
		zap.String("strategy", string(d.strategy.Name())),
		zap.Int("raw", len(raw)),
		zap.Int("kept", len(kept)),
		zap.Float64("scale", factor))
	return kept
}

// assign numbers zones in the given order and hands out question ranges.
func (d *Detector) assign(rects []omr.Rect) []omr.Zone {
	zones := make([]omr.Zone, len(rects))
	for i, r := range rects {
		zones[i] = omr.Zone{
			Index:         i,
			Rect:          r,
			FirstQuestion: i*d.rows + 1,
			LastQuestion:  (i + 1) * d.rows,
		}
	}
	return zones
}

// Template converts ratio rectangles into pixel rectangles for an image with
// the given bounds. Each edge is rounded to the nearest pixel independently,
// so adjacent template rectangles stay adjacent.
func Template(ratios []config.TemplateRect, bounds image.Rectangle) ([]omr.Rect, error) {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())

	rects := make([]omr.Rect, len(ratios))
	for i, t := range ratios {
		x1 := roundPx(t.X1 * w)
		y1 := roundPx(t.Y1 * h)
		x2 := roundPx(t.X2 * w)
		y2 := roundPx(t.Y2 * h)
		r := omr.Rect{X: bounds.Min.X + x1, Y: bounds.Min.Y + y1, Width: x2 - x1, Height: y2 - y1}
		if r.Empty() {
			return nil, fmt.Errorf("%w: fallback rectangle %d is empty on a %dx%d image",
				omr.ErrZoneDetection, i, bounds.Dx(), bounds.Dy())
		}
		rects[i] = r
	}
	return rects, nil
}

// DropEnclosed removes every rectangle lying entirely inside another one,
// leaving only outermost candidates. Of identical rectangles one survives.
func DropEnclosed(rects []omr.Rect) []omr.Rect {
	out := make([]omr.Rect, 0, len(rects))
	for i, r := range rects {
		enclosed := false
		for j, o := range rects {
			if i == j || !o.Encloses(r) {
				continue
			}
			// Identical rectangles: keep the first occurrence only.
			if o == r && j > i {
				continue
			}
			enclosed = true
			break
		}
		if !enclosed {
			out = append(out, r)
		}
	}
	return out
}

// Select returns the first k rectangles under key without modifying rects.
func Select(rects []omr.Rect, key config.SortKey, k int) []omr.Rect {
	sorted := append([]omr.Rect(nil), rects...)
	Order(sorted, key)
	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}

// Order sorts rectangles in place by key. Ties fall back to x, then y,
// then size, so the order never depends on input order.
func Order(rects []omr.Rect, key config.SortKey) {
	sort.SliceStable(rects, func(i, j int) bool {
		a, b := rects[i], rects[j]
		switch key {
		case config.SortByArea:
			if a.Area() != b.Area() {
				return a.Area() > b.Area()
			}
		case config.SortByY:
			if a.Y != b.Y {
				return a.Y < b.Y
			}
		}
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.Width != b.Width {
			return a.Width < b.Width
		}
		return a.Height < b.Height
	})
}

func roundPx(v float64) int {
	if v < 0 {
		return -int(-v + 0.5)
	}
	return int(v + 0.5)
}
