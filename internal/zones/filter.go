package zones

import (
	"fmt"

	"github.com/ironsheep/omr-grader-mcp/internal/config"
	"github.com/ironsheep/omr-grader-mcp/internal/omr"
)

// Filter decides whether a candidate rectangle can be an answer block on an
// image of the given size.
type Filter interface {
	Keep(r omr.Rect, imgWidth, imgHeight int) bool
}

// NewFilter returns the filter named by cfg.Kind.
func NewFilter(cfg config.FilterConfig) (Filter, error) {
	switch cfg.Kind {
	case config.FilterFraction:
		return FractionFilter{MinWidth: cfg.MinWidthFrac, MinHeight: cfg.MinHeightFrac}, nil
	case config.FilterAreaAspect:
		return AreaAspectFilter{
			MinArea:   cfg.MinArea,
			MaxArea:   cfg.MaxArea,
			MinAspect: cfg.MinAspect,
			MaxAspect: cfg.MaxAspect,
		}, nil
	default:
		return nil, fmt.Errorf("unknown zone filter %q", cfg.Kind)
	}
}

// FractionFilter keeps rectangles strictly wider than MinWidth of the image
// width and strictly taller than MinHeight of the image height.
type FractionFilter struct {
	MinWidth  float64
	MinHeight float64
}

func (f FractionFilter) Keep(r omr.Rect, imgWidth, imgHeight int) bool {
	return float64(r.Width) > f.MinWidth*float64(imgWidth) &&
		float64(r.Height) > f.MinHeight*float64(imgHeight)
}

// AreaAspectFilter keeps rectangles whose area lies in [MinArea, MaxArea]
// and whose height/width ratio lies in [MinAspect, MaxAspect]. A zero
// maximum means unbounded.
type AreaAspectFilter struct {
	MinArea   int
	MaxArea   int
	MinAspect float64
	MaxAspect float64
}

func (f AreaAspectFilter) Keep(r omr.Rect, _, _ int) bool {
	if r.Width <= 0 {
		return false
	}
	area := r.Area()
	if area < f.MinArea || (f.MaxArea > 0 && area > f.MaxArea) {
		return false
	}
	aspect := float64(r.Height) / float64(r.Width)
	return aspect >= f.MinAspect && (f.MaxAspect <= 0 || aspect <= f.MaxAspect)
}
