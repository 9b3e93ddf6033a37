package config

import "fmt"

// Strategy selects the zone detection heuristic.
type Strategy string

const (
	StrategyContour    Strategy = "contour"
	StrategyProjection Strategy = "projection"
	StrategyCluster    Strategy = "cluster"
	StrategyTemplate   Strategy = "template"
)

// FilterKind selects how contour candidates are screened.
type FilterKind string

const (
	// FilterFraction keeps rectangles wider and taller than a fraction of
	// the image.
	FilterFraction FilterKind = "fraction"

	// FilterAreaAspect keeps rectangles whose area and height/width ratio
	// fall in configured ranges.
	FilterAreaAspect FilterKind = "area_aspect"
)

// SortKey orders zone candidates.
type SortKey string

const (
	SortByArea SortKey = "area" // largest first
	SortByX    SortKey = "x"    // leftmost first
	SortByY    SortKey = "y"    // topmost first
)

// ZonesConfig configures the ZoneDetector.
type ZonesConfig struct {
	Strategy Strategy `yaml:"strategy"`

	// SelectBy picks which candidates survive when more than Layout.Zones
	// pass the filter. OrderBy then fixes the canonical order that maps
	// zones onto question ranges: the first zone owns questions
	// 1..RowsPerZone.
	SelectBy SortKey `yaml:"select_by"`
	OrderBy  SortKey `yaml:"order_by"`

	// WorkWidth is the width in pixels images are downscaled to before
	// detection. Zero disables downscaling.
	WorkWidth int `yaml:"work_width"`

	Filter     FilterConfig     `yaml:"filter"`
	Contour    ContourConfig    `yaml:"contour"`
	Projection ProjectionConfig `yaml:"projection"`
	Cluster    ClusterConfig    `yaml:"cluster"`

	// Fallback holds one ratio rectangle per zone, in canonical order.
	Fallback []TemplateRect `yaml:"fallback"`
}

// FilterConfig configures candidate screening.
type FilterConfig struct {
	Kind FilterKind `yaml:"kind"`

	MinWidthFrac  float64 `yaml:"min_width_frac"`
	MinHeightFrac float64 `yaml:"min_height_frac"`

	MinArea   int     `yaml:"min_area"`
	MaxArea   int     `yaml:"max_area"` // 0 = unbounded
	MinAspect float64 `yaml:"min_aspect"`
	MaxAspect float64 `yaml:"max_aspect"` // 0 = unbounded
}

// ContourConfig configures the edge/contour strategy.
type ContourConfig struct {
	BlurRadius    float64 `yaml:"blur_radius"`
	ThresholdLow  int     `yaml:"threshold_low"`
	ThresholdHigh int     `yaml:"threshold_high"`

	// Dilate is the radius in pixels by which the edge mask is grown before
	// contours are traced.
	Dilate int `yaml:"dilate"`

	// InkLevel is the luminance below which a pixel counts as ink when a
	// contour's box is snapped to the outline it traced.
	InkLevel uint8 `yaml:"ink_level"`
}

// ProjectionConfig configures the projection-profile strategy.
type ProjectionConfig struct {
	// InkLevel is the luminance below which a pixel counts as ink.
	InkLevel uint8 `yaml:"ink_level"`

	// Factor multiplies the mean profile value to get the band threshold.
	Factor float64 `yaml:"factor"`

	// MinRun is the minimum band length in work-resolution pixels.
	MinRun int `yaml:"min_run"`

	// MaxGap bridges runs separated by at most this many quiet pixels, such
	// as the white space between bubble rows.
	MaxGap int `yaml:"max_gap"`
}

// ClusterConfig configures the ink-clustering strategy.
type ClusterConfig struct {
	InkLevel   uint8   `yaml:"ink_level"`
	Iterations int     `yaml:"iterations"`
	Trim       float64 `yaml:"trim"` // quantile cut on each side of a cluster
	Stride     int     `yaml:"stride"`
}

// TemplateRect is a rectangle given as fractions of image width and height.
type TemplateRect struct {
	X1 float64 `yaml:"x1"`
	Y1 float64 `yaml:"y1"`
	X2 float64 `yaml:"x2"`
	Y2 float64 `yaml:"y2"`
}

func defaultZonesConfig() ZonesConfig {
	return ZonesConfig{
		Strategy:  StrategyContour,
		SelectBy:  SortByArea,
		OrderBy:   SortByX,
		WorkWidth: 1000,
		Filter: FilterConfig{
			Kind:          FilterFraction,
			MinWidthFrac:  0.2,
			MinHeightFrac: 0.4,
			MinArea:       10000,
			MinAspect:     1.2,
		},
		Contour: ContourConfig{
			BlurRadius:    1.4,
			ThresholdLow:  50,
			ThresholdHigh: 150,
			Dilate:        2,
			InkLevel:      128,
		},
		Projection: ProjectionConfig{
			InkLevel: 200,
			Factor:   0.5,
			MinRun:   50,
			MaxGap:   12,
		},
		Cluster: ClusterConfig{
			InkLevel:   128,
			Iterations: 20,
			Trim:       0.01,
			Stride:     2,
		},
		Fallback: []TemplateRect{
			{X1: 0.1, Y1: 0.25, X2: 0.45, Y2: 0.9},
			{X1: 0.55, Y1: 0.25, X2: 0.9, Y2: 0.9},
		},
	}
}

func (z ZonesConfig) validate(zones int) error {
	switch z.Strategy {
	case StrategyContour, StrategyProjection, StrategyCluster, StrategyTemplate:
	default:
		return fmt.Errorf("zones.strategy: unknown strategy %q", z.Strategy)
	}
	switch z.SelectBy {
	case SortByArea, SortByX, SortByY:
	default:
		return fmt.Errorf("zones.select_by: unknown key %q", z.SelectBy)
	}
	switch z.OrderBy {
	case SortByArea, SortByX, SortByY:
	default:
		return fmt.Errorf("zones.order_by: unknown key %q", z.OrderBy)
	}
	if z.WorkWidth < 0 {
		return fmt.Errorf("zones.work_width must not be negative")
	}
	switch z.Filter.Kind {
	case FilterFraction, FilterAreaAspect:
	default:
		return fmt.Errorf("zones.filter.kind: unknown filter %q", z.Filter.Kind)
	}
	if z.Contour.ThresholdLow > z.Contour.ThresholdHigh {
		return fmt.Errorf("zones.contour: threshold_low %d exceeds threshold_high %d",
			z.Contour.ThresholdLow, z.Contour.ThresholdHigh)
	}
	if z.Contour.Dilate < 0 {
		return fmt.Errorf("zones.contour.dilate must not be negative, got %d", z.Contour.Dilate)
	}
	if z.Projection.Factor <= 0 {
		return fmt.Errorf("zones.projection.factor must be positive, got %g", z.Projection.Factor)
	}
	if z.Projection.MinRun < 1 || z.Projection.MaxGap < 0 {
		return fmt.Errorf("zones.projection: min_run must be at least 1 and max_gap not negative")
	}
	if z.Cluster.Iterations < 1 || z.Cluster.Stride < 1 {
		return fmt.Errorf("zones.cluster: iterations and stride must be at least 1")
	}
	if z.Cluster.Trim < 0 || z.Cluster.Trim >= 0.5 {
		return fmt.Errorf("zones.cluster.trim must be in [0, 0.5), got %g", z.Cluster.Trim)
	}
	if len(z.Fallback) != zones {
		return fmt.Errorf("zones.fallback: need %d template rectangles, got %d", zones, len(z.Fallback))
	}
	for i, t := range z.Fallback {
		if t.X1 < 0 || t.Y1 < 0 || t.X2 > 1 || t.Y2 > 1 || t.X1 >= t.X2 || t.Y1 >= t.Y2 {
			return fmt.Errorf("zones.fallback[%d]: ratios (%g,%g,%g,%g) do not form a rectangle inside the page",
				i, t.X1, t.Y1, t.X2, t.Y2)
		}
	}
	return nil
}
