package zones

import (
	"fmt"
	"image"

	"github.com/ironsheep/omr-grader-mcp/internal/config"
	"github.com/ironsheep/omr-grader-mcp/internal/omr"
)

// Strategy proposes candidate zone rectangles for an image.
//
// Candidates are in the pixel coordinates of the image passed in (including
// its Bounds().Min offset). They are unfiltered and unordered; the Detector
// does the rest.
type Strategy interface {
	Name() config.Strategy
	Candidates(img image.Image) ([]omr.Rect, error)
}

// NewStrategy returns the strategy named by cfg.Zones.Strategy.
func NewStrategy(cfg *config.Config) (Strategy, error) {
	switch cfg.Zones.Strategy {
	case config.StrategyContour:
		return &ContourStrategy{cfg: cfg.Zones.Contour}, nil
	case config.StrategyProjection:
		return &ProjectionStrategy{cfg: cfg.Zones.Projection}, nil
	case config.StrategyCluster:
		axis := AxisX
		if cfg.Zones.OrderBy == config.SortByY {
			axis = AxisY
		}
		return &ClusterStrategy{cfg: cfg.Zones.Cluster, k: cfg.Layout.Zones, axis: axis}, nil
	case config.StrategyTemplate:
		return templateStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown zone strategy %q", cfg.Zones.Strategy)
	}
}

// templateStrategy never looks at the image; the Detector substitutes the
// fallback template directly.
type templateStrategy struct{}

func (templateStrategy) Name() config.Strategy { return config.StrategyTemplate }

func (templateStrategy) Candidates(image.Image) ([]omr.Rect, error) { return nil, nil }
