package zones

import (
	"image"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/omr-grader-mcp/internal/config"
	"github.com/ironsheep/omr-grader-mcp/internal/imaging"
	"github.com/ironsheep/omr-grader-mcp/internal/omr"
)

// Axis is the coordinate ink pixels are clustered on.
type Axis int

const (
	AxisX Axis = iota // blocks side by side
	AxisY             // blocks stacked vertically
)

// ClusterStrategy groups ink pixels into k blocks with one-dimensional
// k-means along the axis the blocks are laid out on. Each cluster's
// rectangle spans the Trim and 1-Trim quantiles of its pixels on both axes,
// so stray specks do not stretch it.
//
// Centers start at evenly spaced quantiles of the sorted coordinates, which
// makes the result independent of pixel visiting order.
type ClusterStrategy struct {
	cfg  config.ClusterConfig
	k    int
	axis Axis
}

func (s *ClusterStrategy) Name() config.Strategy { return config.StrategyCluster }

func (s *ClusterStrategy) Candidates(img image.Image) ([]omr.Rect, error) {
	b := img.Bounds()
	mask := imaging.InkMask(img, s.cfg.InkLevel)

	stride := s.cfg.Stride
	if stride < 1 {
		stride = 1
	}
	var xs, ys []float64
	for y := 0; y < b.Dy(); y += stride {
		for x := 0; x < b.Dx(); x += stride {
			if mask[y][x] {
				xs = append(xs, float64(x))
				ys = append(ys, float64(y))
			}
		}
	}
	if len(xs) < s.k || s.k < 1 {
		return nil, nil
	}

	primary := xs
	if s.axis == AxisY {
		primary = ys
	}
	labels := kmeans1D(primary, s.k, s.cfg.Iterations)

	rects := make([]omr.Rect, 0, s.k)
	for c := 0; c < s.k; c++ {
		var cx, cy []float64
		for i, l := range labels {
			if l == c {
				cx = append(cx, xs[i])
				cy = append(cy, ys[i])
			}
		}
		if len(cx) == 0 {
			continue
		}
		x1, x2 := s.trimmedBounds(cx)
		y1, y2 := s.trimmedBounds(cy)
		rects = append(rects, omr.Rect{
			X:      b.Min.X + x1,
			Y:      b.Min.Y + y1,
			Width:  x2 - x1 + 1,
			Height: y2 - y1 + 1,
		})
	}
	return rects, nil
}

func (s *ClusterStrategy) trimmedBounds(v []float64) (lo, hi int) {
	sort.Float64s(v)
	lo = int(stat.Quantile(s.cfg.Trim, stat.Empirical, v, nil))
	hi = int(stat.Quantile(1-s.cfg.Trim, stat.Empirical, v, nil))
	return lo, hi
}

// kmeans1D clusters values into k groups and returns each value's label.
// Labels are ordered by center, so label 0 is the lowest cluster.
func kmeans1D(values []float64, k, iterations int) []int {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	centers := make([]float64, k)
	for c := range centers {
		centers[c] = stat.Quantile((float64(c)+0.5)/float64(k), stat.Empirical, sorted, nil)
	}

	labels := make([]int, len(values))
	sums := make([]float64, k)
	counts := make([]float64, k)
	for it := 0; it < iterations; it++ {
		for i, v := range values {
			labels[i] = nearest(centers, v)
		}
		floats.Scale(0, sums)
		floats.Scale(0, counts)
		for i, v := range values {
			sums[labels[i]] += v
			counts[labels[i]]++
		}
		moved := false
		for c := range centers {
			if counts[c] == 0 {
				continue
			}
			next := sums[c] / counts[c]
			if next != centers[c] {
				centers[c] = next
				moved = true
			}
		}
		if !moved {
			break
		}
	}
	return labels
}

func nearest(centers []float64, v float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, center := range centers {
		if d := math.Abs(v - center); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
