package zones

import (
	"image"

	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/omr-grader-mcp/internal/config"
	"github.com/ironsheep/omr-grader-mcp/internal/imaging"
	"github.com/ironsheep/omr-grader-mcp/internal/omr"
)

// ProjectionStrategy finds blocks from ink projection profiles.
//
// Rows whose ink count exceeds Factor times the mean row count form
// horizontal bands. Within each band the same test on the column profile
// splits the band into blocks. Runs separated by at most MaxGap quiet pixels
// are merged and runs shorter than MinRun are discarded on both axes.
type ProjectionStrategy struct {
	cfg config.ProjectionConfig
}

func (s *ProjectionStrategy) Name() config.Strategy { return config.StrategyProjection }

func (s *ProjectionStrategy) Candidates(img image.Image) ([]omr.Rect, error) {
	b := img.Bounds()
	mask := imaging.InkMask(img, s.cfg.InkLevel)
	w, h := b.Dx(), b.Dy()

	rowProfile := make([]float64, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask[y][x] {
				rowProfile[y]++
			}
		}
	}

	var rects []omr.Rect
	for _, band := range s.runs(rowProfile) {
		colProfile := make([]float64, w)
		for y := band.start; y < band.end; y++ {
			for x := 0; x < w; x++ {
				if mask[y][x] {
					colProfile[x]++
				}
			}
		}
		for _, col := range s.runs(colProfile) {
			rects = append(rects, omr.Rect{
				X:      b.Min.X + col.start,
				Y:      b.Min.Y + band.start,
				Width:  col.end - col.start,
				Height: band.end - band.start,
			})
		}
	}
	return rects, nil
}

// run is a half-open index interval [start, end).
type run struct{ start, end int }

// runs returns the intervals where profile exceeds Factor times its mean.
func (s *ProjectionStrategy) runs(profile []float64) []run {
	if len(profile) == 0 {
		return nil
	}
	mean := stat.Mean(profile, nil)
	if mean == 0 {
		return nil
	}
	threshold := s.cfg.Factor * mean

	var raw []run
	start := -1
	for i, v := range profile {
		switch {
		case v > threshold && start < 0:
			start = i
		case v <= threshold && start >= 0:
			raw = append(raw, run{start, i})
			start = -1
		}
	}
	if start >= 0 {
		raw = append(raw, run{start, len(profile)})
	}

	var merged []run
	for _, r := range raw {
		if n := len(merged); n > 0 && r.start-merged[n-1].end <= s.cfg.MaxGap {
			merged[n-1].end = r.end
			continue
		}
		merged = append(merged, r)
	}

	out := merged[:0]
	for _, r := range merged {
		if r.end-r.start >= s.cfg.MinRun {
			out = append(out, r)
		}
	}
	return out
}
