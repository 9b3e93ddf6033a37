package overlay

import (
	"github.com/ironsheep/omr-grader-mcp/internal/config"
	"github.com/ironsheep/omr-grader-mcp/internal/omr"
	"github.com/ironsheep/omr-grader-mcp/internal/pipeline"
	"github.com/ironsheep/omr-grader-mcp/internal/zones"
)

// FromResult builds the overlay input for a graded sheet. Marks are
// labelled the way the resolver read them: by class, or by the column under
// the box center for the position policy.
func FromResult(res *pipeline.Result, cfg *config.Config) Input {
	in := Input{
		Zones:    res.Zones,
		Cells:    res.Cells,
		Fallback: res.ZoneSource == zones.SourceFallback,
		Options:  cfg.Layout.Options,
	}
	for _, d := range res.Detections {
		label, _ := cfg.Marks.Label(d.ClassID)
		if cfg.Marks.Policy == config.OptionByPosition && label != omr.Invalid {
			label = ""
			center := d.Box.Center()
			for _, c := range res.Cells {
				if c.Contains(center) {
					label = c.Option
					break
				}
			}
		}
		in.Marks = append(in.Marks, Mark{Box: d.Box, Label: label})
	}
	if res.Report != nil {
		in.Details = res.Report.Details
	}
	return in
}
