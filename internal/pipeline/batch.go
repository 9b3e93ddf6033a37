package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/omr-grader-mcp/internal/omr"
)

// Item is the outcome for one sheet of a batch: a Result or an error,
// never both.
type Item struct {
	Path   string  `json:"path"`
	Result *Result `json:"result,omitempty"`
	Err    error   `json:"-"`
}

// Summary is the batch results file.
type Summary struct {
	Sheets int          `json:"sheets"`
	Graded int          `json:"graded"`
	Failed int          `json:"failed"`
	Items  []SummaryRow `json:"items"`
}

// SummaryRow is one line of the results file.
type SummaryRow struct {
	Path   string  `json:"path"`
	Result *Result `json:"result,omitempty"`
	Stage  string  `json:"stage,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// GradeBatch grades paths with at most workers sheets in flight. Items come
// back in input order. Per-sheet failures are recorded in their Item and do
// not stop the batch; only cancelling ctx does, in which case unstarted
// sheets fail with the context error.
func (p *Pipeline) GradeBatch(ctx context.Context, paths []string, workers int) []Item {
	if workers < 1 {
		workers = 1
	}
	items := make([]Item, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		items[i].Path = path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				items[i].Err = err
				return nil
			}
			res, err := p.GradeFile(ctx, path)
			if err != nil {
				p.log.Warn("sheet failed", zap.String("sheet", path), zap.Error(err))
				items[i].Err = err
				return nil
			}
			items[i].Result = res
			return nil
		})
	}
	_ = g.Wait()
	return items
}

// Summarize builds the results file for a finished batch.
func Summarize(items []Item) *Summary {
	s := &Summary{Sheets: len(items), Items: make([]SummaryRow, len(items))}
	for i, it := range items {
		row := SummaryRow{Path: it.Path, Result: it.Result}
		if it.Err != nil {
			s.Failed++
			row.Error = it.Err.Error()
			var se *omr.SheetError
			if errors.As(it.Err, &se) {
				row.Stage = string(se.Stage)
			}
		} else {
			s.Graded++
		}
		s.Items[i] = row
	}
	return s
}

// WriteJSON writes the summary as indented JSON.
func (s *Summary) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
