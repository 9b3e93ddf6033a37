// Package grid subdivides answer zones into question/option cells.
//
// The grid is pure arithmetic over the zone rectangle: row i of R spans
// [y + i*H/R, y + (i+1)*H/R) and column j of K spans [x + j*W/K, x + (j+1)*W/K),
// both computed by omr.Span. Detections never influence the grid.
package grid

import (
	"fmt"

	"github.com/ironsheep/omr-grader-mcp/internal/omr"
)

// Map returns the cells of one zone in row-major order: row 0 (the zone's
// first question) at the top, column 0 (the first option) at the left.
// The zone's row count is its number of owned questions.
func Map(zone omr.Zone, options []omr.Option) ([]omr.Cell, error) {
	rows := zone.Questions()
	cols := len(options)
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("zone %d: grid needs at least one row and one column, got %dx%d", zone.Index, rows, cols)
	}
	if zone.Rect.Empty() {
		return nil, fmt.Errorf("zone %d: empty rectangle %v", zone.Index, zone.Rect)
	}

	r := zone.Rect
	cells := make([]omr.Cell, 0, rows*cols)
	for i := 0; i < rows; i++ {
		y1, y2 := omr.Span(r.Y, r.Height, i, rows)
		for j, opt := range options {
			x1, x2 := omr.Span(r.X, r.Width, j, cols)
			cells = append(cells, omr.Cell{
				Zone:     zone.Index,
				Row:      i,
				Column:   j,
				Question: zone.FirstQuestion + i,
				Option:   opt,
				X1:       x1,
				Y1:       y1,
				X2:       x2,
				Y2:       y2,
			})
		}
	}
	return cells, nil
}

// MapAll maps every zone and concatenates the cells in zone order.
func MapAll(zones []omr.Zone, options []omr.Option) ([]omr.Cell, error) {
	var cells []omr.Cell
	for _, z := range zones {
		c, err := Map(z, options)
		if err != nil {
			return nil, err
		}
		cells = append(cells, c...)
	}
	return cells, nil
}

// Row returns the row of zone whose vertical interval contains y, and false
// when y lies outside the zone.
func Row(zone omr.Zone, y float64) (int, bool) {
	return index(zone.Rect.Y, zone.Rect.Height, zone.Questions(), y)
}

// Column returns the column of zone whose horizontal interval contains x
// when the zone is split into cols columns.
func Column(zone omr.Zone, cols int, x float64) (int, bool) {
	return index(zone.Rect.X, zone.Rect.Width, cols, x)
}

// index locates v among n equal parts of [origin, origin+length). The
// estimate from division is corrected against omr.Span so the answer agrees
// exactly with the cell edges Map produces.
func index(origin, length, n int, v float64) (int, bool) {
	if n < 1 || length <= 0 {
		return 0, false
	}
	lo, _ := omr.Span(origin, length, 0, n)
	_, hi := omr.Span(origin, length, n-1, n)
	if v < lo || v >= hi {
		return 0, false
	}
	i := int((v - float64(origin)) * float64(n) / float64(length))
	if i >= n {
		i = n - 1
	}
	for i > 0 {
		if l, _ := omr.Span(origin, length, i, n); v >= l {
			break
		}
		i--
	}
	for i < n-1 {
		if _, h := omr.Span(origin, length, i, n); v < h {
			break
		}
		i++
	}
	return i, true
}
