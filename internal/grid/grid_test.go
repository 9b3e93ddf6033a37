package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/omr-grader-mcp/internal/omr"
)

var abcde = []omr.Option{"A", "B", "C", "D", "E"}

func zoneOf(r omr.Rect, first, rows int) omr.Zone {
	return omr.Zone{Rect: r, FirstQuestion: first, LastQuestion: first + rows - 1}
}

func TestMap_RowsPartitionZone(t *testing.T) {
	for _, height := range []int{1, 7, 100, 299, 1300} {
		for rows := 1; rows <= 17; rows++ {
			if rows > height {
				continue
			}
			z := zoneOf(omr.Rect{X: 0, Y: 0, Width: 50, Height: height}, 1, rows)
			cells, err := Map(z, []omr.Option{"A"})
			require.NoError(t, err)
			require.Len(t, cells, rows)

			assert.Equal(t, 0.0, cells[0].Y1)
			assert.Equal(t, float64(height), cells[rows-1].Y2)
			for i := 1; i < rows; i++ {
				assert.Equal(t, cells[i-1].Y2, cells[i].Y1, "gap or overlap between rows %d and %d (H=%d R=%d)", i-1, i, height, rows)
				assert.Less(t, cells[i].Y1, cells[i].Y2)
			}
			for i, c := range cells {
				want := float64(i*height) / float64(rows)
				assert.Equal(t, want, c.Y1)
			}
		}
	}
}

func TestMap_NonSquareWithOffset(t *testing.T) {
	z := omr.Zone{
		Index:         1,
		Rect:          omr.Rect{X: 550, Y: 500, Width: 350, Height: 1300},
		FirstQuestion: 16,
		LastQuestion:  28,
	}
	cells, err := Map(z, abcde)
	require.NoError(t, err)
	require.Len(t, cells, 13*5)

	first := cells[0]
	assert.Equal(t, omr.Cell{Zone: 1, Row: 0, Column: 0, Question: 16, Option: "A", X1: 550, Y1: 500, X2: 620, Y2: 600}, first)

	last := cells[len(cells)-1]
	assert.Equal(t, 28, last.Question)
	assert.Equal(t, omr.Option("E"), last.Option)
	assert.Equal(t, 900.0, last.X2)
	assert.Equal(t, 1800.0, last.Y2)

	var area float64
	for _, c := range cells {
		area += (c.X2 - c.X1) * (c.Y2 - c.Y1)
	}
	assert.InDelta(t, float64(z.Rect.Area()), area, 1e-6)
}

func TestMap_Invalid(t *testing.T) {
	_, err := Map(zoneOf(omr.Rect{Width: 10, Height: 10}, 1, 3), nil)
	assert.Error(t, err)

	_, err = Map(zoneOf(omr.Rect{Width: 0, Height: 10}, 1, 3), abcde)
	assert.Error(t, err)

	_, err = Map(omr.Zone{Rect: omr.Rect{Width: 10, Height: 10}, FirstQuestion: 5, LastQuestion: 4}, abcde)
	assert.Error(t, err)
}

func TestMapAll(t *testing.T) {
	zones := []omr.Zone{
		zoneOf(omr.Rect{X: 0, Y: 0, Width: 100, Height: 300}, 1, 3),
		{Index: 1, Rect: omr.Rect{X: 200, Y: 0, Width: 100, Height: 300}, FirstQuestion: 4, LastQuestion: 6},
	}
	cells, err := MapAll(zones, abcde[:2])
	require.NoError(t, err)
	require.Len(t, cells, 12)
	assert.Equal(t, 4, cells[6].Question)
	assert.Equal(t, 1, cells[6].Zone)
}

func TestRowAgreesWithCells(t *testing.T) {
	z := zoneOf(omr.Rect{X: 3, Y: 7, Width: 41, Height: 101}, 1, 7)
	cells, err := Map(z, []omr.Option{"A"})
	require.NoError(t, err)

	for _, c := range cells {
		for _, y := range []float64{c.Y1, (c.Y1 + c.Y2) / 2, c.Y2 - 1e-9} {
			row, ok := Row(z, y)
			require.True(t, ok, "y=%v", y)
			assert.Equal(t, c.Row, row, "y=%v", y)
		}
	}

	_, ok := Row(z, 6.999)
	assert.False(t, ok)
	_, ok = Row(z, 108)
	assert.False(t, ok, "bottom edge is exclusive")
}

func TestColumn(t *testing.T) {
	z := zoneOf(omr.Rect{X: 100, Y: 0, Width: 100, Height: 300}, 1, 3)

	tests := []struct {
		x    float64
		want int
		ok   bool
	}{
		{100, 0, true},
		{119.99, 0, true},
		{120, 1, true},
		{199.9, 4, true},
		{200, 0, false},
		{99, 0, false},
	}
	for _, tt := range tests {
		got, ok := Column(z, 5, tt.x)
		assert.Equal(t, tt.ok, ok, "x=%v", tt.x)
		if tt.ok {
			assert.Equal(t, tt.want, got, "x=%v", tt.x)
		}
	}
}
