package marks

import (
	"errors"
	"image"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/omr-grader-mcp/internal/config"
	"github.com/ironsheep/omr-grader-mcp/internal/grid"
	"github.com/ironsheep/omr-grader-mcp/internal/omr"
)

// testSheet is one 100x300 zone of three questions with options A-E, so
// each cell is 20x100.
func testSheet(t *testing.T) Sheet {
	t.Helper()
	zone := omr.Zone{Rect: omr.Rect{X: 0, Y: 0, Width: 100, Height: 300}, FirstQuestion: 1, LastQuestion: 3}
	cells, err := grid.Map(zone, []omr.Option{"A", "B", "C", "D", "E"})
	require.NoError(t, err)
	return Sheet{Bounds: image.Rect(0, 0, 100, 300), Zones: []omr.Zone{zone}, Cells: cells}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Layout.Zones = 1
	cfg.Layout.RowsPerZone = 3
	return cfg
}

// at returns a 10x10 detection centered on (x, y).
func at(x, y, conf float64, class int) omr.Detection {
	return omr.Detection{Box: omr.Box{X1: x - 5, Y1: y - 5, X2: x + 5, Y2: y + 5}, Confidence: conf, ClassID: class}
}

func TestResolve_Scenario(t *testing.T) {
	r := NewResolver(testConfig())

	res := r.Resolve(testSheet(t), []omr.Detection{
		at(50, 50, 0.95, 0), // A on question 1
		at(50, 250, 0.8, 2), // C on question 3
	})

	want := omr.Evidence{
		1: {"A": 0.95},
		3: {"C": 0.8},
	}
	assert.Empty(t, cmp.Diff(want, res.Evidence))
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 2, res.Assigned)
}

func TestResolve_KeepsMaxAndDistinctOptions(t *testing.T) {
	r := NewResolver(testConfig())

	res := r.Resolve(testSheet(t), []omr.Detection{
		at(10, 50, 0.4, 0),
		at(12, 52, 0.9, 0), // duplicate A, higher
		at(30, 50, 0.3, 1), // B on the same question
		at(11, 48, 0.6, 0),
	})

	assert.Equal(t, omr.Evidence{1: {"A": 0.9, "B": 0.3}}, res.Evidence)
	assert.Equal(t, []omr.OptionConfidence{{Option: "A", Confidence: 0.9}, {Option: "B", Confidence: 0.3}}, res.Evidence.Asserted(1))
}

func TestResolve_OrderIndependentAndIdempotent(t *testing.T) {
	r := NewResolver(testConfig())
	sheet := testSheet(t)

	dets := []omr.Detection{
		at(10, 50, 0.4, 0),
		at(12, 52, 0.9, 0),
		at(30, 150, 0.3, 1),
		at(70, 150, 0.7, 3),
		at(90, 250, 0.5, 5),
		at(90, 250, 0.5, 4),
		at(150, 50, 0.9, 0), // outside the zone
		at(50, 50, 1.5, 0),  // malformed
	}
	want := r.Resolve(sheet, dets).Evidence

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 25; i++ {
		perm := append([]omr.Detection(nil), dets...)
		rng.Shuffle(len(perm), func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })
		got := r.Resolve(sheet, perm).Evidence
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("evidence depends on detection order (-want +got):\n%s", diff)
		}
	}

	again := r.Resolve(sheet, dets).Evidence
	assert.Empty(t, cmp.Diff(want, again))
}

func TestResolve_InvalidPolicy(t *testing.T) {
	dets := []omr.Detection{
		at(50, 50, 0.7, 5), // INVALID on question 1
		at(10, 150, 0.9, 0),
		at(50, 150, 0.6, 5), // INVALID on question 2 alongside A
	}

	t.Run("record", func(t *testing.T) {
		r := NewResolver(testConfig())
		res := r.Resolve(testSheet(t), dets)
		assert.Equal(t, omr.Evidence{
			1: {omr.Invalid: 0.7},
			2: {"A": 0.9, omr.Invalid: 0.6},
		}, res.Evidence)
		assert.Equal(t, 0, res.InvalidDropped)
	})

	t.Run("drop", func(t *testing.T) {
		cfg := testConfig()
		cfg.Marks.InvalidPolicy = config.InvalidDrop
		res := NewResolver(cfg).Resolve(testSheet(t), dets)
		assert.Equal(t, omr.Evidence{2: {"A": 0.9}}, res.Evidence)
		assert.Equal(t, 2, res.InvalidDropped)
		assert.Empty(t, res.Warnings)
	})
}

func TestResolve_PositionPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Marks.Policy = config.OptionByPosition
	cfg.Marks.Classes = map[int]omr.Option{0: "MARK", 1: omr.Invalid}
	r := NewResolver(cfg)

	res := r.Resolve(testSheet(t), []omr.Detection{
		at(10, 50, 0.9, 0),  // column 0 -> A
		at(50, 150, 0.8, 0), // column 2 -> C
		at(60, 150, 0.7, 0), // column 3 -> D
		at(90, 250, 0.6, 1), // INVALID keeps its label
		at(20, 250, 0.5, 7), // unknown class is still a mark
	})

	assert.Empty(t, res.Warnings)
	assert.Equal(t, omr.Evidence{
		1: {"A": 0.9},
		2: {"C": 0.8, "D": 0.7},
		3: {omr.Invalid: 0.6, "B": 0.5},
	}, res.Evidence)
}

func TestResolve_Warnings(t *testing.T) {
	cfg := testConfig()
	cfg.Marks.MinConfidence = 0.25
	r := NewResolver(cfg)

	dets := []omr.Detection{
		at(50, 50, -0.1, 0),
		at(50, 50, math.NaN(), 0),
		{Box: omr.Box{X1: 60, Y1: 60, X2: 40, Y2: 70}, Confidence: 0.9},
		{Box: omr.Box{X1: 190, Y1: 10, X2: 210, Y2: 20}, Confidence: 0.9},
		at(50, 50, 0.9, 42), // unknown class under class policy
		at(50, 50, 0.2, 0),
		at(50, 50, 0.9, 0),
	}
	sheet := testSheet(t)
	sheet.Bounds = image.Rect(0, 0, 200, 300)
	dets = append(dets, at(150, 50, 0.9, 0)) // inside the image, outside the zone

	res := r.Resolve(sheet, dets)

	kinds := make([]WarningKind, 0, len(res.Warnings))
	for _, w := range res.Warnings {
		kinds = append(kinds, w.Kind)
	}
	assert.Equal(t, []WarningKind{
		WarnMalformed, WarnMalformed, WarnMalformed, WarnMalformed, WarnMalformed,
		WarnBelowThreshold, WarnUnassigned,
	}, kinds)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 7}, indexes(res.Warnings))
	for _, w := range res.Warnings[:5] {
		assert.True(t, errors.Is(w.Err, omr.ErrMalformedDetection), w.Reason)
	}
	assert.Equal(t, omr.Evidence{1: {"A": 0.9}}, res.Evidence)
	assert.Equal(t, 1, res.Assigned)
}

func TestResolve_ZoneEdgesAreHalfOpen(t *testing.T) {
	r := NewResolver(testConfig())
	sheet := testSheet(t)
	sheet.Bounds = image.Rect(0, 0, 200, 400)

	res := r.Resolve(sheet, []omr.Detection{
		// Top-left corner of row 1 belongs to question 2.
		{Box: omr.Box{X1: 0, Y1: 100, X2: 0, Y2: 100}, Confidence: 0.9, ClassID: 0},
		// The zone's right edge is excluded.
		{Box: omr.Box{X1: 90, Y1: 290, X2: 110, Y2: 310}, Confidence: 0.9, ClassID: 0},
	})

	assert.Equal(t, omr.Evidence{2: {"A": 0.9}}, res.Evidence)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnUnassigned, res.Warnings[0].Kind)
}

func TestResolve_InvalidOutsideZoneIsUnassigned(t *testing.T) {
	for _, policy := range []config.InvalidPolicy{config.InvalidRecord, config.InvalidDrop} {
		t.Run(string(policy), func(t *testing.T) {
			cfg := testConfig()
			cfg.Marks.InvalidPolicy = policy
			r := NewResolver(cfg)
			sheet := testSheet(t)
			sheet.Bounds = image.Rect(0, 0, 200, 400)

			res := r.Resolve(sheet, []omr.Detection{at(150, 150, 0.9, 5)})

			assert.Empty(t, res.Evidence)
			assert.Equal(t, 0, res.InvalidDropped)
			require.Len(t, res.Warnings, 1)
			assert.Equal(t, WarnUnassigned, res.Warnings[0].Kind)
		})
	}
}

func indexes(ws []Warning) []int {
	out := make([]int, len(ws))
	for i, w := range ws {
		out[i] = w.Index
	}
	return out
}
