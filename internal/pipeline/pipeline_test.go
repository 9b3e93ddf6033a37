package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ironsheep/omr-grader-mcp/internal/config"
	"github.com/ironsheep/omr-grader-mcp/internal/detector"
	"github.com/ironsheep/omr-grader-mcp/internal/grading"
	"github.com/ironsheep/omr-grader-mcp/internal/omr"
	"github.com/ironsheep/omr-grader-mcp/internal/zones"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scenarioConfig lays one 3-question zone over the whole page.
func scenarioConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Layout.Zones = 1
	cfg.Layout.RowsPerZone = 3
	cfg.Zones.Strategy = config.StrategyTemplate
	cfg.Zones.Fallback = []config.TemplateRect{{X1: 0, Y1: 0, X2: 1, Y2: 1}}
	require.NoError(t, cfg.Validate())
	return cfg
}

var scenarioKey = omr.AnswerKey{1: "A", 2: "B", 3: "C"}

func scenarioDetections() []omr.Detection {
	return []omr.Detection{
		{Box: omr.Box{X1: 45, Y1: 45, X2: 55, Y2: 55}, Confidence: 0.95, ClassID: 0},
		{Box: omr.Box{X1: 45, Y1: 245, X2: 55, Y2: 255}, Confidence: 0.8, ClassID: 2},
	}
}

func blankSheet(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

func TestGradeImage_Scenario(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p, err := New(scenarioConfig(t), scenarioKey, detector.Static(scenarioDetections()), zap.New(core))
	require.NoError(t, err)

	res, err := p.GradeImage(context.Background(), "scenario.png", blankSheet(100, 300))
	require.NoError(t, err)

	assert.Equal(t, zones.SourceTemplate, res.ZoneSource)
	assert.Equal(t, []omr.Zone{{Index: 0, Rect: omr.Rect{Width: 100, Height: 300}, FirstQuestion: 1, LastQuestion: 3}}, res.Zones)
	assert.Len(t, res.Cells, 15)
	assert.NotEmpty(t, res.RunID)

	wantStates := []omr.QuestionState{
		{Question: 1, Kind: omr.Answered, Option: "A", Confidence: 0.95, Asserted: []omr.OptionConfidence{{Option: "A", Confidence: 0.95}}},
		{Question: 2, Kind: omr.Unanswered},
		{Question: 3, Kind: omr.Answered, Option: "C", Confidence: 0.8, Asserted: []omr.OptionConfidence{{Option: "C", Confidence: 0.8}}},
	}
	if diff := cmp.Diff(wantStates, res.States); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 2, res.Report.Score)
	assert.Equal(t, 3, res.Report.Total)
	statuses := []grading.Status{}
	for _, d := range res.Report.Details {
		statuses = append(statuses, d.Status)
	}
	assert.Equal(t, []grading.Status{grading.StatusCorrect, grading.StatusUnanswered, grading.StatusCorrect}, statuses)

	graded := logs.FilterMessage("sheet graded").All()
	require.Len(t, graded, 1)
	assert.Equal(t, int64(2), graded[0].ContextMap()["score"])
	assert.Equal(t, res.RunID, graded[0].ContextMap()["run_id"])
}

func TestGradeDetections_WarnsOnAnomalies(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	p, err := New(scenarioConfig(t), scenarioKey, nil, zap.New(core))
	require.NoError(t, err)

	dets := append(scenarioDetections(),
		omr.Detection{Box: omr.Box{X1: 45, Y1: 45, X2: 55, Y2: 55}, Confidence: 2},
		omr.Detection{Box: omr.Box{X1: 45, Y1: 145, X2: 55, Y2: 155}, Confidence: 0.5, ClassID: 1},
	)
	res, err := p.GradeDetections("noisy.png", blankSheet(100, 300), dets)
	require.NoError(t, err)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, 2, res.Warnings[0].Index)
	assert.Equal(t, 3, res.Report.Score)
	assert.Equal(t, 1, logs.FilterMessage("detection discarded").Len())
}

func TestGradeImage_Failures(t *testing.T) {
	cfg := scenarioConfig(t)

	t.Run("detector", func(t *testing.T) {
		failing := detector.Func(func(context.Context, string, image.Image) ([]omr.Detection, error) {
			return nil, errors.New("model crashed")
		})
		p, err := New(cfg, scenarioKey, failing, nil)
		require.NoError(t, err)

		res, err := p.GradeImage(context.Background(), "a.png", blankSheet(100, 300))
		assert.Nil(t, res)
		assert.ErrorIs(t, err, omr.ErrDetector)
		var se *omr.SheetError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, omr.StageDetect, se.Stage)
		assert.Equal(t, "a.png", se.Sheet)
	})

	t.Run("zones", func(t *testing.T) {
		p, err := New(cfg, scenarioKey, detector.Static(nil), nil)
		require.NoError(t, err)

		_, err = p.GradeImage(context.Background(), "empty.png", image.NewGray(image.Rect(0, 0, 0, 0)))
		assert.ErrorIs(t, err, omr.ErrZoneDetection)
	})

	t.Run("load", func(t *testing.T) {
		p, err := New(cfg, scenarioKey, detector.Static(nil), nil)
		require.NoError(t, err)

		_, err = p.GradeFile(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
		assert.ErrorIs(t, err, omr.ErrImageLoad)
	})
}

func TestNew_KeyMustCoverLayout(t *testing.T) {
	_, err := New(scenarioConfig(t), omr.AnswerKey{1: "A", 2: "B"}, nil, nil)
	assert.ErrorContains(t, err, "question 3")
}

func writeSheet(t *testing.T, dir, name string, dets string) string {
	t.Helper()
	path := filepath.Join(dir, name+".png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, blankSheet(100, 300)))
	require.NoError(t, f.Close())
	if dets != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+detector.JSONSuffix), []byte(dets), 0o644))
	}
	return path
}

func TestGradeBatch_FaultIsolation(t *testing.T) {
	dir := t.TempDir()
	good := `[{"box":[45,45,55,55],"confidence":0.95,"class_id":0},{"box":[45,245,55,255],"confidence":0.8,"class_id":2}]`
	ambiguous := `[{"box":[5,45,15,55],"confidence":0.9,"class_id":0},{"box":[25,45,35,55],"confidence":0.3,"class_id":1}]`

	garbage := filepath.Join(dir, "garbage.png")
	require.NoError(t, os.WriteFile(garbage, []byte{0x00, 0x01, 0x02}, 0o644))

	paths := []string{
		writeSheet(t, dir, "s1", good),
		writeSheet(t, dir, "s2", ""), // no sidecar
		garbage,
		writeSheet(t, dir, "s3", ambiguous),
		writeSheet(t, dir, "s4", good),
	}

	p, err := New(scenarioConfig(t), scenarioKey, detector.JSONSidecar{}, zap.NewNop())
	require.NoError(t, err)

	items := p.GradeBatch(context.Background(), paths, 3)
	require.Len(t, items, len(paths))
	for i, it := range items {
		assert.Equal(t, paths[i], it.Path)
	}

	assert.Equal(t, 2, items[0].Result.Report.Score)
	assert.ErrorIs(t, items[1].Err, omr.ErrDetector)
	assert.ErrorIs(t, items[2].Err, omr.ErrImageLoad)
	assert.Equal(t, 0, items[3].Result.Report.Score)
	assert.Equal(t, grading.StatusWrong, items[3].Result.Report.Details[0].Status)
	assert.Equal(t, 2, items[4].Result.Report.Score)

	summary := Summarize(items)
	assert.Equal(t, 5, summary.Sheets)
	assert.Equal(t, 3, summary.Graded)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, "detect", summary.Items[1].Stage)
	assert.Equal(t, "load", summary.Items[2].Stage)

	var buf bytes.Buffer
	require.NoError(t, summary.WriteJSON(&buf))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.EqualValues(t, 3, decoded["graded"])
}

func TestGradeBatch_Cancelled(t *testing.T) {
	dir := t.TempDir()
	paths := []string{writeSheet(t, dir, "s1", "[]"), writeSheet(t, dir, "s2", "[]")}

	p, err := New(scenarioConfig(t), scenarioKey, detector.JSONSidecar{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	items := p.GradeBatch(ctx, paths, 0)
	for _, it := range items {
		assert.ErrorIs(t, it.Err, context.Canceled)
		assert.Nil(t, it.Result)
	}
}
