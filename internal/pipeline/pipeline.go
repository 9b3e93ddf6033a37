// Package pipeline runs one sheet through the grading core and runs batches
// of sheets concurrently.
//
// Per sheet: load, zones, grid, detect, resolve marks, resolve conflicts,
// grade. Each sheet is an isolated computation. Configuration, answer key
// and detector are shared read-only; a failing sheet never affects another.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ironsheep/omr-grader-mcp/internal/config"
	"github.com/ironsheep/omr-grader-mcp/internal/detector"
	"github.com/ironsheep/omr-grader-mcp/internal/grading"
	"github.com/ironsheep/omr-grader-mcp/internal/grid"
	"github.com/ironsheep/omr-grader-mcp/internal/imaging"
	"github.com/ironsheep/omr-grader-mcp/internal/marks"
	"github.com/ironsheep/omr-grader-mcp/internal/omr"
	"github.com/ironsheep/omr-grader-mcp/internal/zones"
)

// Result is everything computed for one sheet.
type Result struct {
	RunID  string `json:"run_id"`
	Sheet  string `json:"sheet"`
	Width  int    `json:"width"`
	Height int    `json:"height"`

	ZoneSource zones.Source `json:"zone_source"`
	Zones      []omr.Zone   `json:"zones"`
	Cells      []omr.Cell   `json:"-"`

	Detections     []omr.Detection     `json:"-"`
	Assigned       int                 `json:"assigned"`
	InvalidDropped int                 `json:"invalid_dropped"`
	Warnings       []marks.Warning     `json:"warnings,omitempty"`
	States         []omr.QuestionState `json:"-"`
	Report         *grading.Report     `json:"report"`
}

// Layout is the geometry of one sheet before any detections are used.
type Layout struct {
	Zones *zones.Result
	Cells []omr.Cell
}

// Pipeline grades sheets against one answer key. It is safe for concurrent
// use.
type Pipeline struct {
	cfg      *config.Config
	key      omr.AnswerKey
	detector detector.MarkDetector
	zones    *zones.Detector
	resolver *marks.Resolver
	grader   *grading.Grader
	log      *zap.Logger
}

// New builds a pipeline. The key must cover every question of the layout.
func New(cfg *config.Config, key omr.AnswerKey, det detector.MarkDetector, log *zap.Logger) (*Pipeline, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := key.Covers(cfg.Layout.Questions()); err != nil {
		return nil, err
	}
	zd, err := zones.NewDetector(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:      cfg,
		key:      key,
		detector: det,
		zones:    zd,
		resolver: marks.NewResolver(cfg),
		grader:   grading.NewGrader(cfg),
		log:      log.Named("pipeline"),
	}, nil
}

// Layout detects zones and maps their cells.
func (p *Pipeline) Layout(img image.Image) (*Layout, error) {
	zr, err := p.zones.Detect(img)
	if err != nil {
		return nil, err
	}
	cells, err := grid.MapAll(zr.Zones, p.cfg.Layout.Options)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", omr.ErrZoneDetection, err)
	}
	return &Layout{Zones: zr, Cells: cells}, nil
}

// GradeFile loads and grades the image at path.
func (p *Pipeline) GradeFile(ctx context.Context, path string) (*Result, error) {
	img, err := imaging.Load(path)
	if err != nil {
		return nil, &omr.SheetError{Sheet: path, Stage: omr.StageLoad, Err: err}
	}
	return p.GradeImage(ctx, path, img)
}

// GradeImage grades a decoded sheet, asking the pipeline's detector for
// marks.
func (p *Pipeline) GradeImage(ctx context.Context, name string, img image.Image) (*Result, error) {
	layout, err := p.Layout(img)
	if err != nil {
		return nil, &omr.SheetError{Sheet: name, Stage: omr.StageZones, Err: err}
	}

	if p.detector == nil {
		return nil, &omr.SheetError{Sheet: name, Stage: omr.StageDetect, Err: fmt.Errorf("%w: no detector configured", omr.ErrDetector)}
	}
	dets, err := p.detector.Detect(ctx, name, img)
	if err != nil {
		if !errors.Is(err, omr.ErrDetector) {
			err = fmt.Errorf("%w: %w", omr.ErrDetector, err)
		}
		return nil, &omr.SheetError{Sheet: name, Stage: omr.StageDetect, Err: err}
	}

	return p.grade(name, img.Bounds(), layout, dets)
}

// GradeDetections grades a decoded sheet with detections the caller already
// has.
func (p *Pipeline) GradeDetections(name string, img image.Image, dets []omr.Detection) (*Result, error) {
	layout, err := p.Layout(img)
	if err != nil {
		return nil, &omr.SheetError{Sheet: name, Stage: omr.StageZones, Err: err}
	}
	return p.grade(name, img.Bounds(), layout, dets)
}

func (p *Pipeline) grade(name string, bounds image.Rectangle, layout *Layout, dets []omr.Detection) (*Result, error) {
	runID := uuid.NewString()
	log := p.log.With(zap.String("run_id", runID), zap.String("sheet", name))

	resolved := p.resolver.Resolve(marks.Sheet{
		Bounds: bounds,
		Zones:  layout.Zones.Zones,
		Cells:  layout.Cells,
	}, dets)
	for _, w := range resolved.Warnings {
		log.Warn("detection discarded",
			zap.String("kind", string(w.Kind)),
			zap.Int("index", w.Index),
			zap.String("reason", w.Reason))
	}

	states := grading.Resolve(resolved.Evidence, p.cfg.Layout.Questions())
	report, err := p.grader.Grade(states, p.key)
	if err != nil {
		return nil, &omr.SheetError{Sheet: name, Stage: omr.StageGrade, Err: err}
	}

	log.Info("sheet graded",
		zap.Int("score", report.Score),
		zap.Int("total", report.Total),
		zap.String("zone_source", string(layout.Zones.Source)),
		zap.Int("detections", len(dets)),
		zap.Int("warnings", len(resolved.Warnings)))

	return &Result{
		RunID:          runID,
		Sheet:          name,
		Width:          bounds.Dx(),
		Height:         bounds.Dy(),
		ZoneSource:     layout.Zones.Source,
		Zones:          layout.Zones.Zones,
		Cells:          layout.Cells,
		Detections:     dets,
		Assigned:       resolved.Assigned,
		InvalidDropped: resolved.InvalidDropped,
		Warnings:       resolved.Warnings,
		States:         states,
		Report:         report,
	}, nil
}
