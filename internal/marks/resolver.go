// Package marks assigns detector marks to question/option slots.
//
// A detection belongs to the zone containing its box center, and to the cell
// of that zone containing the center. The option comes either from the
// detection's class label or from the cell's column, per configuration.
// Per (question, option) only the highest confidence is kept; distinct
// options on one question all survive so that ambiguity can be seen later.
//
// Resolve is a pure function of its inputs. Permuting the detection list
// changes only the order of warnings, never the evidence.
package marks

import (
	"fmt"
	"image"
	"math"

	"github.com/ironsheep/omr-grader-mcp/internal/config"
	"github.com/ironsheep/omr-grader-mcp/internal/omr"
)

// WarningKind classifies a discarded detection.
type WarningKind string

const (
	// WarnMalformed: bad confidence, inverted or out-of-image box, or an
	// unknown class under the class policy.
	WarnMalformed WarningKind = "malformed"

	// WarnBelowThreshold: confidence under marks.min_confidence.
	WarnBelowThreshold WarningKind = "below_threshold"

	// WarnUnassigned: the center lies outside every zone.
	WarnUnassigned WarningKind = "unassigned"
)

// Warning records one detection that did not become evidence.
type Warning struct {
	Kind   WarningKind `json:"kind"`
	Index  int         `json:"index"` // position in the detection list
	Reason string      `json:"reason"`
	Err    error       `json:"-"`
}

// Result is the resolver output for one sheet.
type Result struct {
	Evidence omr.Evidence `json:"evidence"`
	Warnings []Warning    `json:"warnings,omitempty"`

	// Assigned counts detections recorded as evidence. InvalidDropped counts
	// INVALID marks discarded under the drop policy.
	Assigned       int `json:"assigned"`
	InvalidDropped int `json:"invalid_dropped"`
}

// Resolver holds the immutable assignment policy. It is safe for
// concurrent use.
type Resolver struct {
	cfg     config.MarksConfig
	options map[omr.Option]bool
}

// NewResolver builds a resolver from a validated configuration.
func NewResolver(cfg *config.Config) *Resolver {
	options := make(map[omr.Option]bool, len(cfg.Layout.Options))
	for _, o := range cfg.Layout.Options {
		options[o] = true
	}
	return &Resolver{cfg: cfg.Marks, options: options}
}

// Sheet is the fixed geometry detections are resolved against.
type Sheet struct {
	Bounds image.Rectangle
	Zones  []omr.Zone
	Cells  []omr.Cell
}

// Resolve turns detections into per-question evidence.
func (r *Resolver) Resolve(sheet Sheet, detections []omr.Detection) *Result {
	byZone := make(map[int][]omr.Cell, len(sheet.Zones))
	for _, c := range sheet.Cells {
		byZone[c.Zone] = append(byZone[c.Zone], c)
	}

	res := &Result{Evidence: make(omr.Evidence)}
	for i, d := range detections {
		if err := r.check(d, sheet.Bounds); err != nil {
			res.warn(WarnMalformed, i, err)
			continue
		}
		if d.Confidence < r.cfg.MinConfidence {
			res.warn(WarnBelowThreshold, i, fmt.Errorf("confidence %g below minimum %g", d.Confidence, r.cfg.MinConfidence))
			continue
		}

		center := d.Box.Center()
		cell, ok := locate(sheet.Zones, byZone, center)
		if !ok {
			res.warn(WarnUnassigned, i, fmt.Errorf("center (%g,%g) is outside every zone", center.X, center.Y))
			continue
		}

		label, _ := r.cfg.Label(d.ClassID)
		opt := cell.Option
		if label == omr.Invalid {
			if r.cfg.InvalidPolicy == config.InvalidDrop {
				res.InvalidDropped++
				continue
			}
			opt = omr.Invalid
		} else if r.cfg.Policy == config.OptionByClass {
			opt = label
		}

		res.Evidence.Add(cell.Question, opt, d.Confidence)
		res.Assigned++
	}
	return res
}

func (res *Result) warn(kind WarningKind, index int, err error) {
	res.Warnings = append(res.Warnings, Warning{Kind: kind, Index: index, Reason: err.Error(), Err: err})
}

// check reports why a detection cannot be used, wrapping
// omr.ErrMalformedDetection.
func (r *Resolver) check(d omr.Detection, bounds image.Rectangle) error {
	b := d.Box
	for _, v := range []float64{b.X1, b.Y1, b.X2, b.Y2, d.Confidence} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value in %+v", omr.ErrMalformedDetection, d)
		}
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("%w: confidence %g outside [0,1]", omr.ErrMalformedDetection, d.Confidence)
	}
	if b.X2 < b.X1 || b.Y2 < b.Y1 {
		return fmt.Errorf("%w: inverted box (%g,%g,%g,%g)", omr.ErrMalformedDetection, b.X1, b.Y1, b.X2, b.Y2)
	}
	if b.X1 < float64(bounds.Min.X) || b.Y1 < float64(bounds.Min.Y) ||
		b.X2 > float64(bounds.Max.X) || b.Y2 > float64(bounds.Max.Y) {
		return fmt.Errorf("%w: box (%g,%g,%g,%g) outside image %v", omr.ErrMalformedDetection, b.X1, b.Y1, b.X2, b.Y2, bounds)
	}

	label, known := r.cfg.Label(d.ClassID)
	if r.cfg.Policy == config.OptionByClass && (!known || (label != omr.Invalid && !r.options[label])) {
		return fmt.Errorf("%w: class %d has no option label", omr.ErrMalformedDetection, d.ClassID)
	}
	return nil
}

// locate finds the cell containing p: first the zone, then the cell within
// it. Cells tile their zone exactly, so a point inside a zone always has a
// cell.
func locate(zones []omr.Zone, byZone map[int][]omr.Cell, p omr.Point) (omr.Cell, bool) {
	for _, z := range zones {
		if !z.Rect.Contains(p) {
			continue
		}
		for _, c := range byZone[z.Index] {
			if c.Contains(p) {
				return c, true
			}
		}
		return omr.Cell{}, false
	}
	return omr.Cell{}, false
}
