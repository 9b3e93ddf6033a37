package omr

import (
	"errors"
	"fmt"
)

var (
	// ErrImageLoad means the sheet image could not be read or decoded.
	ErrImageLoad = errors.New("image load failure")

	// ErrZoneDetection means neither detection nor the fallback template
	// produced the configured number of zones.
	ErrZoneDetection = errors.New("zone detection failure")

	// ErrDetector means the external mark detector failed.
	ErrDetector = errors.New("detector failure")

	// ErrMalformedDetection marks a detection that was discarded. It is
	// recorded as a warning and never fails a sheet.
	ErrMalformedDetection = errors.New("malformed detection")
)

// Stage names the pipeline step a SheetError came from.
type Stage string

const (
	StageLoad   Stage = "load"
	StageZones  Stage = "zones"
	StageDetect Stage = "detect"
	StageGrade  Stage = "grade"
)

// SheetError is a fatal failure for one sheet.
type SheetError struct {
	Sheet string
	Stage Stage
	Err   error
}

func (e *SheetError) Error() string {
	return fmt.Sprintf("sheet %s: %s: %v", e.Sheet, e.Stage, e.Err)
}

func (e *SheetError) Unwrap() error {
	return e.Err
}
