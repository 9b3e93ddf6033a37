// Package omr holds the data model shared by every stage of sheet grading.
//
// The types here carry no behavior beyond simple geometry helpers. Stages
// exchange them by value and never mutate what they receive:
//
//	image -> []Zone -> []Cell (per zone) -> evidence -> []QuestionState -> report
//
// # Coordinate System
//
// All rectangles are in absolute image pixel coordinates with (0,0) at the
// top-left corner. Containment is half-open: a point (x, y) lies inside a
// rectangle when X <= x < X+Width and Y <= y < Y+Height. Adjacent zones, rows
// and columns therefore never both claim a point on their shared edge.
//
// # Failures
//
// The sentinel errors in this package classify every failure a sheet can
// raise. Wrapped errors keep the sentinel reachable through errors.Is.
package omr
