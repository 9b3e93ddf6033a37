package omr

import (
	"fmt"
	"image"
)

// Rect is an axis-aligned rectangle in integer pixel coordinates.
type Rect struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// RectFromImage converts a stdlib rectangle (Min inclusive, Max exclusive).
func RectFromImage(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Image returns the rectangle as an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Area returns Width*Height.
func (r Rect) Area() int {
	return r.Width * r.Height
}

// Empty reports whether the rectangle has no interior.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Contains reports whether the point lies inside r (half-open on both axes).
func (r Rect) Contains(p Point) bool {
	return p.X >= float64(r.X) && p.X < float64(r.X+r.Width) &&
		p.Y >= float64(r.Y) && p.Y < float64(r.Y+r.Height)
}

// Encloses reports whether o lies entirely within r.
func (r Rect) Encloses(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y &&
		o.X+o.Width <= r.X+r.Width && o.Y+o.Height <= r.Y+r.Height
}

// Scale multiplies every coordinate by f, rounding to the nearest pixel.
func (r Rect) Scale(f float64) Rect {
	x1 := round(float64(r.X) * f)
	y1 := round(float64(r.Y) * f)
	x2 := round(float64(r.X+r.Width) * f)
	y2 := round(float64(r.Y+r.Height) * f)
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// Point is a sub-pixel position, used for detection centers.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is a detection bounding box given by its corners.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Center returns the midpoint of the box.
func (b Box) Center() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Span returns the half-open interval [lo, hi) occupied by part i when a
// length is divided into n equal parts starting at origin. Every caller that
// subdivides a zone uses this so that cell edges and assignment lookups agree
// bit for bit.
func Span(origin, length, i, n int) (lo, hi float64) {
	lo = float64(origin) + float64(i*length)/float64(n)
	hi = float64(origin) + float64((i+1)*length)/float64(n)
	return lo, hi
}

func round(v float64) int {
	if v < 0 {
		return -int(-v + 0.5)
	}
	return int(v + 0.5)
}
