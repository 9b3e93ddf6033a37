package zones

import (
	"image"

	"github.com/ironsheep/omr-grader-mcp/internal/config"
	"github.com/ironsheep/omr-grader-mcp/internal/imaging"
	"github.com/ironsheep/omr-grader-mcp/internal/omr"
)

// minContourPixels discards edge fragments too small to outline a block.
const minContourPixels = 10

// ContourStrategy finds blocks as connected components of Canny edges.
//
// # Algorithm
//
//  1. Luminance conversion and Gaussian blur (BlurRadius)
//  2. Canny edge mask with hysteresis thresholds
//  3. Dilation by Dilate pixels, closing the gaps thinning leaves at corners
//  4. Contour finding: flood-fill groups 8-connected edge pixels
//  5. Bounding box of each contour of at least minContourPixels pixels,
//     snapped to the ink (luminance below InkLevel) it encloses
//
// Edges sit a pixel or two outside the shape that caused them, and dilation
// pushes them further; snapping restores the printed outline. A contour
// with no ink inside is shrunk back by Dilate instead.
//
// A printed box may yield two contours (outer and inner side of its
// border); the Detector's nesting pass keeps only the outer one.
type ContourStrategy struct {
	cfg config.ContourConfig
}

func (s *ContourStrategy) Name() config.Strategy { return config.StrategyContour }

func (s *ContourStrategy) Candidates(img image.Image) ([]omr.Rect, error) {
	b := img.Bounds()
	g := imaging.Smooth(imaging.Gray(img), s.cfg.BlurRadius)
	edges := imaging.EdgeMask(g, s.cfg.ThresholdLow, s.cfg.ThresholdHigh)
	edges = imaging.DilateMask(edges, s.cfg.Dilate)
	ink := imaging.InkMask(img, s.cfg.InkLevel)

	boxes := findContours(edges, b.Dx(), b.Dy())
	rects := make([]omr.Rect, 0, len(boxes))
	for _, c := range boxes {
		c = snapToInk(c, ink, s.cfg.Dilate)
		rects = append(rects, omr.Rect{
			X:      c.minX + b.Min.X,
			Y:      c.minY + b.Min.Y,
			Width:  c.maxX - c.minX + 1,
			Height: c.maxY - c.minY + 1,
		})
	}
	return rects, nil
}

// snapToInk shrinks a contour's box to the ink pixels inside it. Without
// ink it undoes the dilation margin, never collapsing below one pixel.
func snapToInk(c contour, ink [][]bool, dilate int) contour {
	snapped := contour{minX: c.maxX + 1, minY: c.maxY + 1, maxX: c.minX - 1, maxY: c.minY - 1, pixels: c.pixels}
	for y := c.minY; y <= c.maxY; y++ {
		for x := c.minX; x <= c.maxX; x++ {
			if !ink[y][x] {
				continue
			}
			snapped.minX = min(snapped.minX, x)
			snapped.maxX = max(snapped.maxX, x)
			snapped.minY = min(snapped.minY, y)
			snapped.maxY = max(snapped.maxY, y)
		}
	}
	if snapped.minX <= snapped.maxX {
		return snapped
	}

	if c.maxX-c.minX >= 2*dilate {
		c.minX += dilate
		c.maxX -= dilate
	}
	if c.maxY-c.minY >= 2*dilate {
		c.minY += dilate
		c.maxY -= dilate
	}
	return c
}

// contour is the bounding box and size of one connected edge component.
type contour struct {
	minX, minY, maxX, maxY int
	pixels                 int
}

type point struct{ x, y int }

// findContours finds connected components (contours) in a binary edge image.
//
// Uses flood-fill to group connected edge pixels into contours.
// Connectivity is 8-connected (includes diagonals).
func findContours(edges [][]bool, width, height int) []contour {
	visited := make([][]bool, height)
	for y := 0; y < height; y++ {
		visited[y] = make([]bool, width)
	}

	contours := make([]contour, 0)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if edges[y][x] && !visited[y][x] {
				c := floodFill(edges, visited, x, y, width, height)
				if c.pixels >= minContourPixels {
					contours = append(contours, c)
				}
			}
		}
	}
	return contours
}

// floodFill performs iterative flood-fill from a starting point.
//
// Uses a stack-based approach (not recursive) to avoid stack overflow
// on large contours.
func floodFill(edges, visited [][]bool, startX, startY, width, height int) contour {
	c := contour{minX: startX, minY: startY, maxX: startX, maxY: startY}
	stack := []point{{x: startX, y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.x < 0 || p.x >= width || p.y < 0 || p.y >= height {
			continue
		}
		if visited[p.y][p.x] || !edges[p.y][p.x] {
			continue
		}

		visited[p.y][p.x] = true
		c.pixels++
		if p.x < c.minX {
			c.minX = p.x
		}
		if p.x > c.maxX {
			c.maxX = p.x
		}
		if p.y < c.minY {
			c.minY = p.y
		}
		if p.y > c.maxY {
			c.maxY = p.y
		}

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, point{x: p.x + dx, y: p.y + dy})
			}
		}
	}
	return c
}
