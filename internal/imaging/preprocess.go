package imaging

import (
	"image"
	"image/draw"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"
)

// Downscale shrinks img to the given width, preserving aspect ratio, and
// returns the factor that maps work coordinates back to source coordinates.
//
// Images already at or below width, or a width of zero, are returned as-is
// with factor 1.
func Downscale(img image.Image, width int) (image.Image, float64) {
	srcWidth := img.Bounds().Dx()
	if width <= 0 || srcWidth <= width {
		return img, 1.0
	}
	small := imaging.Resize(img, width, 0, imaging.Box)
	return small, float64(srcWidth) / float64(small.Bounds().Dx())
}

// Gray converts an image to single-channel luminance with the bounds of img.
func Gray(img image.Image) *image.Gray {
	return toGray(effect.Grayscale(img), img.Bounds())
}

// Smooth applies a Gaussian blur of the given radius to a grayscale image.
// A radius of zero or less returns the input unchanged.
func Smooth(g *image.Gray, radius float64) *image.Gray {
	if radius <= 0 {
		return g
	}
	return toGray(blur.Gaussian(g, radius), g.Bounds())
}

// DilateMask grows every true pixel of a [y][x] mask into a square of side
// 2·radius+1. A radius of zero or less returns the mask unchanged.
func DilateMask(mask [][]bool, radius int) [][]bool {
	if radius <= 0 || len(mask) == 0 || len(mask[0]) == 0 {
		return mask
	}
	h, w := len(mask), len(mask[0])
	src := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask[y][x] {
				src.Pix[y*src.Stride+x] = 0xff
			}
		}
	}

	grown := effect.Dilate(src, float64(radius))
	out := make([][]bool, h)
	for y := 0; y < h; y++ {
		out[y] = make([]bool, w)
		for x := 0; x < w; x++ {
			out[y][x] = grown.Pix[y*grown.Stride+x*4] != 0
		}
	}
	return out
}

// toGray copies the luminance of an RGBA result (where R=G=B) into a Gray
// image with the given bounds.
func toGray(src *image.RGBA, bounds image.Rectangle) *image.Gray {
	g := image.NewGray(bounds)
	draw.Draw(g, bounds, src, src.Bounds().Min, draw.Src)
	return g
}

// InkMask binarizes an image: true where luminance is below level.
// The mask is indexed [y][x] relative to the image origin.
func InkMask(img image.Image, level uint8) [][]bool {
	bin := segment.Threshold(img, level)
	b := bin.Bounds()
	mask := make([][]bool, b.Dy())
	for y := 0; y < b.Dy(); y++ {
		mask[y] = make([]bool, b.Dx())
		for x := 0; x < b.Dx(); x++ {
			// Threshold paints pixels at or above level white.
			mask[y][x] = bin.GrayAt(x+b.Min.X, y+b.Min.Y).Y == 0
		}
	}
	return mask
}
