// Package imaging provides the raster plumbing for sheet grading.
//
// This package loads sheet images (PNG, JPEG, GIF, TIFF, BMP, WebP), caches
// them for the tool server, and prepares them for zone detection: downscaling
// to a working resolution, luminance conversion, Gaussian smoothing,
// binarization into ink masks, and Canny edge extraction. It also crops zones
// out of a sheet for manual review.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - Masks returned as [][]bool are indexed [y][x] relative to the image's
//     Bounds().Min, so callers working with sub-images must add the offset.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Individual image operations
// are stateless and can be called concurrently on different images.
//
// # Error Handling
//
// Load and ImageCache.Load wrap every failure in omr.ErrImageLoad so callers
// can classify it with errors.Is.
package imaging
