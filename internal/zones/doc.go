// Package zones finds the answer blocks on a sheet image.
//
// A Detector runs one configured Strategy over a downscaled copy of the page,
// maps the candidate rectangles back to source pixels, screens them with a
// Filter, discards candidates nested inside other candidates, keeps the
// top-K by the configured selection key and orders the survivors into
// canonical order. Zone i in canonical order owns questions
// i*rows+1 .. (i+1)*rows.
//
// # Strategies
//
//   - contour: luminance, Gaussian blur, Canny edges, connected edge
//     components, bounding rectangles.
//   - projection: ink mask, horizontal projection profile to find row bands,
//     then a vertical profile within each band to split it into blocks.
//   - cluster: ink pixels grouped by 1-D k-means along the axis zones are
//     laid out on, each cluster bounded by trimmed quantiles.
//   - template: no image analysis; the fallback template is the answer.
//
// # Fallback
//
// Whenever fewer than K candidates survive, the whole fallback template is
// substituted: K rectangles given as fractions of the image size, converted
// by multiplication and rounding. This path depends only on the image
// dimensions. Detection fails with omr.ErrZoneDetection only when the image
// has no area or the template rounds to an empty rectangle.
package zones
