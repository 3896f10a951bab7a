package render

import "github.com/ai-narray/core/internal/modules/deck"

const (
	// Long edge of the drawing surface. Both presets share it.
	longEdge  = 3840
	shortEdge = 2160

	// FrameRate the recording sink samples at.
	FrameRate = 30

	// Silence appended after each slide's narration.
	interSlidePadSeconds = 0.4
)

// SurfaceSize maps an aspect preset to the render surface dimensions.
func SurfaceSize(aspect deck.AspectRatio) (w, h int) {
	if aspect == deck.AspectPortrait {
		return shortEdge, longEdge
	}
	return longEdge, shortEdge
}

// Rect is a placement on the drawing surface.
type Rect struct {
	X, Y, W, H int
}

// FitRect letterboxes an image into the surface: scaled to fit while
// preserving aspect ratio, centered, background filled by the caller.
func FitRect(imgW, imgH, surfW, surfH int) Rect {
	if imgW <= 0 || imgH <= 0 || surfW <= 0 || surfH <= 0 {
		return Rect{}
	}

	scaleW := float64(surfW) / float64(imgW)
	scaleH := float64(surfH) / float64(imgH)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}

	w := int(float64(imgW) * scale)
	h := int(float64(imgH) * scale)
	return Rect{
		X: (surfW - w) / 2,
		Y: (surfH - h) / 2,
		W: w,
		H: h,
	}
}
