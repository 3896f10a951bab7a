package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ai-narray/core/internal/modules/deck"
)

func TestSurfaceSize(t *testing.T) {
	w, h := SurfaceSize(deck.AspectLandscape)
	assert.Equal(t, 3840, w)
	assert.Equal(t, 2160, h)

	w, h = SurfaceSize(deck.AspectPortrait)
	assert.Equal(t, 2160, w)
	assert.Equal(t, 3840, h)
}

func TestFitRectLetterboxesWideImage(t *testing.T) {
	// Wider than the surface ratio: full width, bars above and below.
	r := FitRect(4000, 1000, 3840, 2160)
	assert.Equal(t, 3840, r.W)
	assert.Equal(t, 960, r.H)
	assert.Equal(t, 0, r.X)
	assert.Equal(t, 600, r.Y)
}

func TestFitRectPillarboxesTallImage(t *testing.T) {
	r := FitRect(1000, 2000, 3840, 2160)
	assert.Equal(t, 1080, r.W)
	assert.Equal(t, 2160, r.H)
	assert.Equal(t, 1380, r.X)
	assert.Equal(t, 0, r.Y)
}

func TestFitRectExactFit(t *testing.T) {
	r := FitRect(1920, 1080, 3840, 2160)
	assert.Equal(t, Rect{X: 0, Y: 0, W: 3840, H: 2160}, r)
}

func TestFitRectDegenerateInput(t *testing.T) {
	assert.Equal(t, Rect{}, FitRect(0, 100, 3840, 2160))
	assert.Equal(t, Rect{}, FitRect(100, 100, 0, 0))
}
