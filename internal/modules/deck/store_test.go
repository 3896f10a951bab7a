package deck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDeck(t *testing.T, s *Store, slides int) *Deck {
	t.Helper()
	d := s.Create(AspectLandscape, "informative", "neutral", "nova", 1.0)
	for i := 0; i < slides; i++ {
		_, err := s.AppendSlide(d.ID, "", "image/png")
		require.NoError(t, err)
	}
	got, err := s.Get(d.ID)
	require.NoError(t, err)
	return got
}

func TestScriptEditClearsAudio(t *testing.T) {
	s := NewStore()
	d := newTestDeck(t, s, 1)
	sl := d.Slides[0]

	require.NoError(t, s.SetScript(d.ID, sl.ID, "first take"))
	require.NoError(t, s.SetAudio(d.ID, sl.ID, []byte{1, 2, 3, 4}))

	got, err := s.Get(d.ID)
	require.NoError(t, err)
	require.True(t, got.Slides[0].HasAudio)

	require.NoError(t, s.SetScript(d.ID, sl.ID, "second take"))

	got, err = s.Get(d.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Slides[0].Audio)
	assert.False(t, got.Slides[0].HasAudio)
	assert.Equal(t, "second take", got.Slides[0].Script)
}

func TestRemoveSlideRenumbers(t *testing.T) {
	s := NewStore()
	d := newTestDeck(t, s, 3)

	require.NoError(t, s.RemoveSlide(d.ID, d.Slides[1].ID))

	got, err := s.Get(d.ID)
	require.NoError(t, err)
	require.Len(t, got.Slides, 2)
	assert.Equal(t, 0, got.Slides[0].Position)
	assert.Equal(t, 1, got.Slides[1].Position)
	assert.Equal(t, d.Slides[0].ID, got.Slides[0].ID)
	assert.Equal(t, d.Slides[2].ID, got.Slides[1].ID)
}

func TestGuardsRejectConcurrentRuns(t *testing.T) {
	s := NewStore()
	d := newTestDeck(t, s, 1)

	require.NoError(t, s.TryBeginScripting(d.ID))
	assert.ErrorIs(t, s.TryBeginScripting(d.ID), ErrBusy)

	// Independent guards do not interfere.
	require.NoError(t, s.TryBeginVoicing(d.ID))
	require.NoError(t, s.TryBeginRendering(d.ID))

	s.EndScripting(d.ID)
	assert.NoError(t, s.TryBeginScripting(d.ID))
}

func TestStepsPredicates(t *testing.T) {
	s := NewStore()
	d := newTestDeck(t, s, 2)

	steps := mustGet(t, s, d.ID).steps()
	assert.True(t, steps.HasSlides)
	assert.False(t, steps.AllScripts)
	assert.False(t, steps.Renderable)

	for _, sl := range d.Slides {
		require.NoError(t, s.SetScript(d.ID, sl.ID, "narration"))
		require.NoError(t, s.SetAudio(d.ID, sl.ID, []byte{0, 0}))
	}

	steps = mustGet(t, s, d.ID).steps()
	assert.True(t, steps.AllScripts)
	assert.True(t, steps.AllAudio)
	assert.True(t, steps.Renderable)

	require.NoError(t, s.TryBeginRendering(d.ID))
	steps = mustGet(t, s, d.ID).steps()
	assert.False(t, steps.Renderable)
}

func TestSnapshotIsolation(t *testing.T) {
	s := NewStore()
	d := newTestDeck(t, s, 1)

	snap := mustGet(t, s, d.ID)
	snap.Slides[0].Script = "mutated locally"

	got := mustGet(t, s, d.ID)
	assert.Empty(t, got.Slides[0].Script)
}

func mustGet(t *testing.T, s *Store, id string) *Deck {
	t.Helper()
	d, err := s.Get(id)
	require.NoError(t, err)
	return d
}
