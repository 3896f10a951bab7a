package deck

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDeckNotFound  = errors.New("deck not found")
	ErrSlideNotFound = errors.New("slide not found")
	ErrBusy          = errors.New("deck has a generation already in progress")
)

// Store keeps decks in memory, keyed by deck ID. All updates are
// per-slide keyed writes under one lock, so concurrent audio workers
// touching different slides never clobber each other.
type Store struct {
	mu    sync.RWMutex
	decks map[string]*Deck
}

func NewStore() *Store {
	return &Store{decks: make(map[string]*Deck)}
}

func (s *Store) Create(aspect AspectRatio, style, tone, voice string, speed float64) *Deck {
	now := time.Now()
	d := &Deck{
		ID:        uuid.NewString(),
		Aspect:    aspect,
		Style:     style,
		Tone:      tone,
		Voice:     voice,
		Speed:     speed,
		Slides:    []*Slide{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.decks[d.ID] = d
	s.mu.Unlock()
	return d
}

// Get returns a snapshot of the deck. Audio payloads are shared (they
// are write-once per synthesis), everything else is copied.
func (s *Store) Get(id string) (*Deck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decks[id]
	if !ok {
		return nil, ErrDeckNotFound
	}
	return snapshot(d), nil
}

// Delete removes a deck and its slide images from disk.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	d, ok := s.decks[id]
	if ok {
		delete(s.decks, id)
	}
	s.mu.Unlock()
	if !ok {
		return ErrDeckNotFound
	}
	for _, sl := range d.Slides {
		if sl.ImagePath != "" {
			_ = os.Remove(sl.ImagePath)
		}
	}
	return nil
}

func (s *Store) AppendSlide(deckID, imagePath, mimeType string) (*Slide, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decks[deckID]
	if !ok {
		return nil, ErrDeckNotFound
	}
	sl := &Slide{
		ID:        uuid.NewString(),
		Position:  len(d.Slides),
		ImagePath: imagePath,
		MimeType:  mimeType,
		CreatedAt: time.Now(),
	}
	d.Slides = append(d.Slides, sl)
	d.UpdatedAt = time.Now()
	return copySlide(sl), nil
}

// RemoveSlide drops one slide and renumbers the remainder.
func (s *Store) RemoveSlide(deckID, slideID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decks[deckID]
	if !ok {
		return ErrDeckNotFound
	}
	for i, sl := range d.Slides {
		if sl.ID != slideID {
			continue
		}
		if sl.ImagePath != "" {
			_ = os.Remove(sl.ImagePath)
		}
		d.Slides = append(d.Slides[:i], d.Slides[i+1:]...)
		for j := i; j < len(d.Slides); j++ {
			d.Slides[j].Position = j
		}
		d.UpdatedAt = time.Now()
		return nil
	}
	return ErrSlideNotFound
}

// SetScript writes narration text into one slide. A script change
// invalidates any audio synthesized for the previous text, so the
// audio payload is always cleared here.
func (s *Store) SetScript(deckID, slideID, script string) error {
	return s.mutateSlide(deckID, slideID, func(sl *Slide) {
		sl.Script = script
		sl.Audio = nil
		sl.HasAudio = false
		sl.ScriptPending = false
	})
}

func (s *Store) SetAudio(deckID, slideID string, audio []byte) error {
	return s.mutateSlide(deckID, slideID, func(sl *Slide) {
		sl.Audio = audio
		sl.HasAudio = len(audio) > 0
		sl.AudioPending = false
	})
}

func (s *Store) SetScriptPending(deckID, slideID string, pending bool) error {
	return s.mutateSlide(deckID, slideID, func(sl *Slide) {
		sl.ScriptPending = pending
	})
}

func (s *Store) SetAudioPending(deckID, slideID string, pending bool) error {
	return s.mutateSlide(deckID, slideID, func(sl *Slide) {
		sl.AudioPending = pending
	})
}

func (s *Store) UpdateConfig(deckID string, fn func(d *Deck)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decks[deckID]
	if !ok {
		return ErrDeckNotFound
	}
	fn(d)
	d.UpdatedAt = time.Now()
	return nil
}

func (s *Store) mutateSlide(deckID, slideID string, fn func(*Slide)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decks[deckID]
	if !ok {
		return ErrDeckNotFound
	}
	for _, sl := range d.Slides {
		if sl.ID == slideID {
			fn(sl)
			d.UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrSlideNotFound
}

// Re-entrancy guards. Generation and render runs refuse to start while
// a sibling run of the same kind is in flight; already-issued work is
// never cancelled mid-flight.

func (s *Store) TryBeginScripting(deckID string) error {
	return s.tryBegin(deckID, func(d *Deck) *bool { return &d.scripting })
}

func (s *Store) EndScripting(deckID string) {
	s.end(deckID, func(d *Deck) *bool { return &d.scripting })
}

func (s *Store) TryBeginVoicing(deckID string) error {
	return s.tryBegin(deckID, func(d *Deck) *bool { return &d.voicing })
}

func (s *Store) EndVoicing(deckID string) {
	s.end(deckID, func(d *Deck) *bool { return &d.voicing })
}

func (s *Store) TryBeginRendering(deckID string) error {
	return s.tryBegin(deckID, func(d *Deck) *bool { return &d.rendering })
}

func (s *Store) EndRendering(deckID string) {
	s.end(deckID, func(d *Deck) *bool { return &d.rendering })
}

func (s *Store) tryBegin(deckID string, flag func(*Deck) *bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decks[deckID]
	if !ok {
		return ErrDeckNotFound
	}
	f := flag(d)
	if *f {
		return ErrBusy
	}
	*f = true
	return nil
}

func (s *Store) end(deckID string, flag func(*Deck) *bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.decks[deckID]; ok {
		*flag(d) = false
	}
}

// SweepIdle removes decks untouched for longer than maxAge. Decks
// with a generation or render in flight are never swept. Returns the
// number of decks removed.
func (s *Store) SweepIdle(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	expired := make([]*Deck, 0)
	for id, d := range s.decks {
		if d.scripting || d.voicing || d.rendering {
			continue
		}
		if d.UpdatedAt.Before(cutoff) {
			expired = append(expired, d)
			delete(s.decks, id)
		}
	}
	s.mu.Unlock()

	for _, d := range expired {
		for _, sl := range d.Slides {
			if sl.ImagePath != "" {
				_ = os.Remove(sl.ImagePath)
			}
		}
	}
	return len(expired)
}

func snapshot(d *Deck) *Deck {
	cp := *d
	cp.Slides = make([]*Slide, len(d.Slides))
	for i, sl := range d.Slides {
		cp.Slides[i] = copySlide(sl)
	}
	return &cp
}

func copySlide(sl *Slide) *Slide {
	cp := *sl
	return &cp
}
