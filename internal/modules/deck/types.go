package deck

import "time"

// AspectRatio is one of two fixed presentation presets.
type AspectRatio string

const (
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
)

func (a AspectRatio) Valid() bool {
	return a == AspectLandscape || a == AspectPortrait
}

// Speed presets for narrated playback. Any other multiplier is rejected
// at the API boundary.
var SpeedPresets = []float64{0.8, 1.0, 1.2}

func ValidSpeed(v float64) bool {
	for _, s := range SpeedPresets {
		if s == v {
			return true
		}
	}
	return false
}

// Slide is one image plus its narration and synthesized audio.
type Slide struct {
	ID        string    `json:"id"`
	Position  int       `json:"position"`
	ImagePath string    `json:"-"`
	MimeType  string    `json:"mimeType"`
	Script    string    `json:"script"`
	// Audio holds raw signed 16-bit little-endian PCM at 24kHz mono.
	// It is cleared whenever Script changes, so a non-empty value
	// always matches the current script text.
	Audio         []byte    `json:"-"`
	HasAudio      bool      `json:"hasAudio"`
	ScriptPending bool      `json:"scriptPending"`
	AudioPending  bool      `json:"audioPending"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Deck is one wizard session: an ordered slide list plus the
// configuration the generation and render stages read.
type Deck struct {
	ID        string      `json:"id"`
	Aspect    AspectRatio `json:"aspect"`
	Style     string      `json:"style"`
	Tone      string      `json:"tone"`
	Voice     string      `json:"voice"`
	Speed     float64     `json:"speed"`
	Slides    []*Slide    `json:"slides"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`

	scripting bool
	voicing   bool
	rendering bool
}

// Steps reports the wizard step completion predicates for a deck.
type Steps struct {
	HasSlides  bool `json:"hasSlides"`
	AllScripts bool `json:"allScripts"`
	AllAudio   bool `json:"allAudio"`
	Renderable bool `json:"renderable"`
}

func (d *Deck) steps() Steps {
	s := Steps{HasSlides: len(d.Slides) > 0}
	if !s.HasSlides {
		return s
	}
	s.AllScripts = true
	s.AllAudio = true
	for _, sl := range d.Slides {
		if sl.Script == "" {
			s.AllScripts = false
		}
		if len(sl.Audio) == 0 {
			s.AllAudio = false
		}
	}
	s.Renderable = s.AllScripts && s.AllAudio && !d.rendering
	return s
}
