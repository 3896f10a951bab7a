package narration

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrEmptyScript = errors.New("generated script is empty")
	ErrBatchParse  = errors.New("batch script parsing failed")
	ErrNoAudioData = errors.New("no audio data received")
	ErrNoProvider  = errors.New("no enabled AI provider configured")
)

// Image is one slide image ready for a generation request.
type Image struct {
	Data     []byte
	MimeType string
}

// Client performs the network-bound generation operations. Each call
// resolves credentials fresh, so keys changed mid-session take effect
// on the next call without a restart.
type Client interface {
	// GenerateScript writes narration text for one image. The result
	// is trimmed and guaranteed non-empty.
	GenerateScript(ctx context.Context, img Image, stylePrompt, toneLabel string) (string, error)
	// GenerateScriptsBatch writes one narration per image, returned in
	// submission order regardless of how the service ordered them.
	GenerateScriptsBatch(ctx context.Context, imgs []Image, stylePrompt, toneLabel string) ([]string, error)
	// GenerateSpeech synthesizes raw 16-bit 24kHz mono PCM for text.
	GenerateSpeech(ctx context.Context, text, voice string) ([]byte, error)
	// Probe issues a minimal generation call to check the credential.
	Probe(ctx context.Context) error
}

// SlideResult is the per-slide outcome of a batch orchestration. One
// slide failing never aborts its siblings, so callers get the full
// picture instead of inferring failures from unchanged state.
type SlideResult struct {
	SlideID string `json:"slideId"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

func okResult(slideID string) SlideResult {
	return SlideResult{SlideID: slideID, OK: true}
}

func failedResult(slideID string, err error) SlideResult {
	return SlideResult{SlideID: slideID, Error: err.Error()}
}

// CredentialStatus is the session-wide connectivity flag the shell
// shows. Any orchestrator call that hits the invalid-credential
// condition flips it to invalid; a successful probe restores it.
type CredentialStatus struct {
	mu    sync.RWMutex
	valid bool
	known bool
}

func NewCredentialStatus() *CredentialStatus {
	return &CredentialStatus{}
}

func (s *CredentialStatus) Invalidate() {
	s.mu.Lock()
	s.valid, s.known = false, true
	s.mu.Unlock()
}

func (s *CredentialStatus) MarkValid() {
	s.mu.Lock()
	s.valid, s.known = true, true
	s.mu.Unlock()
}

// Snapshot returns (valid, known). known is false until the first
// probe or generation call settles.
func (s *CredentialStatus) Snapshot() (bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.valid, s.known
}
