package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ai-narray/core/internal/modules/deck"
	"github.com/ai-narray/core/internal/pkg/pcm"
	"github.com/ai-narray/core/internal/pkg/taskqueue"
)

const (
	TaskTypeRender = "render"

	interSlidePad = 400 * time.Millisecond
)

// ErrNotReady is returned when a render is requested before every
// slide carries a script and audio.
var ErrNotReady = errors.New("deck is not ready to render")

// TaskQueue is the slice of the task service the compositor needs.
type TaskQueue interface {
	Enqueue(ctx context.Context, taskType string, payload interface{}, dedupKey string) (*taskqueue.Task, bool, error)
	SetProgress(ctx context.Context, id string, value float64) error
	UpdateStatus(ctx context.Context, id string, status taskqueue.TaskStatus, errMsg string) error
}

// Uploader pushes a finished artifact to remote storage.
type Uploader interface {
	Upload(ctx context.Context, objectKey string, payload []byte, contentType string) (string, error)
}

// Artifact is one finished render.
type Artifact struct {
	DeckID    string    `json:"deckId"`
	Path      string    `json:"-"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	RemoteURL string    `json:"remoteUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Compositor turns a fully voiced deck into a video artifact: one
// sustained frame per slide, held for the speed-adjusted narration
// length, recorded strictly in slide order.
type Compositor struct {
	store        *deck.Store
	queue        TaskQueue
	newSink      SinkFactory
	artifactsDir string
	uploader     Uploader
	logger       *zap.Logger

	mu        sync.RWMutex
	artifacts map[string]*Artifact
}

func NewCompositor(store *deck.Store, queue TaskQueue, newSink SinkFactory, artifactsDir string, uploader Uploader, logger *zap.Logger) *Compositor {
	return &Compositor{
		store:        store,
		queue:        queue,
		newSink:      newSink,
		artifactsDir: artifactsDir,
		uploader:     uploader,
		logger:       logger,
		artifacts:    make(map[string]*Artifact),
	}
}

type renderTaskPayload struct {
	DeckID string `json:"deckId"`
}

// StartRender gates on readiness, enqueues the run as a background
// task, and returns immediately.
func (c *Compositor) StartRender(ctx context.Context, deckID string) (*taskqueue.Task, error) {
	d, err := c.store.Get(deckID)
	if err != nil {
		return nil, err
	}
	if len(d.Slides) == 0 {
		return nil, ErrNotReady
	}
	for _, sl := range d.Slides {
		if sl.Script == "" || len(sl.Audio) == 0 {
			return nil, ErrNotReady
		}
	}

	if err := c.store.TryBeginRendering(deckID); err != nil {
		return nil, err
	}

	task, created, err := c.queue.Enqueue(ctx, TaskTypeRender, renderTaskPayload{DeckID: deckID}, TaskTypeRender+":"+deckID)
	if err != nil {
		c.store.EndRendering(deckID)
		return nil, err
	}
	if !created {
		c.store.EndRendering(deckID)
		return task, nil
	}

	go c.run(task.ID, deckID)
	return task, nil
}

func (c *Compositor) run(taskID, deckID string) {
	ctx := context.Background()
	defer c.store.EndRendering(deckID)

	_ = c.queue.UpdateStatus(ctx, taskID, taskqueue.TaskRunning, "")

	artifact, err := c.render(ctx, taskID, deckID)
	if err != nil {
		c.logger.Error("render failed",
			zap.String("deck", deckID),
			zap.Error(err))
		// One generic user-facing error, no partial artifact.
		_ = c.queue.UpdateStatus(ctx, taskID, taskqueue.TaskFailed, "video generation failed")
		return
	}

	c.mu.Lock()
	c.artifacts[deckID] = artifact
	c.mu.Unlock()

	_ = c.queue.UpdateStatus(ctx, taskID, taskqueue.TaskCompleted, "")
}

func (c *Compositor) render(ctx context.Context, taskID, deckID string) (*Artifact, error) {
	d, err := c.store.Get(deckID)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(c.artifactsDir, 0o755); err != nil {
		return nil, err
	}
	outPath := filepath.Join(c.artifactsDir, deckID+".webm")
	width, height := SurfaceSize(d.Aspect)
	sink := c.newSink(width, height, outPath)

	cleanupPartial := func() { _ = os.Remove(outPath) }

	if err := sink.Start(ctx); err != nil {
		return nil, err
	}

	total := len(d.Slides)
	for i, sl := range d.Slides {
		hold := pcm.AdjustedDuration(pcm.Duration(sl.Audio), d.Speed) + interSlidePad
		seg := Segment{
			ImagePath: sl.ImagePath,
			Audio:     sl.Audio,
			Speed:     d.Speed,
			Hold:      hold,
		}
		if err := sink.AddSegment(ctx, seg); err != nil {
			cleanupPartial()
			return nil, fmt.Errorf("slide %d: %w", i, err)
		}
		_ = c.queue.SetProgress(ctx, taskID, float64(i+1)/float64(total)*100)
	}

	path, err := sink.Finish(ctx)
	if err != nil {
		cleanupPartial()
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	artifact := &Artifact{
		DeckID:    deckID,
		Path:      path,
		Filename:  "ai-narray-" + deckID + ".webm",
		Size:      info.Size(),
		CreatedAt: time.Now(),
	}

	// Remote upload is opportunistic. The local artifact is the
	// deliverable either way.
	if c.uploader != nil {
		if url, err := c.uploadArtifact(ctx, artifact); err != nil {
			c.logger.Warn("artifact upload failed", zap.String("deck", deckID), zap.Error(err))
		} else {
			artifact.RemoteURL = url
		}
	}
	return artifact, nil
}

func (c *Compositor) uploadArtifact(ctx context.Context, artifact *Artifact) (string, error) {
	payload, err := os.ReadFile(artifact.Path)
	if err != nil {
		return "", err
	}
	key := "videos/" + artifact.Filename
	return c.uploader.Upload(ctx, key, payload, "video/webm")
}

// ArtifactFor returns the finished artifact for a deck, if any.
func (c *Compositor) ArtifactFor(deckID string) (*Artifact, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.artifacts[deckID]
	return a, ok
}

// RemoveArtifact drops the artifact record and its file.
func (c *Compositor) RemoveArtifact(deckID string) bool {
	c.mu.Lock()
	a, ok := c.artifacts[deckID]
	if ok {
		delete(c.artifacts, deckID)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	_ = os.Remove(a.Path)
	return true
}
