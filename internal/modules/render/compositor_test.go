package render

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ai-narray/core/internal/modules/deck"
	"github.com/ai-narray/core/internal/pkg/pcm"
	"github.com/ai-narray/core/internal/pkg/taskqueue"
)

type fakeSink struct {
	width    int
	height   int
	outPath  string
	started  bool
	segments []Segment
	failAt   int // 1-based segment index to fail on, 0 = never
}

func (f *fakeSink) Start(context.Context) error {
	f.started = true
	return nil
}

func (f *fakeSink) AddSegment(_ context.Context, seg Segment) error {
	if f.failAt > 0 && len(f.segments)+1 == f.failAt {
		return errors.New("encoder exploded")
	}
	f.segments = append(f.segments, seg)
	return nil
}

func (f *fakeSink) Finish(context.Context) (string, error) {
	if !f.started {
		return "", errors.New("finish before start")
	}
	if err := os.WriteFile(f.outPath, []byte("webm"), 0o644); err != nil {
		return "", err
	}
	return f.outPath, nil
}

type recordingQueue struct {
	mu       sync.Mutex
	progress []float64
	statuses []taskqueue.TaskStatus
	lastErr  string
}

func (q *recordingQueue) Enqueue(_ context.Context, taskType string, _ interface{}, dedupKey string) (*taskqueue.Task, bool, error) {
	return &taskqueue.Task{ID: "task-1", Type: taskType, DedupKey: dedupKey}, true, nil
}

func (q *recordingQueue) SetProgress(_ context.Context, _ string, value float64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.progress = append(q.progress, value)
	return nil
}

func (q *recordingQueue) UpdateStatus(_ context.Context, _ string, status taskqueue.TaskStatus, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.statuses = append(q.statuses, status)
	q.lastErr = errMsg
	return nil
}

// pcmSeconds builds a silent payload of the given duration.
func pcmSeconds(sec float64) []byte {
	n := int(sec * float64(pcm.SampleRate) * float64(pcm.BytesPerSample))
	return make([]byte, n)
}

func newRenderHarness(t *testing.T, slides int, speed float64, audioSec float64) (*Compositor, *deck.Store, string, *fakeSink, *recordingQueue) {
	t.Helper()
	store := deck.NewStore()
	d := store.Create(deck.AspectLandscape, "general", "calm", "kore", speed)
	for i := 0; i < slides; i++ {
		sl, err := store.AppendSlide(d.ID, "slide.png", "image/png")
		require.NoError(t, err)
		require.NoError(t, store.SetScript(d.ID, sl.ID, "narration"))
		require.NoError(t, store.SetAudio(d.ID, sl.ID, pcmSeconds(audioSec)))
	}

	sink := &fakeSink{}
	factory := func(width, height int, outPath string) Sink {
		sink.width = width
		sink.height = height
		sink.outPath = outPath
		return sink
	}
	queue := &recordingQueue{}
	comp := NewCompositor(store, queue, factory, t.TempDir(), nil, zap.NewNop())
	return comp, store, d.ID, sink, queue
}

func TestRenderRunsSequentialCyclesInOrder(t *testing.T) {
	comp, store, deckID, sink, queue := newRenderHarness(t, 3, 1.0, 2.0)

	require.NoError(t, store.TryBeginRendering(deckID))
	comp.run("task-1", deckID)

	require.Len(t, sink.segments, 3)
	d, err := store.Get(deckID)
	require.NoError(t, err)
	for i, seg := range sink.segments {
		assert.Equal(t, d.Slides[i].ImagePath, seg.ImagePath)
	}

	assert.Equal(t, []taskqueue.TaskStatus{taskqueue.TaskRunning, taskqueue.TaskCompleted}, queue.statuses)
	require.NotEmpty(t, queue.progress)
	assert.InDelta(t, 100.0, queue.progress[len(queue.progress)-1], 1e-9)

	artifact, ok := comp.ArtifactFor(deckID)
	require.True(t, ok)
	assert.Equal(t, "ai-narray-"+deckID+".webm", artifact.Filename)
	assert.Equal(t, 3840, sink.width)
	assert.Equal(t, 2160, sink.height)
}

func TestHoldDurationLaw(t *testing.T) {
	comp, store, deckID, sink, _ := newRenderHarness(t, 1, 1.2, 5.0)

	require.NoError(t, store.TryBeginRendering(deckID))
	comp.run("task-1", deckID)

	require.Len(t, sink.segments, 1)
	want := 5.0/1.2 + 0.4
	assert.InDelta(t, want, sink.segments[0].Hold.Seconds(), 1e-6)
	assert.Equal(t, 1.2, sink.segments[0].Speed)
}

func TestRenderFailureAbortsWholeRun(t *testing.T) {
	comp, store, deckID, sink, queue := newRenderHarness(t, 3, 1.0, 1.0)
	sink.failAt = 2

	require.NoError(t, store.TryBeginRendering(deckID))
	comp.run("task-1", deckID)

	assert.Len(t, sink.segments, 1)
	assert.Equal(t, taskqueue.TaskFailed, queue.statuses[len(queue.statuses)-1])
	assert.Equal(t, "video generation failed", queue.lastErr)

	_, ok := comp.ArtifactFor(deckID)
	assert.False(t, ok)

	// The rendering guard is released on failure.
	assert.NoError(t, store.TryBeginRendering(deckID))
}

func TestStartRenderGatesOnReadiness(t *testing.T) {
	store := deck.NewStore()
	d := store.Create(deck.AspectLandscape, "general", "calm", "kore", 1.0)
	sl, err := store.AppendSlide(d.ID, "slide.png", "image/png")
	require.NoError(t, err)
	require.NoError(t, store.SetScript(d.ID, sl.ID, "script without audio"))

	comp := NewCompositor(store, &recordingQueue{}, func(int, int, string) Sink { return &fakeSink{} }, t.TempDir(), nil, zap.NewNop())

	_, err = comp.StartRender(context.Background(), d.ID)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestNegotiateCodecPreference(t *testing.T) {
	full := " V..... libvpx-vp9\n A..... libopus\n V..... libvpx\n A..... libvorbis\n"
	assert.Equal(t, codecPair{video: "libvpx-vp9", audio: "libopus"}, negotiateCodec(full))

	vp8Only := " V..... libvpx\n A..... libvorbis\n"
	assert.Equal(t, codecPair{video: "libvpx", audio: "libvorbis"}, negotiateCodec(vp8Only))

	// Nothing usable: fall through to no codec hint.
	assert.Equal(t, codecPair{}, negotiateCodec(" V..... mpeg4\n"))
}
