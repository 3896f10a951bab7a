package narration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ai-narray/core/internal/modules/deck"
	"github.com/ai-narray/core/internal/pkg/taskqueue"
)

type fakeClient struct {
	mu            sync.Mutex
	scriptCalls   int
	batchCalls    int
	speechCalls   int
	inFlight      int
	maxInFlight   int
	batchErr      error
	scriptErr     error
	speechErrFor  map[string]error
	speechPayload []byte
}

func (f *fakeClient) GenerateScript(_ context.Context, _ Image, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scriptCalls++
	if f.scriptErr != nil {
		return "", f.scriptErr
	}
	return "생성된 스크립트", nil
}

func (f *fakeClient) GenerateScriptsBatch(_ context.Context, imgs []Image, _, _ string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make([]string, len(imgs))
	for i := range out {
		out[i] = "배치 스크립트"
	}
	return out, nil
}

func (f *fakeClient) GenerateSpeech(_ context.Context, text, _ string) ([]byte, error) {
	f.mu.Lock()
	f.speechCalls++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	err := f.speechErrFor[text]
	f.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if f.speechPayload != nil {
		return f.speechPayload, nil
	}
	return []byte{1, 2, 3, 4}, nil
}

func (f *fakeClient) Probe(context.Context) error { return nil }

type fakeQueue struct {
	mu       sync.Mutex
	progress float64
	statuses []taskqueue.TaskStatus
	lastErr  string
}

func (q *fakeQueue) Enqueue(_ context.Context, taskType string, _ interface{}, dedupKey string) (*taskqueue.Task, bool, error) {
	return &taskqueue.Task{ID: "task-1", Type: taskType, Status: taskqueue.TaskPending, DedupKey: dedupKey}, true, nil
}

func (q *fakeQueue) AddProgress(_ context.Context, _ string, delta float64) (float64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.progress += delta
	return q.progress, nil
}

func (q *fakeQueue) UpdateStatus(_ context.Context, _ string, status taskqueue.TaskStatus, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.statuses = append(q.statuses, status)
	q.lastErr = errMsg
	return nil
}

func (q *fakeQueue) total() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.progress
}

type harness struct {
	store  *deck.Store
	client *fakeClient
	queue  *fakeQueue
	status *CredentialStatus
	orch   *Orchestrator
	deckID string
}

func newHarness(t *testing.T, slides int) *harness {
	t.Helper()
	store := deck.NewStore()
	d := store.Create(deck.AspectLandscape, "general", "calm", "kore", 1.0)

	dir := t.TempDir()
	for i := 0; i < slides; i++ {
		path := filepath.Join(dir, "slide.png")
		require.NoError(t, os.WriteFile(path, []byte{0x89, 0x50, 0x4e, 0x47}, 0o644))
		_, err := store.AppendSlide(d.ID, path, "image/png")
		require.NoError(t, err)
	}

	client := &fakeClient{speechErrFor: map[string]error{}}
	queue := &fakeQueue{}
	status := NewCredentialStatus()
	return &harness{
		store:  store,
		client: client,
		queue:  queue,
		status: status,
		orch:   NewOrchestrator(store, client, queue, status, zap.NewNop()),
		deckID: d.ID,
	}
}

func (h *harness) slides(t *testing.T) []*deck.Slide {
	t.Helper()
	d, err := h.store.Get(h.deckID)
	require.NoError(t, err)
	return d.Slides
}

func (h *harness) setAllScripts(t *testing.T, text string) {
	t.Helper()
	for _, sl := range h.slides(t) {
		require.NoError(t, h.store.SetScript(h.deckID, sl.ID, text))
	}
}

func TestSingleScriptWritesAndClearsAudio(t *testing.T) {
	h := newHarness(t, 1)
	sl := h.slides(t)[0]
	require.NoError(t, h.store.SetScript(h.deckID, sl.ID, "old"))
	require.NoError(t, h.store.SetAudio(h.deckID, sl.ID, []byte{9, 9}))

	result, err := h.orch.GenerateSlideScript(context.Background(), h.deckID, sl.ID)
	require.NoError(t, err)
	assert.True(t, result.OK)

	got := h.slides(t)[0]
	assert.Equal(t, "생성된 스크립트", got.Script)
	assert.Empty(t, got.Audio)
}

func TestSingleScriptFailureLeavesScriptUntouched(t *testing.T) {
	h := newHarness(t, 1)
	sl := h.slides(t)[0]
	require.NoError(t, h.store.SetScript(h.deckID, sl.ID, "keep me"))
	h.client.scriptErr = errors.New("boom")

	result, err := h.orch.GenerateSlideScript(context.Background(), h.deckID, sl.ID)
	require.NoError(t, err)
	assert.False(t, result.OK)

	got := h.slides(t)[0]
	assert.Equal(t, "keep me", got.Script)
	assert.False(t, got.ScriptPending)
}

func TestInvalidCredentialFlipsSessionStatus(t *testing.T) {
	h := newHarness(t, 1)
	h.client.scriptErr = errors.New("Requested entity was not found.")

	result, err := h.orch.GenerateSlideScript(context.Background(), h.deckID, h.slides(t)[0].ID)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, 1, h.client.scriptCalls)

	valid, known := h.status.Snapshot()
	assert.True(t, known)
	assert.False(t, valid)
}

func TestBatchSuccessWritesByPosition(t *testing.T) {
	h := newHarness(t, 3)

	results, err := h.orch.GenerateAllScripts(context.Background(), h.deckID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.OK)
	}
	assert.Equal(t, 1, h.client.batchCalls)
	assert.Equal(t, 0, h.client.scriptCalls)
	for _, sl := range h.slides(t) {
		assert.Equal(t, "배치 스크립트", sl.Script)
	}
}

func TestBatchFailureFallsBackToEverySlide(t *testing.T) {
	h := newHarness(t, 4)
	h.client.batchErr = ErrBatchParse

	results, err := h.orch.GenerateAllScripts(context.Background(), h.deckID)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, r := range results {
		assert.True(t, r.OK)
	}
	// Every slide got its own single-slide attempt.
	assert.Equal(t, 4, h.client.scriptCalls)
	for _, sl := range h.slides(t) {
		assert.NotEmpty(t, sl.Script)
		assert.False(t, sl.ScriptPending)
	}
}

func TestScriptingGuardRejectsOverlap(t *testing.T) {
	h := newHarness(t, 1)
	require.NoError(t, h.store.TryBeginScripting(h.deckID))

	_, err := h.orch.GenerateAllScripts(context.Background(), h.deckID)
	assert.ErrorIs(t, err, deck.ErrBusy)
}

func TestChunkedAudioBoundsConcurrencyAndProgress(t *testing.T) {
	h := newHarness(t, 7)
	h.setAllScripts(t, "나레이션")

	results, err := h.orch.generateAllAudio(context.Background(), "task-1", h.deckID)
	require.NoError(t, err)
	require.Len(t, results, 7)
	for _, r := range results {
		assert.True(t, r.OK)
	}

	assert.LessOrEqual(t, h.client.maxInFlight, 3)
	assert.InDelta(t, 100.0, h.queue.total(), 1e-9)
	for _, sl := range h.slides(t) {
		assert.True(t, sl.HasAudio)
		assert.False(t, sl.AudioPending)
	}
}

func TestAudioFailureIsIsolated(t *testing.T) {
	h := newHarness(t, 3)
	h.setAllScripts(t, "공통 스크립트")
	sl := h.slides(t)[1]
	require.NoError(t, h.store.SetScript(h.deckID, sl.ID, "실패하는 스크립트"))
	h.client.speechErrFor["실패하는 스크립트"] = errors.New("boom")

	results, err := h.orch.generateAllAudio(context.Background(), "task-1", h.deckID)
	require.NoError(t, err)
	assert.True(t, results[0].OK)
	assert.False(t, results[1].OK)
	assert.True(t, results[2].OK)

	slides := h.slides(t)
	assert.True(t, slides[0].HasAudio)
	assert.False(t, slides[1].HasAudio)
	assert.False(t, slides[1].AudioPending)
	assert.True(t, slides[2].HasAudio)
	assert.InDelta(t, 100.0*2/3, h.queue.total(), 1e-9)
}

func TestInvalidCredentialHaltsLaterChunks(t *testing.T) {
	h := newHarness(t, 6)
	h.setAllScripts(t, "revoked")
	h.client.speechErrFor["revoked"] = errors.New("requested entity was not found")

	results, err := h.orch.generateAllAudio(context.Background(), "task-1", h.deckID)
	require.NoError(t, err)
	for _, r := range results {
		assert.False(t, r.OK)
	}
	// First chunk settles on its own, later chunks never start.
	assert.Equal(t, 3, h.client.speechCalls)
}

func TestPreviewSwallowsFailures(t *testing.T) {
	h := newHarness(t, 1)
	h.client.speechErrFor["미리듣기"] = errors.New("boom")

	audio, ok := h.orch.PreviewSpeech(context.Background(), h.deckID, "미리듣기")
	assert.False(t, ok)
	assert.Nil(t, audio)
}

func TestPreviewCachesMatchingSlideAudio(t *testing.T) {
	h := newHarness(t, 1)
	sl := h.slides(t)[0]
	require.NoError(t, h.store.SetScript(h.deckID, sl.ID, "같은 문장"))

	audio, ok := h.orch.PreviewSpeech(context.Background(), h.deckID, "같은 문장")
	require.True(t, ok)
	assert.NotEmpty(t, audio)

	got := h.slides(t)[0]
	assert.True(t, got.HasAudio)
}
