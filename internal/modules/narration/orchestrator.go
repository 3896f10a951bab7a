package narration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ai-narray/core/internal/modules/deck"
	"github.com/ai-narray/core/internal/pkg/retry"
	"github.com/ai-narray/core/internal/pkg/taskqueue"
)

const (
	singleScriptAttempts = 5
	batchScriptAttempts  = 3
	speechAttempts       = 5
	previewAttempts      = 3
	retryBaseDelay       = time.Second

	// Speech synthesis fans out at most this many concurrent calls.
	audioChunkSize = 3

	TaskTypeAudio = "audio"
)

// TaskQueue is the slice of the task service the orchestrator needs.
type TaskQueue interface {
	Enqueue(ctx context.Context, taskType string, payload interface{}, dedupKey string) (*taskqueue.Task, bool, error)
	AddProgress(ctx context.Context, id string, delta float64) (float64, error)
	UpdateStatus(ctx context.Context, id string, status taskqueue.TaskStatus, errMsg string) error
}

// Orchestrator drives the generation client over a deck's slides.
type Orchestrator struct {
	store  *deck.Store
	client Client
	queue  TaskQueue
	status *CredentialStatus
	logger *zap.Logger
}

func NewOrchestrator(store *deck.Store, client Client, queue TaskQueue, status *CredentialStatus, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:  store,
		client: client,
		queue:  queue,
		status: status,
		logger: logger,
	}
}

func (o *Orchestrator) retryOpts(attempts int) retry.Options {
	return retry.Options{
		MaxAttempts:         attempts,
		BaseDelay:           retryBaseDelay,
		OnInvalidCredential: o.status.Invalidate,
	}
}

// GenerateSlideScript fills in one slide's narration. The write also
// clears any audio synthesized for the previous text. A terminal
// failure leaves the existing script untouched.
func (o *Orchestrator) GenerateSlideScript(ctx context.Context, deckID, slideID string) (SlideResult, error) {
	d, err := o.store.Get(deckID)
	if err != nil {
		return SlideResult{}, err
	}
	sl := findSlide(d, slideID)
	if sl == nil {
		return SlideResult{}, deck.ErrSlideNotFound
	}

	_ = o.store.SetScriptPending(deckID, slideID, true)
	script, err := o.scriptForSlide(ctx, d, sl, singleScriptAttempts)
	if err != nil {
		_ = o.store.SetScriptPending(deckID, slideID, false)
		return failedResult(slideID, err), nil
	}
	if err := o.store.SetScript(deckID, slideID, script); err != nil {
		return SlideResult{}, err
	}
	return okResult(slideID), nil
}

func (o *Orchestrator) scriptForSlide(ctx context.Context, d *deck.Deck, sl *deck.Slide, attempts int) (string, error) {
	img, err := loadImage(sl)
	if err != nil {
		return "", err
	}
	style := StylePromptFor(d.Style)
	tone := ToneLabelFor(d.Tone)
	return retry.DoValue(ctx, func(ctx context.Context) (string, error) {
		return o.client.GenerateScript(ctx, img, style, tone)
	}, o.retryOpts(attempts))
}

// GenerateAllScripts runs the bulk script path: one batch call across
// every slide, and on any batch failure a sequential single-slide
// fallback over the whole deck. Batch is an optimization, single-slide
// is the ground truth.
func (o *Orchestrator) GenerateAllScripts(ctx context.Context, deckID string) ([]SlideResult, error) {
	if err := o.store.TryBeginScripting(deckID); err != nil {
		return nil, err
	}
	defer o.store.EndScripting(deckID)

	d, err := o.store.Get(deckID)
	if err != nil {
		return nil, err
	}
	if len(d.Slides) == 0 {
		return []SlideResult{}, nil
	}
	for _, sl := range d.Slides {
		_ = o.store.SetScriptPending(deckID, sl.ID, true)
	}

	scripts, batchErr := o.batchScripts(ctx, d)
	if batchErr == nil {
		results := make([]SlideResult, 0, len(d.Slides))
		for i, sl := range d.Slides {
			if i < len(scripts) && scripts[i] != "" {
				_ = o.store.SetScript(deckID, sl.ID, scripts[i])
				results = append(results, okResult(sl.ID))
				continue
			}
			_ = o.store.SetScriptPending(deckID, sl.ID, false)
			results = append(results, failedResult(sl.ID, ErrEmptyScript))
		}
		return results, nil
	}

	if errors.Is(batchErr, retry.ErrInvalidCredential) {
		for _, sl := range d.Slides {
			_ = o.store.SetScriptPending(deckID, sl.ID, false)
		}
		return nil, batchErr
	}

	o.logger.Warn("batch script generation failed, falling back to per-slide",
		zap.String("deck", deckID),
		zap.Error(batchErr))

	// Sequential fallback. Every slide gets its own full attempt
	// budget; one slide failing never skips the rest.
	results := make([]SlideResult, 0, len(d.Slides))
	for i, sl := range d.Slides {
		script, err := o.scriptForSlide(ctx, d, sl, singleScriptAttempts)
		if err != nil {
			_ = o.store.SetScriptPending(deckID, sl.ID, false)
			results = append(results, failedResult(sl.ID, err))
			if errors.Is(err, retry.ErrInvalidCredential) || ctx.Err() != nil {
				for _, rest := range d.Slides[i+1:] {
					_ = o.store.SetScriptPending(deckID, rest.ID, false)
					results = append(results, failedResult(rest.ID, err))
				}
				break
			}
			continue
		}
		_ = o.store.SetScript(deckID, sl.ID, script)
		results = append(results, okResult(sl.ID))
	}
	return results, nil
}

func (o *Orchestrator) batchScripts(ctx context.Context, d *deck.Deck) ([]string, error) {
	imgs := make([]Image, 0, len(d.Slides))
	for _, sl := range d.Slides {
		img, err := loadImage(sl)
		if err != nil {
			return nil, err
		}
		imgs = append(imgs, img)
	}
	style := StylePromptFor(d.Style)
	tone := ToneLabelFor(d.Tone)
	return retry.DoValue(ctx, func(ctx context.Context) ([]string, error) {
		return o.client.GenerateScriptsBatch(ctx, imgs, style, tone)
	}, o.retryOpts(batchScriptAttempts))
}

type audioTaskPayload struct {
	DeckID string `json:"deckId"`
}

// StartAudioGeneration enqueues the chunked speech synthesis run as a
// background task and returns immediately. The per-deck dedup key and
// the voicing guard together prevent overlapping runs.
func (o *Orchestrator) StartAudioGeneration(ctx context.Context, deckID string) (*taskqueue.Task, error) {
	if err := o.store.TryBeginVoicing(deckID); err != nil {
		return nil, err
	}

	d, err := o.store.Get(deckID)
	if err != nil {
		o.store.EndVoicing(deckID)
		return nil, err
	}
	if len(d.Slides) == 0 {
		o.store.EndVoicing(deckID)
		return nil, fmt.Errorf("deck has no slides")
	}

	task, created, err := o.queue.Enqueue(ctx, TaskTypeAudio, audioTaskPayload{DeckID: deckID}, TaskTypeAudio+":"+deckID)
	if err != nil {
		o.store.EndVoicing(deckID)
		return nil, err
	}
	if !created {
		o.store.EndVoicing(deckID)
		return task, nil
	}

	go o.runAudioTask(task.ID, deckID)
	return task, nil
}

func (o *Orchestrator) runAudioTask(taskID, deckID string) {
	ctx := context.Background()
	defer o.store.EndVoicing(deckID)

	_ = o.queue.UpdateStatus(ctx, taskID, taskqueue.TaskRunning, "")

	results, err := o.generateAllAudio(ctx, taskID, deckID)
	if err != nil {
		_ = o.queue.UpdateStatus(ctx, taskID, taskqueue.TaskFailed, err.Error())
		return
	}

	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
		}
	}
	if failed > 0 {
		_ = o.queue.UpdateStatus(ctx, taskID, taskqueue.TaskCompleted,
			fmt.Sprintf("%d of %d slides failed", failed, len(results)))
		return
	}
	_ = o.queue.UpdateStatus(ctx, taskID, taskqueue.TaskCompleted, "")
}

// generateAllAudio walks the deck in chunks of three concurrent
// synthesis calls, waiting for each chunk before starting the next.
// Progress advances by an equal share per slide and sums to 100 on a
// fully successful run.
func (o *Orchestrator) generateAllAudio(ctx context.Context, taskID, deckID string) ([]SlideResult, error) {
	d, err := o.store.Get(deckID)
	if err != nil {
		return nil, err
	}
	if len(d.Slides) == 0 {
		return []SlideResult{}, nil
	}
	step := 100.0 / float64(len(d.Slides))

	results := make([]SlideResult, len(d.Slides))
	halted := false
	for start := 0; start < len(d.Slides); start += audioChunkSize {
		end := start + audioChunkSize
		if end > len(d.Slides) {
			end = len(d.Slides)
		}
		if halted {
			for i := start; i < end; i++ {
				results[i] = failedResult(d.Slides[i].ID, retry.ErrInvalidCredential)
			}
			continue
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			sl := d.Slides[i]
			g.Go(func() error {
				results[i] = o.synthesizeSlide(ctx, deckID, taskID, d, sl, step)
				return nil
			})
		}
		_ = g.Wait()

		// A revoked key fails every remaining call the same way, so
		// stop starting new chunks. In-flight siblings above already
		// settled on their own.
		for i := start; i < end; i++ {
			if !results[i].OK && results[i].Error == retry.ErrInvalidCredential.Error() {
				halted = true
			}
		}
	}
	return results, nil
}

func (o *Orchestrator) synthesizeSlide(ctx context.Context, deckID, taskID string, d *deck.Deck, sl *deck.Slide, step float64) SlideResult {
	if len(sl.Audio) > 0 {
		// Already voiced for the current script text.
		_, _ = o.queue.AddProgress(ctx, taskID, step)
		return okResult(sl.ID)
	}
	if sl.Script == "" {
		return failedResult(sl.ID, ErrEmptyScript)
	}

	_ = o.store.SetAudioPending(deckID, sl.ID, true)
	audio, err := retry.DoValue(ctx, func(ctx context.Context) ([]byte, error) {
		return o.client.GenerateSpeech(ctx, sl.Script, d.Voice)
	}, o.retryOpts(speechAttempts))
	if err != nil {
		_ = o.store.SetAudioPending(deckID, sl.ID, false)
		o.logger.Warn("speech synthesis failed",
			zap.String("deck", deckID),
			zap.String("slide", sl.ID),
			zap.Error(err))
		return failedResult(sl.ID, err)
	}

	_ = o.store.SetAudio(deckID, sl.ID, audio)
	_, _ = o.queue.AddProgress(ctx, taskID, step)
	return okResult(sl.ID)
}

// PreviewSpeech synthesizes audio for an on-demand listen. Failures
// are swallowed: the preview is a convenience, not durable state. When
// the text matches a slide's current script the payload is cached onto
// that slide.
func (o *Orchestrator) PreviewSpeech(ctx context.Context, deckID, text string) ([]byte, bool) {
	d, err := o.store.Get(deckID)
	if err != nil {
		return nil, false
	}

	audio, err := retry.DoValue(ctx, func(ctx context.Context) ([]byte, error) {
		return o.client.GenerateSpeech(ctx, text, d.Voice)
	}, o.retryOpts(previewAttempts))
	if err != nil {
		o.logger.Debug("preview speech failed", zap.String("deck", deckID), zap.Error(err))
		return nil, false
	}

	for _, sl := range d.Slides {
		if sl.Script == text && len(sl.Audio) == 0 {
			_ = o.store.SetAudio(deckID, sl.ID, audio)
			break
		}
	}
	return audio, true
}

// Probe validates the configured credential and records the outcome
// in the session status.
func (o *Orchestrator) Probe(ctx context.Context) error {
	err := o.client.Probe(ctx)
	if err != nil {
		o.status.Invalidate()
		return err
	}
	o.status.MarkValid()
	return nil
}

func findSlide(d *deck.Deck, slideID string) *deck.Slide {
	for _, sl := range d.Slides {
		if sl.ID == slideID {
			return sl
		}
	}
	return nil
}

func loadImage(sl *deck.Slide) (Image, error) {
	data, err := os.ReadFile(sl.ImagePath)
	if err != nil {
		return Image{}, fmt.Errorf("read slide image: %w", err)
	}
	return Image{Data: data, MimeType: sl.MimeType}, nil
}
