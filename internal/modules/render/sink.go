package render

import (
	"context"
	"time"
)

// Segment is one slide's draw+hold cycle: a sustained frame with its
// narration played at the session speed.
type Segment struct {
	ImagePath string
	// Audio holds raw 16-bit little-endian PCM, 24kHz mono.
	Audio []byte
	Speed float64
	// Hold is the total display time of the frame, already including
	// the speed-adjusted narration length and the inter-slide pad.
	Hold time.Duration
}

// Sink records sequential segments into one video artifact. Segments
// must arrive in presentation order; the recording timeline has no
// notion of reordering.
type Sink interface {
	Start(ctx context.Context) error
	AddSegment(ctx context.Context, seg Segment) error
	// Finish finalizes the recording and returns the artifact path.
	Finish(ctx context.Context) (string, error)
}

// SinkFactory builds a sink for one render run.
type SinkFactory func(width, height int, outPath string) Sink
