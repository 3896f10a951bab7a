package render

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ai-narray/core/internal/pkg/pcm"
)

// codecPair is one container/codec combination the sink can record
// with, probed against the local ffmpeg build in preference order.
type codecPair struct {
	video string
	audio string
}

// webm with vp9+opus first, vp8+vorbis next, and as a last resort no
// codec hint at all so ffmpeg picks its own webm defaults.
var codecPreference = []codecPair{
	{video: "libvpx-vp9", audio: "libopus"},
	{video: "libvpx", audio: "libvorbis"},
	{},
}

// FFmpegSink records segments by encoding one webm clip per segment
// and concatenating them on Finish.
type FFmpegSink struct {
	bin     string
	workDir string
	outPath string
	width   int
	height  int

	codec    codecPair
	segments []string
}

func NewFFmpegSink(bin, workDir string) SinkFactory {
	return func(width, height int, outPath string) Sink {
		return &FFmpegSink{
			bin:     bin,
			workDir: workDir,
			outPath: outPath,
			width:   width,
			height:  height,
		}
	}
}

func (s *FFmpegSink) Start(ctx context.Context) error {
	if err := os.MkdirAll(s.workDir, 0o755); err != nil {
		return err
	}
	encoders, err := s.listEncoders(ctx)
	if err != nil {
		return fmt.Errorf("probe encoders: %w", err)
	}
	s.codec = negotiateCodec(encoders)
	return nil
}

func (s *FFmpegSink) listEncoders(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, s.bin, "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

func negotiateCodec(encoders string) codecPair {
	for _, pair := range codecPreference {
		if pair.video == "" {
			return pair
		}
		if strings.Contains(encoders, pair.video) && strings.Contains(encoders, pair.audio) {
			return pair
		}
	}
	return codecPair{}
}

func (s *FFmpegSink) AddSegment(ctx context.Context, seg Segment) error {
	idx := len(s.segments)
	audioPath := filepath.Join(s.workDir, fmt.Sprintf("seg-%03d.pcm", idx))
	if err := os.WriteFile(audioPath, seg.Audio, 0o644); err != nil {
		return err
	}
	defer os.Remove(audioPath)

	segPath := filepath.Join(s.workDir, fmt.Sprintf("seg-%03d.webm", idx))

	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-loop", "1", "-i", seg.ImagePath,
		"-f", "s16le",
		"-ar", strconv.Itoa(pcm.SampleRate),
		"-ac", strconv.Itoa(pcm.Channels),
		"-i", audioPath,
		"-filter_complex", s.filterGraph(seg.Speed),
		"-map", "[v]", "-map", "[a]",
		"-t", formatSeconds(seg.Hold.Seconds()),
	}
	if s.codec.video != "" {
		args = append(args, "-c:v", s.codec.video, "-c:a", s.codec.audio)
	}
	args = append(args, segPath)

	if out, err := exec.CommandContext(ctx, s.bin, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("encode segment %d: %w: %s", idx, err, strings.TrimSpace(string(out)))
	}
	s.segments = append(s.segments, segPath)
	return nil
}

// filterGraph letterboxes the image into the surface and retimes the
// narration to the session speed with the inter-slide pad appended.
func (s *FFmpegSink) filterGraph(speed float64) string {
	w, h := s.width, s.height
	return fmt.Sprintf(
		"[0:v]scale=%d:%d:force_original_aspect_ratio=decrease,"+
			"pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1,fps=%d[v];"+
			"[1:a]atempo=%s,apad=pad_dur=%s[a]",
		w, h, w, h, FrameRate,
		formatSeconds(speed), formatSeconds(interSlidePadSeconds),
	)
}

func (s *FFmpegSink) Finish(ctx context.Context) (string, error) {
	if len(s.segments) == 0 {
		return "", fmt.Errorf("no segments recorded")
	}
	defer func() {
		for _, seg := range s.segments {
			_ = os.Remove(seg)
		}
	}()

	listPath := filepath.Join(s.workDir, "concat.txt")
	var sb strings.Builder
	for _, seg := range s.segments {
		abs, err := filepath.Abs(seg)
		if err != nil {
			return "", err
		}
		sb.WriteString("file '" + abs + "'\n")
	}
	if err := os.WriteFile(listPath, []byte(sb.String()), 0o644); err != nil {
		return "", err
	}
	defer os.Remove(listPath)

	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c", "copy",
		s.outPath,
	}
	if out, err := exec.CommandContext(ctx, s.bin, args...).CombinedOutput(); err != nil {
		return "", fmt.Errorf("concat segments: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return s.outPath, nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
