// Package pcm handles the raw audio payloads produced by speech synthesis:
// signed 16-bit little-endian samples, mono, 24kHz.
package pcm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	// SampleRate is the synthesis output rate in Hz.
	SampleRate = 24000
	// Channels is the synthesis channel count.
	Channels = 1
	// BytesPerSample for signed 16-bit samples.
	BytesPerSample = 2
)

var ErrEmptyPayload = errors.New("empty PCM payload")

// SampleCount returns the number of frames in a raw payload. A trailing odd
// byte is ignored, matching the decode behavior.
func SampleCount(data []byte) int {
	return len(data) / (BytesPerSample * Channels)
}

// Duration returns the playback duration of a raw payload at the synthesis
// rate, regardless of the payload's actual provenance.
func Duration(data []byte) time.Duration {
	frames := SampleCount(data)
	return time.Duration(frames) * time.Second / SampleRate
}

// AdjustedDuration scales a duration by the playback-speed multiplier:
// faster playback shortens the perceived duration inversely.
func AdjustedDuration(d time.Duration, speed float64) time.Duration {
	if speed <= 0 {
		return d
	}
	return time.Duration(float64(d) / speed)
}

// Decode converts raw bytes into normalized float32 samples in [-1, 1).
func Decode(data []byte) ([]float32, error) {
	if len(data) < BytesPerSample {
		return nil, ErrEmptyPayload
	}
	frames := SampleCount(data)
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		s := int16(binary.LittleEndian.Uint16(data[i*BytesPerSample:]))
		out[i] = float32(s) / 32768.0
	}
	return out, nil
}

// WAV wraps a raw payload in a RIFF/WAVE container so it can be fed to
// players and to the encoder without format guessing.
func WAV(data []byte) []byte {
	var buf bytes.Buffer
	dataLen := uint32(len(data))
	byteRate := uint32(SampleRate * Channels * BytesPerSample)
	blockAlign := uint16(Channels * BytesPerSample)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, 36+dataLen)
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(Channels))
	binary.Write(&buf, binary.LittleEndian, uint32(SampleRate))
	binary.Write(&buf, binary.LittleEndian, byteRate)
	binary.Write(&buf, binary.LittleEndian, blockAlign)
	binary.Write(&buf, binary.LittleEndian, uint16(8*BytesPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(data)
	return buf.Bytes()
}
