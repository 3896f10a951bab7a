package pcm

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationAtSynthesisRate(t *testing.T) {
	// one second of mono s16le at 24kHz
	data := make([]byte, SampleRate*BytesPerSample)
	assert.Equal(t, time.Second, Duration(data))
	assert.Equal(t, SampleRate, SampleCount(data))
}

func TestAdjustedDurationScalesInversely(t *testing.T) {
	d := 5 * time.Second
	assert.InDelta(t, (5.0 / 1.2), AdjustedDuration(d, 1.2).Seconds(), 1e-9)
	assert.Equal(t, d, AdjustedDuration(d, 1.0))
	assert.Equal(t, d, AdjustedDuration(d, 0), "non-positive speed leaves duration untouched")
}

func TestDecodeNormalizesSamples(t *testing.T) {
	data := make([]byte, 6)
	minSample := int16(-32768)
	binary.LittleEndian.PutUint16(data[0:], uint16(minSample))
	binary.LittleEndian.PutUint16(data[2:], 0)
	binary.LittleEndian.PutUint16(data[4:], uint16(int16(16384)))

	samples, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.InDelta(t, -1.0, samples[0], 1e-6)
	assert.InDelta(t, 0.0, samples[1], 1e-6)
	assert.InDelta(t, 0.5, samples[2], 1e-6)
}

func TestDecodeEmptyPayload(t *testing.T) {
	_, err := Decode(nil)
	assert.ErrorIs(t, err, ErrEmptyPayload)
}

func TestWAVHeader(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	wav := WAV(payload)

	require.Len(t, wav, 44+len(payload))
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "data", string(wav[36:40]))
	assert.Equal(t, uint32(len(payload)), binary.LittleEndian.Uint32(wav[40:44]))
	assert.Equal(t, uint32(SampleRate), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, payload, wav[44:])
}
