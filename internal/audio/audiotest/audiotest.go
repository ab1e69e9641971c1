// Package audiotest writes synthetic WAV fixtures for tests.
package audiotest

import (
	"math"
	"os"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Signal returns the value of channel ch at sample i.
type Signal func(i, ch int) float64

// Sine is a sine wave of the given frequency and amplitude on every channel.
func Sine(freq, amplitude float64, sampleRate int) Signal {
	return func(i, _ int) float64 {
		return amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
}

// Clicks places a short decaying burst every period samples.
func Clicks(period int, amplitude float64) Signal {
	return func(i, _ int) float64 {
		pos := i % period
		if pos >= 64 {
			return 0
		}
		sign := 1.0
		if pos%2 == 1 {
			sign = -1
		}
		return sign * amplitude * math.Exp(-float64(pos)/16)
	}
}

// WriteWAV encodes frames samples of sig as 16-bit PCM.
func WriteWAV(t testing.TB, path string, sampleRate, channels, frames int, sig Signal) {
	t.Helper()
	write(t, path, sampleRate, 16, channels, 1, frames, func(v float64) int {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		return int(math.Round(v * 32767))
	}, sig)
}

// WriteFloatWAV encodes frames samples of sig as 32-bit IEEE float.
func WriteFloatWAV(t testing.TB, path string, sampleRate, channels, frames int, sig Signal) {
	t.Helper()
	write(t, path, sampleRate, 32, channels, 3, frames, func(v float64) int {
		return int(int32(math.Float32bits(float32(v))))
	}, sig)
}

// WriteEncodedWAV writes a WAV with an arbitrary fmt tag. Samples are raw
// values at bitDepth.
func WriteEncodedWAV(t testing.TB, path string, sampleRate, bitDepth, formatTag, frames int) {
	t.Helper()
	write(t, path, sampleRate, bitDepth, 1, formatTag, frames, func(float64) int { return 0x55 }, Sine(440, 0.5, sampleRate))
}

func write(t testing.TB, path string, sampleRate, bitDepth, channels, formatTag, frames int, encode func(float64) int, sig Signal) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, formatTag)
	data := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			data[i*channels+ch] = encode(sig(i, ch))
		}
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav encoder: %v", err)
	}
}
