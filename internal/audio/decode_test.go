package audio

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"audiofeedback/internal/audio/audiotest"
)

func TestDecodeMonoWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sine.wav")
	audiotest.WriteWAV(t, path, 22050, 1, 22050, audiotest.Sine(440, 0.5, 22050))

	buf, err := NewDecoder("", "").DecodeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if buf.SampleRate != 22050 || buf.Channels != 1 || buf.Format != FormatWAV {
		t.Fatalf("unexpected buffer header: rate=%d channels=%d format=%s", buf.SampleRate, buf.Channels, buf.Format)
	}
	if buf.Frames() != 22050 {
		t.Fatalf("expected 22050 frames, got %d", buf.Frames())
	}
	if math.Abs(buf.Duration()-1) > 1e-9 {
		t.Fatalf("unexpected duration %f", buf.Duration())
	}
	peak := 0.0
	for _, s := range buf.Data {
		peak = math.Max(peak, math.Abs(s))
	}
	if peak < 0.49 || peak > 0.51 {
		t.Fatalf("expected peak near 0.5, got %f", peak)
	}
}

func TestDecodeStereoWAVDownmix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	sig := func(i, ch int) float64 {
		if ch == 0 {
			return 0.5
		}
		return -0.25
	}
	audiotest.WriteWAV(t, path, 44100, 2, 4410, sig)

	buf, err := NewDecoder("", "").DecodeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if buf.Channels != 2 || buf.Frames() != 4410 {
		t.Fatalf("unexpected layout channels=%d frames=%d", buf.Channels, buf.Frames())
	}
	mono := buf.Mono()
	if len(mono) != 4410 {
		t.Fatalf("mono length %d", len(mono))
	}
	if math.Abs(mono[100]-0.125) > 1e-3 {
		t.Fatalf("expected averaged sample 0.125, got %f", mono[100])
	}
}

func TestDecodeFloatWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "float.wav")
	sine := audiotest.Sine(440, 0.5, 22050)
	audiotest.WriteFloatWAV(t, path, 22050, 1, 22050, sine)

	buf, err := NewDecoder("", "").DecodeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if buf.SampleRate != 22050 || buf.Channels != 1 || buf.Frames() != 22050 {
		t.Fatalf("unexpected layout rate=%d channels=%d frames=%d", buf.SampleRate, buf.Channels, buf.Frames())
	}
	for _, i := range []int{1, 100, 5000, 22049} {
		want := sine(i, 0)
		if math.Abs(buf.Data[i]-want) > 1e-6 {
			t.Fatalf("sample %d = %f, want %f", i, buf.Data[i], want)
		}
	}
}

func TestDecodeWAVUnknownEncodingWithoutFFmpeg(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alaw.wav")
	// 6 is A-law.
	audiotest.WriteEncodedWAV(t, path, 8000, 8, 6, 800)

	_, err := NewDecoder("", "").DecodeFile(context.Background(), path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDecodeEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := NewDecoder("", "").DecodeFile(context.Background(), path)
	if !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}
}

func TestDecodeUnknownFormatWithoutFFmpeg(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("definitely not audio"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := NewDecoder("", "").DecodeFile(context.Background(), path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDecodeTruncatedWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.wav")
	if err := os.WriteFile(path, []byte("RIFF\x24\x00\x00\x00WAVEjunk"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewDecoder("", "").DecodeFile(context.Background(), path); err == nil {
		t.Fatalf("expected error for truncated wav")
	}
}

func TestDecodeMissingFile(t *testing.T) {
	if _, err := NewDecoder("", "").DecodeFile(context.Background(), filepath.Join(t.TempDir(), "gone.wav")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
