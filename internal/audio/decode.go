// Package audio decodes uploaded files into PCM sample buffers at their
// native sample rate.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

var (
	ErrEmptyFile         = errors.New("file is empty")
	ErrUnsupportedFormat = errors.New("unsupported or unrecognised audio format")
	ErrNoSamples         = errors.New("no audio samples decoded")
)

// Format names reported in Buffer.Format and used as metric labels.
const (
	FormatWAV    = "wav"
	FormatVorbis = "vorbis"
	FormatFFmpeg = "ffmpeg"
)

// Buffer holds interleaved float samples in [-1, 1].
type Buffer struct {
	Data       []float64
	Channels   int
	SampleRate int
	Format     string
}

// Frames returns the number of samples per channel.
func (b *Buffer) Frames() int {
	if b == nil || b.Channels <= 0 {
		return 0
	}
	return len(b.Data) / b.Channels
}

// Duration in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Mono averages all channels into a single signal.
func (b *Buffer) Mono() []float64 {
	frames := b.Frames()
	if b.Channels == 1 {
		out := make([]float64, frames)
		copy(out, b.Data[:frames])
		return out
	}
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for ch := 0; ch < b.Channels; ch++ {
			sum += b.Data[i*b.Channels+ch]
		}
		out[i] = sum / float64(b.Channels)
	}
	return out
}

// Decoder picks a decoding strategy from the file header. Integer PCM and
// 32-bit float WAV and Ogg Vorbis are decoded in-process; anything else
// goes through ffmpeg when FFmpegBin resolves on PATH.
type Decoder struct {
	FFmpegBin  string
	FFprobeBin string
}

func NewDecoder(ffmpegBin, ffprobeBin string) *Decoder {
	return &Decoder{FFmpegBin: ffmpegBin, FFprobeBin: ffprobeBin}
}

// DecodeFile reads and decodes the file at path.
func (d *Decoder) DecodeFile(ctx context.Context, path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat audio: %w", err)
	}
	if info.Size() == 0 {
		return nil, ErrEmptyFile
	}

	header := make([]byte, 12)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = header[:n]
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind audio: %w", err)
	}

	var buf *Buffer
	switch {
	case isWAV(header):
		buf, err = decodeWAV(f)
		if errors.Is(err, ErrUnsupportedFormat) && d.ffmpegAvailable() {
			buf, err = d.decodeFFmpeg(ctx, path)
		}
	case isOgg(header):
		buf, err = decodeVorbis(f)
	case d.ffmpegAvailable():
		buf, err = d.decodeFFmpeg(ctx, path)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	if buf.Frames() == 0 {
		return nil, ErrNoSamples
	}
	return buf, nil
}

func (d *Decoder) ffmpegAvailable() bool {
	if d == nil || d.FFmpegBin == "" {
		return false
	}
	_, err := exec.LookPath(d.FFmpegBin)
	return err == nil
}

func isWAV(header []byte) bool {
	return len(header) >= 12 && bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE"))
}

func isOgg(header []byte) bool {
	return len(header) >= 4 && bytes.Equal(header[0:4], []byte("OggS"))
}
