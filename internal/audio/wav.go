package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/riff"
	"github.com/go-audio/wav"
)

// WAVE fmt tags.
const (
	wavFormatPCM        = 0x0001
	wavFormatFloat      = 0x0003
	wavFormatExtensible = 0xFFFE
)

func decodeWAV(r io.ReadSeeker) (*Buffer, error) {
	encoding, err := wavEncoding(r)
	if err != nil {
		return nil, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("decode wav: rewind: %w", err)
	}

	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("decode wav: invalid WAV file")
	}
	bitDepth := int(decoder.BitDepth)
	switch {
	case encoding == wavFormatPCM && bitDepth > 0 && bitDepth <= 32:
	case encoding == wavFormatFloat && bitDepth == 32:
	default:
		return nil, fmt.Errorf("decode wav: encoding 0x%04x at %d bits: %w", encoding, bitDepth, ErrUnsupportedFormat)
	}

	pcm, err := decoder.FullPCMBuffer()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if pcm == nil || pcm.Format == nil {
		return nil, fmt.Errorf("decode wav: missing format chunk")
	}
	channels := pcm.Format.NumChannels
	if channels <= 0 {
		return nil, fmt.Errorf("decode wav: invalid channel count %d", channels)
	}
	if pcm.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("decode wav: invalid sample rate %d", pcm.Format.SampleRate)
	}

	data := make([]float64, len(pcm.Data))
	if encoding == wavFormatFloat {
		// go-audio reads float samples as int32 bit patterns.
		for i, s := range pcm.Data {
			data[i] = float64(math.Float32frombits(uint32(int32(s))))
		}
	} else {
		// 8-bit WAV is unsigned; go-audio leaves it as 0..255.
		offset := 0.0
		scale := float64(int64(1) << uint(bitDepth-1))
		if bitDepth == 8 {
			offset = 128
			scale = 128
		}
		for i, s := range pcm.Data {
			data[i] = (float64(s) - offset) / scale
		}
	}
	return &Buffer{
		Data:       data,
		Channels:   channels,
		SampleRate: pcm.Format.SampleRate,
		Format:     FormatWAV,
	}, nil
}

// wavEncoding reads the fmt chunk and returns its format tag, resolving
// WAVE_FORMAT_EXTENSIBLE to the tag embedded in its sub-format GUID.
func wavEncoding(r io.Reader) (uint16, error) {
	parser := riff.New(r)
	if err := parser.ParseHeaders(); err != nil {
		return 0, fmt.Errorf("decode wav: %w", err)
	}
	for {
		chunk, err := parser.NextChunk()
		if err != nil {
			return 0, fmt.Errorf("decode wav: missing format chunk")
		}
		if chunk.ID != riff.FmtID {
			chunk.Drain()
			continue
		}
		body := make([]byte, chunk.Size)
		if _, err := io.ReadFull(chunk, body); err != nil {
			return 0, fmt.Errorf("decode wav: read format chunk: %w", err)
		}
		if len(body) < 16 {
			return 0, fmt.Errorf("decode wav: short format chunk")
		}
		tag := binary.LittleEndian.Uint16(body[0:2])
		if tag == wavFormatExtensible {
			if len(body) < 26 {
				return 0, fmt.Errorf("decode wav: short extensible format chunk")
			}
			tag = binary.LittleEndian.Uint16(body[24:26])
		}
		return tag, nil
	}
}
