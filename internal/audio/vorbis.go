package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"
)

func decodeVorbis(r io.Reader) (*Buffer, error) {
	decoder, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("decode vorbis: %w", err)
	}
	channels := decoder.Channels()
	if channels <= 0 {
		return nil, fmt.Errorf("decode vorbis: invalid channel count %d", channels)
	}

	var data []float64
	chunk := make([]float32, 16384)
	for {
		n, err := decoder.Read(chunk)
		for _, s := range chunk[:n] {
			data = append(data, float64(s))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode vorbis: %w", err)
		}
	}
	return &Buffer{
		Data:       data,
		Channels:   channels,
		SampleRate: decoder.SampleRate(),
		Format:     FormatVorbis,
	}, nil
}
