// Package analysis extracts tempo, spectral and energy features from decoded
// audio.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"

	"audiofeedback/internal/audio"
	"audiofeedback/internal/models"
)

var ErrEmptySignal = errors.New("audio signal is empty")

// Decoder turns a file on disk into PCM samples.
type Decoder interface {
	DecodeFile(ctx context.Context, path string) (*audio.Buffer, error)
}

// Analyzer decodes an uploaded file and measures it.
type Analyzer struct {
	decoder Decoder
}

func NewAnalyzer(decoder Decoder) *Analyzer {
	return &Analyzer{decoder: decoder}
}

// Analyze decodes the file at path and extracts its features. Decode and
// computation failures are returned wrapped so callers can report them.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*models.Features, error) {
	buf, err := a.decoder.DecodeFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	features, err := Extract(ctx, buf.Mono(), buf.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("analyze audio: %w", err)
	}
	features.Channels = buf.Channels
	features.Duration = buf.Duration()
	features.Format = buf.Format
	return features, nil
}

// Extract computes the four summary features of a mono signal.
func Extract(ctx context.Context, y []float64, sampleRate int) (*models.Features, error) {
	if len(y) == 0 {
		return nil, ErrEmptySignal
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	spec := stft(y, sampleRate)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	centroids := spec.centroids()
	bandwidths := spec.bandwidths(centroids)
	tempo := estimateTempo(spec.onsetEnvelope(), sampleRate)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := &models.Features{
		Tempo:             tempo,
		SpectralCentroid:  mean(centroids),
		SpectralBandwidth: mean(bandwidths),
		RMS:               mean(rmsFrames(y)),
		SampleRate:        sampleRate,
		Channels:          1,
		Duration:          float64(len(y)) / float64(sampleRate),
	}
	for name, v := range map[string]float64{
		"tempo":              f.Tempo,
		"spectral centroid":  f.SpectralCentroid,
		"spectral bandwidth": f.SpectralBandwidth,
		"rms":                f.RMS,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%s is not finite", name)
		}
	}
	return f, nil
}
