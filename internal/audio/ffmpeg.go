package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

type probeInfo struct {
	SampleRate int
	Channels   int
}

// probe asks ffprobe for the native rate and channel layout of the first
// audio stream so the ffmpeg decode does not resample.
func (d *Decoder) probe(ctx context.Context, path string) (probeInfo, error) {
	bin := d.FFprobeBin
	if bin == "" {
		bin = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, bin, "-v", "error", "-select_streams", "a:0",
		"-show_streams", "-of", "json", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return probeInfo{}, fmt.Errorf("ffprobe: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}
	var parsed struct {
		Streams []struct {
			CodecType  string `json:"codec_type"`
			SampleRate string `json:"sample_rate"`
			Channels   int    `json:"channels"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out, &parsed); err != nil {
		return probeInfo{}, fmt.Errorf("ffprobe output: %w", err)
	}
	for _, s := range parsed.Streams {
		if s.CodecType != "audio" {
			continue
		}
		rate, _ := strconv.Atoi(s.SampleRate)
		if rate <= 0 || s.Channels <= 0 {
			break
		}
		return probeInfo{SampleRate: rate, Channels: s.Channels}, nil
	}
	return probeInfo{}, ErrUnsupportedFormat
}

func (d *Decoder) decodeFFmpeg(ctx context.Context, path string) (*Buffer, error) {
	info, err := d.probe(ctx, path)
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, d.FFmpegBin,
		"-v", "error",
		"-i", path,
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ac", strconv.Itoa(info.Channels),
		"-ar", strconv.Itoa(info.SampleRate),
		"-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	raw, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	numSamples := len(raw) / 4
	data := make([]float64, numSamples)
	for i := 0; i < numSamples; i++ {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		data[i] = float64(math.Float32frombits(bits))
	}
	return &Buffer{
		Data:       data,
		Channels:   info.Channels,
		SampleRate: info.SampleRate,
		Format:     FormatFFmpeg,
	}, nil
}
