package models

import "time"

type AnalysisStatus string

const (
	AnalysisOK    AnalysisStatus = "ok"
	AnalysisError AnalysisStatus = "error"
)

// AnalysisRecord is one row of the optional analysis history.
type AnalysisRecord struct {
	ID                int64          `json:"id"`
	FileName          string         `json:"file_name"`
	Size              int64          `json:"size"`
	Digest            string         `json:"digest"`
	Status            AnalysisStatus `json:"status"`
	Tempo             float64        `json:"tempo"`
	SpectralCentroid  float64        `json:"spectral_centroid"`
	SpectralBandwidth float64        `json:"spectral_bandwidth"`
	RMS               float64        `json:"rms"`
	SampleRate        int            `json:"sample_rate"`
	Channels          int            `json:"channels"`
	Duration          float64        `json:"duration_seconds"`
	Error             string         `json:"error,omitempty"`
	ElapsedMS         int64          `json:"elapsed_ms"`
	CreatedAt         time.Time      `json:"created_at"`
}
