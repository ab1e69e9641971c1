package models

import "fmt"

const AdvisoryComment = "Consider adjusting the tempo for better groove and balancing brightness for clarity."

// Features holds the raw measurements behind a Feedback.
type Features struct {
	Tempo             float64 `json:"tempo"`
	SpectralCentroid  float64 `json:"spectral_centroid"`
	SpectralBandwidth float64 `json:"spectral_bandwidth"`
	RMS               float64 `json:"rms"`
	SampleRate        int     `json:"sample_rate"`
	Channels          int     `json:"channels"`
	Duration          float64 `json:"duration_seconds"`
	Format            string  `json:"format"`
}

// Feedback is the analysis outcome returned to clients. Either the four
// descriptions plus Comments are set, or only Error is.
type Feedback struct {
	Tempo             string `json:"tempo,omitempty"`
	SpectralCentroid  string `json:"spectral_centroid,omitempty"`
	SpectralBandwidth string `json:"spectral_bandwidth,omitempty"`
	RMSE              string `json:"rmse,omitempty"`
	Comments          string `json:"comments,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Describe renders features into the fixed sentence templates.
func Describe(f *Features) Feedback {
	return Feedback{
		Tempo:             fmt.Sprintf("Estimated BPM: %.2f", f.Tempo),
		SpectralCentroid:  fmt.Sprintf("Brightness of the sound: %.2f", f.SpectralCentroid),
		SpectralBandwidth: fmt.Sprintf("Frequency spread: %.2f", f.SpectralBandwidth),
		RMSE:              fmt.Sprintf("Dynamic range (RMS energy): %.2f", f.RMS),
		Comments:          AdvisoryComment,
	}
}

// FeedbackError wraps a failed analysis.
func FeedbackError(err error) Feedback {
	msg := "analysis failed"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return Feedback{Error: msg}
}

func (f Feedback) Failed() bool {
	return f.Error != ""
}
