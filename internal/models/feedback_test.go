package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestDescribeUsesTwoDecimals(t *testing.T) {
	fb := Describe(&Features{Tempo: 117.4531, SpectralCentroid: 440, SpectralBandwidth: 12.345, RMS: 0.34679})
	if fb.Tempo != "Estimated BPM: 117.45" {
		t.Fatalf("tempo: %q", fb.Tempo)
	}
	if fb.SpectralCentroid != "Brightness of the sound: 440.00" {
		t.Fatalf("centroid: %q", fb.SpectralCentroid)
	}
	if fb.SpectralBandwidth != "Frequency spread: 12.35" && fb.SpectralBandwidth != "Frequency spread: 12.34" {
		t.Fatalf("bandwidth: %q", fb.SpectralBandwidth)
	}
	if fb.RMSE != "Dynamic range (RMS energy): 0.35" {
		t.Fatalf("rmse: %q", fb.RMSE)
	}
	if fb.Comments != AdvisoryComment || fb.Failed() {
		t.Fatalf("unexpected feedback %+v", fb)
	}
}

func TestFeedbackErrorOmitsFeatureFields(t *testing.T) {
	fb := FeedbackError(errors.New("decode audio: file is empty"))
	if !fb.Failed() {
		t.Fatalf("expected failed feedback")
	}
	data, err := json.Marshal(fb)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"error":"decode audio: file is empty"}` {
		t.Fatalf("unexpected json %s", data)
	}
	if !strings.Contains(FeedbackError(nil).Error, "failed") {
		t.Fatalf("nil error should still produce a message")
	}
}
