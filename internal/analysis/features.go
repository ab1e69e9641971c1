package analysis

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	frameLength = 2048
	hopLength   = 512

	minTempo     = 30.0
	maxTempo     = 320.0
	priorTempo   = 120.0
	priorOctaves = 1.0
	acSeconds    = 8.0
	topDB        = 80.0
)

// spectrogram is the magnitude STFT, one row per frame.
type spectrogram struct {
	frames     [][]float64
	freqs      []float64
	sampleRate int
}

// centerPad zero-pads half a frame on each side so frame t is centred on
// sample t*hop.
func centerPad(y []float64, n int) []float64 {
	pad := n / 2
	out := make([]float64, len(y)+2*pad)
	copy(out[pad:], y)
	return out
}

func frameCount(padded, n, hop int) int {
	if padded < n {
		return 0
	}
	return 1 + (padded-n)/hop
}

// hann returns a periodic Hann window.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

func stft(y []float64, sampleRate int) *spectrogram {
	padded := centerPad(y, frameLength)
	count := frameCount(len(padded), frameLength, hopLength)
	window := hann(frameLength)
	fft := fourier.NewFFT(frameLength)

	bins := frameLength/2 + 1
	freqs := make([]float64, bins)
	for k := range freqs {
		freqs[k] = float64(k) * float64(sampleRate) / float64(frameLength)
	}

	frame := make([]float64, frameLength)
	coeffs := make([]complex128, bins)
	frames := make([][]float64, count)
	for t := 0; t < count; t++ {
		start := t * hopLength
		for i := 0; i < frameLength; i++ {
			frame[i] = padded[start+i] * window[i]
		}
		coeffs = fft.Coefficients(coeffs, frame)
		mag := make([]float64, bins)
		for k, c := range coeffs {
			mag[k] = math.Hypot(real(c), imag(c))
		}
		frames[t] = mag
	}
	return &spectrogram{frames: frames, freqs: freqs, sampleRate: sampleRate}
}

// centroids returns the magnitude-weighted mean frequency of each frame.
// Silent frames yield 0.
func (s *spectrogram) centroids() []float64 {
	out := make([]float64, len(s.frames))
	for t, mag := range s.frames {
		var num, den float64
		for k, m := range mag {
			num += s.freqs[k] * m
			den += m
		}
		if den > 0 {
			out[t] = num / den
		}
	}
	return out
}

// bandwidths returns the second-order spread of each frame around its
// centroid, using the frame magnitude normalised to unit sum.
func (s *spectrogram) bandwidths(centroids []float64) []float64 {
	out := make([]float64, len(s.frames))
	for t, mag := range s.frames {
		var total float64
		for _, m := range mag {
			total += m
		}
		if total <= 0 {
			continue
		}
		var acc float64
		for k, m := range mag {
			d := s.freqs[k] - centroids[t]
			acc += (m / total) * d * d
		}
		out[t] = math.Sqrt(acc)
	}
	return out
}

// rmsFrames computes root-mean-square energy over centred frames.
func rmsFrames(y []float64) []float64 {
	padded := centerPad(y, frameLength)
	count := frameCount(len(padded), frameLength, hopLength)
	out := make([]float64, count)
	for t := 0; t < count; t++ {
		start := t * hopLength
		var sum float64
		for _, v := range padded[start : start+frameLength] {
			sum += v * v
		}
		out[t] = math.Sqrt(sum / frameLength)
	}
	return out
}

// onsetEnvelope is the half-wave rectified frame-to-frame increase of the
// log-power spectrum, averaged across bins. Power is expressed in dB
// relative to the loudest bin and floored at -topDB.
func (s *spectrogram) onsetEnvelope() []float64 {
	env := make([]float64, len(s.frames))
	if len(s.frames) < 2 {
		return env
	}
	var peak float64
	for _, mag := range s.frames {
		for _, m := range mag {
			if p := m * m; p > peak {
				peak = p
			}
		}
	}
	if peak <= 0 {
		return env
	}
	toDB := func(m float64) float64 {
		p := m * m
		if p < 1e-10 {
			p = 1e-10
		}
		db := 10 * math.Log10(p/peak)
		if db < -topDB {
			db = -topDB
		}
		return db
	}

	prev := make([]float64, len(s.frames[0]))
	for k, m := range s.frames[0] {
		prev[k] = toDB(m)
	}
	cur := make([]float64, len(prev))
	for t := 1; t < len(s.frames); t++ {
		var flux float64
		for k, m := range s.frames[t] {
			cur[k] = toDB(m)
			if d := cur[k] - prev[k]; d > 0 {
				flux += d
			}
		}
		env[t] = flux / float64(len(cur))
		prev, cur = cur, prev
	}
	return env
}

// estimateTempo picks the autocorrelation lag of the onset envelope with the
// highest score under a log-normal prior centred on priorTempo. An envelope
// with no onsets yields 0. When no lag correlates positively the prior's
// mode is returned.
func estimateTempo(env []float64, sampleRate int) float64 {
	hasOnset := false
	for _, v := range env {
		if v > 0 {
			hasOnset = true
			break
		}
	}
	if !hasOnset {
		return 0
	}

	framesPerMinute := 60 * float64(sampleRate) / hopLength
	minLag := int(math.Ceil(framesPerMinute / maxTempo))
	if minLag < 1 {
		minLag = 1
	}
	maxLag := int(math.Floor(framesPerMinute / minTempo))
	if acMax := int(math.Round(acSeconds * float64(sampleRate) / hopLength)); maxLag > acMax {
		maxLag = acMax
	}
	if maxLag > len(env)-1 {
		maxLag = len(env) - 1
	}

	avg := mean(env)

	bestLag, bestScore := 0, 0.0
	fallbackLag, fallbackPrior := 0, -1.0
	for lag := minLag; lag <= maxLag; lag++ {
		var acc float64
		n := len(env) - lag
		for i := 0; i < n; i++ {
			acc += (env[i] - avg) * (env[i+lag] - avg)
		}
		acc /= float64(n)

		bpm := framesPerMinute / float64(lag)
		z := math.Log2(bpm/priorTempo) / priorOctaves
		prior := math.Exp(-0.5 * z * z)
		if prior > fallbackPrior {
			fallbackLag, fallbackPrior = lag, prior
		}
		if score := acc * prior; score > bestScore {
			bestLag, bestScore = lag, score
		}
	}
	if bestLag == 0 {
		bestLag = fallbackLag
	}
	if bestLag == 0 {
		return priorTempo
	}
	return framesPerMinute / float64(bestLag)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
