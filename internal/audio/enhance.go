package audio

import "math"

// Enhancement constants. Normalization happens before filtering so the
// highpass operates on a consistent level.
const (
	normalizeTarget = 0.9
	highpassCutoff  = 80.0
)

// Butterworth Q values for a 4th-order filter split into two biquad sections.
var butterworthQ = [2]float64{0.5412, 1.3066}

// Enhance normalizes a chunk to the target peak and removes low-frequency
// rumble with an 80 Hz highpass. The input slice is modified in place and
// returned. Filter state does not carry across chunks.
func Enhance(samples []float32, sampleRate int) []float32 {
	if len(samples) == 0 {
		return samples
	}

	Normalize(samples, normalizeTarget)

	for _, q := range butterworthQ {
		b0, b1, b2, a1, a2 := highpassCoeffs(highpassCutoff, float64(sampleRate), q)
		applyBiquad(samples, b0, b1, b2, a1, a2)
	}

	return samples
}

// Normalize scales samples so the peak amplitude equals target. Silent
// buffers are left untouched.
func Normalize(samples []float32, target float64) {
	var peak float64
	for _, s := range samples {
		if v := math.Abs(float64(s)); v > peak {
			peak = v
		}
	}
	if peak == 0 {
		return
	}

	gain := float32(target / peak)
	for i := range samples {
		samples[i] *= gain
	}
}

// highpassCoeffs computes normalized biquad coefficients for a highpass
// section at the given cutoff and quality factor.
func highpassCoeffs(cutoff, sampleRate, q float64) (b0, b1, b2, a1, a2 float64) {
	omega := 2 * math.Pi * cutoff / sampleRate
	sinw := math.Sin(omega)
	cosw := math.Cos(omega)
	alpha := sinw / (2 * q)

	a0 := 1 + alpha
	b0 = (1 + cosw) / 2 / a0
	b1 = -(1 + cosw) / a0
	b2 = (1 + cosw) / 2 / a0
	a1 = -2 * cosw / a0
	a2 = (1 - alpha) / a0
	return
}

// applyBiquad runs one direct form II transposed section over the buffer.
func applyBiquad(samples []float32, b0, b1, b2, a1, a2 float64) {
	var z1, z2 float64
	for i := range samples {
		x := float64(samples[i])
		y := b0*x + z1
		z1 = b1*x - a1*y + z2
		z2 = b2*x - a2*y
		samples[i] = float32(y)
	}
}
