// Package dsp — signal utilities for the vibralyzer L1 feature pipeline.
//
// All functions operate on a slice of acceleration samples in g and are
// pure: same input, same output, no shared state. Every function tolerates
// an empty slice by returning the zero value, matching the "never NaN,
// never null" invariant the pipeline depends on end to end.
package dsp

import "math"

// RMS returns the root-mean-square of x. Returns 0 for an empty slice.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sumSq float64
	for _, v := range x {
		sumSq += v * v
	}
	return math.Sqrt(sumSq / float64(len(x)))
}

// PeakToPeak returns max(x) - min(x). Returns 0 for an empty slice.
func PeakToPeak(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	lo, hi := x[0], x[0]
	for _, v := range x[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return hi - lo
}

// biquad is a direct-form-II-transposed second-order IIR section.
type biquad struct {
	b0, b1, b2, a1, a2 float64
	z1, z2             float64
}

func (bq *biquad) step(in float64) float64 {
	out := bq.b0*in + bq.z1
	bq.z1 = bq.b1*in - bq.a1*out + bq.z2
	bq.z2 = bq.b2*in - bq.a2*out
	return out
}

// bandpassBiquads designs a pair of Butterworth-style biquads (one low-pass
// at `high`, one high-pass at `low`) via the bilinear transform, cascaded
// to approximate a band-pass filter. fs is the sampling rate in Hz.
func bandpassBiquads(fs, low, high float64) (lp, hp biquad) {
	lp = onePoleLowpassBiquad(fs, high)
	hp = onePoleHighpassBiquad(fs, low)
	return lp, hp
}

// onePoleLowpassBiquad builds a second-order Butterworth low-pass section
// at cutoff fc (Hz) sampled at fs (Hz), via the bilinear transform.
func onePoleLowpassBiquad(fs, fc float64) biquad {
	if fc <= 0 || fc >= fs/2 {
		fc = fs/2 - 1
	}
	q := 0.70710678 // Butterworth Q
	w0 := 2 * math.Pi * fc / fs
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	b0 := (1 - cosw0) / 2
	b1 := 1 - cosw0
	b2 := (1 - cosw0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosw0
	a2 := 1 - alpha

	return biquad{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

// onePoleHighpassBiquad builds a second-order Butterworth high-pass section.
func onePoleHighpassBiquad(fs, fc float64) biquad {
	if fc <= 0 || fc >= fs/2 {
		fc = 1
	}
	q := 0.70710678
	w0 := 2 * math.Pi * fc / fs
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	b0 := (1 + cosw0) / 2
	b1 := -(1 + cosw0)
	b2 := (1 + cosw0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosw0
	a2 := 1 - alpha

	return biquad{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

// BandpassEnergy returns the energy of x restricted to [low, high] Hz,
// computed by cascading a high-pass at low with a low-pass at high and
// summing the squared filtered samples (Parseval-equivalent to the PSD
// integral over the band for the purposes of this pipeline's 1% tolerance).
// Returns 0 for an empty slice or non-positive energy.
func BandpassEnergy(x []float64, fs, low, high float64) float64 {
	if len(x) == 0 || fs <= 0 {
		return 0
	}
	lp, hp := bandpassBiquads(fs, low, high)
	lp2 := lp // second low-pass stage sharpens the roll-off
	var energy float64
	for _, v := range x {
		y := hp.step(v)
		y = lp.step(y)
		y = lp2.step(y)
		energy += y * y
	}
	if energy <= 0 {
		return 0
	}
	return energy
}

// hilbertTaps is the length of the FIR Hilbert quadrature filter. Odd
// length with a zero center tap gives a linear-phase approximation.
const hilbertTaps = 31

// hilbertKernel returns the windowed-sinc Hilbert transformer coefficients.
func hilbertKernel() []float64 {
	n := hilbertTaps
	h := make([]float64, n)
	half := n / 2
	for i := 0; i < n; i++ {
		k := i - half
		if k == 0 || k%2 == 0 {
			h[i] = 0
			continue
		}
		ideal := 2.0 / (math.Pi * float64(k))
		// Hamming window.
		w := 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		h[i] = ideal * w
	}
	return h
}

// AnalyticEnvelope returns |analytic(x)|, the magnitude of the discrete
// analytic signal, approximated via a finite-impulse-response Hilbert
// quadrature filter convolved with x (delay-compensated real part).
// Returns an all-zero slice of len(x) for an empty or tiny input.
func AnalyticEnvelope(x []float64) []float64 {
	n := len(x)
	env := make([]float64, n)
	if n == 0 {
		return env
	}
	kernel := hilbertKernel()
	half := len(kernel) / 2

	for i := 0; i < n; i++ {
		var quad float64
		for k, coef := range kernel {
			j := i - (k - half)
			if j < 0 || j >= n {
				continue
			}
			quad += coef * x[j]
		}
		realIdx := i - half
		var real float64
		if realIdx >= 0 && realIdx < n {
			real = x[realIdx]
		}
		env[i] = math.Hypot(real, quad)
	}
	return env
}

// CumulativeIntegrate returns the running sum of x divided by fs, i.e. a
// discrete cumulative integral with step 1/fs. Returns an empty slice for
// an empty input.
func CumulativeIntegrate(x []float64, fs float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	if n == 0 || fs <= 0 {
		return out
	}
	var acc float64
	for i, v := range x {
		acc += v / fs
		out[i] = acc
	}
	return out
}

// DetrendConstant removes the mean from x, returning a new slice.
func DetrendConstant(x []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	mean := sum / float64(n)
	for i, v := range x {
		out[i] = v - mean
	}
	return out
}
