// Package features implements the L1 feature pipeline: one
// Window of acceleration samples in, one deterministic FeatureVector out,
// in SI units, never NaN, never null.
package features

import (
	"math"
	"time"

	"github.com/solusimicro/vibralyzer/internal/dsp"
	"github.com/solusimicro/vibralyzer/internal/types"
)

const gToMS2 = 9.80665

// Pipeline computes L1 features for a fixed sampling rate.
type Pipeline struct {
	samplingRate float64
}

// New creates a Pipeline sampled at fs Hz. fs must be > 0.
func New(fs float64) *Pipeline {
	if fs <= 0 {
		panic("features.New: sampling rate must be > 0")
	}
	return &Pipeline{samplingRate: fs}
}

// Compute derives the FeatureVector for one window of acceleration samples
// in g. An empty window yields the canonical all-zero vector. Every returned value is finite.
func (p *Pipeline) Compute(window []float64) types.FeatureVector {
	if len(window) == 0 {
		return types.FeatureVector{}
	}

	accRMS := dsp.RMS(window)
	accPeak := dsp.PeakToPeak(window) / 2.0

	hfEnergy := dsp.BandpassEnergy(window, p.samplingRate, 3000, 10000)
	accHFRMS := 0.0
	if hfEnergy > 0 {
		accHFRMS = math.Sqrt(hfEnergy / float64(len(window)))
	}

	crest := 0.0
	if accRMS > 0 {
		crest = accPeak / accRMS
	}

	envelope := dsp.AnalyticEnvelope(window)
	envelopeRMS := dsp.RMS(envelope)

	accMS2 := make([]float64, len(window))
	for i, v := range window {
		accMS2[i] = v * gToMS2
	}
	velMS := dsp.CumulativeIntegrate(accMS2, p.samplingRate)
	velMS = dsp.DetrendConstant(velMS)
	overallVelRMSmmS := dsp.RMS(velMS) * 1000.0

	energyLow := dsp.BandpassEnergy(window, p.samplingRate, 10, 100)
	energyHigh := dsp.BandpassEnergy(window, p.samplingRate, 1000, 5000)

	fv := types.FeatureVector{
		AccRMSg:          finite(accRMS),
		AccPeakg:         finite(accPeak),
		AccHFRMSg:        finite(accHFRMS),
		CrestFactor:      finite(crest),
		EnvelopeRMS:      finite(envelopeRMS),
		OverallVelRMSmmS: finite(overallVelRMSmmS),
		EnergyLow:        finite(energyLow),
		EnergyHigh:       finite(energyHigh),
		Timestamp:        float64(time.Now().UnixNano()) / 1e9,
	}
	return fv
}

// finite guards against NaN/Inf creeping into a feature value
// by collapsing any non-finite result to 0.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
