package features_test

import (
	"math"
	"testing"

	"github.com/solusimicro/vibralyzer/internal/features"
	"github.com/solusimicro/vibralyzer/internal/types"
)

func TestCompute_EmptyWindowIsZeroVector(t *testing.T) {
	p := features.New(1000)
	fv := p.Compute(nil)
	if !fv.Zero() {
		t.Fatalf("expected zero vector, got %+v", fv)
	}
}

func TestCompute_AllZeroSamples(t *testing.T) {
	p := features.New(1000)
	fv := p.Compute([]float64{0, 0, 0, 0})
	if !fv.Zero() {
		t.Fatalf("expected zero vector for all-zero window, got %+v", fv)
	}
}

func TestCompute_Totality_AllFiniteAndNonNegative(t *testing.T) {
	p := features.New(25600)
	window := make([]float64, 4096)
	for i := range window {
		window[i] = 0.02 * math.Sin(2*math.Pi*50*float64(i)/25600)
	}
	fv := p.Compute(window)
	for _, name := range types.FeatureKeys {
		v, ok := fv.Get(name)
		if !ok {
			t.Fatalf("missing feature key %q", name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("feature %q is not finite: %v", name, v)
		}
		if v < 0 {
			t.Errorf("feature %q is negative: %v", name, v)
		}
	}
}

func TestCompute_PureSinusoid(t *testing.T) {
	fs := 25600.0
	p := features.New(fs)
	window := make([]float64, 4096)
	for i := range window {
		window[i] = 0.02 * math.Sin(2*math.Pi*50*float64(i)/fs)
	}
	fv := p.Compute(window)

	if math.Abs(fv.AccRMSg-0.01414) > 0.001 {
		t.Errorf("acc_rms_g = %v, want ~0.01414", fv.AccRMSg)
	}
	if math.Abs(fv.CrestFactor-math.Sqrt2) > 0.05 {
		t.Errorf("crest_factor = %v, want ~sqrt(2)", fv.CrestFactor)
	}
	if math.Abs(fv.OverallVelRMSmmS-0.442) > 0.05 {
		t.Errorf("overall_vel_rms_mm_s = %v, want ~0.442", fv.OverallVelRMSmmS)
	}
}

func TestCompute_NoisyLargeAmplitudeHighVelocity(t *testing.T) {
	fs := 25600.0
	p := features.New(fs)
	window := make([]float64, 4096)
	// Large low-frequency component dominates the velocity integral.
	for i := range window {
		window[i] = 0.45 * math.Sin(2*math.Pi*50*float64(i)/fs)
	}
	// Deterministic pseudo-noise (no math/rand — keeps the test hermetic)
	// added on top to exercise a broadband-ish signal without flakiness.
	for i := range window {
		window[i] += 0.3 * math.Sin(2*math.Pi*4000*float64(i)/fs+float64(i))
	}
	fv := p.Compute(window)
	if fv.OverallVelRMSmmS <= 7.1 {
		t.Errorf("expected overall_vel_rms_mm_s > 7.1 for a noisy high-amplitude signal, got %v", fv.OverallVelRMSmmS)
	}
}
