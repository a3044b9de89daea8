package dsp_test

import (
	"math"
	"testing"

	"github.com/solusimicro/vibralyzer/internal/dsp"
)

func sineWave(amplitude, freq, fs float64, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/fs)
	}
	return x
}

func TestRMS_Empty(t *testing.T) {
	if got := dsp.RMS(nil); got != 0 {
		t.Fatalf("RMS(nil) = %v, want 0", got)
	}
}

func TestRMS_Sine(t *testing.T) {
	x := sineWave(0.02, 50, 25600, 4096)
	got := dsp.RMS(x)
	want := 0.02 / math.Sqrt2
	if math.Abs(got-want) > 1e-4 {
		t.Errorf("RMS(sine) = %v, want ~%v", got, want)
	}
}

func TestPeakToPeak_Empty(t *testing.T) {
	if got := dsp.PeakToPeak(nil); got != 0 {
		t.Fatalf("PeakToPeak(nil) = %v, want 0", got)
	}
}

func TestPeakToPeak_Sine(t *testing.T) {
	x := sineWave(0.02, 50, 25600, 4096)
	got := dsp.PeakToPeak(x)
	if math.Abs(got-0.04) > 1e-3 {
		t.Errorf("PeakToPeak(sine amp 0.02) = %v, want ~0.04", got)
	}
}

func TestBandpassEnergy_ZeroInput(t *testing.T) {
	x := make([]float64, 4096)
	if got := dsp.BandpassEnergy(x, 25600, 10, 100); got != 0 {
		t.Errorf("BandpassEnergy(zeros) = %v, want 0", got)
	}
}

func TestBandpassEnergy_InBandSineIsLarger(t *testing.T) {
	fs := 25600.0
	inBand := sineWave(0.1, 50, fs, 4096)     // inside 10-100 Hz
	outOfBand := sineWave(0.1, 8000, fs, 4096) // far outside
	inEnergy := dsp.BandpassEnergy(inBand, fs, 10, 100)
	outEnergy := dsp.BandpassEnergy(outOfBand, fs, 10, 100)
	if inEnergy <= outEnergy {
		t.Errorf("expected in-band energy (%v) > out-of-band energy (%v)", inEnergy, outEnergy)
	}
}

func TestAnalyticEnvelope_EmptyInput(t *testing.T) {
	env := dsp.AnalyticEnvelope(nil)
	if len(env) != 0 {
		t.Fatalf("expected empty envelope, got len %d", len(env))
	}
}

func TestAnalyticEnvelope_SineHasApproxConstantEnvelope(t *testing.T) {
	amp := 0.5
	x := sineWave(amp, 50, 25600, 4096)
	env := dsp.AnalyticEnvelope(x)
	// Check the interior (away from filter edge transients) stays near amp.
	for i := 200; i < len(env)-200; i += 100 {
		if math.Abs(env[i]-amp) > amp*0.15 {
			t.Errorf("envelope[%d] = %v, want ~%v", i, env[i], amp)
		}
	}
}

func TestCumulativeIntegrate_Empty(t *testing.T) {
	out := dsp.CumulativeIntegrate(nil, 1000)
	if len(out) != 0 {
		t.Fatalf("expected empty output, got len %d", len(out))
	}
}

func TestCumulativeIntegrate_Constant(t *testing.T) {
	x := []float64{1, 1, 1, 1}
	out := dsp.CumulativeIntegrate(x, 1000)
	want := []float64{0.001, 0.002, 0.003, 0.004}
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-9 {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestDetrendConstant_RemovesMean(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	out := dsp.DetrendConstant(x)
	var sum float64
	for _, v := range out {
		sum += v
	}
	if math.Abs(sum) > 1e-9 {
		t.Errorf("sum of detrended = %v, want ~0", sum)
	}
}

func TestDetrendConstant_Empty(t *testing.T) {
	out := dsp.DetrendConstant(nil)
	if len(out) != 0 {
		t.Fatalf("expected empty output, got len %d", len(out))
	}
}
