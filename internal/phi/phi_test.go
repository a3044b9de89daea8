package phi_test

import (
	"testing"

	"github.com/solusimicro/vibralyzer/internal/phi"
	"github.com/solusimicro/vibralyzer/internal/types"
)

func defaultComputer() *phi.Computer {
	return phi.New(phi.DefaultWeights(), phi.DefaultScales(), phi.DefaultCutoffs())
}

func TestCompute_AllZeroIsPerfectHealth(t *testing.T) {
	c := defaultComputer()
	got := c.Compute(0, 0, 0)
	if got != 100.0 {
		t.Fatalf("expected PHI=100.0, got %v", got)
	}
	if c.ToState(got) != types.StateNormal {
		t.Fatalf("expected NORMAL, got %v", c.ToState(got))
	}
}

func TestCompute_LowAmplitudeSinusoidIsHealthy(t *testing.T) {
	c := defaultComputer()
	// overall_vel_rms_mm_s ~= 0.442, envelope/crest near their clean-signal
	// values; regardless of exact envelope/crest, velocity alone yields a
	// severity well under the NORMAL threshold.
	got := c.Compute(0.442, 0.01, 1.4142)
	if got < 90 {
		t.Fatalf("expected PHI >= 90, got %v", got)
	}
	if c.ToState(got) != types.StateNormal {
		t.Fatalf("expected NORMAL, got %v", c.ToState(got))
	}
}

func TestCompute_HighVelocityDegradesHealth(t *testing.T) {
	c := defaultComputer()
	got := c.Compute(9.945, 0.3, 3.0)
	if got > 55 {
		t.Fatalf("expected PHI <= 55, got %v", got)
	}
	state := c.ToState(got)
	if state != types.StateWarning && state != types.StateAlarm {
		t.Fatalf("expected WARNING or ALARM, got %v", state)
	}
}

func TestCompute_ClampsRunawayInput(t *testing.T) {
	c := defaultComputer()
	got := c.Compute(1000, 1000, 1000) // all far past full scale
	if got != 0 {
		t.Fatalf("expected PHI floor of 0, got %v", got)
	}
}

func TestToState_BoundariesAreClosedOnUpperSide(t *testing.T) {
	c := defaultComputer()
	cases := []struct {
		phi   float64
		state types.StateLabel
	}{
		{90, types.StateNormal},
		{89.9, types.StateWatch},
		{75, types.StateWatch},
		{74.9, types.StateWarning},
		{55, types.StateWarning},
		{54.9, types.StateAlarm},
	}
	for _, tc := range cases {
		if got := c.ToState(tc.phi); got != tc.state {
			t.Errorf("ToState(%v) = %v, want %v", tc.phi, got, tc.state)
		}
	}
}

func TestCompute_RoundsToOneDecimal(t *testing.T) {
	c := defaultComputer()
	got := c.Compute(3.55, 0.175, 3.0)
	// severity = 0.5*(3.55/7.1) + 0.3*(0.175/0.35) + 0.2*(3.0/6.0)
	//          = 0.5*0.5 + 0.3*0.5 + 0.2*0.5 = 0.5
	// PHI = round(100*0.5, 1) = 50.0
	if got != 50.0 {
		t.Fatalf("expected PHI=50.0, got %v", got)
	}
}
