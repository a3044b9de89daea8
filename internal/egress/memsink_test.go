package egress_test

import (
	"testing"

	"github.com/solusimicro/vibralyzer/internal/egress"
	"github.com/solusimicro/vibralyzer/internal/types"
)

func TestMemSink_RecordsHealthPayloads(t *testing.T) {
	s := egress.NewMemSink()
	p := egress.HealthPayload{Site: "s1", Asset: "a1", Point: "p1", PointHealthIdx: 80, State: types.StateWatch}
	if err := s.PublishHealth(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := s.Health()
	if len(got) != 1 || got[0].PointHealthIdx != 80 {
		t.Fatalf("expected one recorded health payload with PHI 80, got %+v", got)
	}
}

func TestMemSink_ReturnsIndependentCopies(t *testing.T) {
	s := egress.NewMemSink()
	s.PublishL1(egress.L1Payload{Site: "s1"})
	got := s.L1()
	got[0].Site = "mutated"
	if s.L1()[0].Site != "s1" {
		t.Fatal("mutating a returned slice should not affect sink state")
	}
}

func TestMemSink_EachChannelIndependent(t *testing.T) {
	s := egress.NewMemSink()
	s.PublishEarlyFault(egress.EarlyFaultPayload{Site: "s1"})
	if len(s.Health()) != 0 {
		t.Fatal("publishing early-fault should not appear in Health()")
	}
}
