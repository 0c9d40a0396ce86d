package surrogate

import (
	"math"
	"testing"
)

func TestNewNetworkValidatesSizes(t *testing.T) {
	if _, err := NewNetwork([]int{4}, 1); err == nil {
		t.Fatalf("expected single-layer sizes to be rejected")
	}
	if _, err := NewNetwork([]int{4, 8, 2}, 1); err == nil {
		t.Fatalf("expected multi-output network to be rejected")
	}
}

func TestNetworkInitIsDeterministicPerSeed(t *testing.T) {
	a, err := NewNetwork([]int{3, 4, 1}, 9)
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	b, err := NewNetwork([]int{3, 4, 1}, 9)
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	input := []float64{0.1, 0.5, 0.9}
	outA, err := a.Forward(input)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	outB, err := b.Forward(input)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if outA != outB {
		t.Fatalf("identical seeds produced different outputs: %g vs %g", outA, outB)
	}
}

func TestForwardRejectsWrongInputWidth(t *testing.T) {
	net, err := NewNetwork([]int{3, 4, 1}, 9)
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	if _, err := net.Forward([]float64{1, 2}); err == nil {
		t.Fatalf("expected wrong input width to be rejected")
	}
}

func TestStepDrivesLossDown(t *testing.T) {
	net, err := NewNetwork([]int{2, 8, 1}, 9)
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	input := []float64{0.3, 0.7}
	target := 0.5

	first, err := net.Step(input, target, 0.05)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	var last float64
	for i := 0; i < 200; i++ {
		last, err = net.Step(input, target, 0.05)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if last >= first {
		t.Fatalf("expected loss to fall, got %g -> %g", first, last)
	}

	out, err := net.Forward(input)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if math.Abs(out-target) > 0.05 {
		t.Fatalf("expected convergence near %g after repeated steps, got %g", target, out)
	}
}
