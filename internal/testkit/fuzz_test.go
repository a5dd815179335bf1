package testkit

import "testing"

func TestRunAcceptsManyRandomInstances(t *testing.T) {
	for seed := int64(1); seed <= 200; seed++ {
		if _, err := Run(seed, DefaultFuzzConfig); err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
	}
}

func TestRunHandlesMinimalTwoNodeInstances(t *testing.T) {
	cfg := FuzzConfig{MinNodes: 2, MaxNodes: 2, EdgeProbability: 0}
	for seed := int64(1); seed <= 50; seed++ {
		if _, err := Run(seed, cfg); err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
	}
}

func TestRunScalesToModeratelyLargeInstances(t *testing.T) {
	cfg := FuzzConfig{MinNodes: 16, MaxNodes: 24, EdgeProbability: 0.15}
	for seed := int64(1); seed <= 20; seed++ {
		result, err := Run(seed, cfg)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if result.Deadlocked {
			t.Fatalf("seed %d: reported deadlocked without returning an error", seed)
		}
	}
}
