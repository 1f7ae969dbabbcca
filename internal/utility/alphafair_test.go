package utility

import (
	"math"
	"testing"

	"github.com/heistp/flowforge/internal/flow"
	"github.com/heistp/flowforge/internal/quantities"
)

func TestAlphaFairness(t *testing.T) {
	const tol = 1e-9

	t.Run("alpha=1 is log utility", func(t *testing.T) {
		got := alphaFairness(10, 1)
		want := math.Log(10 + epsilon)
		if math.Abs(got-want) > tol {
			t.Errorf("alphaFairness(10, 1) = %v, want %v", got, want)
		}
	})

	t.Run("alpha=2 is power utility", func(t *testing.T) {
		got := alphaFairness(10, 2)
		want := math.Pow(10+epsilon, -1) / -1
		if math.Abs(got-want) > tol {
			t.Errorf("alphaFairness(10, 2) = %v, want %v", got, want)
		}
	})

	t.Run("monotonic in x", func(t *testing.T) {
		for _, alpha := range []float64{0, 1, 2} {
			lo := alphaFairness(1, alpha)
			hi := alphaFairness(100, alpha)
			if hi <= lo {
				t.Errorf("alpha=%v: alphaFairness not increasing in x: f(1)=%v, f(100)=%v", alpha, lo, hi)
			}
		}
	})
}

func TestAggregator(t *testing.T) {
	scores := []float64{1, 5, -2, 3}

	if got, want := Mean.aggregate(scores), (1.0+5-2+3)/4; got != want {
		t.Errorf("Mean.aggregate(%v) = %v, want %v", scores, got, want)
	}
	if got, want := Minimum.aggregate(scores), -2.0; got != want {
		t.Errorf("Minimum.aggregate(%v) = %v, want %v", scores, got, want)
	}
}

func TestAggregatorUnrecognizedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unrecognized Aggregator")
		}
	}()
	Aggregator(99).aggregate([]float64{1})
}

func TestFlowUtilityClampsRTT(t *testing.T) {
	a := AlphaFairness{Alpha: 1, Beta: 1, Delta: 1, WorstCaseRTT: 10, Aggregator: Mean}

	within := a.FlowUtility(flow.Properties{
		Throughput: quantities.InformationRate(1e6),
		RTT:        quantities.SecondsSpan(5),
	})
	beyond := a.FlowUtility(flow.Properties{
		Throughput: quantities.InformationRate(1e6),
		RTT:        quantities.SecondsSpan(1000),
	})
	atCap := a.FlowUtility(flow.Properties{
		Throughput: quantities.InformationRate(1e6),
		RTT:        quantities.SecondsSpan(10),
	})
	if math.Abs(beyond-atCap) > 1e-9 {
		t.Errorf("RTT beyond WorstCaseRTT not clamped: beyond=%v atCap=%v", beyond, atCap)
	}
	if beyond >= within {
		t.Errorf("higher RTT should not score better: within=%v beyond=%v", within, beyond)
	}
}

func TestFlowUtilityNegativeRTTClampedToZero(t *testing.T) {
	a := AlphaFairness{Alpha: 1, Beta: 1, Delta: 1, WorstCaseRTT: 10, Aggregator: Mean}
	neg := a.FlowUtility(flow.Properties{
		Throughput: quantities.InformationRate(1e6),
		RTT:        quantities.SecondsSpan(-5),
	})
	zero := a.FlowUtility(flow.Properties{
		Throughput: quantities.InformationRate(1e6),
		RTT:        quantities.SecondsSpan(0),
	})
	if math.Abs(neg-zero) > 1e-9 {
		t.Errorf("negative RTT not clamped to zero: neg=%v zero=%v", neg, zero)
	}
}

func TestUtilityFunctionAggregatesAcrossFlows(t *testing.T) {
	flows := []flow.Properties{
		{Throughput: quantities.InformationRate(1e6), RTT: quantities.SecondsSpan(1)},
		{Throughput: quantities.InformationRate(2e6), RTT: quantities.SecondsSpan(2)},
	}
	got := ProportionalThroughputDelayFairness.UtilityFunction()(flows)
	want := Mean.aggregate([]float64{
		ProportionalThroughputDelayFairness.FlowUtility(flows[0]),
		ProportionalThroughputDelayFairness.FlowUtility(flows[1]),
	})
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("UtilityFunction()(flows) = %v, want %v", got, want)
	}
}

func TestPresets(t *testing.T) {
	if ProportionalThroughputDelayFairness.Alpha != 1 || ProportionalThroughputDelayFairness.Beta != 1 {
		t.Errorf("ProportionalThroughputDelayFairness has unexpected Alpha/Beta: %+v", ProportionalThroughputDelayFairness)
	}
	if MinimiseFixedLengthFileTransfer.Delta != 0 || MinimiseFixedLengthFileTransfer.Alpha != 2 {
		t.Errorf("MinimiseFixedLengthFileTransfer has unexpected Alpha/Delta: %+v", MinimiseFixedLengthFileTransfer)
	}
}
