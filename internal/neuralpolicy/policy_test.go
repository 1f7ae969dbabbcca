package neuralpolicy

import (
	"testing"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestBoundsNormalizeUnnormalizeRoundTrip(t *testing.T) {
	b := Bounds{Min: [3]float64{0, -10, 1}, Max: [3]float64{100, 10, 5}}
	raw := [3]float64{50, 0, 3}
	norm := b.Normalize(raw)
	got := b.Unnormalize(norm)
	for i := range raw {
		if diff := got[i] - raw[i]; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("round trip [%d] = %v, want %v", i, got[i], raw[i])
		}
	}
}

func TestBoundsNormalizeClampsOutOfRangeInput(t *testing.T) {
	b := Bounds{Min: [3]float64{0, 0, 0}, Max: [3]float64{10, 10, 10}}
	got := b.Normalize([3]float64{-5, 15, 5})
	if got[0] != -1 {
		t.Errorf("Normalize()[0] = %v, want -1 (clamped below range)", got[0])
	}
	if got[1] != 1 {
		t.Errorf("Normalize()[1] = %v, want 1 (clamped above range)", got[1])
	}
}

func TestBoundsNormalizeDegenerateSpanReturnsLowerBound(t *testing.T) {
	b := Bounds{Min: [3]float64{5, 0, 0}, Max: [3]float64{5, 10, 10}}
	got := b.Normalize([3]float64{5, 0, 0})
	if got[0] != -1 {
		t.Errorf("Normalize() with zero-width span = %v, want -1", got[0])
	}
}

func TestNewBuildsParamsForBothNetworks(t *testing.T) {
	p := New(Hyperparameters{Hidden0: 4, Hidden1: 4})
	params := p.Params()
	// actor: w0,b0,w1,b1,w2,b2,log_stddev (7); critic: w0,b0,w1,b1,w2,b2 (6).
	if len(params) != 13 {
		t.Fatalf("Params() len = %d, want 13", len(params))
	}
	if p.Graph() == nil {
		t.Fatal("Graph() returned nil")
	}
}

func TestMeanActionProducesTanhBoundedOutput(t *testing.T) {
	p := New(Hyperparameters{Hidden0: 4, Hidden1: 4})
	obs := tensor.New(tensor.WithShape(1, ObservationDim), tensor.WithBacking([]float64{0.1, -0.2, 0.3}))
	obsNode := gorgonia.NodeFromAny(p.Graph(), obs, gorgonia.WithName("test.observation"))

	mean, err := p.MeanAction(obsNode)
	if err != nil {
		t.Fatalf("MeanAction: %v", err)
	}
	vm := gorgonia.NewTapeMachine(p.Graph())
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	out := mean.Value().Data().([]float64)
	if len(out) != ActionDim {
		t.Fatalf("mean action len = %d, want %d", len(out), ActionDim)
	}
	for i, v := range out {
		if v < -1 || v > 1 {
			t.Errorf("mean action[%d] = %v, want within [-1, 1] (tanh-bounded)", i, v)
		}
	}
}

func TestValueProducesScalarOutput(t *testing.T) {
	p := New(Hyperparameters{Hidden0: 4, Hidden1: 4})
	state := tensor.New(tensor.WithShape(1, ObservationDim+1), tensor.WithBacking([]float64{0.1, -0.2, 0.3, 2}))
	stateNode := gorgonia.NodeFromAny(p.Graph(), state, gorgonia.WithName("test.state"))

	value, err := p.Value(stateNode)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	vm := gorgonia.NewTapeMachine(p.Graph())
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	out := value.Value().Data().([]float64)
	if len(out) != 1 {
		t.Fatalf("value output len = %d, want 1", len(out))
	}
}
