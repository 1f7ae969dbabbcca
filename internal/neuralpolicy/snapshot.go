package neuralpolicy

import (
	"math"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Snapshot is a read-only copy of a Policy's actor parameters, evaluable
// from many goroutines without touching the shared gorgonia graph (§5
// "rollouts are parallel"): the neural trainer's rollout CCA uses this
// instead of running a TapeMachine per ack, since N networks' senders
// would otherwise all contend for the same graph's parameter storage.
type Snapshot struct {
	w0, w1, w2 [][]float64 // [in][out]
	b0, b1, b2 []float64
	logStddev  []float64
}

// Snapshot copies p's current actor parameters under lock.
func (p *Policy) Snapshot() *Snapshot {
	p.Lock()
	defer p.Unlock()
	return &Snapshot{
		w0:        matrixData(p.actorW0, ObservationDim, p.hp.Hidden0),
		b0:        vectorData(p.actorB0),
		w1:        matrixData(p.actorW1, p.hp.Hidden0, p.hp.Hidden1),
		b1:        vectorData(p.actorB1),
		w2:        matrixData(p.actorW2, p.hp.Hidden1, ActionDim),
		b2:        vectorData(p.actorB2),
		logStddev: vectorData(p.logStddev),
	}
}

func matrixData(n *gorgonia.Node, in, out int) [][]float64 {
	data := n.Value().(tensor.Tensor).Data().([]float64)
	m := make([][]float64, in)
	for i := range m {
		m[i] = append([]float64(nil), data[i*out:(i+1)*out]...)
	}
	return m
}

func vectorData(n *gorgonia.Node) []float64 {
	data := n.Value().(tensor.Tensor).Data().([]float64)
	return append([]float64(nil), data...)
}

// MeanAction computes the tanh-MLP mean action in plain Go, matching
// Policy.MeanAction's graph computation (observation -> tanh -> tanh ->
// tanh-bounded action).
func (s *Snapshot) MeanAction(observation [3]float64) [3]float64 {
	h0 := denseTanhVec(observation[:], s.w0, s.b0)
	h1 := denseTanhVec(h0, s.w1, s.b1)
	out := denseTanhVec(h1, s.w2, s.b2)
	var a [3]float64
	copy(a[:], out)
	return a
}

// LogStddev returns the snapshotted per-coordinate log standard deviation.
func (s *Snapshot) LogStddev() [3]float64 {
	var a [3]float64
	copy(a[:], s.logStddev)
	return a
}

func denseTanhVec(x []float64, w [][]float64, b []float64) []float64 {
	out := make([]float64, len(b))
	for j := range out {
		sum := b[j]
		for i := range x {
			sum += x[i] * w[i][j]
		}
		out[j] = math.Tanh(sum)
	}
	return out
}
