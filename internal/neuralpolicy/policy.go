// Package neuralpolicy implements the actor-critic networks behind the
// neural-stochastic CCA ("RemyR", spec.md §4.7.3) and its trainer (§4.11):
// a policy mean network, a per-coordinate log-stddev bias, and a critic
// network, all built on gorgonia.org/gorgonia/gorgonia.org/tensor the same
// way the original's dfdx-based net.rs builds a 2-hidden-layer tanh policy
// and GeLU critic (original_source/src/ccas/remyr/net.rs). Per spec.md §1's
// scope note, the tensor/autodiff/optimizer machinery itself is treated as
// a dependency black box: this package's job is wiring observation/action
// dimensions and layer shapes, not reimplementing autodiff.
package neuralpolicy

import (
	"fmt"
	"sync"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Dimensionality constants matching the memory point / action box (§4.7.3).
const (
	ObservationDim = 3 // ack_ewma, send_ewma, rtt_ratio (normalized)
	ActionDim      = 3 // window_multiplier, window_increment, intersend_delay (normalized)
)

// Bounds describes the linear rescaling between raw memory-point/action
// coordinates and the network's normalized [-1, +1] working space (§4.7.3
// "linearly rescaled to [-1,+1]^3 using (min_point, max_point)").
type Bounds struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

// Normalize maps raw coordinates in [Min, Max] to [-1, +1], clamped.
func (b Bounds) Normalize(raw [3]float64) [3]float64 {
	var out [3]float64
	for i := range raw {
		span := b.Max[i] - b.Min[i]
		v := -1.0
		if span > 0 {
			v = 2*(raw[i]-b.Min[i])/span - 1
		}
		out[i] = clamp(v, -1, 1)
	}
	return out
}

// Unnormalize maps normalized [-1, +1] coordinates back to [Min, Max].
func (b Bounds) Unnormalize(norm [3]float64) [3]float64 {
	var out [3]float64
	for i := range norm {
		v := clamp(norm[i], -1, 1)
		out[i] = b.Min[i] + (v+1)/2*(b.Max[i]-b.Min[i])
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Hyperparameters fixes the two-hidden-layer width used by both the actor
// and the critic, matching the original's HiddenLayers(h0, h1) (net.rs).
type Hyperparameters struct {
	Hidden0 int
	Hidden1 int
}

// DefaultHyperparameters is a reasonable default width for both networks.
var DefaultHyperparameters = Hyperparameters{Hidden0: 32, Hidden1: 32}

// Policy holds the actor-critic parameters: a policy mean network
// (observation -> tanh-bounded mean action), a log-stddev bias broadcast
// across the batch, and a critic network (agent-specific global state ->
// scalar value estimate).
type Policy struct {
	hp Hyperparameters

	// mu serializes forward passes through g: every TapeMachine bound to
	// this graph (one per CCA instance, per §5 "each... stochastic CCA
	// owns an independent child RNG") shares the same parameter node
	// storage, so concurrent RunAll calls from the evaluation harness's
	// parallel network workers would race without it.
	mu sync.Mutex

	g *gorgonia.ExprGraph

	// Policy mean net: observation -> hidden0 -tanh-> hidden1 -tanh-> action,
	// final layer tanh-bounded to [-1, +1].
	actorW0, actorB0 *gorgonia.Node
	actorW1, actorB1 *gorgonia.Node
	actorW2, actorB2 *gorgonia.Node

	// LogStddev is a learned per-action-coordinate log standard deviation,
	// broadcast across every observation in a batch (§4.11 step 4 "the
	// log-stddev bias, broadcast").
	logStddev *gorgonia.Node

	// Critic net: agent-specific global state -> hidden0 -gelu-> hidden1
	// -gelu-> scalar value.
	criticW0, criticB0 *gorgonia.Node
	criticW1, criticB1 *gorgonia.Node
	criticW2, criticB2 *gorgonia.Node
}

// agentSpecificGlobalStateDim is ObservationDim plus one scalar of shared
// global state (number of active senders at observation time), matching
// original_source/src/ccas/remyr/net.rs's AGENT_SPECIFIC_GLOBAL_STATE.
const agentSpecificGlobalStateDim = ObservationDim + 1

// New builds a fresh actor-critic Policy with randomly initialized weights
// on a new computation graph.
func New(hp Hyperparameters) *Policy {
	g := gorgonia.NewGraph()
	p := &Policy{hp: hp, g: g}

	p.actorW0 = newWeight(g, "actor.w0", ObservationDim, hp.Hidden0)
	p.actorB0 = newBias(g, "actor.b0", hp.Hidden0)
	p.actorW1 = newWeight(g, "actor.w1", hp.Hidden0, hp.Hidden1)
	p.actorB1 = newBias(g, "actor.b1", hp.Hidden1)
	p.actorW2 = newWeight(g, "actor.w2", hp.Hidden1, ActionDim)
	p.actorB2 = newBias(g, "actor.b2", ActionDim)
	p.logStddev = newBias(g, "actor.log_stddev", ActionDim)

	p.criticW0 = newWeight(g, "critic.w0", agentSpecificGlobalStateDim, hp.Hidden0)
	p.criticB0 = newBias(g, "critic.b0", hp.Hidden0)
	p.criticW1 = newWeight(g, "critic.w1", hp.Hidden0, hp.Hidden1)
	p.criticB1 = newBias(g, "critic.b1", hp.Hidden1)
	p.criticW2 = newWeight(g, "critic.w2", hp.Hidden1, 1)
	p.criticB2 = newBias(g, "critic.b2", 1)

	return p
}

func newWeight(g *gorgonia.ExprGraph, name string, in, out int) *gorgonia.Node {
	return gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(in, out),
		gorgonia.WithName(name),
		gorgonia.WithInit(gorgonia.GlorotN(1.0)),
	)
}

func newBias(g *gorgonia.ExprGraph, name string, n int) *gorgonia.Node {
	return gorgonia.NewVector(g, tensor.Float64,
		gorgonia.WithShape(n),
		gorgonia.WithName(name),
		gorgonia.WithInit(gorgonia.Zeroes()),
	)
}

// Graph returns the underlying computation graph, for the trainer to attach
// loss nodes and an optimizer to.
func (p *Policy) Graph() *gorgonia.ExprGraph { return p.g }

// MeanAction builds the graph nodes computing the tanh-bounded mean action
// for a batch of observations (§4.7.3 "the policy network produces a mean
// action m in [-1,+1]^ACT").
func (p *Policy) MeanAction(observation *gorgonia.Node) (*gorgonia.Node, error) {
	h0, err := denseTanh(observation, p.actorW0, p.actorB0)
	if err != nil {
		return nil, fmt.Errorf("neuralpolicy: actor layer 0: %w", err)
	}
	h1, err := denseTanh(h0, p.actorW1, p.actorB1)
	if err != nil {
		return nil, fmt.Errorf("neuralpolicy: actor layer 1: %w", err)
	}
	return denseTanh(h1, p.actorW2, p.actorB2)
}

// Value builds the graph nodes computing the critic's scalar value estimate
// for a batch of agent-specific global states.
func (p *Policy) Value(state *gorgonia.Node) (*gorgonia.Node, error) {
	h0, err := denseGELU(state, p.criticW0, p.criticB0)
	if err != nil {
		return nil, fmt.Errorf("neuralpolicy: critic layer 0: %w", err)
	}
	h1, err := denseGELU(h0, p.criticW1, p.criticB1)
	if err != nil {
		return nil, fmt.Errorf("neuralpolicy: critic layer 1: %w", err)
	}
	mul, err := gorgonia.Mul(h1, p.criticW2)
	if err != nil {
		return nil, fmt.Errorf("neuralpolicy: critic output: %w", err)
	}
	return gorgonia.BroadcastAdd(mul, p.criticB2, nil, []byte{0})
}

// LogStddev returns the log-stddev bias node, broadcast by the trainer
// against a batch when computing the Gaussian density (§4.11 step 4).
func (p *Policy) LogStddev() *gorgonia.Node { return p.logStddev }

// Lock and Unlock guard a forward (or forward+backward) pass through the
// shared graph. Callers running a TapeMachine bound to p.Graph() must hold
// the lock for the duration of RunAll.
func (p *Policy) Lock()   { p.mu.Lock() }
func (p *Policy) Unlock() { p.mu.Unlock() }

// Params returns every learnable parameter node, for the trainer's Adam
// optimizer and weight-decay pass (§4.11 "Optimizer: Adam with optional
// decoupled weight decay").
func (p *Policy) Params() gorgonia.Nodes {
	return gorgonia.Nodes{
		p.actorW0, p.actorB0, p.actorW1, p.actorB1, p.actorW2, p.actorB2, p.logStddev,
		p.criticW0, p.criticB0, p.criticW1, p.criticB1, p.criticW2, p.criticB2,
	}
}

func denseTanh(x, w, b *gorgonia.Node) (*gorgonia.Node, error) {
	z, err := dense(x, w, b)
	if err != nil {
		return nil, err
	}
	return gorgonia.Tanh(z)
}

func denseGELU(x, w, b *gorgonia.Node) (*gorgonia.Node, error) {
	z, err := dense(x, w, b)
	if err != nil {
		return nil, err
	}
	// gorgonia has no built-in GeLU; approximate with the standard
	// tanh-based formulation, matching dfdx's FastGeLU closely enough for
	// an RL critic head (original_source's net.rs CriticArchitecture).
	return gelu(z)
}

func dense(x, w, b *gorgonia.Node) (*gorgonia.Node, error) {
	mul, err := gorgonia.Mul(x, w)
	if err != nil {
		return nil, err
	}
	return gorgonia.BroadcastAdd(mul, b, nil, []byte{0})
}

func gelu(x *gorgonia.Node) (*gorgonia.Node, error) {
	// 0.5x(1 + tanh(sqrt(2/pi)(x + 0.044715x^3)))
	const c = 0.7978845608028654 // sqrt(2/pi)
	x3, err := gorgonia.Pow(x, gorgonia.NewConstant(3.0))
	if err != nil {
		return nil, err
	}
	scaled, err := gorgonia.Mul(x3, gorgonia.NewConstant(0.044715))
	if err != nil {
		return nil, err
	}
	sum, err := gorgonia.Add(x, scaled)
	if err != nil {
		return nil, err
	}
	inner, err := gorgonia.Mul(sum, gorgonia.NewConstant(c))
	if err != nil {
		return nil, err
	}
	t, err := gorgonia.Tanh(inner)
	if err != nil {
		return nil, err
	}
	onePlus, err := gorgonia.Add(t, gorgonia.NewConstant(1.0))
	if err != nil {
		return nil, err
	}
	half, err := gorgonia.Mul(x, gorgonia.NewConstant(0.5))
	if err != nil {
		return nil, err
	}
	return gorgonia.HadamardProd(half, onePlus)
}
