// Package neural implements the clipped-surrogate policy-gradient trainer
// of spec.md §4.11: sample rollouts with a stochastic wrapper CCA, compute
// discounted returns-to-go, and update the actor-critic parameters with
// Adam through several shuffled-minibatch passes. Grounded on
// samuelfneumann-GoLearn's gorgonia-based agents (VanillaPG's policy-loss
// and critic-MSE graph construction, GaussianTreeMLP's diagonal-Gaussian
// log-density formula, AdamSolver's option wiring) adapted from discrete
// RL episodes to FlowForge's continuous ack-driven rollout steps.
package neural

import (
	"context"
	"math"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/heistp/flowforge/internal/cca"
	"github.com/heistp/flowforge/internal/eval"
	"github.com/heistp/flowforge/internal/flow"
	"github.com/heistp/flowforge/internal/network"
	"github.com/heistp/flowforge/internal/neuralpolicy"
	"github.com/heistp/flowforge/internal/quantities"
	"github.com/heistp/flowforge/internal/simrand"
)

// agentStateDim is the critic's input width: the 3-dimensional observation
// plus one scalar of shared global state (§4.11 step 1
// "num_active_senders"), matching neuralpolicy's agent-specific global
// state convention.
const agentStateDim = neuralpolicy.ObservationDim + 1

// DiscountKind selects one of §4.11 step 2's four return-to-go variants.
type DiscountKind string

const (
	Discrete       DiscountKind = "discrete"
	DiscreteDelta  DiscountKind = "discrete_delta"
	DiscreteRate   DiscountKind = "discrete_rate"
	ContinuousRate DiscountKind = "continuous_rate"
)

// Discounting configures the return-to-go computation (§4.11 step 2).
type Discounting struct {
	Kind     DiscountKind
	Gamma    float64             // discrete, discrete_delta, discrete_rate
	HalfLife quantities.TimeSpan // continuous_rate
}

// NetworkTemplate fixes every Sample field except the CCA factory, which
// Train substitutes with the training-in-progress policy's rollout
// wrapper each iteration.
type NetworkTemplate struct {
	Link       network.LinkConfig
	NumSenders int
	OnTime     simrand.Distribution
	OffTime    simrand.Distribution
}

// Config bundles the neural trainer's hyperparameters (§4.11, §2 config
// surface NeuralTrainerConfig).
type Config struct {
	Network NetworkTemplate

	Iterations      int
	RolloutNetworks int // N
	RunRolloutFor   quantities.TimeSpan

	UpdatePasses int // U
	Minibatches  int // M

	Discount           Discounting
	ClipEpsilon        float64 // c, may anneal to 0
	ClipEpsilonFinal   float64
	ValueCoefficient   float64 // v
	EntropyCoefficient float64 // h

	LearningRate      float64 // may anneal to LearningRateFinal
	LearningRateFinal float64
	WeightDecay       float64 // decoupled, applied after each Adam step; 0 disables

	PointBounds  neuralpolicy.Bounds
	ActionBounds neuralpolicy.Bounds

	Utility func(flow.Properties) float64 // instantaneous per-ack utility
}

// Progress is reported after every iteration (§4.11 step 5).
type Progress struct {
	Iteration     int
	Timesteps     int
	PolicyLoss    float64
	CriticLoss    float64
	Entropy       float64
	MeanReturn    float64
	LearningRate  float64
	ClipEpsilon   float64
}

// ProgressFunc receives a Progress report after each iteration, and the
// current deterministic policy snapshot (§4.11 step 5 "emit current
// deterministic policy snapshot").
type ProgressFunc func(Progress, *neuralpolicy.Policy)

// Trainer runs the clipped-surrogate policy-gradient loop against one
// actor-critic Policy.
type Trainer struct {
	cfg    Config
	policy *neuralpolicy.Policy
	rng    *simrand.Rng
}

// New returns a Trainer optimizing policy in place.
func New(cfg Config, policy *neuralpolicy.Policy, rng *simrand.Rng) *Trainer {
	return &Trainer{cfg: cfg, policy: policy, rng: rng}
}

// Policy returns the policy being trained.
func (t *Trainer) Policy() *neuralpolicy.Policy { return t.policy }

// Train runs cfg.Iterations update iterations, calling report (if non-nil)
// after each.
func (t *Trainer) Train(ctx context.Context, report ProgressFunc) error {
	for i := 0; i < t.cfg.Iterations; i++ {
		frac := 0.0
		if t.cfg.Iterations > 1 {
			frac = float64(i) / float64(t.cfg.Iterations-1)
		}
		lr := lerp(t.cfg.LearningRate, t.cfg.LearningRateFinal, frac)
		clip := lerp(t.cfg.ClipEpsilon, t.cfg.ClipEpsilonFinal, frac)

		trajs, err := t.rollout(ctx)
		if err != nil {
			return err
		}
		batch := flattenBatch(trajs, t.cfg.Discount)
		if len(batch.observations) == 0 {
			continue
		}

		progress := t.update(batch, lr, clip)
		progress.Iteration = i
		progress.LearningRate = lr
		progress.ClipEpsilon = clip
		if report != nil {
			report(progress, t.policy)
		}
	}
	return nil
}

// rollout samples cfg.RolloutNetworks independent networks with the
// current policy snapshot wrapped in the stochastic rollout CCA, returning
// every network's recorded trajectory plus terminal utility (§4.11 step
// 1).
func (t *Trainer) rollout(ctx context.Context) ([]*trajectory, error) {
	snapshot := t.policy.Snapshot()
	trajs := make([]*trajectory, t.cfg.RolloutNetworks)

	dist := network.DistributionFunc(func(rng *simrand.Rng) network.Sample {
		traj := &trajectory{}
		active := &activeCounter{}
		factory := cca.FactoryFunc(func() cca.CCA {
			return newRolloutCCA(snapshot, t.cfg.PointBounds, t.cfg.ActionBounds, rng.Child(), traj, active, t.cfg.Utility)
		})
		return network.Sample{
			Link:       t.cfg.Network.Link,
			NumSenders: t.cfg.Network.NumSenders,
			OnTime:     t.cfg.Network.OnTime,
			OffTime:    t.cfg.Network.OffTime,
			CCAFactory: sampleTrackingFactory{factory, trajs, traj},
		}
	})

	_, err := eval.Run(ctx, dist, func([]flow.Properties) float64 { return 0 }, t.rng.Child(), eval.Config{
		NetworkSamples: t.cfg.RolloutNetworks,
		RunSimFor:      t.cfg.RunRolloutFor,
	})
	if err != nil && err != eval.NoActiveFlows {
		return nil, err
	}
	return trajs, nil
}

// sampleTrackingFactory records traj into trajs the first time its CCA
// factory is invoked for a given network sample, so rollout can read every
// network's trajectory back after eval.Run returns. traj is already wired
// to every sender's rolloutCCA for this sample via the closure in rollout.
type sampleTrackingFactory struct {
	cca.Factory
	trajs []*trajectory
	traj  *trajectory
}

func (f sampleTrackingFactory) NewCCA() cca.CCA {
	for i, t := range f.trajs {
		if t == f.traj {
			break
		}
		if t == nil {
			f.trajs[i] = f.traj
			break
		}
	}
	return f.Factory.NewCCA()
}

// batch is every rollout timestep flattened across networks, with returns
// and advantages computed.
type batch struct {
	observations [][3]float64
	actions      [][3]float64
	oldLogProb   []float64
	numActive    []float64
	returns      []float64
}

// flattenBatch computes per-trajectory returns-to-go (§4.11 step 2) and
// concatenates every network's steps into one batch.
func flattenBatch(trajs []*trajectory, d Discounting) batch {
	var b batch
	for _, tr := range trajs {
		if tr == nil || len(tr.steps) == 0 {
			continue
		}
		terminal := tr.steps[len(tr.steps)-1]
		returns := returnsToGo(tr.steps, terminal.at, terminal.utility, d)
		for i, s := range tr.steps {
			b.observations = append(b.observations, s.observation)
			b.actions = append(b.actions, s.action)
			b.oldLogProb = append(b.oldLogProb, s.logProb)
			b.numActive = append(b.numActive, s.numActiveSenders)
			b.returns = append(b.returns, returns[i])
		}
	}
	return b
}

// returnsToGo computes R_t for every recorded step under d (§4.11 step 2).
func returnsToGo(steps []step, terminalTime quantities.Time, terminalUtility float64, d Discounting) []float64 {
	n := len(steps)
	out := make([]float64, n)
	switch d.Kind {
	case ContinuousRate:
		alpha := math.Ln2 / d.HalfLife.Seconds()
		var acc float64
		for k := n - 1; k >= 0; k-- {
			tAfter, uAfter := nextStep(steps, terminalTime, terminalUtility, k)
			dt := tAfter.Sub(steps[k].at).Seconds()
			decay := math.Exp(-alpha * dt)
			acc = (1-decay)/alpha*uAfter + decay*acc
			out[k] = acc
		}
	default: // discrete, discrete_delta, discrete_rate
		var acc float64
		for k := n - 1; k >= 0; k-- {
			tAfter, uAfter := nextStep(steps, terminalTime, terminalUtility, k)
			switch d.Kind {
			case DiscreteDelta:
				uAfter -= steps[k].utility
			case DiscreteRate:
				uAfter *= tAfter.Sub(steps[k].at).Seconds()
			}
			acc = uAfter + d.Gamma*acc
			out[k] = acc
		}
	}
	return out
}

func nextStep(steps []step, terminalTime quantities.Time, terminalUtility float64, k int) (quantities.Time, float64) {
	if k+1 < len(steps) {
		return steps[k+1].at, steps[k+1].utility
	}
	return terminalTime, terminalUtility
}

// update runs cfg.UpdatePasses passes over b, each reshuffled into
// cfg.Minibatches equal-sized minibatches of len(b.observations)/
// cfg.Minibatches timesteps each (extra timesteps that don't divide evenly
// are dropped from that pass), and returns the last minibatch's losses as a
// representative progress sample, with Progress.Timesteps set to that
// minibatch's size (§4.11 step 4-5).
func (t *Trainer) update(b batch, learningRate, clipEpsilon float64) Progress {
	n := len(b.observations)
	minibatches := t.cfg.Minibatches
	if minibatches < 1 {
		minibatches = 1
	}
	size := n / minibatches
	if size < 1 {
		size = n
		minibatches = 1
	}

	// Advantage (§4.11 step 3 "A = R - V_theta(s)... stop-gradient on V
	// for the actor path") is computed once per iteration against the
	// pre-update critic, not recomputed every pass.
	advAll := t.advantages(b)

	solver := gorgonia.NewAdamSolver(gorgonia.WithLearnRate(learningRate))
	var last Progress

	for pass := 0; pass < t.cfg.UpdatePasses; pass++ {
		order := t.rng.Std().Perm(n)
		for mb := 0; mb < minibatches; mb++ {
			idx := order[mb*size : (mb+1)*size]
			adv := normalizedAdvantages(advAll, idx)

			g, err := buildUpdateGraph(t.policy, len(idx), clipEpsilon, t.cfg.ValueCoefficient, t.cfg.EntropyCoefficient)
			if err != nil {
				continue
			}
			if err := g.feed(b, idx, adv); err != nil {
				continue
			}

			t.policy.Lock()
			vm := gorgonia.NewTapeMachine(t.policy.Graph(), gorgonia.BindDualValues(t.policy.Params()...))
			if err := vm.RunAll(); err == nil {
				solver.Step(gorgonia.NodesToValueGrads(t.policy.Params()))
				if t.cfg.WeightDecay > 0 {
					applyWeightDecay(t.policy.Params(), learningRate, t.cfg.WeightDecay)
				}
				last = Progress{
					Timesteps:  len(idx),
					PolicyLoss: scalarOf(g.policyLoss),
					CriticLoss: scalarOf(g.criticLoss),
					Entropy:    scalarOf(g.entropy),
				}
			}
			vm.Reset()
			t.policy.Unlock()
		}
	}
	last.MeanReturn = meanOf(b.returns)
	return last
}

// advantages computes A = R - V_theta(s) for every batch timestep with one
// forward pass through the critic's current (pre-update) parameters.
func (t *Trainer) advantages(b batch) []float64 {
	values := t.criticForward(b)
	adv := make([]float64, len(b.returns))
	for i := range adv {
		adv[i] = b.returns[i] - values[i]
	}
	return adv
}

// criticForward evaluates the critic on every batch timestep's
// agent-specific global state (observation plus num_active_senders).
func (t *Trainer) criticForward(b batch) []float64 {
	n := len(b.observations)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	t.policy.Lock()
	defer t.policy.Unlock()

	g := t.policy.Graph()
	stateData := make([]float64, n*agentStateDim)
	for i := range b.observations {
		copy(stateData[i*agentStateDim:], b.observations[i][:])
		stateData[i*agentStateDim+neuralpolicy.ObservationDim] = b.numActive[i]
	}
	stateTensor := tensor.New(tensor.WithShape(n, agentStateDim), tensor.WithBacking(stateData))
	stateNode := gorgonia.NodeFromAny(g, stateTensor, gorgonia.WithName("neural.critic_forward.state"))

	value, err := t.policy.Value(stateNode)
	if err != nil {
		return out
	}
	vm := gorgonia.NewTapeMachine(g)
	defer vm.Reset()
	if err := vm.RunAll(); err != nil {
		return out
	}
	if data, ok := value.Value().Data().([]float64); ok {
		copy(out, data)
	}
	return out
}

// normalizedAdvantages selects advAll at idx and normalizes to zero mean,
// unit variance within the minibatch (§4.11 step 4 "A-hat = (A - mean A) /
// (std A + epsilon)").
func normalizedAdvantages(advAll []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = advAll[j]
	}
	mean := meanOf(out)
	var variance float64
	for _, v := range out {
		d := v - mean
		variance += d * d
	}
	if len(out) > 0 {
		variance /= float64(len(out))
	}
	std := math.Sqrt(variance)
	const eps = 1e-8
	for i := range out {
		out[i] = (out[i] - mean) / (std + eps)
	}
	return out
}

func scalarOf(n *gorgonia.Node) float64 {
	if n == nil || n.Value() == nil {
		return 0
	}
	v, ok := n.Value().Data().(float64)
	if !ok {
		return 0
	}
	return v
}

func meanOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func applyWeightDecay(params gorgonia.Nodes, lr, wd float64) {
	decay := 1 - lr*wd
	for _, p := range params {
		t, ok := p.Value().(tensor.Tensor)
		if !ok {
			continue
		}
		data, ok := t.Data().([]float64)
		if !ok {
			continue
		}
		for i := range data {
			data[i] *= decay
		}
	}
}

func lerp(a, b, frac float64) float64 { return a + (b-a)*frac }
