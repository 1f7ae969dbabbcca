// Package remyr implements the neural stochastic CCA of spec.md §4.7.3
// ("RemyR"): it shares the ack_ewma/send_ewma/rtt_ratio bookkeeping with
// internal/cca/remy, but looks up actions through an
// internal/neuralpolicy.Policy instead of a rule tree, with a stochastic
// Gaussian perturbation around the policy's mean action. Grounded on
// original_source/src/ccas/remyr (point_to_tensor/action_to_tensor,
// normalize-clamp-unnormalize pattern) and internal/cca/remy's ack
// bookkeeping, which this package otherwise duplicates because the two
// CCAs' action lookup and application differ enough that sharing a common
// base would obscure both.
package remyr

import (
	"math"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/heistp/flowforge/internal/average"
	"github.com/heistp/flowforge/internal/cca"
	"github.com/heistp/flowforge/internal/neuralpolicy"
	"github.com/heistp/flowforge/internal/quantities"
	"github.com/heistp/flowforge/internal/ruletree"
	"github.com/heistp/flowforge/internal/simrand"
)

const ewmaWeight = 1.0 / 8

type rtt struct {
	min, current quantities.TimeSpan
	have         bool
}

func (r *rtt) update(sample quantities.TimeSpan) {
	r.current = sample
	if !r.have || sample < r.min {
		r.min = sample
	}
	r.have = true
}

func (r *rtt) ratio() float64 {
	if !r.have || r.min <= 0 {
		return 0
	}
	return r.current.Seconds() / r.min.Seconds()
}

// CCA implements cca.CCA by consulting a trained (or in-training)
// neuralpolicy.Policy. deterministic disables the stochastic perturbation
// (epsilon = 0), matching §4.7.3 "deterministic inference sets epsilon =
// 0", used when the evaluate subcommand scores a trained policy loaded
// from disk.
type CCA struct {
	policy       *neuralpolicy.Policy
	pointBounds  neuralpolicy.Bounds
	actionBounds neuralpolicy.Bounds
	rng          *simrand.Rng
	deterministic bool

	vm gorgonia.VM

	ackEWMA  average.EWMA
	sendEWMA average.EWMA
	lastAck  quantities.Time
	haveAck  bool
	lastSend quantities.Time
	haveSend bool
	rtt      rtt

	cwnd           uint32
	intersendDelay quantities.TimeSpan
}

var _ cca.CCA = (*CCA)(nil)

// New returns a neural-stochastic CCA consulting policy. If deterministic
// is true, the stochastic term is always zero (used for evaluating the
// current deterministic policy snapshot rather than for training
// rollouts).
func New(policy *neuralpolicy.Policy, pointBounds, actionBounds neuralpolicy.Bounds, rng *simrand.Rng, deterministic bool) *CCA {
	return &CCA{
		policy:        policy,
		pointBounds:   pointBounds,
		actionBounds:  actionBounds,
		rng:           rng,
		deterministic: deterministic,
		vm:            gorgonia.NewTapeMachine(policy.Graph()),
		ackEWMA:       average.NewEWMA(ewmaWeight),
		sendEWMA:      average.NewEWMA(ewmaWeight),
	}
}

// InitialCwnd implements cca.CCA.
func (c *CCA) InitialCwnd(quantities.Time) uint32 {
	c.cwnd = 1
	return c.cwnd
}

// NextTick implements cca.CCA: purely ack-driven, like the rule-tree CCA.
func (c *CCA) NextTick(quantities.Time) (quantities.Time, bool) { return 0, false }

// Tick implements cca.CCA; never invoked since NextTick never fires.
func (c *CCA) Tick() uint32 { return c.cwnd }

// PacketSent implements cca.CCA: no reaction to sends.
func (c *CCA) PacketSent(quantities.Time) uint32 { return c.cwnd }

// IntersendDelay implements cca.CCA.
func (c *CCA) IntersendDelay() quantities.TimeSpan { return c.intersendDelay }

// AckReceived implements cca.CCA, sharing steps 1-4 with internal/cca/remy
// (§4.7.3 "Shares points 1-4 with the rule-tree CCA") before diverging into
// the neural lookup.
func (c *CCA) AckReceived(sentTime, receivedTime quantities.Time) uint32 {
	if c.haveAck {
		c.ackEWMA.Update(receivedTime.Sub(c.lastAck).Seconds())
	}
	if c.haveSend {
		c.sendEWMA.Update(sentTime.Sub(c.lastSend).Seconds())
	}
	c.lastAck, c.haveAck = receivedTime, true
	c.lastSend, c.haveSend = sentTime, true
	c.rtt.update(receivedTime.Sub(sentTime))

	ackEWMA, _ := c.ackEWMA.Value()
	sendEWMA, _ := c.sendEWMA.Value()
	raw := [3]float64{ackEWMA * 1000, sendEWMA * 1000, c.rtt.ratio()}
	norm := c.pointBounds.Normalize(raw)

	action := c.act(norm)
	unnorm := c.actionBounds.Unnormalize(action)
	a := ruletree.Action{
		WindowMultiplier: unnorm[0],
		WindowIncrement:  int32(unnorm[1]),
		IntersendDelay:   quantities.MillisecondsSpan(unnorm[2]),
	}
	c.cwnd = a.ApplyToCWND(c.cwnd)
	c.intersendDelay = a.IntersendDelay
	return c.cwnd
}

// act runs the policy's mean-action subgraph for one observation and adds
// the stochastic perturbation described in §4.7.3: `a' = m + eps (.) sigma`,
// clamped to [-1, +1]. eps is zero when c.deterministic.
func (c *CCA) act(observation [3]float64) [3]float64 {
	c.policy.Lock()
	defer c.policy.Unlock()

	obsTensor := tensor.New(tensor.WithShape(1, neuralpolicy.ObservationDim),
		tensor.WithBacking([]float64{observation[0], observation[1], observation[2]}))
	obsNode := gorgonia.NodeFromAny(c.policy.Graph(), obsTensor, gorgonia.WithName("remyr.observation"))

	mean, err := c.policy.MeanAction(obsNode)
	if err != nil {
		panic("remyr: building mean-action subgraph: " + err.Error())
	}
	if err := c.vm.RunAll(); err != nil {
		panic("remyr: running policy graph: " + err.Error())
	}
	defer c.vm.Reset()

	meanVal := mean.Value().Data().([]float64)
	stddevVal := c.policy.LogStddev().Value().Data().([]float64)

	var out [3]float64
	for i := 0; i < 3; i++ {
		m := meanVal[i]
		sigma := math.Exp(stddevVal[i])
		var eps float64
		if !c.deterministic {
			eps = c.rng.NormFloat64()
		}
		out[i] = clamp(m+eps*sigma, -1, 1)
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

// Factory returns a cca.Factory creating neural-stochastic CCAs from
// policy, each with its own child RNG derived from rng.
func Factory(policy *neuralpolicy.Policy, pointBounds, actionBounds neuralpolicy.Bounds, rng *simrand.Rng, deterministic bool) cca.Factory {
	return cca.FactoryFunc(func() cca.CCA {
		return New(policy, pointBounds, actionBounds, rng.Child(), deterministic)
	})
}
