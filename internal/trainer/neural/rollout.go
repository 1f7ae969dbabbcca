package neural

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/heistp/flowforge/internal/average"
	"github.com/heistp/flowforge/internal/cca"
	"github.com/heistp/flowforge/internal/flow"
	"github.com/heistp/flowforge/internal/neuralpolicy"
	"github.com/heistp/flowforge/internal/quantities"
	"github.com/heistp/flowforge/internal/simrand"
)

const ewmaWeight = 1.0 / 8

// step is one recorded decision point of a rollout trajectory (§4.11 step
// 1: "record (s, a', logpi(a'|s), num_active_senders) and the current
// utility at the wrapper's observation time").
type step struct {
	observation      [3]float64
	action           [3]float64
	logProb          float64
	numActiveSenders float64
	utility          float64
	at               quantities.Time
}

// trajectory accumulates steps from every sender sharing one network
// sample; senders within a network run on the same single-threaded
// simulator goroutine (§5), so no locking is needed for appends made
// during that network's Run, only for the final read after it completes.
type trajectory struct {
	steps []step
}

func (t *trajectory) record(s step) { t.steps = append(t.steps, s) }

// activeCounter approximates num_active_senders as the static sender count
// configured for the sample, since internal/cca.CCA has no Disable hook to
// track precise enable/disable transitions; every rolloutCCA in a sample
// shares the same counter value.
type activeCounter struct {
	n int64
}

func (a *activeCounter) value() float64 { return float64(atomic.LoadInt64(&a.n)) }

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

// rolloutCCA is the stochastic wrapper CCA used during training rollouts
// (§4.11 step 1). It shares the ack bookkeeping with internal/cca/remyr
// but evaluates the policy through a neuralpolicy.Snapshot (safe for the
// evaluation harness's concurrent network workers, §5) instead of running
// the shared gorgonia graph, and appends every decision to traj.
type rolloutCCA struct {
	snapshot     *neuralpolicy.Snapshot
	pointBounds  neuralpolicy.Bounds
	actionBounds neuralpolicy.Bounds
	rng          *simrand.Rng
	traj         *trajectory
	active       *activeCounter
	utility      func(flow.Properties) float64

	// mu is per CCA, so it only serializes this sender's own calls; records
	// from the different senders sharing traj are serialized by the single
	// simulator goroutine (see trajectory), not by this lock.
	mu sync.Mutex

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

var _ cca.CCA = (*rolloutCCA)(nil)

func newRolloutCCA(snapshot *neuralpolicy.Snapshot, pointBounds, actionBounds neuralpolicy.Bounds, rng *simrand.Rng, traj *trajectory, active *activeCounter, utility func(flow.Properties) float64) *rolloutCCA {
	return &rolloutCCA{
		snapshot:     snapshot,
		pointBounds:  pointBounds,
		actionBounds: actionBounds,
		rng:          rng,
		traj:         traj,
		active:       active,
		utility:      utility,
		ackEWMA:      average.NewEWMA(ewmaWeight),
		sendEWMA:     average.NewEWMA(ewmaWeight),
	}
}

func (c *rolloutCCA) InitialCwnd(quantities.Time) uint32 {
	atomic.AddInt64(&c.active.n, 1)
	c.cwnd = 1
	return c.cwnd
}

func (c *rolloutCCA) NextTick(quantities.Time) (quantities.Time, bool) { return 0, false }
func (c *rolloutCCA) Tick() uint32                                    { return c.cwnd }
func (c *rolloutCCA) PacketSent(quantities.Time) uint32               { return c.cwnd }
func (c *rolloutCCA) IntersendDelay() quantities.TimeSpan             { return c.intersendDelay }

func (c *rolloutCCA) AckReceived(sentTime, receivedTime quantities.Time) uint32 {
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
	obs := c.pointBounds.Normalize(raw)

	mean := c.snapshot.MeanAction(obs)
	logStd := c.snapshot.LogStddev()

	var act [3]float64
	var logProb float64
	const halfLog2Pi = 0.9189385332046727 // 0.5*ln(2*pi)
	for i := 0; i < 3; i++ {
		sigma := math.Exp(logStd[i])
		eps := c.rng.NormFloat64()
		act[i] = clamp(mean[i]+eps*sigma, -1, 1)
		z := (act[i] - mean[i]) / sigma
		logProb += -0.5*z*z - logStd[i] - halfLog2Pi
	}

	unnorm := c.actionBounds.Unnormalize(act)
	size := quantities.PacketSize
	throughput := quantities.InformationRate(0)
	if ackEWMA > 0 {
		throughput = size.DivTimeSpan(quantities.SecondsSpan(ackEWMA))
	}
	u := c.utility(flow.Properties{Throughput: throughput, RTT: c.rtt.current})

	c.mu.Lock()
	c.traj.record(step{
		observation:      obs,
		action:           act,
		logProb:          logProb,
		numActiveSenders: c.active.value(),
		utility:          u,
		at:               receivedTime,
	})
	c.mu.Unlock()

	a := cwndAction{
		windowMultiplier: unnorm[0],
		windowIncrement:  int32(unnorm[1]),
		intersendDelay:   quantities.MillisecondsSpan(unnorm[2]),
	}
	c.cwnd = a.applyToCWND(c.cwnd)
	c.intersendDelay = a.intersendDelay
	return c.cwnd
}

// cwndAction mirrors ruletree.Action.ApplyToCWND's clamped cast formula
// (§4.7.2 step 6, §9) without importing internal/ruletree, since the
// neural policy's action space is shaped the same way but isn't tied to a
// rule-tree leaf.
type cwndAction struct {
	windowMultiplier float64
	windowIncrement  int32
	intersendDelay   quantities.TimeSpan
}

func (a cwndAction) applyToCWND(cwnd uint32) uint32 {
	const maxCWND = 1_000_000
	scaled := float64(cwnd) * a.windowMultiplier
	if scaled < 0 {
		scaled = 0
	}
	if scaled > maxCWND {
		scaled = maxCWND
	}
	next := int64(scaled) + int64(a.windowIncrement)
	if next < 0 {
		next = 0
	}
	if next > maxCWND {
		next = maxCWND
	}
	return uint32(next)
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
