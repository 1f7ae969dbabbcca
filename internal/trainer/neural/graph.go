package neural

import (
	"math"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/heistp/flowforge/internal/neuralpolicy"
)

// updateGraph holds one minibatch update pass's input placeholder nodes
// and loss nodes, built fresh per minibatch since the batch size it is
// built for fixes every node's tensor shape (§4.11 step 4).
type updateGraph struct {
	obsIn        *gorgonia.Node // [batch, 3]
	actionsIn    *gorgonia.Node // [batch, 3]
	oldLogProbIn *gorgonia.Node // [batch]
	advantageIn  *gorgonia.Node // [batch]
	activeIn     *gorgonia.Node // [batch, 1]
	returnsIn    *gorgonia.Node // [batch]

	policyLoss *gorgonia.Node
	criticLoss *gorgonia.Node
	entropy    *gorgonia.Node
}

// buildUpdateGraph builds the clipped-surrogate PPO loss (§4.11 step 4)
// against policy's actor and critic networks, attaching new computation
// nodes to policy's persistent graph and computing gradients with respect
// to policy.Params().
func buildUpdateGraph(policy *neuralpolicy.Policy, batch int, clipEpsilon, valueCoef, entropyCoef float64) (*updateGraph, error) {
	g := policy.Graph()

	obsIn := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(batch, neuralpolicy.ObservationDim), gorgonia.WithName("update.obs"))
	actionsIn := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(batch, neuralpolicy.ActionDim), gorgonia.WithName("update.actions"))
	oldLogProbIn := gorgonia.NewVector(g, tensor.Float64, gorgonia.WithShape(batch), gorgonia.WithName("update.old_log_prob"))
	advantageIn := gorgonia.NewVector(g, tensor.Float64, gorgonia.WithShape(batch), gorgonia.WithName("update.advantage"))
	activeIn := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(batch, 1), gorgonia.WithName("update.active"))
	returnsIn := gorgonia.NewVector(g, tensor.Float64, gorgonia.WithShape(batch), gorgonia.WithName("update.returns"))

	mean, err := policy.MeanAction(obsIn)
	if err != nil {
		return nil, err
	}

	// Broadcast the shared logStddev bias to every row of the batch via an
	// outer product with a ones column, so the Gaussian density below
	// stays a plain matrix computation.
	ones := make([]float64, batch)
	for i := range ones {
		ones[i] = 1
	}
	onesCol := gorgonia.NewConstant(tensor.New(tensor.WithShape(batch, 1), tensor.WithBacking(ones)))
	logStdRow, err := gorgonia.Reshape(policy.LogStddev(), tensor.Shape{1, neuralpolicy.ActionDim})
	if err != nil {
		return nil, err
	}
	logStdBatch, err := gorgonia.Mul(onesCol, logStdRow)
	if err != nil {
		return nil, err
	}
	stdBatch, err := gorgonia.Exp(logStdBatch)
	if err != nil {
		return nil, err
	}

	// Diagonal Gaussian log-density (§4.11 step 4 "Gaussian density
	// formula assuming diagonal sigma"), grounded on
	// samuelfneumann-GoLearn's policy.logProb multi-dim branch.
	diff, err := gorgonia.Sub(actionsIn, mean)
	if err != nil {
		return nil, err
	}
	z, err := gorgonia.HadamardDiv(diff, stdBatch)
	if err != nil {
		return nil, err
	}
	zsq, err := gorgonia.Square(z)
	if err != nil {
		return nil, err
	}
	sumZsq, err := gorgonia.Sum(zsq, 1)
	if err != nil {
		return nil, err
	}
	sumLogStd, err := gorgonia.Sum(logStdBatch, 1)
	if err != nil {
		return nil, err
	}
	term1, err := gorgonia.Mul(sumZsq, gorgonia.NewConstant(-0.5))
	if err != nil {
		return nil, err
	}
	newLogProb, err := gorgonia.Sub(term1, sumLogStd)
	if err != nil {
		return nil, err
	}
	halfLogTwoPiK := gorgonia.NewConstant(1.5 * math.Log(2*math.Pi)) // k=3 action dims
	newLogProb, err = gorgonia.Sub(newLogProb, halfLogTwoPiK)
	if err != nil {
		return nil, err
	}

	// Clipped surrogate objective.
	diffLP, err := gorgonia.Sub(newLogProb, oldLogProbIn)
	if err != nil {
		return nil, err
	}
	ratio, err := gorgonia.Exp(diffLP)
	if err != nil {
		return nil, err
	}
	clippedRatio, err := gorgonia.Clamp(ratio, 1-clipEpsilon, 1+clipEpsilon)
	if err != nil {
		return nil, err
	}
	surr1, err := gorgonia.HadamardProd(ratio, advantageIn)
	if err != nil {
		return nil, err
	}
	surr2, err := gorgonia.HadamardProd(clippedRatio, advantageIn)
	if err != nil {
		return nil, err
	}
	minSurr, err := gorgonia.Min(surr1, surr2)
	if err != nil {
		return nil, err
	}
	meanSurr, err := gorgonia.Mean(minSurr)
	if err != nil {
		return nil, err
	}
	policyLoss, err := gorgonia.Mul(meanSurr, gorgonia.NewConstant(-1.0))
	if err != nil {
		return nil, err
	}

	// Critic MSE loss.
	state, err := gorgonia.Concat(1, obsIn, activeIn)
	if err != nil {
		return nil, err
	}
	value, err := policy.Value(state)
	if err != nil {
		return nil, err
	}
	valueFlat, err := gorgonia.Reshape(value, tensor.Shape{batch})
	if err != nil {
		return nil, err
	}
	criticDiff, err := gorgonia.Sub(valueFlat, returnsIn)
	if err != nil {
		return nil, err
	}
	criticSq, err := gorgonia.Square(criticDiff)
	if err != nil {
		return nil, err
	}
	criticLoss, err := gorgonia.Mean(criticSq)
	if err != nil {
		return nil, err
	}

	// Entropy bonus: sigma is constant across the batch, so
	// mean(0.5 ln(2*pi*e*sigma^2)) over the batch reduces to the
	// parameter-only expression below (§4.11 step 4).
	sumLogStdScalar, err := gorgonia.Sum(policy.LogStddev())
	if err != nil {
		return nil, err
	}
	entropyConst := gorgonia.NewConstant(float64(neuralpolicy.ActionDim) * 0.5 * math.Log(2*math.Pi*math.E))
	entropy, err := gorgonia.Add(sumLogStdScalar, entropyConst)
	if err != nil {
		return nil, err
	}

	weightedCritic, err := gorgonia.Mul(criticLoss, gorgonia.NewConstant(valueCoef))
	if err != nil {
		return nil, err
	}
	weightedEntropy, err := gorgonia.Mul(entropy, gorgonia.NewConstant(entropyCoef))
	if err != nil {
		return nil, err
	}
	total, err := gorgonia.Add(policyLoss, weightedCritic)
	if err != nil {
		return nil, err
	}
	total, err = gorgonia.Sub(total, weightedEntropy)
	if err != nil {
		return nil, err
	}

	if _, err := gorgonia.Grad(total, policy.Params()...); err != nil {
		return nil, err
	}

	return &updateGraph{
		obsIn:        obsIn,
		actionsIn:    actionsIn,
		oldLogProbIn: oldLogProbIn,
		advantageIn:  advantageIn,
		activeIn:     activeIn,
		returnsIn:    returnsIn,
		policyLoss:   policyLoss,
		criticLoss:   criticLoss,
		entropy:      entropy,
	}, nil
}

// feed lets b's timesteps at idx into g's placeholder nodes, using adv
// (already normalized) for the advantage input.
func (g *updateGraph) feed(b batch, idx []int, adv []float64) error {
	n := len(idx)
	obsData := make([]float64, n*neuralpolicy.ObservationDim)
	actData := make([]float64, n*neuralpolicy.ActionDim)
	oldLP := make([]float64, n)
	activeData := make([]float64, n)
	retData := make([]float64, n)
	for i, j := range idx {
		copy(obsData[i*neuralpolicy.ObservationDim:], b.observations[j][:])
		copy(actData[i*neuralpolicy.ActionDim:], b.actions[j][:])
		oldLP[i] = b.oldLogProb[j]
		activeData[i] = b.numActive[j]
		retData[i] = b.returns[j]
	}

	if err := gorgonia.Let(g.obsIn, tensor.New(tensor.WithShape(n, neuralpolicy.ObservationDim), tensor.WithBacking(obsData))); err != nil {
		return err
	}
	if err := gorgonia.Let(g.actionsIn, tensor.New(tensor.WithShape(n, neuralpolicy.ActionDim), tensor.WithBacking(actData))); err != nil {
		return err
	}
	if err := gorgonia.Let(g.oldLogProbIn, tensor.New(tensor.WithShape(n), tensor.WithBacking(oldLP))); err != nil {
		return err
	}
	if err := gorgonia.Let(g.advantageIn, tensor.New(tensor.WithShape(n), tensor.WithBacking(adv))); err != nil {
		return err
	}
	if err := gorgonia.Let(g.activeIn, tensor.New(tensor.WithShape(n, 1), tensor.WithBacking(activeData))); err != nil {
		return err
	}
	if err := gorgonia.Let(g.returnsIn, tensor.New(tensor.WithShape(n), tensor.WithBacking(retData))); err != nil {
		return err
	}
	return nil
}
