package simrand

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"
)

// Distribution is a sampleable scalar distribution, as used for network
// sample parameters and for the toggler's on/off dwell times (§4.4, §6).
// Sampling is delegated to gonum.org/v1/gonum/stat/distuv (the same
// dependency samuelfneumann-GoLearn uses for its environment and policy
// sampling) rather than hand-rolled inverse-CDF code.
type Distribution interface {
	Sample(rng *Rng) float64
}

// Always always returns the same value.
type Always struct {
	Value float64 `json:"value"`
}

// Sample implements Distribution.
func (a Always) Sample(*Rng) float64 { return a.Value }

// Uniform samples uniformly from [Min, Max].
type Uniform struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Sample implements Distribution.
func (u Uniform) Sample(rng *Rng) float64 {
	d := distuv.Uniform{Min: u.Min, Max: u.Max, Src: rng.Std()}
	return d.Rand()
}

// Normal samples from a normal distribution with the given mean and
// standard deviation.
type Normal struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// Sample implements Distribution.
func (n Normal) Sample(rng *Rng) float64 {
	d := distuv.Normal{Mu: n.Mean, Sigma: n.StdDev, Src: rng.Std()}
	return d.Rand()
}

// Exponential samples from an exponential distribution with the given
// mean (not rate).
type Exponential struct {
	Mean float64 `json:"mean"`
}

// Sample implements Distribution.
func (e Exponential) Sample(rng *Rng) float64 {
	if e.Mean <= 0 {
		return 0
	}
	d := distuv.Exponential{Rate: 1 / e.Mean, Src: rng.Std()}
	return d.Rand()
}

// PositiveDistribution wraps a Distribution that is only ever sampled for
// strictly-positive quantities (on/off dwell times, "repeat N times"
// counts). Negative samples are clamped to zero, matching the source's
// treatment of PositiveContinuousDistribution.
type PositiveDistribution struct {
	Distribution
}

// Sample clamps the wrapped distribution's sample to be non-negative.
func (p PositiveDistribution) Sample(rng *Rng) float64 {
	v := p.Distribution.Sample(rng)
	if v < 0 {
		return 0
	}
	return v
}

// taggedDistribution is the externally-tagged JSON wire shape: exactly one
// of the four keys is present, matching §6's "always{value}",
// "uniform{min,max}", "normal{mean,std_dev}", "exponential{mean}" variants.
type taggedDistribution struct {
	Always      *Always      `json:"always,omitempty"`
	Uniform     *Uniform     `json:"uniform,omitempty"`
	Normal      *Normal      `json:"normal,omitempty"`
	Exponential *Exponential `json:"exponential,omitempty"`
}

// MarshalJSON implements json.Marshaler for the PositiveDistribution
// wrapper by delegating to the wrapped concrete type.
func (p PositiveDistribution) MarshalJSON() ([]byte, error) {
	return marshalDistribution(p.Distribution)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *PositiveDistribution) UnmarshalJSON(data []byte) error {
	d, err := unmarshalDistribution(data)
	if err != nil {
		return err
	}
	p.Distribution = d
	return nil
}

func marshalDistribution(d Distribution) ([]byte, error) {
	var t taggedDistribution
	switch v := d.(type) {
	case Always:
		t.Always = &v
	case Uniform:
		t.Uniform = &v
	case Normal:
		t.Normal = &v
	case Exponential:
		t.Exponential = &v
	default:
		return nil, fmt.Errorf("simrand: unknown distribution type %T", d)
	}
	return json.Marshal(t)
}

func unmarshalDistribution(data []byte) (Distribution, error) {
	var t taggedDistribution
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	switch {
	case t.Always != nil:
		return *t.Always, nil
	case t.Uniform != nil:
		return *t.Uniform, nil
	case t.Normal != nil:
		return *t.Normal, nil
	case t.Exponential != nil:
		return *t.Exponential, nil
	default:
		return nil, fmt.Errorf("simrand: distribution JSON has no recognized variant")
	}
}

// DistributionBox wraps a Distribution for use as a struct field that must
// round-trip through JSON using the tagged union shape above.
type DistributionBox struct {
	Distribution
}

// MarshalJSON implements json.Marshaler.
func (b DistributionBox) MarshalJSON() ([]byte, error) {
	return marshalDistribution(b.Distribution)
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *DistributionBox) UnmarshalJSON(data []byte) error {
	d, err := unmarshalDistribution(data)
	if err != nil {
		return err
	}
	b.Distribution = d
	return nil
}
