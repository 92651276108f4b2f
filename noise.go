package qpath

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// NoiseModel names the interchangeable noise strategies.
type NoiseModel int

const (
	NoiseNone NoiseModel = iota
	NoiseDepolarizing
	NoiseAmplitudeDamping
)

func (m NoiseModel) String() string {
	switch m {
	case NoiseNone:
		return "none"
	case NoiseDepolarizing:
		return "depolarizing"
	case NoiseAmplitudeDamping:
		return "amplitude_damping"
	default:
		return "unknown"
	}
}

func ParseNoiseModel(name string) (NoiseModel, error) {
	switch name {
	case "none", "":
		return NoiseNone, nil
	case "depolarizing":
		return NoiseDepolarizing, nil
	case "amplitude_damping":
		return NoiseAmplitudeDamping, nil
	}
	return NoiseNone, configError("noise.model", name, ErrInvalidParameter)
}

// NoiseConfig selects a model and its strength.
type NoiseConfig struct {
	Model NoiseModel
	P     float64
	Gamma float64
}

func (c NoiseConfig) Validate() error {
	switch c.Model {
	case NoiseNone:
		return nil
	case NoiseDepolarizing:
		if !inUnitInterval(c.P) {
			return configError("noise.p", c.P, ErrProbabilityRange)
		}
	case NoiseAmplitudeDamping:
		if !inUnitInterval(c.Gamma) {
			return configError("noise.gamma", c.Gamma, ErrProbabilityRange)
		}
	default:
		return configError("noise.model", int(c.Model), ErrInvalidParameter)
	}
	return nil
}

func inUnitInterval(x float64) bool {
	return x >= 0 && x <= 1 && !math.IsNaN(x)
}

/*
NoiseChannel is a completely positive trace-preserving map on density
matrices. Check rejects dimensions the channel cannot act on, so a run fails
before any propagation work.
*/
type NoiseChannel interface {
	Name() string
	Check(d int) error
	Apply(rho *DensityMatrix) (*DensityMatrix, error)
}

// NewNoiseChannel builds the strategy named by cfg.
func NewNoiseChannel(cfg NoiseConfig) (NoiseChannel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Model {
	case NoiseDepolarizing:
		return &Depolarizing{P: cfg.P}, nil
	case NoiseAmplitudeDamping:
		return NewAmplitudeDamping(cfg.Gamma), nil
	default:
		return Identity{}, nil
	}
}

// Identity leaves ρ untouched.
type Identity struct{}

func (Identity) Name() string      { return NoiseNone.String() }
func (Identity) Check(d int) error { return nil }

func (Identity) Apply(rho *DensityMatrix) (*DensityMatrix, error) {
	return rho.Clone(), nil
}

/*
Depolarizing mixes ρ towards the maximally mixed state:
ρ ← (1−p)·ρ + (p/d)·I.
*/
type Depolarizing struct {
	P float64
}

func (c *Depolarizing) Name() string { return NoiseDepolarizing.String() }

func (c *Depolarizing) Check(d int) error {
	if d <= 0 {
		return configError("dim", d, ErrInvalidDimension)
	}
	if !inUnitInterval(c.P) {
		return configError("noise.p", c.P, ErrProbabilityRange)
	}
	return nil
}

func (c *Depolarizing) Apply(rho *DensityMatrix) (*DensityMatrix, error) {
	d := rho.Dim()
	if err := c.Check(d); err != nil {
		return nil, err
	}

	out := rho.Clone()
	keep := complex(1-c.P, 0)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			v := keep * rho.m.At(i, j)
			if i == j {
				v += complex(c.P/float64(d), 0)
			}
			out.m.Set(i, j, v)
		}
	}
	return out, nil
}

/*
AmplitudeDamping relaxes every two-level block {|2b⟩, |2b+1⟩} towards its
lower level with the Kraus pair E0 = diag(1, √(1−γ)), E1 = [[0, √γ], [0, 0]],
applied as block-diagonal operators over the full space. The dimension must be
even.
*/
type AmplitudeDamping struct {
	Gamma float64

	mu    sync.Mutex
	kraus map[int][2]*mat.CDense
}

func NewAmplitudeDamping(gamma float64) *AmplitudeDamping {
	return &AmplitudeDamping{
		Gamma: gamma,
		kraus: make(map[int][2]*mat.CDense),
	}
}

func (c *AmplitudeDamping) Name() string { return NoiseAmplitudeDamping.String() }

func (c *AmplitudeDamping) Check(d int) error {
	if d <= 0 || d%2 != 0 {
		return configError("dim", d, ErrInvalidDimension)
	}
	if !inUnitInterval(c.Gamma) {
		return configError("noise.gamma", c.Gamma, ErrProbabilityRange)
	}
	return nil
}

func (c *AmplitudeDamping) operators(d int) [2]*mat.CDense {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.kraus == nil {
		c.kraus = make(map[int][2]*mat.CDense)
	}
	if ops, ok := c.kraus[d]; ok {
		return ops
	}

	e0 := mat.NewCDense(d, d, nil)
	e1 := mat.NewCDense(d, d, nil)
	decay := complex(math.Sqrt(1-c.Gamma), 0)
	jump := complex(math.Sqrt(c.Gamma), 0)
	for b := 0; b < d; b += 2 {
		e0.Set(b, b, 1)
		e0.Set(b+1, b+1, decay)
		e1.Set(b, b+1, jump)
	}

	ops := [2]*mat.CDense{e0, e1}
	c.kraus[d] = ops
	return ops
}

func (c *AmplitudeDamping) Apply(rho *DensityMatrix) (*DensityMatrix, error) {
	d := rho.Dim()
	if err := c.Check(d); err != nil {
		return nil, err
	}

	ops := c.operators(d)
	a := rho.sandwich(ops[0])
	b := rho.sandwich(ops[1])

	out := mat.NewCDense(d, d, nil)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			out.Set(i, j, a.At(i, j)+b.At(i, j))
		}
	}
	return &DensityMatrix{m: out}, nil
}
