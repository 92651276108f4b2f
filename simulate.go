package qpath

import (
	"math"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/theapemachine/errnie"
)

// SeedMode selects what the backward pass starts from.
type SeedMode int

const (
	// SeedFullState starts from the final forward state, phases included.
	SeedFullState SeedMode = iota
	// SeedPopulations starts from √P of the final forward populations, phases discarded.
	SeedPopulations
)

func (m SeedMode) String() string {
	if m == SeedPopulations {
		return "populations"
	}
	return "state"
}

func ParseSeedMode(name string) (SeedMode, error) {
	switch name {
	case "state", "":
		return SeedFullState, nil
	case "populations":
		return SeedPopulations, nil
	}
	return SeedFullState, configError("seed_mode", name, ErrInvalidParameter)
}

/*
SystemConfig is the input of one simulate-and-reconstruct run.
*/
type SystemConfig struct {
	Dim       int
	V0        float64
	Coupling  float64
	Sigma     float64
	Scaling   NoiseScaling
	Resonance float64 // k, dt = k/D
	Steps     int
	Precision int // M, zero disables realignment
	Noise     NoiseConfig
	Seed      uint64
	SeedMode  SeedMode
}

func DefaultSystemConfig() SystemConfig {
	return SystemConfig{
		Dim:       200,
		V0:        1.0,
		Coupling:  0.2,
		Sigma:     0.01,
		Scaling:   ScaleInverse,
		Resonance: 1.0,
		Steps:     5,
		Precision: 5,
		Noise:     NoiseConfig{Model: NoiseNone},
		Seed:      42,
		SeedMode:  SeedFullState,
	}
}

func (c SystemConfig) hamiltonian() HamiltonianConfig {
	return HamiltonianConfig{
		Dim:      c.Dim,
		V0:       c.V0,
		Coupling: c.Coupling,
		Sigma:    c.Sigma,
		Scaling:  c.Scaling,
	}
}

func (c SystemConfig) Validate() error {
	if err := c.hamiltonian().Validate(); err != nil {
		return err
	}
	if c.Resonance <= 0 || math.IsNaN(c.Resonance) || math.IsInf(c.Resonance, 0) {
		return configError("resonance", c.Resonance, ErrInvalidParameter)
	}
	if c.Steps < 0 {
		return configError("steps", c.Steps, ErrInvalidParameter)
	}
	if c.Precision < 0 {
		return configError("precision", c.Precision, ErrInvalidParameter)
	}
	if c.SeedMode != SeedFullState && c.SeedMode != SeedPopulations {
		return configError("seed_mode", int(c.SeedMode), ErrInvalidParameter)
	}
	if err := c.Noise.Validate(); err != nil {
		return err
	}
	if c.Noise.Model == NoiseAmplitudeDamping && c.Dim%2 != 0 {
		return configError("dim", c.Dim, ErrInvalidDimension)
	}
	return nil
}

/*
Summary is the per-run output: the error split into its two terms, the gap
uniformity of H and the fidelity of the reconstructed initial state.
*/
type Summary struct {
	ID                  string
	Config              SystemConfig
	Error               float64
	PopulationError     float64
	PhaseError          float64
	GapUniformity       float64
	Fidelity            float64
	FidelityUncertainty float64
	Forward             Trajectory
	Backward            Trajectory
	Report              ErrorReport
}

// newStream returns an independent random stream for seed.
func newStream(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15))
}

/*
Simulate builds H, evolves the uniform superposition forward, seeds and runs
the backward pass with the same propagator and noise, realigns it and scores
the pair. All randomness comes from a stream seeded by cfg.Seed.
*/
func Simulate(cfg SystemConfig) (Summary, error) {
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}

	errnie.Info(
		"Simulate - dim %d, steps %d, k %v, precision %d, noise %s, seed mode %s",
		cfg.Dim, cfg.Steps, cfg.Resonance, cfg.Precision, cfg.Noise.Model, cfg.SeedMode,
	)

	rng := newStream(cfg.Seed)
	h, err := BuildHamiltonian(cfg.hamiltonian(), rng)
	if err != nil {
		return Summary{}, err
	}

	channel, err := NewNoiseChannel(cfg.Noise)
	if err != nil {
		return Summary{}, err
	}

	realigner, err := NewPhaseRealigner(cfg.Precision)
	if err != nil {
		return Summary{}, err
	}

	u, err := Propagate(h, ResonanceStep(cfg.Resonance, cfg.Dim))
	if err != nil {
		return Summary{}, err
	}

	engine := NewEngine()
	initial := UniformState(cfg.Dim)

	forward, err := engine.RunPropagator(initial, u, cfg.Steps, Forward, channel)
	if err != nil {
		return Summary{}, err
	}

	var seed State
	switch cfg.SeedMode {
	case SeedPopulations:
		seed = AmplitudeState(forward.Final().Populations)
	default:
		seed = forward.Final().State.Clone()
	}

	backward, err := engine.RunPropagator(seed, u, cfg.Steps, Backward, channel)
	if err != nil {
		return Summary{}, err
	}
	backward = realigner.Realign(backward)

	report, err := TrajectoryError(forward, backward)
	if err != nil {
		return Summary{}, err
	}

	gap, err := GapUniformity(h)
	if err != nil {
		return Summary{}, err
	}

	fidelity, err := Fidelity(backward.Aligned()[0].State, initial)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		ID:              uuid.NewString(),
		Config:          cfg,
		Error:           report.Total,
		PopulationError: report.Population,
		PhaseError:      report.Phase,
		GapUniformity:   gap,
		Fidelity:        fidelity,
		Forward:         forward,
		Backward:        backward,
		Report:          report,
	}, nil
}

/*
Repeat runs Simulate trials times with seeds cfg.Seed, cfg.Seed+1, ... It
returns the first run's summary with Fidelity replaced by the mean over all
runs and FidelityUncertainty set to their spread.
*/
func Repeat(cfg SystemConfig, trials int) (Summary, error) {
	if trials < 1 {
		return Summary{}, configError("trials", trials, ErrInvalidParameter)
	}

	var first Summary
	reconstructed := make([]State, 0, trials)
	for i := 0; i < trials; i++ {
		run := cfg
		run.Seed = cfg.Seed + uint64(i)

		summary, err := Simulate(run)
		if err != nil {
			return Summary{}, err
		}
		if i == 0 {
			first = summary
		}
		reconstructed = append(reconstructed, summary.Backward.Aligned()[0].State)
	}

	estimate, err := FidelityEstimate(reconstructed, UniformState(cfg.Dim))
	if err != nil {
		return Summary{}, err
	}

	first.Fidelity = estimate.Mean
	first.FidelityUncertainty = estimate.Uncertainty
	return first, nil
}
