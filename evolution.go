package qpath

import (
	"math"
	"math/cmplx"

	"github.com/theapemachine/errnie"
	"gonum.org/v1/gonum/cmplxs"
)

// NormTolerance is the drift a unitary step may introduce before the state is rescaled.
const NormTolerance = 1e-9

/*
Engine builds trajectories by repeated application of a propagator, with an
optional noise channel between steps.
*/
type Engine struct {
	NormTolerance    float64
	DensityTolerance float64
}

func NewEngine() *Engine {
	return &Engine{
		NormTolerance:    NormTolerance,
		DensityTolerance: DensityTolerance,
	}
}

/*
Advance applies U (Forward) or U† (Backward) to state. A unitary step cannot
change the norm, so any change beyond NormTolerance is floating error and is
rescaled back to the incoming norm. A state already shrunk by noise keeps its
shrunken norm.
*/
func (e *Engine) Advance(state State, u *Propagator, dir Direction) (State, error) {
	if len(state) != u.Dim() {
		return nil, configError("state", len(state), ErrInvalidDimension)
	}

	before := state.Norm()

	var next State
	switch dir {
	case Forward:
		next = u.Apply(state)
	case Backward:
		next = u.ApplyAdjoint(state)
	default:
		return nil, configError("direction", int(dir), ErrInvalidParameter)
	}

	if !next.Finite() {
		return nil, &NumericalInstabilityError{
			Detail:    "propagated state is not finite",
			LastValid: state.Clone(),
			Err:       ErrNotUnitary,
		}
	}

	after := next.Norm()
	if math.Abs(after-before) > e.NormTolerance && after > 0 {
		Logger().Debug("norm drift corrected", "before", before, "after", after)
		for i := range next {
			next[i] *= complex(before/after, 0)
		}
	}

	return next, nil
}

/*
Run computes U = exp(−i·H·dt) and builds a trajectory of steps+1 states from
initial. A nil noise channel means a purely unitary run.
*/
func (e *Engine) Run(
	initial State, h *Hamiltonian, dt float64, steps int, dir Direction, noise NoiseChannel,
) (Trajectory, error) {
	if h == nil {
		return Trajectory{}, configError("hamiltonian", nil, ErrInvalidParameter)
	}
	if err := e.check(initial, h.Dim(), steps, noise); err != nil {
		return Trajectory{}, err
	}

	u, err := Propagate(h, dt)
	if err != nil {
		if unstable, ok := err.(*NumericalInstabilityError); ok {
			unstable.LastValid = initial.Clone()
		}
		return Trajectory{}, err
	}

	return e.RunPropagator(initial, u, steps, dir, noise)
}

/*
RunPropagator is Run with a precomputed propagator, so forward and backward
passes can share one exponentiation. Backward steps are time-stamped from
steps·dt down to zero. With an active noise channel the run is carried on the
density matrix; see runMixed.
*/
func (e *Engine) RunPropagator(
	initial State, u *Propagator, steps int, dir Direction, noise NoiseChannel,
) (Trajectory, error) {
	if err := e.check(initial, u.Dim(), steps, noise); err != nil {
		return Trajectory{}, err
	}

	errnie.Info(
		"RunPropagator - dim %d, steps %d, direction %s, dt %v",
		u.Dim(), steps, dir, u.Dt(),
	)

	clock := func(i int) float64 {
		if dir == Backward {
			return float64(steps-i) * u.Dt()
		}
		return float64(i) * u.Dt()
	}

	traj := Trajectory{
		Direction: dir,
		Dt:        u.Dt(),
		Steps:     make([]Step, 0, steps+1),
	}

	current := initial.Clone()
	traj.Steps = append(traj.Steps, Step{
		Index:       0,
		Time:        clock(0),
		State:       current,
		Populations: current.Populations(),
	})

	if noise != nil {
		if _, identity := noise.(Identity); !identity {
			return e.runMixed(traj, u, steps, dir, noise, clock)
		}
	}

	for i := 1; i <= steps; i++ {
		next, err := e.Advance(current, u, dir)
		if err != nil {
			return traj, stamp(err, i, current)
		}

		current = next
		traj.Steps = append(traj.Steps, Step{
			Index:       i,
			Time:        clock(i),
			State:       current,
			Populations: current.Populations(),
		})
	}

	return traj, nil
}

/*
runMixed propagates ρ through every step: ρ ← UρU† (or U†ρU), then the
channel, then validation. Populations are diag(ρ). The state recorded per step
is a read-out of ρ and is never propagated: its norm is ‖ψ₀‖·√λmax, so it
shrinks as the channel mixes ρ, and its phase follows the noiseless evolution
of the initial state.
*/
func (e *Engine) runMixed(
	traj Trajectory, u *Propagator, steps int, dir Direction, noise NoiseChannel, clock func(int) float64,
) (Trajectory, error) {
	initial := traj.Steps[0].State
	rho, err := Lift(initial)
	if err != nil {
		return traj, err
	}
	traj.Steps[0].Density = rho

	scale := initial.Norm()
	reference := initial.Clone()
	last := initial

	for i := 1; i <= steps; i++ {
		if reference, err = e.Advance(reference, u, dir); err != nil {
			return traj, stamp(err, i, last)
		}

		evolved, err := rho.Evolve(u, dir)
		if err != nil {
			return traj, stamp(err, i, last)
		}

		noisy, err := noise.Apply(evolved)
		if err != nil {
			return traj, stamp(err, i, last)
		}
		if err := noisy.Validate(e.DensityTolerance); err != nil {
			return traj, stamp(err, i, last)
		}

		state, err := readout(noisy, reference, scale)
		if err != nil {
			return traj, stamp(err, i, last)
		}

		rho, last = noisy, state
		traj.Steps = append(traj.Steps, Step{
			Index:       i,
			Time:        clock(i),
			State:       state,
			Populations: noisy.Populations(),
			Density:     noisy,
		})
	}

	return traj, nil
}

func (e *Engine) check(initial State, d, steps int, noise NoiseChannel) error {
	if steps < 0 {
		return configError("steps", steps, ErrInvalidParameter)
	}
	if len(initial) != d {
		return configError("state", len(initial), ErrInvalidDimension)
	}
	if n := initial.Norm(); n == 0 || math.IsNaN(n) {
		return configError("state", n, ErrInvalidParameter)
	}
	if noise != nil {
		return noise.Check(d)
	}
	return nil
}

// readout is the dominant component of rho, scaled by scale·√λmax and phase-matched to reference.
func readout(rho *DensityMatrix, reference State, scale float64) (State, error) {
	lambda, principal, err := rho.Principal()
	if err != nil {
		return nil, err
	}

	overlap := principal.Inner(reference)
	align := complex(1, 0)
	if cmplx.Abs(overlap) > 0 {
		align = overlap / complex(cmplx.Abs(overlap), 0)
	}
	cmplxs.Scale(complex(scale*math.Sqrt(math.Max(lambda, 0)), 0)*align, principal)
	return principal, nil
}

func stamp(err error, step int, last State) error {
	if unstable, ok := err.(*NumericalInstabilityError); ok {
		unstable.Step = step
		unstable.LastValid = last.Clone()
		Logger().Error("run aborted", "step", step, "err", err)
	}
	return err
}
