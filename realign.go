package qpath

import "math"

/*
PhaseRealigner multiplies step k of a backward trajectory by the global phase
e^(iθ_k), θ_k = 2πk/M. It uses no estimate of the true phase, only the step
index and the precision M. Precision zero disables realignment.
*/
type PhaseRealigner struct {
	Precision int
}

func NewPhaseRealigner(precision int) (*PhaseRealigner, error) {
	if precision < 0 {
		return nil, configError("precision", precision, ErrInvalidParameter)
	}
	return &PhaseRealigner{Precision: precision}, nil
}

// Angle returns θ_k.
func (r *PhaseRealigner) Angle(k int) float64 {
	if r.Precision == 0 {
		return 0
	}
	return 2 * math.Pi * float64(k) / float64(r.Precision)
}

/*
Realign returns a corrected copy of traj. Steps are indexed in build order.
Populations and density matrices are carried over untouched since a global
phase cannot change them.
*/
func (r *PhaseRealigner) Realign(traj Trajectory) Trajectory {
	out := Trajectory{
		Direction: traj.Direction,
		Dt:        traj.Dt,
		Steps:     make([]Step, len(traj.Steps)),
	}

	for k, step := range traj.Steps {
		theta := r.Angle(k)
		out.Steps[k] = Step{
			Index:       step.Index,
			Time:        step.Time,
			State:       step.State.WithPhase(theta),
			Populations: append([]float64(nil), step.Populations...),
			Phase:       step.Phase + theta,
			Density:     step.Density,
		}
	}

	return out
}
