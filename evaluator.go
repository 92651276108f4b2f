package qpath

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/stat"
)

// TimeTolerance is how far two timestamps may differ and still count as aligned.
const TimeTolerance = 1e-9

// Fidelity returns |⟨target|state⟩|².
func Fidelity(state, target State) (float64, error) {
	if len(state) != len(target) {
		return 0, configError("target", len(target), ErrInvalidDimension)
	}
	overlap := cmplx.Abs(target.Inner(state))
	return overlap * overlap, nil
}

// FidelityStat summarises fidelity over stochastic realizations.
type FidelityStat struct {
	Mean        float64
	Uncertainty float64
	Trials      int
}

/*
FidelityEstimate averages the fidelity of each realization against target.
The uncertainty is the sample standard deviation across realizations and is
zero for a single deterministic run.
*/
func FidelityEstimate(realizations []State, target State) (FidelityStat, error) {
	if len(realizations) == 0 {
		return FidelityStat{}, configError("realizations", 0, ErrInvalidParameter)
	}

	values := make([]float64, len(realizations))
	for i, s := range realizations {
		f, err := Fidelity(s, target)
		if err != nil {
			return FidelityStat{}, err
		}
		values[i] = f
	}

	if len(values) == 1 {
		return FidelityStat{Mean: values[0], Trials: 1}, nil
	}

	mean, variance := stat.MeanVariance(values, nil)
	return FidelityStat{
		Mean:        mean,
		Uncertainty: math.Sqrt(variance),
		Trials:      len(values),
	}, nil
}

// StepError is the error contribution of one aligned timestep.
type StepError struct {
	Index      int
	Time       float64
	Population float64
	Phase      float64
	Total      float64
}

// ErrorReport holds the per-step terms and their sums.
type ErrorReport struct {
	Steps      []StepError
	Population float64
	Phase      float64
	Total      float64
}

/*
TrajectoryError compares a forward trajectory with a (corrected) backward one.
The backward trajectory is put into ascending time order first. Per step the
error is Σ_i (P_f,i − P_b,i)² + (arg⟨ψ_f|ψ_b⟩)².
*/
func TrajectoryError(forward, backward Trajectory) (ErrorReport, error) {
	if forward.Len() != backward.Len() {
		return ErrorReport{}, configError("backward", backward.Len(), ErrLengthMismatch)
	}

	fwd := forward.Aligned()
	bwd := backward.Aligned()
	report := ErrorReport{Steps: make([]StepError, len(fwd))}

	for t := range fwd {
		f, b := fwd[t], bwd[t]
		if math.Abs(f.Time-b.Time) > TimeTolerance*math.Max(1, math.Abs(f.Time)) {
			return ErrorReport{}, configError("time", b.Time, ErrMisaligned)
		}
		if len(f.Populations) != len(b.Populations) || len(f.State) != len(b.State) {
			return ErrorReport{}, configError("state", len(b.State), ErrInvalidDimension)
		}

		var pop float64
		for i := range f.Populations {
			diff := f.Populations[i] - b.Populations[i]
			pop += diff * diff
		}

		dphi := cmplx.Phase(f.State.Inner(b.State))
		phase := dphi * dphi

		report.Steps[t] = StepError{
			Index:      t,
			Time:       f.Time,
			Population: pop,
			Phase:      phase,
			Total:      pop + phase,
		}
		report.Population += pop
		report.Phase += phase
	}

	report.Total = report.Population + report.Phase
	return report, nil
}

// Gaps returns the consecutive differences of a sorted spectrum.
func Gaps(eigenvalues []float64) []float64 {
	if len(eigenvalues) < 2 {
		return nil
	}
	out := make([]float64, len(eigenvalues)-1)
	for i := range out {
		out[i] = eigenvalues[i+1] - eigenvalues[i]
	}
	return out
}

/*
GapUniformity is the population standard deviation of the consecutive
eigenvalue gaps of H. Zero means an evenly spaced spectrum.
*/
func GapUniformity(h *Hamiltonian) (float64, error) {
	values, err := h.Eigenvalues()
	if err != nil {
		return 0, err
	}
	gaps := Gaps(values)
	if len(gaps) < 2 {
		return 0, nil
	}
	return stat.PopStdDev(gaps, nil), nil
}
