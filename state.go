package qpath

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/cmplxs"
)

/*
State is a vector of complex amplitudes over a D-dimensional basis. Noise may
leave it sub-normalized; the missing weight is the observable decay.
*/
type State []complex128

// BasisState returns |i⟩ in dimension d.
func BasisState(d, i int) State {
	s := make(State, d)
	s[i] = 1
	return s
}

// UniformState returns the equal superposition over d basis states.
func UniformState(d int) State {
	s := make(State, d)
	amp := complex(1/math.Sqrt(float64(d)), 0)
	for i := range s {
		s[i] = amp
	}
	return s
}

/*
AmplitudeState builds a state with amplitudes √P from a population
distribution. All phase information is discarded.
*/
func AmplitudeState(populations []float64) State {
	s := make(State, len(populations))
	for i, p := range populations {
		s[i] = complex(math.Sqrt(math.Max(p, 0)), 0)
	}
	return s.Normalize()
}

func (s State) Dim() int {
	return len(s)
}

func (s State) Clone() State {
	out := make(State, len(s))
	copy(out, s)
	return out
}

func (s State) Norm() float64 {
	return cmplxs.Norm(s, 2)
}

// Normalize scales s to unit norm in place. The zero vector is left alone.
func (s State) Normalize() State {
	if n := s.Norm(); n > 0 {
		cmplxs.ScaleReal(1/n, s)
	}
	return s
}

// Inner returns ⟨s|t⟩.
func (s State) Inner(t State) complex128 {
	return cmplxs.Dot(s, t)
}

// Populations returns |amplitude|² per basis state.
func (s State) Populations() []float64 {
	probs := make([]float64, len(s))
	for i, amplitude := range s {
		prob := cmplx.Abs(amplitude)
		probs[i] = prob * prob
	}
	return probs
}

// WithPhase returns a copy of s multiplied by e^(iθ).
func (s State) WithPhase(theta float64) State {
	out := s.Clone()
	cmplxs.Scale(cmplx.Exp(complex(0, theta)), out)
	return out
}

// Finite reports whether every amplitude is a finite number.
func (s State) Finite() bool {
	for _, a := range s {
		if cmplx.IsNaN(a) || cmplx.IsInf(a) {
			return false
		}
	}
	return true
}
