package qpath

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/mat"
)

// UnitarityTolerance bounds max |U†U − I| for an accepted propagator.
const UnitarityTolerance = 1e-8

/*
Propagator holds U = exp(−i·H·dt) for one timestep.
*/
type Propagator struct {
	u  *mat.CDense
	dt float64
}

// ResonanceStep derives the timestep dt = k/D.
func ResonanceStep(k float64, d int) float64 {
	return k / float64(d)
}

/*
Propagate exponentiates −i·H·dt through the eigendecomposition H = V·Λ·Vᵀ,
giving U = V·diag(e^(−iλdt))·Vᵀ. The result is checked against
UnitarityTolerance before it is handed out.
*/
func Propagate(h *Hamiltonian, dt float64) (*Propagator, error) {
	if math.IsNaN(dt) || math.IsInf(dt, 0) {
		return nil, configError("dt", dt, ErrInvalidParameter)
	}

	values, vectors, err := h.eigensystem()
	if err != nil {
		return nil, err
	}

	d := h.Dim()
	phased := mat.NewCDense(d, d, nil)
	basis := mat.NewCDense(d, d, nil)
	for k, lambda := range values {
		phase := cmplx.Exp(complex(0, -lambda*dt))
		for i := 0; i < d; i++ {
			v := complex(vectors.At(i, k), 0)
			basis.Set(i, k, v)
			phased.Set(i, k, v*phase)
		}
	}

	u := mat.NewCDense(d, d, nil)
	cblas128.Gemm(blas.NoTrans, blas.Trans, 1, phased.RawCMatrix(), basis.RawCMatrix(), 0, u.RawCMatrix())

	p := &Propagator{u: u, dt: dt}
	if dev := p.UnitarityDeviation(); dev > UnitarityTolerance || math.IsNaN(dev) {
		return nil, &NumericalInstabilityError{
			Detail:    "propagator failed the unitarity check",
			Deviation: dev,
			Err:       ErrNotUnitary,
		}
	}

	return p, nil
}

// NewPropagator wraps an already unitary matrix, checking it first.
func NewPropagator(u *mat.CDense, dt float64) (*Propagator, error) {
	r, c := u.Dims()
	if r != c || r == 0 {
		return nil, configError("propagator", r, ErrInvalidDimension)
	}
	p := &Propagator{u: u, dt: dt}
	if dev := p.UnitarityDeviation(); dev > UnitarityTolerance || math.IsNaN(dev) {
		return nil, &NumericalInstabilityError{
			Detail:    "matrix failed the unitarity check",
			Deviation: dev,
			Err:       ErrNotUnitary,
		}
	}
	return p, nil
}

func (p *Propagator) Dim() int {
	r, _ := p.u.Dims()
	return r
}

func (p *Propagator) Dt() float64 {
	return p.dt
}

func (p *Propagator) At(i, j int) complex128 {
	return p.u.At(i, j)
}

// UnitarityDeviation is max |(U†U − I)_ij|.
func (p *Propagator) UnitarityDeviation() float64 {
	d := p.Dim()
	w := mat.NewCDense(d, d, nil)
	cblas128.Gemm(blas.ConjTrans, blas.NoTrans, 1, p.u.RawCMatrix(), p.u.RawCMatrix(), 0, w.RawCMatrix())

	var worst float64
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			want := complex(0, 0)
			if i == j {
				want = 1
			}
			worst = math.Max(worst, cmplx.Abs(w.At(i, j)-want))
		}
	}
	return worst
}

// Apply returns U·ψ.
func (p *Propagator) Apply(psi State) State {
	return p.gemv(blas.NoTrans, psi)
}

// ApplyAdjoint returns U†·ψ.
func (p *Propagator) ApplyAdjoint(psi State) State {
	return p.gemv(blas.ConjTrans, psi)
}

func (p *Propagator) gemv(t blas.Transpose, psi State) State {
	out := make(State, len(psi))
	cblas128.Gemv(
		t, 1, p.u.RawCMatrix(),
		cblas128.Vector{N: len(psi), Inc: 1, Data: psi},
		0,
		cblas128.Vector{N: len(out), Inc: 1, Data: out},
	)
	return out
}
