package qpath

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/mat"
)

// DensityTolerance bounds the Hermiticity, trace and positivity checks.
const DensityTolerance = 1e-9

/*
DensityMatrix is a D×D complex matrix ρ. Noise channels act on it; the
evolution loop lifts pure states into it on demand and reads the populations
and the dominant component back out.
*/
type DensityMatrix struct {
	m *mat.CDense
}

// Lift returns ρ = |ψ⟩⟨ψ| / ⟨ψ|ψ⟩.
func Lift(psi State) (*DensityMatrix, error) {
	norm := psi.Norm()
	if norm == 0 || math.IsNaN(norm) {
		return nil, configError("state", norm, ErrInvalidParameter)
	}

	d := len(psi)
	m := mat.NewCDense(d, d, nil)
	scale := complex(1/(norm*norm), 0)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			m.Set(i, j, psi[i]*cmplx.Conj(psi[j])*scale)
		}
	}
	return &DensityMatrix{m: m}, nil
}

// MaximallyMixed returns I/d.
func MaximallyMixed(d int) *DensityMatrix {
	m := mat.NewCDense(d, d, nil)
	for i := 0; i < d; i++ {
		m.Set(i, i, complex(1/float64(d), 0))
	}
	return &DensityMatrix{m: m}
}

func (rho *DensityMatrix) Dim() int {
	r, _ := rho.m.Dims()
	return r
}

func (rho *DensityMatrix) At(i, j int) complex128 {
	return rho.m.At(i, j)
}

func (rho *DensityMatrix) Clone() *DensityMatrix {
	d := rho.Dim()
	m := mat.NewCDense(d, d, nil)
	m.Copy(rho.m)
	return &DensityMatrix{m: m}
}

func (rho *DensityMatrix) Trace() complex128 {
	var tr complex128
	for i := 0; i < rho.Dim(); i++ {
		tr += rho.m.At(i, i)
	}
	return tr
}

// Populations returns the real parts of the diagonal.
func (rho *DensityMatrix) Populations() []float64 {
	d := rho.Dim()
	out := make([]float64, d)
	for i := 0; i < d; i++ {
		out[i] = real(rho.m.At(i, i))
	}
	return out
}

// Purity returns Tr(ρ²).
func (rho *DensityMatrix) Purity() float64 {
	var p float64
	d := rho.Dim()
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			a := cmplx.Abs(rho.m.At(i, j))
			p += a * a
		}
	}
	return p
}

func (rho *DensityMatrix) HermiticityDeviation() float64 {
	var worst float64
	d := rho.Dim()
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			worst = math.Max(worst, cmplx.Abs(rho.m.At(i, j)-cmplx.Conj(rho.m.At(j, i))))
		}
	}
	return worst
}

// sandwich returns K·ρ·K†.
func (rho *DensityMatrix) sandwich(k *mat.CDense) *mat.CDense {
	d := rho.Dim()
	tmp := mat.NewCDense(d, d, nil)
	out := mat.NewCDense(d, d, nil)
	cblas128.Gemm(blas.NoTrans, blas.NoTrans, 1, k.RawCMatrix(), rho.m.RawCMatrix(), 0, tmp.RawCMatrix())
	cblas128.Gemm(blas.NoTrans, blas.ConjTrans, 1, tmp.RawCMatrix(), k.RawCMatrix(), 0, out.RawCMatrix())
	return out
}

/*
Evolve returns U·ρ·U† for Forward and U†·ρ·U for Backward.
*/
func (rho *DensityMatrix) Evolve(u *Propagator, dir Direction) (*DensityMatrix, error) {
	d := rho.Dim()
	if u.Dim() != d {
		return nil, configError("density", d, ErrInvalidDimension)
	}

	left, right := blas.NoTrans, blas.ConjTrans
	switch dir {
	case Forward:
	case Backward:
		left, right = blas.ConjTrans, blas.NoTrans
	default:
		return nil, configError("direction", int(dir), ErrInvalidParameter)
	}

	tmp := mat.NewCDense(d, d, nil)
	out := mat.NewCDense(d, d, nil)
	cblas128.Gemm(left, blas.NoTrans, 1, u.u.RawCMatrix(), rho.m.RawCMatrix(), 0, tmp.RawCMatrix())
	cblas128.Gemm(blas.NoTrans, right, 1, tmp.RawCMatrix(), u.u.RawCMatrix(), 0, out.RawCMatrix())
	return &DensityMatrix{m: out}, nil
}

/*
embed maps the Hermitian ρ = A + iB onto the real symmetric
[[A, −B], [B, A]]. Every eigenvalue of ρ appears twice in the embedding and an
eigenvector [x; y] of the embedding gives the eigenvector x + iy of ρ.
*/
func (rho *DensityMatrix) embed() *mat.SymDense {
	d := rho.Dim()
	sym := mat.NewSymDense(2*d, nil)
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			v := rho.m.At(i, j)
			sym.SetSym(i, j, real(v))
			sym.SetSym(d+i, d+j, real(v))
		}
		for j := 0; j < d; j++ {
			// Upper-right block is −B.
			sym.SetSym(i, d+j, -imag(rho.m.At(i, j)))
		}
	}
	return sym
}

func (rho *DensityMatrix) eigen() (*mat.EigenSym, error) {
	var eig mat.EigenSym
	if ok := eig.Factorize(rho.embed(), true); !ok {
		return nil, &NumericalInstabilityError{
			Detail: "density matrix eigendecomposition did not converge",
			Err:    ErrInvalidDensity,
		}
	}
	return &eig, nil
}

// Eigenvalues returns the spectrum of ρ in ascending order.
func (rho *DensityMatrix) Eigenvalues() ([]float64, error) {
	eig, err := rho.eigen()
	if err != nil {
		return nil, err
	}
	doubled := eig.Values(nil)
	out := make([]float64, 0, len(doubled)/2)
	for i := 0; i < len(doubled); i += 2 {
		out = append(out, (doubled[i]+doubled[i+1])/2)
	}
	return out, nil
}

/*
Principal returns the largest eigenvalue of ρ and its unit eigenvector.
*/
func (rho *DensityMatrix) Principal() (float64, State, error) {
	eig, err := rho.eigen()
	if err != nil {
		return 0, nil, err
	}

	values := eig.Values(nil)
	top := 0
	for i, v := range values {
		if v > values[top] {
			top = i
		}
	}

	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	d := rho.Dim()
	psi := make(State, d)
	for i := 0; i < d; i++ {
		psi[i] = complex(vectors.At(i, top), vectors.At(d+i, top))
	}
	return values[top], psi.Normalize(), nil
}

/*
Validate checks that ρ is Hermitian, has unit trace and no eigenvalue below
−tol.
*/
func (rho *DensityMatrix) Validate(tol float64) error {
	if dev := rho.HermiticityDeviation(); dev > tol || math.IsNaN(dev) {
		return &NumericalInstabilityError{Detail: "density matrix is not Hermitian", Deviation: dev, Err: ErrInvalidDensity}
	}
	if dev := cmplx.Abs(rho.Trace() - 1); dev > tol || math.IsNaN(dev) {
		return &NumericalInstabilityError{Detail: "density matrix trace is not 1", Deviation: dev, Err: ErrInvalidDensity}
	}
	values, err := rho.Eigenvalues()
	if err != nil {
		return err
	}
	if values[0] < -tol {
		return &NumericalInstabilityError{Detail: "density matrix is not positive semidefinite", Deviation: -values[0], Err: ErrInvalidDensity}
	}
	return nil
}
