package qpath

import (
	"math"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/theapemachine/errnie"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

/*
NoiseScaling selects how the disorder scale σ is applied to the Hamiltonian
entries. Both modes are kept because the two published error scales for the
same D=200 experiment correspond to one each.
*/
type NoiseScaling int

const (
	ScaleInverse NoiseScaling = iota // η ~ N(0,1)·σ/D
	ScaleFixed                       // η ~ N(0,1)·σ
)

func (s NoiseScaling) String() string {
	switch s {
	case ScaleInverse:
		return "inverse"
	case ScaleFixed:
		return "fixed"
	default:
		return "unknown"
	}
}

// ParseNoiseScaling maps a config string onto a NoiseScaling.
func ParseNoiseScaling(name string) (NoiseScaling, error) {
	switch name {
	case "inverse", "":
		return ScaleInverse, nil
	case "fixed":
		return ScaleFixed, nil
	}
	return ScaleInverse, configError("scaling", name, ErrInvalidParameter)
}

func (s NoiseScaling) amplitude(sigma float64, d int) float64 {
	if s == ScaleFixed {
		return sigma
	}
	return sigma / float64(d)
}

// HamiltonianConfig describes the near-tridiagonal system Hamiltonian.
type HamiltonianConfig struct {
	Dim      int
	V0       float64
	Coupling float64
	Sigma    float64
	Scaling  NoiseScaling
}

func (c HamiltonianConfig) Validate() error {
	if c.Dim <= 0 {
		return configError("dim", c.Dim, ErrInvalidDimension)
	}
	if c.Sigma < 0 || math.IsNaN(c.Sigma) || math.IsInf(c.Sigma, 0) {
		return configError("sigma", c.Sigma, ErrInvalidParameter)
	}
	if math.IsNaN(c.V0) || math.IsNaN(c.Coupling) {
		return configError("potential", c.V0, ErrInvalidParameter)
	}
	if c.Scaling != ScaleInverse && c.Scaling != ScaleFixed {
		return configError("scaling", int(c.Scaling), ErrInvalidParameter)
	}
	return nil
}

/*
Hamiltonian is a real symmetric D×D matrix with a quasi-periodic on-site
potential and nearest-neighbour coupling. Being real symmetric, it is Hermitian
by construction. The spectral decomposition is computed once on first use.
*/
type Hamiltonian struct {
	cfg HamiltonianConfig
	sym *mat.SymDense

	once    sync.Once
	values  []float64
	vectors *mat.Dense
	err     error
}

/*
BuildHamiltonian fills the diagonal with V0·cos(2πi/D) + η and the first
off-diagonal with g + η. The disorder draws come from rng; a nil rng is only
accepted when σ is zero.
*/
func BuildHamiltonian(cfg HamiltonianConfig, rng *rand.Rand) (*Hamiltonian, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Sigma > 0 && rng == nil {
		return nil, configError("rng", nil, ErrInvalidParameter)
	}

	errnie.Info(
		"BuildHamiltonian - dim %d, v0 %v, coupling %v, sigma %v, scaling %s",
		cfg.Dim, cfg.V0, cfg.Coupling, cfg.Sigma, cfg.Scaling,
	)

	d := cfg.Dim
	eta := func() float64 { return 0 }
	if cfg.Sigma > 0 {
		normal := distuv.Normal{
			Mu:    0,
			Sigma: cfg.Scaling.amplitude(cfg.Sigma, d),
			Src:   rng,
		}
		eta = normal.Rand
	}

	sym := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		sym.SetSym(i, i, cfg.V0*math.Cos(2*math.Pi*float64(i)/float64(d))+eta())
	}
	for i := 0; i+1 < d; i++ {
		sym.SetSym(i, i+1, cfg.Coupling+eta())
	}

	return &Hamiltonian{cfg: cfg, sym: sym}, nil
}

func (h *Hamiltonian) Dim() int {
	return h.cfg.Dim
}

func (h *Hamiltonian) Config() HamiltonianConfig {
	return h.cfg
}

func (h *Hamiltonian) At(i, j int) complex128 {
	return complex(h.sym.At(i, j), 0)
}

// Matrix exposes the underlying symmetric matrix.
func (h *Hamiltonian) Matrix() mat.Symmetric {
	return h.sym
}

// HermiticityDeviation is max |H_ij − conj(H_ji)|.
func (h *Hamiltonian) HermiticityDeviation() float64 {
	var worst float64
	d := h.Dim()
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			dev := math.Abs(h.sym.At(i, j) - h.sym.At(j, i))
			worst = math.Max(worst, dev)
		}
	}
	return worst
}

func (h *Hamiltonian) decompose() {
	var eig mat.EigenSym
	if ok := eig.Factorize(h.sym, true); !ok {
		h.err = &NumericalInstabilityError{
			Detail: "eigendecomposition of the Hamiltonian did not converge",
			Err:    ErrNotUnitary,
		}
		return
	}
	h.values = eig.Values(nil)
	h.vectors = &mat.Dense{}
	eig.VectorsTo(h.vectors)
}

// Eigenvalues returns the spectrum in ascending order.
func (h *Hamiltonian) Eigenvalues() ([]float64, error) {
	h.once.Do(h.decompose)
	if h.err != nil {
		return nil, h.err
	}
	out := append([]float64(nil), h.values...)
	sort.Float64s(out)
	return out, nil
}

func (h *Hamiltonian) eigensystem() ([]float64, *mat.Dense, error) {
	h.once.Do(h.decompose)
	return h.values, h.vectors, h.err
}
