package qpath

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/theapemachine/errnie"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// InitStrategy picks the starting point of a local search.
type InitStrategy int

const (
	InitFixedSeed InitStrategy = iota
	InitUniformRandom
	InitPi
	InitHalfPi
)

func (s InitStrategy) String() string {
	switch s {
	case InitFixedSeed:
		return "fixed_seed"
	case InitUniformRandom:
		return "uniform_random"
	case InitPi:
		return "pi"
	case InitHalfPi:
		return "half_pi"
	default:
		return "unknown"
	}
}

func ParseInitStrategy(name string) (InitStrategy, error) {
	for _, s := range []InitStrategy{InitFixedSeed, InitUniformRandom, InitPi, InitHalfPi} {
		if s.String() == name {
			return s, nil
		}
	}
	return InitFixedSeed, configError("init_strategy", name, ErrInvalidParameter)
}

// Plan cycles strategies into a list of n starts.
func Plan(n int, strategies ...InitStrategy) []InitStrategy {
	if len(strategies) == 0 {
		strategies = []InitStrategy{InitUniformRandom}
	}
	out := make([]InitStrategy, n)
	for i := range out {
		out[i] = strategies[i%len(strategies)]
	}
	return out
}

/*
Objective is a black-box cost over Dim real parameters. Cost is 1 − fidelity,
so a cost of zero is a perfect match. Seed is the start used by InitFixedSeed.
*/
type Objective struct {
	Dim  int
	Cost func(x []float64) float64
	Seed []float64
}

// BracketObjective searches all six bracket parameters.
func BracketObjective(model *BracketModel, initial, target State) Objective {
	return Objective{
		Dim: 6,
		Cost: func(x []float64) float64 {
			p, err := BracketParamsFrom(x)
			if err != nil {
				return math.Inf(1)
			}
			out, err := model.Evaluate(p, initial, target)
			if err != nil {
				return math.Inf(1)
			}
			return 1 - out.Fidelity
		},
		Seed: ReferenceParams().Vector(),
	}
}

// CoreObjective holds the brackets fixed at (α, β, γ) and searches φ, r_z, r_y.
func CoreObjective(model *BracketModel, initial, target State, brackets [3]float64) Objective {
	ref := ReferenceParams()
	return Objective{
		Dim: 3,
		Cost: func(x []float64) float64 {
			p := BracketParams{
				Alpha: brackets[0], Beta: brackets[1], Gamma: brackets[2],
				Phi: x[0], Rz: x[1], Ry: x[2],
			}
			out, err := model.Evaluate(p, initial, target)
			if err != nil {
				return math.Inf(1)
			}
			return 1 - out.Fidelity
		},
		Seed: []float64{ref.Phi, ref.Rz, ref.Ry},
	}
}

// SearchConfig is the budget and tolerances of the bracket search.
type SearchConfig struct {
	Starts             int
	Iterations         int
	Evaluations        int // zero means unbounded
	Tolerance          float64
	ConvergeAbsolute   float64
	ConvergeIterations int
	SimplexSize        float64
	Seed               uint64
}

func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Starts:             8,
		Iterations:         2000,
		Tolerance:          1e-4,
		ConvergeAbsolute:   1e-10,
		ConvergeIterations: 50,
		SimplexSize:        0.5,
		Seed:               7,
	}
}

func (c SearchConfig) Validate() error {
	switch {
	case c.Starts < 1:
		return configError("search.starts", c.Starts, ErrInvalidParameter)
	case c.Iterations < 1:
		return configError("search.iterations", c.Iterations, ErrInvalidParameter)
	case c.Evaluations < 0:
		return configError("search.evaluations", c.Evaluations, ErrInvalidParameter)
	case c.Tolerance < 0 || math.IsNaN(c.Tolerance):
		return configError("search.tolerance", c.Tolerance, ErrInvalidParameter)
	case c.ConvergeAbsolute < 0 || math.IsNaN(c.ConvergeAbsolute):
		return configError("search.converge_absolute", c.ConvergeAbsolute, ErrInvalidParameter)
	case c.ConvergeIterations < 1:
		return configError("search.converge_iterations", c.ConvergeIterations, ErrInvalidParameter)
	case c.SimplexSize <= 0 || math.IsNaN(c.SimplexSize):
		return configError("search.simplex_size", c.SimplexSize, ErrInvalidParameter)
	}
	return nil
}

// SearchResult is the outcome of one local search.
type SearchResult struct {
	ID          string
	Strategy    InitStrategy
	Start       []float64
	X           []float64
	Cost        float64
	Fidelity    float64
	Status      optimize.Status
	Converged   bool
	Iterations  int
	Evaluations int
	Warning     *ConvergenceWarning
}

/*
SearchReport merges a multi-start run: the best result, every distinct result
whose cost is within Tolerance of the best, and all individual runs.
*/
type SearchReport struct {
	ID          string
	Best        SearchResult
	NearOptimal []SearchResult
	Runs        []SearchResult
	Converged   bool
	Failures    int
	Tolerance   float64
}

// Optimizer runs Nelder-Mead searches over an Objective.
type Optimizer struct {
	config SearchConfig
}

func NewOptimizer(cfg SearchConfig) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Optimizer{config: cfg}, nil
}

func (o *Optimizer) Config() SearchConfig {
	return o.config
}

// Start draws the initial point for strategy from rng.
func (o *Optimizer) Start(obj Objective, strategy InitStrategy, rng *rand.Rand) ([]float64, error) {
	if strategy == InitFixedSeed {
		if len(obj.Seed) != obj.Dim {
			return nil, configError("seed", len(obj.Seed), ErrInvalidDimension)
		}
		return append([]float64(nil), obj.Seed...), nil
	}
	if rng == nil {
		return nil, configError("rng", nil, ErrInvalidParameter)
	}

	x := make([]float64, obj.Dim)
	for i := range x {
		switch strategy {
		case InitUniformRandom:
			x[i] = 2 * math.Pi * rng.Float64()
		case InitPi:
			x[i] = float64(rng.IntN(3)-1)*math.Pi + jitter(rng)
		case InitHalfPi:
			x[i] = float64(rng.IntN(5)-2)*math.Pi/2 + jitter(rng)
		default:
			return nil, configError("init_strategy", int(strategy), ErrInvalidParameter)
		}
	}
	return x, nil
}

func jitter(rng *rand.Rand) float64 {
	return 0.2 * (rng.Float64() - 0.5)
}

/*
Search minimizes obj from the start chosen by strategy. iterations caps the
major iterations; zero uses the configured budget. Stopping on a budget is
not an error: the best point found is returned with Warning set.
*/
func (o *Optimizer) Search(obj Objective, strategy InitStrategy, iterations int, rng *rand.Rand) (SearchResult, error) {
	if obj.Dim < 1 || obj.Cost == nil {
		return SearchResult{}, configError("objective", obj.Dim, ErrInvalidDimension)
	}
	if iterations <= 0 {
		iterations = o.config.Iterations
	}

	start, err := o.Start(obj, strategy, rng)
	if err != nil {
		return SearchResult{}, err
	}

	best := math.Inf(1)
	bestX := append([]float64(nil), start...)
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			cost := obj.Cost(x)
			if cost < best {
				best = cost
				copy(bestX, x)
			}
			return cost
		},
	}

	settings := &optimize.Settings{
		MajorIterations: iterations,
		FuncEvaluations: o.config.Evaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   o.config.ConvergeAbsolute,
			Iterations: o.config.ConvergeIterations,
		},
	}

	result, err := optimize.Minimize(problem, start, settings, &optimize.NelderMead{SimplexSize: o.config.SimplexSize})
	if result == nil {
		return SearchResult{}, err
	}
	if err != nil && !result.Status.Early() {
		return SearchResult{}, err
	}

	x, cost := result.X, result.F
	if best < cost {
		x, cost = bestX, best
	}

	out := SearchResult{
		ID:          uuid.NewString(),
		Strategy:    strategy,
		Start:       start,
		X:           append([]float64(nil), x...),
		Cost:        cost,
		Fidelity:    1 - cost,
		Status:      result.Status,
		Converged:   !result.Status.Early(),
		Iterations:  result.MajorIterations,
		Evaluations: result.FuncEvaluations,
	}

	if !out.Converged {
		out.Warning = &ConvergenceWarning{
			Status:      result.Status,
			Iterations:  result.MajorIterations,
			Evaluations: result.FuncEvaluations,
			Cost:        cost,
		}
		Logger().Warn("search stopped before converging", "status", result.Status, "cost", cost)
	}

	return out, nil
}

/*
MultiStart runs one independent search per entry of plan on q. An empty plan
cycles all four strategies over the configured number of starts. Start i draws
from its own stream seeded with Seed+i, so a report is reproducible whatever
the scheduling order. Runs that fail are counted; the report fails only when
every run failed or q shuts down.
*/
func (o *Optimizer) MultiStart(ctx context.Context, q *Q, obj Objective, plan []InitStrategy) (SearchReport, error) {
	if len(plan) == 0 {
		plan = Plan(o.config.Starts, InitFixedSeed, InitUniformRandom, InitPi, InitHalfPi)
	}

	errnie.Info("MultiStart - starts %d, dim %d", len(plan), obj.Dim)

	channels := make([]chan Value, len(plan))
	for i, strategy := range plan {
		seed := o.config.Seed + uint64(i)
		channels[i] = q.Schedule(uuid.NewString(), func() (any, error) {
			return o.Search(obj, strategy, 0, newStream(seed))
		})
	}

	report := SearchReport{
		ID:        uuid.NewString(),
		Tolerance: o.config.Tolerance,
	}

	var firstErr error
	for _, ch := range channels {
		select {
		case <-ctx.Done():
			return SearchReport{}, ctx.Err()
		case <-q.Done():
			return SearchReport{}, q.closedError()
		case v := <-ch:
			if v.Error != nil {
				report.Failures++
				if firstErr == nil {
					firstErr = v.Error
				}
				continue
			}
			report.Runs = append(report.Runs, v.Value.(SearchResult))
		}
	}

	if len(report.Runs) == 0 {
		return SearchReport{}, errors.Join(errors.New("qpath: every search failed"), firstErr)
	}

	report.Best, report.NearOptimal = nearOptimal(report.Runs, o.config.Tolerance)
	report.Converged = report.Best.Converged

	if debugEnabled() {
		Logger().Debug("search report", "dump", spew.Sdump(report.Best))
	}

	return report, nil
}

// clusterRadius is the distance below which two optima count as the same point.
const clusterRadius = 1e-3

/*
nearOptimal returns the lowest-cost run and the distinct runs within tol of it,
sorted by cost. Angles are compared modulo 2π.
*/
func nearOptimal(runs []SearchResult, tol float64) (SearchResult, []SearchResult) {
	sorted := append([]SearchResult(nil), runs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Cost < sorted[j].Cost
	})

	best := sorted[0]
	near := make([]SearchResult, 0, len(sorted))
	for _, r := range sorted {
		if r.Cost > best.Cost+tol {
			break
		}
		duplicate := false
		for _, n := range near {
			if floats.Distance(wrapAngles(r.X), wrapAngles(n.X), 2) < clusterRadius {
				duplicate = true
				break
			}
		}
		if !duplicate {
			near = append(near, r)
		}
	}
	return best, near
}

func wrapAngles(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Remainder(v, 2*math.Pi)
	}
	return out
}
