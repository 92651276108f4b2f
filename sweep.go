package qpath

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"
	"github.com/theapemachine/errnie"
)

// SweepGrid lists the values tried per parameter. Empty axes keep the base value.
type SweepGrid struct {
	Steps     []int
	Resonance []float64
	V0        []float64
	Coupling  []float64
	Sigma     []float64
	Precision []int
}

func DefaultSweepGrid() SweepGrid {
	return SweepGrid{
		Steps:     []int{4, 5},
		Resonance: []float64{0.8, 1.0},
		V0:        []float64{0.8, 1.0},
		Coupling:  []float64{0.15, 0.2},
		Sigma:     []float64{0.005, 0.01},
		Precision: []int{5, 7, 10},
	}
}

// Points expands the grid over base in a fixed nesting order.
func (g SweepGrid) Points(base SystemConfig) []SystemConfig {
	orInts := func(v []int, fallback int) []int {
		if len(v) == 0 {
			return []int{fallback}
		}
		return v
	}
	orFloats := func(v []float64, fallback float64) []float64 {
		if len(v) == 0 {
			return []float64{fallback}
		}
		return v
	}

	var out []SystemConfig
	for _, steps := range orInts(g.Steps, base.Steps) {
		for _, k := range orFloats(g.Resonance, base.Resonance) {
			for _, v0 := range orFloats(g.V0, base.V0) {
				for _, coupling := range orFloats(g.Coupling, base.Coupling) {
					for _, sigma := range orFloats(g.Sigma, base.Sigma) {
						for _, precision := range orInts(g.Precision, base.Precision) {
							cfg := base
							cfg.Steps = steps
							cfg.Resonance = k
							cfg.V0 = v0
							cfg.Coupling = coupling
							cfg.Sigma = sigma
							cfg.Precision = precision
							out = append(out, cfg)
						}
					}
				}
			}
		}
	}
	return out
}

/*
SweepResult keeps the best point and the error of every point in grid order.
Failed points record +Inf in History.
*/
type SweepResult struct {
	ID       string
	Best     Summary
	History  []float64
	Failures int
}

/*
ParameterSweep simulates every grid point on q. Each point reuses base.Seed,
so points differ only in the swept parameters.
*/
func ParameterSweep(ctx context.Context, q *Q, grid SweepGrid, base SystemConfig) (SweepResult, error) {
	points := grid.Points(base)
	for _, p := range points {
		if err := p.Validate(); err != nil {
			return SweepResult{}, err
		}
	}

	errnie.Info("ParameterSweep - points %d, dim %d", len(points), base.Dim)

	summaries, errs, err := runAll(ctx, q, points)
	if err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{
		ID:      uuid.NewString(),
		History: make([]float64, len(points)),
	}
	bestErr := math.Inf(1)
	for i := range points {
		if errs[i] != nil {
			result.Failures++
			result.History[i] = math.Inf(1)
			continue
		}
		result.History[i] = summaries[i].Error
		if summaries[i].Error < bestErr {
			bestErr = summaries[i].Error
			result.Best = summaries[i]
		}
	}

	if result.Failures == len(points) {
		return result, errors.Join(errors.New("qpath: every sweep point failed"), errors.Join(errs...))
	}

	Logger().Info("sweep finished", "points", len(points), "best", bestErr, "failures", result.Failures)
	return result, nil
}

// DefaultScalingDims are the register sizes of the scaling study.
var DefaultScalingDims = []int{25, 50, 100, 200}

/*
ScalingStudy simulates base at every dimension in dims, keeping V0, g and k
fixed. The summaries come back in the order of dims.
*/
func ScalingStudy(ctx context.Context, q *Q, dims []int, base SystemConfig) ([]Summary, error) {
	if len(dims) == 0 {
		dims = DefaultScalingDims
	}

	points := make([]SystemConfig, len(dims))
	for i, d := range dims {
		points[i] = base
		points[i].Dim = d
		if err := points[i].Validate(); err != nil {
			return nil, err
		}
	}

	summaries, errs, err := runAll(ctx, q, points)
	if err != nil {
		return nil, err
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	for _, s := range summaries {
		Logger().Info("scaling point", "dim", s.Config.Dim, "error", s.Error, "gap_uniformity", s.GapUniformity)
	}
	return summaries, nil
}

// ScalingPoint is the outcome of a full sweep at one register size.
type ScalingPoint struct {
	Dim           int
	Best          Summary
	Error         float64
	GapUniformity float64
	Failures      int
}

/*
ScalingSweep runs ParameterSweep over grid at every dimension in dims and
reports, per dimension, the best configuration, its error and the gap
uniformity of its Hamiltonian. Points come back in the order of dims.
*/
func ScalingSweep(ctx context.Context, q *Q, dims []int, grid SweepGrid, base SystemConfig) ([]ScalingPoint, error) {
	if len(dims) == 0 {
		dims = DefaultScalingDims
	}

	points := make([]ScalingPoint, 0, len(dims))
	for _, d := range dims {
		cfg := base
		cfg.Dim = d

		result, err := ParameterSweep(ctx, q, grid, cfg)
		if err != nil {
			return points, err
		}

		points = append(points, ScalingPoint{
			Dim:           d,
			Best:          result.Best,
			Error:         result.Best.Error,
			GapUniformity: result.Best.GapUniformity,
			Failures:      result.Failures,
		})
		Logger().Info("scaling sweep point", "dim", d, "error", result.Best.Error, "gap_uniformity", result.Best.GapUniformity)
	}
	return points, nil
}

// NonIncreasing reports whether the errors never grow by more than tol from one summary to the next.
func NonIncreasing(summaries []Summary, tol float64) bool {
	for i := 1; i < len(summaries); i++ {
		if summaries[i].Error > summaries[i-1].Error+tol {
			return false
		}
	}
	return true
}

func runAll(ctx context.Context, q *Q, points []SystemConfig) ([]Summary, []error, error) {
	channels := make([]chan Value, len(points))
	for i, p := range points {
		channels[i] = q.Schedule(uuid.NewString(), func() (any, error) {
			return Simulate(p)
		})
	}

	summaries := make([]Summary, len(points))
	errs := make([]error, len(points))
	for i, ch := range channels {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-q.Done():
			return nil, nil, q.closedError()
		case v := <-ch:
			if v.Error != nil {
				errs[i] = v.Error
				continue
			}
			summaries[i] = v.Value.(Summary)
		}
	}
	return summaries, errs, nil
}
