package qpath

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/optimize"
)

func quadratic(dim int) Objective {
	return Objective{
		Dim: dim,
		Cost: func(x []float64) float64 {
			var sum float64
			for _, v := range x {
				d := v - 1
				sum += d * d
			}
			return sum
		},
		Seed: make([]float64, dim),
	}
}

func TestOptimizerStart(t *testing.T) {
	Convey("Given an optimizer", t, func() {
		opt, err := NewOptimizer(DefaultSearchConfig())
		So(err, ShouldBeNil)
		obj := quadratic(6)
		rng := newStream(1)

		Convey("The fixed seed start should copy the seed", func() {
			x, err := opt.Start(obj, InitFixedSeed, nil)
			So(err, ShouldBeNil)
			So(x, ShouldResemble, obj.Seed)
		})

		Convey("Uniform starts should lie in [0, 2π)", func() {
			x, err := opt.Start(obj, InitUniformRandom, rng)
			So(err, ShouldBeNil)
			for _, v := range x {
				So(v, ShouldBeBetweenOrEqual, 0, 2*math.Pi)
			}
		})

		Convey("π-based starts should sit near multiples of π", func() {
			x, err := opt.Start(obj, InitPi, rng)
			So(err, ShouldBeNil)
			for _, v := range x {
				So(math.Abs(v-math.Round(v/math.Pi)*math.Pi), ShouldBeLessThanOrEqualTo, 0.1)
			}
		})

		Convey("π/2-based starts should sit near multiples of π/2", func() {
			x, err := opt.Start(obj, InitHalfPi, rng)
			So(err, ShouldBeNil)
			for _, v := range x {
				So(math.Abs(v-math.Round(v/(math.Pi/2))*math.Pi/2), ShouldBeLessThanOrEqualTo, 0.1)
			}
		})

		Convey("Random starts need a stream", func() {
			_, err := opt.Start(obj, InitUniformRandom, nil)
			So(errors.Is(err, ErrInvalidParameter), ShouldBeTrue)
		})
	})

	Convey("Given strategy names", t, func() {
		for _, s := range []InitStrategy{InitFixedSeed, InitUniformRandom, InitPi, InitHalfPi} {
			parsed, err := ParseInitStrategy(s.String())
			So(err, ShouldBeNil)
			So(parsed, ShouldEqual, s)
		}
		So(Plan(5, InitPi, InitHalfPi), ShouldResemble, []InitStrategy{InitPi, InitHalfPi, InitPi, InitHalfPi, InitPi})
	})

	Convey("Given an invalid search configuration", t, func() {
		cfg := DefaultSearchConfig()
		cfg.SimplexSize = 0
		_, err := NewOptimizer(cfg)

		var cfgErr *ConfigurationError
		So(errors.As(err, &cfgErr), ShouldBeTrue)
		So(cfgErr.Field, ShouldEqual, "search.simplex_size")
	})
}

func TestOptimizerSearch(t *testing.T) {
	Convey("Given an optimizer and a smooth objective", t, func() {
		opt, err := NewOptimizer(DefaultSearchConfig())
		So(err, ShouldBeNil)

		Convey("It should converge to the minimum", func() {
			res, err := opt.Search(quadratic(3), InitFixedSeed, 0, nil)
			So(err, ShouldBeNil)
			So(res.Converged, ShouldBeTrue)
			So(res.Warning, ShouldBeNil)
			So(res.Cost, ShouldBeLessThan, 1e-6)
			for _, v := range res.X {
				So(v, ShouldAlmostEqual, 1.0, 1e-2)
			}
		})

		Convey("A tiny budget should return the best point with a warning", func() {
			res, err := opt.Search(quadratic(3), InitUniformRandom, 1, newStream(2))
			So(err, ShouldBeNil)
			So(res.Converged, ShouldBeFalse)
			So(res.Status, ShouldEqual, optimize.IterationLimit)
			So(res.Warning, ShouldNotBeNil)
			So(errors.Is(res.Warning, ErrIterationLimit), ShouldBeTrue)
			So(res.Cost, ShouldBeLessThanOrEqualTo, quadratic(3).Cost(res.Start))
		})
	})

	Convey("Given the core search with brackets fixed at (0, π, 0)", t, func() {
		model := NewBracketModel(DefaultEncoding())
		obj := CoreObjective(model, BasisState(BracketDim, logicalZero), BellTarget(), [3]float64{0, math.Pi, 0})

		opt, err := NewOptimizer(DefaultSearchConfig())
		So(err, ShouldBeNil)

		Convey("It should find a high-fidelity core", func() {
			res, err := opt.Search(obj, InitFixedSeed, 0, nil)
			So(err, ShouldBeNil)
			So(res.Fidelity, ShouldBeGreaterThan, 0.999)
		})
	})
}

func TestMultiStart(t *testing.T) {
	Convey("Given a pool and the bracket objective", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		cfg := NewConfig()
		cfg.Workers = 3
		q := NewQ(ctx, cfg)
		defer q.Close()

		search := DefaultSearchConfig()
		search.Iterations = 400
		opt, err := NewOptimizer(search)
		So(err, ShouldBeNil)

		model := NewBracketModel(DefaultEncoding())
		obj := BracketObjective(model, BasisState(BracketDim, logicalZero), BellTarget())
		plan := Plan(6, InitFixedSeed, InitUniformRandom, InitPi, InitHalfPi)

		Convey("It should report the best run and its near-optimal set", func() {
			report, err := opt.MultiStart(ctx, q, obj, plan)
			So(err, ShouldBeNil)
			So(report.ID, ShouldNotBeEmpty)
			So(report.Runs, ShouldHaveLength, 6)
			So(report.Failures, ShouldEqual, 0)
			So(report.Best.Fidelity, ShouldBeGreaterThan, 0.9999)
			So(report.NearOptimal, ShouldNotBeEmpty)
			So(report.NearOptimal[0].Cost, ShouldEqual, report.Best.Cost)

			for _, run := range report.Runs {
				So(run.Cost, ShouldBeGreaterThanOrEqualTo, report.Best.Cost)
			}
			for _, near := range report.NearOptimal {
				So(near.Cost, ShouldBeLessThanOrEqualTo, report.Best.Cost+report.Tolerance)
			}
		})

		Convey("It should be reproducible", func() {
			a, err := opt.MultiStart(ctx, q, obj, plan[:2])
			So(err, ShouldBeNil)
			b, err := opt.MultiStart(ctx, q, obj, plan[:2])
			So(err, ShouldBeNil)
			So(a.Best.X, ShouldResemble, b.Best.X)
		})

		Convey("An empty plan should use the configured number of starts", func() {
			search.Starts = 3
			small, err := NewOptimizer(search)
			So(err, ShouldBeNil)

			report, err := small.MultiStart(ctx, q, obj, nil)
			So(err, ShouldBeNil)
			So(report.Runs, ShouldHaveLength, 3)
			So(report.Runs[0].Strategy, ShouldEqual, InitFixedSeed)
			So(report.Runs[2].Strategy, ShouldEqual, InitPi)
		})
	})

	Convey("Given a pool that has been closed", t, func() {
		q := NewQ(context.Background(), NewConfig())
		q.Close()

		opt, err := NewOptimizer(DefaultSearchConfig())
		So(err, ShouldBeNil)

		Convey("MultiStart should fail instead of waiting", func() {
			done := make(chan error, 1)
			go func() {
				_, err := opt.MultiStart(context.Background(), q, quadratic(2), Plan(8))
				done <- err
			}()

			select {
			case err := <-done:
				So(errors.Is(err, ErrPoolClosed), ShouldBeTrue)
			case <-time.After(testTimeout):
				t.Fatal("MultiStart blocked on a closed pool")
			}
		})
	})
}

func TestNearOptimal(t *testing.T) {
	Convey("Given runs that land on the same optimum modulo 2π", t, func() {
		runs := []SearchResult{
			{X: []float64{1, 2}, Cost: 0.001},
			{X: []float64{1 + 2*math.Pi, 2}, Cost: 0.00101},
			{X: []float64{-1, 0.5}, Cost: 0.00105},
			{X: []float64{3, 3}, Cost: 0.5},
		}

		best, near := nearOptimal(runs, 1e-4)
		So(best.Cost, ShouldEqual, 0.001)
		So(near, ShouldHaveLength, 2)
		So(near[1].X, ShouldResemble, []float64{-1, 0.5})
	})
}
