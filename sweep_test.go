package qpath

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSimulate(t *testing.T) {
	Convey("Given a small noiseless system", t, func() {
		cfg := DefaultSystemConfig()
		cfg.Dim = 16

		Convey("A full-state reversal without realignment should be exact", func() {
			cfg.Precision = 0
			summary, err := Simulate(cfg)
			So(err, ShouldBeNil)
			So(summary.ID, ShouldNotBeEmpty)
			So(summary.Error, ShouldBeLessThan, 1e-12)
			So(summary.Fidelity, ShouldAlmostEqual, 1.0, 1e-10)
			So(summary.Forward.Len(), ShouldEqual, cfg.Steps+1)
			So(summary.Backward.Len(), ShouldEqual, cfg.Steps+1)
		})

		Convey("Realignment should add only phase error", func() {
			summary, err := Simulate(cfg)
			So(err, ShouldBeNil)
			So(summary.PopulationError, ShouldBeLessThan, 1e-12)
			So(summary.PhaseError, ShouldBeGreaterThan, 0)
		})

		Convey("Seeding from populations should lose the phases", func() {
			cfg.Precision = 0
			cfg.SeedMode = SeedPopulations
			summary, err := Simulate(cfg)
			So(err, ShouldBeNil)
			So(summary.Error, ShouldBeGreaterThan, 0)
		})

		Convey("Depolarizing noise should lower the reconstruction fidelity", func() {
			cfg.Precision = 0
			cfg.Noise = NoiseConfig{Model: NoiseDepolarizing, P: 0.05}
			summary, err := Simulate(cfg)
			So(err, ShouldBeNil)
			So(summary.Fidelity, ShouldBeLessThan, 1)
		})

		Convey("Repeat should report a spread over seeds", func() {
			summary, err := Repeat(cfg, 3)
			So(err, ShouldBeNil)
			So(summary.Fidelity, ShouldBeGreaterThan, 0.9)
			So(summary.FidelityUncertainty, ShouldBeGreaterThanOrEqualTo, 0)
		})

		Convey("Odd registers should refuse amplitude damping", func() {
			cfg.Dim = 15
			cfg.Noise = NoiseConfig{Model: NoiseAmplitudeDamping, Gamma: 0.1}
			_, err := Simulate(cfg)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestParameterSweep(t *testing.T) {
	Convey("Given a pool and a small grid", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		q := NewQ(ctx, NewConfig())
		defer q.Close()

		base := DefaultSystemConfig()
		base.Dim = 12
		grid := SweepGrid{
			Steps:     []int{2, 3},
			Precision: []int{0, 5},
		}

		Convey("It should expand every combination", func() {
			points := grid.Points(base)
			So(points, ShouldHaveLength, 4)
			So(points[0].V0, ShouldEqual, base.V0)
		})

		Convey("It should keep the lowest-error point", func() {
			result, err := ParameterSweep(ctx, q, grid, base)
			So(err, ShouldBeNil)
			So(result.History, ShouldHaveLength, 4)
			So(result.Failures, ShouldEqual, 0)
			So(result.Best.Config.Precision, ShouldEqual, 0)
			for _, e := range result.History {
				So(result.Best.Error, ShouldBeLessThanOrEqualTo, e)
			}
		})

		Convey("The default grid should cover every axis", func() {
			So(DefaultSweepGrid().Points(base), ShouldHaveLength, 2*2*2*2*2*3)
		})
	})
}

func TestScalingStudy(t *testing.T) {
	Convey("Given the reference system seeded from populations", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		q := NewQ(ctx, NewConfig())
		defer q.Close()

		base := DefaultSystemConfig()
		base.SeedMode = SeedPopulations
		base.Precision = 0

		Convey("The error should not grow with D", func() {
			summaries, err := ScalingStudy(ctx, q, nil, base)
			So(err, ShouldBeNil)
			So(summaries, ShouldHaveLength, len(DefaultScalingDims))

			for i, s := range summaries {
				So(s.Config.Dim, ShouldEqual, DefaultScalingDims[i])
				So(math.IsNaN(s.Error), ShouldBeFalse)
			}
			So(NonIncreasing(summaries, 1e-9), ShouldBeTrue)
			So(summaries[len(summaries)-1].Error, ShouldBeLessThan, summaries[0].Error)
		})
	})

	Convey("Given an error sequence", t, func() {
		rising := []Summary{{Error: 0.1}, {Error: 0.2}}
		So(NonIncreasing(rising, 1e-3), ShouldBeFalse)
		So(NonIncreasing(rising, 0.5), ShouldBeTrue)
	})
}

func TestScalingSweep(t *testing.T) {
	Convey("Given a pool and a small grid", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		q := NewQ(ctx, NewConfig())
		defer q.Close()

		base := DefaultSystemConfig()
		grid := SweepGrid{
			Steps:     []int{2, 3},
			Precision: []int{0, 5},
		}

		Convey("It should sweep every dimension and keep the best point", func() {
			points, err := ScalingSweep(ctx, q, []int{8, 12}, grid, base)
			So(err, ShouldBeNil)
			So(points, ShouldHaveLength, 2)

			for i, d := range []int{8, 12} {
				p := points[i]
				So(p.Dim, ShouldEqual, d)
				So(p.Best.Config.Dim, ShouldEqual, d)
				So(p.Best.Config.Precision, ShouldEqual, 0)
				So(p.Error, ShouldEqual, p.Best.Error)
				So(p.GapUniformity, ShouldEqual, p.Best.GapUniformity)
				So(p.GapUniformity, ShouldBeGreaterThan, 0)
				So(p.Failures, ShouldEqual, 0)
			}
		})
	})

	Convey("Given a closed pool", t, func() {
		q := NewQ(context.Background(), NewConfig())
		q.Close()

		_, err := ScalingStudy(context.Background(), q, []int{4}, DefaultSystemConfig())
		So(errors.Is(err, ErrPoolClosed), ShouldBeTrue)
	})
}

func TestNoiseScalingModes(t *testing.T) {
	Convey("Given the reference D=200 system seeded from populations", t, func() {
		cfg := DefaultSystemConfig()
		cfg.SeedMode = SeedPopulations
		cfg.Precision = 0

		Convey("Inverse scaling should pin the error near the clean value", func() {
			cfg.Scaling = ScaleInverse
			summary, err := Simulate(cfg)
			So(err, ShouldBeNil)
			So(summary.Error, ShouldAlmostEqual, 5.940e-4, 1e-6)
		})

		Convey("Fixed scaling should pin the error within the disorder spread", func() {
			cfg.Scaling = ScaleFixed
			summary, err := Simulate(cfg)
			So(err, ShouldBeNil)
			So(summary.Error, ShouldAlmostEqual, 5.96e-4, 3e-5)
		})

		Convey("A full-state seed should reverse exactly in either mode", func() {
			cfg.SeedMode = SeedFullState
			for _, mode := range []NoiseScaling{ScaleInverse, ScaleFixed} {
				cfg.Scaling = mode
				summary, err := Simulate(cfg)
				So(err, ShouldBeNil)
				So(summary.Error, ShouldBeLessThan, 1e-12)
			}
		})
	})
}
