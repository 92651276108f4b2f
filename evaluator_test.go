package qpath

import (
	"errors"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestFidelity(t *testing.T) {
	Convey("Given states on the same register", t, func() {
		a := UniformState(6)
		b := BasisState(6, 2)

		Convey("A state should have unit fidelity with itself", func() {
			f, err := Fidelity(a, a)
			So(err, ShouldBeNil)
			So(f, ShouldAlmostEqual, 1.0, 1e-12)
		})

		Convey("Fidelity should be symmetric and ignore global phase", func() {
			ab, err := Fidelity(a, b)
			So(err, ShouldBeNil)
			ba, err := Fidelity(b.WithPhase(1.3), a)
			So(err, ShouldBeNil)
			So(ab, ShouldAlmostEqual, ba, 1e-12)
			So(ab, ShouldAlmostEqual, 1.0/6, 1e-12)
		})

		Convey("Different dimensions should be rejected", func() {
			_, err := Fidelity(a, BasisState(3, 0))
			So(errors.Is(err, ErrInvalidDimension), ShouldBeTrue)
		})
	})

	Convey("Given several realizations", t, func() {
		target := BasisState(2, 0)
		realizations := []State{
			{1, 0},
			{complex(math.Sqrt(0.5), 0), complex(math.Sqrt(0.5), 0)},
		}

		Convey("The estimate should report mean and spread", func() {
			est, err := FidelityEstimate(realizations, target)
			So(err, ShouldBeNil)
			So(est.Trials, ShouldEqual, 2)
			So(est.Mean, ShouldAlmostEqual, 0.75, 1e-12)
			So(est.Uncertainty, ShouldAlmostEqual, math.Sqrt(0.125), 1e-12)
		})

		Convey("A single run should have no uncertainty", func() {
			est, err := FidelityEstimate(realizations[:1], target)
			So(err, ShouldBeNil)
			So(est.Uncertainty, ShouldEqual, 0.0)
		})
	})
}

func TestTrajectoryError(t *testing.T) {
	Convey("Given a forward trajectory", t, func() {
		engine := NewEngine()
		h := testHamiltonian(8, 4)
		u, err := Propagate(h, ResonanceStep(1, 8))
		So(err, ShouldBeNil)

		fwd, err := engine.RunPropagator(UniformState(8), u, 3, Forward, nil)
		So(err, ShouldBeNil)

		Convey("Its exact reversal should have no error", func() {
			bwd, err := engine.RunPropagator(fwd.Final().State, u, 3, Backward, nil)
			So(err, ShouldBeNil)

			report, err := TrajectoryError(fwd, bwd)
			So(err, ShouldBeNil)
			So(report.Steps, ShouldHaveLength, 4)
			So(report.Total, ShouldBeLessThan, 1e-18)
		})

		Convey("A phase offset should show up only in the phase term", func() {
			bwd, err := engine.RunPropagator(fwd.Final().State.WithPhase(0.1), u, 3, Backward, nil)
			So(err, ShouldBeNil)

			report, err := TrajectoryError(fwd, bwd)
			So(err, ShouldBeNil)
			So(report.Population, ShouldBeLessThan, 1e-18)
			So(report.Phase, ShouldAlmostEqual, 4*0.01, 1e-10)
		})

		Convey("Different lengths should be rejected", func() {
			short, err := engine.RunPropagator(UniformState(8), u, 2, Backward, nil)
			So(err, ShouldBeNil)

			_, err = TrajectoryError(fwd, short)
			var cfgErr *ConfigurationError
			So(errors.As(err, &cfgErr), ShouldBeTrue)
			So(errors.Is(err, ErrLengthMismatch), ShouldBeTrue)
		})

		Convey("Different timesteps should be rejected", func() {
			other, err := Propagate(h, 2*ResonanceStep(1, 8))
			So(err, ShouldBeNil)
			bwd, err := engine.RunPropagator(UniformState(8), other, 3, Backward, nil)
			So(err, ShouldBeNil)

			_, err = TrajectoryError(fwd, bwd)
			So(errors.Is(err, ErrMisaligned), ShouldBeTrue)
		})
	})

	Convey("Given the two-level scenario", t, func() {
		cfg := SystemConfig{
			Dim:       2,
			V0:        1,
			Coupling:  0.5,
			Resonance: 1,
			Steps:     1,
			Precision: 0,
			Seed:      1,
		}

		Convey("The reconstruction error should vanish", func() {
			summary, err := Simulate(cfg)
			So(err, ShouldBeNil)
			So(summary.Error, ShouldBeLessThan, 1e-6)
			So(summary.Fidelity, ShouldAlmostEqual, 1.0, 1e-9)
		})
	})
}

func TestGapUniformity(t *testing.T) {
	Convey("Given an evenly spaced spectrum", t, func() {
		So(Gaps([]float64{0, 1, 2, 3}), ShouldResemble, []float64{1, 1, 1})
		So(Gaps([]float64{1}), ShouldBeNil)
	})

	Convey("Given a Hamiltonian", t, func() {
		h := testHamiltonian(30, 8)
		gap, err := GapUniformity(h)
		So(err, ShouldBeNil)
		So(gap, ShouldBeGreaterThan, 0)
		So(math.IsNaN(gap), ShouldBeFalse)
	})
}
