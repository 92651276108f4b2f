package qpath

import (
	"errors"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/optimize"
)

func TestErrors(t *testing.T) {
	Convey("Given a configuration error", t, func() {
		err := configError("dim", -1, ErrInvalidDimension)

		Convey("It should name the field and wrap its cause", func() {
			So(err.Error(), ShouldEqual, "qpath: invalid dimension: dim=-1")
			So(errors.Is(err, ErrInvalidDimension), ShouldBeTrue)
			So(errors.Is(fmt.Errorf("loading: %w", err), ErrInvalidDimension), ShouldBeTrue)
		})
	})

	Convey("Given a numerical instability", t, func() {
		var err error = &NumericalInstabilityError{
			Step:      3,
			Detail:    "propagator failed the unitarity check",
			Deviation: 1e-3,
			LastValid: UniformState(2),
			Err:       ErrNotUnitary,
		}

		Convey("It should carry the last valid state", func() {
			var unstable *NumericalInstabilityError
			So(errors.As(err, &unstable), ShouldBeTrue)
			So(unstable.LastValid, ShouldHaveLength, 2)
			So(errors.Is(err, ErrNotUnitary), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "step 3")
		})
	})

	Convey("Given a convergence warning", t, func() {
		w := &ConvergenceWarning{Status: optimize.IterationLimit, Iterations: 10, Cost: 0.2}
		So(errors.Is(w, ErrIterationLimit), ShouldBeTrue)
		So(w.Error(), ShouldContainSubstring, "IterationLimit")
	})
}
