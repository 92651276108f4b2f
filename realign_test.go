package qpath

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPhaseRealigner(t *testing.T) {
	Convey("Given a backward trajectory", t, func() {
		h := testHamiltonian(10, 9)
		u, err := Propagate(h, ResonanceStep(1, 10))
		So(err, ShouldBeNil)

		bwd, err := NewEngine().RunPropagator(UniformState(10), u, 5, Backward, nil)
		So(err, ShouldBeNil)

		realigner, err := NewPhaseRealigner(5)
		So(err, ShouldBeNil)
		corrected := realigner.Realign(bwd)

		Convey("Populations should be unchanged", func() {
			for k, step := range corrected.Steps {
				for i, p := range step.Populations {
					So(math.Abs(p-bwd.Steps[k].Populations[i]), ShouldBeLessThan, 1e-12)
				}
				for i, p := range step.State.Populations() {
					So(math.Abs(p-bwd.Steps[k].Populations[i]), ShouldBeLessThan, 1e-12)
				}
			}
		})

		Convey("Step k should carry the phase 2πk/M", func() {
			for k, step := range corrected.Steps {
				want := 2 * math.Pi * float64(k) / 5
				So(step.Phase, ShouldAlmostEqual, want, 1e-15)

				ratio := step.State[0] / bwd.Steps[k].State[0]
				So(cmplx.Abs(ratio-cmplx.Exp(complex(0, want))), ShouldBeLessThan, 1e-12)
			}
		})

		Convey("The input trajectory should be left alone", func() {
			So(bwd.Steps[1].Phase, ShouldEqual, 0.0)
		})
	})

	Convey("Given precision zero", t, func() {
		realigner, err := NewPhaseRealigner(0)
		So(err, ShouldBeNil)
		So(realigner.Angle(3), ShouldEqual, 0.0)
	})

	Convey("Given a negative precision", t, func() {
		_, err := NewPhaseRealigner(-1)
		So(errors.Is(err, ErrInvalidParameter), ShouldBeTrue)
	})
}
