package qpath

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// gate is a 2×2 single-unit operator, row major.
type gate [2][2]complex128

func rz(theta float64) gate {
	return gate{
		{cmplx.Exp(complex(0, -theta/2)), 0},
		{0, cmplx.Exp(complex(0, theta/2))},
	}
}

func ry(theta float64) gate {
	c, s := complex(math.Cos(theta/2), 0), complex(math.Sin(theta/2), 0)
	return gate{
		{c, -s},
		{s, c},
	}
}

func (g gate) mul(o gate) gate {
	var out gate
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			out[i][j] = g[i][0]*o[0][j] + g[i][1]*o[1][j]
		}
	}
	return out
}

func (g gate) dagger() gate {
	return gate{
		{cmplx.Conj(g[0][0]), cmplx.Conj(g[1][0])},
		{cmplx.Conj(g[0][1]), cmplx.Conj(g[1][1])},
	}
}

// Matching-parity basis states of the two-unit register carry the logical qubit.
const (
	logicalZero = 0 // |00⟩
	logicalOne  = 3 // |11⟩
)

/*
embed lifts g onto the two-unit register: it acts on span{|00⟩, |11⟩} and is
the identity on span{|01⟩, |10⟩}, so the result is unitary whenever g is.
*/
func (g gate) embed() *mat.CDense {
	u := mat.NewCDense(4, 4, nil)
	u.Set(1, 1, 1)
	u.Set(2, 2, 1)
	idx := [2]int{logicalZero, logicalOne}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			u.Set(idx[i], idx[j], g[i][j])
		}
	}
	return u
}
