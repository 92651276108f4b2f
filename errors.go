package qpath

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/optimize"
)

var (
	ErrInvalidDimension = errors.New("qpath: invalid dimension")
	ErrInvalidParameter = errors.New("qpath: invalid parameter")
	ErrProbabilityRange = errors.New("qpath: probability outside [0, 1]")
	ErrLengthMismatch   = errors.New("qpath: trajectory lengths differ")
	ErrMisaligned       = errors.New("qpath: trajectories are not time-aligned")
	ErrNotUnitary       = errors.New("qpath: propagator is not unitary")
	ErrInvalidDensity   = errors.New("qpath: density matrix is not physical")
	ErrIterationLimit   = errors.New("qpath: iteration limit reached")
	ErrPoolClosed       = errors.New("qpath: pool closed")
)

/*
ConfigurationError reports an input that was rejected before any simulation
work started.
*/
type ConfigurationError struct {
	Field string
	Value any
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%v: %s=%v", e.Err, e.Field, e.Value)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configError(field string, value any, err error) error {
	return &ConfigurationError{Field: field, Value: value, Err: err}
}

/*
NumericalInstabilityError aborts a run. It carries the last state that passed
every check so the caller can inspect how far the run got.
*/
type NumericalInstabilityError struct {
	Step      int
	Detail    string
	Deviation float64
	LastValid State
	Err       error
}

func (e *NumericalInstabilityError) Error() string {
	return fmt.Sprintf(
		"%v at step %d: %s (deviation %.3e)", e.Err, e.Step, e.Detail, e.Deviation,
	)
}

func (e *NumericalInstabilityError) Unwrap() error {
	return e.Err
}

/*
ConvergenceWarning is attached to a search result that stopped on a budget
rather than on the convergence criterion. It is never returned as an error
value; the result it rides on is still the best point found.
*/
type ConvergenceWarning struct {
	Status      optimize.Status
	Iterations  int
	Evaluations int
	Cost        float64
}

func (w *ConvergenceWarning) Error() string {
	return fmt.Sprintf(
		"%v: status %s after %d iterations (%d evaluations), cost %.6g",
		ErrIterationLimit, w.Status, w.Iterations, w.Evaluations, w.Cost,
	)
}

func (w *ConvergenceWarning) Unwrap() error {
	return ErrIterationLimit
}
