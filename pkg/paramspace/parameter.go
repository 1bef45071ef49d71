// Package paramspace implements the ParameterSpace and ContextProvider:
// Cartesian-product enumeration of named parameters, merged with
// constants and evaluables, filtered by where-predicates.
//
// Parameters are a small tagged-variant family (listed/uniform/graded),
// dispatched through per-tag constructors rather than a class hierarchy,
// mirroring the enum-dispatched config variants used elsewhere in the
// domain stack (pkg/scope's prefix_list/union/date_partitions dispatch).
package paramspace

import (
	"fmt"
	"math"

	"github.com/TheBB/Grevling/pkg/gerr"
)

// Kind tags which Parameter variant produced a given set of values.
type Kind int

const (
	Listed Kind = iota
	Uniform
	Graded
)

// Parameter is a named finite ordered sequence of scalar values.
type Parameter struct {
	Name   string
	Kind   Kind
	Values []any
}

// NewListed constructs a parameter from explicit values.
func NewListed(name string, values []any) (Parameter, error) {
	if len(values) == 0 {
		return Parameter{}, gerr.Wrap("paramspace.NewListed", name, fmt.Errorf("parameter must have at least one value"))
	}
	out := make([]any, len(values))
	copy(out, values)
	return Parameter{Name: name, Kind: Listed, Values: out}, nil
}

// NewUniform constructs a parameter of n equally spaced floats in [a, b].
func NewUniform(name string, n int, a, b float64) (Parameter, error) {
	if n < 1 {
		return Parameter{}, gerr.Wrap("paramspace.NewUniform", name, fmt.Errorf("n must be >= 1"))
	}
	values := make([]any, n)
	if n == 1 {
		values[0] = a
		return Parameter{Name: name, Kind: Uniform, Values: values}, nil
	}
	step := (b - a) / float64(n-1)
	for i := 0; i < n; i++ {
		values[i] = a + float64(i)*step
	}
	return Parameter{Name: name, Kind: Uniform, Values: values}, nil
}

// NewGraded constructs a parameter of n geometrically graded floats in
// [a, b] with ratio r. The first step is
//
//	step0 = (b - a) * (1 - r) / (1 - r^(n-1))
//
// so that n-1 successive steps, each r times the last, sum to (b - a).
// r == 1 degenerates to the uniform case.
func NewGraded(name string, n int, a, b, r float64) (Parameter, error) {
	if n < 1 {
		return Parameter{}, gerr.Wrap("paramspace.NewGraded", name, fmt.Errorf("n must be >= 1"))
	}
	values := make([]any, n)
	if n == 1 {
		values[0] = a
		return Parameter{Name: name, Kind: Graded, Values: values}, nil
	}
	if r == 1 {
		return NewUniform(name, n, a, b)
	}

	step0 := (b - a) * (1 - r) / (1 - math.Pow(r, float64(n-1)))
	values[0] = a
	cur := a
	step := step0
	for i := 1; i < n; i++ {
		cur += step
		values[i] = cur
		step *= r
	}
	return Parameter{Name: name, Kind: Graded, Values: values}, nil
}

// Len returns the number of values this parameter ranges over.
func (p Parameter) Len() int {
	return len(p.Values)
}
