package expr

import (
	"fmt"
	"math"
)

// Func is a named entry in the mini-language's function library.
type Func func(args []any) (any, error)

// defaultFuncs mirrors the fixed function library the context provider
// and template engine both expose: log, log2, log10, sqrt, abs, ord, sin,
// cos, legendre. It is deliberately small and closed — the mini-language
// has no way to define new functions, only to call these.
func defaultFuncs() map[string]Func {
	return map[string]Func{
		"log":   unaryFloat(math.Log),
		"log2":  unaryFloat(math.Log2),
		"log10": unaryFloat(math.Log10),
		"sqrt":  unaryFloat(math.Sqrt),
		"sin":   unaryFloat(math.Sin),
		"cos":   unaryFloat(math.Cos),
		"abs":   absFunc,
		"ord":   ordFunc,
		"legendre": legendreFunc,
	}
}

func unaryFloat(fn func(float64) float64) Func {
	return func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		f, err := toFloat(args[0])
		if err != nil {
			return nil, err
		}
		return fn(f), nil
	}
}

func absFunc(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("abs: expected 1 argument, got %d", len(args))
	}
	switch v := args[0].(type) {
	case int64:
		if v < 0 {
			return -v, nil
		}
		return v, nil
	default:
		f, err := toFloat(args[0])
		if err != nil {
			return nil, err
		}
		return math.Abs(f), nil
	}
}

func ordFunc(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("ord: expected 1 argument, got %d", len(args))
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("ord: argument must be a single-character string")
	}
	r := []rune(s)
	if len(r) != 1 {
		return nil, fmt.Errorf("ord: expected a string of length 1, got %q", s)
	}
	return int64(r[0]), nil
}

// legendreFunc evaluates the degree-n Legendre polynomial, rescaled from
// its natural domain [-1, 1] to [a, b], at x. This mirrors util.legendre
// in the source: Legendre(unitvec(n), domain=[a, b])(x).
func legendreFunc(args []any) (any, error) {
	if len(args) != 4 {
		return nil, fmt.Errorf("legendre: expected 4 arguments (n, a, b, x), got %d", len(args))
	}
	nf, err := toFloat(args[0])
	if err != nil {
		return nil, err
	}
	n := int(nf)
	a, err := toFloat(args[1])
	if err != nil {
		return nil, err
	}
	b, err := toFloat(args[2])
	if err != nil {
		return nil, err
	}
	x, err := toFloat(args[3])
	if err != nil {
		return nil, err
	}
	if b == a {
		return nil, fmt.Errorf("legendre: degenerate domain [%v, %v]", a, b)
	}
	t := (2*x - (a + b)) / (b - a)
	return legendreP(n, t), nil
}

// legendreP evaluates the physicists' Legendre polynomial of degree n at
// t via the standard three-term recurrence:
//
//	P_0(t) = 1
//	P_1(t) = t
//	(k+1) P_{k+1}(t) = (2k+1) t P_k(t) - k P_{k-1}(t)
func legendreP(n int, t float64) float64 {
	if n <= 0 {
		return 1
	}
	if n == 1 {
		return t
	}
	p0, p1 := 1.0, t
	for k := 1; k < n; k++ {
		p2 := (float64(2*k+1)*t*p1 - float64(k)*p0) / float64(k+1)
		p0, p1 = p1, p2
	}
	return p1
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}
