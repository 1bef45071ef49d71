package expr

import (
	"fmt"

	"github.com/TheBB/Grevling/pkg/gerr"
)

type evaluator struct {
	ctx   map[string]any
	funcs map[string]Func
}

func evalNode(n node, ctx map[string]any) (any, error) {
	e := &evaluator{ctx: ctx, funcs: defaultFuncs()}
	return e.eval(n)
}

func evalNodeWithFuncs(n node, ctx map[string]any, extra map[string]Func) (any, error) {
	funcs := defaultFuncs()
	for name, fn := range extra {
		funcs[name] = fn
	}
	e := &evaluator{ctx: ctx, funcs: funcs}
	return e.eval(n)
}

func (e *evaluator) eval(n node) (any, error) {
	switch t := n.(type) {
	case numberNode:
		return t.value, nil
	case stringNode:
		return t.value, nil
	case boolNode:
		return t.value, nil

	case identNode:
		v, ok := e.ctx[t.name]
		if !ok {
			return nil, gerr.Wrap("expr.eval", t.name, gerr.ErrUndefinedName)
		}
		return v, nil

	case unaryNode:
		return e.evalUnary(t)

	case binaryNode:
		return e.evalBinary(t)

	case callNode:
		return e.evalCall(t)
	}
	return nil, fmt.Errorf("expr: unhandled node type %T", n)
}

func (e *evaluator) evalUnary(n unaryNode) (any, error) {
	x, err := e.eval(n.x)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "not":
		return !truthy(x), nil
	case "-":
		switch v := x.(type) {
		case int64:
			return -v, nil
		default:
			f, err := toFloat(x)
			if err != nil {
				return nil, err
			}
			return -f, nil
		}
	case "+":
		return x, nil
	}
	return nil, fmt.Errorf("expr: unknown unary operator %q", n.op)
}

func (e *evaluator) evalBinary(n binaryNode) (any, error) {
	if n.op == "and" {
		l, err := e.eval(n.l)
		if err != nil {
			return nil, err
		}
		if !truthy(l) {
			return false, nil
		}
		r, err := e.eval(n.r)
		if err != nil {
			return nil, err
		}
		return truthy(r), nil
	}
	if n.op == "or" {
		l, err := e.eval(n.l)
		if err != nil {
			return nil, err
		}
		if truthy(l) {
			return true, nil
		}
		r, err := e.eval(n.r)
		if err != nil {
			return nil, err
		}
		return truthy(r), nil
	}

	l, err := e.eval(n.l)
	if err != nil {
		return nil, err
	}
	r, err := e.eval(n.r)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "==", "!=", "<", "<=", ">", ">=":
		return compare(n.op, l, r)
	case "+":
		if ls, ok := l.(string); ok {
			rs, ok := r.(string)
			if !ok {
				return nil, fmt.Errorf("expr: cannot add string and %T", r)
			}
			return ls + rs, nil
		}
		return arith(n.op, l, r)
	case "-", "*", "/", "%", "**":
		return arith(n.op, l, r)
	}
	return nil, fmt.Errorf("expr: unknown binary operator %q", n.op)
}

func (e *evaluator) evalCall(n callNode) (any, error) {
	fn, ok := e.funcs[n.name]
	if !ok {
		return nil, fmt.Errorf("expr: unknown function %q", n.name)
	}
	args := make([]any, len(n.args))
	for i, a := range n.args {
		v, err := e.eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return fn(args)
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case nil:
		return false
	default:
		return true
	}
}
