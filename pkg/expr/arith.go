package expr

import (
	"fmt"
	"math"
)

func bothInt(l, r any) (int64, int64, bool) {
	li, lok := l.(int64)
	ri, rok := r.(int64)
	return li, ri, lok && rok
}

func arith(op string, l, r any) (any, error) {
	if op != "/" && op != "**" {
		if li, ri, ok := bothInt(l, r); ok {
			switch op {
			case "+":
				return li + ri, nil
			case "-":
				return li - ri, nil
			case "*":
				return li * ri, nil
			case "%":
				if ri == 0 {
					return nil, fmt.Errorf("expr: modulo by zero")
				}
				return li % ri, nil
			}
		}
	}

	lf, err := toFloat(l)
	if err != nil {
		return nil, fmt.Errorf("expr: left operand of %q: %w", op, err)
	}
	rf, err := toFloat(r)
	if err != nil {
		return nil, fmt.Errorf("expr: right operand of %q: %w", op, err)
	}

	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("expr: division by zero")
		}
		return lf / rf, nil
	case "%":
		return math.Mod(lf, rf), nil
	case "**":
		return math.Pow(lf, rf), nil
	}
	return nil, fmt.Errorf("expr: unknown arithmetic operator %q", op)
}

func compare(op string, l, r any) (any, error) {
	if ls, ok := l.(string); ok {
		rs, ok := r.(string)
		if !ok {
			return nil, fmt.Errorf("expr: cannot compare string with %T", r)
		}
		switch op {
		case "==":
			return ls == rs, nil
		case "!=":
			return ls != rs, nil
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		}
	}

	if lb, ok := l.(bool); ok {
		if rb, ok := r.(bool); ok {
			switch op {
			case "==":
				return lb == rb, nil
			case "!=":
				return lb != rb, nil
			}
		}
	}

	lf, err := toFloat(l)
	if err != nil {
		return nil, fmt.Errorf("expr: left operand of %q: %w", op, err)
	}
	rf, err := toFloat(r)
	if err != nil {
		return nil, fmt.Errorf("expr: right operand of %q: %w", op, err)
	}

	switch op {
	case "==":
		return lf == rf, nil
	case "!=":
		return lf != rf, nil
	case "<":
		return lf < rf, nil
	case "<=":
		return lf <= rf, nil
	case ">":
		return lf > rf, nil
	case ">=":
		return lf >= rf, nil
	}
	return nil, fmt.Errorf("expr: unknown comparison operator %q", op)
}
