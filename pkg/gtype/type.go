// Package gtype implements the TypeManager: a sum type over
// {Integer, Float, String, Boolean, DateTime, List<Scalar>} with
// coercion, JSON round-tripping and tabular dtype mapping.
//
// Values are represented in memory as plain `any` holding one of:
// int64, float64, string, bool, time.Time, or []any (for List, whose
// elements are themselves one of the scalar representations).
package gtype

import (
	"fmt"
	"strconv"
	"time"
)

// Kind identifies one of the six type variants.
type Kind int

const (
	Integer Kind = iota
	Float
	String
	Boolean
	DateTime
	List
)

func (k Kind) String() string {
	switch k {
	case Integer:
		return "integer"
	case Float:
		return "float"
	case String:
		return "string"
	case Boolean:
		return "boolean"
	case DateTime:
		return "datetime"
	case List:
		return "list"
	default:
		return "unknown"
	}
}

// Type is a single declared type: a scalar Kind, or List with a non-nil
// Elem describing the element type.
type Type struct {
	Kind Kind
	Elem *Type // non-nil iff Kind == List
}

// Scalar constructors.
func NewInteger() Type { return Type{Kind: Integer} }
func NewFloat() Type   { return Type{Kind: Float} }
func NewString() Type  { return Type{Kind: String} }
func NewBoolean() Type { return Type{Kind: Boolean} }
func NewDateTime() Type { return Type{Kind: DateTime} }

// NewList constructs a List type over elem.
func NewList(elem Type) Type {
	return Type{Kind: List, Elem: &elem}
}

// String renders a human-readable type name, e.g. "list[float]".
func (t Type) String() string {
	if t.Kind == List {
		return fmt.Sprintf("list[%s]", t.Elem.String())
	}
	return t.Kind.String()
}

// DateTimeLayout is the wire format for DateTime values, matching the
// source's `YYYY-MM-DD HH:MM:SS.ffffff`.
const DateTimeLayout = "2006-01-02 15:04:05.000000"

// Coerce converts v into this type's in-memory representation.
func (t Type) Coerce(v any) (any, error) {
	if t.Kind == List {
		return t.coerceList(v)
	}
	return t.coerceScalar(v)
}

func (t Type) coerceList(v any) (any, error) {
	if items, ok := v.([]any); ok {
		out := make([]any, len(items))
		for i, item := range items {
			cv, err := t.Elem.Coerce(item)
			if err != nil {
				return nil, fmt.Errorf("list element %d: %w", i, err)
			}
			out[i] = cv
		}
		return out, nil
	}
	// A non-list value coerced into List<T> yields a singleton [T(v)].
	cv, err := t.Elem.Coerce(v)
	if err != nil {
		return nil, err
	}
	return []any{cv}, nil
}

func (t Type) coerceScalar(v any) (any, error) {
	switch t.Kind {
	case Integer:
		return coerceInteger(v)
	case Float:
		return coerceFloat(v)
	case String:
		return coerceString(v)
	case Boolean:
		return coerceBoolean(v)
	case DateTime:
		return coerceDateTime(v)
	}
	return nil, fmt.Errorf("gtype: unhandled kind %v", t.Kind)
}

func coerceInteger(v any) (any, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		if x == float64(int64(x)) {
			return int64(x), nil
		}
		return nil, fmt.Errorf("gtype: %v is not an integral value", x)
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("gtype: %q is not a decimal integer: %w", x, err)
		}
		return n, nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, fmt.Errorf("gtype: cannot coerce %T to integer", v)
	}
}

func coerceFloat(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return nil, fmt.Errorf("gtype: %q is not a float: %w", x, err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("gtype: cannot coerce %T to float", v)
	}
}

func coerceString(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return fmt.Sprintf("%v", x), nil
	}
}

func coerceBoolean(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch x {
		case "0":
			return false, nil
		case "1":
			return true, nil
		}
		b, err := strconv.ParseBool(x)
		if err != nil {
			return nil, fmt.Errorf("gtype: %q is not a boolean: %w", x, err)
		}
		return b, nil
	case int64:
		return x != 0, nil
	default:
		return nil, fmt.Errorf("gtype: cannot coerce %T to boolean", v)
	}
}

func coerceDateTime(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Truncate(time.Microsecond), nil
	case string:
		tm, err := time.Parse(DateTimeLayout, x)
		if err != nil {
			return nil, fmt.Errorf("gtype: %q is not a datetime in layout %q: %w", x, DateTimeLayout, err)
		}
		return tm, nil
	default:
		return nil, fmt.Errorf("gtype: cannot coerce %T to datetime", v)
	}
}

// Dtype returns the tabular dtype name used by TabularSchema, matching
// the dtype vocabulary the source's pandas-backed dataframe export uses.
func (t Type) Dtype() string {
	switch t.Kind {
	case Integer:
		return "int64"
	case Float:
		return "float64"
	case String:
		return "string"
	case Boolean:
		return "bool"
	case DateTime:
		return "datetime64[ns]"
	case List:
		return "object"
	default:
		return "object"
	}
}
