package paramspace

import (
	"github.com/TheBB/Grevling/pkg/gtype"
)

// InferType probes every context's value for name and picks the
// narrowest fit from {int, float, string}, matching the source's
// derived-type inference: it is a cold pre-pass over every combination,
// not a per-instance decision.
func InferType(contexts []Context, name string) gtype.Type {
	sawFloat := false
	sawNonNumeric := false
	saw := false

	for _, ctx := range contexts {
		v, ok := ctx[name]
		if !ok {
			continue
		}
		saw = true
		switch v.(type) {
		case int64, int:
			// compatible with integer
		case float64:
			sawFloat = true
		default:
			sawNonNumeric = true
		}
	}

	if !saw || sawNonNumeric {
		return gtype.NewString()
	}
	if sawFloat {
		return gtype.NewFloat()
	}
	return gtype.NewInteger()
}

// InferTypes runs InferType for every name not already present in known.
func InferTypes(contexts []Context, names []string, known map[string]gtype.Type) map[string]gtype.Type {
	out := make(map[string]gtype.Type, len(names))
	for _, name := range names {
		if t, ok := known[name]; ok {
			out[name] = t
			continue
		}
		out[name] = InferType(contexts, name)
	}
	return out
}
