package gtype

import (
	"encoding/json"
	"fmt"
	"time"
)

// EncodeJSON renders a coerced value (as produced by Type.Coerce) to its
// JSON representation. DateTime values are encoded as the same
// fixed-format string used by grevling.txt, so a round trip through
// EncodeJSON/DecodeJSON always reproduces an identical value.
func (t Type) EncodeJSON(v any) ([]byte, error) {
	if t.Kind == List {
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("gtype: EncodeJSON expected []any for list, got %T", v)
		}
		raws := make([]json.RawMessage, len(items))
		for i, item := range items {
			raw, err := t.Elem.EncodeJSON(item)
			if err != nil {
				return nil, err
			}
			raws[i] = raw
		}
		return json.Marshal(raws)
	}
	if t.Kind == DateTime {
		tm, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("gtype: EncodeJSON expected time.Time, got %T", v)
		}
		return json.Marshal(tm.UTC().Format(DateTimeLayout))
	}
	return json.Marshal(v)
}

// DecodeJSON parses data (as produced by EncodeJSON) and coerces the
// result into this type's in-memory representation.
func (t Type) DecodeJSON(data []byte) (any, error) {
	if t.Kind == List {
		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("gtype: DecodeJSON list: %w", err)
		}
		out := make([]any, len(raws))
		for i, raw := range raws {
			v, err := t.Elem.DecodeJSON(raw)
			if err != nil {
				return nil, fmt.Errorf("gtype: DecodeJSON list element %d: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("gtype: DecodeJSON: %w", err)
	}
	return t.Coerce(raw)
}
