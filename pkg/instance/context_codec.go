package instance

import (
	"encoding/json"
	"sort"

	"github.com/TheBB/Grevling/pkg/gerr"
	"github.com/TheBB/Grevling/pkg/gtype"
)

// EncodeContext marshals every name in ctx that mgr has declared into a
// single JSON object, via each name's declared type.
func EncodeContext(mgr *gtype.Manager, ctx map[string]any) ([]byte, error) {
	raws := make(map[string]json.RawMessage, len(ctx))
	names := make([]string, 0, len(ctx))
	for name := range ctx {
		if mgr.Has(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		raw, err := mgr.EncodeJSON(name, ctx[name])
		if err != nil {
			return nil, gerr.Wrap("instance.EncodeContext", name, err)
		}
		raws[name] = raw
	}
	return json.Marshal(raws)
}

// DecodeContext parses data (as produced by EncodeContext) into a typed
// context map via mgr's declared types.
func DecodeContext(mgr *gtype.Manager, data []byte) (map[string]any, error) {
	var raws map[string]json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, gerr.Wrap("instance.DecodeContext", "", err)
	}
	out := make(map[string]any, len(raws))
	for name, raw := range raws {
		if !mgr.Has(name) {
			continue
		}
		v, err := mgr.DecodeJSON(name, raw)
		if err != nil {
			return nil, gerr.Wrap("instance.DecodeContext", name, err)
		}
		out[name] = v
	}
	return out, nil
}
