package gtype

import "fmt"

// Stage distinguishes types known before script execution (parameters,
// constants, evaluables, reserved g_index/g_logdir) from types only
// known after (captures, g_success/g_started/g_finished/g_walltime_*).
type Stage int

const (
	StagePre Stage = iota
	StagePost
)

type declaration struct {
	typ   Type
	stage Stage
}

// Manager is the TypeManager: a name-keyed schema plus coercion,
// JSON round-tripping, and tabular dtype mapping.
type Manager struct {
	decls map[string]declaration
	order []string // insertion order, for stable TabularSchema output
}

// NewManager constructs an empty TypeManager.
func NewManager() *Manager {
	return &Manager{decls: make(map[string]declaration)}
}

// Declare registers name with the given type and stage. Re-declaring an
// existing name overwrites its type but preserves its original position
// in TabularSchema.
func (m *Manager) Declare(name string, t Type, stage Stage) {
	if _, exists := m.decls[name]; !exists {
		m.order = append(m.order, name)
	}
	m.decls[name] = declaration{typ: t, stage: stage}
}

// Has reports whether name has been declared.
func (m *Manager) Has(name string) bool {
	_, ok := m.decls[name]
	return ok
}

// TypeOf returns the declared type for name.
func (m *Manager) TypeOf(name string) (Type, bool) {
	d, ok := m.decls[name]
	return d.typ, ok
}

// Coerce invokes the declared type's coercion for name.
func (m *Manager) Coerce(name string, value any) (any, error) {
	d, ok := m.decls[name]
	if !ok {
		return nil, fmt.Errorf("gtype: %q is not declared", name)
	}
	v, err := d.typ.Coerce(value)
	if err != nil {
		return nil, fmt.Errorf("gtype: coercing %q: %w", name, err)
	}
	return v, nil
}

// CoerceInto combines newValue with an existing value under name's
// declared type: for List types the coerced value is appended;
// otherwise it replaces existing outright. existing may be nil, in
// which case this behaves like Coerce augmented with list-wrapping.
func (m *Manager) CoerceInto(name string, newValue, existing any) (any, error) {
	d, ok := m.decls[name]
	if !ok {
		return nil, fmt.Errorf("gtype: %q is not declared", name)
	}
	if d.typ.Kind != List {
		return m.Coerce(name, newValue)
	}
	cv, err := d.typ.Elem.Coerce(newValue)
	if err != nil {
		return nil, fmt.Errorf("gtype: coercing %q: %w", name, err)
	}
	items, _ := existing.([]any)
	return append(append([]any{}, items...), cv), nil
}

// EncodeJSON encodes value (already coerced under name's type) to JSON.
func (m *Manager) EncodeJSON(name string, value any) ([]byte, error) {
	d, ok := m.decls[name]
	if !ok {
		return nil, fmt.Errorf("gtype: %q is not declared", name)
	}
	return d.typ.EncodeJSON(value)
}

// DecodeJSON decodes data into name's declared representation.
func (m *Manager) DecodeJSON(name string, data []byte) (any, error) {
	d, ok := m.decls[name]
	if !ok {
		return nil, fmt.Errorf("gtype: %q is not declared", name)
	}
	return d.typ.DecodeJSON(data)
}

// ColumnSchema is one entry of TabularSchema: a declared name and its
// tabular dtype.
type ColumnSchema struct {
	Name  string
	Dtype string
	Stage Stage
}

// TabularSchema returns every declared name, in declaration order, with
// its tabular dtype.
func (m *Manager) TabularSchema() []ColumnSchema {
	out := make([]ColumnSchema, 0, len(m.order))
	for _, name := range m.order {
		d := m.decls[name]
		out = append(out, ColumnSchema{Name: name, Dtype: d.typ.Dtype(), Stage: d.stage})
	}
	return out
}

// Names returns every declared name in the given stage, in declaration
// order.
func (m *Manager) Names(stage Stage) []string {
	var out []string
	for _, name := range m.order {
		if m.decls[name].stage == stage {
			out = append(out, name)
		}
	}
	return out
}
