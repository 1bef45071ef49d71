package paramspace

import (
	"fmt"

	"github.com/TheBB/Grevling/pkg/expr"
)

// Evaluable is a named expression evaluated against the current context
// during context construction. A literal evaluable (IsLiteral) is used
// as-is without going through the expression evaluator.
type Evaluable struct {
	Name      string
	IsLiteral bool
	Literal   any
	Source    string
	Missing   expr.MissingPolicy

	compiled *expr.Expr
}

// compile lazily parses the evaluable's source expression.
func (e *Evaluable) compile() (*expr.Expr, error) {
	if e.IsLiteral {
		return nil, nil
	}
	if e.compiled == nil {
		parsed, err := expr.Parse(e.Source)
		if err != nil {
			return nil, err
		}
		e.compiled = parsed
	}
	return e.compiled, nil
}

// ContextProvider builds Context values: one parameter tuple, merged
// with constants (non-overriding), evaluated evaluables (in declaration
// order), filtered by where-predicates.
type ContextProvider struct {
	Space     *Space
	Constants Context
	Evaluables []Evaluable
	Where     []string
}

// NewContextProvider constructs an empty provider over space.
func NewContextProvider(space *Space) *ContextProvider {
	return &ContextProvider{Space: space, Constants: Context{}}
}

// Evaluate builds a full context from one parameter tuple: merges
// constants (never overriding an explicit value already in tuple), then
// evaluates evaluables in declaration order. An evaluable whose
// expression references an undefined name is fatal unless its Missing
// policy allows that name, in which case the evaluable is skipped
// entirely (left undefined in the returned context).
func (c *ContextProvider) Evaluate(tuple Context) (Context, error) {
	ctx := tuple.Clone()
	for k, v := range c.Constants {
		if _, exists := ctx[k]; !exists {
			ctx[k] = v
		}
	}

	for i := range c.Evaluables {
		ev := &c.Evaluables[i]
		if ev.IsLiteral {
			ctx[ev.Name] = ev.Literal
			continue
		}
		compiled, err := ev.compile()
		if err != nil {
			return nil, fmt.Errorf("evaluable %q: %w", ev.Name, err)
		}
		value, ok, err := compiled.EvalMissing(ctx, ev.Missing)
		if err != nil {
			return nil, fmt.Errorf("evaluable %q: %w", ev.Name, err)
		}
		if !ok {
			continue
		}
		ctx[ev.Name] = value
	}

	return ctx, nil
}

// matchesWhere evaluates every where-predicate against ctx; all must be
// truthy for the tuple to survive filtering.
func (c *ContextProvider) matchesWhere(ctx Context) (bool, error) {
	for _, src := range c.Where {
		v, err := expr.Eval(src, ctx)
		if err != nil {
			return false, fmt.Errorf("where %q: %w", src, err)
		}
		if !truthy(v) {
			return false, nil
		}
	}
	return true, nil
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

// Enumerate iterates the Cartesian product of the provider's space in
// insertion-major, last-axis-fastest order, evaluating each tuple and
// applying where-filtering. Surviving contexts receive a contiguous
// 0-based g_index. An empty parameter space yields exactly one instance
// whose context is constants ∪ evaluables.
func (c *ContextProvider) Enumerate() ([]Context, error) {
	tuples := c.Space.FullSpace()
	out := make([]Context, 0, len(tuples))

	index := int64(0)
	for _, tuple := range tuples {
		ctx, err := c.Evaluate(tuple)
		if err != nil {
			return nil, err
		}
		ok, err := c.matchesWhere(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		ctx["g_index"] = index
		index++
		out = append(out, ctx)
	}
	return out, nil
}
