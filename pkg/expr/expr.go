// Package expr implements the safe arithmetic/comparison mini-language
// shared by evaluables, where-predicates and the ${...} template engine.
//
// The source mixed two expression dialects (one for templates, one for
// evaluables, both backed by Python's simpleeval); this package unifies
// them behind one evaluator with a fixed function library: log, log2,
// log10, sqrt, abs, ord, sin, cos, legendre.
package expr

import "github.com/TheBB/Grevling/pkg/gerr"

// MissingPolicy controls how Eval treats an undefined identifier lookup.
// The zero value rejects every undefined name (the default, matching the
// source's non-`allowed_missing` behavior).
type MissingPolicy struct {
	// All, when true, demotes every undefined-name error to a missing
	// result rather than a fatal error.
	All bool

	// Names, when non-nil, allows only the listed identifiers to be
	// undefined; any other undefined name remains fatal.
	Names map[string]bool
}

func (m MissingPolicy) allows(name string) bool {
	if m.All {
		return true
	}
	return m.Names[name]
}

// Expr is a parsed, reusable expression tree.
type Expr struct {
	root node
	src  string
}

// Parse compiles src into a reusable Expr.
func Parse(src string) (*Expr, error) {
	root, err := parseExpr(src)
	if err != nil {
		return nil, gerr.Wrap("expr.Parse", src, gerr.ErrInvalidExpression)
	}
	return &Expr{root: root, src: src}, nil
}

// Eval evaluates the expression against ctx. An undefined identifier is
// always a fatal error from Eval; use EvalMissing to apply a
// MissingPolicy.
func (e *Expr) Eval(ctx map[string]any) (any, error) {
	v, err := evalNode(e.root, ctx)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// EvalWithFuncs evaluates the expression against ctx, extending the
// fixed function library with extra (which shadows any default of the
// same name). This is how the template engine adds its rnd/sci
// formatting helpers without widening the function library every
// evaluable and where-predicate sees.
func (e *Expr) EvalWithFuncs(ctx map[string]any, extra map[string]Func) (any, error) {
	return evalNodeWithFuncs(e.root, ctx, extra)
}

// EvalMissing evaluates the expression against ctx, applying policy to
// undefined-name failures. ok is false when evaluation was skipped
// because an undefined name was covered by policy; in that case err is
// nil and value is nil.
func (e *Expr) EvalMissing(ctx map[string]any, policy MissingPolicy) (value any, ok bool, err error) {
	v, evalErr := evalNode(e.root, ctx)
	if evalErr == nil {
		return v, true, nil
	}
	if name, isUndefined := undefinedName(evalErr); isUndefined && policy.allows(name) {
		return nil, false, nil
	}
	return nil, false, evalErr
}

func undefinedName(err error) (string, bool) {
	var op *gerr.OpError
	for err != nil {
		if oe, isOp := err.(*gerr.OpError); isOp {
			op = oe
			break
		}
		u, isUnwrap := err.(interface{ Unwrap() error })
		if !isUnwrap {
			break
		}
		err = u.Unwrap()
	}
	if op == nil || op.Err != gerr.ErrUndefinedName {
		return "", false
	}
	return op.Subject, true
}

// Eval parses and evaluates src against ctx in one step. Prefer Parse
// when the same expression will be evaluated repeatedly (e.g. a template
// placeholder rendered once per instance).
func Eval(src string, ctx map[string]any) (any, error) {
	e, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return e.Eval(ctx)
}

// Functions returns the names of the fixed function library, for
// diagnostics and documentation.
func Functions() []string {
	names := make([]string, 0, len(defaultFuncs()))
	for name := range defaultFuncs() {
		names = append(names, name)
	}
	return names
}
