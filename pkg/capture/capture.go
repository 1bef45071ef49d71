// Package capture implements regex-based extraction of typed values from
// command stdout: first/last/all modes, plus numeric-prefix captures
// that are compiled into a generated named-group regex.
package capture

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/TheBB/Grevling/pkg/gerr"
	"github.com/TheBB/Grevling/pkg/gtype"
)

// Mode selects which match(es) of a capture's regex contribute values.
type Mode int

const (
	// First keeps the first match's named groups.
	First Mode = iota
	// Last keeps the last match's named groups.
	Last
	// All keeps every match's named groups, accumulated into a list per
	// name.
	All
)

// Capture is a single (regex, mode, type hint) extraction spec. The
// regex must contain at least one named group.
type Capture struct {
	Name    string // informational; matches are keyed by named group, not Name
	Regex   *regexp.Regexp
	Mode    Mode
	TypeHint *gtype.Type // nil means String
}

// Compile parses pattern into a Capture, validating that it carries at
// least one named group.
func Compile(pattern string, mode Mode, typeHint *gtype.Type) (*Capture, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, gerr.Wrap("capture.Compile", pattern, fmt.Errorf("%w: %v", gerr.ErrInvalidCapture, err))
	}
	if !hasNamedGroup(re) {
		return nil, gerr.Wrap("capture.Compile", pattern, fmt.Errorf("%w: regex has no named group", gerr.ErrInvalidCapture))
	}
	return &Capture{Regex: re, Mode: mode, TypeHint: typeHint}, nil
}

func hasNamedGroup(re *regexp.Regexp) bool {
	for _, name := range re.SubexpNames() {
		if name != "" {
			return true
		}
	}
	return false
}

// GroupType returns the declared type for a named group of this
// capture: the type hint if present, String otherwise; All mode
// upgrades the result to List<hint>.
func (c *Capture) GroupType() gtype.Type {
	base := gtype.NewString()
	if c.TypeHint != nil {
		base = *c.TypeHint
	}
	if c.Mode == All {
		return gtype.NewList(base)
	}
	return base
}

// GroupNames returns the capture's named groups, in regex-declaration
// order.
func (c *Capture) GroupNames() []string {
	var out []string
	for _, name := range c.Regex.SubexpNames() {
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Collector accumulates raw (untyped-string) capture output across
// commands, keyed by named group.
type Collector struct {
	values map[string]any // first/last: string; all: []string
	modes  map[string]Mode
	hints  map[string]*gtype.Type
}

// NewCollector constructs an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		values: make(map[string]any),
		modes:  make(map[string]Mode),
		hints:  make(map[string]*gtype.Type),
	}
}

// Apply runs c against stdout, merging any extracted values into the
// collector.
func (col *Collector) Apply(c *Capture, stdout string) {
	matches := c.Regex.FindAllStringSubmatch(stdout, -1)
	names := c.Regex.SubexpNames()

	switch c.Mode {
	case First:
		if len(matches) == 0 {
			return
		}
		col.mergeOne(c, names, matches[0])
	case Last:
		if len(matches) == 0 {
			return
		}
		col.mergeOne(c, names, matches[len(matches)-1])
	case All:
		for _, m := range matches {
			col.appendOne(c, names, m)
		}
	}
}

func (col *Collector) mergeOne(c *Capture, names []string, m []string) {
	for i, name := range names {
		if name == "" || m[i] == "" {
			continue
		}
		col.values[name] = m[i]
		col.modes[name] = c.Mode
		col.hints[name] = c.TypeHint
	}
}

func (col *Collector) appendOne(c *Capture, names []string, m []string) {
	for i, name := range names {
		if name == "" {
			continue
		}
		col.modes[name] = c.Mode
		col.hints[name] = c.TypeHint
		existing, _ := col.values[name].([]string)
		col.values[name] = append(existing, m[i])
	}
}

// Names returns every group name that produced at least one value.
func (col *Collector) Names() []string {
	out := make([]string, 0, len(col.values))
	for name := range col.values {
		out = append(out, name)
	}
	return out
}

// Coerce converts every collected raw value into its typed
// representation via mgr (which must already have the group's type
// declared with a post-stage Declare call), returning a name -> typed
// value map suitable for writing into an instance's captured context.
func (col *Collector) Coerce(mgr *gtype.Manager) (map[string]any, error) {
	out := make(map[string]any, len(col.values))
	for name, raw := range col.values {
		switch col.modes[name] {
		case All:
			items, _ := raw.([]string)
			anyItems := make([]any, len(items))
			for i, s := range items {
				anyItems[i] = s
			}
			v, err := mgr.Coerce(name, anyItems)
			if err != nil {
				return nil, gerr.Wrap("capture.Coerce", name, err)
			}
			out[name] = v
		default:
			v, err := mgr.Coerce(name, raw)
			if err != nil {
				return nil, gerr.Wrap("capture.Coerce", name, err)
			}
			out[name] = v
		}
	}
	return out, nil
}

// DeclareTypes registers every group of every capture in captures into mgr
// at StagePost, so Coerce can be called once capture is complete.
func DeclareTypes(mgr *gtype.Manager, captures []*Capture) {
	for _, c := range captures {
		gt := c.GroupType()
		for _, name := range c.GroupNames() {
			mgr.Declare(name, gt, gtype.StagePost)
		}
	}
}

// intPattern and floatPattern are the numeric literal regexes used to
// build numeric-prefix captures.
const (
	intPattern   = `[-+]?\d+`
	floatPattern = `[-+]?\d+(?:\.\d+)?(?:[eE][-+]?\d+)?`
)

// PrefixOptions configures CompilePrefix.
type PrefixOptions struct {
	// SkipWords is the number of whitespace-separated tokens to skip
	// between the prefix and the captured number.
	SkipWords int
	// FlexiblePrefix, when true, treats internal whitespace in prefix as
	// \s+ rather than a literal match.
	FlexiblePrefix bool
	// Float selects the float pattern over the integer pattern.
	Float bool
}

// CompilePrefix builds a Capture of the form
//
//	<escaped-prefix>\s*[:=]?\s*(\S+\s+){k}(?P<name><numpattern>)
//
// matching the source's "numeric prefix" capture shorthand: a literal
// prefix string, an optional separator, k skipped words, then a named
// numeric group.
func CompilePrefix(prefix, name string, mode Mode, opts PrefixOptions) (*Capture, error) {
	escaped := regexp.QuoteMeta(prefix)
	if opts.FlexiblePrefix {
		escaped = strings.ReplaceAll(escaped, `\ `, `\s+`)
	}

	numPattern := intPattern
	var hint *gtype.Type
	ih := gtype.NewInteger()
	hint = &ih
	if opts.Float {
		numPattern = floatPattern
		fh := gtype.NewFloat()
		hint = &fh
	}

	skip := strings.Repeat(`\S+\s+`, opts.SkipWords)
	pattern := fmt.Sprintf(`%s\s*[:=]?\s*%s(?P<%s>%s)`, escaped, skip, name, numPattern)

	return Compile(pattern, mode, hint)
}
