// Package render implements the ${expr} template language used for
// FileMap templating and Command argv/env rendering. It is a thin
// wrapper around pkg/expr: each ${...} placeholder is parsed and
// evaluated against the current context, with two extra formatting
// helpers (rnd, sci) and an automatic shell-quoting filter in Mode
// Shell.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/TheBB/Grevling/pkg/expr"
	"github.com/TheBB/Grevling/pkg/gtype"
)

// Mode selects whether rendered values are shell-quoted.
type Mode int

const (
	// Plain renders each placeholder's formatted value as-is.
	Plain Mode = iota

	// Shell renders each placeholder's formatted value through a
	// POSIX shell-quoting filter, so the result is safe to splice into
	// a shell command line.
	Shell
)

// Render substitutes every ${expr} occurrence in template with the
// result of evaluating expr against ctx, in Plain mode.
func Render(template string, ctx map[string]any) (string, error) {
	return RenderMode(template, ctx, Plain)
}

// RenderMode is Render with an explicit Mode.
func RenderMode(template string, ctx map[string]any, mode Mode) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(template) {
		start := strings.Index(template[i:], "${")
		if start == -1 {
			out.WriteString(template[i:])
			break
		}
		start += i
		out.WriteString(template[i:start])

		end := strings.IndexByte(template[start+2:], '}')
		if end == -1 {
			return "", fmt.Errorf("render: unterminated placeholder starting at %q", template[start:])
		}
		end += start + 2

		src := template[start+2 : end]
		value, err := evalPlaceholder(src, ctx)
		if err != nil {
			return "", fmt.Errorf("render: %q: %w", src, err)
		}

		text := formatValue(value)
		if mode == Shell {
			text = shellQuote(text)
		}
		out.WriteString(text)

		i = end + 1
	}
	return out.String(), nil
}

// RenderList renders every element of a string slice.
func RenderList(templates []string, ctx map[string]any, mode Mode) ([]string, error) {
	out := make([]string, len(templates))
	for i, t := range templates {
		r, err := RenderMode(t, ctx, mode)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// RenderMap renders every value of a string-keyed map, leaving keys
// untouched.
func RenderMap(templates map[string]string, ctx map[string]any, mode Mode) (map[string]string, error) {
	out := make(map[string]string, len(templates))
	for k, v := range templates {
		r, err := RenderMode(v, ctx, mode)
		if err != nil {
			return nil, err
		}
		out[k] = r
	}
	return out, nil
}

func evalPlaceholder(src string, ctx map[string]any) (any, error) {
	compiled, err := expr.Parse(src)
	if err != nil {
		return nil, err
	}
	return compiled.EvalWithFuncs(ctx, formattingFuncs())
}

// formattingFuncs returns the rnd/sci helpers available only within
// template placeholders, not within evaluables or where-predicates.
func formattingFuncs() map[string]expr.Func {
	return map[string]expr.Func{
		"rnd": func(args []any) (any, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("rnd: expected 2 arguments (x, n)")
			}
			x, n, err := numAndPrecision(args)
			if err != nil {
				return nil, err
			}
			return strconv.FormatFloat(x, 'f', n, 64), nil
		},
		"sci": func(args []any) (any, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("sci: expected 2 arguments (x, n)")
			}
			x, n, err := numAndPrecision(args)
			if err != nil {
				return nil, err
			}
			return strconv.FormatFloat(x, 'e', n, 64), nil
		},
	}
}

func numAndPrecision(args []any) (float64, int, error) {
	x, err := toFloat(args[0])
	if err != nil {
		return 0, 0, err
	}
	nf, err := toFloat(args[1])
	if err != nil {
		return 0, 0, err
	}
	return x, int(nf), nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case time.Time:
		return x.UTC().Format(gtype.DateTimeLayout)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatValue(e)
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprintf("%v", x)
	}
}

// QuoteShell exposes shellQuote for callers outside this package that
// need to splice an already-formatted string into a shell command line
// (the Command container wrapper's quotedJoin step).
func QuoteShell(s string) string {
	return shellQuote(s)
}

// shellQuote returns s unchanged when it holds no shell-special
// character, and otherwise wraps it in single quotes, escaping any
// embedded single quote the way POSIX shlex.quote does.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`*?[]{}()<>|&;~#") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
