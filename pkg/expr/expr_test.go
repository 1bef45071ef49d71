package expr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheBB/Grevling/pkg/expr"
)

func TestEvalArithmetic(t *testing.T) {
	cases := []struct {
		src  string
		ctx  map[string]any
		want any
	}{
		{"2*alpha-1", map[string]any{"alpha": int64(1)}, int64(1)},
		{"2*alpha-1", map[string]any{"alpha": int64(3)}, int64(5)},
		{"1 + 2 * 3", nil, int64(7)},
		{"(1 + 2) * 3", nil, int64(9)},
		{"10 / 4", nil, 2.5},
		{"2 ** 10", nil, 1024.0},
		{"a < b", map[string]any{"a": int64(1), "b": int64(2)}, true},
		{"a < b and b < c", map[string]any{"a": int64(1), "b": int64(2), "c": int64(3)}, true},
		{"not (a < b)", map[string]any{"a": int64(1), "b": int64(2)}, false},
		{"sqrt(alpha)", map[string]any{"alpha": 9.0}, 3.0},
	}
	for _, c := range cases {
		got, err := expr.Eval(c.src, c.ctx)
		require.NoError(t, err, c.src)
		assert.Equal(t, c.want, got, c.src)
	}
}

func TestEvalUndefinedName(t *testing.T) {
	_, err := expr.Eval("alpha + 1", map[string]any{})
	require.Error(t, err)
}

func TestEvalMissingPolicy(t *testing.T) {
	e, err := expr.Parse("alpha + 1")
	require.NoError(t, err)

	_, ok, err := e.EvalMissing(map[string]any{}, expr.MissingPolicy{All: true})
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = e.EvalMissing(map[string]any{}, expr.MissingPolicy{})
	require.Error(t, err)
	assert.False(t, ok)

	v, ok, err := e.EvalMissing(map[string]any{"alpha": int64(1)}, expr.MissingPolicy{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(2), v)
}

func TestLegendre(t *testing.T) {
	v, err := expr.Eval("legendre(0, -1, 1, 0.5)", nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-9)

	v, err = expr.Eval("legendre(1, -1, 1, 0.5)", nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, v, 1e-9)
}

func TestOrd(t *testing.T) {
	v, err := expr.Eval(`ord("A")`, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(65), v)
}
