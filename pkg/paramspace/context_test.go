package paramspace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheBB/Grevling/pkg/paramspace"
)

func anyInts(vs ...int64) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

func anyStrings(vs ...string) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

func TestEchoSweepShape(t *testing.T) {
	space := paramspace.NewSpace()
	alpha, err := paramspace.NewListed("alpha", anyInts(1, 2, 3))
	require.NoError(t, err)
	bravo, err := paramspace.NewListed("bravo", anyStrings("a", "b", "c"))
	require.NoError(t, err)
	space.Add(alpha)
	space.Add(bravo)

	provider := paramspace.NewContextProvider(space)
	provider.Evaluables = append(provider.Evaluables, paramspace.Evaluable{
		Name:   "charlie",
		Source: "2*alpha-1",
	})

	contexts, err := provider.Enumerate()
	require.NoError(t, err)
	require.Len(t, contexts, 9)

	for i, ctx := range contexts {
		assert.Equal(t, int64(i), ctx["g_index"])
		a := ctx["alpha"].(int64)
		assert.Equal(t, 2*a-1, ctx["charlie"])
	}
}

func TestWhereFiltering(t *testing.T) {
	space := paramspace.NewSpace()
	a, err := paramspace.NewListed("a", anyInts(1, 2, 3, 4))
	require.NoError(t, err)
	b, err := paramspace.NewListed("b", anyInts(1, 2, 3, 4))
	require.NoError(t, err)
	space.Add(a)
	space.Add(b)

	provider := paramspace.NewContextProvider(space)
	provider.Where = []string{"a < b"}

	contexts, err := provider.Enumerate()
	require.NoError(t, err)
	require.Len(t, contexts, 6)

	want := [][2]int64{{1, 2}, {1, 3}, {1, 4}, {2, 3}, {2, 4}, {3, 4}}
	for i, ctx := range contexts {
		assert.Equal(t, want[i][0], ctx["a"])
		assert.Equal(t, want[i][1], ctx["b"])
		assert.Equal(t, int64(i), ctx["g_index"])
	}
}

func TestEmptySpaceYieldsOneInstance(t *testing.T) {
	space := paramspace.NewSpace()
	provider := paramspace.NewContextProvider(space)
	provider.Constants = paramspace.Context{"k": int64(1)}

	contexts, err := provider.Enumerate()
	require.NoError(t, err)
	require.Len(t, contexts, 1)
	assert.Equal(t, int64(1), contexts[0]["k"])
	assert.Equal(t, int64(0), contexts[0]["g_index"])
}

func TestGradedParameterMonotonic(t *testing.T) {
	p, err := paramspace.NewGraded("x", 5, 0, 1, 1.5)
	require.NoError(t, err)
	require.Len(t, p.Values, 5)
	assert.InDelta(t, 0.0, p.Values[0], 1e-9)
	assert.InDelta(t, 1.0, p.Values[4], 1e-9)
	for i := 1; i < len(p.Values); i++ {
		assert.Greater(t, p.Values[i].(float64), p.Values[i-1].(float64))
	}
}
