package render_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheBB/Grevling/pkg/render"
)

func TestRenderBasic(t *testing.T) {
	ctx := map[string]any{
		"alpha":   int64(2),
		"bravo":   "b",
		"charlie": int64(3),
	}
	out, err := render.Render("a=${alpha} b=${bravo} c=${charlie}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "a=2 b=b c=3", out)
}

func TestRenderShellQuoting(t *testing.T) {
	ctx := map[string]any{"name": "hello world"}
	out, err := render.RenderMode("echo ${name}", ctx, render.Shell)
	require.NoError(t, err)
	assert.Equal(t, "echo 'hello world'", out)
}

func TestRenderFormattingHelpers(t *testing.T) {
	ctx := map[string]any{"x": 3.14159}
	out, err := render.Render("${rnd(x, 2)}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "3.14", out)

	out, err = render.Render("${sci(x, 2)}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "3.14e+00", out)
}

func TestRenderUnterminatedPlaceholder(t *testing.T) {
	_, err := render.Render("a=${alpha", map[string]any{})
	require.Error(t, err)
}
