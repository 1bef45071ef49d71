package gtype_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheBB/Grevling/pkg/gtype"
)

func TestCoerceScalars(t *testing.T) {
	v, err := gtype.NewInteger().Coerce("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = gtype.NewFloat().Coerce("3.5")
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)

	v, err = gtype.NewFloat().Coerce(int64(3))
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	v, err = gtype.NewBoolean().Coerce("1")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = gtype.NewBoolean().Coerce("0")
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestCoerceListSingleton(t *testing.T) {
	lt := gtype.NewList(gtype.NewFloat())
	v, err := lt.Coerce(1.5)
	require.NoError(t, err)
	assert.Equal(t, []any{1.5}, v)

	v, err = lt.Coerce([]any{1.0, "2", int64(3)})
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, v)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	types := []gtype.Type{
		gtype.NewInteger(),
		gtype.NewFloat(),
		gtype.NewString(),
		gtype.NewBoolean(),
		gtype.NewList(gtype.NewFloat()),
	}
	values := []any{int64(7), 1.25, "hello", true, []any{1.0, 2.0, 3.0}}

	for i, typ := range types {
		coerced, err := typ.Coerce(values[i])
		require.NoError(t, err)

		data, err := typ.EncodeJSON(coerced)
		require.NoError(t, err)

		decoded, err := typ.DecodeJSON(data)
		require.NoError(t, err)

		assert.Equal(t, coerced, decoded)
	}
}

func TestManagerCoerceInto(t *testing.T) {
	m := gtype.NewManager()
	m.Declare("all", gtype.NewList(gtype.NewFloat()), gtype.StagePost)

	v, err := m.CoerceInto("all", "1.234", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{1.234}, v)

	v, err = m.CoerceInto("all", "2.468", v)
	require.NoError(t, err)
	assert.Equal(t, []any{1.234, 2.468}, v)
}

func TestTabularSchemaOrder(t *testing.T) {
	m := gtype.NewManager()
	m.Declare("alpha", gtype.NewInteger(), gtype.StagePre)
	m.Declare("bravo", gtype.NewString(), gtype.StagePre)
	m.Declare("g_success", gtype.NewBoolean(), gtype.StagePost)

	schema := m.TabularSchema()
	require.Len(t, schema, 3)
	assert.Equal(t, "alpha", schema[0].Name)
	assert.Equal(t, "int64", schema[0].Dtype)
	assert.Equal(t, "bravo", schema[1].Name)
	assert.Equal(t, "g_success", schema[2].Name)
	assert.Equal(t, gtype.StagePost, schema[2].Stage)
}
