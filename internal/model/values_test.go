package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValues_PreservesInsertionOrder(t *testing.T) {
	var v Values
	v.Set("zeta", 1)
	v.Set("alpha", 2)
	v.Set("mid", 3)
	v.Set("zeta", 4)

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, v.Keys())
	got, ok := v.Get("zeta")
	require.True(t, ok)
	assert.Equal(t, 4, got)
	assert.Equal(t, 3, v.Len())
}

func TestValues_ZeroValueIsEmpty(t *testing.T) {
	var v Values
	assert.Equal(t, 0, v.Len())
	assert.Empty(t, v.Keys())
	_, ok := v.Get("missing")
	assert.False(t, ok)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestValues_MarshalJSONKeepsOrder(t *testing.T) {
	v := NewValues("b", 1, "a", "x", "c", []any{1, 2})
	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"b":1,"a":"x","c":[1,2]}`, string(data))
}

func TestValues_MarshalNested(t *testing.T) {
	inner := NewValues("vcore_mv", 950)
	outer := NewValues("default", inner)
	data, err := json.Marshal(map[string]any{"values": outer})
	require.NoError(t, err)
	assert.Equal(t, `{"values":{"default":{"vcore_mv":950}}}`, string(data))
}

func TestValues_CloneIsDeep(t *testing.T) {
	inner := NewValues("k", 1)
	orig := NewValues("nested", inner, "list", []any{1, 2})

	clone := orig.Clone()
	raw, _ := clone.Get("nested")
	nested := raw.(Values)
	nested.Set("k", 99)
	clone.Set("nested", nested)
	list, _ := clone.Get("list")
	list.([]any)[0] = "changed"

	got, _ := orig.Get("nested")
	k, _ := got.(Values).Get("k")
	assert.Equal(t, 1, k)
	origList, _ := orig.Get("list")
	assert.Equal(t, 1, origList.([]any)[0])
}

func TestValues_Overlay(t *testing.T) {
	base := NewValues("a", 1, "b", 2)
	top := NewValues("b", 20, "c", 30)

	merged := base.Overlay(top)
	assert.Equal(t, []string{"a", "b", "c"}, merged.Keys())
	b, _ := merged.Get("b")
	assert.Equal(t, 20, b)

	// base untouched
	b, _ = base.Get("b")
	assert.Equal(t, 2, b)
	assert.Equal(t, 2, base.Len())
}

func TestValues_Delete(t *testing.T) {
	v := NewValues("a", 1, "b", 2, "c", 3)
	v.Delete("b")
	v.Delete("missing")
	assert.Equal(t, []string{"a", "c"}, v.Keys())
	assert.False(t, v.Has("b"))
}

func TestNewValues_PanicsOnOddArgs(t *testing.T) {
	assert.Panics(t, func() { NewValues("a") })
	assert.Panics(t, func() { NewValues(1, 2) })
}

func TestValues_UnmarshalJSONKeepsOrder(t *testing.T) {
	var v Values
	require.NoError(t, json.Unmarshal([]byte(`{"zeta": 1, "alpha": {"b": [1, "x", null], "a": true}, "mid": null}`), &v))

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, v.Keys())
	z, _ := v.Get("zeta")
	assert.Equal(t, float64(1), z)

	raw, _ := v.Get("alpha")
	nested, ok := raw.(Values)
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a"}, nested.Keys())
	b, _ := nested.Get("b")
	assert.Equal(t, []any{float64(1), "x", nil}, b)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":{"b":[1,"x",null],"a":true},"mid":null}`, string(out))
}

func TestValues_UnmarshalJSONNullAndErrors(t *testing.T) {
	var v Values
	require.NoError(t, json.Unmarshal([]byte(`null`), &v))
	assert.Equal(t, 0, v.Len())

	assert.Error(t, json.Unmarshal([]byte(`[1, 2]`), &v))
}
