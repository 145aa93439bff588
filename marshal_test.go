package jsbind_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buke/jsbind"
)

type point struct {
	X, Y int
}

func (p point) MarshalJS(s *jsbind.Scope) (jsbind.Value, error) {
	return s.Eval(`({kind: "point"})`)
}

type record struct {
	Name     string            `js:"name"`
	Count    int               `json:"count,omitempty"`
	Ratio    float64           `js:"ratio"`
	Tags     []string          `js:"tags"`
	Meta     map[string]uint16 `js:"meta"`
	Raw      []byte            `js:"raw"`
	Missing  *int              `js:"missing"`
	Skipped  string            `js:"-"`
	Untagged bool
	hidden   string
}

// TestMarshal tests converting Go values into JS values
func TestMarshal(t *testing.T) {
	env := newEnvironment(t)
	defer env.Close()
	s := env.RootScope()

	in := record{
		Name:     "r",
		Count:    3,
		Ratio:    0.5,
		Tags:     []string{"a", "b"},
		Meta:     map[string]uint16{"port": 8080},
		Raw:      []byte{1, 2},
		Skipped:  "no",
		Untagged: true,
		hidden:   "no",
	}
	v, err := s.Marshal(&in)
	require.NoError(t, err)
	require.True(t, v.IsObject())

	keys, err := v.Keys()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"name", "count", "ratio", "tags", "meta", "raw", "missing", "Untagged"}, keys)

	out, err := v.Export()
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{
		"name":     "r",
		"count":    int64(3),
		"ratio":    0.5,
		"tags":     []interface{}{"a", "b"},
		"meta":     map[string]interface{}{"port": int64(8080)},
		"raw":      []byte{1, 2},
		"missing":  nil,
		"Untagged": true,
	}, out)
}

// TestMarshalSpecialValues tests marshaling of nil, values, functions, errors and Marshalers
func TestMarshalSpecialValues(t *testing.T) {
	env := newEnvironment(t)
	defer env.Close()
	s := env.RootScope()

	null, err := s.Marshal(nil)
	require.NoError(t, err)
	require.True(t, null.IsNull())

	var nilSlice []int
	null, err = s.Marshal(nilSlice)
	require.NoError(t, err)
	require.True(t, null.IsNull())

	orig, err := s.String("same")
	require.NoError(t, err)
	same, err := s.Marshal(orig)
	require.NoError(t, err)
	eq, err := same.StrictEquals(orig)
	require.NoError(t, err)
	require.True(t, eq)

	fn, err := s.Marshal(func(a *jsbind.CallbackArgs) (jsbind.Value, error) {
		return a.Scope.String("called")
	})
	require.NoError(t, err)
	res, err := fn.Call(jsbind.Undefined)
	require.NoError(t, err)
	require.Equal(t, "called", res.String())

	errV, err := s.Marshal(errors.New("broken"))
	require.NoError(t, err)
	require.True(t, errV.IsError())
	msg, err := errV.Get(jsbind.Key("message"))
	require.NoError(t, err)
	require.Equal(t, "broken", msg.String())

	custom, err := s.Marshal([]point{{1, 2}})
	require.NoError(t, err)
	out, err := custom.Export()
	require.NoError(t, err)
	require.Equal(t, []interface{}{map[string]interface{}{"kind": "point"}}, out)

	arr, err := s.Marshal([2]int{7, 8})
	require.NoError(t, err)
	require.True(t, arr.IsArray())

	_, err = s.Marshal(make(chan int))
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot marshal")
}

// TestExport tests converting JS values into Go values
func TestExport(t *testing.T) {
	env := newEnvironment(t)
	defer env.Close()
	s := env.RootScope()

	v, err := s.Eval(`({
		n: 1.25, i: -4, big: 1e300, s: "str", b: false, u: undefined, z: null,
		list: [1, "two", [3]], nested: {deep: true}
	})`)
	require.NoError(t, err)
	out, err := v.Export()
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{
		"n":      1.25,
		"i":      int64(-4),
		"big":    1e300,
		"s":      "str",
		"b":      false,
		"u":      nil,
		"z":      nil,
		"list":   []interface{}{int64(1), "two", []interface{}{int64(3)}},
		"nested": map[string]interface{}{"deep": true},
	}, out)

	fn, err := s.Eval(`(function () {})`)
	require.NoError(t, err)
	got, err := fn.Export()
	require.NoError(t, err)
	require.IsType(t, jsbind.Value{}, got)

	undef, err := jsbind.Undefined.Export()
	require.NoError(t, err)
	require.Nil(t, undef)

	// cycles stop at the depth limit
	cyclic, err := s.Eval(`var c = {}; c.self = c; c`)
	require.NoError(t, err)
	_, err = cyclic.Export()
	require.Error(t, err)
	require.Contains(t, err.Error(), "nested too deeply")
}
