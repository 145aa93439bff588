package jsbind_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buke/jsbind"
)

// TestArray tests the Array view over a JS array
func TestArray(t *testing.T) {
	env := newEnvironment(t)
	defer env.Close()
	s := env.RootScope()

	ints := func(vals ...int64) []jsbind.Value {
		out := make([]jsbind.Value, len(vals))
		for i, n := range vals {
			v, err := s.Int(n)
			require.NoError(t, err)
			out[i] = v
		}
		return out
	}

	v, err := s.Array(ints(2, 3)...)
	require.NoError(t, err)
	arr, err := jsbind.AsArray(v)
	require.NoError(t, err)

	n, err := arr.Push(ints(4, 5)...)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	n, err = arr.Unshift(ints(1)...)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	last, err := arr.Pop()
	require.NoError(t, err)
	require.Equal(t, "5", last.String())

	first, err := arr.Shift()
	require.NoError(t, err)
	require.Equal(t, "1", first.String())

	el, err := arr.Get(1)
	require.NoError(t, err)
	require.Equal(t, "3", el.String())

	require.NoError(t, arr.Set(0, ints(20)[0]))
	exported, err := arr.ToValue().Export()
	require.NoError(t, err)
	require.Equal(t, []interface{}{int64(20), int64(3), int64(4)}, exported)

	_, err = arr.Get(3)
	require.Error(t, err)
	require.Contains(t, err.Error(), "index 3, length 3")
	require.Error(t, arr.Set(-1, ints(0)[0]))

	values, err := arr.Values()
	require.NoError(t, err)
	require.Len(t, values, 3)

	// popping an empty array yields undefined
	empty, err := s.Array()
	require.NoError(t, err)
	emptyArr, err := jsbind.AsArray(empty)
	require.NoError(t, err)
	popped, err := emptyArr.Pop()
	require.NoError(t, err)
	require.True(t, popped.IsUndefined())

	obj, err := s.Object()
	require.NoError(t, err)
	_, err = jsbind.AsArray(obj)
	require.Error(t, err)
}
