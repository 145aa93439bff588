package jsbind_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buke/jsbind"
)

func setGlobal(t *testing.T, s *jsbind.Scope, name string, v jsbind.Value) {
	t.Helper()
	global, err := s.Global()
	require.NoError(t, err)
	require.NoError(t, global.Set(jsbind.Key(name), v))
}

// TestFunctionArguments tests that host functions see this and their arguments
func TestFunctionArguments(t *testing.T) {
	env := newEnvironment(t)
	defer env.Close()
	s := env.RootScope()

	var (
		kind  jsbind.ScopeKind
		count int
	)
	fn, err := s.Function("concat", func(a *jsbind.CallbackArgs) (jsbind.Value, error) {
		kind = a.Scope.Kind()
		count = len(a.Args)
		prefix, err := a.This.Get(jsbind.Key("prefix"))
		if err != nil {
			return jsbind.Undefined, err
		}
		x, _ := a.Arg(0).ToString()
		y, _ := a.Arg(1).ToString()
		require.False(t, a.Arg(5).IsBound())
		return a.Scope.String(prefix.String() + x + y)
	})
	require.NoError(t, err)
	require.True(t, fn.IsFunction())
	setGlobal(t, s, "concat", fn)

	res, err := s.Eval(`concat.call({prefix: ">"}, "a", "b")`)
	require.NoError(t, err)
	require.Equal(t, ">ab", res.String())
	require.Equal(t, jsbind.ScopeCallback, kind)
	require.Equal(t, 2, count)

	name, err := s.Eval(`concat.name`)
	require.NoError(t, err)
	require.Equal(t, "concat", name.String())

	// returning the unbound sentinel yields undefined
	noop, err := s.Function("noop", func(*jsbind.CallbackArgs) (jsbind.Value, error) {
		return jsbind.Undefined, nil
	})
	require.NoError(t, err)
	setGlobal(t, s, "noop", noop)
	res, err = s.Eval(`typeof noop()`)
	require.NoError(t, err)
	require.Equal(t, "undefined", res.String())

	_, err = s.Function("nil", nil)
	require.Error(t, err)
}

// TestFunctionErrors tests that errors returned by host functions become JS exceptions
func TestFunctionErrors(t *testing.T) {
	env := newEnvironment(t)
	defer env.Close()
	s := env.RootScope()

	plain, err := s.Function("plain", func(*jsbind.CallbackArgs) (jsbind.Value, error) {
		return jsbind.Undefined, errors.New("plain failure")
	})
	require.NoError(t, err)
	setGlobal(t, s, "plain", plain)

	typed, err := s.Function("typed", func(*jsbind.CallbackArgs) (jsbind.Value, error) {
		return jsbind.Undefined, &jsbind.Error{Name: "RangeError", Message: "too far"}
	})
	require.NoError(t, err)
	setGlobal(t, s, "typed", typed)

	thrower, err := s.Function("thrower", func(a *jsbind.CallbackArgs) (jsbind.Value, error) {
		return jsbind.Undefined, jsbind.Throw(a.Arg(0))
	})
	require.NoError(t, err)
	setGlobal(t, s, "thrower", thrower)

	panicky, err := s.Function("panicky", func(*jsbind.CallbackArgs) (jsbind.Value, error) {
		panic("host exploded")
	})
	require.NoError(t, err)
	setGlobal(t, s, "panicky", panicky)

	res, err := s.Eval(`
		var out = [];
		try { plain(); } catch (e) { out.push(e instanceof Error, e.message); }
		try { typed(); } catch (e) { out.push(e instanceof RangeError, e.message); }
		try { thrower(7); } catch (e) { out.push(e === 7); }
		try { panicky(); } catch (e) { out.push(e.message.indexOf("host exploded") >= 0); }
		out.join(",");
	`)
	require.NoError(t, err)
	require.Equal(t, "true,plain failure,true,too far,true,true", res.String())

	// uncaught, the error reaches Go as *Error
	_, err = s.Eval(`typed()`)
	var jsErr *jsbind.Error
	require.ErrorAs(t, err, &jsErr)
	require.Equal(t, "RangeError", jsErr.Name)
	require.Equal(t, "too far", jsErr.Message)
}

// TestFunctionReenters tests host functions calling back into script
func TestFunctionReenters(t *testing.T) {
	env := newEnvironment(t)
	defer env.Close()
	s := env.RootScope()

	apply, err := s.Function("apply", func(a *jsbind.CallbackArgs) (jsbind.Value, error) {
		two, err := a.Scope.Int(2)
		if err != nil {
			return jsbind.Undefined, err
		}
		return a.Arg(0).Call(jsbind.Undefined, two)
	})
	require.NoError(t, err)
	setGlobal(t, s, "apply", apply)

	res, err := s.Eval(`apply(function (x) { return apply(function (y) { return x * y * 10; }); })`)
	require.NoError(t, err)
	n, err := res.ToInt64()
	require.NoError(t, err)
	require.EqualValues(t, 40, n)

	// nested callback scopes are gone once the calls return
	cur, err := jsbind.CurrentScope()
	require.NoError(t, err)
	require.Same(t, s, cur)
}
