package jsbind_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buke/jsbind"
	"github.com/buke/jsbind/native"
)

// TestErrorFormatting tests the Error() forms of *Error and *NativeError
func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		err  *jsbind.Error
		want string
	}{
		{&jsbind.Error{Name: "TypeError", Message: "bad"}, "TypeError: bad"},
		{&jsbind.Error{Name: "Error", Message: "outer", Cause: "inner"}, "Error: outer (cause: inner)"},
		{&jsbind.Error{Value: "42"}, "uncaught 42"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}

	ne := &jsbind.NativeError{Op: "get value bool", Status: native.BooleanExpected}
	assert.Contains(t, ne.Error(), "get value bool")
	assert.Contains(t, ne.Error(), native.BooleanExpected.String())

	wrapped := errors.Wrap(ne, "reading flag")
	assert.True(t, jsbind.IsNativeStatus(wrapped, native.BooleanExpected))
	assert.False(t, jsbind.IsNativeStatus(wrapped, native.NumberExpected))
	assert.False(t, jsbind.IsNativeStatus(errors.New("other"), native.BooleanExpected))
}

// TestErrorCause tests that an error's cause is carried to Go
func TestErrorCause(t *testing.T) {
	env := newEnvironment(t)
	defer env.Close()

	_, err := env.RootScope().Eval(`
		var e = new Error("outer");
		e.cause = "disk full";
		throw e;
	`)
	var jsErr *jsbind.Error
	require.ErrorAs(t, err, &jsErr)
	assert.Equal(t, "Error", jsErr.Name)
	assert.Equal(t, "outer", jsErr.Message)
	assert.Equal(t, "disk full", jsErr.Cause)
	assert.Equal(t, "Error: outer (cause: disk full)", jsErr.Error())
}
