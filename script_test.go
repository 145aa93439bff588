package jsbind_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buke/jsbind"
)

// TestRunScript tests script evaluation and syntax errors
func TestRunScript(t *testing.T) {
	env := newEnvironment(t)
	defer env.Close()
	s := env.RootScope()

	v, err := s.RunScript(`var total = 0; for (var i = 1; i <= 4; i++) total += i; total`, "sum.js")
	require.NoError(t, err)
	n, err := v.ToInt64()
	require.NoError(t, err)
	require.EqualValues(t, 10, n)

	// globals persist between scripts
	v, err = s.Eval(`total * 2`)
	require.NoError(t, err)
	require.Equal(t, "20", v.String())

	_, err = s.RunScript(`function (`, "broken.js")
	var jsErr *jsbind.Error
	require.ErrorAs(t, err, &jsErr)
	require.Equal(t, "SyntaxError", jsErr.Name)
}

// TestRunTypeScript tests evaluating TypeScript source
func TestRunTypeScript(t *testing.T) {
	env := newEnvironment(t)
	defer env.Close()
	s := env.RootScope()

	v, err := s.RunTypeScript(`
		interface Shape { area(): number }
		class Square implements Shape {
			constructor(private side: number) {}
			area(): number { return this.side * this.side; }
		}
		const shapes: Shape[] = [new Square(3), new Square(4)];
		shapes.map((sh) => sh.area()).join("+");
	`, "shapes.ts")
	require.NoError(t, err)
	require.Equal(t, "9+16", v.String())
}

// TestTranspileTypeScript tests the TypeScript transform on its own
func TestTranspileTypeScript(t *testing.T) {
	js, err := jsbind.TranspileTypeScript(`let n: number = 1;`, "n.ts")
	require.NoError(t, err)
	require.Contains(t, js, "let n = 1;")
	require.NotContains(t, js, "number")

	_, err = jsbind.TranspileTypeScript(`let n: = ;`, "bad.ts")
	var jsErr *jsbind.Error
	require.ErrorAs(t, err, &jsErr)
	require.Equal(t, "SyntaxError", jsErr.Name)
	require.Contains(t, jsErr.Message, "bad.ts:1:")
}
