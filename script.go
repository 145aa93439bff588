package jsbind

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/buke/jsbind/native"
)

// RunScript evaluates source as a classic script and returns its completion value.
// A thrown exception is returned as *Error.
func (s *Scope) RunScript(source, name string) (Value, error) {
	return s.create("run script", func(n native.Env) (native.Handle, native.Status) {
		return n.RunScript(source, name)
	})
}

// Eval evaluates source under the name "<eval>".
func (s *Scope) Eval(source string) (Value, error) {
	return s.RunScript(source, "<eval>")
}

// RunTypeScript strips TypeScript syntax from source and evaluates the result.
func (s *Scope) RunTypeScript(source, name string) (Value, error) {
	js, err := TranspileTypeScript(source, name)
	if err != nil {
		return Value{}, err
	}
	return s.RunScript(js, name)
}

// TranspileTypeScript converts TypeScript to ES2017 JavaScript. Syntax errors are reported
// as a SyntaxError *Error.
func TranspileTypeScript(source, name string) (string, error) {
	result := api.Transform(source, api.TransformOptions{
		Loader:     api.LoaderTS,
		Target:     api.ES2017,
		Sourcefile: name,
	})
	if len(result.Errors) > 0 {
		msgs := make([]string, len(result.Errors))
		for i, m := range result.Errors {
			if m.Location != nil {
				msgs[i] = fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text)
			} else {
				msgs[i] = m.Text
			}
		}
		return "", &Error{Name: "SyntaxError", Message: strings.Join(msgs, "; ")}
	}
	return string(result.Code), nil
}
