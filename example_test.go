package jsbind_test

import (
	"context"
	"fmt"

	"github.com/buke/jsbind"
)

func ExampleEnvironment() {
	env, err := jsbind.NewEnvironment()
	if err != nil {
		panic(err)
	}
	defer env.Close()

	s := env.RootScope()
	greet, err := s.Function("greet", func(a *jsbind.CallbackArgs) (jsbind.Value, error) {
		return a.Scope.String("hello, " + a.Arg(0).String())
	})
	if err != nil {
		panic(err)
	}
	global, _ := s.Global()
	_ = global.Set(jsbind.Key("greet"), greet)

	v, err := s.Eval(`greet("world")`)
	if err != nil {
		panic(err)
	}
	fmt.Println(v)
	// Output: hello, world
}

func ExampleRuntime() {
	rt, err := jsbind.NewRuntime(jsbind.WithTimers(true))
	if err != nil {
		panic(err)
	}

	done := make(chan string, 1)
	_ = rt.Do(context.Background(), func(s *jsbind.Scope) error {
		report, err := s.Function("report", func(a *jsbind.CallbackArgs) (jsbind.Value, error) {
			done <- a.Arg(0).String()
			return jsbind.Undefined, nil
		})
		if err != nil {
			return err
		}
		global, _ := s.Global()
		if err := global.Set(jsbind.Key("report"), report); err != nil {
			return err
		}
		_, err = s.Eval(`setTimeout(function () { report("fired"); }, 10)`)
		return err
	})

	_ = rt.Close(context.Background())
	fmt.Println(<-done)
	// Output: fired
}

func ExampleScope_Marshal() {
	env, _ := jsbind.NewEnvironment()
	defer env.Close()
	s := env.RootScope()

	v, _ := s.Marshal(struct {
		Name  string `json:"name"`
		Ports []int  `json:"ports"`
	}{"web", []int{80, 443}})
	global, _ := s.Global()
	_ = global.Set(jsbind.Key("service"), v)

	out, _ := s.Eval(`service.name + ":" + service.ports.join(",")`)
	fmt.Println(out)
	// Output: web:80,443
}

func ExampleReference() {
	env, _ := jsbind.NewEnvironment()
	defer env.Close()

	inner, _ := env.OpenScope(jsbind.ScopeHandle)
	obj, _ := inner.Eval(`({id: 7})`)
	ref, _ := jsbind.NewReference(obj)
	_ = inner.Close()

	v, _ := ref.Value()
	id, _ := v.Get(jsbind.Key("id"))
	fmt.Println(id)
	_ = ref.Release()
	// Output: 7
}
