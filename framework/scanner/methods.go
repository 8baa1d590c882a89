package scanner

import (
	"fmt"
	"reflect"

	"github.com/km-arc/go-ioc/framework/descriptor"
)

var errorType = reflect.TypeFor[error]()

// method returns the signature of t's method name without the receiver.
func method(t reflect.Type, name string) (reflect.Type, error) {
	m, ok := t.MethodByName(name)
	if !ok {
		return nil, fmt.Errorf("%s has no method %s", descriptor.TypeName(t), name)
	}
	if t.Kind() == reflect.Interface {
		return m.Type, nil
	}
	in := make([]reflect.Type, m.Type.NumIn()-1)
	for i := range in {
		in[i] = m.Type.In(i + 1)
	}
	out := make([]reflect.Type, m.Type.NumOut())
	for i := range out {
		out[i] = m.Type.Out(i)
	}
	return reflect.FuncOf(in, out, m.Type.IsVariadic()), nil
}

// returnsError reports whether sig returns nothing, or only an error.
func returnsError(sig reflect.Type) (bool, bool) {
	switch {
	case sig.NumOut() == 0:
		return false, true
	case sig.NumOut() == 1 && sig.Out(0) == errorType:
		return true, true
	}
	return false, false
}

// bound calls instance's method name with args.
func bound(instance any, name string, args []reflect.Value) ([]reflect.Value, error) {
	m := reflect.ValueOf(instance).MethodByName(name)
	if !m.IsValid() {
		return nil, fmt.Errorf("%T has no method %s", instance, name)
	}
	return m.Call(args), nil
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}

// hookMethod binds a zero-argument func() or func() error method.
func hookMethod(t reflect.Type, name string) (descriptor.Hook, error) {
	sig, err := method(t, name)
	if err != nil {
		return nil, err
	}
	withErr, ok := returnsError(sig)
	if sig.NumIn() != 0 || !ok {
		return nil, fmt.Errorf("hook %s must be func() or func() error, got %s", name, sig)
	}
	return func(instance any) error {
		out, err := bound(instance, name, nil)
		if err != nil || !withErr {
			return err
		}
		return asError(out[0])
	}, nil
}

// productMethod binds a zero-argument factory method returning T or (T, error).
func productMethod(t reflect.Type, p Product, tags []string) (descriptor.Product, error) {
	sig, err := method(t, p.Method)
	if err != nil {
		return descriptor.Product{}, err
	}
	switch {
	case sig.NumIn() != 0:
		return descriptor.Product{}, fmt.Errorf("factory method %s must take no arguments", p.Method)
	case sig.NumOut() == 1:
	case sig.NumOut() == 2 && sig.Out(1) == errorType:
	default:
		return descriptor.Product{}, fmt.Errorf("factory method %s must return T or (T, error)", p.Method)
	}
	concrete := sig.Out(0)
	declared := concrete
	if p.Type != nil {
		if !concrete.AssignableTo(p.Type) {
			return descriptor.Product{}, fmt.Errorf("factory method %s returns %s, not assignable to %s", p.Method, concrete, p.Type)
		}
		declared = p.Type
	}

	product := descriptor.Product{
		Name:      p.Method,
		Type:      declared,
		Qualifier: p.Qualifier,
		Scope:     p.Scope,
		Tags:      tags,
		Proxy:     p.Proxy,
	}
	if p.PostInit != "" {
		if product.PostInit, err = hookMethod(concrete, p.PostInit); err != nil {
			return descriptor.Product{}, err
		}
	}
	if p.PreDestroy != "" {
		if product.PreDestroy, err = hookMethod(concrete, p.PreDestroy); err != nil {
			return descriptor.Product{}, err
		}
	}
	name := p.Method
	withErr := sig.NumOut() == 2
	product.Produce = func(parent any) (any, error) {
		out, err := bound(parent, name, nil)
		if err != nil {
			return nil, err
		}
		if withErr {
			if err := asError(out[1]); err != nil {
				return nil, err
			}
		}
		return out[0].Interface(), nil
	}
	return product, nil
}

// startupMethod binds a method whose parameters are resolved from the
// container and which returns nothing or an error.
func startupMethod(t reflect.Type, name string) (descriptor.StartupMethod, error) {
	sig, err := method(t, name)
	if err != nil {
		return descriptor.StartupMethod{}, err
	}
	withErr, ok := returnsError(sig)
	if !ok || sig.IsVariadic() {
		return descriptor.StartupMethod{}, fmt.Errorf("startup method %s must return nothing or an error, got %s", name, sig)
	}
	params := make([]descriptor.Param, sig.NumIn())
	for i := range params {
		params[i].Type = sig.In(i)
	}
	return descriptor.StartupMethod{
		Name:   name,
		Params: params,
		Invoke: func(instance any, args []any) error {
			in, err := descriptor.Arguments(params, args)
			if err != nil {
				return err
			}
			out, err := bound(instance, name, in)
			if err != nil || !withErr {
				return err
			}
			return asError(out[0])
		},
	}, nil
}
