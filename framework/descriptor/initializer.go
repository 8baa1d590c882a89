package descriptor

import (
	"fmt"
	"reflect"
)

var errorType = reflect.TypeFor[error]()

// Param is one initializer parameter.
type Param struct {
	Type      reflect.Type
	Qualifier string
}

// Initializer wraps the constructor function a component is built with.
// Supported shapes are func(...) T and func(...) (T, error).
type Initializer struct {
	fn         reflect.Value
	params     []Param
	out        reflect.Type
	returnsErr bool
}

// NewInitializer validates fn and binds positional qualifiers to its
// parameters. Missing qualifiers mean "any".
func NewInitializer(fn any, qualifiers ...string) (*Initializer, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("initializer must be a non-nil function, got %T", fn)
	}
	t := v.Type()
	if t.IsVariadic() {
		return nil, fmt.Errorf("initializer %s must not be variadic", t)
	}
	switch {
	case t.NumOut() == 1:
	case t.NumOut() == 2 && t.Out(1) == errorType:
	default:
		return nil, fmt.Errorf("initializer %s must return T or (T, error)", t)
	}
	if len(qualifiers) > t.NumIn() {
		return nil, fmt.Errorf("initializer %s takes %d parameters, %d qualifiers given", t, t.NumIn(), len(qualifiers))
	}

	params := make([]Param, t.NumIn())
	for i := range params {
		params[i].Type = t.In(i)
		if i < len(qualifiers) {
			params[i].Qualifier = qualifiers[i]
		}
	}
	return &Initializer{fn: v, params: params, out: t.Out(0), returnsErr: t.NumOut() == 2}, nil
}

// Type is the declared type the initializer produces.
func (i *Initializer) Type() reflect.Type { return i.out }

// Params returns the parameters in declared order.
func (i *Initializer) Params() []Param { return i.params }

// Call invokes the function. nil arguments become zero values.
func (i *Initializer) Call(args []any) (any, error) {
	if len(args) != len(i.params) {
		return nil, fmt.Errorf("want %d arguments, got %d", len(i.params), len(args))
	}
	in, err := Arguments(i.params, args)
	if err != nil {
		return nil, err
	}
	out := i.fn.Call(in)
	if i.returnsErr && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}

// Arguments converts resolved values into call arguments for params.
func Arguments(params []Param, args []any) ([]reflect.Value, error) {
	in := make([]reflect.Value, len(params))
	for k, p := range params {
		if args[k] == nil {
			in[k] = reflect.Zero(p.Type)
			continue
		}
		av := reflect.ValueOf(args[k])
		if !av.Type().AssignableTo(p.Type) {
			return nil, fmt.Errorf("argument %d: %s is not assignable to %s", k, av.Type(), p.Type)
		}
		in[k] = av
	}
	return in, nil
}

// TypeName is the display name used in logs, errors and lookups.
func TypeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
