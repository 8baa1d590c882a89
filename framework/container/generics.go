package container

import (
	"fmt"
	"reflect"
)

// ── Generics helpers ──────────────────────────────────────────────────────────

// Get is a generic Lookup that type-asserts the result.
//
//	// Instead of: v, ok := c.Lookup(reflect.TypeFor[UserRepository]())
//	// Write:      repo, ok := container.Get[UserRepository](c)
func Get[T any](c *Container) (T, bool) {
	return GetNamed[T](c, "")
}

// GetNamed is Get restricted to a qualifier.
func GetNamed[T any](c *Container, qualifier string) (T, bool) {
	v, ok := c.LookupNamed(reflect.TypeFor[T](), qualifier)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// MustGet is like Get but panics when nothing matches.
func MustGet[T any](c *Container) T {
	v, ok := Get[T](c)
	if !ok {
		panic(fmt.Sprintf("container: no component assignable to [%s]", reflect.TypeFor[T]()))
	}
	return v
}

// All returns every component assignable to T in registration order.
func All[T any](c *Container) []T {
	return typed[T](c.Implementations(reflect.TypeFor[T]()))
}

// Tagged returns the components carrying tag that are assignable to T.
//
//	jobs := container.Tagged[Job](c, "scheduled")
func Tagged[T any](c *Container, tag string) []T {
	return typed[T](c.ByTag(tag))
}

// OnRebind registers a typed Rebinding callback.
func OnRebind[T any](c *Container, cb func(T)) {
	c.Rebinding(reflect.TypeFor[T](), func(v any) {
		if typed, ok := v.(T); ok {
			cb(typed)
		}
	})
}

// Reload rebuilds the first component assignable to T.
func Reload[T any](c *Container, cascade bool) (T, error) {
	var zero T
	v, err := c.ReloadType(reflect.TypeFor[T](), cascade)
	if err != nil {
		return zero, err
	}
	typed, _ := v.(T)
	return typed, nil
}

func typed[T any](vs []any) []T {
	out := make([]T, 0, len(vs))
	for _, v := range vs {
		if t, ok := v.(T); ok {
			out = append(out, t)
		}
	}
	return out
}
