package descriptor

import (
	"reflect"
	"slices"
)

// Collection is a live view over every component implementing T. A consumer
// that asks for *Collection[T] keeps seeing providers registered after it was
// built; one asking for []T receives a snapshot.
type Collection[T any] struct {
	items []T
}

// All returns the current members in registration order.
func (c *Collection[T]) All() []T { return slices.Clone(c.items) }

// Len returns the number of members.
func (c *Collection[T]) Len() int { return len(c.items) }

// At returns the i-th member.
func (c *Collection[T]) At(i int) T { return c.items[i] }

func (c *Collection[T]) add(v any) {
	if t, ok := v.(T); ok {
		c.items = append(c.items, t)
	}
}

func (c *Collection[T]) elem() reflect.Type { return reflect.TypeFor[T]() }

type liveCollection interface {
	add(v any)
	elem() reflect.Type
}

var liveCollectionType = reflect.TypeFor[liveCollection]()

func isLiveCollection(t reflect.Type) bool {
	return t.Kind() == reflect.Pointer && t.Implements(liveCollectionType)
}

func newLiveCollection(t reflect.Type) liveCollection {
	return reflect.New(t.Elem()).Interface().(liveCollection)
}
