package gantry

import "fmt"

// keeper is an ordered handle table. Entities stay in declaration order; the
// first occurrence of a handle claims its index, later duplicates mark the
// handle collided while the entities themselves remain in the sequence.
//
// A keeper is rebuilt once per lifecycle stage (compositions, then pending
// containers, then running containers) with rekey, which carries the handle
// and collision tables forward so lookup behavior never changes mid-run.
type keeper[T any] struct {
	kept       []T
	handles    map[string]int
	collisions map[string]struct{}
}

func newKeeper[T any]() keeper[T] {
	return keeper[T]{
		handles:    make(map[string]int),
		collisions: make(map[string]struct{}),
	}
}

// insert appends the entity and claims the handle for it unless the handle
// is already taken, in which case the handle becomes collided.
func (k *keeper[T]) insert(handle string, entity T) {
	if _, taken := k.handles[handle]; taken {
		k.collisions[handle] = struct{}{}
	} else {
		k.handles[handle] = len(k.kept)
	}
	k.kept = append(k.kept, entity)
}

// resolve returns the entity claimed by handle. Collided handles never
// resolve, even though both entities remain in the sequence.
func (k *keeper[T]) resolve(handle string) (T, error) {
	var zero T
	if _, collided := k.collisions[handle]; collided {
		return zero, &HandleError{Handle: handle, Collided: true}
	}
	idx, ok := k.handles[handle]
	if !ok {
		return zero, &HandleError{Handle: handle}
	}
	return k.kept[idx], nil
}

// rekey builds the next lifecycle stage's keeper around a new entity slice,
// reusing the previous stage's handle and collision tables. The entities
// must be in the same declaration order as the source keeper's.
func rekey[U, T any](prev keeper[T], entities []U) (keeper[U], error) {
	if len(entities) != len(prev.kept) {
		return keeper[U]{}, &ProcessingError{
			Msg: fmt.Sprintf("keeper rebuild: %d entities for %d slots", len(entities), len(prev.kept)),
		}
	}
	return keeper[U]{
		kept:       entities,
		handles:    prev.handles,
		collisions: prev.collisions,
	}, nil
}

// HandleError reports a failed handle lookup: either no entity claimed the
// handle, or more than one did.
type HandleError struct {
	Handle   string
	Collided bool
}

func (e *HandleError) Error() string {
	if e.Collided {
		return fmt.Sprintf("handle %q is used by multiple containers", e.Handle)
	}
	return fmt.Sprintf("handle %q does not exist", e.Handle)
}
