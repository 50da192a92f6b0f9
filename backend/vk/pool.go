package vk

import "github.com/gviegas/gpuhal/handle"

// objPool wraps handle.Pool[T] with the insert/remove shape every
// object table in this backend needs: acquire a slot, write the
// native resource into it in one step, and reverse that on free.
type objPool[T any] struct {
	pool handle.Pool[T]
}

func newObjPool[T any](class handle.Class, n int) *objPool[T] {
	p := &objPool[T]{}
	p.pool.Init(class, n)
	return p
}

// insert acquires a slot, stores v in it, and returns the handle.
func (p *objPool[T]) insert(v T) handle.Handle {
	h := p.pool.Acquire()
	*p.pool.Get(h) = v
	return h
}

// remove returns the slot's value and releases it. ok is false for a
// null, out-of-range or stale handle.
func (p *objPool[T]) remove(h handle.Handle) (v T, ok bool) {
	vp, ok := p.pool.TryGet(h)
	if !ok {
		return v, false
	}
	v = *vp
	p.pool.Release(h)
	return v, true
}

// get returns a pointer to the slot's value without releasing it.
func (p *objPool[T]) get(h handle.Handle) (*T, bool) {
	return p.pool.TryGet(h)
}
