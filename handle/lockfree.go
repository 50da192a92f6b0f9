package handle

import "sync/atomic"

// LockFreePool is a fixed-capacity object pool analogous to Pool, but
// using an atomic CAS loop on the free-list head instead of a mutex.
// It exists for pools on hot paths — the reference implementation
// singles out the command-list pool, which is acquired and released
// from arbitrary client threads on every recording.
//
// The free-list head is packed with an ABA-guarding tag: each
// successful pop/push increments the tag, so a thread that reads the
// head, gets preempted, and later CASes against a head value that has
// since been recycled back to the same index will observe a tag
// mismatch and retry instead of corrupting the list.
type LockFreePool[T any] struct {
	class Class
	slots []lfSlot[T]
	head  atomic.Uint64 // packed (index:32, tag:32)
	rem   atomic.Int64
}

type lfSlot[T any] struct {
	value atomic.Pointer[T]
	next  uint32
	gen   atomic.Uint32
	free  atomic.Bool
}

func packHeadTag(index uint32, tag uint32) uint64 {
	return uint64(index)<<32 | uint64(tag)
}

func unpackHeadTag(v uint64) (index, tag uint32) {
	return uint32(v >> 32), uint32(v)
}

// Init reserves capacity for n objects of class c.
func (p *LockFreePool[T]) Init(class Class, n int) {
	if n > MaxIndex+1 {
		panic("handle: lock-free pool capacity exceeds max index")
	}
	p.class = class
	p.slots = make([]lfSlot[T], n)
	for i := range p.slots {
		p.slots[i].free.Store(true)
		if i+1 < n {
			p.slots[i].next = uint32(i + 1)
		} else {
			p.slots[i].next = noFree
		}
	}
	if n == 0 {
		p.head.Store(packHeadTag(noFree, 0))
	} else {
		p.head.Store(packHeadTag(0, 0))
	}
	p.rem.Store(int64(n))
}

// Cap returns the fixed capacity of the pool.
func (p *LockFreePool[T]) Cap() int { return len(p.slots) }

// Acquire pops a slot from the free list. Fatal on overflow, per the
// fixed-capacity invariant.
func (p *LockFreePool[T]) Acquire() Handle {
	for {
		cur := p.head.Load()
		idx, tag := unpackHeadTag(cur)
		if idx == noFree {
			panic("handle: lock-free pool exhausted (fixed capacity overflow)")
		}
		next := p.slots[idx].next
		newHead := packHeadTag(next, tag+1)
		if p.head.CompareAndSwap(cur, newHead) {
			p.rem.Add(-1)
			p.slots[idx].free.Store(false)
			gen := p.slots[idx].gen.Load()
			return Pack(idx, gen, p.class)
		}
	}
}

// Release pushes h's slot back onto the free list and bumps its
// generation.
func (p *LockFreePool[T]) Release(h Handle) {
	i := h.Index()
	if int(i) >= len(p.slots) {
		panic("handle: release of out-of-range handle")
	}
	s := &p.slots[i]
	if s.free.Load() || s.gen.Load() != h.Generation() {
		panic("handle: double free or stale handle release")
	}
	s.value.Store(nil)
	s.gen.Store((h.Generation() + 1) & genMask)
	s.free.Store(true)
	for {
		cur := p.head.Load()
		idx, tag := unpackHeadTag(cur)
		s.next = idx
		newHead := packHeadTag(i, tag+1)
		if p.head.CompareAndSwap(cur, newHead) {
			p.rem.Add(1)
			return
		}
	}
}

// IsAlive reports whether h currently maps to a live object.
func (p *LockFreePool[T]) IsAlive(h Handle) bool {
	i := h.Index()
	if h.IsNull() || int(i) >= len(p.slots) {
		return false
	}
	s := &p.slots[i]
	return !s.free.Load() && s.gen.Load() == h.Generation()
}

// Set stores the value associated with h. Only valid between Acquire
// and Release of the same handle.
func (p *LockFreePool[T]) Set(h Handle, v *T) {
	i := h.Index()
	p.slots[i].value.Store(v)
}

// Get returns the value associated with h, panicking on a stale or
// out-of-range handle (use-after-free trap).
func (p *LockFreePool[T]) Get(h Handle) *T {
	i := h.Index()
	if h.IsNull() || int(i) >= len(p.slots) {
		panic("handle: invalid handle (out of range)")
	}
	s := &p.slots[i]
	if s.free.Load() || s.gen.Load() != h.Generation() {
		panic("handle: use-after-free (generation mismatch)")
	}
	return s.value.Load()
}
