// Package alloclife implements the backend-agnostic half of command-list
// lifetime management: a ringbuffer of reusable synchronization fences,
// and the allocator bundles that hand out native command buffers and
// decide when a pool of them can be reset.
//
// Both backends share this bookkeeping; only the native calls that
// create a fence, ask whether it is signalled, reset a command-buffer
// pool, and so on differ, so those are supplied as callbacks
// (NativeOps) rather than hard-coded here.
package alloclife

import "sync/atomic"

// NativeOps supplies the backend-specific operations a FenceRingbuffer
// and CommandAllocator need to perform against real driver objects.
// F is the native fence type (VkFence-equivalent, ID3D12Fence-
// equivalent), A the native command-allocator/pool type, and C the
// native command-buffer/list type.
type NativeOps[F, A, C any] struct {
	CreateFence    func() F
	WaitFence      func(F)
	FenceSignalled func(F) bool
	DestroyFence   func(F)

	CreateAllocator   func() A
	ResetAllocator    func(A)
	DestroyAllocator  func(A)
	AllocateCmdBuffer func(A) C
	DestroyCmdBuffer  func(A, C)
}

// FenceRingbuffer is a fixed-size ring of fences reused across
// submissions, each refcounted by the allocators currently depending
// on it. Unsynchronized: one instance per PerThread
// set, never touched concurrently from more than one submitting
// goroutine at a time — the surrounding Backend.Submit call provides
// that exclusion.
type FenceRingbuffer[F, A, C any] struct {
	ops   NativeOps[F, A, C]
	nodes []fenceNode[F]
	next  uint32
}

type fenceNode[F any] struct {
	fence    F
	refCount atomic.Int32
}

// NewFenceRingbuffer creates a ring of n fences, each created via
// ops.CreateFence.
func NewFenceRingbuffer[F, A, C any](n int, ops NativeOps[F, A, C]) *FenceRingbuffer[F, A, C] {
	r := &FenceRingbuffer[F, A, C]{ops: ops, nodes: make([]fenceNode[F], n)}
	for i := range r.nodes {
		r.nodes[i].fence = ops.CreateFence()
	}
	return r
}

// Destroy releases every fence in the ring.
func (r *FenceRingbuffer[F, A, C]) Destroy() {
	for i := range r.nodes {
		r.ops.DestroyFence(r.nodes[i].fence)
	}
}

// Acquire returns the index of the next fence in the ring, with an
// initial refcount of 1. Not safe to call concurrently.
func (r *FenceRingbuffer[F, A, C]) Acquire() (index uint32, fence F) {
	index = r.next
	r.next = (r.next + 1) % uint32(len(r.nodes))
	r.nodes[index].refCount.Store(1)
	return index, r.nodes[index].fence
}

// Wait blocks until the fence at index is signalled.
func (r *FenceRingbuffer[F, A, C]) Wait(index uint32) { r.ops.WaitFence(r.nodes[index].fence) }

// Signalled reports whether the fence at index is currently signalled.
func (r *FenceRingbuffer[F, A, C]) Signalled(index uint32) bool {
	return r.ops.FenceSignalled(r.nodes[index].fence)
}

// IncRef increments the fence's dependent-allocator count.
func (r *FenceRingbuffer[F, A, C]) IncRef(index uint32) { r.nodes[index].refCount.Add(1) }

// DecRef decrements the fence's dependent-allocator count.
func (r *FenceRingbuffer[F, A, C]) DecRef(index uint32) { r.nodes[index].refCount.Add(-1) }

// CommandAllocator is a single native allocator together with the
// command buffers carved out of it and the bookkeeping needed to know
// when it is safe to reset. Unsynchronized: owned by exactly one
// CommandAllocatorBundle.
type CommandAllocator[F, A, C any] struct {
	ring  *FenceRingbuffer[F, A, C]
	ops   NativeOps[F, A, C]
	alloc A

	buffers   []C
	numInFlight int

	numDiscarded          atomic.Uint32
	numPendingExecution   atomic.Uint32
	latestFence           atomic.Int64 // -1 encoded as ^int64(0) cast; -1 means none
}

const noFence = -1

func newCommandAllocator[F, A, C any](ops NativeOps[F, A, C], ring *FenceRingbuffer[F, A, C], numCmdLists int) *CommandAllocator[F, A, C] {
	a := &CommandAllocator[F, A, C]{ring: ring, ops: ops, alloc: ops.CreateAllocator()}
	a.latestFence.Store(noFence)
	a.buffers = make([]C, 0, numCmdLists)
	for i := 0; i < numCmdLists; i++ {
		a.buffers = append(a.buffers, ops.AllocateCmdBuffer(a.alloc))
	}
	return a
}

func (a *CommandAllocator[F, A, C]) destroy() {
	for _, c := range a.buffers {
		a.ops.DestroyCmdBuffer(a.alloc, c)
	}
	a.ops.DestroyAllocator(a.alloc)
}

// Native returns the backend-native allocator object wrapped by a,
// needed by backends whose command-buffer Reset call takes the
// allocator it was carved from as an argument (D3D12's
// ID3D12GraphicsCommandList.Reset, unlike vkBeginCommandBuffer, which
// needs no such reference).
func (a *CommandAllocator[F, A, C]) Native() A { return a.alloc }

// IsFull reports whether every command buffer in this allocator has
// been given out.
func (a *CommandAllocator[F, A, C]) IsFull() bool { return a.numInFlight == len(a.buffers) }

func (a *CommandAllocator[F, A, C]) submitCounterUpToDate() bool {
	return uint32(a.numInFlight) == a.numDiscarded.Load()+a.numPendingExecution.Load()
}

// CanReset reports whether this allocator is full and every buffer it
// handed out has since been either discarded or completed execution,
// i.e. it is safe to reset.
func (a *CommandAllocator[F, A, C]) CanReset() bool { return a.IsFull() && a.submitCounterUpToDate() }

// Acquire hands out the next unused command buffer. Callers must not
// call this when IsFull returns true.
func (a *CommandAllocator[F, A, C]) Acquire() C {
	c := a.buffers[a.numInFlight]
	a.numInFlight++
	return c
}

// OnDiscard records that num previously-acquired command buffers will
// never be submitted. Safe to call from any goroutine.
func (a *CommandAllocator[F, A, C]) OnDiscard(num int) { a.numDiscarded.Add(uint32(num)) }

// OnSubmit records that num previously-acquired command buffers were
// submitted under fenceIndex, the ring index returned by a prior
// FenceRingbuffer.Acquire call whose refcount already accounts for
// this allocator. Safe to call from any goroutine.
func (a *CommandAllocator[F, A, C]) OnSubmit(num int, fenceIndex uint32) {
	a.numPendingExecution.Add(uint32(num))
	prev := a.latestFence.Swap(int64(fenceIndex))
	if prev != noFence {
		a.ring.DecRef(uint32(prev))
	}
}

// TryReset performs a non-blocking reset attempt, returning true if
// the allocator is immediately usable afterward (either it was
// already resettable, or it did not need resetting).
func (a *CommandAllocator[F, A, C]) TryReset() bool {
	if !a.IsFull() {
		return true
	}
	if !a.submitCounterUpToDate() {
		return false
	}
	fi := a.latestFence.Load()
	if fi != noFence && !a.ring.Signalled(uint32(fi)) {
		return false
	}
	a.doReset()
	return true
}

// TryResetBlocking is TryReset but blocks on the allocator's latest
// fence instead of giving up when it is not yet signalled.
func (a *CommandAllocator[F, A, C]) TryResetBlocking() bool {
	if !a.IsFull() {
		return true
	}
	if !a.submitCounterUpToDate() {
		return false
	}
	if fi := a.latestFence.Load(); fi != noFence {
		a.ring.Wait(uint32(fi))
	}
	a.doReset()
	return true
}

func (a *CommandAllocator[F, A, C]) doReset() {
	a.ops.ResetAllocator(a.alloc)
	a.numInFlight = 0
	a.numDiscarded.Store(0)
	a.numPendingExecution.Store(0)
	if fi := a.latestFence.Swap(noFence); fi != noFence {
		a.ring.DecRef(uint32(fi))
	}
}

// CommandAllocatorBundle circles through a fixed set of
// CommandAllocators, soft-resetting each as it becomes eligible.
// Unsynchronized: one instance per (recording thread, queue type)
// pair.
type CommandAllocatorBundle[F, A, C any] struct {
	allocators []*CommandAllocator[F, A, C]
	active     int
}

// NewCommandAllocatorBundle creates numAllocators allocators, each
// with numCmdListsPerAllocator command buffers.
func NewCommandAllocatorBundle[F, A, C any](ops NativeOps[F, A, C], ring *FenceRingbuffer[F, A, C], numAllocators, numCmdListsPerAllocator int) *CommandAllocatorBundle[F, A, C] {
	b := &CommandAllocatorBundle[F, A, C]{allocators: make([]*CommandAllocator[F, A, C], numAllocators)}
	for i := range b.allocators {
		b.allocators[i] = newCommandAllocator(ops, ring, numCmdListsPerAllocator)
	}
	return b
}

// Destroy releases every allocator in the bundle.
func (b *CommandAllocatorBundle[F, A, C]) Destroy() {
	for _, a := range b.allocators {
		a.destroy()
	}
}

// AcquireMemory returns a command buffer backed by whichever allocator
// in the bundle is currently active, advancing past any allocator
// that is full and not yet resettable, and blocking on the active one
// if every allocator in the bundle is in that state.
func (b *CommandAllocatorBundle[F, A, C]) AcquireMemory() (C, *CommandAllocator[F, A, C]) {
	b.updateActive()
	a := b.allocators[b.active]
	return a.Acquire(), a
}

func (b *CommandAllocatorBundle[F, A, C]) updateActive() {
	a := b.allocators[b.active]
	if !a.IsFull() {
		return
	}
	if a.TryReset() {
		return
	}
	for i := 0; i < len(b.allocators); i++ {
		next := (b.active + 1 + i) % len(b.allocators)
		cand := b.allocators[next]
		if !cand.IsFull() || cand.TryReset() {
			b.active = next
			return
		}
	}
	// Every allocator is full and none could be soft-reset: block on
	// the active one, the way a single-threaded recorder must.
	a.TryResetBlocking()
}

// PerThread groups one CommandAllocatorBundle per queue type, the
// per-recording-thread unit the higher-level command-list pool hands
// out memory from.
type PerThread[F, A, C any] struct {
	Direct, Compute, Copy *CommandAllocatorBundle[F, A, C]
}

// Destroy releases every bundle in the group.
func (p *PerThread[F, A, C]) Destroy() {
	p.Direct.Destroy()
	p.Compute.Destroy()
	p.Copy.Destroy()
}
