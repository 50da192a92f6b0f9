package alloclife

import "testing"

// fakeFence/fakeAlloc/fakeBuffer stand in for native driver objects so
// the pool bookkeeping can be tested without a real backend.
type fakeFence struct{ signalled bool }
type fakeAlloc struct{ resets int }
type fakeBuffer struct{}

func fakeOps() NativeOps[*fakeFence, *fakeAlloc, fakeBuffer] {
	return NativeOps[*fakeFence, *fakeAlloc, fakeBuffer]{
		CreateFence:       func() *fakeFence { return &fakeFence{} },
		WaitFence:         func(f *fakeFence) { f.signalled = true },
		FenceSignalled:    func(f *fakeFence) bool { return f.signalled },
		DestroyFence:      func(*fakeFence) {},
		CreateAllocator:   func() *fakeAlloc { return &fakeAlloc{} },
		ResetAllocator:    func(a *fakeAlloc) { a.resets++ },
		DestroyAllocator:  func(*fakeAlloc) {},
		AllocateCmdBuffer: func(*fakeAlloc) fakeBuffer { return fakeBuffer{} },
		DestroyCmdBuffer:  func(*fakeAlloc, fakeBuffer) {},
	}
}

func TestFenceRingbufferWrapsAround(t *testing.T) {
	r := NewFenceRingbuffer(2, fakeOps())
	defer r.Destroy()
	i0, _ := r.Acquire()
	i1, _ := r.Acquire()
	i2, _ := r.Acquire()
	if i0 != 0 || i1 != 1 || i2 != 0 {
		t.Fatalf("got indices %d %d %d, want 0 1 0", i0, i1, i2)
	}
}

func TestCommandAllocatorFullUntilAllAcquired(t *testing.T) {
	ring := NewFenceRingbuffer(1, fakeOps())
	a := newCommandAllocator(fakeOps(), ring, 2)
	if a.IsFull() {
		t.Fatal("must not be full before any acquire")
	}
	a.Acquire()
	if a.IsFull() {
		t.Fatal("must not be full after one of two acquires")
	}
	a.Acquire()
	if !a.IsFull() {
		t.Fatal("must be full after acquiring every buffer")
	}
}

func TestCommandAllocatorCanResetOnlyWhenCountersMatch(t *testing.T) {
	ring := NewFenceRingbuffer(1, fakeOps())
	a := newCommandAllocator(fakeOps(), ring, 2)
	a.Acquire()
	a.Acquire()
	if a.CanReset() {
		t.Fatal("must not be resettable before every buffer is accounted for")
	}
	a.OnDiscard(1)
	if a.CanReset() {
		t.Fatal("still one buffer unaccounted for")
	}
	fi, _ := ring.Acquire()
	a.OnSubmit(1, fi)
	if !a.CanReset() {
		t.Fatal("every buffer discarded or submitted: must be resettable")
	}
}

func TestCommandAllocatorTryResetWaitsOnUnsignalledFence(t *testing.T) {
	ring := NewFenceRingbuffer(1, fakeOps())
	a := newCommandAllocator(fakeOps(), ring, 1)
	a.Acquire()
	fi, _ := ring.Acquire()
	a.OnSubmit(1, fi)
	if a.TryReset() {
		t.Fatal("fence is not yet signalled, must not reset")
	}
	ring.Wait(fi) // signals the fake fence
	if !a.TryReset() {
		t.Fatal("fence now signalled, must reset")
	}
	if a.IsFull() {
		t.Fatal("allocator must be empty after reset")
	}
}

func TestCommandAllocatorBundleAdvancesPastFullAllocator(t *testing.T) {
	ring := NewFenceRingbuffer(4, fakeOps())
	b := NewCommandAllocatorBundle(fakeOps(), ring, 2, 1)
	defer b.Destroy()

	_, a0 := b.AcquireMemory()
	if a0 != b.allocators[0] {
		t.Fatal("first acquire must come from the first allocator")
	}
	_, a1 := b.AcquireMemory()
	if a1 != b.allocators[1] {
		t.Fatalf("second acquire must advance to the next allocator once the first is full")
	}
}
