package handle

import "testing"

func TestPackUnpack(t *testing.T) {
	for _, x := range [...]struct {
		index, gen uint32
		class      Class
	}{
		{0, 0, ClassResource},
		{1, 1, ClassFence},
		{65535 & indexMask, 7, ClassCommandList},
		{42, 8191, ClassSwapchain},
	} {
		h := Pack(x.index, x.gen, x.class)
		if got := h.Index(); got != x.index {
			t.Fatalf("Handle.Index:\nhave %d\nwant %d", got, x.index)
		}
		if got := h.Generation(); got != x.gen {
			t.Fatalf("Handle.Generation:\nhave %d\nwant %d", got, x.gen)
		}
		if got := h.Class(); got != x.class {
			t.Fatalf("Handle.Class:\nhave %d\nwant %d", got, x.class)
		}
	}
}

func TestNullHandle(t *testing.T) {
	if !Null.IsNull() {
		t.Fatal("Null.IsNull: have false, want true")
	}
	if Pack(0, 0, ClassResource).IsNull() {
		t.Fatal("Pack(0,0,_).IsNull: have true, want false")
	}
}

func TestAcquireReleaseIsAlive(t *testing.T) {
	var p Pool[int]
	p.Init(ClassResource, 4)

	if p.Cap() != 4 {
		t.Fatalf("Pool.Cap:\nhave %d\nwant 4", p.Cap())
	}

	h1 := p.Acquire()
	*p.Get(h1) = 11
	if !p.IsAlive(h1) {
		t.Fatal("IsAlive(h1): have false, want true")
	}
	if got := *p.Get(h1); got != 11 {
		t.Fatalf("Get(h1):\nhave %d\nwant 11", got)
	}

	p.Release(h1)
	if p.IsAlive(h1) {
		t.Fatal("IsAlive(h1) after release: have true, want false")
	}

	h2 := p.Acquire()
	if h1.Index() != h2.Index() {
		t.Fatalf("expected slot reuse: h1.Index=%d h2.Index=%d", h1.Index(), h2.Index())
	}
	if h1 == h2 {
		t.Fatal("reused handle compares equal to the stale one, want distinct generations")
	}
	if !p.IsAlive(h2) {
		t.Fatal("IsAlive(h2): have false, want true")
	}
}

func TestGetPanicsOnStaleHandle(t *testing.T) {
	var p Pool[int]
	p.Init(ClassResource, 1)
	h := p.Acquire()
	p.Release(h)

	defer func() {
		if recover() == nil {
			t.Fatal("Get on stale handle did not panic")
		}
	}()
	p.Get(h)
}

func TestPoolFullIsFatal(t *testing.T) {
	var p Pool[int]
	p.Init(ClassResource, 1)
	p.Acquire()
	if !p.Full() {
		t.Fatal("Full: have false, want true")
	}

	defer func() {
		if recover() == nil {
			t.Fatal("Acquire on full pool did not panic")
		}
	}()
	p.Acquire()
}

func TestDoubleReleasePanics(t *testing.T) {
	var p Pool[int]
	p.Init(ClassResource, 1)
	h := p.Acquire()
	p.Release(h)

	defer func() {
		if recover() == nil {
			t.Fatal("double Release did not panic")
		}
	}()
	p.Release(h)
}

func TestIterateSkipsFreedSlots(t *testing.T) {
	var p Pool[int]
	p.Init(ClassResource, 4)
	h0 := p.Acquire()
	h1 := p.Acquire()
	h2 := p.Acquire()
	*p.Get(h0) = 100
	*p.Get(h1) = 101
	*p.Get(h2) = 102
	p.Release(h1)

	seen := map[uint32]int{}
	p.Iterate(func(h Handle, v *int) { seen[h.Index()] = *v })

	if len(seen) != 2 {
		t.Fatalf("Iterate: have %d live nodes, want 2", len(seen))
	}
	if seen[h0.Index()] != 100 || seen[h2.Index()] != 102 {
		t.Fatalf("Iterate: unexpected values %v", seen)
	}
	if _, ok := seen[h1.Index()]; ok {
		t.Fatal("Iterate: visited a released slot")
	}
}

func TestLockFreePoolAcquireRelease(t *testing.T) {
	var p LockFreePool[int]
	p.Init(ClassCommandList, 2)

	h1 := p.Acquire()
	v1 := 5
	p.Set(h1, &v1)
	if got := *p.Get(h1); got != 5 {
		t.Fatalf("Get(h1):\nhave %d\nwant 5", got)
	}

	h2 := p.Acquire()
	if h1.Index() == h2.Index() {
		t.Fatal("expected distinct slots for two live acquires")
	}

	p.Release(h1)
	h3 := p.Acquire()
	if h3.Index() != h1.Index() {
		t.Fatalf("expected slot reuse: h1.Index=%d h3.Index=%d", h1.Index(), h3.Index())
	}
	if h3 == h1 {
		t.Fatal("reused lock-free handle compares equal to the stale one")
	}
}
