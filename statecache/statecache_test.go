package statecache

import (
	"testing"

	"github.com/gviegas/gpuhal"
	"github.com/gviegas/gpuhal/handle"
)

func res(i uint32) gpuhal.ResourceHandle {
	return gpuhal.ResourceFromRaw(handle.Pack(i, 0, handle.ClassResource))
}

func TestFirstTransitionRecordsRequiredInitialNoBarrier(t *testing.T) {
	c := New(1)
	r := res(1)
	_, emitted := c.Transition(r, gpuhal.StateShaderResource, gpuhal.FlagPixel)
	if emitted {
		t.Fatal("first transition of a resource must not emit a barrier")
	}
	e := c.Entries()[r]
	if e.RequiredInitial != gpuhal.StateShaderResource || e.Current != gpuhal.StateShaderResource {
		t.Fatalf("unexpected entry after first transition: %+v", e)
	}
}

func TestSecondTransitionEmitsBarrierFromCurrent(t *testing.T) {
	c := New(1)
	r := res(1)
	c.Transition(r, gpuhal.StateCopyDst, 0)
	b, emitted := c.Transition(r, gpuhal.StateShaderResource, gpuhal.FlagPixel)
	if !emitted {
		t.Fatal("second transition must emit a barrier")
	}
	if b.Source != gpuhal.StateCopyDst || b.Target != gpuhal.StateShaderResource {
		t.Fatalf("unexpected barrier: %+v", b)
	}
}

func TestImplicitInitialTransitionScenario(t *testing.T) {
	// Mirrors the spec-level scenario: a texture's master state starts
	// undefined; a list expects shader_resource on entry and leaves it
	// render_target; submit must synthesize undefined->shader_resource
	// before the list, then commit master state to render_target.
	master := NewMasterStates()
	r := res(1)

	c := New(1)
	c.Transition(r, gpuhal.StateShaderResource, gpuhal.FlagPixel)
	c.Transition(r, gpuhal.StateRenderTarget, 0)

	master.Mu.Lock()
	barriers := master.ImplicitBarriers(c)
	if len(barriers) != 1 {
		t.Fatalf("expected exactly one implicit barrier, got %d", len(barriers))
	}
	if barriers[0].Source != gpuhal.StateUndefined || barriers[0].Target != gpuhal.StateShaderResource {
		t.Fatalf("unexpected implicit barrier: %+v", barriers[0])
	}
	master.Advance(c)
	master.Mu.Unlock()

	if got := master.Get(r); got != gpuhal.StateRenderTarget {
		t.Fatalf("master state after submit = %v, want render_target", got)
	}
}

func TestNoImplicitBarrierWhenMasterAlreadyMatches(t *testing.T) {
	master := NewMasterStates()
	r := res(1)
	master.states[r] = gpuhal.StateShaderResource

	c := New(1)
	c.Transition(r, gpuhal.StateShaderResource, gpuhal.FlagPixel)

	master.Mu.Lock()
	defer master.Mu.Unlock()
	if barriers := master.ImplicitBarriers(c); len(barriers) != 0 {
		t.Fatalf("expected no implicit barriers, got %+v", barriers)
	}
}
