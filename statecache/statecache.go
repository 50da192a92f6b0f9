// Package statecache implements the per-command-list incomplete-state
// cache and the barrier/transition synthesis that consumes it: the
// core of the command-list translator, shared by both backends.
//
// A Cache tracks, for every resource a command list touches, the
// state the list expects to find it in on entry (its precondition)
// and the state it leaves it in (its postcondition). Neither backend
// mutates a resource's master state while translating a single list;
// that only happens at submit time (see MasterStates).
package statecache

import "github.com/gviegas/gpuhal"

// Entry is one resource's record within a single command list's
// cache.
type Entry struct {
	// RequiredInitial is the state this list expects the resource to
	// already be in; recorded on the first reference and never
	// changed afterward.
	RequiredInitial gpuhal.ResourceState
	// InitialDependentStages is the shader-stage dependency mask
	// accompanying RequiredInitial, when it is a CBV/SRV/UAV state.
	InitialDependentStages gpuhal.ShaderStageFlags
	// Current is the state as of the most recent transition recorded
	// for this resource within the list.
	Current gpuhal.ResourceState
	// CurrentDependentStages is the shader-stage dependency mask
	// accompanying Current.
	CurrentDependentStages gpuhal.ShaderStageFlags
}

// Barrier is one synthesized (or explicit) state transition, emitted
// by Cache.Transition for the translator to turn into a native
// pipeline/memory barrier.
type Barrier struct {
	Resource       gpuhal.ResourceHandle
	Source, Target gpuhal.ResourceState
	SourceDeps, TargetDeps gpuhal.ShaderStageFlags
}

// Cache is the incomplete-state cache of one command list: a flat map
// from resource to Entry. It is not safe for concurrent use; each
// command list is translated by exactly one thread.
type Cache struct {
	entries map[gpuhal.ResourceHandle]*Entry
}

// New returns an empty Cache, sized to hold capacity touched
// resources without reallocating.
func New(capacity int) *Cache {
	return &Cache{entries: make(map[gpuhal.ResourceHandle]*Entry, capacity)}
}

// Entries exposes the cache's contents for submit-time synthesis; the
// returned map must not be retained past the command list's submit or
// discard.
func (c *Cache) Entries() map[gpuhal.ResourceHandle]*Entry { return c.entries }

// Transition records a transition of resource to target, consulting
// (and updating) the cache. If this is the first reference to
// resource in the list, RequiredInitial is set to target and no
// barrier is emitted — the implicit initial transition is synthesised
// later, at submit time, once the resource's true master state is
// known. Otherwise a Barrier from the previously-recorded Current to
// target is returned.
//
// target being a shader-visible state (see
// gpuhal.ResourceState.IsShaderVisible) with an empty deps mask is a
// contract violation on Vulkan, where the pipeline-stage mask must be
// supplied by the caller; this package does not enforce backend
// identity, so that check belongs to the caller for the Vulkan path.
func (c *Cache) Transition(resource gpuhal.ResourceHandle, target gpuhal.ResourceState, deps gpuhal.ShaderStageFlags) (Barrier, bool) {
	e, ok := c.entries[resource]
	if !ok {
		c.entries[resource] = &Entry{
			RequiredInitial:        target,
			InitialDependentStages: deps,
			Current:                target,
			CurrentDependentStages: deps,
		}
		return Barrier{}, false
	}
	b := Barrier{
		Resource:   resource,
		Source:     e.Current,
		Target:     target,
		SourceDeps: e.CurrentDependentStages,
		TargetDeps: deps,
	}
	e.Current = target
	e.CurrentDependentStages = deps
	return b, true
}

// TouchSlice records a fully explicit subresource transition. Unlike
// Transition, both the source and target states are caller-supplied
// and the cache's aggregate Current/RequiredInitial bookkeeping for
// the resource as a whole is left untouched — slice transitions do
// not participate in submit-time master-state synthesis.
func (c *Cache) TouchSlice(resource gpuhal.ResourceHandle) {
	if _, ok := c.entries[resource]; !ok {
		// A slice-only touch still registers the resource so that the
		// property "every resource referenced by a transitioning
		// command appears in the cache" holds, without implying any
		// particular required-initial state (undefined is the only
		// safe default — the caller controls both sides explicitly).
		c.entries[resource] = &Entry{RequiredInitial: gpuhal.StateUndefined, Current: gpuhal.StateUndefined}
	}
}

// Resources returns every resource the cache has an entry for.
func (c *Cache) Resources() []gpuhal.ResourceHandle {
	out := make([]gpuhal.ResourceHandle, 0, len(c.entries))
	for r := range c.entries {
		out = append(out, r)
	}
	return out
}
