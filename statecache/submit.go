package statecache

import (
	"sync"

	"github.com/gviegas/gpuhal"
)

// MasterStates tracks the master resource state of every resource —
// the state at the boundary between submissions — and synthesizes the
// implicit barrier-only transitions a submit must run before each
// command list whose recorded RequiredInitial disagrees with the
// resource's current master state.
//
// Writes to master state happen only through Advance, called once per
// submitted command list's Cache, under Mu — the same mutex the
// submit path holds for its whole duration, per the one-writer-at-a-
// -submit-boundary discipline.
type MasterStates struct {
	Mu     sync.Mutex
	states map[gpuhal.ResourceHandle]gpuhal.ResourceState
}

// NewMasterStates returns an empty master-state table.
func NewMasterStates() *MasterStates {
	return &MasterStates{states: make(map[gpuhal.ResourceHandle]gpuhal.ResourceState)}
}

// Get returns the resource's current master state, gpuhal.StateUndefined
// if it has never been touched.
func (m *MasterStates) Get(r gpuhal.ResourceHandle) gpuhal.ResourceState {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.states[r]
}

// ImplicitBarriers computes, for one command list's Cache, the set of
// barriers needed to bring every touched resource's master state to
// that list's RequiredInitial before the list runs. It does not
// mutate master state — call Advance after the list (and these
// barriers) have been submitted. The caller must hold Mu across both
// calls and the native submission between them, so no other submit on
// the same queue observes a half-updated master-state table.
func (m *MasterStates) ImplicitBarriers(c *Cache) []Barrier {
	var out []Barrier
	for r, e := range c.entries {
		master := m.states[r]
		if master != e.RequiredInitial {
			out = append(out, Barrier{
				Resource:   r,
				Source:     master,
				Target:     e.RequiredInitial,
				TargetDeps: e.InitialDependentStages,
			})
		}
	}
	return out
}

// Advance commits one command list's Cache to master state: every
// touched resource's master state becomes its Current state. Callers
// must hold Mu for the whole submit operation (ImplicitBarriers +
// native submission + Advance) so that no other submit observes a
// half-updated master-state table.
func (m *MasterStates) Advance(c *Cache) {
	for r, e := range c.entries {
		m.states[r] = e.Current
	}
}
