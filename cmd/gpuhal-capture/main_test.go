package main

import (
	"testing"

	"github.com/gviegas/gpuhal"
	"github.com/gviegas/gpuhal/cmdstream"
	"github.com/gviegas/gpuhal/handle"
)

type stubDriver struct{ name string }

func (s stubDriver) Open(gpuhal.Config) (gpuhal.Backend, error) { return nil, nil }
func (s stubDriver) Name() string                               { return s.name }
func (s stubDriver) Close()                                     {}

func TestSelectDriverByName(t *testing.T) {
	gpuhal.Register(stubDriver{"alpha"})
	gpuhal.Register(stubDriver{"beta"})

	got := selectDriver("beta")
	if got == nil || got.Name() != "beta" {
		t.Fatalf("selectDriver(%q) = %v, want driver named beta", "beta", got)
	}
}

func TestSelectDriverDefaultsToFirstRegistered(t *testing.T) {
	gpuhal.Register(stubDriver{"gamma"})

	got := selectDriver("")
	if got == nil {
		t.Fatal("selectDriver(\"\") = nil, want the first registered driver")
	}
	if want := gpuhal.Drivers()[0].Name(); got.Name() != want {
		t.Fatalf("selectDriver(\"\") = %q, want first registered %q", got.Name(), want)
	}
}

func TestSelectDriverUnknownNameReturnsNil(t *testing.T) {
	if got := selectDriver("does-not-exist"); got != nil {
		t.Fatalf("selectDriver(unknown) = %v, want nil", got)
	}
}

func TestScriptClearStreamParsesBack(t *testing.T) {
	rt := gpuhal.ResourceFromRaw(handle.Pack(0, 0, handle.ClassResource))
	stream := scriptClearStream(rt)
	if len(stream) == 0 {
		t.Fatal("scriptClearStream produced an empty stream")
	}
	var v countingVisitor
	cmdstream.Parse(stream, &v)
	if v.transitions != 2 || v.clears != 1 {
		t.Fatalf("parsed %d transitions and %d clears, want 2 and 1", v.transitions, v.clears)
	}
}

// countingVisitor counts the command kinds scriptClearStream emits.
type countingVisitor struct {
	cmdstream.BaseVisitor
	transitions, clears int
}

func (v *countingVisitor) VisitTransitionResources(cmdstream.TransitionResources) { v.transitions++ }
func (v *countingVisitor) VisitClearTextures(cmdstream.ClearTextures)             { v.clears++ }
