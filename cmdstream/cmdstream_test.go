package cmdstream

import (
	"reflect"
	"testing"

	"github.com/gviegas/gpuhal"
	"github.com/gviegas/gpuhal/handle"
)

// recordingVisitor records every visited command so round-trip tests
// can compare what was written against what was parsed.
type recordingVisitor struct {
	BaseVisitor
	got []Command
}

func (r *recordingVisitor) VisitBeginRenderPass(c BeginRenderPass) { r.got = append(r.got, c) }
func (r *recordingVisitor) VisitDraw(c Draw)                       { r.got = append(r.got, c) }
func (r *recordingVisitor) VisitDispatch(c Dispatch)               { r.got = append(r.got, c) }
func (r *recordingVisitor) VisitCopyBuffer(c CopyBuffer)           { r.got = append(r.got, c) }
func (r *recordingVisitor) VisitBarrierUAV(c BarrierUAV)           { r.got = append(r.got, c) }
func (r *recordingVisitor) VisitClearTextures(c ClearTextures)     { r.got = append(r.got, c) }

func res(i uint32) gpuhal.ResourceHandle {
	return gpuhal.ResourceFromRaw(handle.Pack(i, 0, handle.ClassResource))
}

func TestWriteParseRoundTrip(t *testing.T) {
	cmds := []Command{
		Draw{
			PipelineState: gpuhal.PipelineFromRaw(handle.Pack(1, 0, handle.ClassPipelineState)),
			VertexBuffer:  res(2),
			IndexBuffer:   res(3),
			NumIndices:    36,
			ShaderArguments: []gpuhal.ShaderArgument{
				{ConstantBuffer: res(4), ConstantBufferOffset: 256},
			},
			ScissorLeft: -1, ScissorTop: -1, ScissorRight: -1, ScissorBottom: -1,
		},
		Dispatch{X: 8, Y: 8, Z: 1},
		CopyBuffer{Source: res(5), Destination: res(6), Size: 1024},
		BarrierUAV{Resources: []gpuhal.ResourceHandle{res(7), res(8)}},
		ClearTextures{Ops: []ClearOp{{View: gpuhal.BackbufferView(res(9)), ClearValue: [4]float32{1, 0, 0, 1}}}},
	}

	buf := make([]byte, 0)
	total := 0
	for _, c := range cmds {
		total += c.Size()
	}
	buf = make([]byte, total)
	w := NewWriter(buf)
	for _, c := range cmds {
		w.Write(c)
	}
	if w.Size() != total {
		t.Fatalf("writer size = %d, want %d", w.Size(), total)
	}

	var v recordingVisitor
	Parse(w.Bytes(), &v)
	if len(v.got) != len(cmds) {
		t.Fatalf("parsed %d commands, want %d", len(v.got), len(cmds))
	}
	for i, want := range cmds {
		if !reflect.DeepEqual(v.got[i], want) {
			t.Errorf("command %d round-trip mismatch:\n got  %+v\n want %+v", i, v.got[i], want)
		}
	}
}

func TestWriterPanicsWhenFull(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on writer overflow")
		}
	}()
	w := NewWriter(make([]byte, 1))
	w.Write(EndRenderPass{})
	w.Write(EndRenderPass{})
}

func TestBeginRenderPassFixedSize(t *testing.T) {
	var empty BeginRenderPass
	var full BeginRenderPass
	for i := 0; i < gpuhal.MaxRenderTargets; i++ {
		full.RenderTargets = append(full.RenderTargets, RenderTargetInfo{})
	}
	if empty.Size() != full.Size() {
		t.Fatalf("record size must not depend on slot occupancy: empty=%d full=%d", empty.Size(), full.Size())
	}
}
