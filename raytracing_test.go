package gpuhal

import (
	"testing"

	"github.com/gviegas/gpuhal/handle"
)

func TestInstanceRecordSize(t *testing.T) {
	var in AccelStructInstance
	if n := len(in.Pack()); n != InstanceRecordSize {
		t.Fatalf("packed instance record size = %d, want %d", n, InstanceRecordSize)
	}
}

func TestInstanceRecordRoundTrip(t *testing.T) {
	in := AccelStructInstance{
		Transform: [3][4]float32{
			{1, 0, 0, 10},
			{0, 1, 0, 20},
			{0, 0, 1, 30},
		},
		InstanceID:     0xABCDEF,
		VisibilityMask: 0xFF,
		HitGroupIndex:  0x123456,
		Flags:          InstanceForceOpaque,
		BottomLevel:    AccelStructFromRaw(handle.Pack(5, 1, handle.ClassAccelStruct)),
	}
	got := UnpackAccelStructInstance(in.Pack())
	if got.InstanceID != in.InstanceID || got.VisibilityMask != in.VisibilityMask {
		t.Fatalf("instance/visibility round-trip mismatch: got %+v", got)
	}
	if got.HitGroupIndex != in.HitGroupIndex || got.Flags != in.Flags {
		t.Fatalf("hitgroup/flags round-trip mismatch: got %+v", got)
	}
	if got.Transform != in.Transform {
		t.Fatalf("transform round-trip mismatch: got %+v", got.Transform)
	}
	if got.BottomLevel.Raw() != in.BottomLevel.Raw() {
		t.Fatalf("blas handle round-trip mismatch: got %v want %v", got.BottomLevel.Raw(), in.BottomLevel.Raw())
	}
}

func TestInstanceRecordFieldWidths(t *testing.T) {
	in := AccelStructInstance{InstanceID: 1 << 24, HitGroupIndex: 1 << 24}
	got := UnpackAccelStructInstance(in.Pack())
	if got.InstanceID != 0 {
		t.Fatalf("instance_id bit 24 must not survive packing, got %#x", got.InstanceID)
	}
	if got.HitGroupIndex != 0 {
		t.Fatalf("hit_group_index bit 24 must not survive packing, got %#x", got.HitGroupIndex)
	}
}

func TestIndirectDrawArgsLayout(t *testing.T) {
	a := IndirectDrawArgs{NumVertices: 3, NumInstances: 1, VertexOffset: 0, FirstInstance: 0}
	buf := a.Pack()
	if len(buf) != IndirectDrawArgsSize {
		t.Fatalf("packed size = %d, want %d", len(buf), IndirectDrawArgsSize)
	}
}

func TestIndirectDrawIndexedIDArgsLayout(t *testing.T) {
	a := IndirectDrawIndexedIDArgs{DrawID: 7, NumIndices: 6, NumInstances: 2}
	buf := a.Pack()
	if len(buf) != IndirectDrawIndexedIDArgsSize {
		t.Fatalf("packed size = %d, want %d", len(buf), IndirectDrawIndexedIDArgsSize)
	}
	if buf[0] != 7 {
		t.Fatalf("draw_id must be the first word, got byte 0 = %d", buf[0])
	}
}
