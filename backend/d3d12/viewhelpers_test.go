//go:build windows

package d3d12

import (
	"encoding/binary"
	"testing"

	"github.com/gogpu/wgpu/hal/dx12/d3d12"
)

func TestSetBufferSRV(t *testing.T) {
	var d d3d12.D3D12_SHADER_RESOURCE_VIEW_DESC
	setBufferSRV(&d, 10, 20, 4)

	if d.ViewDimension != d3d12.D3D12_SRV_DIMENSION_BUFFER {
		t.Fatalf("ViewDimension = %v, want BUFFER", d.ViewDimension)
	}
	if got := binary.LittleEndian.Uint64(d.Union[0:8]); got != 10 {
		t.Errorf("FirstElement = %d, want 10", got)
	}
	if got := binary.LittleEndian.Uint32(d.Union[8:12]); got != 20 {
		t.Errorf("NumElements = %d, want 20", got)
	}
	if got := binary.LittleEndian.Uint32(d.Union[12:16]); got != 4 {
		t.Errorf("StructureByteStride = %d, want 4", got)
	}
}

func TestSetBufferUAV(t *testing.T) {
	var d d3d12.D3D12_UNORDERED_ACCESS_VIEW_DESC
	setBufferUAV(&d, 1, 2, 3)

	if d.ViewDimension != d3d12.D3D12_UAV_DIMENSION_BUFFER {
		t.Fatalf("ViewDimension = %v, want BUFFER", d.ViewDimension)
	}
	if got := binary.LittleEndian.Uint64(d.Union[0:8]); got != 1 {
		t.Errorf("FirstElement = %d, want 1", got)
	}
}

func TestSetTexture2DUAV(t *testing.T) {
	var d d3d12.D3D12_UNORDERED_ACCESS_VIEW_DESC
	setTexture2DUAV(&d, 3, 0)

	if d.ViewDimension != d3d12.D3D12_UAV_DIMENSION_TEXTURE2D {
		t.Fatalf("ViewDimension = %v, want TEXTURE2D", d.ViewDimension)
	}
	if got := binary.LittleEndian.Uint32(d.Union[0:4]); got != 3 {
		t.Errorf("MipSlice = %d, want 3", got)
	}
}

func TestSetTexture2DArrayUAVTruncatesPlaneSlice(t *testing.T) {
	var d d3d12.D3D12_UNORDERED_ACCESS_VIEW_DESC
	setTexture2DArrayUAV(&d, 1, 2, 6, 99)

	if got := binary.LittleEndian.Uint32(d.Union[0:4]); got != 1 {
		t.Errorf("MipSlice = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(d.Union[4:8]); got != 2 {
		t.Errorf("FirstArraySlice = %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint32(d.Union[8:12]); got != 6 {
		t.Errorf("ArraySize = %d, want 6", got)
	}
	// PlaneSlice falls past the 16-byte union and is dropped, matching
	// the dependency's own truncation for fields past that bound.
}

func TestSetTexture3DUAV(t *testing.T) {
	var d d3d12.D3D12_UNORDERED_ACCESS_VIEW_DESC
	setTexture3DUAV(&d, 1, 0, 4)

	if d.ViewDimension != d3d12.D3D12_UAV_DIMENSION_TEXTURE3D {
		t.Fatalf("ViewDimension = %v, want TEXTURE3D", d.ViewDimension)
	}
	if got := binary.LittleEndian.Uint32(d.Union[8:12]); got != 4 {
		t.Errorf("WSize = %d, want 4", got)
	}
}
