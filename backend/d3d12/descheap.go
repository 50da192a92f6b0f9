//go:build windows

package d3d12

import (
	"fmt"

	"github.com/gogpu/wgpu/hal/dx12/d3d12"

	"github.com/gviegas/gpuhal/internal/bitm"
)

// descriptorHeap is a fixed-capacity CPU or shader-visible descriptor
// heap with a bitmap-backed free list for contiguous-range
// allocation, the allocator every descriptor-table-based resource
// view (CreateShaderView), render target and depth/stencil view in
// this backend draws its slot from.
type descriptorHeap struct {
	heap      *d3d12.ID3D12DescriptorHeap
	heapType  d3d12.D3D12_DESCRIPTOR_HEAP_TYPE
	incr      uint32
	cpuStart  d3d12.D3D12_CPU_DESCRIPTOR_HANDLE
	gpuStart  d3d12.D3D12_GPU_DESCRIPTOR_HANDLE
	shaderVis bool
	free      bitm.Bitm[uint64]
}

func newDescriptorHeap(dev *d3d12.ID3D12Device, t d3d12.D3D12_DESCRIPTOR_HEAP_TYPE, n int, shaderVisible bool) *descriptorHeap {
	flags := d3d12.D3D12_DESCRIPTOR_HEAP_FLAG_NONE
	if shaderVisible {
		flags = d3d12.D3D12_DESCRIPTOR_HEAP_FLAG_SHADER_VISIBLE
	}
	h, err := dev.CreateDescriptorHeap(&d3d12.D3D12_DESCRIPTOR_HEAP_DESC{
		Type:           t,
		NumDescriptors: uint32(n),
		Flags:          flags,
	})
	if err != nil {
		panic(fmt.Errorf("d3d12: CreateDescriptorHeap: %w", err))
	}
	dh := &descriptorHeap{
		heap:      h,
		heapType:  t,
		incr:      dev.GetDescriptorHandleIncrementSize(t),
		cpuStart:  h.GetCPUDescriptorHandleForHeapStart(),
		shaderVis: shaderVisible,
	}
	if shaderVisible {
		dh.gpuStart = h.GetGPUDescriptorHandleForHeapStart()
	}
	dh.free.Grow((n + 63) / 64)
	return dh
}

// alloc reserves a contiguous range of n descriptors and returns its
// base index, or ok=false if the heap has no free range of that size.
func (h *descriptorHeap) alloc(n int) (index int, ok bool) {
	index, ok = h.free.SearchRange(n)
	if !ok {
		return 0, false
	}
	for i := index; i < index+n; i++ {
		h.free.Set(i)
	}
	return index, true
}

// freeRange releases a range previously returned by alloc.
func (h *descriptorHeap) freeRange(index, n int) {
	for i := index; i < index+n; i++ {
		h.free.Unset(i)
	}
}

func (h *descriptorHeap) cpuHandle(index int) d3d12.D3D12_CPU_DESCRIPTOR_HANDLE {
	return h.cpuStart.Offset(index, h.incr)
}

func (h *descriptorHeap) gpuHandle(index int) d3d12.D3D12_GPU_DESCRIPTOR_HANDLE {
	return h.gpuStart.Offset(index, h.incr)
}

func (h *descriptorHeap) release() {
	if h.heap != nil {
		h.heap.Release()
	}
}
