//go:build windows

package d3d12

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/gogpu/wgpu/hal/dx12/d3d12"
	"github.com/gogpu/wgpu/hal/dx12/dxgi"

	"github.com/gviegas/gpuhal"
)

// bufferRes and textureRes hold the native objects for one buffer or
// texture resource; resourceRes tags which kind a resources-pool slot
// currently holds, mirroring the Vulkan backend's bufferRes/imageRes/
// resourceRes split (see backend/vk/resource.go).
type bufferRes struct {
	res    *d3d12.ID3D12Resource
	size   int64
	mapped unsafe.Pointer
}

type textureRes struct {
	res      *d3d12.ID3D12Resource
	format   dxgi.DXGI_FORMAT
	layers   int
	levels   int
	depthStc bool
	// borrowed marks a swapchain backbuffer resource: given a
	// resources-pool slot so it can be named by a ResourceHandle like
	// any other image, but owned and released by its swapchainRes.
	borrowed bool
}

type resourceRes struct {
	isTexture bool
	buffer    bufferRes
	texture   textureRes
}

// viewRes is a contiguous range of descriptors allocated out of the
// backend's single shader-visible CBV_SRV_UAV heap by CreateShaderView.
// Unlike the Vulkan backend's per-call descriptor set and set layout,
// there is no pipeline-shape compatibility to satisfy: the range is
// bound directly as a root descriptor table at draw/dispatch time (see
// cmd.go's bindShaderArguments).
type viewRes struct {
	base  int
	count int
}

func heapPropsFor(hostVisible bool) d3d12.D3D12_HEAP_PROPERTIES {
	t := d3d12.D3D12_HEAP_TYPE_DEFAULT
	if hostVisible {
		t = d3d12.D3D12_HEAP_TYPE_UPLOAD
	}
	return d3d12.D3D12_HEAP_PROPERTIES{Type: t}
}

func usageToResourceFlags(u gpuhal.Usage) d3d12.D3D12_RESOURCE_FLAGS {
	var f d3d12.D3D12_RESOURCE_FLAGS
	if u&gpuhal.UsageUnorderedAccess != 0 {
		f |= d3d12.D3D12_RESOURCE_FLAG_ALLOW_UNORDERED_ACCESS
	}
	if u&gpuhal.UsageRenderTarget != 0 {
		f |= d3d12.D3D12_RESOURCE_FLAG_ALLOW_RENDER_TARGET
	}
	return f
}

// CreateBuffer implements gpuhal.Backend.
func (b *Backend) CreateBuffer(desc gpuhal.BufferDesc) (gpuhal.ResourceHandle, error) {
	resDesc := d3d12.D3D12_RESOURCE_DESC{
		Dimension:        d3d12.D3D12_RESOURCE_DIMENSION_BUFFER,
		Width:            uint64(desc.Size),
		Height:           1,
		DepthOrArraySize: 1,
		MipLevels:        1,
		Format:           dxgi.DXGI_FORMAT_UNKNOWN,
		SampleDesc:       d3d12.DXGI_SAMPLE_DESC{Count: 1},
		Layout:           d3d12.D3D12_TEXTURE_LAYOUT_ROW_MAJOR,
		Flags:            usageToResourceFlags(desc.Usage),
	}
	initialState := d3d12.D3D12_RESOURCE_STATE_COMMON
	if desc.HostVisible {
		initialState = d3d12.D3D12_RESOURCE_STATE_GENERIC_READ
	}
	heapProps := heapPropsFor(desc.HostVisible)
	res, err := b.dev.CreateCommittedResource(&heapProps, d3d12.D3D12_HEAP_FLAG_NONE, &resDesc, initialState, nil)
	if err != nil {
		return gpuhal.NullResource, fmt.Errorf("d3d12: CreateCommittedResource(buffer): %w", err)
	}

	var mapped unsafe.Pointer
	if desc.HostVisible {
		p, err := res.Map(0, &d3d12.D3D12_RANGE{})
		if err != nil {
			res.Release()
			return gpuhal.NullResource, fmt.Errorf("d3d12: Map: %w", err)
		}
		mapped = p
	}

	h := b.resources.insert(resourceRes{buffer: bufferRes{res: res, size: desc.Size, mapped: mapped}})
	return gpuhal.ResourceFromRaw(h), nil
}

// CreateImage implements gpuhal.Backend.
func (b *Backend) CreateImage(desc gpuhal.ImageDesc) (gpuhal.ResourceHandle, error) {
	format := convFormat(desc.Format)
	dim := d3d12.D3D12_RESOURCE_DIMENSION_TEXTURE2D
	if desc.Size.Depth > 1 {
		dim = d3d12.D3D12_RESOURCE_DIMENSION_TEXTURE3D
	} else if desc.Size.Height <= 1 {
		dim = d3d12.D3D12_RESOURCE_DIMENSION_TEXTURE1D
	}

	resDesc := d3d12.D3D12_RESOURCE_DESC{
		Dimension:        dim,
		Width:            uint64(desc.Size.Width),
		Height:           uint32(desc.Size.Height),
		DepthOrArraySize: uint16(maxInt(desc.Size.Depth, desc.Layers)),
		MipLevels:        uint16(desc.Levels),
		Format:           format,
		SampleDesc:       d3d12.DXGI_SAMPLE_DESC{Count: uint32(maxInt(desc.Samples, 1))},
		Layout:           d3d12.D3D12_TEXTURE_LAYOUT_UNKNOWN,
		Flags:            usageToResourceFlags(desc.Usage),
	}
	if desc.Format.IsDepthStencil() {
		resDesc.Flags |= d3d12.D3D12_RESOURCE_FLAG_ALLOW_DEPTH_STENCIL
	}

	var clear *d3d12.D3D12_CLEAR_VALUE
	if resDesc.Flags&(d3d12.D3D12_RESOURCE_FLAG_ALLOW_RENDER_TARGET|d3d12.D3D12_RESOURCE_FLAG_ALLOW_DEPTH_STENCIL) != 0 {
		clear = &d3d12.D3D12_CLEAR_VALUE{Format: format}
	}

	heapProps := heapPropsFor(false)
	res, err := b.dev.CreateCommittedResource(&heapProps, d3d12.D3D12_HEAP_FLAG_NONE, &resDesc, d3d12.D3D12_RESOURCE_STATE_COMMON, clear)
	if err != nil {
		return gpuhal.NullResource, fmt.Errorf("d3d12: CreateCommittedResource(texture): %w", err)
	}

	h := b.resources.insert(resourceRes{isTexture: true, texture: textureRes{
		res: res, format: format, layers: maxInt(desc.Layers, 1), levels: desc.Levels, depthStc: desc.Format.IsDepthStencil(),
	}})
	return gpuhal.ResourceFromRaw(h), nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// FreeResource implements gpuhal.Backend.
func (b *Backend) FreeResource(h gpuhal.ResourceHandle) {
	r, ok := b.resources.remove(h.Raw())
	if !ok {
		return
	}
	if r.isTexture {
		b.invalidateTargetViews(h)
		if r.texture.borrowed {
			return
		}
		r.texture.res.Release()
		return
	}
	if r.buffer.mapped != nil {
		r.buffer.res.Unmap(0, nil)
	}
	r.buffer.res.Release()
}

// MapBuffer implements gpuhal.Backend.
func (b *Backend) MapBuffer(h gpuhal.ResourceHandle) ([]byte, error) {
	r, ok := b.resources.get(h.Raw())
	if !ok || r.isTexture {
		return nil, gpuhal.ErrInvalidHandle
	}
	if r.buffer.mapped == nil {
		return nil, fmt.Errorf("d3d12: buffer not created host-visible")
	}
	return unsafe.Slice((*byte)(r.buffer.mapped), r.buffer.size), nil
}

// FlushMappedRange implements gpuhal.Backend. Upload-heap memory on
// D3D12 is coherent (D3D12_CPU_PAGE_PROPERTY_WRITE_COMBINE with no
// explicit flush entry point), so this is a validating no-op, the
// same shape the reference design allows for platforms where the
// flush is implicit.
func (b *Backend) FlushMappedRange(h gpuhal.ResourceHandle, offset, size int64) error {
	r, ok := b.resources.get(h.Raw())
	if !ok || r.isTexture {
		return gpuhal.ErrInvalidHandle
	}
	if offset < 0 || size < 0 || offset+size > r.buffer.size {
		return fmt.Errorf("d3d12: flush range out of bounds")
	}
	return nil
}

// CreateShaderView implements gpuhal.Backend: it reserves a contiguous
// range of len(views) descriptors in the shader-visible CBV_SRV_UAV
// heap and writes one SRV or UAV into each slot.
func (b *Backend) CreateShaderView(views []gpuhal.ResourceView) (gpuhal.ShaderViewHandle, error) {
	if len(views) == 0 {
		return gpuhal.NullShaderView, fmt.Errorf("d3d12: CreateShaderView: no views")
	}
	base, ok := b.cbvSrvUavHeap.alloc(len(views))
	if !ok {
		return gpuhal.NullShaderView, fmt.Errorf("d3d12: CreateShaderView: heap exhausted")
	}
	for i, v := range views {
		if err := b.writeView(b.cbvSrvUavHeap.cpuHandle(base+i), v); err != nil {
			b.cbvSrvUavHeap.freeRange(base, len(views))
			return gpuhal.NullShaderView, err
		}
	}
	h := b.views.insert(viewRes{base: base, count: len(views)})
	return gpuhal.ShaderViewFromRaw(h), nil
}

// FreeShaderView implements gpuhal.Backend.
func (b *Backend) FreeShaderView(h gpuhal.ShaderViewHandle) {
	r, ok := b.views.remove(h.Raw())
	if !ok {
		return
	}
	b.cbvSrvUavHeap.freeRange(r.base, r.count)
}

func (b *Backend) writeView(dst d3d12.D3D12_CPU_DESCRIPTOR_HANDLE, v gpuhal.ResourceView) error {
	res, ok := b.resources.get(v.Resource.Raw())
	if !ok {
		return gpuhal.ErrInvalidHandle
	}
	switch v.Kind {
	case gpuhal.ViewBuffer, gpuhal.ViewRawBuffer:
		stride := v.Stride
		if v.Kind == gpuhal.ViewRawBuffer {
			stride = 4
		}
		var desc d3d12.D3D12_SHADER_RESOURCE_VIEW_DESC
		desc.Format = dxgi.DXGI_FORMAT_UNKNOWN
		desc.Shader4ComponentMapping = d3d12.D3D12_DEFAULT_SHADER_4_COMPONENT_MAPPING
		setBufferSRV(&desc, uint64(v.ElementStart), v.NumElements, stride)
		b.dev.CreateShaderResourceView(res.buffer.res, &desc, dst)
		return nil
	case gpuhal.ViewRaytracingAccelStruct:
		// No acceleration structures exist on this backend (see
		// raytracing.go): a handle of this kind can never be live,
		// so this path is unreachable in practice.
		return fmt.Errorf("d3d12: acceleration-structure views are unsupported")
	default:
		var desc d3d12.D3D12_SHADER_RESOURCE_VIEW_DESC
		desc.Format = convFormat(v.Format)
		desc.Shader4ComponentMapping = d3d12.D3D12_DEFAULT_SHADER_4_COMPONENT_MAPPING
		numMips := v.NumMips
		if numMips == 0 {
			numMips = uint32(res.texture.levels) - v.MipStart
		}
		switch v.Kind {
		case gpuhal.ViewTexture1D:
			desc.SetTexture1D(v.MipStart, numMips, 0)
		case gpuhal.ViewTexture1DArray:
			desc.SetTexture2D(v.MipStart, numMips, 0, 0) // closest available setter; 1D arrays are rare in practice
		case gpuhal.ViewTexture2D, gpuhal.ViewTexture2DMS:
			desc.SetTexture2D(v.MipStart, numMips, 0, 0)
		case gpuhal.ViewTexture2DArray, gpuhal.ViewTexture2DMSArray:
			numLayers := v.NumArrayLayers
			if numLayers == 0 {
				numLayers = uint32(res.texture.layers) - v.ArrayStart
			}
			desc.SetTexture2DArray(v.MipStart, numMips, v.ArrayStart, numLayers, 0, 0)
		case gpuhal.ViewTexture3D:
			desc.SetTexture3D(v.MipStart, numMips, 0)
		case gpuhal.ViewTextureCube:
			desc.SetTextureCube(v.MipStart, numMips, 0)
		case gpuhal.ViewTextureCubeArray:
			numCubes := v.NumArrayLayers
			if numCubes == 0 {
				numCubes = uint32(res.texture.layers)/6 - v.ArrayStart/6
			}
			desc.SetTextureCubeArray(v.MipStart, numMips, v.ArrayStart, numCubes, 0)
		}
		b.dev.CreateShaderResourceView(res.texture.res, &desc, dst)
		return nil
	}
}

// targetViewKey identifies a cached RTV/DSV heap slot for a render
// target or depth/stencil attachment. Unlike CreateShaderView, these
// are requested directly by cmd.go's render-pass translation from a
// gpuhal.ResourceView with no prior creation call, so the Backend
// keeps a lazily-populated cache instead, invalidated when the
// underlying resource is freed — the same shape as the Vulkan
// backend's imageViews cache (see backend/vk/resource.go).
type targetViewKey struct {
	resource   gpuhal.ResourceHandle
	mipStart   uint32
	arrayStart uint32
	numLayers  uint32
}

type targetViewCache struct {
	mu  sync.Mutex
	rtv map[targetViewKey]int
	dsv map[targetViewKey]int
}

func newTargetViewCache() *targetViewCache {
	return &targetViewCache{rtv: map[targetViewKey]int{}, dsv: map[targetViewKey]int{}}
}

// renderTargetViewFor returns (creating and caching if necessary) the
// RTV heap index for v's resource.
func (b *Backend) renderTargetViewFor(v gpuhal.ResourceView) (d3d12.D3D12_CPU_DESCRIPTOR_HANDLE, error) {
	res, ok := b.resources.get(v.Resource.Raw())
	if !ok || !res.isTexture {
		return d3d12.D3D12_CPU_DESCRIPTOR_HANDLE{}, gpuhal.ErrInvalidHandle
	}
	key := targetViewKey{resource: v.Resource, mipStart: v.MipStart, arrayStart: v.ArrayStart, numLayers: v.NumArrayLayers}
	b.targetViews.mu.Lock()
	defer b.targetViews.mu.Unlock()
	if idx, ok := b.targetViews.rtv[key]; ok {
		return b.rtvHeap.cpuHandle(idx), nil
	}
	idx, ok := b.rtvHeap.alloc(1)
	if !ok {
		return d3d12.D3D12_CPU_DESCRIPTOR_HANDLE{}, fmt.Errorf("d3d12: RTV heap exhausted")
	}
	cpu := b.rtvHeap.cpuHandle(idx)
	var desc d3d12.D3D12_RENDER_TARGET_VIEW_DESC
	desc.Format = res.texture.format
	numLayers := v.NumArrayLayers
	if numLayers > 1 {
		desc.SetTexture2DArray(v.MipStart, v.ArrayStart, numLayers, 0)
	} else {
		desc.SetTexture2D(v.MipStart, 0)
	}
	b.dev.CreateRenderTargetView(res.texture.res, &desc, cpu)
	b.targetViews.rtv[key] = idx
	return cpu, nil
}

// depthStencilViewFor returns (creating and caching if necessary) the
// DSV heap index for v's resource.
func (b *Backend) depthStencilViewFor(v gpuhal.ResourceView) (d3d12.D3D12_CPU_DESCRIPTOR_HANDLE, error) {
	res, ok := b.resources.get(v.Resource.Raw())
	if !ok || !res.isTexture {
		return d3d12.D3D12_CPU_DESCRIPTOR_HANDLE{}, gpuhal.ErrInvalidHandle
	}
	key := targetViewKey{resource: v.Resource, mipStart: v.MipStart, arrayStart: v.ArrayStart, numLayers: v.NumArrayLayers}
	b.targetViews.mu.Lock()
	defer b.targetViews.mu.Unlock()
	if idx, ok := b.targetViews.dsv[key]; ok {
		return b.dsvHeap.cpuHandle(idx), nil
	}
	idx, ok := b.dsvHeap.alloc(1)
	if !ok {
		return d3d12.D3D12_CPU_DESCRIPTOR_HANDLE{}, fmt.Errorf("d3d12: DSV heap exhausted")
	}
	cpu := b.dsvHeap.cpuHandle(idx)
	var desc d3d12.D3D12_DEPTH_STENCIL_VIEW_DESC
	desc.Format = res.texture.format
	desc.SetTexture2D(v.MipStart)
	b.dev.CreateDepthStencilView(res.texture.res, &desc, cpu)
	b.targetViews.dsv[key] = idx
	return cpu, nil
}

// invalidateTargetViews evicts and frees every cached RTV/DSV slot of h.
func (b *Backend) invalidateTargetViews(h gpuhal.ResourceHandle) {
	b.targetViews.mu.Lock()
	defer b.targetViews.mu.Unlock()
	for k, idx := range b.targetViews.rtv {
		if k.resource == h {
			b.rtvHeap.freeRange(idx, 1)
			delete(b.targetViews.rtv, k)
		}
	}
	for k, idx := range b.targetViews.dsv {
		if k.resource == h {
			b.dsvHeap.freeRange(idx, 1)
			delete(b.targetViews.dsv, k)
		}
	}
}
