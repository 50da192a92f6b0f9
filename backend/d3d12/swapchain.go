//go:build windows

package d3d12

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/wgpu/hal/dx12/d3d12"
	"github.com/gogpu/wgpu/hal/dx12/dxgi"

	"github.com/gviegas/gpuhal"
)

// swapchainRes is a presentable surface's native swap chain plus the
// pool-backed resource handle wrapping each backbuffer, mirroring the
// Vulkan backend's swapchainRes (see backend/vk/swapchain.go). D3D12
// has no acquire/present semaphore pair to track: back-buffer
// ownership is expressed entirely through GetCurrentBackBufferIndex
// and the resource's own state transitions.
type swapchainRes struct {
	chain   *dxgi.IDXGISwapChain1
	format  dxgi.DXGI_FORMAT
	width   int
	height  int
	images  []gpuhal.ResourceHandle
}

// CreateSwapchain implements gpuhal.Backend. surface is interpreted as
// an HWND, the only presentation target DXGI_SWAP_CHAIN_DESC1 accepts
// on this platform.
func (b *Backend) CreateSwapchain(surface gpuhal.SurfaceHandle, width, height int) (gpuhal.SwapchainHandle, error) {
	format := dxgi.DXGI_FORMAT_B8G8R8A8_UNORM
	desc := dxgi.DXGI_SWAP_CHAIN_DESC1{
		Width:       uint32(width),
		Height:      uint32(height),
		Format:      format,
		SampleDesc:  d3d12.DXGI_SAMPLE_DESC{Count: 1},
		BufferUsage: dxgi.DXGI_USAGE_RENDER_TARGET_OUTPUT,
		BufferCount: 3,
		Scaling:     dxgi.DXGI_SCALING_STRETCH,
		SwapEffect:  dxgi.DXGI_SWAP_EFFECT_FLIP_DISCARD,
	}
	chain, err := b.factory.CreateSwapChainForHwnd(unsafe.Pointer(b.ques[gpuhal.QueueDirect]), uintptr(surface), &desc, nil, nil)
	if err != nil {
		return gpuhal.NullSwapchain, fmt.Errorf("d3d12: CreateSwapChainForHwnd: %w", err)
	}

	sc := swapchainRes{chain: chain, format: format, width: width, height: height}
	if err := b.acquireSwapchainBuffers(&sc); err != nil {
		chain.Release()
		return gpuhal.NullSwapchain, err
	}

	h := b.swapch.insert(sc)
	return gpuhal.SwapchainFromRaw(h), nil
}

// acquireSwapchainBuffers wraps each current backbuffer in a
// resources-pool slot marked borrowed, the same shape the Vulkan
// backend uses for swapchain images it does not own (see
// backend/vk/swapchain.go's CreateSwapchain).
func (b *Backend) acquireSwapchainBuffers(sc *swapchainRes) error {
	desc, err := sc.chain.GetDesc1()
	if err != nil {
		return fmt.Errorf("d3d12: GetDesc1: %w", err)
	}
	sc.images = sc.images[:0]
	for i := uint32(0); i < desc.BufferCount; i++ {
		p, err := sc.chain.GetBuffer(i, &d3d12.IID_ID3D12Resource)
		if err != nil {
			return fmt.Errorf("d3d12: GetBuffer(%d): %w", i, err)
		}
		res := (*d3d12.ID3D12Resource)(p)
		h := b.resources.insert(resourceRes{isTexture: true, texture: textureRes{
			res: res, format: sc.format, layers: 1, levels: 1, borrowed: true,
		}})
		sc.images = append(sc.images, gpuhal.ResourceFromRaw(h))
	}
	return nil
}

// FreeSwapchain implements gpuhal.Backend.
func (b *Backend) FreeSwapchain(h gpuhal.SwapchainHandle) {
	r, ok := b.swapch.remove(h.Raw())
	if !ok {
		return
	}
	for _, rh := range r.images {
		b.FreeResource(rh)
	}
	r.chain.Release()
}

// AcquireBackbuffer implements gpuhal.Backend. There is no acquire
// call to make on D3D12 (DXGI_SWAP_EFFECT_FLIP_DISCARD back buffers
// are always addressable); this simply reports which pool-backed
// resource GetCurrentBackBufferIndex currently names.
func (b *Backend) AcquireBackbuffer(scHandle gpuhal.SwapchainHandle) (gpuhal.ResourceView, error) {
	r, ok := b.swapch.get(scHandle.Raw())
	if !ok {
		return gpuhal.ResourceView{}, gpuhal.ErrInvalidHandle
	}
	idx := r.chain.GetCurrentBackBufferIndex()
	if int(idx) >= len(r.images) {
		return gpuhal.ResourceView{}, fmt.Errorf("d3d12: backbuffer index %d out of range", idx)
	}
	return gpuhal.BackbufferView(r.images[idx]), nil
}

// Present implements gpuhal.Backend.
func (b *Backend) Present(scHandle gpuhal.SwapchainHandle) error {
	r, ok := b.swapch.get(scHandle.Raw())
	if !ok {
		return gpuhal.ErrInvalidHandle
	}
	if err := r.chain.Present(1, 0); err != nil {
		return fmt.Errorf("d3d12: Present: %w", err)
	}
	return nil
}
