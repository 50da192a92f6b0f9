//go:build windows

package d3d12

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/wgpu/hal/dx12/d3d12"
	"github.com/gogpu/wgpu/hal/dx12/dxgi"

	"github.com/gviegas/gpuhal"
	"github.com/gviegas/gpuhal/internal/alloclife"
)

// featureLevels is tried from highest to lowest until device creation
// succeeds, mirroring the Vulkan backend's version-negotiation loop in
// createInstance (there it is the instance API version; here it is
// the device feature level).
var featureLevels = []d3d12.D3D_FEATURE_LEVEL{
	d3d12.D3D_FEATURE_LEVEL_12_1,
	d3d12.D3D_FEATURE_LEVEL_12_0,
	d3d12.D3D_FEATURE_LEVEL_11_1,
	d3d12.D3D_FEATURE_LEVEL_11_0,
}

func (b *Backend) createFactory(cfg gpuhal.Config) error {
	flags := uint32(0)
	if cfg.Validation != gpuhal.ValidationOff {
		if dbg, err := b.d3d12Lib.GetDebugInterface(); err == nil {
			dbg.EnableDebugLayer()
			dbg.Release()
			flags = dxgi.DXGI_CREATE_FACTORY_DEBUG
		}
	}
	f, err := b.dxgiLib.CreateFactory2(flags)
	if err != nil {
		return fmt.Errorf("d3d12: CreateFactory2: %w", err)
	}
	b.factory = f
	return nil
}

// selectAdapter enumerates adapters and picks one per cfg.AdapterPref,
// the same scored-selection shape as the Vulkan backend's
// selectPhysicalDevice, adapted to DXGI's flat adapter list (DXGI has
// no family/queue concept at this stage, only a vendor/VRAM/LUID
// description per adapter).
func (b *Backend) selectAdapter(cfg gpuhal.Config) error {
	type candidate struct {
		adapter *dxgi.IDXGIAdapter1
		desc    dxgi.DXGI_ADAPTER_DESC1
	}
	var candidates []candidate
	for i := uint32(0); ; i++ {
		a, err := b.factory.EnumAdapters1(i)
		if err != nil {
			break
		}
		desc, err := a.GetDesc1()
		if err != nil {
			a.Release()
			continue
		}
		if desc.Flags&dxgi.DXGI_ADAPTER_FLAG_SOFTWARE != 0 {
			a.Release()
			continue
		}
		candidates = append(candidates, candidate{a, desc})
	}
	if len(candidates) == 0 {
		return fmt.Errorf("d3d12: %w", gpuhal.ErrNoDevice)
	}

	best := 0
	switch cfg.AdapterPref {
	case gpuhal.AdapterExplicitIndex:
		if cfg.ExplicitAdapter >= 0 && cfg.ExplicitAdapter < len(candidates) {
			best = cfg.ExplicitAdapter
		}
	case gpuhal.AdapterIntegrated:
		for i, c := range candidates {
			if c.desc.DedicatedVideoMemory == 0 {
				best = i
				break
			}
		}
	case gpuhal.AdapterHighestVRAM:
		for i, c := range candidates {
			if c.desc.DedicatedVideoMemory > candidates[best].desc.DedicatedVideoMemory {
				best = i
			}
		}
	case gpuhal.AdapterHighestFeatureLevel, gpuhal.AdapterFirst:
		// DXGI enumerates in driver-preferred order already; the
		// first non-software adapter is the best default guess
		// absent a per-candidate feature-level probe.
	}

	for i, c := range candidates {
		if i == best {
			b.adapter = c.adapter
			b.adapterDesc = c.desc
		} else {
			c.adapter.Release()
		}
	}
	return nil
}

func (b *Backend) createDevice(cfg gpuhal.Config) error {
	var lastErr error
	for _, fl := range featureLevels {
		dev, err := b.d3d12Lib.CreateDevice(unsafe.Pointer(b.adapter), fl)
		if err != nil {
			lastErr = err
			continue
		}
		b.dev = dev
		b.featLevel = fl
		return nil
	}
	return fmt.Errorf("d3d12: CreateDevice: %w: %v", gpuhal.ErrNoDevice, lastErr)
}

// createQueues creates the three typed command queues gpuhal.QueueType
// addresses directly. Unlike the Vulkan backend's pickQueueFamilies,
// there is no family-enumeration step: D3D12 command queues are typed
// at creation (DIRECT, COMPUTE, COPY) off a single device.
func (b *Backend) createQueues(cfg gpuhal.Config) error {
	types := [3]d3d12.D3D12_COMMAND_LIST_TYPE{
		gpuhal.QueueDirect:  d3d12.D3D12_COMMAND_LIST_TYPE_DIRECT,
		gpuhal.QueueCompute: d3d12.D3D12_COMMAND_LIST_TYPE_COMPUTE,
		gpuhal.QueueCopy:    d3d12.D3D12_COMMAND_LIST_TYPE_COPY,
	}
	for qt, lt := range types {
		q, err := b.dev.CreateCommandQueue(&d3d12.D3D12_COMMAND_QUEUE_DESC{
			Type:     lt,
			Priority: 0,
			Flags:    d3d12.D3D12_COMMAND_QUEUE_FLAG_NONE,
			NodeMask: 0,
		})
		if err != nil {
			return fmt.Errorf("d3d12: CreateCommandQueue(%v): %w", lt, err)
		}
		b.ques[qt] = q
	}
	if freq, err := b.ques[gpuhal.QueueDirect].GetTimestampFrequency(); err == nil {
		b.tsFrequency = freq
	}
	return nil
}

// nativeOps builds the alloclife.NativeOps vtable for queue qt: the
// D3D12 equivalent of the Vulkan backend's per-queue fence/allocator
// callback set, backed directly by ID3D12Fence and
// ID3D12CommandAllocator/ID3D12GraphicsCommandList instead of
// VkFence/VkCommandPool/VkCommandBuffer.
func (b *Backend) nativeOps(qt gpuhal.QueueType) alloclife.NativeOps[*d3d12.ID3D12Fence, *d3d12.ID3D12CommandAllocator, *d3d12.ID3D12GraphicsCommandList] {
	listType := [3]d3d12.D3D12_COMMAND_LIST_TYPE{
		gpuhal.QueueDirect:  d3d12.D3D12_COMMAND_LIST_TYPE_DIRECT,
		gpuhal.QueueCompute: d3d12.D3D12_COMMAND_LIST_TYPE_COMPUTE,
		gpuhal.QueueCopy:    d3d12.D3D12_COMMAND_LIST_TYPE_COPY,
	}[qt]

	return alloclife.NativeOps[*d3d12.ID3D12Fence, *d3d12.ID3D12CommandAllocator, *d3d12.ID3D12GraphicsCommandList]{
		CreateFence: func() *d3d12.ID3D12Fence {
			f, err := b.dev.CreateFence(0, d3d12.D3D12_FENCE_FLAG_NONE)
			if err != nil {
				panic(fmt.Errorf("d3d12: CreateFence: %w", err))
			}
			return f
		},
		WaitFence: func(f *d3d12.ID3D12Fence) {
			if f.GetCompletedValue() < 1 {
				f.SetEventOnCompletion(1, 0)
			}
		},
		FenceSignalled: func(f *d3d12.ID3D12Fence) bool { return f.GetCompletedValue() >= 1 },
		DestroyFence:   func(f *d3d12.ID3D12Fence) { f.Release() },
		CreateAllocator: func() *d3d12.ID3D12CommandAllocator {
			a, err := b.dev.CreateCommandAllocator(listType)
			if err != nil {
				panic(fmt.Errorf("d3d12: CreateCommandAllocator: %w", err))
			}
			return a
		},
		ResetAllocator:  func(a *d3d12.ID3D12CommandAllocator) { a.Reset() },
		DestroyAllocator: func(a *d3d12.ID3D12CommandAllocator) { a.Release() },
		AllocateCmdBuffer: func(a *d3d12.ID3D12CommandAllocator) *d3d12.ID3D12GraphicsCommandList {
			cl, err := b.dev.CreateCommandList(0, listType, a, nil)
			if err != nil {
				panic(fmt.Errorf("d3d12: CreateCommandList: %w", err))
			}
			cl.Close()
			return cl
		},
		DestroyCmdBuffer: func(a *d3d12.ID3D12CommandAllocator, c *d3d12.ID3D12GraphicsCommandList) { c.Release() },
	}
}
