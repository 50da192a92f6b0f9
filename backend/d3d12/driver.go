// Package d3d12 implements gpuhal.Backend on top of Direct3D 12.
//
//go:build windows

package d3d12

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/wgpu/hal/dx12/d3d12"
	"github.com/gogpu/wgpu/hal/dx12/dxgi"

	"github.com/gviegas/gpuhal"
	"github.com/gviegas/gpuhal/handle"
	"github.com/gviegas/gpuhal/internal/alloclife"
	"github.com/gviegas/gpuhal/statecache"
)

func init() {
	gpuhal.Register(&Driver{})
}

// Driver implements gpuhal.Driver for Direct3D 12.
type Driver struct {
	once     sync.Once
	initErr  error
	d3d12Lib *d3d12.D3D12Lib
	dxgiLib  *dxgi.DXGILib
	backend  *Backend
}

// Name implements gpuhal.Driver.
func (*Driver) Name() string { return "d3d12" }

// Open implements gpuhal.Driver.
func (d *Driver) Open(cfg gpuhal.Config) (gpuhal.Backend, error) {
	if d.backend != nil {
		return d.backend, nil
	}
	d.once.Do(func() {
		d.d3d12Lib, d.initErr = d3d12.LoadD3D12()
		if d.initErr != nil {
			return
		}
		d.dxgiLib, d.initErr = dxgi.LoadDXGI()
	})
	if d.initErr != nil {
		return nil, fmt.Errorf("d3d12: %w: %v", gpuhal.ErrNotInstalled, d.initErr)
	}
	b, err := newBackend(cfg, d.d3d12Lib, d.dxgiLib)
	if err != nil {
		return nil, err
	}
	d.backend = b
	return b, nil
}

// Close implements gpuhal.Driver.
func (d *Driver) Close() {
	if d.backend == nil {
		return
	}
	d.backend.Destroy()
	d.backend = nil
}

// Backend is the Direct3D 12-backed gpuhal.Backend.
//
// Object pools, handle classes and the command-allocator/fence
// bookkeeping follow the same handle-based object model as the
// Vulkan backend (see package handle, package alloclife): the two
// backends share everything that is not a native API call.
type Backend struct {
	d3d12Lib *d3d12.D3D12Lib
	dxgiLib  *dxgi.DXGILib

	factory *dxgi.IDXGIFactory6
	adapter *dxgi.IDXGIAdapter1
	dev     *d3d12.ID3D12Device

	ques [3]*d3d12.ID3D12CommandQueue // indexed by gpuhal.QueueType
	qmus [3]sync.Mutex

	adapterDesc dxgi.DXGI_ADAPTER_DESC1
	featLevel   d3d12.D3D_FEATURE_LEVEL
	tsFrequency uint64

	rtvHeap       *descriptorHeap
	dsvHeap       *descriptorHeap
	cbvSrvUavHeap *descriptorHeap
	targetViews   *targetViewCache

	// dynamicCBVBase is the base index, in cbvSrvUavHeap, of a small
	// scratch range reserved one slot per shader-argument-slot index
	// (0..gpuhal.MaxShaderArguments-1). cmd.go rewrites the slot for
	// argument index i with CreateConstantBufferView on every
	// bindShaderArguments call and binds it through the group's CBV
	// root table (see groupRootMapping.cbvTableIndex in pipeline.go),
	// since this backend's command list never exposes
	// SetGraphicsRootConstantBufferView/SetComputeRootConstantBufferView.
	dynamicCBVBase int

	resources *objPool[resourceRes]
	views     *objPool[viewRes]
	pipes     *objPool[pipelineRes]
	fences    *objPool[fenceRes]
	queries   *objPool[queryRangeRes]
	accels    *objPool[accelStructRes]
	swapch    *objPool[swapchainRes]
	cmdLists  *objPool[cmdListRes]

	perThread []*alloclife.PerThread[*d3d12.ID3D12Fence, *d3d12.ID3D12CommandAllocator, *d3d12.ID3D12GraphicsCommandList]
	fenceRing *alloclife.FenceRingbuffer[*d3d12.ID3D12Fence, *d3d12.ID3D12CommandAllocator, *d3d12.ID3D12GraphicsCommandList]

	master *statecache.MasterStates

	captureActive bool
}

func newBackend(cfg gpuhal.Config, d3d12Lib *d3d12.D3D12Lib, dxgiLib *dxgi.DXGILib) (*Backend, error) {
	b := &Backend{d3d12Lib: d3d12Lib, dxgiLib: dxgiLib}
	if err := b.createFactory(cfg); err != nil {
		return nil, err
	}
	if err := b.selectAdapter(cfg); err != nil {
		return nil, err
	}
	if err := b.createDevice(cfg); err != nil {
		return nil, err
	}
	if err := b.createQueues(cfg); err != nil {
		return nil, err
	}

	b.rtvHeap = newDescriptorHeap(b.dev, d3d12.D3D12_DESCRIPTOR_HEAP_TYPE_RTV, cfg.MaxResources/4+cfg.NumBackbuffers*cfg.MaxSwapchains, false)
	b.dsvHeap = newDescriptorHeap(b.dev, d3d12.D3D12_DESCRIPTOR_HEAP_TYPE_DSV, cfg.MaxResources/8+1, false)
	b.cbvSrvUavHeap = newDescriptorHeap(b.dev, d3d12.D3D12_DESCRIPTOR_HEAP_TYPE_CBV_SRV_UAV, cfg.MaxSRVs+cfg.MaxUAVs+gpuhal.MaxShaderArguments, true)
	b.targetViews = newTargetViewCache()

	if idx, ok := b.cbvSrvUavHeap.alloc(gpuhal.MaxShaderArguments); ok {
		b.dynamicCBVBase = idx
	}

	b.resources = newObjPool[resourceRes](handle.ClassResource, cfg.MaxResources)
	b.views = newObjPool[viewRes](handle.ClassShaderView, cfg.MaxCBVs+cfg.MaxSRVs+cfg.MaxUAVs+cfg.MaxSamplers)
	b.pipes = newObjPool[pipelineRes](handle.ClassPipelineState, cfg.MaxPipelineStates+cfg.MaxRaytracePipelineStates)
	b.fences = newObjPool[fenceRes](handle.ClassFence, cfg.MaxFences)
	b.queries = newObjPool[queryRangeRes](handle.ClassQueryRange, cfg.NumTimestampQueries+cfg.NumOcclusionQueries+cfg.NumPipelineStatQueries)
	b.accels = newObjPool[accelStructRes](handle.ClassAccelStruct, cfg.MaxAccelStructs)
	b.swapch = newObjPool[swapchainRes](handle.ClassSwapchain, cfg.MaxSwapchains)
	b.cmdLists = newObjPool[cmdListRes](handle.ClassCommandList, cfg.MaxCommandLists)

	directOps := b.nativeOps(gpuhal.QueueDirect)
	b.fenceRing = alloclife.NewFenceRingbuffer(cfg.NumThreads*3+3, directOps)
	b.perThread = make([]*alloclife.PerThread[*d3d12.ID3D12Fence, *d3d12.ID3D12CommandAllocator, *d3d12.ID3D12GraphicsCommandList], cfg.NumThreads)
	computeOps := b.nativeOps(gpuhal.QueueCompute)
	copyOps := b.nativeOps(gpuhal.QueueCopy)
	for i := range b.perThread {
		b.perThread[i] = &alloclife.PerThread[*d3d12.ID3D12Fence, *d3d12.ID3D12CommandAllocator, *d3d12.ID3D12GraphicsCommandList]{
			Direct:  alloclife.NewCommandAllocatorBundle(directOps, b.fenceRing, cfg.NumDirectCmdListAllocatorsPerThread, cfg.NumDirectCmdListsPerAllocator),
			Compute: alloclife.NewCommandAllocatorBundle(computeOps, b.fenceRing, cfg.NumComputeCmdListAllocatorsPerThread, cfg.NumComputeCmdListsPerAllocator),
			Copy:    alloclife.NewCommandAllocatorBundle(copyOps, b.fenceRing, cfg.NumCopyCmdListAllocatorsPerThread, cfg.NumCopyCmdListsPerAllocator),
		}
	}

	b.master = statecache.NewMasterStates()
	return b, nil
}

// GetBackendType implements gpuhal.Backend.
func (b *Backend) GetBackendType() gpuhal.BackendType { return gpuhal.BackendD3D12 }

// GetGPUTimestampFrequency implements gpuhal.Backend.
func (b *Backend) GetGPUTimestampFrequency() uint64 { return b.tsFrequency }

// IsRaytracingEnabled implements gpuhal.Backend. This backend never
// enables raytracing: the retrievable DXR bindings this module is
// built from expose no acceleration-structure or raytracing-pipeline
// surface, and the non-goal that ray tracing may degrade to an
// error-returning stub on a backend that lacks it applies here (see
// raytracing.go).
func (b *Backend) IsRaytracingEnabled() bool { return false }

// Limits implements gpuhal.Backend.
func (b *Backend) Limits() gpuhal.Limits {
	return gpuhal.Limits{
		MaxImage1D:                    16384,
		MaxImage2D:                    16384,
		MaxImageCube:                  16384,
		MaxImage3D:                    2048,
		MaxLayers:                     2048,
		MaxColorTargets:               gpuhal.MaxRenderTargets,
		MaxViewports:                  16,
		MinCBVAlignment:               256,
		MinTexelBufferOffsetAlignment: 4,
	}
}

// AdapterInfo implements gpuhal.Backend.
func (b *Backend) AdapterInfo() gpuhal.AdapterInfo {
	return gpuhal.AdapterInfo{
		Name:               b.adapterDesc.DescriptionString(),
		VendorID:           b.adapterDesc.VendorID,
		DeviceID:           b.adapterDesc.DeviceID,
		IsIntegrated:       b.adapterDesc.DedicatedVideoMemory == 0,
		DriverVersion:      fmt.Sprintf("feature level 0x%x", uint32(b.featLevel)),
		DedicatedVRAMBytes: b.adapterDesc.DedicatedVideoMemory,
	}
}

// MemoryBudget implements gpuhal.Backend. D3D12 exposes current usage
// and budget via IDXGIAdapter3.QueryVideoMemoryInfo; the adapter
// handle this backend keeps is an IDXGIAdapter1 (see init.go, chosen
// for EnumAdapters1's wide factory-version support), so this method
// does not query live figures: BudgetBytes is the adapter's static
// dedicated-VRAM size and UsageBytes is always 0.
func (b *Backend) MemoryBudget() (gpuhal.MemoryBudget, error) {
	vram := b.adapterDesc.DedicatedVideoMemory
	return gpuhal.MemoryBudget{BudgetBytes: vram, UsageBytes: 0}, nil
}

// Destroy implements gpuhal.Backend.
func (b *Backend) Destroy() {
	for _, pt := range b.perThread {
		if pt != nil {
			pt.Destroy()
		}
	}
	if b.fenceRing != nil {
		b.fenceRing.Destroy()
	}
	if b.rtvHeap != nil {
		b.rtvHeap.release()
	}
	if b.dsvHeap != nil {
		b.dsvHeap.release()
	}
	if b.cbvSrvUavHeap != nil {
		b.cbvSrvUavHeap.release()
	}
	for _, q := range b.ques {
		if q != nil {
			q.Release()
		}
	}
	if b.dev != nil {
		b.dev.Release()
	}
	if b.adapter != nil {
		b.adapter.Release()
	}
	if b.factory != nil {
		b.factory.Release()
	}
	*b = Backend{}
}

// FlushGPU implements gpuhal.Backend. It signals and waits on a
// one-shot fence per queue, the D3D12 equivalent of vkDeviceWaitIdle
// (there is no single all-queues idle call).
func (b *Backend) FlushGPU() error {
	for i, q := range b.ques {
		if q == nil {
			continue
		}
		fence, err := b.dev.CreateFence(0, d3d12.D3D12_FENCE_FLAG_NONE)
		if err != nil {
			return fmt.Errorf("d3d12: flush fence (queue %d): %w", i, err)
		}
		if err := q.Signal(fence, 1); err != nil {
			fence.Release()
			return fmt.Errorf("d3d12: flush signal (queue %d): %w", i, err)
		}
		if fence.GetCompletedValue() < 1 {
			if err := fence.SetEventOnCompletion(1, 0); err != nil {
				fence.Release()
				return fmt.Errorf("d3d12: flush wait (queue %d): %w", i, err)
			}
		}
		fence.Release()
	}
	return nil
}

type fenceRes struct {
	fence *d3d12.ID3D12Fence
}

// CreateFence implements gpuhal.Backend.
func (b *Backend) CreateFence() (gpuhal.FenceHandle, error) {
	fence, err := b.dev.CreateFence(0, d3d12.D3D12_FENCE_FLAG_NONE)
	if err != nil {
		return gpuhal.NullFence, fmt.Errorf("d3d12: CreateFence: %w", err)
	}
	h := b.fences.insert(fenceRes{fence: fence})
	return gpuhal.FenceFromRaw(h), nil
}

// FreeFence implements gpuhal.Backend.
func (b *Backend) FreeFence(h gpuhal.FenceHandle) {
	if fr, ok := b.fences.remove(h.Raw()); ok {
		fr.fence.Release()
	}
}

// GetFenceValue implements gpuhal.Backend.
func (b *Backend) GetFenceValue(h gpuhal.FenceHandle) (uint64, error) {
	fr, ok := b.fences.get(h.Raw())
	if !ok {
		return 0, gpuhal.ErrInvalidHandle
	}
	return fr.fence.GetCompletedValue(), nil
}

// SignalFenceCPU implements gpuhal.Backend.
func (b *Backend) SignalFenceCPU(h gpuhal.FenceHandle, value uint64) error {
	fr, ok := b.fences.get(h.Raw())
	if !ok {
		return gpuhal.ErrInvalidHandle
	}
	return fr.fence.Signal(value)
}

// WaitFenceCPU implements gpuhal.Backend. D3D12 fence events are
// Win32 waitable handles; lacking a portable "wait with context" for
// a raw HANDLE in the retrieved bindings, this polls
// GetCompletedValue against ctx, the same degradation the reference
// design allows for platforms without a native cancellable wait.
func (b *Backend) WaitFenceCPU(ctx context.Context, h gpuhal.FenceHandle, value uint64) error {
	fr, ok := b.fences.get(h.Raw())
	if !ok {
		return gpuhal.ErrInvalidHandle
	}
	if fr.fence.GetCompletedValue() >= value {
		return nil
	}
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if fr.fence.GetCompletedValue() >= value {
				return nil
			}
		}
	}
}

// BeginCapture implements gpuhal.Backend. PIX capture requires
// WinPixEventRuntime, not part of this module's dependency set; this
// records intent only, the same no-op-with-bookkeeping shape the
// reference design uses for a capture API it does not wire up.
func (b *Backend) BeginCapture(name string) error {
	b.captureActive = true
	return nil
}

// EndCapture implements gpuhal.Backend.
func (b *Backend) EndCapture() error {
	b.captureActive = false
	return nil
}
