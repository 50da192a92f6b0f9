package gpuhal

import "context"

// QueueType selects which GPU queue a command list targets and which
// command-allocator bundle backs it.
type QueueType int

// Queue types.
const (
	QueueDirect QueueType = iota
	QueueCompute
	QueueCopy
)

// Usage is a bitmask of how a resource will be used, guiding the
// backend's choice of memory type, initial layout and descriptor
// eligibility.
type Usage int

// Usage flags.
const (
	UsageVertexBuffer Usage = 1 << iota
	UsageIndexBuffer
	UsageConstantBuffer
	UsageShaderResource
	UsageUnorderedAccess
	UsageRenderTarget
	UsageDepthStencil
	UsageCopySrc
	UsageCopyDst
	UsageIndirectArgument
	UsageHostVisible
	UsageRaytracingScratch
	UsageRaytracingAccelStruct
)

// BufferDesc describes a buffer resource to create.
type BufferDesc struct {
	Size  int64
	Usage Usage
	// HostVisible requests a persistently host-mapped allocation; the
	// mapped pointer is returned by Backend.MapBuffer and remains
	// valid until the buffer is freed.
	HostVisible bool
}

// ImageDesc describes an image resource to create.
type ImageDesc struct {
	Format  Format
	Size    Dim3D
	Layers  int
	Levels  int
	Samples int
	Usage   Usage
}

// AdapterInfo reports identifying and capability information about
// the physical adapter a Backend opened against.
type AdapterInfo struct {
	Name              string
	VendorID          uint32
	DeviceID          uint32
	IsIntegrated      bool
	DriverVersion     string
	DedicatedVRAMBytes uint64
}

// MemoryBudget reports the adapter's current memory pressure, queried
// per-frame by clients that want to throttle streaming.
type MemoryBudget struct {
	BudgetBytes uint64
	UsageBytes  uint64
}

// QueryType selects which of the three query heaps a query_range page
// is carved from.
type QueryType int

// Query types.
const (
	QueryTimestamp QueryType = iota
	QueryOcclusion
	QueryPipelineStats
)

// Backend is the single capability surface every create*, free*,
// record, submit and present operation goes through. A Backend is
// obtained from Driver.Open and is safe for concurrent use from up to
// Config.NumThreads distinct threads, per the free-threading rules;
// FlushGPU and resize-triggering present calls are the caller's
// responsibility to externally synchronize.
type Backend interface {
	// GetBackendType reports which native API this Backend translates
	// to.
	GetBackendType() BackendType

	// GetGPUTimestampFrequency returns the number of timestamp-query
	// ticks per second, used to convert write_timestamp deltas to
	// wall-clock time.
	GetGPUTimestampFrequency() uint64

	// IsRaytracingEnabled reports whether raytracing entry points are
	// usable; if false they all return ErrRaytracingUnavailable.
	IsRaytracingEnabled() bool

	// Limits returns the queried implementation limits.
	Limits() Limits

	// AdapterInfo returns static information about the opened adapter.
	AdapterInfo() AdapterInfo

	// MemoryBudget returns the adapter's current memory budget and
	// usage.
	MemoryBudget() (MemoryBudget, error)

	// Destroy tears down the Backend. All objects created through it
	// must already be freed; any outstanding GPU work must already
	// have been flushed.
	Destroy()

	// CreateBuffer creates a buffer resource.
	CreateBuffer(desc BufferDesc) (ResourceHandle, error)
	// CreateImage creates an image resource.
	CreateImage(desc ImageDesc) (ResourceHandle, error)
	// FreeResource frees a buffer or image resource.
	FreeResource(h ResourceHandle)
	// MapBuffer returns the persistently mapped pointer of a
	// host-visible buffer. It is valid to call only once, right after
	// creation, and the returned slice aliases device memory for the
	// buffer's lifetime.
	MapBuffer(h ResourceHandle) ([]byte, error)
	// FlushMappedRange flushes CPU writes to [offset, offset+size) of
	// a mapped buffer so they become visible to the GPU.
	FlushMappedRange(h ResourceHandle, offset, size int64) error

	// CreateShaderView materializes an immutable descriptor set/table
	// over the given views.
	CreateShaderView(views []ResourceView) (ShaderViewHandle, error)
	// FreeShaderView frees a shader view and its backing descriptor
	// set and single-use layout.
	FreeShaderView(h ShaderViewHandle)

	// CreatePipelineState creates a graphics pipeline state.
	CreatePipelineState(desc GraphicsStateDesc) (PipelineHandle, error)
	// CreateComputePipelineState creates a compute pipeline state.
	CreateComputePipelineState(desc ComputeStateDesc) (PipelineHandle, error)
	// CreateRaytracingPipelineState creates a raytracing pipeline
	// state. Returns ErrRaytracingUnavailable if raytracing is not
	// enabled.
	CreateRaytracingPipelineState(desc RaytracingStateDesc) (PipelineHandle, error)
	// FreePipelineState frees a pipeline state of any kind.
	FreePipelineState(h PipelineHandle)

	// CreateFence creates a timeline fence with initial value 0.
	CreateFence() (FenceHandle, error)
	// FreeFence frees a fence.
	FreeFence(h FenceHandle)
	// GetFenceValue returns the fence's current GPU-observed value.
	GetFenceValue(h FenceHandle) (uint64, error)
	// SignalFenceCPU signals the fence to value from the CPU.
	SignalFenceCPU(h FenceHandle, value uint64) error
	// WaitFenceCPU blocks the calling thread until the fence reaches
	// value, or ctx is done.
	WaitFenceCPU(ctx context.Context, h FenceHandle, value uint64) error

	// CreateQueryRange allocates a page of count queries from the
	// named heap.
	CreateQueryRange(qt QueryType, count int) (QueryRangeHandle, error)
	// FreeQueryRange releases a page back to its heap.
	FreeQueryRange(h QueryRangeHandle)
	// ResolveQueries reads count queries starting at first, from qr,
	// into dst at dstOffset; dst must be a buffer resource.
	ResolveQueries(qr QueryRangeHandle, first, count int, dst ResourceHandle, dstOffset int64) error

	// CreateBottomLevelAccelStruct builds a BLAS from the given
	// geometry descriptors.
	CreateBottomLevelAccelStruct(geom []RaytracingGeometry) (AccelStructHandle, error)
	// CreateTopLevelAccelStruct builds a TLAS over a packed instance
	// buffer.
	CreateTopLevelAccelStruct(instances ResourceHandle, numInstances int) (AccelStructHandle, error)
	// FreeAccelStruct frees a BLAS or TLAS and its backing/scratch
	// buffers.
	FreeAccelStruct(h AccelStructHandle)
	// CalculateShaderTableSize returns the stride and total size, in
	// bytes, of each of the four shader-table regions (ray-gen, miss,
	// hit-group, callable) for pso.
	CalculateShaderTableSize(pso PipelineHandle) (ShaderTableLayout, error)
	// WriteShaderTable writes shader identifiers and per-record
	// inline root arguments for the named exports into dst, laid out
	// per layout.
	WriteShaderTable(pso PipelineHandle, layout ShaderTableLayout, records []ShaderTableRecord, dst []byte) error

	// CreateSwapchain creates a presentable surface with its chain of
	// backbuffers.
	CreateSwapchain(surface SurfaceHandle, width, height int) (SwapchainHandle, error)
	// FreeSwapchain frees a swapchain and its backbuffers.
	FreeSwapchain(h SwapchainHandle)
	// AcquireBackbuffer blocks on the next backbuffer's
	// image-available semaphore and returns a view over it. If the
	// swapchain is out of date it returns (BackbufferView(NullResource), nil)
	// exactly once and internally schedules a resize; the caller
	// should skip rendering that frame.
	AcquireBackbuffer(sc SwapchainHandle) (ResourceView, error)
	// Present submits the swapchain's present command and returns
	// ErrSwapchainOutOfDate if the surface geometry changed.
	Present(sc SwapchainHandle) error

	// RecordCommandList translates stream into a native command
	// buffer backed by an allocator acquired for (threadID, queue),
	// side-effecting the returned list's incomplete-state cache.
	RecordCommandList(threadID int, queue QueueType, stream []byte) (CommandListHandle, error)
	// DiscardCommandList releases a recorded-but-unsubmitted command
	// list back to its allocator without executing it.
	DiscardCommandList(cl CommandListHandle)
	// Submit submits cls, in order, to queue, preceded by any
	// synthesised barrier-only lists, then signals fence to value once
	// all of them complete.
	Submit(queue QueueType, cls []CommandListHandle, fence FenceHandle, value uint64) error

	// FlushGPU blocks until all submitted work on every queue has
	// completed. Externally synchronised: the caller must ensure no
	// concurrent Submit is in flight.
	FlushGPU() error

	// BeginCapture starts an API-native frame capture (RenderDoc /
	// PIX), if supported; a no-op returning nil otherwise.
	BeginCapture(name string) error
	// EndCapture ends a capture started by BeginCapture.
	EndCapture() error
}

// RaytracingGeometry describes one triangle-mesh or AABB geometry
// entry fed to CreateBottomLevelAccelStruct.
type RaytracingGeometry struct {
	VertexBuffer ResourceHandle
	VertexFormat VertexFmt
	VertexStride int
	NumVertices  int
	IndexBuffer  ResourceHandle
	IndexFormat  IndexFmt
	NumIndices   int
	Opaque       bool
}

// ShaderTableLayout is the result of CalculateShaderTableSize: the
// stride and total size, in bytes, of each shader-table region.
type ShaderTableLayout struct {
	RayGenStride, RayGenSize     int64
	MissStride, MissSize         int64
	HitGroupStride, HitGroupSize int64
	CallableStride, CallableSize int64
}

// ShaderTableRecord names one exported shader identifier and its
// inline root-argument bytes, to be written into a shader table by
// WriteShaderTable.
type ShaderTableRecord struct {
	ExportName  string
	RootArgs    []byte
}

// SurfaceHandle identifies a platform-native presentation surface
// (an HWND on D3D12, a VkSurfaceKHR on Vulkan) supplied by windowing
// code outside this module; it is opaque here.
type SurfaceHandle uintptr
