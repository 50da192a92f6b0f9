package gpuhal

import "github.com/gviegas/gpuhal/handle"

// Each GPU object class has its own Go type wrapping handle.Handle.
// Distinct types catch at compile time the mixing of handle classes
// that the reference design only catches at runtime via the 3-bit
// class tag; the runtime tag is still present (see handle.Handle) and
// is what backends use to validate a handle that arrives boxed as
// `any` across an interface boundary (e.g. command-stream decode).

// ResourceHandle addresses a buffer or image resource.
type ResourceHandle struct{ h handle.Handle }

// ShaderViewHandle addresses an SRV+UAV+sampler descriptor bundle.
type ShaderViewHandle struct{ h handle.Handle }

// PipelineHandle addresses a graphics, compute or raytracing pipeline
// state object.
type PipelineHandle struct{ h handle.Handle }

// FenceHandle addresses a timeline semaphore / monotonic fence.
type FenceHandle struct{ h handle.Handle }

// CommandListHandle addresses a recorded, translated command list.
type CommandListHandle struct{ h handle.Handle }

// QueryRangeHandle addresses a page of a query heap.
type QueryRangeHandle struct{ h handle.Handle }

// AccelStructHandle addresses a raytracing BLAS or TLAS.
type AccelStructHandle struct{ h handle.Handle }

// SwapchainHandle addresses a presentable surface and its backbuffers.
type SwapchainHandle struct{ h handle.Handle }

// Null handles, one sentinel per class.
var (
	NullResource     = ResourceHandle{handle.Null}
	NullShaderView   = ShaderViewHandle{handle.Null}
	NullPipeline     = PipelineHandle{handle.Null}
	NullFence        = FenceHandle{handle.Null}
	NullCommandList  = CommandListHandle{handle.Null}
	NullQueryRange   = QueryRangeHandle{handle.Null}
	NullAccelStruct  = AccelStructHandle{handle.Null}
	NullSwapchain    = SwapchainHandle{handle.Null}
)

func (r ResourceHandle) IsNull() bool    { return r.h.IsNull() }
func (s ShaderViewHandle) IsNull() bool  { return s.h.IsNull() }
func (p PipelineHandle) IsNull() bool    { return p.h.IsNull() }
func (f FenceHandle) IsNull() bool       { return f.h.IsNull() }
func (c CommandListHandle) IsNull() bool { return c.h.IsNull() }
func (q QueryRangeHandle) IsNull() bool  { return q.h.IsNull() }
func (a AccelStructHandle) IsNull() bool { return a.h.IsNull() }
func (s SwapchainHandle) IsNull() bool   { return s.h.IsNull() }

// Raw exposes the underlying handle.Handle, for use by backend
// packages that store these in handle.Pool instances keyed by class.
func (r ResourceHandle) Raw() handle.Handle    { return r.h }
func (s ShaderViewHandle) Raw() handle.Handle  { return s.h }
func (p PipelineHandle) Raw() handle.Handle    { return p.h }
func (f FenceHandle) Raw() handle.Handle       { return f.h }
func (c CommandListHandle) Raw() handle.Handle { return c.h }
func (q QueryRangeHandle) Raw() handle.Handle  { return q.h }
func (a AccelStructHandle) Raw() handle.Handle { return a.h }
func (s SwapchainHandle) Raw() handle.Handle   { return s.h }

// ResourceFromRaw, ShaderViewFromRaw, ... rebuild a typed handle from
// a raw handle.Handle (e.g. one decoded from a command stream, or
// returned by a pool). Backends use these at the translation boundary.
func ResourceFromRaw(h handle.Handle) ResourceHandle       { return ResourceHandle{h} }
func ShaderViewFromRaw(h handle.Handle) ShaderViewHandle    { return ShaderViewHandle{h} }
func PipelineFromRaw(h handle.Handle) PipelineHandle        { return PipelineHandle{h} }
func FenceFromRaw(h handle.Handle) FenceHandle              { return FenceHandle{h} }
func CommandListFromRaw(h handle.Handle) CommandListHandle  { return CommandListHandle{h} }
func QueryRangeFromRaw(h handle.Handle) QueryRangeHandle    { return QueryRangeHandle{h} }
func AccelStructFromRaw(h handle.Handle) AccelStructHandle  { return AccelStructHandle{h} }
func SwapchainFromRaw(h handle.Handle) SwapchainHandle      { return SwapchainHandle{h} }
