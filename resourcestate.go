package gpuhal

// ResourceState is the master state of a resource: the state at the
// boundary between submissions (see data model §"Master resource
// state"). Writes to master state occur only at submit time.
type ResourceState int

// Resource states.
const (
	StateUndefined ResourceState = iota
	StateVertexBuffer
	StateIndexBuffer
	StateConstantBuffer
	StateShaderResource
	StateShaderResourceNonPixel
	StateUnorderedAccess
	StateRenderTarget
	StateDepthRead
	StateDepthWrite
	StateIndirectArgument
	StateCopySrc
	StateCopyDst
	StateResolveSrc
	StateResolveDst
	StatePresent
	StateRaytraceAccelStruct
)

func (s ResourceState) String() string {
	switch s {
	case StateUndefined:
		return "undefined"
	case StateVertexBuffer:
		return "vertex_buffer"
	case StateIndexBuffer:
		return "index_buffer"
	case StateConstantBuffer:
		return "constant_buffer"
	case StateShaderResource:
		return "shader_resource"
	case StateShaderResourceNonPixel:
		return "shader_resource_nonpixel"
	case StateUnorderedAccess:
		return "unordered_access"
	case StateRenderTarget:
		return "render_target"
	case StateDepthRead:
		return "depth_read"
	case StateDepthWrite:
		return "depth_write"
	case StateIndirectArgument:
		return "indirect_argument"
	case StateCopySrc:
		return "copy_src"
	case StateCopyDst:
		return "copy_dst"
	case StateResolveSrc:
		return "resolve_src"
	case StateResolveDst:
		return "resolve_dst"
	case StatePresent:
		return "present"
	case StateRaytraceAccelStruct:
		return "raytrace_accel_struct"
	default:
		return "unknown_state"
	}
}

// IsShaderVisible reports whether a resource in this state may be
// bound as a CBV/SRV/UAV, the states for which a shader-stage
// dependency mask is meaningful (required for Vulkan pipeline-stage
// derivation; ignored on D3D12).
func (s ResourceState) IsShaderVisible() bool {
	switch s {
	case StateConstantBuffer, StateShaderResource, StateShaderResourceNonPixel, StateUnorderedAccess:
		return true
	default:
		return false
	}
}
