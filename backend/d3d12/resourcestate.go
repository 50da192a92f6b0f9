//go:build windows

package d3d12

import (
	"github.com/gogpu/wgpu/hal/dx12/d3d12"

	"github.com/gviegas/gpuhal"
)

// stateOf translates a gpuhal.ResourceState to its D3D12_RESOURCE_STATES
// equivalent for a ResourceBarrier transition. D3D12 folds the
// Vulkan-only pixel/non-pixel shader-stage distinction
// (ResourceState.IsShaderVisible's doc note) into one combined SRV
// state, and folds vertex-buffer/constant-buffer into one combined
// state, so this mapping is many-to-one and simpler than the Vulkan
// backend's access-mask/pipeline-stage derivation.
func stateOf(s gpuhal.ResourceState) d3d12.D3D12_RESOURCE_STATES {
	switch s {
	case gpuhal.StateUndefined:
		return d3d12.D3D12_RESOURCE_STATE_COMMON
	case gpuhal.StateVertexBuffer, gpuhal.StateConstantBuffer:
		return d3d12.D3D12_RESOURCE_STATE_VERTEX_AND_CONSTANT_BUFFER
	case gpuhal.StateIndexBuffer:
		return d3d12.D3D12_RESOURCE_STATE_INDEX_BUFFER
	case gpuhal.StateShaderResource:
		return d3d12.D3D12_RESOURCE_STATE_PIXEL_SHADER_RESOURCE | d3d12.D3D12_RESOURCE_STATE_NON_PIXEL_SHADER_RESOURCE
	case gpuhal.StateShaderResourceNonPixel:
		return d3d12.D3D12_RESOURCE_STATE_NON_PIXEL_SHADER_RESOURCE
	case gpuhal.StateUnorderedAccess:
		return d3d12.D3D12_RESOURCE_STATE_UNORDERED_ACCESS
	case gpuhal.StateRenderTarget:
		return d3d12.D3D12_RESOURCE_STATE_RENDER_TARGET
	case gpuhal.StateDepthRead:
		return d3d12.D3D12_RESOURCE_STATE_DEPTH_READ
	case gpuhal.StateDepthWrite:
		return d3d12.D3D12_RESOURCE_STATE_DEPTH_WRITE
	case gpuhal.StateIndirectArgument:
		return d3d12.D3D12_RESOURCE_STATE_INDIRECT_ARGUMENT
	case gpuhal.StateCopySrc:
		return d3d12.D3D12_RESOURCE_STATE_COPY_SOURCE
	case gpuhal.StateCopyDst:
		return d3d12.D3D12_RESOURCE_STATE_COPY_DEST
	case gpuhal.StateResolveSrc:
		return d3d12.D3D12_RESOURCE_STATE_RESOLVE_SOURCE
	case gpuhal.StateResolveDst:
		return d3d12.D3D12_RESOURCE_STATE_RESOLVE_DEST
	case gpuhal.StatePresent:
		return d3d12.D3D12_RESOURCE_STATE_PRESENT
	case gpuhal.StateRaytraceAccelStruct:
		return d3d12.D3D12_RESOURCE_STATE_RAYTRACING_ACCELERATION_STRUCTURE
	default:
		return d3d12.D3D12_RESOURCE_STATE_COMMON
	}
}
