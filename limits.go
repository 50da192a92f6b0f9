package gpuhal

// Fixed record limits. Every command's embedded collections are
// capped at these sizes so that every command variant remains
// trivially copyable and of static size (see package cmdstream).
const (
	// MaxRenderTargets is the maximum number of render targets per
	// render pass, excluding the depth/stencil target. D3D12 itself
	// only supports up to 8 simultaneous render targets.
	MaxRenderTargets = 8

	// MaxShaderArguments is the maximum number of shader arguments per
	// draw or dispatch command. The Vulkan backend requires
	// 2*MaxShaderArguments descriptor sets per pipeline layout (see
	// package reflect) - most non-desktop GPUs cap descriptor sets at 8.
	MaxShaderArguments = 4

	// MaxResourceTransitions is the maximum number of resource
	// transitions per transition_resources / transition_image_slices
	// command.
	MaxResourceTransitions = 4

	// MaxUAVBarriers is the maximum number of resources named in a
	// single barrier_uav command.
	MaxUAVBarriers = 8

	// MaxRootConstantBytes is the fixed size of the inline root/push
	// constant buffer carried by draw and dispatch commands, in
	// increments of 4 bytes.
	MaxRootConstantBytes = 8

	// MaxRaytracingArgumentAssocs bounds the number of local root
	// signature associations in a raytracing pipeline state.
	MaxRaytracingArgumentAssocs = 8

	// MaxRaytracingHitGroups bounds the number of hit groups in a
	// raytracing pipeline state.
	MaxRaytracingHitGroups = 16
)

// Limits describes implementation limits that may vary across
// adapters and backends; queried after Backend initialization.
type Limits struct {
	MaxImage1D   int
	MaxImage2D   int
	MaxImageCube int
	MaxImage3D   int
	MaxLayers    int

	MaxColorTargets int
	MaxViewports    int

	// MinCBVAlignment is the required alignment, in bytes, of a
	// constant-buffer-view range (and thus of ShaderArgument's
	// ConstantBufferOffset).
	MinCBVAlignment int64

	// MinTexelBufferOffsetAlignment governs the buffer offset of a
	// buffer/texture copy (cmdstream's CopyBufferToTexture.SourceOffset
	// and CopyTextureToBuffer.DestOffset) (512 on
	// most desktop GPUs; see transition/copy documentation).
	MinTexelBufferOffsetAlignment int64
}
