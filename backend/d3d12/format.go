//go:build windows

package d3d12

import (
	"github.com/gogpu/wgpu/hal/dx12/dxgi"

	"github.com/gviegas/gpuhal"
)

// convFormat translates a gpuhal.Format to its DXGI_FORMAT
// equivalent. Every Format value has exactly one DXGI counterpart, so
// this is a direct table rather than the capability-probing dance
// Vulkan's VkFormat selection sometimes needs.
func convFormat(f gpuhal.Format) dxgi.DXGI_FORMAT {
	switch f {
	case gpuhal.RGBA8un:
		return dxgi.DXGI_FORMAT_R8G8B8A8_UNORM
	case gpuhal.RGBA8srgb:
		return dxgi.DXGI_FORMAT_R8G8B8A8_UNORM_SRGB
	case gpuhal.BGRA8un:
		return dxgi.DXGI_FORMAT_B8G8R8A8_UNORM
	case gpuhal.BGRA8srgb:
		return dxgi.DXGI_FORMAT_B8G8R8A8_UNORM_SRGB
	case gpuhal.RG8un:
		return dxgi.DXGI_FORMAT_R8G8_UNORM
	case gpuhal.R8un:
		return dxgi.DXGI_FORMAT_R8_UNORM
	case gpuhal.RGBA16f:
		return dxgi.DXGI_FORMAT_R16G16B16A16_FLOAT
	case gpuhal.RG16f:
		return dxgi.DXGI_FORMAT_R16G16_FLOAT
	case gpuhal.R16f:
		return dxgi.DXGI_FORMAT_R16_FLOAT
	case gpuhal.RGBA32f:
		return dxgi.DXGI_FORMAT_R32G32B32A32_FLOAT
	case gpuhal.RG32f:
		return dxgi.DXGI_FORMAT_R32G32_FLOAT
	case gpuhal.R32f:
		return dxgi.DXGI_FORMAT_R32_FLOAT
	case gpuhal.R32ui:
		return dxgi.DXGI_FORMAT_R32_UINT
	case gpuhal.D16un:
		return dxgi.DXGI_FORMAT_D16_UNORM
	case gpuhal.D32f:
		return dxgi.DXGI_FORMAT_D32_FLOAT
	case gpuhal.S8ui:
		// DXGI has no standalone stencil-only format; callers that
		// need stencil without depth allocate D24unS8ui and ignore
		// the depth plane, the same accommodation the reference
		// model makes for APIs lacking a bare S8 format.
		return dxgi.DXGI_FORMAT_D24_UNORM_S8_UINT
	case gpuhal.D24unS8ui:
		return dxgi.DXGI_FORMAT_D24_UNORM_S8_UINT
	case gpuhal.D32fS8ui:
		return dxgi.DXGI_FORMAT_D32_FLOAT_S8X24_UINT
	default:
		return dxgi.DXGI_FORMAT_UNKNOWN
	}
}
