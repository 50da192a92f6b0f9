package vk

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/gviegas/gpuhal"
)

// unsafePtr adapts a typed pNext chain link to the unsafe.Pointer the
// goki/vulkan bindings require, mirroring the raw pointer casts the
// cgo-based original performs at every *CreateInfo.pNext assignment.
func unsafePtr[T any](v *T) unsafe.Pointer { return unsafe.Pointer(v) }

func convFormat(f gpuhal.Format) vk.Format {
	switch f {
	case gpuhal.RGBA8un:
		return vk.FormatR8g8b8a8Unorm
	case gpuhal.RGBA8srgb:
		return vk.FormatR8g8b8a8Srgb
	case gpuhal.BGRA8un:
		return vk.FormatB8g8r8a8Unorm
	case gpuhal.BGRA8srgb:
		return vk.FormatB8g8r8a8Srgb
	case gpuhal.RG8un:
		return vk.FormatR8g8Unorm
	case gpuhal.R8un:
		return vk.FormatR8Unorm
	case gpuhal.RGBA16f:
		return vk.FormatR16g16b16a16Sfloat
	case gpuhal.RG16f:
		return vk.FormatR16g16Sfloat
	case gpuhal.R16f:
		return vk.FormatR16Sfloat
	case gpuhal.RGBA32f:
		return vk.FormatR32g32b32a32Sfloat
	case gpuhal.RG32f:
		return vk.FormatR32g32Sfloat
	case gpuhal.R32f:
		return vk.FormatR32Sfloat
	case gpuhal.R32ui:
		return vk.FormatR32Uint
	case gpuhal.D16un:
		return vk.FormatD16Unorm
	case gpuhal.D32f:
		return vk.FormatD32Sfloat
	case gpuhal.S8ui:
		return vk.FormatS8Uint
	case gpuhal.D24unS8ui:
		return vk.FormatD24UnormS8Uint
	case gpuhal.D32fS8ui:
		return vk.FormatD32SfloatS8Uint
	default:
		return vk.FormatUndefined
	}
}

// convResourceState converts a gpuhal.ResourceState to the image
// layout half of a Vulkan barrier; the access-mask/pipeline-stage half
// is derived separately by stateSyncScope (see cmd.go), mirroring the
// reference implementation's split between layout and the
// access/stage pair in a VkImageMemoryBarrier.
func convResourceState(s gpuhal.ResourceState) vk.ImageLayout {
	switch s {
	case gpuhal.StateUndefined:
		return vk.ImageLayoutUndefined
	case gpuhal.StateRenderTarget:
		return vk.ImageLayoutColorAttachmentOptimal
	case gpuhal.StateDepthWrite:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case gpuhal.StateDepthRead:
		return vk.ImageLayoutDepthStencilReadOnlyOptimal
	case gpuhal.StateShaderResource, gpuhal.StateShaderResourceNonPixel:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case gpuhal.StateUnorderedAccess:
		return vk.ImageLayoutGeneral
	case gpuhal.StateCopySrc, gpuhal.StateResolveSrc:
		return vk.ImageLayoutTransferSrcOptimal
	case gpuhal.StateCopyDst, gpuhal.StateResolveDst:
		return vk.ImageLayoutTransferDstOptimal
	case gpuhal.StatePresent:
		return vk.ImageLayoutPresentSrcKhr
	default:
		return vk.ImageLayoutGeneral
	}
}

func convQueueFamily(b *Backend, q gpuhal.QueueType) uint32 { return b.qfam[q] }
