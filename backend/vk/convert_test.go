package vk

import (
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/gviegas/gpuhal"
)

func TestConvFormatOnto(t *testing.T) {
	formats := []gpuhal.Format{
		gpuhal.RGBA8un, gpuhal.RGBA8srgb, gpuhal.BGRA8un, gpuhal.BGRA8srgb,
		gpuhal.RG8un, gpuhal.R8un, gpuhal.RGBA16f, gpuhal.RG16f, gpuhal.R16f,
		gpuhal.RGBA32f, gpuhal.RG32f, gpuhal.R32f, gpuhal.R32ui,
		gpuhal.D16un, gpuhal.D32f, gpuhal.S8ui, gpuhal.D24unS8ui, gpuhal.D32fS8ui,
	}
	for _, f := range formats {
		if got := convFormat(f); got == vk.FormatUndefined {
			t.Errorf("convFormat(%v) = Undefined, want a real Vulkan format", f)
		}
	}
}

func TestConvFormatUnknownValue(t *testing.T) {
	if got := convFormat(gpuhal.Format(999)); got != vk.FormatUndefined {
		t.Errorf("convFormat(invalid) = %v, want Undefined", got)
	}
}

func TestConvResourceStateCommonTransitions(t *testing.T) {
	cases := []struct {
		state gpuhal.ResourceState
		want  vk.ImageLayout
	}{
		{gpuhal.StateUndefined, vk.ImageLayoutUndefined},
		{gpuhal.StateRenderTarget, vk.ImageLayoutColorAttachmentOptimal},
		{gpuhal.StateDepthWrite, vk.ImageLayoutDepthStencilAttachmentOptimal},
		{gpuhal.StateDepthRead, vk.ImageLayoutDepthStencilReadOnlyOptimal},
		{gpuhal.StateShaderResource, vk.ImageLayoutShaderReadOnlyOptimal},
		{gpuhal.StateShaderResourceNonPixel, vk.ImageLayoutShaderReadOnlyOptimal},
		{gpuhal.StateUnorderedAccess, vk.ImageLayoutGeneral},
		{gpuhal.StateCopySrc, vk.ImageLayoutTransferSrcOptimal},
		{gpuhal.StateResolveSrc, vk.ImageLayoutTransferSrcOptimal},
		{gpuhal.StateCopyDst, vk.ImageLayoutTransferDstOptimal},
		{gpuhal.StateResolveDst, vk.ImageLayoutTransferDstOptimal},
		{gpuhal.StatePresent, vk.ImageLayoutPresentSrcKhr},
	}
	for _, c := range cases {
		if got := convResourceState(c.state); got != c.want {
			t.Errorf("convResourceState(%v) = %v, want %v", c.state, got, c.want)
		}
	}
}

func TestConvQueueFamily(t *testing.T) {
	b := &Backend{}
	b.qfam[gpuhal.QueueDirect] = 1
	b.qfam[gpuhal.QueueCompute] = 2
	b.qfam[gpuhal.QueueCopy] = 3

	for qt, want := range map[gpuhal.QueueType]uint32{
		gpuhal.QueueDirect:  1,
		gpuhal.QueueCompute: 2,
		gpuhal.QueueCopy:    3,
	} {
		if got := convQueueFamily(b, qt); got != want {
			t.Errorf("convQueueFamily(%v) = %d, want %d", qt, got, want)
		}
	}
}
