package vk

import (
	vk "github.com/goki/vulkan"

	"github.com/gviegas/gpuhal"
)

// swapchainRes is a presentable surface, its native swapchain and the
// pool-backed resource handle wrapping each backbuffer image, plus the
// pair of semaphores used per in-flight backbuffer for
// acquire/present synchronization.
type swapchainRes struct {
	surface  vk.SurfaceKHR
	chain    vk.SwapchainKHR
	format   vk.Format
	extent   vk.Extent2D
	images   []gpuhal.ResourceHandle
	views    []vk.ImageView
	acquireSem []vk.Semaphore
	presentSem []vk.Semaphore
	current  uint32
	outOfDate bool
}

// CreateSwapchain implements gpuhal.Backend.
func (b *Backend) CreateSwapchain(surface gpuhal.SurfaceHandle, width, height int) (gpuhal.SwapchainHandle, error) {
	sf := vk.SurfaceKHR(surface)

	var caps vk.SurfaceCapabilitiesKHR
	if res := vk.GetPhysicalDeviceSurfaceCapabilitiesKHR(b.pdev, sf, &caps); res != vk.Success {
		return gpuhal.NullSwapchain, vkError(res)
	}
	caps.Deref()

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormatsKHR(b.pdev, sf, &formatCount, nil)
	formats := make([]vk.SurfaceFormatKHR, formatCount)
	vk.GetPhysicalDeviceSurfaceFormatsKHR(b.pdev, sf, &formatCount, formats)
	chosen := formats[0]
	chosen.Deref()
	for _, f := range formats {
		f.Deref()
		if f.Format == vk.FormatB8g8r8a8Unorm {
			chosen = f
			break
		}
	}

	extent := vk.Extent2D{Width: uint32(width), Height: uint32(height)}
	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	info := vk.SwapchainCreateInfoKHR{
		SType:            vk.StructureTypeSwapchainCreateInfoKhr,
		Surface:          sf,
		MinImageCount:    imageCount,
		ImageFormat:      chosen.Format,
		ImageColorSpace:  chosen.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBitKhr,
		PresentMode:      vk.PresentModeFifoKhr,
		Clipped:          vk.True,
	}
	var chain vk.SwapchainKHR
	if res := vk.CreateSwapchainKHR(b.dev, &info, nil, &chain); res != vk.Success {
		return gpuhal.NullSwapchain, vkError(res)
	}

	var n uint32
	vk.GetSwapchainImagesKHR(b.dev, chain, &n, nil)
	images := make([]vk.Image, n)
	vk.GetSwapchainImagesKHR(b.dev, chain, &n, images)

	sc := swapchainRes{surface: sf, chain: chain, format: chosen.Format, extent: extent}
	for _, img := range images {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    img,
			ViewType: vk.ImageViewType2d,
			Format:   chosen.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		var view vk.ImageView
		vk.CreateImageView(b.dev, &viewInfo, nil, &view)
		sc.views = append(sc.views, view)

		h := b.resources.insert(resourceRes{isImage: true, image: imageRes{
			img: img, format: chosen.Format, aspect: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			layers: 1, levels: 1, borrowed: true,
		}})
		sc.images = append(sc.images, gpuhal.ResourceFromRaw(h))

		var asem, psem vk.Semaphore
		semInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
		vk.CreateSemaphore(b.dev, &semInfo, nil, &asem)
		vk.CreateSemaphore(b.dev, &semInfo, nil, &psem)
		sc.acquireSem = append(sc.acquireSem, asem)
		sc.presentSem = append(sc.presentSem, psem)
	}

	h := b.swapch.insert(sc)
	return gpuhal.SwapchainFromRaw(h), nil
}

// FreeSwapchain implements gpuhal.Backend.
func (b *Backend) FreeSwapchain(h gpuhal.SwapchainHandle) {
	r, ok := b.swapch.remove(h.Raw())
	if !ok {
		return
	}
	for _, rh := range r.images {
		b.FreeResource(rh)
	}
	for _, v := range r.views {
		vk.DestroyImageView(b.dev, v, nil)
	}
	for _, s := range r.acquireSem {
		vk.DestroySemaphore(b.dev, s, nil)
	}
	for _, s := range r.presentSem {
		vk.DestroySemaphore(b.dev, s, nil)
	}
	vk.DestroySwapchainKHR(b.dev, r.chain, nil)
}

// AcquireBackbuffer implements gpuhal.Backend.
func (b *Backend) AcquireBackbuffer(sc gpuhal.SwapchainHandle) (gpuhal.ResourceView, error) {
	r, ok := b.swapch.get(sc.Raw())
	if !ok {
		return gpuhal.ResourceView{}, gpuhal.ErrInvalidHandle
	}
	if r.outOfDate {
		r.outOfDate = false
		return gpuhal.BackbufferView(gpuhal.NullResource), nil
	}
	var idx uint32
	res := vk.AcquireNextImageKHR(b.dev, r.chain, ^uint64(0), r.acquireSem[r.current], vk.NullFence, &idx)
	if res == vk.ErrorOutOfDate {
		r.outOfDate = true
		return gpuhal.BackbufferView(gpuhal.NullResource), nil
	}
	if res != vk.Success && res != vk.Suboptimal {
		return gpuhal.ResourceView{}, vkError(res)
	}
	view := gpuhal.BackbufferView(r.images[idx])
	return view, nil
}

// Present implements gpuhal.Backend.
func (b *Backend) Present(sc gpuhal.SwapchainHandle) error {
	r, ok := b.swapch.get(sc.Raw())
	if !ok {
		return gpuhal.ErrInvalidHandle
	}
	chains := []vk.SwapchainKHR{r.chain}
	indices := []uint32{r.current}
	waitSems := []vk.Semaphore{r.presentSem[r.current]}
	info := vk.PresentInfoKHR{
		SType:              vk.StructureTypePresentInfoKhr,
		WaitSemaphoreCount: uint32(len(waitSems)),
		PWaitSemaphores:    waitSems,
		SwapchainCount:     uint32(len(chains)),
		PSwapchains:        chains,
		PImageIndices:      indices,
	}
	r.current = (r.current + 1) % uint32(len(r.images))
	b.qmus[gpuhal.QueueDirect].Lock()
	res := vk.QueuePresentKHR(b.ques[gpuhal.QueueDirect], &info)
	b.qmus[gpuhal.QueueDirect].Unlock()
	if res == vk.ErrorOutOfDate || res == vk.Suboptimal {
		r.outOfDate = true
		return gpuhal.ErrSwapchainOutOfDate
	}
	if res != vk.Success {
		return vkError(res)
	}
	return nil
}
