package vk

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/gviegas/gpuhal"
)

// requiredDeviceExtensions are always enabled; rayTracingExtensions
// are requested whenever cfg.EnableRaytracing is set. Device support
// for them is not checked before device creation.
var requiredDeviceExtensions = []string{
	"VK_KHR_swapchain",
	"VK_KHR_timeline_semaphore",
	"VK_EXT_memory_budget",
	"VK_KHR_push_descriptor",
}

var rayTracingExtensions = []string{
	"VK_KHR_acceleration_structure",
	"VK_KHR_ray_tracing_pipeline",
	"VK_KHR_deferred_host_operations",
	"VK_KHR_buffer_device_address",
}

func (b *Backend) createInstance(cfg gpuhal.Config) error {
	appInfo := vk.ApplicationInfo{
		SType:      vk.StructureTypeApplicationInfo,
		ApiVersion: vk.ApiVersion13,
	}
	var layers []string
	exts := []string{"VK_EXT_debug_utils"}
	if cfg.Validation != gpuhal.ValidationOff {
		layers = []string{"VK_LAYER_KHRONOS_validation"}
	}
	info := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: exts,
	}
	var inst vk.Instance
	res := vk.CreateInstance(&info, nil, &inst)
	if res != vk.Success {
		if cfg.Validation != gpuhal.ValidationOff {
			return fmt.Errorf("vk: %w: %v", gpuhal.ErrValidationUnavailable, vkError(res))
		}
		return fmt.Errorf("vk: %w: %v", gpuhal.ErrNoDevice, vkError(res))
	}
	b.inst = inst
	vk.InitInstance(inst)
	return nil
}

func (b *Backend) selectPhysicalDevice(cfg gpuhal.Config) error {
	var n uint32
	vk.EnumeratePhysicalDevices(b.inst, &n, nil)
	if n == 0 {
		return gpuhal.ErrNoDevice
	}
	devs := make([]vk.PhysicalDevice, n)
	vk.EnumeratePhysicalDevices(b.inst, &n, devs)

	best := -1
	bestScore := -1
	for i, d := range devs {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(d, &props)
		props.Deref()
		score := 0
		switch {
		case props.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu:
			score = 2
		case props.DeviceType == vk.PhysicalDeviceTypeIntegratedGpu:
			score = 1
		}
		if cfg.AdapterPref == gpuhal.AdapterIntegrated {
			score = -score // favor integrated
		}
		if cfg.AdapterPref == gpuhal.AdapterExplicitIndex && i == cfg.ExplicitAdapter {
			score = 1 << 30
		}
		if score > bestScore {
			bestScore, best = score, i
		}
	}
	if best < 0 {
		return gpuhal.ErrNoDevice
	}
	b.pdev = devs[best]
	vk.GetPhysicalDeviceProperties(b.pdev, &b.props)
	b.props.Deref()
	vk.GetPhysicalDeviceMemoryProperties(b.pdev, &b.memProps)
	b.memProps.Deref()

	var limitsOut vk.PhysicalDeviceLimits
	limitsOut = b.props.Limits
	b.limits = limitsOut
	b.tsPeriod = b.limits.TimestampPeriod
	return nil
}

func (b *Backend) createDevice(cfg gpuhal.Config) error {
	var n uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(b.pdev, &n, nil)
	famProps := make([]vk.QueueFamilyProperties, n)
	vk.GetPhysicalDeviceQueueFamilyProperties(b.pdev, &n, famProps)

	directFam, computeFam, copyFam := pickQueueFamilies(famProps)
	b.qfam = [3]uint32{directFam, computeFam, copyFam}

	unique := map[uint32]bool{directFam: true, computeFam: true, copyFam: true}
	priority := []float32{1.0}
	var queueInfos []vk.DeviceQueueCreateInfo
	for fam := range unique {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: fam,
			QueueCount:       1,
			PQueuePriorities: priority,
		})
	}

	exts := append([]string{}, requiredDeviceExtensions...)
	raytracing := false
	if cfg.EnableRaytracing {
		exts = append(exts, rayTracingExtensions...)
		raytracing = true
	}

	dynRenderingFeature := vk.PhysicalDeviceDynamicRenderingFeatures{
		SType:            vk.StructureTypePhysicalDeviceDynamicRenderingFeatures,
		DynamicRendering: vk.True,
	}
	timelineFeature := vk.PhysicalDeviceTimelineSemaphoreFeatures{
		SType:             vk.StructureTypePhysicalDeviceTimelineSemaphoreFeatures,
		TimelineSemaphore: vk.True,
		PNext:             unsafePtr(&dynRenderingFeature),
	}
	devInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		PNext:                   unsafePtr(&timelineFeature),
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: exts,
	}
	var dev vk.Device
	if res := vk.CreateDevice(b.pdev, &devInfo, nil, &dev); res != vk.Success {
		return fmt.Errorf("vk: %w: %v", gpuhal.ErrNoDevice, vkError(res))
	}
	b.dev = dev
	vk.InitDevice(dev)
	b.raytracingEnabled = raytracing

	if raytracing {
		b.rtProps.SType = vk.StructureTypePhysicalDeviceRayTracingPipelinePropertiesKhr
		b.rtASProps.SType = vk.StructureTypePhysicalDeviceAccelerationStructurePropertiesKhr
		b.rtProps.PNext = unsafePtr(&b.rtASProps)
		props2 := vk.PhysicalDeviceProperties2{
			SType: vk.StructureTypePhysicalDeviceProperties2,
			PNext: unsafePtr(&b.rtProps),
		}
		vk.GetPhysicalDeviceProperties2(b.pdev, &props2)
	}

	for i, fam := range b.qfam {
		var q vk.Queue
		vk.GetDeviceQueue(dev, fam, 0, &q)
		b.ques[i] = q
	}
	return nil
}

// pickQueueFamilies chooses a direct (graphics+compute+transfer)
// family, a dedicated async-compute family if one exists, and a
// dedicated copy (transfer-only) family if one exists, falling back
// to the direct family for either when the device exposes no
// dedicated one — the same fallback chain the reference
// implementation's queue selection uses.
func pickQueueFamilies(props []vk.QueueFamilyProperties) (direct, compute, copy uint32) {
	direct, compute, copy = ^uint32(0), ^uint32(0), ^uint32(0)
	for i := range props {
		props[i].Deref()
	}
	for i, p := range props {
		flags := vk.QueueFlagBits(p.QueueFlags)
		if flags&vk.QueueGraphicsBit != 0 && flags&vk.QueueComputeBit != 0 {
			if direct == ^uint32(0) {
				direct = uint32(i)
			}
		}
	}
	for i, p := range props {
		flags := vk.QueueFlagBits(p.QueueFlags)
		if flags&vk.QueueComputeBit != 0 && flags&vk.QueueGraphicsBit == 0 {
			compute = uint32(i)
			break
		}
	}
	for i, p := range props {
		flags := vk.QueueFlagBits(p.QueueFlags)
		if flags&vk.QueueTransferBit != 0 && flags&(vk.QueueGraphicsBit|vk.QueueComputeBit) == 0 {
			copy = uint32(i)
			break
		}
	}
	if compute == ^uint32(0) {
		compute = direct
	}
	if copy == ^uint32(0) {
		copy = direct
	}
	return
}
