package render

import (
	"context"
	"log/slog"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"
)

const engineName = "pixel_engine"

var (
	validationLayers = []string{"VK_LAYER_KHRONOS_validation"}
	deviceExtensions = []string{"VK_KHR_swapchain"}
)

type contextOptions struct {
	appName    string
	validation bool
}

// deviceContext owns the instance, surface, logical device and its queues.
// It is built once and destroyed last.
type deviceContext struct {
	log            *slog.Logger
	validation     bool
	instance       vulkan.Instance
	debugCallback  vulkan.DebugReportCallback
	surface        vulkan.Surface
	physicalDevice vulkan.PhysicalDevice
	device         vulkan.Device
	queues         queueFamilies
	graphicsQueue  vulkan.Queue
	presentQueue   vulkan.Queue
}

// newDeviceContext creates everything up to the logical device. On failure
// the objects already created are released.
func newDeviceContext(win Window, opts contextOptions, log *slog.Logger) (*deviceContext, error) {
	c := &deviceContext{log: log, validation: opts.validation}
	steps := []func() error{
		func() error { return c.createInstance(win, opts.appName) },
		c.setupDebugCallback,
		func() error { return c.createSurface(win) },
		c.pickPhysicalDevice,
		c.createLogicalDevice,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			c.destroy()
			return nil, err
		}
	}
	return c, nil
}

func (c *deviceContext) createInstance(win Window, appName string) error {
	if c.validation && !validationLayersSupported() {
		c.log.Warn("validation layers requested but not available, continuing without them",
			"layers", validationLayers)
		c.validation = false
	}

	appInfo := vulkan.ApplicationInfo{
		SType:              vulkan.StructureTypeApplicationInfo,
		PApplicationName:   appName,
		ApplicationVersion: vulkan.MakeVersion(1, 0, 0),
		PEngineName:        engineName,
		EngineVersion:      vulkan.MakeVersion(1, 0, 0),
		ApiVersion:         vulkan.MakeVersion(1, 1, 0),
	}

	extensions := win.RequiredInstanceExtensions()
	if c.validation {
		extensions = append(extensions, "VK_EXT_debug_report")
	}

	createInfo := vulkan.InstanceCreateInfo{
		SType:                   vulkan.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}
	if c.validation {
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
		createInfo.PpEnabledLayerNames = validationLayers
	}

	if err := vkCheck("create instance", vulkan.CreateInstance(&createInfo, nil, &c.instance)); err != nil {
		return err
	}
	if err := vulkan.InitInstance(c.instance); err != nil {
		return errors.Wrap(err, "init instance")
	}
	return nil
}

func validationLayersSupported() bool {
	var count uint32
	if vulkan.EnumerateInstanceLayerProperties(&count, nil) != vulkan.Success {
		return false
	}
	props := make([]vulkan.LayerProperties, count)
	if vulkan.EnumerateInstanceLayerProperties(&count, props) != vulkan.Success {
		return false
	}
	supported := make(map[string]bool)
	for i := range props {
		props[i].Deref()
		supported[vulkan.ToString(props[i].LayerName[:])] = true
	}
	for _, l := range validationLayers {
		if !supported[l] {
			return false
		}
	}
	return true
}

func (c *deviceContext) setupDebugCallback() error {
	if !c.validation {
		return nil
	}
	log := c.log.With("source", "validation")
	createInfo := vulkan.DebugReportCallbackCreateInfo{
		SType: vulkan.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vulkan.DebugReportFlags(
			vulkan.DebugReportErrorBit |
				vulkan.DebugReportWarningBit |
				vulkan.DebugReportPerformanceWarningBit),
		PfnCallback: func(flags vulkan.DebugReportFlags, objectType vulkan.DebugReportObjectType, object uint64, location uint, messageCode int32, layerPrefix string, message string, userData unsafe.Pointer) vulkan.Bool32 {
			level := slog.LevelWarn
			if flags&vulkan.DebugReportFlags(vulkan.DebugReportErrorBit) != 0 {
				level = slog.LevelError
			}
			log.Log(context.Background(), level, message, "layer", layerPrefix, "code", messageCode, "flags", uint32(flags))
			return vulkan.False
		},
	}
	return vkCheck("create debug callback",
		vulkan.CreateDebugReportCallback(c.instance, &createInfo, nil, &c.debugCallback))
}

func (c *deviceContext) createSurface(win Window) error {
	surface, err := win.CreateSurface(c.instance)
	if err != nil {
		return errors.Wrap(err, "create window surface")
	}
	c.surface = surface
	return nil
}

func (c *deviceContext) pickPhysicalDevice() error {
	var count uint32
	if err := vkCheck("enumerate physical devices", vulkan.EnumeratePhysicalDevices(c.instance, &count, nil)); err != nil {
		return err
	}
	if count == 0 {
		return errors.Wrap(ErrNoSuitableDevice, "no Vulkan devices")
	}
	devices := make([]vulkan.PhysicalDevice, count)
	if err := vkCheck("enumerate physical devices list", vulkan.EnumeratePhysicalDevices(c.instance, &count, devices)); err != nil {
		return err
	}

	cands := make([]deviceCandidate, len(devices))
	for i, dev := range devices {
		cand, err := c.describeDevice(dev)
		if err != nil {
			return errors.Wrapf(err, "describe device %d", i)
		}
		cands[i] = cand
		c.log.Debug("physical device", "name", cands[i].name, "score", scoreDevice(cands[i]))
	}
	best := bestCandidate(cands)
	if best < 0 {
		return errors.WithStack(ErrNoSuitableDevice)
	}

	c.physicalDevice = devices[best]
	c.queues = cands[best].queues

	var props vulkan.PhysicalDeviceProperties
	vulkan.GetPhysicalDeviceProperties(c.physicalDevice, &props)
	props.Deref()
	c.log.Info("selected GPU",
		"name", cands[best].name,
		"api", vulkan.Version(props.ApiVersion),
		"graphics_family", c.queues.graphics,
		"present_family", c.queues.present)
	return nil
}

func (c *deviceContext) describeDevice(dev vulkan.PhysicalDevice) (deviceCandidate, error) {
	var props vulkan.PhysicalDeviceProperties
	vulkan.GetPhysicalDeviceProperties(dev, &props)
	props.Deref()

	support, err := querySurfaceSupport(vkSurfaceQuerier{dev: dev, surface: c.surface})
	if err != nil {
		return deviceCandidate{}, err
	}
	return deviceCandidate{
		name:         vulkan.ToString(props.DeviceName[:]),
		deviceType:   props.DeviceType,
		queues:       c.findQueueFamilies(dev),
		swapchainExt: deviceExtensionsSupported(dev),
		formats:      len(support.formats),
		presentModes: len(support.presentModes),
	}, nil
}

func (c *deviceContext) findQueueFamilies(dev vulkan.PhysicalDevice) queueFamilies {
	var count uint32
	vulkan.GetPhysicalDeviceQueueFamilyProperties(dev, &count, nil)
	props := make([]vulkan.QueueFamilyProperties, count)
	vulkan.GetPhysicalDeviceQueueFamilyProperties(dev, &count, props)
	for i := range props {
		props[i].Deref()
	}
	return pickQueueFamilies(props, func(family uint32) bool {
		var present vulkan.Bool32
		vulkan.GetPhysicalDeviceSurfaceSupport(dev, family, c.surface, &present)
		return present == vulkan.True
	})
}

func deviceExtensionsSupported(dev vulkan.PhysicalDevice) bool {
	var count uint32
	if vulkan.EnumerateDeviceExtensionProperties(dev, "", &count, nil) != vulkan.Success {
		return false
	}
	props := make([]vulkan.ExtensionProperties, count)
	if vulkan.EnumerateDeviceExtensionProperties(dev, "", &count, props) != vulkan.Success {
		return false
	}
	supported := make(map[string]bool)
	for i := range props {
		props[i].Deref()
		supported[vulkan.ToString(props[i].ExtensionName[:])] = true
	}
	for _, ext := range deviceExtensions {
		if !supported[ext] {
			return false
		}
	}
	return true
}

func (c *deviceContext) createLogicalDevice() error {
	var queueInfos []vulkan.DeviceQueueCreateInfo
	for _, family := range c.queues.unique() {
		queueInfos = append(queueInfos, vulkan.DeviceQueueCreateInfo{
			SType:            vulkan.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}

	createInfo := vulkan.DeviceCreateInfo{
		SType:                   vulkan.StructureTypeDeviceCreateInfo,
		PQueueCreateInfos:       queueInfos,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PEnabledFeatures:        []vulkan.PhysicalDeviceFeatures{{}},
		PpEnabledExtensionNames: deviceExtensions,
		EnabledExtensionCount:   uint32(len(deviceExtensions)),
	}
	if c.validation {
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
		createInfo.PpEnabledLayerNames = validationLayers
	}

	if err := vkCheck("create logical device", vulkan.CreateDevice(c.physicalDevice, &createInfo, nil, &c.device)); err != nil {
		return err
	}

	vulkan.GetDeviceQueue(c.device, c.queues.graphics, 0, &c.graphicsQueue)
	vulkan.GetDeviceQueue(c.device, c.queues.present, 0, &c.presentQueue)
	return nil
}

func (c *deviceContext) waitIdle() error {
	return vkCheck("device wait idle", vulkan.DeviceWaitIdle(c.device))
}

// destroy releases the context in reverse creation order. The surface goes
// before the instance that created it.
func (c *deviceContext) destroy() {
	if c.device != vulkan.Device(vulkan.NullHandle) {
		vulkan.DestroyDevice(c.device, nil)
		c.device = vulkan.Device(vulkan.NullHandle)
	}
	if c.debugCallback != vulkan.DebugReportCallback(vulkan.NullHandle) {
		vulkan.DestroyDebugReportCallback(c.instance, c.debugCallback, nil)
		c.debugCallback = vulkan.DebugReportCallback(vulkan.NullHandle)
	}
	if c.surface != vulkan.Surface(vulkan.NullHandle) {
		vulkan.DestroySurface(c.instance, c.surface, nil)
		c.surface = vulkan.Surface(vulkan.NullHandle)
	}
	if c.instance != vulkan.Instance(vulkan.NullHandle) {
		vulkan.DestroyInstance(c.instance, nil)
		c.instance = vulkan.Instance(vulkan.NullHandle)
	}
}
