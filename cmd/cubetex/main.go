// Command cubetex loads a six-face cube map from a directory onto the first
// suitable Vulkan device, reports the resulting texture and optionally
// samples the decoded faces along a few directions.
//
// It needs no window: SDL2 is only used to load the Vulkan library.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/cubemap/cubeface"
	"github.com/vkngwrapper/cubemap/gpu"
	"github.com/vkngwrapper/cubemap/texture"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}

// probeList collects repeated -probe x,y,z flags.
type probeList []mgl32.Vec3

func (p *probeList) String() string {
	parts := make([]string, len(*p))
	for i, dir := range *p {
		parts[i] = fmt.Sprintf("%g,%g,%g", dir.X(), dir.Y(), dir.Z())
	}
	return strings.Join(parts, " ")
}

func (p *probeList) Set(value string) error {
	fields := strings.Split(value, ",")
	if len(fields) != 3 {
		return errors.Newf("probe %q: want x,y,z", value)
	}

	var dir mgl32.Vec3
	for i, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 32)
		if err != nil {
			return errors.Wrapf(err, "probe %q", value)
		}
		dir[i] = float32(v)
	}
	*p = append(*p, dir)
	return nil
}

type config struct {
	dir        string
	mips       bool
	allLayers  bool
	finalize   bool
	validation bool
	verbose    bool
	probes     probeList
}

type CubeTexApplication struct {
	config config
	logger *slog.Logger

	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver
	deviceDriver   core1_0.CoreDeviceDriver

	debugDriver    ext_debug_utils.ExtensionDriver
	debugMessenger ext_debug_utils.DebugUtilsMessenger

	physicalDevice core1_0.PhysicalDevice
	graphicsFamily int
	graphicsQueue  core1_0.Queue
	commandPool    core1_0.CommandPool

	texture *texture.CubeTexture
}

func (app *CubeTexApplication) Run(ctx context.Context) error {
	err := app.initVulkan()
	defer app.cleanup()
	if err != nil {
		return err
	}

	return app.loadTexture(ctx)
}

func (app *CubeTexApplication) initVulkan() error {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return err
	}

	if err := sdl.VulkanLoadLibrary(""); err != nil {
		return errors.Wrap(err, "load vulkan library")
	}

	var err error
	app.globalDriver, err = core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return err
	}

	err = app.createInstance()
	if err != nil {
		return err
	}

	err = app.setupDebugMessenger()
	if err != nil {
		return err
	}

	err = app.pickPhysicalDevice()
	if err != nil {
		return err
	}

	err = app.createLogicalDevice()
	if err != nil {
		return err
	}

	return app.createCommandPool()
}

func (app *CubeTexApplication) createInstance() error {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    "cubetex",
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "No Engine",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	extensions, _, err := app.globalDriver.AvailableExtensions()
	if err != nil {
		return err
	}

	if app.config.validation {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)
	}

	_, enumerationSupported := extensions[khr_portability_enumeration.ExtensionName]
	if enumerationSupported {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if app.config.validation {
		layers, _, err := app.globalDriver.AvailableLayers()
		if err != nil {
			return err
		}

		for _, layer := range validationLayers {
			_, hasValidation := layers[layer]
			if !hasValidation {
				return errors.Errorf("createInstance: cannot add validation layer %s: not available, install the LunarG Vulkan SDK", layer)
			}
			instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, layer)
		}

		instanceOptions.Next = app.debugMessengerOptions()
	}

	app.instanceDriver, _, err = app.globalDriver.CreateInstance(nil, instanceOptions)
	return err
}

func (app *CubeTexApplication) debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning | ext_debug_utils.SeverityInfo,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    app.logDebug,
	}
}

func (app *CubeTexApplication) setupDebugMessenger() error {
	if !app.config.validation {
		return nil
	}

	var err error
	app.debugDriver = ext_debug_utils.CreateExtensionDriverFromCoreDriver(app.instanceDriver)
	app.debugMessenger, _, err = app.debugDriver.CreateDebugUtilsMessenger(nil, app.debugMessengerOptions())
	return err
}

func (app *CubeTexApplication) pickPhysicalDevice() error {
	physicalDevices, _, err := app.instanceDriver.EnumeratePhysicalDevices()
	if err != nil {
		return err
	}

	for _, device := range physicalDevices {
		family, ok := app.graphicsQueueFamily(device)
		if !ok {
			continue
		}

		features := app.instanceDriver.GetPhysicalDeviceFeatures(device)
		if !features.SamplerAnisotropy {
			continue
		}

		app.physicalDevice = device
		app.graphicsFamily = family
		break
	}

	if !app.physicalDevice.Initialized() {
		return errors.Errorf("failed to find a suitable GPU!")
	}

	properties, err := app.instanceDriver.GetPhysicalDeviceProperties(app.physicalDevice)
	if err != nil {
		return err
	}
	if properties.Limits.MaxSamplerAnisotropy < texture.MaxAnisotropy {
		app.logger.Warn("device anisotropy limit below sampler setting",
			slog.Float64("limit", float64(properties.Limits.MaxSamplerAnisotropy)),
			slog.Int("sampler", texture.MaxAnisotropy))
	}
	app.logger.Debug("picked physical device", slog.String("name", properties.DeviceName))
	return nil
}

func (app *CubeTexApplication) graphicsQueueFamily(device core1_0.PhysicalDevice) (int, bool) {
	queueFamilies := app.instanceDriver.GetPhysicalDeviceQueueFamilyProperties(device)

	for queueFamilyIdx, queueFamily := range queueFamilies {
		if (queueFamily.QueueFlags & core1_0.QueueGraphics) != 0 {
			return queueFamilyIdx, true
		}
	}

	return 0, false
}

func (app *CubeTexApplication) createLogicalDevice() error {
	var extensionNames []string

	// Required on portability implementations such as MoltenVK
	extensions, _, err := app.instanceDriver.EnumerateDeviceExtensionProperties(app.physicalDevice)
	if err != nil {
		return err
	}

	_, supported := extensions[khr_portability_subset.ExtensionName]
	if supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	app.deviceDriver, _, err = app.instanceDriver.CreateDevice(app.physicalDevice, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos: []core1_0.DeviceQueueCreateInfo{
			{
				QueueFamilyIndex: app.graphicsFamily,
				QueuePriorities:  []float32{1.0},
			},
		},
		EnabledFeatures: &core1_0.PhysicalDeviceFeatures{
			SamplerAnisotropy: true,
		},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return err
	}

	app.graphicsQueue = app.deviceDriver.GetQueue(app.graphicsFamily, 0)
	return nil
}

func (app *CubeTexApplication) createCommandPool() error {
	pool, _, err := app.deviceDriver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: app.graphicsFamily,
	})
	if err != nil {
		return err
	}

	app.commandPool = pool
	return nil
}

func (app *CubeTexApplication) loadTexture(ctx context.Context) error {
	faces, err := cubeface.LoadContext(ctx, app.config.dir)
	if err != nil {
		return err
	}

	device := gpu.NewVulkanDevice(app.instanceDriver, app.physicalDevice, app.deviceDriver)
	pool := gpu.NewVulkanCommandPool(app.deviceDriver, app.commandPool)
	queue := gpu.NewVulkanQueue(app.deviceDriver, app.graphicsQueue)

	app.texture, err = texture.FromPixels(device, pool, queue, device.MemoryProperties(),
		texture.FaceFormat, faces.Pixels, faces.Width, faces.Height, cubeface.Count, true,
		texture.WithLogger(app.logger),
		texture.WithMipRequest(app.config.mips),
		texture.WithAllLayerMips(app.config.allLayers),
		texture.WithFinalizeSingleLevel(app.config.finalize))
	if err != nil {
		return err
	}

	extent := app.texture.Extent()
	fmt.Printf("texture %s: %dx%d, %d layers, %d mip levels, %s, layout %s\n",
		app.texture.ID(), extent.Width, extent.Height, app.texture.Layers(),
		app.texture.MipLevels(), app.texture.Format(), app.texture.Layout())

	for _, face := range cubeface.All {
		app.logger.Debug("face orientation",
			slog.String("face", face.String()),
			slog.String("file", face.Filename()),
			slog.Any("view", face.ViewMatrix(mgl32.Vec3{})))
	}

	for _, dir := range app.config.probes {
		face, texel := faces.Sample(dir)
		_, s, t := cubeface.FaceOf(dir)
		fmt.Printf("probe %v: face %s at %.3f,%.3f = #%02x%02x%02x%02x\n",
			dir, face, s, t, texel.R, texel.G, texel.B, texel.A)
	}

	return nil
}

func (app *CubeTexApplication) cleanup() {
	if app.deviceDriver != nil {
		_, err := app.deviceDriver.DeviceWaitIdle()
		if err != nil {
			app.logger.Error("wait for device idle", slog.Any("error", err))
		}
	}

	app.texture.Destroy()

	if app.commandPool.Initialized() {
		app.deviceDriver.DestroyCommandPool(app.commandPool, nil)
	}

	if app.deviceDriver != nil {
		app.deviceDriver.DestroyDevice(nil)
	}

	if app.debugMessenger.Initialized() {
		app.debugDriver.DestroyDebugUtilsMessenger(app.debugMessenger, nil)
	}

	if app.instanceDriver != nil {
		app.instanceDriver.DestroyInstance(nil)
	}

	sdl.VulkanUnloadLibrary()
	sdl.Quit()
}

func (app *CubeTexApplication) logDebug(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	level := slog.LevelDebug
	switch {
	case severity&ext_debug_utils.SeverityError != 0:
		level = slog.LevelError
	case severity&ext_debug_utils.SeverityWarning != 0:
		level = slog.LevelWarn
	case severity&ext_debug_utils.SeverityInfo != 0:
		level = slog.LevelInfo
	}

	app.logger.Log(context.Background(), level, data.Message, slog.String("type", msgType.String()))
	return false
}

// run parses args, loads the texture and returns the process exit code.
func run(args []string, stderr io.Writer) int {
	app := &CubeTexApplication{}

	flags := flag.NewFlagSet("cubetex", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&app.config.dir, "dir", "", "directory holding right.jpg, left.jpg, top.jpg, bottom.jpg, front.jpg and back.jpg")
	flags.BoolVar(&app.config.mips, "mips", false, "build a full mip chain instead of a single level")
	flags.BoolVar(&app.config.allLayers, "all-layers", false, "downsample every face when building mips, not only the first")
	flags.BoolVar(&app.config.finalize, "finalize", false, "move a single-level texture to shader-read-only layout")
	flags.BoolVar(&app.config.validation, "validation", false, "enable the Khronos validation layer and log its messages")
	flags.BoolVar(&app.config.verbose, "v", false, "log debug messages")
	flags.Var(&app.config.probes, "probe", "sample the faces along direction `x,y,z` (repeatable)")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	if app.config.dir == "" {
		fmt.Fprintln(stderr, "cubetex: -dir is required")
		flags.Usage()
		return 2
	}

	level := slog.LevelInfo
	if app.config.verbose {
		level = slog.LevelDebug
	}
	app.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := app.Run(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "%+v\n", err)
		return 1
	}
	return 0
}

func main() {
	runtime.LockOSThread()

	os.Exit(run(os.Args[1:], os.Stderr))
}
