package texture

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/cubemap/gpu"
)

// ImageSpec describes a cube-compatible 2D image and the memory backing it.
type ImageSpec struct {
	Width     int
	Height    int
	Layers    int
	MipLevels int
	Samples   core1_0.SampleCountFlags
	Format    core1_0.Format
	Tiling    core1_0.ImageTiling
	Usage     core1_0.ImageUsageFlags

	MemoryProperties core1_0.MemoryPropertyFlags
}

func (s ImageSpec) validate() error {
	var reason string
	switch {
	case s.Width < 1 || s.Height < 1:
		reason = "extent must be at least 1x1"
	case uint64(s.Width) > math.MaxUint32 || uint64(s.Height) > math.MaxUint32 || uint64(s.Layers) > math.MaxUint32:
		reason = "extent does not fit 32 bits"
	case s.Layers < 1:
		reason = "image needs at least one layer"
	case s.MipLevels < 1:
		reason = "image needs at least one mip level"
	default:
		return nil
	}
	return errors.Mark(errors.Newf("create image %dx%d, %d layers, %d levels: %s",
		s.Width, s.Height, s.Layers, s.MipLevels, reason), ErrInvalidInput)
}

// CreateImage creates a cube-compatible 2D image and binds it at offset 0 to
// a fresh allocation sized to the image's memory requirement. On failure
// nothing created by the call is left alive.
func CreateImage(dev gpu.Device, spec ImageSpec, memInfo *gpu.MemoryProperties) (gpu.Image, gpu.Memory, error) {
	if err := spec.validate(); err != nil {
		return nil, nil, err
	}

	samples := spec.Samples
	if samples == 0 {
		samples = core1_0.Samples1
	}

	image, err := dev.CreateImage(gpu.ImageCreateInfo{
		Flags:  core1_0.ImageCreateCubeCompatible,
		Format: spec.Format,
		Extent: core1_0.Extent3D{
			Width:  spec.Width,
			Height: spec.Height,
			Depth:  1,
		},
		MipLevels:   spec.MipLevels,
		ArrayLayers: spec.Layers,
		Samples:     samples,
		Tiling:      spec.Tiling,
		Usage:       spec.Usage,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "create image")
	}

	memReqs := image.MemoryRequirements()
	memoryIndex, err := gpu.FindMemoryType(memInfo, memReqs.MemoryTypeBits, spec.MemoryProperties)
	if err != nil {
		image.Destroy()
		return nil, nil, err
	}

	imageMemory, err := dev.AllocateMemory(gpu.MemoryAllocateInfo{
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memoryIndex,
	})
	if err != nil {
		image.Destroy()
		return nil, nil, errors.Wrap(err, "allocate image memory")
	}

	err = image.BindMemory(imageMemory, 0)
	if err != nil {
		image.Destroy()
		imageMemory.Free()
		return nil, nil, errors.Wrap(err, "bind image memory")
	}

	return image, imageMemory, nil
}
