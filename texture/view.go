package texture

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/cubemap/gpu"
)

// MaxAnisotropy is the anisotropy limit of texture samplers.
const MaxAnisotropy = 16

// CreateImageView creates a cube view over levels [0, mipLevels) and layers
// [0, layers) of image.
func CreateImageView(dev gpu.Device, image gpu.Image, format core1_0.Format, mipLevels, layers int) (gpu.ImageView, error) {
	imageView, err := dev.CreateImageView(gpu.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewTypeCube,
		Format:   format,
		Components: core1_0.ComponentMapping{
			R: core1_0.ComponentSwizzleIdentity,
			G: core1_0.ComponentSwizzleIdentity,
			B: core1_0.ComponentSwizzleIdentity,
			A: core1_0.ComponentSwizzleIdentity,
		},
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     core1_0.ImageAspectColor,
			BaseMipLevel:   0,
			LevelCount:     mipLevels,
			BaseArrayLayer: 0,
			LayerCount:     layers,
		},
	})
	return imageView, errors.Wrap(err, "create image view")
}

func samplerInfo(mipLevels int) gpu.SamplerCreateInfo {
	return gpu.SamplerCreateInfo{
		MagFilter:    core1_0.FilterLinear,
		MinFilter:    core1_0.FilterLinear,
		AddressModeU: core1_0.SamplerAddressModeClampToEdge,
		AddressModeV: core1_0.SamplerAddressModeClampToEdge,
		AddressModeW: core1_0.SamplerAddressModeClampToEdge,

		AnisotropyEnable: true,
		MaxAnisotropy:    MaxAnisotropy,

		CompareEnable: false,
		CompareOp:     core1_0.CompareOpAlways,

		BorderColor:             core1_0.BorderColorFloatOpaqueWhite,
		UnnormalizedCoordinates: false,

		MipmapMode: core1_0.SamplerMipmapModeLinear,
		MipLodBias: 0,
		MinLod:     0,
		MaxLod:     float32(mipLevels),
	}
}

// CreateSampler creates a trilinear, anisotropic, edge-clamped sampler whose
// LOD range spans mipLevels levels.
func CreateSampler(dev gpu.Device, mipLevels int) (gpu.Sampler, error) {
	sampler, err := dev.CreateSampler(samplerInfo(mipLevels))
	return sampler, errors.Wrap(err, "create sampler")
}
