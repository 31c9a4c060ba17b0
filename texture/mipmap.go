package texture

import (
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/cubemap/gpu"
)

// MipLevelCount returns floor(log2(max(width, height))) + 1, the length of
// a full mip chain for the extent.
func MipLevelCount(width, height int) int {
	size := width
	if height > size {
		size = height
	}
	if size < 1 {
		return 1
	}
	return bits.Len(uint(size))
}

// CheckMipmapSupport reports whether optimally tiled images of format can
// be downsampled with a linear blit.
func CheckMipmapSupport(dev gpu.Device, format core1_0.Format) error {
	features := dev.OptimalTilingFeatures(format)
	if (features & core1_0.FormatFeatureSampledImageFilterLinear) == 0 {
		return errors.Wrapf(ErrUnsupportedFormat, "texture image format %s", format)
	}
	return nil
}

// GenerateMipmaps fills levels 1..mipLevels-1 of image by repeatedly
// blitting the previous level at half size, and leaves every level in
// shader-read-only layout. Level 0 must hold the image contents in
// transfer-dst layout.
//
// Only array layer 0 is downsampled; the barriers still cover all layers,
// so layers above 0 end up with undefined contents in levels above 0.
// GenerateCubeMipmaps downsamples every layer.
//
// It does nothing when mipLevels <= 1.
func GenerateMipmaps(pool gpu.CommandPool, queue gpu.Queue, image gpu.Image, width, height, mipLevels, layers int) error {
	return generateMipmaps(pool, queue, image, width, height, mipLevels, layers, 1)
}

// GenerateCubeMipmaps is GenerateMipmaps with every blit spanning all
// layers, so each face of a cube gets its own chain.
func GenerateCubeMipmaps(pool gpu.CommandPool, queue gpu.Queue, image gpu.Image, width, height, mipLevels, layers int) error {
	return generateMipmaps(pool, queue, image, width, height, mipLevels, layers, layers)
}

func generateMipmaps(pool gpu.CommandPool, queue gpu.Queue, image gpu.Image, width, height, mipLevels, layers, blitLayers int) error {
	if mipLevels <= 1 {
		return nil
	}

	err := gpu.RunSingleUse(pool, queue, func(commandBuffer gpu.CommandBuffer) error {
		return recordMipChain(commandBuffer, image, width, height, mipLevels, layers, blitLayers)
	})
	return errors.Wrap(err, "generate mipmaps")
}

func recordMipChain(commandBuffer gpu.CommandBuffer, image gpu.Image, width, height, mipLevels, layers, blitLayers int) error {
	barrier := gpu.ImageBarrier{
		Image: image,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     core1_0.ImageAspectColor,
			BaseArrayLayer: 0,
			LayerCount:     layers,
			LevelCount:     1,
		},
	}

	mipWidth := width
	mipHeight := height
	for i := 1; i < mipLevels; i++ {
		barrier.SubresourceRange.BaseMipLevel = i - 1
		barrier.OldLayout = core1_0.ImageLayoutTransferDstOptimal
		barrier.NewLayout = core1_0.ImageLayoutTransferSrcOptimal
		barrier.SrcAccessMask = core1_0.AccessTransferWrite
		barrier.DstAccessMask = core1_0.AccessTransferRead

		err := commandBuffer.PipelineBarrier(core1_0.PipelineStageTransfer, core1_0.PipelineStageTransfer, barrier)
		if err != nil {
			return err
		}

		nextMipWidth := mipWidth
		nextMipHeight := mipHeight

		if nextMipWidth > 1 {
			nextMipWidth /= 2
		}
		if nextMipHeight > 1 {
			nextMipHeight /= 2
		}
		err = commandBuffer.BlitImage(image, core1_0.ImageLayoutTransferSrcOptimal, image, core1_0.ImageLayoutTransferDstOptimal, []core1_0.ImageBlit{
			{
				SrcSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       i - 1,
					BaseArrayLayer: 0,
					LayerCount:     blitLayers,
				},
				SrcOffsets: [2]core1_0.Offset3D{
					{X: 0, Y: 0, Z: 0},
					{X: mipWidth, Y: mipHeight, Z: 1},
				},

				DstSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       i,
					BaseArrayLayer: 0,
					LayerCount:     blitLayers,
				},
				DstOffsets: [2]core1_0.Offset3D{
					{X: 0, Y: 0, Z: 0},
					{X: nextMipWidth, Y: nextMipHeight, Z: 1},
				},
			},
		}, core1_0.FilterLinear)
		if err != nil {
			return err
		}

		barrier.OldLayout = core1_0.ImageLayoutTransferSrcOptimal
		barrier.NewLayout = core1_0.ImageLayoutShaderReadOnlyOptimal
		barrier.SrcAccessMask = core1_0.AccessTransferRead
		barrier.DstAccessMask = core1_0.AccessShaderRead
		err = commandBuffer.PipelineBarrier(core1_0.PipelineStageTransfer, core1_0.PipelineStageFragmentShader, barrier)
		if err != nil {
			return err
		}

		mipWidth = nextMipWidth
		mipHeight = nextMipHeight
	}

	barrier.SubresourceRange.BaseMipLevel = mipLevels - 1
	barrier.OldLayout = core1_0.ImageLayoutTransferDstOptimal
	barrier.NewLayout = core1_0.ImageLayoutShaderReadOnlyOptimal
	barrier.SrcAccessMask = core1_0.AccessTransferWrite
	barrier.DstAccessMask = core1_0.AccessShaderRead

	return commandBuffer.PipelineBarrier(core1_0.PipelineStageTransfer, core1_0.PipelineStageFragmentShader, barrier)
}
