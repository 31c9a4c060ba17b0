package texture

import (
	"math"
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/core/v3/core1_0"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/cubemap/gpu"
)

// finalLayout is the layout CreateTextureImage leaves an image of mipLevels
// levels in.
func (o options) finalLayout(mipLevels int) core1_0.ImageLayout {
	if mipLevels > 1 || o.FinalizeSingleLevel {
		return core1_0.ImageLayoutShaderReadOnlyOptimal
	}
	return core1_0.ImageLayoutTransferDstOptimal
}

func copyBufferToImage(pool gpu.CommandPool, queue gpu.Queue, buffer gpu.Buffer, image gpu.Image, width, height, layers int) error {
	err := gpu.RunSingleUse(pool, queue, func(cmdBuffer gpu.CommandBuffer) error {
		return cmdBuffer.CopyBufferToImage(buffer, image, core1_0.ImageLayoutTransferDstOptimal,
			core1_0.BufferImageCopy{
				BufferOffset:      0,
				BufferRowLength:   0,
				BufferImageHeight: 0,

				ImageSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       0,
					BaseArrayLayer: 0,
					LayerCount:     layers,
				},
				ImageOffset: core1_0.Offset3D{X: 0, Y: 0, Z: 0},
				ImageExtent: core1_0.Extent3D{Width: width, Height: height, Depth: 1},
			},
		)
	})
	return errors.Wrap(err, "copy staging buffer to image")
}

// pixelBytes is the RGBA8 byte size of layers images of width x height. It
// reports false when an extent does not fit a Vulkan uint32 or the size does
// not fit an int.
func pixelBytes(width, height, layers int) (int, bool) {
	if uint64(width) > math.MaxUint32 || uint64(height) > math.MaxUint32 || uint64(layers) > math.MaxUint32 {
		return 0, false
	}

	size := uint64(4)
	for _, n := range [...]int{width, height, layers} {
		hi, lo := bits.Mul64(size, uint64(n))
		if hi != 0 || lo > math.MaxInt {
			return 0, false
		}
		size = lo
	}
	return int(size), true
}

// CreateTextureImage uploads pixels, layers tightly packed RGBA8 images of
// width x height, into a new device-local image and returns the image, its
// memory and the number of mip levels it has.
//
// Unless WithMipRequest(true) is given the image has a single level whatever
// createMips says, and the upload leaves it in transfer-dst layout.
func CreateTextureImage(dev gpu.Device, pool gpu.CommandPool, queue gpu.Queue, memInfo *gpu.MemoryProperties, format core1_0.Format, pixels []byte, width, height, layers int, createMips bool, opts ...Option) (gpu.Image, gpu.Memory, int, error) {
	o := newOptions(opts...)
	logger := o.logger()

	if width < 1 || height < 1 || layers < 1 {
		return nil, nil, 0, errors.Mark(errors.Newf("texture of %dx%d with %d layers has no pixels", width, height, layers), ErrInvalidInput)
	}
	imageSize, ok := pixelBytes(width, height, layers)
	if !ok {
		return nil, nil, 0, errors.Mark(errors.Newf("texture of %dx%d with %d layers is too large", width, height, layers), ErrInvalidInput)
	}
	if len(pixels) < imageSize {
		return nil, nil, 0, errors.Mark(errors.Newf("texture of %dx%d with %d layers needs %d bytes of pixel data, got %d",
			width, height, layers, imageSize, len(pixels)), ErrInvalidInput)
	}

	mipLevels := 1
	if createMips {
		candidate := MipLevelCount(width, height)
		if o.HonorMipRequest {
			mipLevels = candidate
		} else {
			logger.Debug("mip generation disabled, using a single level", slog.Int("requested", candidate))
		}
	}
	if mipLevels > 1 {
		if err := CheckMipmapSupport(dev, format); err != nil {
			return nil, nil, 0, err
		}
	}

	start := hrtime.Now()

	stagingBuffer, stagingMemory, err := gpu.CreateBuffer(dev, memInfo, imageSize, core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		return nil, nil, 0, errors.Wrap(err, "create staging buffer")
	}
	stagingLive := true
	releaseStaging := func() {
		if stagingLive {
			stagingBuffer.Destroy()
			stagingMemory.Free()
			stagingLive = false
		}
	}
	defer releaseStaging()

	err = gpu.WriteData(stagingMemory, 0, pixels[:imageSize])
	if err != nil {
		return nil, nil, 0, errors.Wrap(err, "fill staging buffer")
	}

	image, imageMemory, err := CreateImage(dev, ImageSpec{
		Width:            width,
		Height:           height,
		Layers:           layers,
		MipLevels:        mipLevels,
		Samples:          core1_0.Samples1,
		Format:           format,
		Tiling:           core1_0.ImageTilingOptimal,
		Usage:            core1_0.ImageUsageTransferSrc | core1_0.ImageUsageTransferDst | core1_0.ImageUsageSampled,
		MemoryProperties: core1_0.MemoryPropertyDeviceLocal,
	}, memInfo)
	if err != nil {
		return nil, nil, 0, err
	}

	done := false
	defer func() {
		if !done {
			image.Destroy()
			imageMemory.Free()
		}
	}()

	err = TransitionImageLayout(pool, queue, image, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal, mipLevels, layers)
	if err != nil {
		return nil, nil, 0, err
	}

	err = copyBufferToImage(pool, queue, stagingBuffer, image, width, height, layers)
	if err != nil {
		return nil, nil, 0, err
	}
	releaseStaging()

	logger.Debug("uploaded texture pixels",
		slog.Int("bytes", imageSize),
		slog.Int("layers", layers),
		slog.Duration("elapsed", hrtime.Since(start)))

	if o.AllLayerMips {
		err = GenerateCubeMipmaps(pool, queue, image, width, height, mipLevels, layers)
	} else {
		err = GenerateMipmaps(pool, queue, image, width, height, mipLevels, layers)
	}
	if err != nil {
		return nil, nil, 0, err
	}

	if mipLevels == 1 && o.FinalizeSingleLevel {
		err = TransitionImageLayout(pool, queue, image, core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal, mipLevels, layers)
		if err != nil {
			return nil, nil, 0, err
		}
	}

	done = true
	return image, imageMemory, mipLevels, nil
}
