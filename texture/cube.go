// Package texture builds sampleable cube textures: it uploads RGBA8 face
// data through a staging buffer, sequences the layout transitions, builds
// the mip chain with blits and creates the cube view and sampler.
//
// Every device step is recorded into its own single-use command buffer and
// waited on before the next one starts. The device, command pool and queue
// passed in are borrowed and must not be used concurrently during
// construction.
package texture

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vkngwrapper/core/v3/core1_0"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/cubemap/cubeface"
	"github.com/vkngwrapper/cubemap/gpu"
)

// FaceFormat is the pixel format of textures loaded from face files.
const FaceFormat = core1_0.FormatR8G8B8A8SRGB

// CubeTexture owns a cube image, its memory, a cube view over it and a
// sampler. Destroy releases all four.
type CubeTexture struct {
	id        uuid.UUID
	logger    *slog.Logger
	destroyed bool

	image   gpu.Image
	memory  gpu.Memory
	view    gpu.ImageView
	sampler gpu.Sampler

	mipLevels int
	layout    core1_0.ImageLayout
	format    core1_0.Format
	width     int
	height    int
	layers    int
}

// DescriptorInfo is what a combined image sampler descriptor write needs.
type DescriptorInfo struct {
	View    gpu.ImageView
	Sampler gpu.Sampler
	Layout  core1_0.ImageLayout
}

// New loads the six canonical face files in dir and builds an sRGB cube
// texture from them with mips requested.
func New(dev gpu.Device, pool gpu.CommandPool, queue gpu.Queue, memInfo *gpu.MemoryProperties, dir string, opts ...Option) (*CubeTexture, error) {
	faces, err := cubeface.Load(dir)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "load cube faces from %s", dir), ErrInvalidInput)
	}

	return FromPixels(dev, pool, queue, memInfo, FaceFormat, faces.Pixels, faces.Width, faces.Height, cubeface.Count, true, opts...)
}

// FromPixels builds a cube texture from layers tightly packed RGBA8 images
// of width x height in pixels.
func FromPixels(dev gpu.Device, pool gpu.CommandPool, queue gpu.Queue, memInfo *gpu.MemoryProperties, format core1_0.Format, pixels []byte, width, height, layers int, createMips bool, opts ...Option) (*CubeTexture, error) {
	o := newOptions(opts...)
	id := uuid.New()
	logger := o.logger().With(slog.String("texture", id.String()))
	opts = append(opts[:len(opts):len(opts)], WithLogger(logger))

	image, memory, mipLevels, err := CreateTextureImage(dev, pool, queue, memInfo, format, pixels, width, height, layers, createMips, opts...)
	if err != nil {
		return nil, err
	}

	texture := &CubeTexture{
		id:        id,
		logger:    logger,
		image:     image,
		memory:    memory,
		mipLevels: mipLevels,
		layout:    o.finalLayout(mipLevels),
		format:    format,
		width:     width,
		height:    height,
		layers:    layers,
	}

	texture.view, err = CreateImageView(dev, image, format, mipLevels, layers)
	if err != nil {
		texture.Destroy()
		return nil, err
	}

	texture.sampler, err = CreateSampler(dev, mipLevels)
	if err != nil {
		texture.Destroy()
		return nil, err
	}

	logger.Info("created cube texture",
		slog.Int("width", width),
		slog.Int("height", height),
		slog.Int("layers", layers),
		slog.Int("mipLevels", mipLevels),
		slog.String("format", format.String()))
	return texture, nil
}

// Destroy releases the sampler, view, image and memory, in that order.
// The device must not be using the texture. Calling it again does nothing.
func (t *CubeTexture) Destroy() {
	if t == nil || t.destroyed {
		return
	}
	t.destroyed = true

	if t.sampler != nil {
		t.sampler.Destroy()
	}
	if t.view != nil {
		t.view.Destroy()
	}
	if t.image != nil {
		t.image.Destroy()
	}
	if t.memory != nil {
		t.memory.Free()
	}

	t.logger.Debug("destroyed cube texture")
}

func (t *CubeTexture) ID() uuid.UUID { return t.id }
func (t *CubeTexture) Image() gpu.Image { return t.image }
func (t *CubeTexture) Memory() gpu.Memory { return t.memory }
func (t *CubeTexture) View() gpu.ImageView { return t.view }
func (t *CubeTexture) Sampler() gpu.Sampler { return t.sampler }
func (t *CubeTexture) MipLevels() int { return t.mipLevels }
func (t *CubeTexture) Format() core1_0.Format { return t.format }
func (t *CubeTexture) Layers() int { return t.layers }
func (t *CubeTexture) Extent() core1_0.Extent2D { return core1_0.Extent2D{Width: t.width, Height: t.height} }

// Layout is the layout the image was left in after construction.
func (t *CubeTexture) Layout() core1_0.ImageLayout { return t.layout }

// DescriptorInfo returns the view, sampler and image layout to bind the
// texture as a combined image sampler.
func (t *CubeTexture) DescriptorInfo() DescriptorInfo {
	return DescriptorInfo{
		View:    t.view,
		Sampler: t.sampler,
		Layout:  t.layout,
	}
}
