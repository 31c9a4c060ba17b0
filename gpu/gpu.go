// Package gpu wraps the handful of Vulkan device objects the cube texture
// loader touches behind small typed interfaces. The Vulkan-backed
// implementation lives in vulkan.go; gputest provides an in-memory one.
package gpu

import (
	"github.com/vkngwrapper/core/v3/core1_0"
)

// Device creates the objects a texture upload needs.
type Device interface {
	CreateImage(info ImageCreateInfo) (Image, error)
	CreateBuffer(info BufferCreateInfo) (Buffer, error)
	AllocateMemory(info MemoryAllocateInfo) (Memory, error)
	CreateImageView(info ImageViewCreateInfo) (ImageView, error)
	CreateSampler(info SamplerCreateInfo) (Sampler, error)

	// OptimalTilingFeatures reports the format features the physical
	// device supports for optimally tiled images of format.
	OptimalTilingFeatures(format core1_0.Format) core1_0.FormatFeatureFlags
}

// Destroyer is implemented by every object that holds device resources.
// Destroy must be called explicitly; nothing is released by the GC.
type Destroyer interface {
	Destroy()
}

type Image interface {
	Destroyer
	MemoryRequirements() MemoryRequirements
	BindMemory(memory Memory, offset int) error
}

type Buffer interface {
	Destroyer
	MemoryRequirements() MemoryRequirements
	BindMemory(memory Memory, offset int) error
}

// Memory is a device memory allocation. Free releases it.
type Memory interface {
	Size() int
	// Map returns a host view of size bytes starting at offset.
	// The slice is only valid until Unmap.
	Map(offset, size int) ([]byte, error)
	Unmap()
	Free()
}

type ImageView interface {
	Destroyer
}

type Sampler interface {
	Destroyer
}

// CommandPool hands out primary command buffers.
type CommandPool interface {
	AllocateCommandBuffer() (CommandBuffer, error)
}

// Queue executes command buffers.
type Queue interface {
	// SubmitAndWait submits cb and blocks until the queue is idle.
	SubmitAndWait(cb CommandBuffer) error
}

// CommandBuffer records the transfer commands used by the loader.
type CommandBuffer interface {
	Begin() error
	End() error
	Free()

	PipelineBarrier(srcStage, dstStage core1_0.PipelineStageFlags, barriers ...ImageBarrier) error
	CopyBufferToImage(src Buffer, dst Image, dstLayout core1_0.ImageLayout, regions ...core1_0.BufferImageCopy) error
	BlitImage(src Image, srcLayout core1_0.ImageLayout, dst Image, dstLayout core1_0.ImageLayout, regions []core1_0.ImageBlit, filter core1_0.Filter) error
}

type ImageCreateInfo struct {
	Flags       core1_0.ImageCreateFlags
	Format      core1_0.Format
	Extent      core1_0.Extent3D
	MipLevels   int
	ArrayLayers int
	Samples     core1_0.SampleCountFlags
	Tiling      core1_0.ImageTiling
	Usage       core1_0.ImageUsageFlags
}

type BufferCreateInfo struct {
	Size  int
	Usage core1_0.BufferUsageFlags
}

type MemoryAllocateInfo struct {
	AllocationSize  int
	MemoryTypeIndex int
}

type ImageViewCreateInfo struct {
	Image            Image
	ViewType         core1_0.ImageViewType
	Format           core1_0.Format
	Components       core1_0.ComponentMapping
	SubresourceRange core1_0.ImageSubresourceRange
}

type SamplerCreateInfo struct {
	MagFilter    core1_0.Filter
	MinFilter    core1_0.Filter
	MipmapMode   core1_0.SamplerMipmapMode
	AddressModeU core1_0.SamplerAddressMode
	AddressModeV core1_0.SamplerAddressMode
	AddressModeW core1_0.SamplerAddressMode

	MipLodBias       float32
	AnisotropyEnable bool
	MaxAnisotropy    float32
	CompareEnable    bool
	CompareOp        core1_0.CompareOp
	MinLod           float32
	MaxLod           float32

	BorderColor             core1_0.BorderColor
	UnnormalizedCoordinates bool
}

// ImageBarrier is an image memory barrier that never transfers queue
// family ownership.
type ImageBarrier struct {
	Image            Image
	OldLayout        core1_0.ImageLayout
	NewLayout        core1_0.ImageLayout
	SrcAccessMask    core1_0.AccessFlags
	DstAccessMask    core1_0.AccessFlags
	SubresourceRange core1_0.ImageSubresourceRange
}

type MemoryRequirements struct {
	Size           int
	Alignment      int
	MemoryTypeBits uint32
}
