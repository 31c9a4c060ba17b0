package gpu

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

func deviceError(err error, op string) error {
	return errors.Mark(errors.Wrap(err, op), ErrDevice)
}

// VulkanDevice implements Device on top of a vkngwrapper device driver.
type VulkanDevice struct {
	instanceDriver core1_0.CoreInstanceDriver
	deviceDriver   core1_0.DeviceDriver
	physicalDevice core1_0.PhysicalDevice
}

var _ Device = &VulkanDevice{}

func NewVulkanDevice(instanceDriver core1_0.CoreInstanceDriver, physicalDevice core1_0.PhysicalDevice, deviceDriver core1_0.DeviceDriver) *VulkanDevice {
	return &VulkanDevice{
		instanceDriver: instanceDriver,
		deviceDriver:   deviceDriver,
		physicalDevice: physicalDevice,
	}
}

// MemoryProperties reads the memory type table of the physical device.
func (d *VulkanDevice) MemoryProperties() *MemoryProperties {
	memProperties := d.instanceDriver.GetPhysicalDeviceMemoryProperties(d.physicalDevice)

	props := &MemoryProperties{}
	for _, memoryType := range memProperties.MemoryTypes {
		props.MemoryTypes = append(props.MemoryTypes, MemoryType{
			PropertyFlags: memoryType.PropertyFlags,
		})
	}
	return props
}

func (d *VulkanDevice) OptimalTilingFeatures(format core1_0.Format) core1_0.FormatFeatureFlags {
	properties := d.instanceDriver.GetPhysicalDeviceFormatProperties(d.physicalDevice, format)
	return properties.OptimalTilingFeatures
}

func (d *VulkanDevice) CreateImage(info ImageCreateInfo) (Image, error) {
	image, _, err := d.deviceDriver.CreateImage(nil, core1_0.ImageCreateInfo{
		Flags:         info.Flags,
		ImageType:     core1_0.ImageType2D,
		Format:        info.Format,
		Extent:        info.Extent,
		MipLevels:     info.MipLevels,
		ArrayLayers:   info.ArrayLayers,
		Samples:       info.Samples,
		Tiling:        info.Tiling,
		Usage:         info.Usage,
		SharingMode:   core1_0.SharingModeExclusive,
		InitialLayout: core1_0.ImageLayoutUndefined,
	})
	if err != nil {
		return nil, deviceError(err, "create image")
	}

	return &VulkanImage{driver: d.deviceDriver, image: image}, nil
}

func (d *VulkanDevice) CreateBuffer(info BufferCreateInfo) (Buffer, error) {
	buffer, _, err := d.deviceDriver.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        info.Size,
		Usage:       info.Usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return nil, deviceError(err, "create buffer")
	}

	return &VulkanBuffer{driver: d.deviceDriver, buffer: buffer}, nil
}

func (d *VulkanDevice) AllocateMemory(info MemoryAllocateInfo) (Memory, error) {
	memory, _, err := d.deviceDriver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  info.AllocationSize,
		MemoryTypeIndex: info.MemoryTypeIndex,
	})
	if err != nil {
		return nil, deviceError(err, "allocate memory")
	}

	return &VulkanMemory{driver: d.deviceDriver, memory: memory, size: info.AllocationSize}, nil
}

func (d *VulkanDevice) CreateImageView(info ImageViewCreateInfo) (ImageView, error) {
	image, ok := info.Image.(*VulkanImage)
	if !ok {
		return nil, errors.Newf("image view: foreign image %T", info.Image)
	}

	imageView, _, err := d.deviceDriver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:            image.image,
		ViewType:         info.ViewType,
		Format:           info.Format,
		Components:       info.Components,
		SubresourceRange: info.SubresourceRange,
	})
	if err != nil {
		return nil, deviceError(err, "create image view")
	}

	return &VulkanImageView{driver: d.deviceDriver, imageView: imageView}, nil
}

func (d *VulkanDevice) CreateSampler(info SamplerCreateInfo) (Sampler, error) {
	sampler, _, err := d.deviceDriver.CreateSampler(nil, core1_0.SamplerCreateInfo{
		MagFilter:    info.MagFilter,
		MinFilter:    info.MinFilter,
		MipmapMode:   info.MipmapMode,
		AddressModeU: info.AddressModeU,
		AddressModeV: info.AddressModeV,
		AddressModeW: info.AddressModeW,

		MipLodBias:       info.MipLodBias,
		AnisotropyEnable: info.AnisotropyEnable,
		MaxAnisotropy:    info.MaxAnisotropy,
		CompareEnable:    info.CompareEnable,
		CompareOp:        info.CompareOp,
		MinLod:           info.MinLod,
		MaxLod:           info.MaxLod,

		BorderColor:             info.BorderColor,
		UnnormalizedCoordinates: info.UnnormalizedCoordinates,
	})
	if err != nil {
		return nil, deviceError(err, "create sampler")
	}

	return &VulkanSampler{driver: d.deviceDriver, sampler: sampler}, nil
}

type VulkanImage struct {
	driver core1_0.DeviceDriver
	image  core1_0.Image
}

// Handle returns the underlying image for descriptor writes and render passes.
func (i *VulkanImage) Handle() core1_0.Image { return i.image }

func (i *VulkanImage) MemoryRequirements() MemoryRequirements {
	memReqs := i.driver.GetImageMemoryRequirements(i.image)
	return MemoryRequirements{
		Size:           memReqs.Size,
		Alignment:      memReqs.Alignment,
		MemoryTypeBits: memReqs.MemoryTypeBits,
	}
}

func (i *VulkanImage) BindMemory(memory Memory, offset int) error {
	vkMemory, ok := memory.(*VulkanMemory)
	if !ok {
		return errors.Newf("bind image memory: foreign memory %T", memory)
	}

	_, err := i.driver.BindImageMemory(i.image, vkMemory.memory, offset)
	if err != nil {
		return deviceError(err, "bind image memory")
	}
	return nil
}

func (i *VulkanImage) Destroy() {
	i.driver.DestroyImage(i.image, nil)
}

type VulkanBuffer struct {
	driver core1_0.DeviceDriver
	buffer core1_0.Buffer
}

func (b *VulkanBuffer) Handle() core1_0.Buffer { return b.buffer }

func (b *VulkanBuffer) MemoryRequirements() MemoryRequirements {
	memReqs := b.driver.GetBufferMemoryRequirements(b.buffer)
	return MemoryRequirements{
		Size:           memReqs.Size,
		Alignment:      memReqs.Alignment,
		MemoryTypeBits: memReqs.MemoryTypeBits,
	}
}

func (b *VulkanBuffer) BindMemory(memory Memory, offset int) error {
	vkMemory, ok := memory.(*VulkanMemory)
	if !ok {
		return errors.Newf("bind buffer memory: foreign memory %T", memory)
	}

	_, err := b.driver.BindBufferMemory(b.buffer, vkMemory.memory, offset)
	if err != nil {
		return deviceError(err, "bind buffer memory")
	}
	return nil
}

func (b *VulkanBuffer) Destroy() {
	b.driver.DestroyBuffer(b.buffer, nil)
}

type VulkanMemory struct {
	driver core1_0.DeviceDriver
	memory core1_0.DeviceMemory
	size   int
}

func (m *VulkanMemory) Handle() core1_0.DeviceMemory { return m.memory }

func (m *VulkanMemory) Size() int { return m.size }

func (m *VulkanMemory) Map(offset, size int) ([]byte, error) {
	memoryPtr, _, err := m.driver.MapMemory(m.memory, offset, size, 0)
	if err != nil {
		return nil, deviceError(err, "map memory")
	}

	return unsafe.Slice((*byte)(memoryPtr), size), nil
}

func (m *VulkanMemory) Unmap() {
	m.driver.UnmapMemory(m.memory)
}

func (m *VulkanMemory) Free() {
	m.driver.FreeMemory(m.memory, nil)
}

type VulkanImageView struct {
	driver    core1_0.DeviceDriver
	imageView core1_0.ImageView
}

func (v *VulkanImageView) Handle() core1_0.ImageView { return v.imageView }

func (v *VulkanImageView) Destroy() {
	v.driver.DestroyImageView(v.imageView, nil)
}

type VulkanSampler struct {
	driver  core1_0.DeviceDriver
	sampler core1_0.Sampler
}

func (s *VulkanSampler) Handle() core1_0.Sampler { return s.sampler }

func (s *VulkanSampler) Destroy() {
	s.driver.DestroySampler(s.sampler, nil)
}

// VulkanCommandPool allocates primary command buffers from a pool owned
// by the caller.
type VulkanCommandPool struct {
	driver core1_0.DeviceDriver
	pool   core1_0.CommandPool
}

func NewVulkanCommandPool(deviceDriver core1_0.DeviceDriver, pool core1_0.CommandPool) *VulkanCommandPool {
	return &VulkanCommandPool{driver: deviceDriver, pool: pool}
}

func (p *VulkanCommandPool) AllocateCommandBuffer() (CommandBuffer, error) {
	buffers, _, err := p.driver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        p.pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return nil, deviceError(err, "allocate command buffer")
	}

	return &vulkanCommandBuffer{driver: p.driver, buffer: buffers[0]}, nil
}

// VulkanQueue submits to a queue owned by the caller.
type VulkanQueue struct {
	driver core1_0.DeviceDriver
	queue  core1_0.Queue
}

func NewVulkanQueue(deviceDriver core1_0.DeviceDriver, queue core1_0.Queue) *VulkanQueue {
	return &VulkanQueue{driver: deviceDriver, queue: queue}
}

func (q *VulkanQueue) SubmitAndWait(cb CommandBuffer) error {
	buffer, ok := cb.(*vulkanCommandBuffer)
	if !ok {
		return errors.Newf("submit: foreign command buffer %T", cb)
	}

	_, err := q.driver.QueueSubmit(q.queue, nil,
		core1_0.SubmitInfo{
			CommandBuffers: []core1_0.CommandBuffer{buffer.buffer},
		},
	)
	if err != nil {
		return deviceError(err, "queue submit")
	}

	_, err = q.driver.QueueWaitIdle(q.queue)
	if err != nil {
		return deviceError(err, "queue wait idle")
	}
	return nil
}

type vulkanCommandBuffer struct {
	driver core1_0.DeviceDriver
	buffer core1_0.CommandBuffer
}

func (c *vulkanCommandBuffer) Begin() error {
	_, err := c.driver.BeginCommandBuffer(c.buffer, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		return deviceError(err, "begin command buffer")
	}
	return nil
}

func (c *vulkanCommandBuffer) End() error {
	_, err := c.driver.EndCommandBuffer(c.buffer)
	if err != nil {
		return deviceError(err, "end command buffer")
	}
	return nil
}

func (c *vulkanCommandBuffer) Free() {
	c.driver.FreeCommandBuffers(c.buffer)
}

func (c *vulkanCommandBuffer) PipelineBarrier(srcStage, dstStage core1_0.PipelineStageFlags, barriers ...ImageBarrier) error {
	imageBarriers := make([]core1_0.ImageMemoryBarrier, 0, len(barriers))
	for _, barrier := range barriers {
		image, ok := barrier.Image.(*VulkanImage)
		if !ok {
			return errors.Newf("pipeline barrier: foreign image %T", barrier.Image)
		}

		imageBarriers = append(imageBarriers, core1_0.ImageMemoryBarrier{
			Image:               image.image,
			OldLayout:           barrier.OldLayout,
			NewLayout:           barrier.NewLayout,
			SrcAccessMask:       barrier.SrcAccessMask,
			DstAccessMask:       barrier.DstAccessMask,
			SrcQueueFamilyIndex: -1,
			DstQueueFamilyIndex: -1,
			SubresourceRange:    barrier.SubresourceRange,
		})
	}

	return c.driver.CmdPipelineBarrier(c.buffer, srcStage, dstStage, 0, nil, nil, imageBarriers)
}

func (c *vulkanCommandBuffer) CopyBufferToImage(src Buffer, dst Image, dstLayout core1_0.ImageLayout, regions ...core1_0.BufferImageCopy) error {
	buffer, ok := src.(*VulkanBuffer)
	if !ok {
		return errors.Newf("copy buffer to image: foreign buffer %T", src)
	}
	image, ok := dst.(*VulkanImage)
	if !ok {
		return errors.Newf("copy buffer to image: foreign image %T", dst)
	}

	return c.driver.CmdCopyBufferToImage(c.buffer, buffer.buffer, image.image, dstLayout, regions...)
}

func (c *vulkanCommandBuffer) BlitImage(src Image, srcLayout core1_0.ImageLayout, dst Image, dstLayout core1_0.ImageLayout, regions []core1_0.ImageBlit, filter core1_0.Filter) error {
	srcImage, ok := src.(*VulkanImage)
	if !ok {
		return errors.Newf("blit image: foreign source image %T", src)
	}
	dstImage, ok := dst.(*VulkanImage)
	if !ok {
		return errors.Newf("blit image: foreign destination image %T", dst)
	}

	return c.driver.CmdBlitImage(c.buffer, srcImage.image, srcLayout, dstImage.image, dstLayout, regions, filter)
}
